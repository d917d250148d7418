/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Fri Dec 29 09:03:12 2017 mstenber
 * Last modified: Mon Mar 11 14:20:37 2019 mstenber
 * Edit time:     9 min
 *
 */

package util

// CeilDiv returns a/b rounded up; b must be positive.
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}

func IMin(i int, ints ...int) int {
	for _, v := range ints {
		if v < i {
			i = v
		}
	}
	return i
}
