/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Thu Jan  4 12:49:31 2018 mstenber
 * Last modified: Mon Mar 11 14:31:12 2019 mstenber
 * Edit time:     3 min
 *
 */

// Package gid reads the id of the calling goroutine. mlog prefixes
// each line with it so that interleaved FUSE request handlers can be
// told apart. Parsing runtime.Stack output is slow; callers should
// only ask when the line is actually written.
package gid

import (
	"bytes"
	"runtime"
	"strconv"
)

// GetGoroutineID returns the id from the "goroutine N [state]:" stack
// header, or 0 if the header is not in that form.
func GetGoroutineID() uint64 {
	var buf [64]byte
	b := bytes.TrimPrefix(buf[:runtime.Stack(buf[:], false)], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		if n, err := strconv.ParseUint(string(b[:i]), 10, 64); err == nil {
			return n
		}
	}
	return 0
}
