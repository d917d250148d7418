/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Thu Jan  4 13:00:27 2018 mstenber
 * Last modified: Mon Mar 11 14:33:40 2019 mstenber
 * Edit time:     2 min
 *
 */

package gid

import (
	"testing"

	"github.com/stvp/assert"
)

func TestGetGoroutineID(t *testing.T) {
	mine := GetGoroutineID()
	assert.True(t, mine > 0)
	assert.Equal(t, GetGoroutineID(), mine)

	other := make(chan uint64)
	go func() {
		other <- GetGoroutineID()
	}()
	assert.NotEqual(t, <-other, mine)
}

func BenchmarkGetGoroutineID(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		GetGoroutineID()
	}
}
