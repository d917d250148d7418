/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Fri Dec 29 09:04:44 2017 mstenber
 * Last modified: Mon Mar 11 14:22:10 2019 mstenber
 * Edit time:     2 min
 *
 */

package util

import (
	"testing"

	"github.com/stvp/assert"
)

func TestCeilDiv(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CeilDiv(0, 128), 0)
	assert.Equal(t, CeilDiv(1, 128), 1)
	assert.Equal(t, CeilDiv(128, 128), 1)
	assert.Equal(t, CeilDiv(300, 128), 3)
}

func TestIMin(t *testing.T) {
	t.Parallel()

	assert.Equal(t, IMin(3, 7, 1, 9), 1)
	assert.Equal(t, IMin(3), 3)
}
