/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Jan  5 16:28:57 2018 mstenber
 * Last modified: Thu Mar 14 15:11:40 2019 mstenber
 * Edit time:     38 min
 *
 */

package factory

import (
	"fmt"
	"io/ioutil"
	"os"
	"testing"

	"github.com/fingon/go-sgf/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/stvp/assert"
)

const testDiskSize = 32

func TestList(t *testing.T) {
	t.Parallel()
	assert.Equal(t, len(List()), len(backendFactories))
	assert.Equal(t, List(), []string{"badger", "bolt", "file", "inmemory"})
}

func TestUnknown(t *testing.T) {
	t.Parallel()
	_, err := New("nope", "", testDiskSize)
	assert.Equal(t, errors.Cause(err), ErrUnknownBackend)
}

func testBlock(addr storage.Address) (b storage.Block) {
	for i := range b {
		b[i] = byte(int(addr) + i)
	}
	return
}

// ProdBackend writes every block of the disk, checks they read back,
// and if reopen is given, that they survive closing the backend.
func ProdBackend(t *testing.T, be storage.Backend, reopen func() storage.Backend) {
	assert.Equal(t, be.DiskSize(), testDiskSize)

	var b storage.Block
	be.ReadBlock(3, &b)
	assert.Equal(t, b, storage.Block{})

	for i := 0; i < testDiskSize; i++ {
		tb := testBlock(storage.Address(i))
		be.WriteBlock(storage.Address(i), &tb)
	}
	// Overwrite is visible
	tb := testBlock(42)
	be.WriteBlock(5, &tb)
	be.ReadBlock(5, &b)
	assert.Equal(t, b, tb)

	require.Panics(t, func() {
		be.ReadBlock(testDiskSize, &b)
	})
	require.Panics(t, func() {
		be.WriteBlock(storage.NoAddress, &b)
	})

	if reopen == nil {
		be.Close()
		return
	}
	be.Close()
	be = reopen()
	assert.Equal(t, be.DiskSize(), testDiskSize)
	for i := 0; i < testDiskSize; i++ {
		be.ReadBlock(storage.Address(i), &b)
		if i == 5 {
			assert.Equal(t, b, testBlock(42))
		} else {
			assert.Equal(t, b, testBlock(storage.Address(i)))
		}
	}
	be.Close()
}

func TestBackends(t *testing.T) {
	codecs := map[string]CodecConfiguration{
		"plain":  {},
		"snappy": {Compress: true},
		"aes":    {Password: "pw", Iterations: 4, Compress: true},
		"siv":    {Password: "pw", Iterations: 4, Deterministic: true},
	}
	for _, name := range List() {
		for cname, cc := range codecs {
			for _, cacheSize := range []int{0, 4} {
				t.Run(fmt.Sprintf("%s-%s-%d", name, cname, cacheSize), func(t *testing.T) {
					dir, err := ioutil.TempDir("", "sgf-backend")
					if err != nil {
						t.Fatal(err)
					}
					defer os.RemoveAll(dir)
					config := storage.BackendConfiguration{Directory: dir,
						DiskSize:  testDiskSize,
						Codec:     cc.Codec(),
						CacheSize: cacheSize}
					be, err := NewWithConfig(name, config)
					assert.Nil(t, err)
					var reopen func() storage.Backend
					if name != "inmemory" {
						reopen = func() storage.Backend {
							// Disk size comes from the store
							config.DiskSize = 0
							be, err := NewWithConfig(name, config)
							assert.Nil(t, err)
							return be
						}
					}
					ProdBackend(t, be, reopen)
				})
			}
		}
	}
}

func TestWrongPassword(t *testing.T) {
	t.Parallel()
	dir, err := ioutil.TempDir("", "sgf-backend")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	cc := CodecConfiguration{Password: "pw", Iterations: 4}
	config := storage.BackendConfiguration{Directory: dir,
		DiskSize: testDiskSize, Codec: cc.Codec()}
	be, err := NewWithConfig("bolt", config)
	assert.Nil(t, err)
	b := testBlock(1)
	be.WriteBlock(1, &b)
	be.Close()

	cc.Password = "wrong"
	config.Codec = cc.Codec()
	be, err = NewWithConfig("bolt", config)
	assert.Nil(t, err)
	defer be.Close()
	require.Panics(t, func() {
		be.ReadBlock(1, &b)
	})
}

func TestNilCodec(t *testing.T) {
	t.Parallel()
	assert.True(t, CodecConfiguration{}.Codec() == nil)
	assert.True(t, CodecConfiguration{Compress: true}.Codec() != nil)
}

func TestExists(t *testing.T) {
	t.Parallel()
	for _, name := range List() {
		dir, err := ioutil.TempDir("", "sgf-exists")
		if err != nil {
			t.Fatal(err)
		}
		defer os.RemoveAll(dir)
		assert.False(t, Exists(name, dir))

		be, err := New(name, dir, testDiskSize)
		assert.Nil(t, err)
		b := testBlock(1)
		be.WriteBlock(1, &b)
		be.Close()
		assert.Equal(t, Exists(name, dir), name != "inmemory", name)

		if name == "inmemory" {
			continue
		}
		// Existing store opens without a size
		be, err = New(name, dir, 0)
		assert.Nil(t, err)
		assert.Equal(t, be.DiskSize(), testDiskSize)
		be.Close()
	}
	assert.False(t, Exists("nope", "."))
}
