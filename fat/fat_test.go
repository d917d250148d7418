/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Fri Mar 15 13:50:02 2019 mstenber
 * Last modified: Fri Mar 15 15:20:19 2019 mstenber
 * Edit time:     58 min
 *
 */

package fat

import (
	"math/rand"
	"testing"

	"github.com/fingon/go-sgf/storage"
	"github.com/fingon/go-sgf/storage/inmemory"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/stvp/assert"
)

func newBackend(size int) storage.Backend {
	be := inmemory.NewInMemoryBackend()
	be.Init(storage.BackendConfiguration{DiskSize: size})
	return be
}

func TestBlocks(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Blocks(1), 1)
	assert.Equal(t, Blocks(32), 1)
	assert.Equal(t, Blocks(33), 2)
	assert.Equal(t, Blocks(100), 4)
}

func TestEntry(t *testing.T) {
	t.Parallel()
	for _, e := range []Entry{Free, Reserved, Inode, EndOfChain, Next(0), Next(42)} {
		e2, err := DecodeEntry(e.Encode())
		assert.Nil(t, err)
		assert.Equal(t, e, e2)
	}
	assert.Equal(t, Free.Encode(), int32(-1))
	assert.Equal(t, Reserved.Encode(), int32(-2))
	assert.Equal(t, Inode.Encode(), int32(-3))
	assert.Equal(t, EndOfChain.Encode(), int32(-4))
	assert.Equal(t, Next(7).Encode(), int32(7))
	assert.Equal(t, Next(7).String(), "->7")
	assert.Equal(t, EndOfChain.String(), "EOF")

	_, ok := Inode.Next()
	assert.False(t, ok)
	n, ok := Next(3).Next()
	assert.True(t, ok)
	assert.Equal(t, n, storage.Address(3))

	_, err := DecodeEntry(-5)
	assert.Equal(t, errors.Cause(err), ErrUndecodable)
	require.Panics(t, func() {
		Next(storage.NoAddress)
	})
}

func TestFormat(t *testing.T) {
	t.Parallel()
	for _, size := range []int{2, 32, 33, 100} {
		be := newBackend(size)
		fat := Format(be)
		reserved := 1 + Blocks(size)
		assert.Equal(t, fat.ReservedBlocks(), reserved)
		for i := 0; i < size; i++ {
			e := fat.Get(storage.Address(i))
			if i < reserved {
				assert.Equal(t, e, Reserved)
			} else {
				assert.Equal(t, e, Free)
			}
		}
		assert.Equal(t, fat.CountFree(), size-reserved)

		// Reopening sees the same
		fat = Open(be)
		assert.Equal(t, fat.CountFree(), size-reserved)
	}
	require.Panics(t, func() {
		Format(newBackend(1))
	})
}

func TestGetSet(t *testing.T) {
	t.Parallel()
	fat := Format(newBackend(40))
	fat.Set(39, Next(5))
	assert.Equal(t, fat.Get(39), Next(5))
	fat.Set(39, Inode)
	assert.Equal(t, fat.Get(39), Inode)
	require.Panics(t, func() {
		fat.Get(40)
	})
	require.Panics(t, func() {
		fat.Set(-1, Free)
	})
	require.Panics(t, func() {
		fat.Set(5, Next(40))
	})
}

func TestUndecodable(t *testing.T) {
	t.Parallel()
	be := newBackend(8)
	fat := Format(be)
	var b storage.Block
	be.ReadBlock(FirstAddress, &b)
	b.SetInt32(3*entrySize, -42)
	be.WriteBlock(FirstAddress, &b)
	_, err := fat.Lookup(3)
	assert.Equal(t, errors.Cause(err), ErrUndecodable)
	require.Panics(t, func() {
		fat.Get(3)
	})
}

func TestAllocate(t *testing.T) {
	t.Parallel()
	fat := Format(newBackend(6))
	// 0 = directory, 1 = FAT
	a, err := fat.Allocate()
	assert.Nil(t, err)
	assert.Equal(t, a, storage.Address(2))
	assert.Equal(t, fat.Get(a), Reserved)

	b, _ := fat.Allocate()
	c, _ := fat.Allocate()
	d, _ := fat.Allocate()
	assert.Equal(t, []storage.Address{b, c, d}, []storage.Address{3, 4, 5})
	_, err = fat.Allocate()
	assert.Equal(t, err, ErrNoSpace)

	// Lowest free one is handed out first
	fat.Set(4, Free)
	fat.Set(3, Free)
	a, err = fat.Allocate()
	assert.Nil(t, err)
	assert.Equal(t, a, storage.Address(3))
}

func buildChain(t *testing.T, fat *Table, n int) []storage.Address {
	var chain []storage.Address
	for i := 0; i < n; i++ {
		a, err := fat.Allocate()
		assert.Nil(t, err)
		fat.Set(a, EndOfChain)
		if i > 0 {
			fat.Set(chain[i-1], Next(a))
		}
		chain = append(chain, a)
	}
	return chain
}

func TestChainRelease(t *testing.T) {
	t.Parallel()
	fat := Format(newBackend(64))
	free := fat.CountFree()
	other := buildChain(t, fat, 2)
	chain := buildChain(t, fat, 5)
	got, err := fat.Chain(chain[0])
	assert.Nil(t, err)
	assert.Equal(t, got, chain)

	got, err = fat.Chain(storage.NoAddress)
	assert.Nil(t, err)
	assert.Equal(t, len(got), 0)
	assert.Equal(t, fat.Release(storage.NoAddress), 0)

	assert.Equal(t, fat.Release(chain[0]), 5)
	for _, a := range chain {
		assert.Equal(t, fat.Get(a), Free)
	}
	// Other chain is unaffected
	got, err = fat.Chain(other[0])
	assert.Nil(t, err)
	assert.Equal(t, got, other)
	assert.Equal(t, fat.CountFree(), free-2)
}

func TestCorruptChain(t *testing.T) {
	t.Parallel()
	fat := Format(newBackend(64))
	chain := buildChain(t, fat, 3)

	// Loop back to start
	fat.Set(chain[2], Next(chain[0]))
	_, err := fat.Chain(chain[0])
	assert.Equal(t, errors.Cause(err), ErrCorruptChain)
	require.Panics(t, func() {
		fat.Release(chain[0])
	})
	// Nothing was freed
	assert.Equal(t, fat.Get(chain[1]), Next(chain[2]))

	// Already freed block within chain
	fat.Set(chain[2], Free)
	_, err = fat.Chain(chain[0])
	assert.Equal(t, errors.Cause(err), ErrCorruptChain)

	// Reserved block as start
	_, err = fat.Chain(0)
	assert.Equal(t, errors.Cause(err), ErrCorruptChain)

	// Out of range start
	_, err = fat.Chain(64)
	assert.Equal(t, errors.Cause(err), ErrCorruptChain)
}

func TestAllocationSafety(t *testing.T) {
	t.Parallel()
	fat := Format(newBackend(50))
	r := rand.New(rand.NewSource(42))
	owned := make(map[storage.Address]bool)
	for i := 0; i < 1000; i++ {
		if r.Intn(3) > 0 {
			a, err := fat.Allocate()
			if err == ErrNoSpace {
				assert.Equal(t, fat.CountFree(), 0)
				continue
			}
			assert.Nil(t, err)
			assert.True(t, int(a) >= fat.ReservedBlocks())
			assert.False(t, owned[a])
			owned[a] = true
			fat.Set(a, EndOfChain)
			continue
		}
		for a := range owned {
			assert.Equal(t, fat.Release(a), 1)
			delete(owned, a)
			break
		}
	}
	assert.Equal(t, fat.CountFree(), 50-fat.ReservedBlocks()-len(owned))
}

func BenchmarkAllocate(b *testing.B) {
	fat := Format(newBackend(4096))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a, err := fat.Allocate()
		if err != nil {
			b.Fatal(err)
		}
		fat.Set(a, Free)
	}
}
