/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Fri Mar 15 10:02:12 2019 mstenber
 * Last modified: Fri Mar 15 13:48:30 2019 mstenber
 * Edit time:     142 min
 *
 */

// fat package is the file allocation table of the volume: one 32-bit
// little endian entry per block, stored contiguously from block 1
// onwards. Block 0 (the directory) and the blocks of the table itself
// are RESERVED.
//
// Every mutation is written to the backend before the call returns;
// nothing is cached here. Table is not safe for concurrent use.
package fat

import (
	"github.com/fingon/go-sgf/mlog"
	"github.com/fingon/go-sgf/storage"
	"github.com/fingon/go-sgf/util"
	"github.com/pkg/errors"
)

const (
	DirectoryAddress storage.Address = 0
	FirstAddress     storage.Address = 1

	entrySize       = 4
	entriesPerBlock = storage.BlockSize / entrySize
)

var ErrNoSpace = errors.New("no free blocks")
var ErrCorruptChain = errors.New("corrupt chain")

// Blocks returns the number of blocks the table of a disk with
// diskSize blocks spans.
func Blocks(diskSize int) int {
	return util.CeilDiv(diskSize*entrySize, storage.BlockSize)
}

type Table struct {
	backend  storage.Backend
	diskSize int
	blocks   int
}

func (self Table) init(backend storage.Backend) *Table {
	self.backend = backend
	self.diskSize = backend.DiskSize()
	self.blocks = Blocks(self.diskSize)
	return &self
}

// Format writes a fresh table to the backend. Existing content is
// lost; it is never invoked implicitly.
func Format(backend storage.Backend) *Table {
	self := Table{}.init(backend)
	mlog.Printf2("fat/fat", "fat.Format disk:%d blocks:%d", self.diskSize, self.blocks)
	if self.diskSize < self.ReservedBlocks() {
		mlog.Panicf("disk of %d blocks too small for %d reserved", self.diskSize, self.ReservedBlocks())
	}
	var b storage.Block
	for i := 0; i < self.blocks; i++ {
		b.Clear()
		for j := 0; j < entriesPerBlock; j++ {
			addr := i*entriesPerBlock + j
			if addr >= self.diskSize {
				break
			}
			e := Free
			if addr < self.ReservedBlocks() {
				e = Reserved
			}
			b.SetInt32(j*entrySize, e.Encode())
		}
		self.backend.WriteBlock(FirstAddress+storage.Address(i), &b)
	}
	return self
}

// Open attaches to the table of an already formatted backend.
func Open(backend storage.Backend) *Table {
	self := Table{}.init(backend)
	if self.diskSize < self.ReservedBlocks() {
		mlog.Panicf("disk of %d blocks too small for %d reserved", self.diskSize, self.ReservedBlocks())
	}
	return self
}

func (self *Table) DiskSize() int {
	return self.diskSize
}

// ReservedBlocks is the number of blocks at the start of the disk
// used by the directory and the table.
func (self *Table) ReservedBlocks() int {
	return 1 + self.blocks
}

func (self *Table) location(addr storage.Address) (storage.Address, int) {
	storage.CheckAddress(addr, self.diskSize)
	ofs := int(addr) * entrySize
	return FirstAddress + storage.Address(ofs/storage.BlockSize), ofs % storage.BlockSize
}

// Lookup returns the entry of addr; undecodable values are reported
// as errors. Out-of-range addr is fatal.
func (self *Table) Lookup(addr storage.Address) (Entry, error) {
	ba, ofs := self.location(addr)
	var b storage.Block
	self.backend.ReadBlock(ba, &b)
	return DecodeEntry(b.Int32(ofs))
}

// Get is Lookup for callers that treat corruption as fatal.
func (self *Table) Get(addr storage.Address) Entry {
	e, err := self.Lookup(addr)
	if err != nil {
		mlog.Panicf("FAT entry %d: %v", int32(addr), err)
	}
	return e
}

func (self *Table) Set(addr storage.Address, e Entry) {
	mlog.Printf2("fat/fat", "fat.Set %v = %v", addr, e)
	if n, ok := e.Next(); ok {
		storage.CheckAddress(n, self.diskSize)
	}
	ba, ofs := self.location(addr)
	var b storage.Block
	self.backend.ReadBlock(ba, &b)
	b.SetInt32(ofs, e.Encode())
	self.backend.WriteBlock(ba, &b)
}

// scan calls cb for every entry in address order until it returns
// false. Each table block is read once.
func (self *Table) scan(cb func(addr storage.Address, v int32) bool) {
	var b storage.Block
	for i := 0; i < self.blocks; i++ {
		self.backend.ReadBlock(FirstAddress+storage.Address(i), &b)
		for j := 0; j < entriesPerBlock; j++ {
			addr := i*entriesPerBlock + j
			if addr >= self.diskSize {
				return
			}
			if !cb(storage.Address(addr), b.Int32(j*entrySize)) {
				return
			}
		}
	}
}

// Allocate returns the lowest numbered FREE block, marked RESERVED;
// the caller turns it into INODE, EOF or a chain link.
func (self *Table) Allocate() (storage.Address, error) {
	found := storage.NoAddress
	self.scan(func(addr storage.Address, v int32) bool {
		if v == diskFree {
			found = addr
			return false
		}
		return true
	})
	if found == storage.NoAddress {
		mlog.Printf2("fat/fat", "fat.Allocate - no space")
		return found, ErrNoSpace
	}
	self.Set(found, Reserved)
	mlog.Printf2("fat/fat", "fat.Allocate = %v", found)
	return found, nil
}

func (self *Table) CountFree() (n int) {
	self.scan(func(addr storage.Address, v int32) bool {
		if v == diskFree {
			n++
		}
		return true
	})
	return
}

// Chain returns the blocks of the chain starting at first, in order.
// NoAddress is the empty chain. The walk is bounded by the disk size;
// a revisit, a link out of range or an entry that is not part of a
// chain is reported as ErrCorruptChain.
func (self *Table) Chain(first storage.Address) ([]storage.Address, error) {
	if first == storage.NoAddress {
		return nil, nil
	}
	var chain []storage.Address
	visited := make(map[storage.Address]bool)
	addr := first
	for {
		if !addr.Valid(self.diskSize) {
			return chain, errors.Wrapf(ErrCorruptChain, "%v: link to %d out of range", first, int32(addr))
		}
		if visited[addr] {
			return chain, errors.Wrapf(ErrCorruptChain, "%v: revisit of %v", first, addr)
		}
		visited[addr] = true
		chain = append(chain, addr)
		e, err := self.Lookup(addr)
		if err != nil {
			return chain, errors.Wrapf(ErrCorruptChain, "%v: %v at %v", first, err, addr)
		}
		switch e.Kind() {
		case KindEndOfChain:
			return chain, nil
		case KindNext:
			addr, _ = e.Next()
		default:
			return chain, errors.Wrapf(ErrCorruptChain, "%v: %v within chain at %v", first, e, addr)
		}
	}
}

// Release frees every block of the chain starting at first and
// returns how many there were. A malformed chain is fatal and nothing
// is freed.
func (self *Table) Release(first storage.Address) int {
	chain, err := self.Chain(first)
	if err != nil {
		mlog.Panicf("release: %v", err)
	}
	for _, addr := range chain {
		self.Set(addr, Free)
	}
	mlog.Printf2("fat/fat", "fat.Release %v freed %d", first, len(chain))
	return len(chain)
}
