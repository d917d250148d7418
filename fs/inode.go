/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Fri Dec 29 08:21:32 2017 mstenber
 * Last modified: Sat Mar 16 11:13:50 2019 mstenber
 * Edit time:     371 min
 *
 */

package fs

import (
	"fmt"

	"github.com/fingon/go-sgf/fat"
	"github.com/fingon/go-sgf/mlog"
	"github.com/fingon/go-sgf/storage"
	"github.com/fingon/go-sgf/util"
)

// Inode is the file descriptor stored in its own block. Empty file
// has Size 0 and First == Last == storage.NoAddress.
type Inode struct {
	Size        int32
	First, Last storage.Address
}

var emptyInode = Inode{First: storage.NoAddress, Last: storage.NoAddress}

func (self Inode) String() string {
	return fmt.Sprintf("inode{%d bytes %v..%v}", self.Size, self.First, self.Last)
}

// Blocks is the number of data blocks a chain of the inode has.
func (self Inode) Blocks() int {
	return util.CeilDiv(int(self.Size), blockSize)
}

func (self *Inode) encode(b *storage.Block) {
	b.Clear()
	b.SetInt32(inodeSizeOffset, self.Size)
	b.SetInt32(inodeFirstOffset, int32(self.First))
	b.SetInt32(inodeLastOffset, int32(self.Last))
}

func (self *Inode) decode(b *storage.Block) {
	self.Size = b.Int32(inodeSizeOffset)
	self.First = storage.Address(b.Int32(inodeFirstOffset))
	self.Last = storage.Address(b.Int32(inodeLastOffset))
}

// ReadInode loads the inode at addr. It does not check that the FAT
// considers addr an inode.
func (self *Fs) ReadInode(addr storage.Address) (ino Inode) {
	storage.CheckAddress(addr, self.fat.DiskSize())
	var b storage.Block
	self.backend.ReadBlock(addr, &b)
	ino.decode(&b)
	return
}

func (self *Fs) WriteInode(addr storage.Address, ino Inode) {
	mlog.Printf2("fs/inode", "fs.WriteInode %v %v", addr, ino)
	storage.CheckAddress(addr, self.fat.DiskSize())
	var b storage.Block
	ino.encode(&b)
	self.backend.WriteBlock(addr, &b)
}

// NewInode allocates a block, marks it INODE and stores an empty
// inode there.
func (self *Fs) NewInode() (storage.Address, error) {
	addr, err := self.fat.Allocate()
	if err != nil {
		return addr, err
	}
	self.fat.Set(addr, fat.Inode)
	self.WriteInode(addr, emptyInode)
	mlog.Printf2("fs/inode", "fs.NewInode = %v", addr)
	return addr, nil
}

// FreeInode releases the data chain of the inode and then the inode
// block itself.
func (self *Fs) FreeInode(addr storage.Address) {
	if e := self.fat.Get(addr); e != fat.Inode {
		mlog.Panicf("freeing %v which is %v, not inode", addr, e)
	}
	ino := self.ReadInode(addr)
	n := self.fat.Release(ino.First)
	self.fat.Set(addr, fat.Free)
	mlog.Printf2("fs/inode", "fs.FreeInode %v (%d data blocks)", addr, n)
}

// truncateInode empties the inode at addr, keeping the inode block.
func (self *Fs) truncateInode(addr storage.Address) {
	ino := self.ReadInode(addr)
	self.fat.Release(ino.First)
	self.WriteInode(addr, emptyInode)
}
