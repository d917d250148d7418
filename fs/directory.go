/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Mar 16 11:20:10 2019 mstenber
 * Last modified: Sat Mar 16 14:41:07 2019 mstenber
 * Edit time:     96 min
 *
 */

package fs

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/fingon/go-sgf/fat"
	"github.com/fingon/go-sgf/mlog"
	"github.com/fingon/go-sgf/storage"
	"github.com/pkg/errors"
)

type dirSlot struct {
	name  string
	inode storage.Address
}

func (self *dirSlot) used() bool {
	return self.inode >= 0
}

// directory is the decoded form of block 0. It is always read,
// mutated and written as a whole.
type directory struct {
	signature uint32
	slots     [DirectoryEntries]dirSlot
}

// DirEntry describes one file of the directory.
type DirEntry struct {
	Name  string
	Size  int32
	Inode storage.Address
}

// ValidateName checks that name fits a directory slot.
func ValidateName(name string) error {
	if len(name) == 0 || len(name) > NameSize || strings.IndexByte(name, 0) >= 0 {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	return nil
}

func (self *directory) decode(b *storage.Block) {
	self.signature = binary.LittleEndian.Uint32(b[:signatureSize])
	for i := range self.slots {
		ofs := signatureSize + i*dirEntrySize
		raw := b[ofs : ofs+NameSize]
		if n := bytes.IndexByte(raw, 0); n >= 0 {
			raw = raw[:n]
		}
		self.slots[i].name = string(raw)
		self.slots[i].inode = storage.Address(b.Int32(ofs + NameSize + dirEntryPadding))
	}
}

func (self *directory) encode(b *storage.Block) {
	b.Clear()
	binary.LittleEndian.PutUint32(b[:signatureSize], self.signature)
	for i, slot := range self.slots {
		ofs := signatureSize + i*dirEntrySize
		if slot.used() {
			copy(b[ofs:ofs+NameSize], slot.name)
		}
		b.SetInt32(ofs+NameSize+dirEntryPadding, int32(slot.inode))
	}
}

func (self *directory) find(name string) int {
	for i, slot := range self.slots {
		if slot.used() && slot.name == name {
			return i
		}
	}
	return -1
}

func (self *Fs) readDirectory() *directory {
	var b storage.Block
	self.backend.ReadBlock(fat.DirectoryAddress, &b)
	d := &directory{}
	d.decode(&b)
	return d
}

func (self *Fs) writeDirectory(d *directory) {
	var b storage.Block
	d.encode(&b)
	self.backend.WriteBlock(fat.DirectoryAddress, &b)
}

// formatDirectory writes the signature and empties every slot.
func (self *Fs) formatDirectory() {
	d := &directory{signature: Signature}
	for i := range d.slots {
		d.slots[i].inode = storage.NoAddress
	}
	self.writeDirectory(d)
}

// FindInode returns the inode address of name.
func (self *Fs) FindInode(name string) (storage.Address, error) {
	d := self.readDirectory()
	i := d.find(name)
	if i < 0 {
		return storage.NoAddress, errors.Wrapf(ErrNotFound, "%q", name)
	}
	return d.slots[i].inode, nil
}

// AddInode maps name to addr. If name already existed, the previous
// address is returned (and not freed); otherwise previous is
// storage.NoAddress.
func (self *Fs) AddInode(name string, addr storage.Address) (previous storage.Address, err error) {
	previous = storage.NoAddress
	if err = ValidateName(name); err != nil {
		return
	}
	if !addr.Valid(self.fat.DiskSize()) {
		mlog.Panicf("AddInode %q with address %d", name, int32(addr))
	}
	d := self.readDirectory()
	i := d.find(name)
	if i >= 0 {
		previous = d.slots[i].inode
	} else {
		for j := range d.slots {
			if !d.slots[j].used() {
				i = j
				break
			}
		}
		if i < 0 {
			err = errors.Wrapf(ErrDirectoryFull, "adding %q", name)
			return
		}
	}
	mlog.Printf2("fs/directory", "fs.AddInode %q = %v in slot %d (previous %v)", name, addr, i, previous)
	d.slots[i] = dirSlot{name: name, inode: addr}
	self.writeDirectory(d)
	return
}

// DeleteInode removes name from the directory, reporting whether it
// was there. The inode itself is left alone.
func (self *Fs) DeleteInode(name string) bool {
	d := self.readDirectory()
	i := d.find(name)
	if i < 0 {
		return false
	}
	mlog.Printf2("fs/directory", "fs.DeleteInode %q (slot %d)", name, i)
	d.slots[i] = dirSlot{inode: storage.NoAddress}
	self.writeDirectory(d)
	return true
}

// List returns the files in slot order.
func (self *Fs) List() []DirEntry {
	d := self.readDirectory()
	var entries []DirEntry
	for _, slot := range d.slots {
		if !slot.used() {
			continue
		}
		ino := self.ReadInode(slot.inode)
		entries = append(entries, DirEntry{Name: slot.name, Size: ino.Size, Inode: slot.inode})
	}
	return entries
}

// FreeSlots returns the number of unused directory slots.
func (self *Fs) FreeSlots() (n int) {
	d := self.readDirectory()
	for _, slot := range d.slots {
		if !slot.used() {
			n++
		}
	}
	return
}

// nameOf returns the name that maps to addr, if any.
func (self *Fs) nameOf(addr storage.Address) (string, bool) {
	d := self.readDirectory()
	for _, slot := range d.slots {
		if slot.used() && slot.inode == addr {
			return slot.name, true
		}
	}
	return "", false
}
