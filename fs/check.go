/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sun Mar 17 10:30:12 2019 mstenber
 * Last modified: Sun Mar 17 12:48:09 2019 mstenber
 * Edit time:     83 min
 *
 */

package fs

import (
	"fmt"
	"strings"

	"github.com/fingon/go-sgf/fat"
	"github.com/fingon/go-sgf/mlog"
	"github.com/fingon/go-sgf/storage"
)

// CheckError lists the problems Check found.
type CheckError struct {
	Problems []string
}

func (self *CheckError) Error() string {
	return fmt.Sprintf("%d problem(s): %s", len(self.Problems), strings.Join(self.Problems, "; "))
}

func (self *CheckError) add(format string, args ...interface{}) {
	p := fmt.Sprintf(format, args...)
	mlog.Printf2("fs/check", " %s", p)
	self.Problems = append(self.Problems, p)
}

// Check verifies the structure of the volume: the directory, every
// inode and its chain, and that each block of the FAT is accounted
// for exactly once. It does not modify anything, and corruption is
// reported rather than fatal.
//
// Open writers make the volume inconsistent until they are closed.
func (self *Fs) Check() error {
	mlog.Printf2("fs/check", "fs.Check")
	ce := &CheckError{}
	diskSize := self.fat.DiskSize()
	reserved := self.fat.ReservedBlocks()

	entries := make([]fat.Entry, diskSize)
	for i := 0; i < diskSize; i++ {
		addr := storage.Address(i)
		e, err := self.fat.Lookup(addr)
		if err != nil {
			ce.add("%v: %v", addr, err)
			continue
		}
		entries[i] = e
		if (i < reserved) != (e == fat.Reserved) {
			ce.add("%v: %v (reserved region is %d blocks)", addr, e, reserved)
		}
	}

	d := self.readDirectory()
	if d.signature != Signature {
		ce.add("directory signature %x", d.signature)
	}

	owner := make(map[storage.Address]string)
	own := func(addr storage.Address, name string) {
		if o, ok := owner[addr]; ok {
			ce.add("%v owned by both %q and %q", addr, o, name)
			return
		}
		owner[addr] = name
	}
	names := make(map[string]bool)
	for i, slot := range d.slots {
		if !slot.used() {
			if slot.inode != storage.NoAddress {
				ce.add("slot %d: address %d", i, int32(slot.inode))
			}
			continue
		}
		if err := ValidateName(slot.name); err != nil {
			ce.add("slot %d: %v", i, err)
		}
		if names[slot.name] {
			ce.add("slot %d: duplicate name %q", i, slot.name)
		}
		names[slot.name] = true
		if int(slot.inode) < reserved || int(slot.inode) >= diskSize {
			ce.add("%q: inode address %d out of range", slot.name, int32(slot.inode))
			continue
		}
		own(slot.inode, slot.name)
		if entries[slot.inode] != fat.Inode {
			ce.add("%q: inode %v is %v in FAT", slot.name, slot.inode, entries[slot.inode])
			continue
		}
		self.checkInode(ce, slot.name, slot.inode, own)
	}

	for i := reserved; i < diskSize; i++ {
		addr := storage.Address(i)
		if entries[i] == fat.Free {
			continue
		}
		if _, ok := owner[addr]; !ok {
			ce.add("%v: %v but not owned by any file", addr, entries[i])
		}
	}

	if len(ce.Problems) > 0 {
		return ce
	}
	return nil
}

func (self *Fs) checkInode(ce *CheckError, name string, addr storage.Address, own func(storage.Address, string)) {
	ino := self.ReadInode(addr)
	if ino.Size < 0 {
		ce.add("%q: negative size %v", name, ino)
		return
	}
	if (ino.Size == 0) != (ino.First == storage.NoAddress) {
		ce.add("%q: %v", name, ino)
		return
	}
	chain, err := self.fat.Chain(ino.First)
	for _, a := range chain {
		own(a, name)
	}
	if err != nil {
		ce.add("%q: %v", name, err)
		return
	}
	if len(chain) != ino.Blocks() {
		ce.add("%q: chain of %d blocks for %v", name, len(chain), ino)
	}
	last := storage.NoAddress
	if len(chain) > 0 {
		last = chain[len(chain)-1]
	}
	if last != ino.Last {
		ce.add("%q: chain ends at %v, %v", name, last, ino)
	}
}
