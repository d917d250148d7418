/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Fri Mar 15 09:12:03 2019 mstenber
 * Last modified: Fri Mar 15 10:01:44 2019 mstenber
 * Edit time:     31 min
 *
 */

package fat

import (
	"fmt"

	"github.com/fingon/go-sgf/storage"
	"github.com/pkg/errors"
)

type Kind byte

const (
	KindFree Kind = iota
	KindReserved
	KindInode
	KindEndOfChain
	KindNext
)

// On-disk sentinel values; non-negative values are next addresses.
const (
	diskFree       int32 = -1
	diskReserved   int32 = -2
	diskInode      int32 = -3
	diskEndOfChain int32 = -4
)

// Entry is the value of one FAT slot: Free, Reserved, Inode,
// EndOfChain or Next(address).
type Entry struct {
	kind Kind
	next storage.Address
}

var (
	Free       = Entry{kind: KindFree}
	Reserved   = Entry{kind: KindReserved}
	Inode      = Entry{kind: KindInode}
	EndOfChain = Entry{kind: KindEndOfChain}
)

func Next(addr storage.Address) Entry {
	if addr < 0 {
		panic(fmt.Sprintf("fat.Next with negative address %d", int32(addr)))
	}
	return Entry{kind: KindNext, next: addr}
}

func (self Entry) Kind() Kind {
	return self.kind
}

// Next returns the following block of the chain, if the entry has one.
func (self Entry) Next() (storage.Address, bool) {
	return self.next, self.kind == KindNext
}

func (self Entry) String() string {
	switch self.kind {
	case KindFree:
		return "FREE"
	case KindReserved:
		return "RESERVED"
	case KindInode:
		return "INODE"
	case KindEndOfChain:
		return "EOF"
	}
	return fmt.Sprintf("->%d", int32(self.next))
}

func (self Entry) Encode() int32 {
	switch self.kind {
	case KindFree:
		return diskFree
	case KindReserved:
		return diskReserved
	case KindInode:
		return diskInode
	case KindEndOfChain:
		return diskEndOfChain
	}
	return int32(self.next)
}

var ErrUndecodable = errors.New("undecodable FAT entry")

func DecodeEntry(v int32) (Entry, error) {
	switch v {
	case diskFree:
		return Free, nil
	case diskReserved:
		return Reserved, nil
	case diskInode:
		return Inode, nil
	case diskEndOfChain:
		return EndOfChain, nil
	}
	if v < 0 {
		return Entry{}, errors.Wrapf(ErrUndecodable, "%d", v)
	}
	return Next(storage.Address(v)), nil
}
