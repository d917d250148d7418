/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Wed Jan  3 14:54:09 2018 mstenber
 * Last modified: Thu Mar 14 10:12:40 2019 mstenber
 * Edit time:     21 min
 *
 */

package storage

import (
	"encoding/binary"
	"fmt"
)

// BlockSize is the size of every block on the volume, in bytes.
const BlockSize = 128

// Block is the atomic unit of storage.
type Block [BlockSize]byte

// Address is a 0-based block number within [0, disk size).
type Address int32

// NoAddress denotes 'no block'; it is used for empty chains and empty
// directory slots.
const NoAddress Address = -1

func (self Address) String() string {
	if self == NoAddress {
		return "<none>"
	}
	return fmt.Sprintf("#%d", int32(self))
}

// Valid reports whether the address falls within a disk of diskSize
// blocks.
func (self Address) Valid(diskSize int) bool {
	return self >= 0 && int(self) < diskSize
}

// Key is the key/value store key of the address (4 bytes, big endian
// so that keys sort in address order).
func (self Address) Key() []byte {
	k := make([]byte, 4)
	binary.BigEndian.PutUint32(k, uint32(self))
	return k
}

// Int32 reads little endian signed 32-bit value at offset ofs.
func (self *Block) Int32(ofs int) int32 {
	return int32(binary.LittleEndian.Uint32(self[ofs : ofs+4]))
}

// SetInt32 writes little endian signed 32-bit value at offset ofs.
func (self *Block) SetInt32(ofs int, v int32) {
	binary.LittleEndian.PutUint32(self[ofs:ofs+4], uint32(v))
}

func (self *Block) Clear() {
	*self = Block{}
}
