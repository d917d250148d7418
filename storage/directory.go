/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Wed Jan  3 15:55:15 2018 mstenber
 * Last modified: Thu Mar 14 11:02:51 2019 mstenber
 * Edit time:     64 min
 *
 */

package storage

import (
	"os"

	"github.com/fingon/go-sgf/mlog"
	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"
)

// Geometry is the self-description key/value stores keep next to
// the blocks, so that a store is not reopened with a different shape.
type Geometry struct {
	BlockSize int
	DiskSize  int
}

var geometryKey = []byte("geometry")

// GeometryKey is the key under which key/value backends store the
// encoded Geometry. Block keys are 4 bytes long, so it never collides.
func GeometryKey() []byte {
	return geometryKey
}

func (self Geometry) Encode() []byte {
	var bh codec.CborHandle
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, &bh)
	if err := enc.Encode(self); err != nil {
		mlog.Panicf("geometry encode failed: %v", err)
	}
	return buf
}

func DecodeGeometry(b []byte) (g Geometry, err error) {
	var bh codec.CborHandle
	dec := codec.NewDecoderBytes(b, &bh)
	err = errors.Wrap(dec.Decode(&g), "geometry decode")
	return
}

// DirectoryBackendBase is the shared part of backends that keep their
// data within a directory. It checks addresses, runs the configured
// codec and reconciles the configured disk size with the stored
// geometry.
type DirectoryBackendBase struct {
	BackendConfiguration
}

func (self *DirectoryBackendBase) Init(config BackendConfiguration) {
	self.BackendConfiguration = config
	if config.Directory != "" {
		if err := os.MkdirAll(config.Directory, 0700); err != nil {
			mlog.Panicf("unable to create %v: %v", config.Directory, err)
		}
	}
}

func (self *DirectoryBackendBase) DiskSize() int {
	return self.BackendConfiguration.DiskSize
}

// SetupGeometry reconciles the stored geometry (nil if there is none)
// with the configuration. It returns the encoded geometry if it has
// to be stored.
func (self *DirectoryBackendBase) SetupGeometry(stored []byte) []byte {
	if stored == nil {
		if self.BackendConfiguration.DiskSize <= 0 {
			mlog.Panicf("no disk size configured for fresh store at %v", self.Directory)
		}
		g := Geometry{BlockSize: BlockSize, DiskSize: self.BackendConfiguration.DiskSize}
		mlog.Printf2("storage/directory", "dbb.SetupGeometry new %v", g)
		return g.Encode()
	}
	g, err := DecodeGeometry(stored)
	if err != nil {
		mlog.Panicf("corrupt geometry at %v: %v", self.Directory, err)
	}
	mlog.Printf2("storage/directory", "dbb.SetupGeometry stored %v", g)
	if g.BlockSize != BlockSize {
		mlog.Panicf("block size mismatch: stored %d, want %d", g.BlockSize, BlockSize)
	}
	if self.BackendConfiguration.DiskSize != 0 && self.BackendConfiguration.DiskSize != g.DiskSize {
		mlog.Panicf("disk size mismatch: stored %d, configured %d", g.DiskSize, self.BackendConfiguration.DiskSize)
	}
	self.BackendConfiguration.DiskSize = g.DiskSize
	return nil
}

// CheckAddress aborts on addresses outside the disk.
func (self *DirectoryBackendBase) CheckAddress(addr Address) {
	CheckAddress(addr, self.BackendConfiguration.DiskSize)
}

// EncodeBlock produces the stored form of a block.
func (self *DirectoryBackendBase) EncodeBlock(addr Address, b *Block) []byte {
	data := b[:]
	if self.Codec == nil {
		return append([]byte(nil), data...)
	}
	enc, err := self.Codec.EncodeBytes(data, addr.Key())
	if err != nil {
		mlog.Panicf("encoding %v failed: %v", addr, err)
	}
	return enc
}

// DecodeBlock fills b from stored form; nil data is an unwritten
// block (zeros).
func (self *DirectoryBackendBase) DecodeBlock(addr Address, data []byte, b *Block) {
	if data == nil {
		b.Clear()
		return
	}
	if self.Codec != nil {
		dec, err := self.Codec.DecodeBytes(data, addr.Key())
		if err != nil {
			mlog.Panicf("decoding %v failed: %v", addr, err)
		}
		data = dec
	}
	if len(data) != BlockSize {
		mlog.Panicf("stored %v has %d bytes", addr, len(data))
	}
	copy(b[:], data)
}

// CheckAddress aborts on addresses outside [0, diskSize).
func CheckAddress(addr Address, diskSize int) {
	if !addr.Valid(diskSize) {
		mlog.Panicf("block address %d outside [0, %d)", int32(addr), diskSize)
	}
}
