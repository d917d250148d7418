/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Wed Jan  3 15:44:41 2018 mstenber
 * Last modified: Thu Mar 14 12:41:19 2019 mstenber
 * Edit time:     97 min
 *
 */

package file

import (
	"fmt"
	"os"

	"github.com/fingon/go-sgf/mlog"
	"github.com/fingon/go-sgf/storage"
)

const imageName = "sgf.img"

// fileBackend stores the blocks in a single raw image file within the
// directory; block n lives at byte offset n * BlockSize. The image is
// exactly the on-disk layout, so the codec is not applied.
//
// Disk size of an existing image is derived from its length.
type fileBackend struct {
	storage.DirectoryBackendBase
	f *os.File
}

var _ storage.Backend = &fileBackend{}

func NewFileBackend() storage.Backend {
	return &fileBackend{}
}

// Init makes the instance actually useful
func (self *fileBackend) Init(config storage.BackendConfiguration) {
	(&self.DirectoryBackendBase).Init(config)
	path := fmt.Sprintf("%s/%s", config.Directory, imageName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		mlog.Panicf("unable to open %v: %v", path, err)
	}
	self.f = f
	fi, err := f.Stat()
	if err != nil {
		mlog.Panicf("unable to stat %v: %v", path, err)
	}
	size := fi.Size()
	if size%storage.BlockSize != 0 {
		mlog.Panicf("%v is not multiple of block size (%d bytes)", path, size)
	}
	if size == 0 {
		if config.DiskSize <= 0 {
			mlog.Panicf("no disk size configured for fresh image %v", path)
		}
		err = f.Truncate(int64(config.DiskSize) * storage.BlockSize)
		if err != nil {
			mlog.Panicf("unable to size %v: %v", path, err)
		}
		mlog.Printf2("storage/file", "fb.Init created %v with %d blocks", path, config.DiskSize)
		return
	}
	blocks := int(size / storage.BlockSize)
	if config.DiskSize != 0 && config.DiskSize != blocks {
		mlog.Panicf("disk size mismatch: %v has %d blocks, configured %d", path, blocks, config.DiskSize)
	}
	self.BackendConfiguration.DiskSize = blocks
	mlog.Printf2("storage/file", "fb.Init opened %v with %d blocks", path, blocks)
}

func (self *fileBackend) Close() {
	if err := self.f.Close(); err != nil {
		mlog.Panicf("close failed: %v", err)
	}
}

func (self *fileBackend) ReadBlock(addr storage.Address, b *storage.Block) {
	self.CheckAddress(addr)
	_, err := self.f.ReadAt(b[:], int64(addr)*storage.BlockSize)
	if err != nil {
		mlog.Panicf("read of %v failed: %v", addr, err)
	}
}

func (self *fileBackend) WriteBlock(addr storage.Address, b *storage.Block) {
	self.CheckAddress(addr)
	mlog.Printf2("storage/file", "fb.WriteBlock %v", addr)
	_, err := self.f.WriteAt(b[:], int64(addr)*storage.BlockSize)
	if err != nil {
		mlog.Panicf("write of %v failed: %v", addr, err)
	}
}
