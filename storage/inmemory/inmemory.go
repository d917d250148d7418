/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sun Dec 17 22:20:08 2017 mstenber
 * Last modified: Thu Mar 14 12:10:44 2019 mstenber
 * Edit time:     79 min
 *
 */

package inmemory

import (
	"github.com/fingon/go-sgf/mlog"
	"github.com/fingon/go-sgf/storage"
	"github.com/fingon/go-sgf/util"
)

// inMemoryBackend provides In-memory storage; data is always
// assumed to be available and is just stored in a map. Unwritten
// blocks read as zeros.
type inMemoryBackend struct {
	diskSize int
	blocks   map[storage.Address]*storage.Block
	lock     util.MutexLocked
}

var _ storage.Backend = &inMemoryBackend{}

func NewInMemoryBackend() storage.Backend {
	return &inMemoryBackend{}
}

// Init makes the instance actually useful
func (self *inMemoryBackend) Init(config storage.BackendConfiguration) {
	if config.DiskSize <= 0 {
		mlog.Panicf("inmemory backend needs disk size, got %d", config.DiskSize)
	}
	self.diskSize = config.DiskSize
	self.blocks = make(map[storage.Address]*storage.Block)
}

func (self *inMemoryBackend) Close() {
}

func (self *inMemoryBackend) DiskSize() int {
	return self.diskSize
}

func (self *inMemoryBackend) ReadBlock(addr storage.Address, b *storage.Block) {
	storage.CheckAddress(addr, self.diskSize)
	defer self.lock.Locked()()
	if ob := self.blocks[addr]; ob != nil {
		*b = *ob
		return
	}
	b.Clear()
}

func (self *inMemoryBackend) WriteBlock(addr storage.Address, b *storage.Block) {
	storage.CheckAddress(addr, self.diskSize)
	defer self.lock.Locked()()
	mlog.Printf2("storage/inmemory", "im.WriteBlock %v", addr)
	nb := *b
	self.blocks[addr] = &nb
}
