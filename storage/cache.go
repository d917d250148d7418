/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Mar 14 11:21:40 2019 mstenber
 * Last modified: Thu Mar 14 11:58:12 2019 mstenber
 * Edit time:     26 min
 *
 */

package storage

import (
	"github.com/bluele/gcache"
	"github.com/fingon/go-sgf/mlog"
)

const defaultCacheSize = 64

// CachingBackend keeps recently used blocks in an ARC cache. It is
// write-through: WriteBlock reaches the underlying backend before it
// returns, so the cache never holds anything the backend does not.
type CachingBackend struct {
	ProxyBackend
	cache gcache.Cache

	Hits, Misses int
}

var _ Backend = &CachingBackend{}

// NewCachingBackend wraps an already initialized backend.
func NewCachingBackend(backend Backend, size int) *CachingBackend {
	if size <= 0 {
		size = defaultCacheSize
	}
	self := &CachingBackend{cache: gcache.New(size).ARC().Build()}
	self.Backend = backend
	return self
}

func (self *CachingBackend) ReadBlock(addr Address, b *Block) {
	v, err := self.cache.Get(addr)
	if err == nil {
		self.Hits++
		*b = *(v.(*Block))
		return
	}
	self.Misses++
	self.Backend.ReadBlock(addr, b)
	self.store(addr, b)
}

func (self *CachingBackend) WriteBlock(addr Address, b *Block) {
	self.Backend.WriteBlock(addr, b)
	self.store(addr, b)
}

func (self *CachingBackend) Close() {
	mlog.Printf2("storage/cache", "cb.Close hits:%d misses:%d", self.Hits, self.Misses)
	self.cache.Purge()
	self.Backend.Close()
}

func (self *CachingBackend) store(addr Address, b *Block) {
	nb := *b
	if err := self.cache.Set(addr, &nb); err != nil {
		mlog.Panicf("cache set failed: %v", err)
	}
}
