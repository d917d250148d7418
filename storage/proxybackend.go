/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Sat Jan  6 00:08:05 2018 mstenber
 * Last modified: Thu Mar 14 11:20:13 2019 mstenber
 * Edit time:     9 min
 *
 */

package storage

import "github.com/fingon/go-sgf/mlog"

// ProxyBackend passes everything through to Backend; it is intended
// to be embedded by wrappers that override some of the calls.
type ProxyBackend struct {
	Backend Backend
}

var _ Backend = &ProxyBackend{}

// Init makes the instance actually useful
func (self *ProxyBackend) Init(config BackendConfiguration) {
	self.Backend.Init(config)
}

func (self *ProxyBackend) Close() {
	mlog.Printf2("storage/proxybackend", "proxying backend Close()")
	self.Backend.Close()
}

func (self *ProxyBackend) DiskSize() int {
	return self.Backend.DiskSize()
}

func (self *ProxyBackend) ReadBlock(addr Address, b *Block) {
	self.Backend.ReadBlock(addr, b)
}

func (self *ProxyBackend) WriteBlock(addr Address, b *Block) {
	self.Backend.WriteBlock(addr, b)
}
