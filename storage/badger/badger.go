/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sat Dec 23 15:10:01 2017 mstenber
 * Last modified: Thu Mar 14 13:31:50 2019 mstenber
 * Edit time:     171 min
 *
 */

package badger

import (
	"github.com/dgraph-io/badger"
	"github.com/fingon/go-sgf/mlog"
	"github.com/fingon/go-sgf/storage"
)

// badgerBackend provides on-disk storage.
//
// - key prefix 1 + 4 byte address -> codec encoded block
// - key prefix 2 + geometry -> storage.Geometry
type badgerBackend struct {
	storage.DirectoryBackendBase
	db *badger.DB
}

var _ storage.Backend = &badgerBackend{}

var blockPrefix = []byte("1")
var metaPrefix = []byte("2")

func NewBadgerBackend() storage.Backend {
	self := &badgerBackend{}
	return self
}

// Init makes the instance actually useful
func (self *badgerBackend) Init(config storage.BackendConfiguration) {
	(&self.DirectoryBackendBase).Init(config)
	opts := badger.DefaultOptions
	opts.Dir = config.Directory
	opts.ValueDir = config.Directory
	db, err := badger.Open(opts)
	if err != nil {
		mlog.Panicf("badger.Open: %v", err)
	}
	self.db = db
	stored, err := self.getKKValue(metaPrefix, storage.GeometryKey())
	if err != nil && err != badger.ErrKeyNotFound {
		mlog.Panicf("badger get geometry: %v", err)
	}
	if g := self.SetupGeometry(stored); g != nil {
		self.setKKValue(metaPrefix, storage.GeometryKey(), g)
	}
}

func (self *badgerBackend) Close() {
	self.db.Close()
}

func (self *badgerBackend) getKKValue(prefix, suffix []byte) (v []byte, err error) {
	err = self.db.View(func(txn *badger.Txn) error {
		k := append(append([]byte(nil), prefix...), suffix...)
		i, err := txn.Get(k)
		if err == nil {
			v, err = i.ValueCopy(nil)
		}
		return err
	})
	return
}

func (self *badgerBackend) setKKValue(prefix, suffix, value []byte) {
	k := append(append([]byte(nil), prefix...), suffix...)
	err := self.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, value)
	})
	if err != nil {
		mlog.Panicf("badger set: %v", err)
	}
}

func (self *badgerBackend) ReadBlock(addr storage.Address, b *storage.Block) {
	self.CheckAddress(addr)
	bv, err := self.getKKValue(blockPrefix, addr.Key())
	if err == badger.ErrKeyNotFound {
		bv = nil
	} else if err != nil {
		mlog.Panicf("badger get %v: %v", addr, err)
	}
	self.DecodeBlock(addr, bv, b)
}

func (self *badgerBackend) WriteBlock(addr storage.Address, b *storage.Block) {
	self.CheckAddress(addr)
	mlog.Printf2("storage/badger/badger", "bad.WriteBlock %v", addr)
	self.setKKValue(blockPrefix, addr.Key(), self.EncodeBlock(addr, b))
}
