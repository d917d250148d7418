/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Wed Jan  3 22:49:15 2018 mstenber
 * Last modified: Thu Mar 14 13:05:29 2019 mstenber
 * Edit time:     52 min
 *
 */

package bolt

import (
	"fmt"

	bbolt "github.com/coreos/bbolt"

	"github.com/fingon/go-sgf/mlog"
	"github.com/fingon/go-sgf/storage"
)

var blockKey = []byte("block")
var metaKey = []byte("meta")

// boltBackend provides on-disk storage.
//
// - bucket block: 4 byte address -> codec encoded block
// - bucket meta: geometry -> storage.Geometry
type boltBackend struct {
	storage.DirectoryBackendBase

	db *bbolt.DB
}

var _ storage.Backend = &boltBackend{}

func NewBoltBackend() storage.Backend {
	self := &boltBackend{}
	return self
}

// Init makes the instance actually useful
func (self *boltBackend) Init(config storage.BackendConfiguration) {
	dir := config.Directory
	(&self.DirectoryBackendBase).Init(config)
	db, err := bbolt.Open(fmt.Sprintf("%s/bbolt.db", dir), 0600, nil)
	if err != nil {
		mlog.Panicf("bbolt.Open: %v", err)
	}
	self.db = db
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blockKey)
		if err != nil {
			return err
		}
		mb, err := tx.CreateBucketIfNotExists(metaKey)
		if err != nil {
			return err
		}
		var stored []byte
		if v := mb.Get(storage.GeometryKey()); v != nil {
			stored = append(stored, v...)
		}
		if g := self.SetupGeometry(stored); g != nil {
			return mb.Put(storage.GeometryKey(), g)
		}
		return nil
	})
	if err != nil {
		mlog.Panicf("bbolt init: %v", err)
	}
}

func (self *boltBackend) Close() {
	self.db.Close()
}

func (self *boltBackend) ReadBlock(addr storage.Address, b *storage.Block) {
	self.CheckAddress(addr)
	var v []byte
	err := self.db.View(func(tx *bbolt.Tx) error {
		// bolt values are valid only within the transaction
		if bv := tx.Bucket(blockKey).Get(addr.Key()); bv != nil {
			v = append([]byte(nil), bv...)
		}
		return nil
	})
	if err != nil {
		mlog.Panicf("bbolt read %v: %v", addr, err)
	}
	self.DecodeBlock(addr, v, b)
}

func (self *boltBackend) WriteBlock(addr storage.Address, b *storage.Block) {
	self.CheckAddress(addr)
	mlog.Printf2("storage/bolt/bolt", "bbolt.WriteBlock %v", addr)
	data := self.EncodeBlock(addr, b)
	err := self.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(blockKey).Put(addr.Key(), data)
	})
	if err != nil {
		mlog.Panicf("bbolt write %v: %v", addr, err)
	}
}
