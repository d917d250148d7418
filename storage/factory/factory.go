/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Jan  5 12:22:52 2018 mstenber
 * Last modified: Thu Mar 14 14:02:17 2019 mstenber
 * Edit time:     48 min
 *
 */

package factory

import (
	"fmt"
	"os"
	"sort"

	"github.com/fingon/go-sgf/codec"
	"github.com/fingon/go-sgf/mlog"
	"github.com/fingon/go-sgf/storage"
	"github.com/fingon/go-sgf/storage/badger"
	"github.com/fingon/go-sgf/storage/bolt"
	"github.com/fingon/go-sgf/storage/file"
	"github.com/fingon/go-sgf/storage/inmemory"
	"github.com/pkg/errors"
)

type factoryCallback func() storage.Backend

var backendFactories = map[string]factoryCallback{
	"inmemory": func() storage.Backend {
		return inmemory.NewInMemoryBackend()
	},
	"badger": func() storage.Backend {
		return badger.NewBadgerBackend()
	},
	"bolt": func() storage.Backend {
		return bolt.NewBoltBackend()
	},
	"file": func() storage.Backend {
		return file.NewFileBackend()
	}}

// storeFiles names the file each persistent backend creates within
// its directory.
var storeFiles = map[string]string{
	"badger": "MANIFEST",
	"bolt":   "bbolt.db",
	"file":   "sgf.img",
}

var ErrUnknownBackend = errors.New("unknown backend")

// Exists reports whether the named backend already has a non-empty
// store in dir. Such a store determines its own disk size.
func Exists(name, dir string) bool {
	fn, ok := storeFiles[name]
	if !ok {
		return false
	}
	fi, err := os.Stat(fmt.Sprintf("%s/%s", dir, fn))
	return err == nil && fi.Size() > 0
}

// List returns the backend names in sorted order.
func List() []string {
	keys := make([]string, 0, len(backendFactories))
	for k := range backendFactories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func New(name, dir string, diskSize int) (storage.Backend, error) {
	var config storage.BackendConfiguration
	config.Directory = dir
	config.DiskSize = diskSize
	return NewWithConfig(name, config)
}

// NewWithConfig creates and initializes the named backend. Non-zero
// CacheSize wraps it in storage.CachingBackend.
func NewWithConfig(name string, config storage.BackendConfiguration) (storage.Backend, error) {
	mlog.Printf2("storage/factory/factory", "f.NewWithConfig %v %v", name, config)
	cb, ok := backendFactories[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", name)
	}
	be := cb()
	be.Init(config)
	if config.CacheSize > 0 {
		be = storage.NewCachingBackend(be, config.CacheSize)
	}
	return be, nil
}

type CodecConfiguration struct {
	Password, Salt string
	Iterations     int

	// Deterministic selects AES-SIV instead of AES-GCM; rewriting
	// an unchanged block then produces the same stored bytes.
	Deterministic bool

	// Compress adds snappy compression below the encryption.
	Compress bool
}

// Codec builds the block codec described by the configuration; nil
// if it describes no transformation at all.
func (self CodecConfiguration) Codec() codec.Codec {
	iterations := self.Iterations
	if iterations == 0 {
		iterations = 12345
	}
	salt := self.Salt
	if salt == "" {
		salt = "asdf"
	}
	var codecs []codec.Codec
	if self.Password != "" {
		if self.Deterministic {
			mlog.Printf2("storage/factory/factory", " with deterministic encryption")
			codecs = append(codecs, codec.DeterministicEncryptingCodec{}.Init([]byte(self.Password), []byte(salt), iterations))
		} else {
			mlog.Printf2("storage/factory/factory", " with encryption")
			codecs = append(codecs, codec.EncryptingCodec{}.Init([]byte(self.Password), []byte(salt), iterations))
		}
	}
	if self.Compress {
		mlog.Printf2("storage/factory/factory", " with compression")
		codecs = append(codecs, &codec.CompressingCodec{})
	}
	if len(codecs) == 0 {
		return nil
	}
	return codec.CodecChain{}.Init(codecs...)
}
