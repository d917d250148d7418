/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Jan  5 11:14:11 2018 mstenber
 * Last modified: Thu Mar 14 10:30:02 2019 mstenber
 * Edit time:     19 min
 *
 */

package storage

import "github.com/fingon/go-sgf/codec"

// BackendConfiguration is shared by all backends; each uses the
// parts it cares about.
type BackendConfiguration struct {
	// Directory is where on-disk backends keep their files.
	Directory string

	// DiskSize is the number of blocks. Zero means 'use whatever
	// the existing store says'; a fresh store needs it set.
	DiskSize int

	// Codec is applied by key/value backends to each stored
	// block. Nil means no transformation.
	Codec codec.Codec

	// CacheSize is the number of blocks kept by CachingBackend.
	CacheSize int
}

// Backend is the block device. It provides an API that returns
// results that are consistent with the previous calls: a block
// written is what the next read of the same address returns.
//
// Backends are synchronous, and treat both I/O failures and
// out-of-range addresses as fatal (they panic).
type Backend interface {
	// Init makes the instance actually useful
	Init(config BackendConfiguration)

	// Close the backend
	Close()

	// DiskSize returns the number of blocks.
	DiskSize() int

	// ReadBlock reads the block at addr to b. Never written
	// blocks read as zeros.
	ReadBlock(addr Address, b *Block)

	// WriteBlock persists b at addr.
	WriteBlock(addr Address, b *Block)
}
