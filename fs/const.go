/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Fri Dec 29 09:19:42 2017 mstenber
 * Last modified: Sat Mar 16 10:02:31 2019 mstenber
 * Edit time:     22 min
 *
 */

package fs

import (
	"github.com/fingon/go-sgf/fat"
	"github.com/fingon/go-sgf/storage"
	"github.com/pkg/errors"
)

const blockSize = storage.BlockSize

// Directory block layout: signature, then entries of NUL padded name,
// alignment padding and inode address.
const (
	Signature uint32 = 0xAA88FF33

	signatureSize    = 4
	NameSize         = 10
	dirEntryPadding  = 2
	dirEntrySize     = NameSize + dirEntryPadding + 4
	DirectoryEntries = (blockSize - signatureSize) / dirEntrySize
)

// Inode block layout: size, first, last.
const (
	inodeSizeOffset  = 0
	inodeFirstOffset = 4
	inodeLastOffset  = 8
)

// FUSE cache validity (seconds)
const attrValidity = 1
const entryValidity = 1

var (
	ErrNotFound       = errors.New("file not found")
	ErrDirectoryFull  = errors.New("directory full")
	ErrNoSpace        = fat.ErrNoSpace
	ErrSeekOutOfRange = errors.New("seek out of range")
	ErrClosed         = errors.New("file already closed")
	ErrInvalidName    = errors.New("invalid file name")
	ErrNotFormatted   = errors.New("volume not formatted")
)
