/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Thu Dec 28 11:20:29 2017 mstenber
 * Last modified: Sun Mar 17 10:21:45 2019 mstenber
 * Edit time:     421 min
 *
 */

// fs package implements a flat single directory file system on top of
// a storage.Backend: block 0 is the directory, the FAT (see fat
// package) follows it, and every file is an inode block plus a chain
// of data blocks.
//
// Fs is a single owner handle created by Format or Mount. Nothing in
// here locks; callers must serialize all use of one Fs, including the
// handles opened from it. The FUSE adapter (NewOps) does that with a
// mutex of its own.
package fs

import (
	"bytes"
	"encoding/binary"
	"io/ioutil"

	"github.com/fingon/go-sgf/fat"
	"github.com/fingon/go-sgf/mlog"
	"github.com/fingon/go-sgf/storage"
	"github.com/pkg/errors"
)

type Fs struct {
	backend storage.Backend
	fat     *fat.Table
}

// Format creates an empty volume on the backend, discarding whatever
// was there.
func Format(backend storage.Backend) *Fs {
	mlog.Printf2("fs/fs", "fs.Format %d blocks", backend.DiskSize())
	self := &Fs{backend: backend}
	self.fat = fat.Format(backend)
	self.formatDirectory()
	return self
}

// Mount attaches to a volume created earlier by Format.
func Mount(backend storage.Backend) (*Fs, error) {
	var b storage.Block
	if backend.DiskSize() < 1 {
		return nil, errors.Wrapf(ErrNotFormatted, "empty disk")
	}
	backend.ReadBlock(fat.DirectoryAddress, &b)
	sig := binary.LittleEndian.Uint32(b[:signatureSize])
	if sig != Signature {
		return nil, errors.Wrapf(ErrNotFormatted, "signature %x", sig)
	}
	mlog.Printf2("fs/fs", "fs.Mount %d blocks", backend.DiskSize())
	return &Fs{backend: backend, fat: fat.Open(backend)}, nil
}

// Close closes the backend. Handles must be closed before.
func (self *Fs) Close() {
	mlog.Printf2("fs/fs", "fs.Close")
	self.backend.Close()
}

func (self *Fs) FAT() *fat.Table {
	return self.fat
}

func (self *Fs) Backend() storage.Backend {
	return self.backend
}

// FreeBlocks is the number of blocks available for inodes and data.
func (self *Fs) FreeBlocks() int {
	return self.fat.CountFree()
}

// Delete releases the inode and data blocks of name and removes it
// from the directory. A corrupt chain is fatal and leaves both intact.
func (self *Fs) Delete(name string) error {
	addr, err := self.FindInode(name)
	if err != nil {
		return err
	}
	mlog.Printf2("fs/fs", "fs.Delete %q %v", name, addr)
	self.FreeInode(addr)
	self.DeleteInode(name)
	return nil
}

func (self *Fs) Stat(name string) (DirEntry, error) {
	addr, err := self.FindInode(name)
	if err != nil {
		return DirEntry{}, err
	}
	ino := self.ReadInode(addr)
	return DirEntry{Name: name, Size: ino.Size, Inode: addr}, nil
}

func (self *Fs) ReadFile(name string) ([]byte, error) {
	r, err := self.OpenReader(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ioutil.ReadAll(r)
}

// WriteFile replaces the content of name with data. On ErrNoSpace
// the file keeps the part that fit.
func (self *Fs) WriteFile(name string, data []byte) error {
	w, err := self.OpenWriter(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	cerr := w.Close()
	if err == nil {
		err = cerr
	}
	return err
}

// String is a human readable dump of the directory and the FAT.
func (self *Fs) String() string {
	var buf bytes.Buffer
	for _, e := range self.List() {
		chain, err := self.fat.Chain(self.ReadInode(e.Inode).First)
		buf.WriteString(e.Name)
		buf.WriteString(": ")
		buf.WriteString(e.Inode.String())
		for _, a := range chain {
			buf.WriteString(" ")
			buf.WriteString(a.String())
		}
		if err != nil {
			buf.WriteString(" (")
			buf.WriteString(err.Error())
			buf.WriteString(")")
		}
		buf.WriteString("\n")
	}
	return buf.String()
}
