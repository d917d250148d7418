/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Tue Jan  2 10:07:37 2018 mstenber
 * Last modified: Sat Mar 16 17:55:02 2019 mstenber
 * Edit time:     161 min
 *
 */

package fs

import (
	"io"
	"math"

	"github.com/fingon/go-sgf/fat"
	"github.com/fingon/go-sgf/mlog"
	"github.com/fingon/go-sgf/storage"
	"github.com/fingon/go-sgf/util"
	"github.com/pkg/errors"
)

// fileHandle is the state shared by Reader and Writer: a copy of the
// inode, the cursor and the block under it.
type fileHandle struct {
	fs     *Fs
	addr   storage.Address
	inode  Inode
	cursor int32
	buf    storage.Block
	block  storage.Address // in buf; NoAddress if none
	closed bool
}

func (self *fileHandle) init(fs *Fs, addr storage.Address) {
	self.fs = fs
	self.addr = addr
	self.inode = fs.ReadInode(addr)
	self.block = storage.NoAddress
}

func (self *fileHandle) load(addr storage.Address) {
	self.fs.backend.ReadBlock(addr, &self.buf)
	self.block = addr
}

// Size returns the size of the file as seen by the handle.
func (self *fileHandle) Size() int64 {
	return int64(self.inode.Size)
}

// Reader is a read-only open file. It implements io.Reader,
// io.ByteReader and io.Seeker.
type Reader struct {
	fileHandle
}

var _ io.ReadSeeker = &Reader{}
var _ io.ByteReader = &Reader{}

// OpenReader opens name for reading, with the first block (if any)
// loaded.
func (self *Fs) OpenReader(name string) (*Reader, error) {
	addr, err := self.FindInode(name)
	if err != nil {
		return nil, err
	}
	r := &Reader{}
	r.init(self, addr)
	mlog.Printf2("fs/fh", "fs.OpenReader %q %v", name, r.inode)
	if r.inode.Size > 0 {
		if r.inode.First == storage.NoAddress {
			mlog.Panicf("%q: %v without blocks", name, r.inode)
		}
		r.load(r.inode.First)
	}
	return r, nil
}

// advance moves the cursor n bytes forward within the loaded block,
// loading the next block of the chain when the cursor enters it.
func (self *Reader) advance(n int) {
	self.cursor += int32(n)
	if self.cursor%blockSize != 0 || self.cursor >= self.inode.Size {
		return
	}
	e := self.fs.fat.Get(self.block)
	next, ok := e.Next()
	if !ok {
		mlog.Panicf("chain of inode %v ends at %v (%v) at %d of %d bytes",
			self.addr, self.block, e, self.cursor, self.inode.Size)
	}
	self.load(next)
}

func (self *Reader) ReadByte() (byte, error) {
	if self.closed {
		return 0, ErrClosed
	}
	if self.cursor >= self.inode.Size {
		return 0, io.EOF
	}
	c := self.buf[self.cursor%blockSize]
	self.advance(1)
	return c, nil
}

func (self *Reader) Read(p []byte) (n int, err error) {
	if self.closed {
		return 0, ErrClosed
	}
	for n < len(p) {
		left := int(self.inode.Size - self.cursor)
		if left <= 0 {
			if n == 0 {
				err = io.EOF
			}
			return
		}
		ofs := int(self.cursor % blockSize)
		l := util.IMin(len(p)-n, blockSize-ofs, left)
		copy(p[n:n+l], self.buf[ofs:ofs+l])
		n += l
		self.advance(l)
	}
	return
}

// Seek moves the cursor within [0, size]. The chain is walked from
// the first block and only the target block is loaded.
func (self *Reader) Seek(offset int64, whence int) (int64, error) {
	if self.closed {
		return 0, ErrClosed
	}
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(self.cursor) + offset
	case io.SeekEnd:
		pos = int64(self.inode.Size) + offset
	default:
		return int64(self.cursor), errors.Wrapf(ErrSeekOutOfRange, "whence %d", whence)
	}
	if pos < 0 || pos > int64(self.inode.Size) {
		return int64(self.cursor), errors.Wrapf(ErrSeekOutOfRange, "%d not in [0, %d]", pos, self.inode.Size)
	}
	mlog.Printf2("fs/fh", "r.Seek %v to %d", self.addr, pos)
	self.cursor = int32(pos)
	if self.cursor == self.inode.Size {
		self.block = storage.NoAddress
		return pos, nil
	}
	addr := self.inode.First
	for hops := pos / blockSize; hops > 0; hops-- {
		e := self.fs.fat.Get(addr)
		next, ok := e.Next()
		if !ok {
			mlog.Panicf("chain of inode %v ends at %v (%v), %d hops short", self.addr, addr, e, hops)
		}
		addr = next
	}
	if addr != self.block {
		self.load(addr)
	}
	return pos, nil
}

func (self *Reader) Close() error {
	if self.closed {
		return ErrClosed
	}
	self.closed = true
	return nil
}

// Writer is a write-only, append-only open file. It implements
// io.Writer, io.ByteWriter and io.StringWriter.
type Writer struct {
	fileHandle
	dirty bool
}

var _ io.WriteCloser = &Writer{}
var _ io.ByteWriter = &Writer{}

// OpenWriter opens name for writing from the start. An existing file
// keeps its inode but loses its content; a new one gets a fresh inode.
func (self *Fs) OpenWriter(name string) (*Writer, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	addr, err := self.FindInode(name)
	if err == nil {
		mlog.Printf2("fs/fh", "fs.OpenWriter %q truncating %v", name, addr)
		self.truncateInode(addr)
	} else {
		addr, err = self.NewInode()
		if err != nil {
			return nil, err
		}
		_, err = self.AddInode(name, addr)
		if err != nil {
			self.FreeInode(addr)
			return nil, err
		}
		mlog.Printf2("fs/fh", "fs.OpenWriter %q new %v", name, addr)
	}
	w := &Writer{}
	w.init(self, addr)
	return w, nil
}

// flush writes the buffered block and the inode.
func (self *Writer) flush() {
	mlog.Printf2("fs/fh", "w.flush %v block %v", self.addr, self.block)
	self.fs.backend.WriteBlock(self.block, &self.buf)
	self.fs.WriteInode(self.addr, self.inode)
	self.dirty = false
}

// extend links a fresh block to the end of the chain and makes it
// the buffered block.
func (self *Writer) extend() error {
	if self.dirty {
		self.flush()
	}
	addr, err := self.fs.fat.Allocate()
	if err != nil {
		return err
	}
	self.fs.fat.Set(addr, fat.EndOfChain)
	if self.inode.Last == storage.NoAddress {
		self.inode.First = addr
	} else {
		self.fs.fat.Set(self.inode.Last, fat.Next(addr))
	}
	self.inode.Last = addr
	self.buf.Clear()
	self.block = addr
	return nil
}

func (self *Writer) WriteByte(c byte) error {
	if self.closed {
		return ErrClosed
	}
	if self.cursor == math.MaxInt32 {
		return errors.Wrapf(ErrNoSpace, "file size limit")
	}
	ofs := self.cursor % blockSize
	if ofs == 0 {
		if err := self.extend(); err != nil {
			return err
		}
	}
	self.buf[ofs] = c
	self.dirty = true
	self.cursor++
	self.inode.Size = self.cursor
	return nil
}

func (self *Writer) Write(p []byte) (n int, err error) {
	for _, c := range p {
		if err = self.WriteByte(c); err != nil {
			return
		}
		n++
	}
	return
}

func (self *Writer) WriteString(s string) (n int, err error) {
	return self.Write([]byte(s))
}

func (self *Writer) Close() error {
	if self.closed {
		return ErrClosed
	}
	if self.dirty {
		self.flush()
	}
	self.closed = true
	mlog.Printf2("fs/fh", "w.Close %v %v", self.addr, self.inode)
	return nil
}
