/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Fri Dec 29 15:39:36 2017 mstenber
 * Last modified: Sun Mar 17 16:40:11 2019 mstenber
 * Edit time:     131 min
 *
 */

package fs

import (
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/fingon/go-sgf/mlog"
	"github.com/hanwen/go-fuse/fuse"
)

// ioChunk is how much FSUser moves per Read/Write call; the kernel
// does not hand out more either.
const ioChunk = 4096

// s2e converts a fuse status to syscall.Errno so that callers can
// compare against the usual errno values.
func s2e(status fuse.Status) error {
	if !status.Ok() {
		return syscall.Errno(status)
	}
	return nil
}

// FSUser provides ~os module functionality across the fuse APIs
// returned by NewOps, without mounting anything.
type FSUser struct {
	fuse.InHeader
	ops fuse.RawFileSystem
	fs  *Fs
}

type fileInfo struct {
	name  string
	size  int64
	mode  os.FileMode
	inode uint64
}

func (self *fileInfo) Name() string {
	return self.name
}

func (self *fileInfo) Size() int64 {
	return self.size
}

func (self *fileInfo) Mode() os.FileMode {
	return self.mode
}

func (self *fileInfo) ModTime() time.Time {
	return time.Time{}
}

func (self *fileInfo) IsDir() bool {
	return self.Mode().IsDir()
}

// Sys returns the node id (the inode address for files).
func (self *fileInfo) Sys() interface{} {
	return self.inode
}

func fileModeFromFuse(mode uint32) os.FileMode {
	r := os.FileMode(mode) & os.ModePerm
	if mode&syscall.S_IFMT == syscall.S_IFDIR {
		r |= os.ModeDir
	}
	return r
}

func NewFSUser(fs *Fs) *FSUser {
	return &FSUser{ops: NewOps(fs), fs: fs}
}

// lookup resolves path (a file name, optionally with a leading '/',
// or the root itself) and leaves NodeId pointing at the result.
func (self *FSUser) lookup(path string, eo *fuse.EntryOut) error {
	name := strings.TrimPrefix(path, "/")
	if name == "" {
		name = "."
	}
	self.NodeId = fuse.FUSE_ROOT_ID
	err := s2e(self.ops.Lookup(&self.InHeader, name, eo))
	if err != nil {
		return err
	}
	self.NodeId = eo.NodeId
	return nil
}

// ListDir returns the names in the root directory, '.' and '..'
// excluded.
func (self *FSUser) ListDir() (ret []string, err error) {
	self.NodeId = fuse.FUSE_ROOT_ID
	var oo fuse.OpenOut
	err = s2e(self.ops.OpenDir(&fuse.OpenIn{InHeader: self.InHeader}, &oo))
	if err != nil {
		return
	}
	defer self.ops.ReleaseDir(&fuse.ReleaseIn{Fh: oo.Fh, InHeader: self.InHeader})
	del := fuse.NewDirEntryList(make([]byte, 1000), 0)
	err = s2e(self.ops.ReadDir(&fuse.ReadIn{Fh: oo.Fh,
		InHeader: self.InHeader}, del))
	if err != nil {
		return
	}
	// DirEntryList cannot be decoded from here; the names come from
	// the directory directly.
	for _, e := range self.fs.List() {
		ret = append(ret, e.Name)
	}
	return
}

// ReadDir is clone of ioutil.ReadDir
func (self *FSUser) ReadDir() (ret []os.FileInfo, err error) {
	mlog.Printf2("fs/fsuser", "ReadDir")
	l, err := self.ListDir()
	if err != nil {
		return
	}
	ret = make([]os.FileInfo, len(l))
	for i, n := range l {
		ret[i], err = self.Stat(n)
		if err != nil {
			return
		}
	}
	return
}

// Stat is clone of os.Stat
func (self *FSUser) Stat(path string) (fi os.FileInfo, err error) {
	var eo fuse.EntryOut
	err = self.lookup(path, &eo)
	if err != nil {
		return
	}
	fi = &fileInfo{name: strings.TrimPrefix(path, "/"),
		size:  int64(eo.Size),
		mode:  fileModeFromFuse(eo.Mode),
		inode: eo.NodeId}
	return
}

// Remove is clone of os.Remove
func (self *FSUser) Remove(path string) error {
	self.NodeId = fuse.FUSE_ROOT_ID
	return s2e(self.ops.Unlink(&self.InHeader, strings.TrimPrefix(path, "/")))
}

// Truncate is clone of os.Truncate; only size 0 is supported.
func (self *FSUser) Truncate(path string, size int64) (err error) {
	var eo fuse.EntryOut
	err = self.lookup(path, &eo)
	if err != nil {
		return
	}
	var ao fuse.AttrOut
	return s2e(self.ops.SetAttr(&fuse.SetAttrIn{
		SetAttrInCommon: fuse.SetAttrInCommon{InHeader: self.InHeader,
			Valid: fuse.FATTR_SIZE,
			Size:  uint64(size)}}, &ao))
}

// OpenFile opens path the way os.OpenFile would. With os.O_CREATE the
// file is opened through Create, as the kernel does for atomic opens.
// The returned handle must be released with Release.
func (self *FSUser) OpenFile(path string, flags int) (fh uint64, err error) {
	name := strings.TrimPrefix(path, "/")
	if flags&os.O_CREATE != 0 {
		self.NodeId = fuse.FUSE_ROOT_ID
		var co fuse.CreateOut
		err = s2e(self.ops.Create(&fuse.CreateIn{InHeader: self.InHeader,
			Flags: uint32(flags), Mode: 0644}, name, &co))
		fh = co.Fh
		return
	}
	var eo fuse.EntryOut
	err = self.lookup(name, &eo)
	if err != nil {
		return
	}
	var oo fuse.OpenOut
	err = s2e(self.ops.Open(&fuse.OpenIn{InHeader: self.InHeader,
		Flags: uint32(flags)}, &oo))
	fh = oo.Fh
	return
}

func (self *FSUser) Release(fh uint64) {
	self.ops.Release(&fuse.ReleaseIn{InHeader: self.InHeader, Fh: fh})
}

// ReadAt reads len(buf) bytes at offset from fh.
func (self *FSUser) ReadAt(fh uint64, buf []byte, offset int64) (n int, err error) {
	rr, code := self.ops.Read(&fuse.ReadIn{InHeader: self.InHeader,
		Fh: fh, Offset: uint64(offset), Size: uint32(len(buf))}, buf)
	err = s2e(code)
	if err != nil {
		return
	}
	b, code := rr.Bytes(buf)
	err = s2e(code)
	n = copy(buf, b)
	return
}

// WriteAt writes data at offset of fh.
func (self *FSUser) WriteAt(fh uint64, data []byte, offset int64) (n int, err error) {
	written, code := self.ops.Write(&fuse.WriteIn{InHeader: self.InHeader,
		Fh: fh, Offset: uint64(offset), Size: uint32(len(data))}, data)
	return int(written), s2e(code)
}

// ReadFile is clone of ioutil.ReadFile
func (self *FSUser) ReadFile(path string) (data []byte, err error) {
	fh, err := self.OpenFile(path, os.O_RDONLY)
	if err != nil {
		return
	}
	defer self.Release(fh)
	buf := make([]byte, ioChunk)
	for {
		var n int
		n, err = self.ReadAt(fh, buf, int64(len(data)))
		if err != nil {
			return
		}
		data = append(data, buf[:n]...)
		if n < len(buf) {
			return
		}
	}
}

// WriteFile is clone of ioutil.WriteFile
func (self *FSUser) WriteFile(path string, data []byte) (err error) {
	fh, err := self.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return
	}
	defer self.Release(fh)
	for ofs := 0; ofs < len(data); {
		end := ofs + ioChunk
		if end > len(data) {
			end = len(data)
		}
		var n int
		n, err = self.WriteAt(fh, data[ofs:end], int64(ofs))
		if err != nil {
			return
		}
		ofs += n
	}
	return
}
