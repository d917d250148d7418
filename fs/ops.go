/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Thu Dec 28 12:52:43 2017 mstenber
 * Last modified: Sun Mar 17 16:02:40 2019 mstenber
 * Edit time:     401 min
 *
 */

package fs

import (
	"io"
	"os"
	"sync"
	"syscall"

	"github.com/fingon/go-sgf/fat"
	"github.com/fingon/go-sgf/mlog"
	"github.com/fingon/go-sgf/storage"
	"github.com/hanwen/go-fuse/fuse"
	"github.com/pkg/errors"
)

// Node ids: the root directory is FUSE_ROOT_ID (1), files are their
// inode addresses. Blocks 0 and 1 are never inodes, so they do not
// collide.

type openFile struct {
	name   string
	ino    storage.Address
	reader *Reader
	writer *Writer
	dir    []DirEntry
}

type fsOps struct {
	fuse.RawFileSystem

	mu     sync.Mutex
	fs     *Fs
	files  map[uint64]*openFile
	nextFh uint64
	uid    uint32
	gid    uint32
}

var _ fuse.RawFileSystem = &fsOps{}

// NewOps exposes the volume as a fuse.RawFileSystem. Every call is
// serialized.
func NewOps(fs *Fs) fuse.RawFileSystem {
	return &fsOps{RawFileSystem: fuse.NewDefaultRawFileSystem(),
		fs:    fs,
		files: make(map[uint64]*openFile),
		uid:   uint32(os.Getuid()),
		gid:   uint32(os.Getgid())}
}

func (self *fsOps) String() string {
	return "sgf"
}

func errorToStatus(err error) fuse.Status {
	switch errors.Cause(err) {
	case nil:
		return fuse.OK
	case ErrNotFound:
		return fuse.ENOENT
	case ErrInvalidName:
		return fuse.Status(syscall.ENAMETOOLONG)
	case ErrDirectoryFull, ErrNoSpace:
		return fuse.Status(syscall.ENOSPC)
	case ErrSeekOutOfRange:
		return fuse.EINVAL
	case ErrClosed:
		return fuse.Status(syscall.EBADF)
	}
	return fuse.EIO
}

func (self *fsOps) fillRootAttr(out *fuse.Attr) {
	out.Ino = fuse.FUSE_ROOT_ID
	out.Mode = fuse.S_IFDIR | 0755
	out.Nlink = 2
	out.Size = blockSize
	out.Blocks = 1
	out.Owner = fuse.Owner{Uid: self.uid, Gid: self.gid}
}

// fillAttr fills attributes of the file with inode addr. The address
// comes from the kernel, so it is validated instead of trusted.
func (self *fsOps) fillAttr(ino uint64, out *fuse.Attr) fuse.Status {
	if ino == fuse.FUSE_ROOT_ID {
		self.fillRootAttr(out)
		return fuse.OK
	}
	addr := storage.Address(ino)
	if uint64(addr) != ino || int(addr) < self.fs.fat.ReservedBlocks() || int(addr) >= self.fs.fat.DiskSize() {
		return fuse.ENOENT
	}
	if e, _ := self.fs.fat.Lookup(addr); e != fat.Inode {
		return fuse.ENOENT
	}
	inode := self.fs.ReadInode(addr)
	out.Ino = ino
	out.Size = uint64(inode.Size)
	out.Blocks = uint64(inode.Blocks())
	out.Mode = syscall.S_IFREG | 0644
	out.Nlink = 1
	out.Owner = fuse.Owner{Uid: self.uid, Gid: self.gid}
	return fuse.OK
}

func (self *fsOps) fillEntryOut(ino uint64, out *fuse.EntryOut) fuse.Status {
	out.NodeId = ino
	out.Generation = 0
	out.EntryValid = entryValidity
	out.AttrValid = attrValidity
	out.EntryValidNsec = 0
	out.AttrValidNsec = 0
	return self.fillAttr(ino, &out.Attr)
}

func (self *fsOps) Lookup(input *fuse.InHeader, name string, out *fuse.EntryOut) (code fuse.Status) {
	defer self.mu.Unlock()
	self.mu.Lock()
	mlog.Printf2("fs/ops", "ops.Lookup %v %s", input.NodeId, name)
	if input.NodeId != fuse.FUSE_ROOT_ID {
		return fuse.ENOTDIR
	}
	if name == "." || name == ".." {
		return self.fillEntryOut(fuse.FUSE_ROOT_ID, out)
	}
	addr, err := self.fs.FindInode(name)
	if err != nil {
		return errorToStatus(err)
	}
	return self.fillEntryOut(uint64(addr), out)
}

func (self *fsOps) GetAttr(input *fuse.GetAttrIn, out *fuse.AttrOut) (code fuse.Status) {
	defer self.mu.Unlock()
	self.mu.Lock()
	out.AttrValid = attrValidity
	out.AttrValidNsec = 0
	return self.fillAttr(input.NodeId, &out.Attr)
}

// SetAttr supports only truncation to zero; other attribute changes
// are accepted and ignored.
func (self *fsOps) SetAttr(input *fuse.SetAttrIn, out *fuse.AttrOut) (code fuse.Status) {
	defer self.mu.Unlock()
	self.mu.Lock()
	mlog.Printf2("fs/ops", "ops.SetAttr %v", input.NodeId)
	out.AttrValid = attrValidity
	code = self.fillAttr(input.NodeId, &out.Attr)
	if !code.Ok() {
		return
	}
	if input.Valid&fuse.FATTR_SIZE != 0 && input.Size != out.Attr.Size {
		if input.Size != 0 || input.NodeId == fuse.FUSE_ROOT_ID {
			return fuse.EPERM
		}
		if self.busy(storage.Address(input.NodeId)) {
			return fuse.Status(syscall.EBUSY)
		}
		self.fs.truncateInode(storage.Address(input.NodeId))
		code = self.fillAttr(input.NodeId, &out.Attr)
	}
	return
}

func (self *fsOps) addFile(of *openFile) uint64 {
	self.nextFh++
	self.files[self.nextFh] = of
	return self.nextFh
}

// busy reports whether an open handle refers to the inode at addr;
// such an inode is neither freed nor truncated.
func (self *fsOps) busy(addr storage.Address) bool {
	for _, of := range self.files {
		if of.dir == nil && of.ino == addr {
			return true
		}
	}
	return false
}

func (self *fsOps) open(ino uint64, flags uint32, out *fuse.OpenOut) (code fuse.Status) {
	addr := storage.Address(ino)
	name, ok := self.fs.nameOf(addr)
	if !ok {
		return fuse.ENOENT
	}
	of := &openFile{name: name, ino: addr}
	switch int(flags) & syscall.O_ACCMODE {
	case os.O_RDONLY:
		r, err := self.fs.OpenReader(name)
		if err != nil {
			return errorToStatus(err)
		}
		of.reader = r
	case os.O_WRONLY:
		// Writes only ever append to an emptied file
		if flags&uint32(os.O_TRUNC) == 0 {
			return fuse.EPERM
		}
		if self.busy(addr) {
			return fuse.Status(syscall.EBUSY)
		}
		w, err := self.fs.OpenWriter(name)
		if err != nil {
			return errorToStatus(err)
		}
		of.writer = w
	default:
		return fuse.EPERM
	}
	out.Fh = self.addFile(of)
	mlog.Printf2("fs/ops", " fh %v for %q", out.Fh, name)
	return fuse.OK
}

func (self *fsOps) Open(input *fuse.OpenIn, out *fuse.OpenOut) (code fuse.Status) {
	defer self.mu.Unlock()
	self.mu.Lock()
	mlog.Printf2("fs/ops", "ops.Open %v %x", input.NodeId, input.Flags)
	if input.NodeId == fuse.FUSE_ROOT_ID {
		return fuse.Status(syscall.EISDIR)
	}
	return self.open(input.NodeId, input.Flags, out)
}

func (self *fsOps) Create(input *fuse.CreateIn, name string, out *fuse.CreateOut) (code fuse.Status) {
	defer self.mu.Unlock()
	self.mu.Lock()
	mlog.Printf2("fs/ops", "ops.Create %s", name)
	if input.NodeId != fuse.FUSE_ROOT_ID {
		return fuse.ENOTDIR
	}
	if int(input.Flags)&syscall.O_ACCMODE != os.O_WRONLY {
		return fuse.EPERM
	}
	if addr, err := self.fs.FindInode(name); err == nil {
		if input.Flags&uint32(os.O_EXCL) != 0 {
			return fuse.Status(syscall.EEXIST)
		}
		if input.Flags&uint32(os.O_TRUNC) == 0 {
			return fuse.EPERM
		}
		if self.busy(addr) {
			return fuse.Status(syscall.EBUSY)
		}
	}
	w, err := self.fs.OpenWriter(name)
	if err != nil {
		return errorToStatus(err)
	}
	out.Fh = self.addFile(&openFile{name: name, ino: w.addr, writer: w})
	return self.fillEntryOut(uint64(w.addr), &out.EntryOut)
}

func (self *fsOps) Read(input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	defer self.mu.Unlock()
	self.mu.Lock()
	of := self.files[input.Fh]
	if of == nil || of.reader == nil {
		return nil, fuse.Status(syscall.EBADF)
	}
	mlog.Printf2("fs/ops", "ops.Read %q %v @%v", of.name, len(buf), input.Offset)
	if int64(input.Offset) >= of.reader.Size() {
		return fuse.ReadResultData(nil), fuse.OK
	}
	if _, err := of.reader.Seek(int64(input.Offset), io.SeekStart); err != nil {
		return nil, errorToStatus(err)
	}
	n, err := io.ReadFull(of.reader, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, errorToStatus(err)
	}
	return fuse.ReadResultData(buf[:n]), fuse.OK
}

// Write accepts only sequential writes at the end of what has been
// written through the handle.
func (self *fsOps) Write(input *fuse.WriteIn, data []byte) (written uint32, code fuse.Status) {
	defer self.mu.Unlock()
	self.mu.Lock()
	of := self.files[input.Fh]
	if of == nil || of.writer == nil {
		return 0, fuse.Status(syscall.EBADF)
	}
	mlog.Printf2("fs/ops", "ops.Write %q %v @%v", of.name, len(data), input.Offset)
	if int64(input.Offset) != of.writer.Size() {
		return 0, fuse.EINVAL
	}
	n, err := of.writer.Write(data)
	return uint32(n), errorToStatus(err)
}

func (self *fsOps) Release(input *fuse.ReleaseIn) {
	defer self.mu.Unlock()
	self.mu.Lock()
	of := self.files[input.Fh]
	if of == nil {
		return
	}
	mlog.Printf2("fs/ops", "ops.Release %v %q", input.Fh, of.name)
	delete(self.files, input.Fh)
	if of.reader != nil {
		of.reader.Close()
	}
	if of.writer != nil {
		of.writer.Close()
	}
}

func (self *fsOps) Unlink(input *fuse.InHeader, name string) (code fuse.Status) {
	defer self.mu.Unlock()
	self.mu.Lock()
	mlog.Printf2("fs/ops", "ops.Unlink %s", name)
	if input.NodeId != fuse.FUSE_ROOT_ID {
		return fuse.ENOTDIR
	}
	addr, err := self.fs.FindInode(name)
	if err != nil {
		return errorToStatus(err)
	}
	if self.busy(addr) {
		return fuse.Status(syscall.EBUSY)
	}
	return errorToStatus(self.fs.Delete(name))
}

func (self *fsOps) OpenDir(input *fuse.OpenIn, out *fuse.OpenOut) (code fuse.Status) {
	defer self.mu.Unlock()
	self.mu.Lock()
	if input.NodeId != fuse.FUSE_ROOT_ID {
		return fuse.ENOTDIR
	}
	dir := []DirEntry{{Name: ".", Inode: fuse.FUSE_ROOT_ID}, {Name: "..", Inode: fuse.FUSE_ROOT_ID}}
	dir = append(dir, self.fs.List()...)
	out.Fh = self.addFile(&openFile{name: "/", dir: dir})
	return fuse.OK
}

func (self *fsOps) ReadDir(input *fuse.ReadIn, l *fuse.DirEntryList) fuse.Status {
	defer self.mu.Unlock()
	self.mu.Lock()
	of := self.files[input.Fh]
	if of == nil || of.dir == nil {
		return fuse.Status(syscall.EBADF)
	}
	for i := int(input.Offset); i < len(of.dir); i++ {
		de := of.dir[i]
		mode := uint32(syscall.S_IFREG)
		if de.Inode == fuse.FUSE_ROOT_ID {
			mode = fuse.S_IFDIR
		}
		e := fuse.DirEntry{Mode: mode, Name: de.Name, Ino: uint64(de.Inode)}
		if ok, _ := l.AddDirEntry(e); !ok {
			break
		}
	}
	return fuse.OK
}

func (self *fsOps) ReleaseDir(input *fuse.ReleaseIn) {
	defer self.mu.Unlock()
	self.mu.Lock()
	delete(self.files, input.Fh)
}

func (self *fsOps) StatFs(input *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	defer self.mu.Unlock()
	self.mu.Lock()
	free := uint64(self.fs.FreeBlocks())
	out.Bsize = blockSize
	out.Frsize = blockSize
	out.Blocks = uint64(self.fs.fat.DiskSize())
	out.Bfree = free
	out.Bavail = free
	out.Files = DirectoryEntries
	out.Ffree = uint64(self.fs.FreeSlots())
	out.NameLen = NameSize
	return fuse.OK
}
