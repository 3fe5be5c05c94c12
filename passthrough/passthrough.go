// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package passthrough

import (
	"os"
	"sort"
	"time"

	"github.com/detailyang/go-fallocate"
	"golang.org/x/sys/unix"

	"github.com/interposefs/interposefs/fuseops"
	"github.com/interposefs/interposefs/fuseutil"
)

// CacheMode selects the kernel cache regime a file is opened under (spec
// §4.2's "cache & writeback controls").
type CacheMode int

const (
	CacheAuto CacheMode = iota
	CacheNever
	CacheAlways
)

// Config carries the mount-time choices the passthrough layer's Init
// negotiates with the kernel and applies on every OpenFile.
type Config struct {
	SourceDir string

	Writeback bool
	Flock     bool
	Xattr     bool
	Cache     CacheMode
	EntryTTL  time.Duration
	AttrTTL   time.Duration
}

// FileSystem is the bottom of the layer stack: the operation table
// described by spec §2/§4.2, with no "next" to delegate to.
type FileSystem struct {
	fuseutil.NotImplementedFileSystem

	cfg     Config
	table   *InodeTable
	handles *handleTable
}

var _ fuseutil.FileSystem = (*FileSystem)(nil)

// New opens cfg.SourceDir and returns a passthrough FileSystem ready to be
// handed to fuse.Mount (optionally wrapped by interception layers first).
func New(cfg Config) (*FileSystem, error) {
	table, err := NewInodeTable(cfg.SourceDir)
	if err != nil {
		return nil, err
	}
	return &FileSystem{cfg: cfg, table: table, handles: newHandleTable()}, nil
}

func (fs *FileSystem) entryExpiration() time.Time {
	if fs.cfg.EntryTTL <= 0 {
		return time.Time{}
	}
	return time.Now().Add(fs.cfg.EntryTTL)
}

func (fs *FileSystem) attrExpiration() time.Time {
	if fs.cfg.AttrTTL <= 0 {
		return time.Time{}
	}
	return time.Now().Add(fs.cfg.AttrTTL)
}

func (fs *FileSystem) childEntry(in *Inode) (fuseops.ChildInodeEntry, error) {
	attrs, err := in.Attributes()
	if err != nil {
		return fuseops.ChildInodeEntry{}, err
	}
	return fuseops.ChildInodeEntry{
		Child:                in.ID(),
		Generation:           in.Generation(),
		Attributes:           attrs,
		AttributesExpiration: fs.attrExpiration(),
		EntryExpiration:      fs.entryExpiration(),
	}, nil
}

////////////////////////////////////////////////////////////////////////
// Session lifecycle
////////////////////////////////////////////////////////////////////////

// Init negotiates kernel capabilities (spec §4.2): it opts into
// writeback-cache and flock-lock handling when the caller's configuration
// asked for them, and always opts out of kernel interrupt delivery (spec
// §5: "there is no mid-operation cancellation").
func (fs *FileSystem) Init(op *fuseops.InitOp) {
	op.UseWritebackCache = fs.cfg.Writeback
	op.UseFlockLocks = fs.cfg.Flock
	op.DisableInterrupt = true
	op.Respond(nil)
}

// Destroy walks the inode table, closing every descriptor (spec §4.2).
func (fs *FileSystem) Destroy(op *fuseops.DestroyOp) {
	fs.table.Destroy()
	op.Respond(nil)
}

func (fs *FileSystem) StatFS(op *fuseops.StatFSOp) {
	var st unix.Statfs_t
	if err := unix.Fstatfs(fs.table.Root().Fd(), &st); err != nil {
		op.Respond(err)
		return
	}
	op.Info = fuseops.StatFSInfo{
		BlockSize:       uint32(st.Bsize),
		Blocks:          st.Blocks,
		BlocksFree:      st.Bfree,
		BlocksAvailable: st.Bavail,
		IoSize:          uint32(st.Bsize),
		Inodes:          st.Files,
		InodesFree:      st.Ffree,
	}
	op.Respond(nil)
}

////////////////////////////////////////////////////////////////////////
// Inodes
////////////////////////////////////////////////////////////////////////

func (fs *FileSystem) LookUpInode(op *fuseops.LookUpInodeOp) {
	parent, ok := fs.table.Resolve(op.Parent)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	child, err := fs.table.Lookup(parent, op.Name)
	if err != nil {
		op.Respond(err)
		return
	}
	entry, err := fs.childEntry(child)
	if err != nil {
		op.Respond(err)
		return
	}
	op.Entry = entry
	op.Respond(nil)
}

func (fs *FileSystem) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) {
	in, ok := fs.table.Resolve(op.Inode)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	attrs, err := in.Attributes()
	if err != nil {
		op.Respond(err)
		return
	}
	op.Attributes = attrs
	op.AttributesExpiration = fs.attrExpiration()
	op.Respond(nil)
}

func (fs *FileSystem) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) {
	in, ok := fs.table.Resolve(op.Inode)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	if err := applySetAttr(in, op); err != nil {
		op.Respond(err)
		return
	}
	attrs, err := in.Attributes()
	if err != nil {
		op.Respond(err)
		return
	}
	op.Attributes = attrs
	op.AttributesExpiration = fs.attrExpiration()
	op.Respond(nil)
}

func (fs *FileSystem) ForgetInode(op *fuseops.ForgetInodeOp) {
	fs.table.Forget(op.Inode, op.N)
	op.Respond(nil)
}

func (fs *FileSystem) ForgetMulti(op *fuseops.ForgetMultiOp) {
	fs.table.ForgetMulti(op.Entries)
	op.Respond(nil)
}

func (fs *FileSystem) Access(op *fuseops.AccessOp) {
	in, ok := fs.table.Resolve(op.Inode)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	err := unix.Faccessat(unix.AT_FDCWD, procFdPath(in.fd), op.Mask, 0)
	op.Respond(err)
}

////////////////////////////////////////////////////////////////////////
// Inode creation / removal
////////////////////////////////////////////////////////////////////////

func (fs *FileSystem) MkDir(op *fuseops.MkDirOp) {
	parent, ok := fs.table.Resolve(op.Parent)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	if err := unix.Mkdirat(parent.fd, op.Name, chmodBits(op.Mode)); err != nil {
		op.Respond(err)
		return
	}
	child, err := fs.table.Lookup(parent, op.Name)
	if err != nil {
		op.Respond(err)
		return
	}
	entry, err := fs.childEntry(child)
	if err != nil {
		op.Respond(err)
		return
	}
	op.Entry = entry
	op.Respond(nil)
}

// MkNode dispatches on the requested type (spec §4.2): directories go
// through mkdirat, everything else (fifo, socket, device, and the rare
// regular file created via mknod(2) rather than open(2)) through
// mknodat, which the host kernel itself dispatches on the S_IFMT bits of
// mode.
func (fs *FileSystem) MkNode(op *fuseops.MkNodeOp) {
	parent, ok := fs.table.Resolve(op.Parent)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}

	var err error
	if op.Mode&os.ModeDir != 0 {
		err = unix.Mkdirat(parent.fd, op.Name, chmodBits(op.Mode))
	} else {
		err = unix.Mknodat(parent.fd, op.Name, unixModeType(op.Mode)|chmodBits(op.Mode), int(op.Rdev))
	}
	if err != nil {
		op.Respond(err)
		return
	}

	child, err := fs.table.Lookup(parent, op.Name)
	if err != nil {
		op.Respond(err)
		return
	}
	entry, err := fs.childEntry(child)
	if err != nil {
		op.Respond(err)
		return
	}
	op.Entry = entry
	op.Respond(nil)
}

func unixModeType(mode os.FileMode) uint32 {
	switch {
	case mode&os.ModeNamedPipe != 0:
		return unix.S_IFIFO
	case mode&os.ModeSocket != 0:
		return unix.S_IFSOCK
	case mode&os.ModeCharDevice != 0:
		return unix.S_IFCHR
	case mode&os.ModeDevice != 0:
		return unix.S_IFBLK
	default:
		return unix.S_IFREG
	}
}

func (fs *FileSystem) CreateFile(op *fuseops.CreateFileOp) {
	parent, ok := fs.table.Resolve(op.Parent)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}

	flags := openFlagsToUnix(op.Flags) | unix.O_CREAT | unix.O_EXCL
	fd, err := unix.Openat(parent.fd, op.Name, flags, uint32(op.Mode.Perm()))
	if err != nil {
		op.Respond(err)
		return
	}

	pathFd, err := unix.Open(procFdPath(fd), unix.O_PATH, 0)
	if err != nil {
		unix.Close(fd)
		op.Respond(err)
		return
	}

	var st unix.Stat_t
	if err := unix.Fstat(pathFd, &st); err != nil {
		unix.Close(fd)
		unix.Close(pathFd)
		op.Respond(err)
		return
	}

	child := fs.table.insertFromOpen(pathFd, &st)

	entry, err := fs.childEntry(child)
	if err != nil {
		fs.table.Forget(child.ID(), 1)
		unix.Close(fd)
		op.Respond(err)
		return
	}

	op.Entry = entry
	op.Handle = fs.handles.putFile(fd, child.ID())
	op.Respond(nil)
}

func (fs *FileSystem) CreateSymlink(op *fuseops.CreateSymlinkOp) {
	parent, ok := fs.table.Resolve(op.Parent)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	if err := unix.Symlinkat(op.Target, parent.fd, op.Name); err != nil {
		op.Respond(err)
		return
	}
	child, err := fs.table.Lookup(parent, op.Name)
	if err != nil {
		op.Respond(err)
		return
	}
	entry, err := fs.childEntry(child)
	if err != nil {
		op.Respond(err)
		return
	}
	op.Entry = entry
	op.Respond(nil)
}

func (fs *FileSystem) CreateLink(op *fuseops.CreateLinkOp) {
	parent, ok := fs.table.Resolve(op.Parent)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	target, ok := fs.table.Resolve(op.Target)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	err := unix.Linkat(target.fd, "", parent.fd, op.Name, unix.AT_EMPTY_PATH)
	if err != nil {
		op.Respond(err)
		return
	}
	child, err := fs.table.Lookup(parent, op.Name)
	if err != nil {
		op.Respond(err)
		return
	}
	entry, err := fs.childEntry(child)
	if err != nil {
		op.Respond(err)
		return
	}
	op.Entry = entry
	op.Respond(nil)
}

func (fs *FileSystem) ReadSymlink(op *fuseops.ReadSymlinkOp) {
	in, ok := fs.table.Resolve(op.Inode)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	buf := make([]byte, 4096)
	n, err := unix.Readlink(procFdPath(in.fd), buf)
	if err != nil {
		op.Respond(err)
		return
	}
	op.Target = string(buf[:n])
	op.Respond(nil)
}

// Rename rejects any nonzero flag rather than acting on it (spec §4.2,
// §8): RENAME_EXCHANGE/RENAME_NOREPLACE semantics aren't modeled.
func (fs *FileSystem) Rename(op *fuseops.RenameOp) {
	if op.Flags != 0 {
		op.Respond(unix.EINVAL)
		return
	}
	oldParent, ok := fs.table.Resolve(op.OldParent)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	newParent, ok := fs.table.Resolve(op.NewParent)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	err := unix.Renameat(oldParent.fd, op.OldName, newParent.fd, op.NewName)
	op.Respond(err)
}

func (fs *FileSystem) RmDir(op *fuseops.RmDirOp) {
	parent, ok := fs.table.Resolve(op.Parent)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	err := unix.Unlinkat(parent.fd, op.Name, unix.AT_REMOVEDIR)
	op.Respond(err)
}

func (fs *FileSystem) Unlink(op *fuseops.UnlinkOp) {
	parent, ok := fs.table.Resolve(op.Parent)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	err := unix.Unlinkat(parent.fd, op.Name, 0)
	op.Respond(err)
}

////////////////////////////////////////////////////////////////////////
// Extended attributes
////////////////////////////////////////////////////////////////////////

func (fs *FileSystem) GetXattr(op *fuseops.GetXattrOp) {
	if !fs.cfg.Xattr {
		op.Respond(unix.ENOSYS)
		return
	}
	in, ok := fs.table.Resolve(op.Inode)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	path := procFdPath(in.fd)

	if op.Size == 0 {
		n, err := unix.Getxattr(path, op.Name, nil)
		if err != nil {
			op.Respond(err)
			return
		}
		op.Len = n
		op.Respond(nil)
		return
	}

	buf := make([]byte, op.Size)
	n, err := unix.Getxattr(path, op.Name, buf)
	if err != nil {
		op.Respond(err)
		return
	}
	op.Dst = buf[:n]
	op.Len = n
	op.Respond(nil)
}

func (fs *FileSystem) ListXattr(op *fuseops.ListXattrOp) {
	if !fs.cfg.Xattr {
		op.Respond(unix.ENOSYS)
		return
	}
	in, ok := fs.table.Resolve(op.Inode)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	path := procFdPath(in.fd)

	if op.Size == 0 {
		n, err := unix.Listxattr(path, nil)
		if err != nil {
			op.Respond(err)
			return
		}
		op.Len = n
		op.Respond(nil)
		return
	}

	buf := make([]byte, op.Size)
	n, err := unix.Listxattr(path, buf)
	if err != nil {
		op.Respond(err)
		return
	}
	op.Dst = buf[:n]
	op.Len = n
	op.Respond(nil)
}

func (fs *FileSystem) SetXattr(op *fuseops.SetXattrOp) {
	if !fs.cfg.Xattr {
		op.Respond(unix.ENOSYS)
		return
	}
	in, ok := fs.table.Resolve(op.Inode)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	err := unix.Setxattr(procFdPath(in.fd), op.Name, op.Value, int(op.Flags))
	op.Respond(err)
}

func (fs *FileSystem) RemoveXattr(op *fuseops.RemoveXattrOp) {
	if !fs.cfg.Xattr {
		op.Respond(unix.ENOSYS)
		return
	}
	in, ok := fs.table.Resolve(op.Inode)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	err := unix.Removexattr(procFdPath(in.fd), op.Name)
	op.Respond(err)
}

////////////////////////////////////////////////////////////////////////
// Directory handles
////////////////////////////////////////////////////////////////////////

func (fs *FileSystem) OpenDir(op *fuseops.OpenDirOp) {
	in, ok := fs.table.Resolve(op.Inode)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	fd, err := unix.Open(procFdPath(in.fd), unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		op.Respond(err)
		return
	}
	op.Handle = fs.handles.putDir(fd)
	op.Respond(nil)
}

// listDir reads the full directory listing once and caches it sorted by
// name, so that the kernel-supplied offset can be treated as a stable
// index regardless of how many readdir calls it takes to drain it.
func listDir(fd int) ([]os.DirEntry, error) {
	f := os.NewFile(uintptr(dupFd(fd)), "dir")
	defer f.Close()
	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func dupFd(fd int) int {
	dup, err := unix.Dup(fd)
	if err != nil {
		return fd
	}
	return dup
}

func direntType(e os.DirEntry) fuseops.DirentType {
	switch {
	case e.IsDir():
		return fuseops.DT_Dir
	case e.Type()&os.ModeSymlink != 0:
		return fuseops.DT_Link
	case e.Type()&os.ModeNamedPipe != 0:
		return fuseops.DT_FIFO
	case e.Type()&os.ModeSocket != 0:
		return fuseops.DT_Socket
	default:
		return fuseops.DT_File
	}
}

func (fs *FileSystem) ReadDir(op *fuseops.ReadDirOp) {
	dh, ok := fs.handles.getDir(op.Handle)
	if !ok {
		op.Respond(unix.EBADF)
		return
	}

	dh.mu.Lock()
	defer dh.mu.Unlock()

	if dh.entries == nil {
		entries, err := listDir(dh.fd)
		if err != nil {
			op.Respond(err)
			return
		}
		dh.entries = entries
	}

	buf := make([]byte, 0, op.Size)
	idx := int(op.Offset)
	for idx < len(dh.entries) {
		e := dh.entries[idx]
		d := fuseops.Dirent{
			Offset: fuseops.DirOffset(idx + 1),
			Inode:  fuseops.InodeID(direntIno(dh.fd, e.Name())),
			Name:   e.Name(),
			Type:   direntType(e),
		}
		grown, n := fuseutil.WriteDirent(buf, d)
		if n == 0 {
			break
		}
		buf = grown
		idx++
	}
	op.Data = buf
	op.Respond(nil)
}

// direntIno fetches the real host inode number for display in a plain
// (non-plus) readdir entry. It is cosmetic only: unlike readdirplus this
// does not register a lookup or affect the inode table.
func direntIno(dirFd int, name string) uint64 {
	var st unix.Stat_t
	if err := unix.Fstatat(dirFd, name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return 0
	}
	return st.Ino
}

// ReadDirPlus performs an implicit lookup per non-dot entry so the kernel
// can populate its dentry cache from this single call; an entry whose
// lookup succeeds but does not fit the reply buffer has that lookup
// forgotten by one before moving on, so it never leaks a reference (spec
// §4.2, §8's overflow scenario).
func (fs *FileSystem) ReadDirPlus(op *fuseops.ReadDirPlusOp) {
	parent, ok := fs.table.Resolve(op.Inode)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}
	dh, ok := fs.handles.getDir(op.Handle)
	if !ok {
		op.Respond(unix.EBADF)
		return
	}

	dh.mu.Lock()
	defer dh.mu.Unlock()

	if dh.entries == nil {
		entries, err := listDir(dh.fd)
		if err != nil {
			op.Respond(err)
			return
		}
		dh.entries = entries
	}

	buf := make([]byte, 0, op.Size)
	idx := int(op.Offset)
	for idx < len(dh.entries) {
		e := dh.entries[idx]

		if e.Name() == "." || e.Name() == ".." {
			idx++
			continue
		}

		child, err := fs.table.Lookup(parent, e.Name())
		if err != nil {
			idx++
			continue
		}
		entry, err := fs.childEntry(child)
		if err != nil {
			fs.table.Forget(child.ID(), 1)
			idx++
			continue
		}

		d := fuseops.DirentPlus{
			Dirent: fuseops.Dirent{
				Offset: fuseops.DirOffset(idx + 1),
				Inode:  child.ID(),
				Name:   e.Name(),
				Type:   direntType(e),
			},
			Entry: entry,
		}
		grown, n := fuseutil.WriteDirentPlus(buf, d)
		if n == 0 {
			fs.table.Forget(child.ID(), 1)
			break
		}
		buf = grown
		idx++
	}
	op.Data = buf
	op.Respond(nil)
}

func (fs *FileSystem) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) {
	dh, ok := fs.handles.dropDir(op.Handle)
	if ok {
		unix.Close(dh.fd)
	}
	op.Respond(nil)
}

func (fs *FileSystem) FsyncDir(op *fuseops.FsyncDirOp) {
	dh, ok := fs.handles.getDir(dirHandleForFsync(op))
	if !ok {
		op.Respond(nil)
		return
	}
	op.Respond(unix.Fsync(dh.fd))
}

func dirHandleForFsync(op *fuseops.FsyncDirOp) fuseops.HandleID { return op.Handle }

////////////////////////////////////////////////////////////////////////
// File handles
////////////////////////////////////////////////////////////////////////

func openFlagsToUnix(flags fuseops.OpenFlags) int {
	return int(flags)
}

// OpenFile reopens the inode's path-only descriptor through its proc-fd
// path with the kernel-requested access flags (spec §4.2's "open returns
// a per-open file descriptor"), and picks the caching regime the
// configuration asks for.
func (fs *FileSystem) OpenFile(op *fuseops.OpenFileOp) {
	in, ok := fs.table.Resolve(op.Inode)
	if !ok {
		op.Respond(unix.ENOENT)
		return
	}

	flags := openFlagsToUnix(op.Flags)
	if fs.cfg.Writeback && flags&int(fuseops.OpenAccmode) == int(fuseops.OpenWriteOnly) {
		flags = (flags &^ int(fuseops.OpenAccmode)) | int(fuseops.OpenReadWrite)
	}
	flags &^= int(fuseops.OpenAppend)

	fd, err := unix.Open(procFdPath(in.fd), flags, 0)
	if err != nil {
		op.Respond(err)
		return
	}

	op.Handle = fs.handles.putFile(fd, op.Inode)
	switch fs.cfg.Cache {
	case CacheNever:
		op.UseDirectIO = true
	case CacheAlways:
		op.KeepPageCache = true
	}
	op.Respond(nil)
}

func (fs *FileSystem) ReadFile(op *fuseops.ReadFileOp) {
	fh, ok := fs.handles.getFile(op.Handle)
	if !ok {
		op.Respond(unix.EBADF)
		return
	}
	buf := make([]byte, op.Size)
	n, err := unix.Pread(fh.fd, buf, op.Offset)
	if err != nil {
		op.Respond(err)
		return
	}
	op.Data = [][]byte{buf[:n]}
	op.Respond(nil)
}

func (fs *FileSystem) WriteFile(op *fuseops.WriteFileOp) {
	fh, ok := fs.handles.getFile(op.Handle)
	if !ok {
		op.Respond(unix.EBADF)
		return
	}
	_, err := unix.Pwrite(fh.fd, op.Data, op.Offset)
	op.Respond(err)
}

func (fs *FileSystem) SyncFile(op *fuseops.SyncFileOp) {
	fh, ok := fs.handles.getFile(op.Handle)
	if !ok {
		op.Respond(unix.EBADF)
		return
	}
	op.Respond(unix.Fsync(fh.fd))
}

// FlushFile closes a dup of the handle's descriptor rather than doing
// nothing, so that a pending write error (e.g. from a full backing
// filesystem) surfaces to the process that is closing its own fd (spec
// §4.2). It must never be used for reference counting: ReleaseFileHandle
// owns that.
func (fs *FileSystem) FlushFile(op *fuseops.FlushFileOp) {
	fh, ok := fs.handles.getFile(op.Handle)
	if !ok {
		op.Respond(nil)
		return
	}
	dup, err := unix.Dup(fh.fd)
	if err != nil {
		op.Respond(err)
		return
	}
	op.Respond(unix.Close(dup))
}

func (fs *FileSystem) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) {
	fh, ok := fs.handles.dropFile(op.Handle)
	if ok {
		unix.Close(fh.fd)
	}
	op.Respond(nil)
}

func (fs *FileSystem) Fallocate(op *fuseops.FallocateOp) {
	fh, ok := fs.handles.getFile(op.Handle)
	if !ok {
		op.Respond(unix.EBADF)
		return
	}
	// go-fallocate's API takes an *os.File, which closes its underlying
	// fd on Close; operate on a dup so the handle's own fd survives.
	dup, err := unix.Dup(fh.fd)
	if err != nil {
		op.Respond(err)
		return
	}
	f := os.NewFile(uintptr(dup), "")
	err = fallocate.Fallocate(f, int64(op.Offset), int64(op.Length))
	f.Close()
	op.Respond(err)
}

func (fs *FileSystem) CopyFileRange(op *fuseops.CopyFileRangeOp) {
	in, ok := fs.handles.getFile(op.HandleIn)
	if !ok {
		op.Respond(unix.EBADF)
		return
	}
	out, ok := fs.handles.getFile(op.HandleOut)
	if !ok {
		op.Respond(unix.EBADF)
		return
	}
	offIn, offOut := op.OffsetIn, op.OffsetOut
	n, err := unix.CopyFileRange(in.fd, &offIn, out.fd, &offOut, int(op.Len), 0)
	if err != nil {
		op.Respond(err)
		return
	}
	op.BytesCopied = uint64(n)
	op.Respond(nil)
}

func (fs *FileSystem) Lseek(op *fuseops.LseekOp) {
	fh, ok := fs.handles.getFile(op.Handle)
	if !ok {
		op.Respond(unix.EBADF)
		return
	}
	off, err := unix.Seek(fh.fd, op.Offset, op.Whence)
	if err != nil {
		op.Respond(err)
		return
	}
	op.ResultOffset = off
	op.Respond(nil)
}

////////////////////////////////////////////////////////////////////////
// Locking
////////////////////////////////////////////////////////////////////////

func (fs *FileSystem) Flock(op *fuseops.FlockOp) {
	fh, ok := fs.handles.getFile(op.Handle)
	if !ok {
		op.Respond(unix.EBADF)
		return
	}
	how := unix.LOCK_UN
	switch op.Type {
	case fuseops.F_RDLOCK:
		how = unix.LOCK_SH
	case fuseops.F_WRLOCK:
		how = unix.LOCK_EX
	}
	op.Respond(unix.Flock(fh.fd, how))
}

func (fs *FileSystem) GetLk(op *fuseops.GetLkOp) {
	fh, ok := fs.handles.getFile(op.Handle)
	if !ok {
		op.Respond(unix.EBADF)
		return
	}
	lk := unix.Flock_t{
		Type:   int16(lockTypeToUnix(op.Type)),
		Whence: int16(unix.SEEK_SET),
		Start:  int64(op.Start),
		Len:    int64(op.End - op.Start),
	}
	if err := unix.FcntlFlock(uintptr(fh.fd), unix.F_GETLK, &lk); err != nil {
		op.Respond(err)
		return
	}
	if lk.Type != unix.F_UNLCK {
		op.Conflict = true
		op.ConflictingStart = uint64(lk.Start)
		op.ConflictingEnd = uint64(lk.Start + lk.Len)
		op.ConflictingType = unixLockTypeFrom(lk.Type)
		op.ConflictingPID = uint32(lk.Pid)
	}
	op.Respond(nil)
}

func (fs *FileSystem) SetLk(op *fuseops.SetLkOp) {
	fh, ok := fs.handles.getFile(op.Handle)
	if !ok {
		op.Respond(unix.EBADF)
		return
	}
	lk := unix.Flock_t{
		Type:   int16(lockTypeToUnix(op.Type)),
		Whence: int16(unix.SEEK_SET),
		Start:  int64(op.Start),
		Len:    int64(op.End - op.Start),
	}
	cmd := unix.F_SETLK
	if op.Block {
		cmd = unix.F_SETLKW
	}
	op.Respond(unix.FcntlFlock(uintptr(fh.fd), cmd, &lk))
}

func lockTypeToUnix(t fuseops.FileLockType) int16 {
	switch t {
	case fuseops.F_RDLOCK:
		return unix.F_RDLCK
	case fuseops.F_WRLOCK:
		return unix.F_WRLCK
	default:
		return unix.F_UNLCK
	}
}

func unixLockTypeFrom(t int16) fuseops.FileLockType {
	switch t {
	case unix.F_RDLCK:
		return fuseops.F_RDLOCK
	case unix.F_WRLCK:
		return fuseops.F_WRLOCK
	default:
		return fuseops.F_UNLCK
	}
}

