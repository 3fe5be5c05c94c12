// Package fusewire defines the low-level kernel FUSE wire protocol: opcode
// numbers, capability/flag bitmasks, and the fixed-size request/reply
// structs exchanged with /dev/fuse. It exists in place of the upstream
// internal/fusekernel package, reconstructed from the well-known FUSE
// kernel ABI rather than from an unsafe.Pointer overlay, so that encoding
// and decoding go through plain, bounds-checked byte slices.
package fusewire

// Opcode identifies the kind of a kernel request.
type Opcode uint32

const (
	OpLookup      Opcode = 1
	OpForget      Opcode = 2 // no reply
	OpGetattr     Opcode = 3
	OpSetattr     Opcode = 4
	OpReadlink    Opcode = 5
	OpSymlink     Opcode = 6
	OpMknod       Opcode = 8
	OpMkdir       Opcode = 9
	OpUnlink      Opcode = 10
	OpRmdir       Opcode = 11
	OpRename      Opcode = 12
	OpLink        Opcode = 13
	OpOpen        Opcode = 14
	OpRead        Opcode = 15
	OpWrite       Opcode = 16
	OpStatfs      Opcode = 17
	OpRelease     Opcode = 18
	OpFsync       Opcode = 20
	OpSetxattr    Opcode = 21
	OpGetxattr    Opcode = 22
	OpListxattr   Opcode = 23
	OpRemovexattr Opcode = 24
	OpFlush       Opcode = 25
	OpInit        Opcode = 26
	OpOpendir     Opcode = 27
	OpReaddir     Opcode = 28
	OpReleasedir  Opcode = 29
	OpFsyncdir    Opcode = 30
	OpGetlk       Opcode = 31
	OpSetlk       Opcode = 32
	OpSetlkw      Opcode = 33
	OpAccess      Opcode = 34
	OpCreate      Opcode = 35
	OpInterrupt   Opcode = 36
	OpBmap        Opcode = 37
	OpDestroy     Opcode = 38
	OpIoctl       Opcode = 39
	OpPoll        Opcode = 40
	OpForgetMulti Opcode = 42
	OpFallocate   Opcode = 43
	OpReaddirplus Opcode = 44
	OpRename2     Opcode = 45
	OpLseek       Opcode = 46
	OpCopyFileRng Opcode = 47
)

// Setattr_in.Valid bitmask.
const (
	FattrMode     = 1 << 0
	FattrUID      = 1 << 1
	FattrGID      = 1 << 2
	FattrSize     = 1 << 3
	FattrAtime    = 1 << 4
	FattrMtime    = 1 << 5
	FattrFh       = 1 << 6
	FattrAtimeNow = 1 << 7
	FattrMtimeNow = 1 << 8
	FattrLockOwn  = 1 << 9
)

// Flags returned by OPEN/OPENDIR.
const (
	FopenDirectIO   = 1 << 0
	FopenKeepCache  = 1 << 1
	FopenNonSeekable = 1 << 2
)

// INIT request/reply capability flags.
const (
	FuseAsyncRead     = 1 << 0
	FusePosixLocks    = 1 << 1
	FuseFileOps       = 1 << 2
	FuseAtomicOTrunc  = 1 << 3
	FuseExportSupport = 1 << 4
	FuseBigWrites     = 1 << 5
	FuseDontMask      = 1 << 6
	FuseWritebackCache = 1 << 16
	FuseNoOpenSupport  = 1 << 17
	FuseParallelDirops = 1 << 18
)

const (
	RootID         = 1
	KernelVersion  = 7
	MinorVersion   = 31
	MinReadBuffer  = 8192
)

// LK request flags (struct fuse_lk_in.lk_flags).
const (
	FuseLkFlock = 1 << 0
)

// InHeader prefixes every request sent by the kernel.
type InHeader struct {
	Length uint32
	Opcode Opcode
	Unique uint64
	Nodeid uint64
	UID    uint32
	GID    uint32
	PID    uint32
	_      uint32
}

// OutHeader prefixes every reply sent to the kernel.
type OutHeader struct {
	Length uint32
	Error  int32
	Unique uint64
}

// Attr mirrors the kernel's struct fuse_attr.
type Attr struct {
	Ino       uint64
	Size      uint64
	Blocks    uint64
	Atime     uint64
	Mtime     uint64
	Ctime     uint64
	AtimeNsec uint32
	MtimeNsec uint32
	CtimeNsec uint32
	Mode      uint32
	Nlink     uint32
	UID       uint32
	GID       uint32
	Rdev      uint32
	Blksize   uint32
	_         uint32
}

type EntryOut struct {
	Nodeid         uint64
	Generation     uint64
	EntryValid     uint64
	AttrValid      uint64
	EntryValidNsec uint32
	AttrValidNsec  uint32
	Attr           Attr
}

type AttrOut struct {
	AttrValid     uint64
	AttrValidNsec uint32
	_             uint32
	Attr          Attr
}

type ForgetIn struct {
	Nlookup uint64
}

// ForgetOne is one entry of a FUSE_BATCH_FORGET request body.
type ForgetOne struct {
	Nodeid  uint64
	Nlookup uint64
}

type ForgetMultiIn struct {
	Count uint32
	_     uint32
}

type MkdirIn struct {
	Mode  uint32
	Umask uint32
}

type MknodIn struct {
	Mode  uint32
	Rdev  uint32
	Umask uint32
	_     uint32
}

type RenameIn struct {
	Newdir uint64
}

type Rename2In struct {
	Newdir  uint64
	Flags   uint32
	_       uint32
}

type LinkIn struct {
	OldNodeid uint64
}

type SetattrIn struct {
	Valid     uint32
	_         uint32
	Fh        uint64
	Size      uint64
	LockOwner uint64
	Atime     uint64
	Mtime     uint64
	_         uint64
	AtimeNsec uint32
	MtimeNsec uint32
	_         uint32
	Mode      uint32
	_         uint32
	UID       uint32
	GID       uint32
	_         uint32
}

type OpenIn struct {
	Flags uint32
	_     uint32
}

type CreateIn struct {
	Flags uint32
	Mode  uint32
	Umask uint32
	_     uint32
}

type OpenOut struct {
	Fh        uint64
	OpenFlags uint32
	_         uint32
}

type ReleaseIn struct {
	Fh            uint64
	Flags         uint32
	ReleaseFlags  uint32
	LockOwner     uint64
}

type FlushIn struct {
	Fh        uint64
	_         uint32
	_         uint32
	LockOwner uint64
}

type ReadIn struct {
	Fh        uint64
	Offset    uint64
	Size      uint32
	ReadFlags uint32
	LockOwner uint64
	Flags     uint32
	_         uint32
}

type WriteIn struct {
	Fh         uint64
	Offset     uint64
	Size       uint32
	WriteFlags uint32
	LockOwner  uint64
	Flags      uint32
	_          uint32
}

type WriteOut struct {
	Size uint32
	_    uint32
}

type Kstatfs struct {
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Bsize   uint32
	Namelen uint32
	Frsize  uint32
	_       uint32
	_       [6]uint32
}

type StatfsOut struct {
	St Kstatfs
}

type FsyncIn struct {
	Fh         uint64
	FsyncFlags uint32
	_          uint32
}

type SetxattrIn struct {
	Size  uint32
	Flags uint32
}

type GetxattrIn struct {
	Size uint32
	_    uint32
}

type GetxattrOut struct {
	Size uint32
	_    uint32
}

type FileLock struct {
	Start uint64
	End   uint64
	Type  uint32
	PID   uint32
}

type LkIn struct {
	Fh      uint64
	Owner   uint64
	Lk      FileLock
	LkFlags uint32
	_       uint32
}

type LkOut struct {
	Lk FileLock
}

type AccessIn struct {
	Mask uint32
	_    uint32
}

type InitIn struct {
	Major        uint32
	Minor        uint32
	MaxReadahead uint32
	Flags        uint32
}

type InitOut struct {
	Major               uint32
	Minor               uint32
	MaxReadahead        uint32
	Flags               uint32
	MaxBackground       uint16
	CongestionThreshold uint16
	MaxWrite            uint32
	TimeGran            uint32
	MaxPages            uint16
	_                   uint16
	_                   [8]uint32
}

type Dirent struct {
	Ino     uint64
	Off     uint64
	Namelen uint32
	Type    uint32
	// Name follows immediately, padded to an 8-byte boundary.
}

type FallocateIn struct {
	Fh     uint64
	Offset uint64
	Length uint64
	Mode   uint32
	_      uint32
}

type LseekIn struct {
	Fh     uint64
	Offset uint64
	Whence uint32
	_      uint32
}

type LseekOut struct {
	Offset uint64
}

type CopyFileRangeIn struct {
	FhIn    uint64
	OffIn   uint64
	NodeOut uint64
	FhOut   uint64
	OffOut  uint64
	Len     uint64
	Flags   uint64
}
