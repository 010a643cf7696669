package storage

import "errors"
import "os"
import "sync"

import "golang.org/x/sys/unix"


type Passthrough struct {
	Root string
	Locks *LockProvider
}

type Handle struct {
	Path string
	Flags int
	file *os.File
}

type Attr struct {
	Mode uint32 `json:"mode"`
	Size int64 `json:"size"`
	Nlink uint64 `json:"nlink"`
	Uid uint32 `json:"uid"`
	Gid uint32 `json:"gid"`
	Ino uint64 `json:"ino"`
	Atime int64 `json:"atime"`
	Mtime int64 `json:"mtime"`
	Ctime int64 `json:"ctime"`
}

type StatFS struct {
	Bsize uint64 `json:"bsize"`
	Blocks uint64 `json:"blocks"`
	Bfree uint64 `json:"bfree"`
	Bavail uint64 `json:"bavail"`
	Files uint64 `json:"files"`
	Ffree uint64 `json:"ffree"`
}

/*
	Errno
		typed storage failure, the op and the root relative path it was attempted on
*/

type Errno struct {
	Op string
	Path string
	Errno unix.Errno
}

// ErrnoCarrier is implemented by any error that resolves to a single errno.
type ErrnoCarrier interface {
	ErrnoValue() unix.Errno
}

type LockProvider struct {
	mutex sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.RWMutex
	refs int
}

type Unlocker func()


const NAME = "Storage"

const MaxReadLength = 64 << 20
const MaxSymlinkHops = 40

var ErrEscapesRoot = errors.New("path escapes storage root")
