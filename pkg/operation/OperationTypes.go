package operation

import "errors"

import "github.com/sirgallo/grsfs/pkg/storage"


type Op string

const (
	Read Op = "read"
	Write Op = "write"
	Truncate Op = "truncate"
	Ftruncate Op = "ftruncate"
	Unlink Op = "unlink"
	Mkdir Op = "mkdir"
	Rmdir Op = "rmdir"
	Rename Op = "rename"
	Chmod Op = "chmod"
	Symlink Op = "symlink"
	Readlink Op = "readlink"
	Open Op = "open"
	Close Op = "close"
	Sync Op = "sync"
	Getattr Op = "getattr"
	Fgetattr Op = "fgetattr"
	Readdir Op = "readdir"
	Access Op = "access"
	Statfs Op = "statfs"
	Link Op = "link"
	Chown Op = "chown"
	Mknod Op = "mknod"
	Utimens Op = "utimens"
)

// Binary is a raw byte payload that is explicitly wrapped on the wire.
type Binary []byte

/*
	File Ref
		wire identity of an open file, each node resolves it against its own storage
*/

type FileRef struct {
	Path string `json:"path"`
	Flags int `json:"flags"`
	Mode uint32 `json:"mode"`
}

/*
	Envelope
		the unit of replication, Path2 is the rename or link destination and Target the symlink target
		Atime and Mtime are nanoseconds, a Uid or Gid of -1 leaves that owner unchanged
		the step lives in the internal metadata bag
*/

type Envelope struct {
	Op Op `json:"op"`
	Path string `json:"path,omitempty"`
	Path2 string `json:"path2,omitempty"`
	Target string `json:"target,omitempty"`
	File *FileRef `json:"file,omitempty"`
	Offset int64 `json:"offset,omitempty"`
	Length int64 `json:"length,omitempty"`
	Mode uint32 `json:"mode,omitempty"`
	Flags int `json:"flags,omitempty"`
	Uid int `json:"uid,omitempty"`
	Gid int `json:"gid,omitempty"`
	Dev uint64 `json:"dev,omitempty"`
	Atime int64 `json:"atime,omitempty"`
	Mtime int64 `json:"mtime,omitempty"`
	Data Binary `json:"data,omitempty"`
	Internal map[string]string `json:"internal,omitempty"`
}

type Result struct {
	N int64 `json:"n,omitempty"`
	Data Binary `json:"data,omitempty"`
	Names []string `json:"names,omitempty"`
	Attr *storage.Attr `json:"attr,omitempty"`
	StatFS *storage.StatFS `json:"statfs,omitempty"`
	Target string `json:"target,omitempty"`

	// Handle is only set for local opens and never leaves the node.
	Handle *storage.Handle `json:"-"`
}


const (
	InternalStep = "step"
	InternalRequestID = "request_id"
	InternalOrigin = "origin"
)

const binaryKey = "$binary"

var ErrUnknownOp = errors.New("unknown operation")
var ErrMissingStep = errors.New("envelope has no step")
