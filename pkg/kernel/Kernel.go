package kernel

import "context"

import "github.com/google/uuid"
import "golang.org/x/sys/unix"

import "github.com/sirgallo/grsfs/pkg/dispatcher"
import "github.com/sirgallo/grsfs/pkg/logger"
import "github.com/sirgallo/grsfs/pkg/operation"
import "github.com/sirgallo/grsfs/pkg/storage"


//=========================================== Kernel Facade


/*
	the surface a filesystem bridge calls into
	every call is synchronous and reports failure as a negative errno, file ids never leave this node
*/

func NewKernel(d Dispatcher) *Kernel {
	return &Kernel{
		dispatcher: d,
		oft: make(map[FileID]*OpenFile),
		Log: clog.NewCustomLog(NAME),
	}
}

//=========================================== Open File Table


func (k *Kernel) OftPut(file *OpenFile) FileID {
	k.oftMutex.Lock()
	defer k.oftMutex.Unlock()

	k.nextID++
	k.oft[k.nextID] = file
	return k.nextID
}

func (k *Kernel) OftGet(id FileID) (*OpenFile, bool) {
	k.oftMutex.Lock()
	defer k.oftMutex.Unlock()

	file, ok := k.oft[id]
	return file, ok
}

func (k *Kernel) OftDrop(id FileID) (*OpenFile, bool) {
	k.oftMutex.Lock()
	defer k.oftMutex.Unlock()

	file, ok := k.oft[id]
	if ok { delete(k.oft, id) }

	return file, ok
}

func (k *Kernel) OftLen() int {
	k.oftMutex.Lock()
	defer k.oftMutex.Unlock()

	return len(k.oft)
}

//=========================================== File Handle Ops


/*
	Open
		a mutating open is replicated like any write, the local handle goes into the open file table
*/

func (k *Kernel) Open(path string, flags int, mode uint32) (FileID, int) {
	env := &operation.Envelope{ Op: operation.Open, Path: path, Flags: flags, Mode: mode }

	res, errno := k.do(env, nil)
	if errno != 0 { return 0, errno }

	file := &OpenFile{ Ref: operation.FileRef{ Path: path, Flags: flags, Mode: mode }, Handle: res.Handle }
	return k.OftPut(file), 0
}

func (k *Kernel) Release(id FileID) int {
	file, ok := k.OftDrop(id)
	if ! ok { return -int(unix.EBADF) }
	if file.Handle == nil { return 0 }

	_, errno := k.do(&operation.Envelope{ Op: operation.Close, File: &file.Ref }, file.Handle)
	return errno
}

func (k *Kernel) Read(id FileID, offset int64, length int64) ([]byte, int) {
	file, ok := k.OftGet(id)
	if ! ok { return nil, -int(unix.EBADF) }

	res, errno := k.do(&operation.Envelope{ Op: operation.Read, File: refOf(file), Offset: offset, Length: length }, file.Handle)
	if errno != 0 { return nil, errno }

	return res.Data, 0
}

// Write returns the number of bytes written or a negative errno.
func (k *Kernel) Write(id FileID, offset int64, data []byte) int {
	file, ok := k.OftGet(id)
	if ! ok { return -int(unix.EBADF) }

	res, errno := k.do(&operation.Envelope{ Op: operation.Write, File: refOf(file), Offset: offset, Data: data }, file.Handle)
	if errno != 0 { return errno }

	return int(res.N)
}

func (k *Kernel) Ftruncate(id FileID, length int64) int {
	file, ok := k.OftGet(id)
	if ! ok { return -int(unix.EBADF) }

	_, errno := k.do(&operation.Envelope{ Op: operation.Ftruncate, File: refOf(file), Length: length }, file.Handle)
	return errno
}

func (k *Kernel) Fsync(id FileID) int {
	file, ok := k.OftGet(id)
	if ! ok { return -int(unix.EBADF) }

	_, errno := k.do(&operation.Envelope{ Op: operation.Sync, File: refOf(file) }, file.Handle)
	return errno
}

func (k *Kernel) Fgetattr(id FileID) (*storage.Attr, int) {
	file, ok := k.OftGet(id)
	if ! ok { return nil, -int(unix.EBADF) }

	res, errno := k.do(&operation.Envelope{ Op: operation.Fgetattr, File: refOf(file) }, file.Handle)
	if errno != 0 { return nil, errno }

	return res.Attr, 0
}

//=========================================== Path Ops


/*
	Read Path / Write Path
		open, op and close in one step, the write is a single replicated step
*/

func (k *Kernel) ReadPath(path string, offset int64, length int64) ([]byte, int) {
	res, errno := k.do(&operation.Envelope{ Op: operation.Read, Path: path, Offset: offset, Length: length }, nil)
	if errno != 0 { return nil, errno }

	return res.Data, 0
}

func (k *Kernel) WritePath(path string, offset int64, data []byte) int {
	res, errno := k.do(&operation.Envelope{ Op: operation.Write, Path: path, Offset: offset, Data: data }, nil)
	if errno != 0 { return errno }

	return int(res.N)
}

func (k *Kernel) Truncate(path string, length int64) int {
	_, errno := k.do(&operation.Envelope{ Op: operation.Truncate, Path: path, Length: length }, nil)
	return errno
}

func (k *Kernel) Getattr(path string) (*storage.Attr, int) {
	res, errno := k.do(&operation.Envelope{ Op: operation.Getattr, Path: path }, nil)
	if errno != 0 { return nil, errno }

	return res.Attr, 0
}

func (k *Kernel) Readdir(path string) ([]string, int) {
	res, errno := k.do(&operation.Envelope{ Op: operation.Readdir, Path: path }, nil)
	if errno != 0 { return nil, errno }

	return res.Names, 0
}

func (k *Kernel) Readlink(path string) (string, int) {
	res, errno := k.do(&operation.Envelope{ Op: operation.Readlink, Path: path }, nil)
	if errno != 0 { return "", errno }

	return res.Target, 0
}

func (k *Kernel) Access(path string, mode uint32) int {
	_, errno := k.do(&operation.Envelope{ Op: operation.Access, Path: path, Mode: mode }, nil)
	return errno
}

func (k *Kernel) Unlink(path string) int {
	_, errno := k.do(&operation.Envelope{ Op: operation.Unlink, Path: path }, nil)
	return errno
}

func (k *Kernel) Mkdir(path string, mode uint32) int {
	_, errno := k.do(&operation.Envelope{ Op: operation.Mkdir, Path: path, Mode: mode }, nil)
	return errno
}

func (k *Kernel) Rmdir(path string) int {
	_, errno := k.do(&operation.Envelope{ Op: operation.Rmdir, Path: path }, nil)
	return errno
}

func (k *Kernel) Rename(src string, dst string) int {
	_, errno := k.do(&operation.Envelope{ Op: operation.Rename, Path: src, Path2: dst }, nil)
	return errno
}

func (k *Kernel) Chmod(path string, mode uint32) int {
	_, errno := k.do(&operation.Envelope{ Op: operation.Chmod, Path: path, Mode: mode }, nil)
	return errno
}

func (k *Kernel) Symlink(target string, link string) int {
	_, errno := k.do(&operation.Envelope{ Op: operation.Symlink, Path: link, Target: target }, nil)
	return errno
}

// Link makes dst a hard link to src.
func (k *Kernel) Link(src string, dst string) int {
	_, errno := k.do(&operation.Envelope{ Op: operation.Link, Path: src, Path2: dst }, nil)
	return errno
}

func (k *Kernel) Chown(path string, uid int, gid int) int {
	_, errno := k.do(&operation.Envelope{ Op: operation.Chown, Path: path, Uid: uid, Gid: gid }, nil)
	return errno
}

func (k *Kernel) Mknod(path string, mode uint32, dev uint64) int {
	_, errno := k.do(&operation.Envelope{ Op: operation.Mknod, Path: path, Mode: mode, Dev: dev }, nil)
	return errno
}

/*
	Utimens
		times are nanoseconds since the epoch, replicated like any other write
*/

func (k *Kernel) Utimens(path string, atime int64, mtime int64) int {
	_, errno := k.do(&operation.Envelope{ Op: operation.Utimens, Path: path, Atime: atime, Mtime: mtime }, nil)
	return errno
}

func (k *Kernel) Statfs() (*storage.StatFS, int) {
	res, errno := k.do(&operation.Envelope{ Op: operation.Statfs }, nil)
	if errno != 0 { return nil, errno }

	return res.StatFS, 0
}

/*
	Execute
		run an arbitrary envelope built outside the kernel, used by the command route
*/

func (k *Kernel) Execute(env *operation.Envelope) (*operation.Result, int) {
	return k.do(env, nil)
}

/*
	do:
		1.) tag the envelope with a request id unless the caller already did
		2.) route writes and reads to the dispatcher as local operations
		3.) fold any error into a negative errno
*/

func (k *Kernel) do(env *operation.Envelope, handle *storage.Handle) (*operation.Result, int) {
	if _, tagged := env.Internal[operation.InternalRequestID]; ! tagged { env.SetInternal(operation.InternalRequestID, uuid.NewString()) }
	req := &dispatcher.Request{ Envelope: env, Handle: handle, Origin: dispatcher.Local }

	var res *operation.Result
	var opErr error
	if env.IsWrite() {
		res, opErr = k.dispatcher.DoWriteOp(context.Background(), req)
	} else { res, opErr = k.dispatcher.DoReadOp(context.Background(), req) }

	if opErr != nil {
		errno := storage.ToErrno(opErr)
		k.Log.Debug(string(env.Op), env.Path, "failed with", errno.Error())
		return nil, -int(errno)
	}

	if res == nil { res = &operation.Result{} }
	return res, 0
}

func refOf(file *OpenFile) *operation.FileRef {
	ref := file.Ref
	return &ref
}
