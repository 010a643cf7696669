package dispatcher

import "fmt"
import "os"

import "github.com/sirgallo/grsfs/pkg/operation"
import "github.com/sirgallo/grsfs/pkg/storage"


//=========================================== Apply


const pathWriteMode = 0644

/*
	Apply:
		run one envelope against local storage
			1.) resolve the storage handle for file ops: the caller's own handle, a reopen of the file ref,
				or a path open for path addressed reads and writes
			2.) execute the op
			3.) sync the handle when asked, then close any handle opened here
		an open from a remote origin only has its side effects, the handle never leaves the node
*/

func (d *Dispatcher) apply(req *Request, sync bool) (*operation.Result, error) {
	env := req.Envelope

	handle, release, handleErr := d.resolveHandle(req)
	if handleErr != nil { return nil, handleErr }
	if release != nil { defer release() }

	result, applyErr := d.execute(env, handle, req.Origin)
	if applyErr == nil && sync && handle != nil { 
		syncErr := d.storage.Sync(handle)
		if syncErr != nil { d.Log.Warn("forced fsync failed:", syncErr.Error()) }
	}

	return result, applyErr
}

func (d *Dispatcher) execute(env *operation.Envelope, handle *storage.Handle, origin Origin) (*operation.Result, error) {
	switch env.Op {
		case operation.Read:
			data, readErr := d.storage.Read(handle, env.Offset, env.Length)
			if readErr != nil { return nil, readErr }
			return &operation.Result{ N: int64(len(data)), Data: data }, nil
		case operation.Write:
			written, writeErr := d.storage.Write(handle, env.Offset, env.Data)
			if writeErr != nil { return &operation.Result{ N: int64(written) }, writeErr }
			return &operation.Result{ N: int64(written) }, nil
		case operation.Ftruncate:
			return &operation.Result{}, d.storage.Ftruncate(handle, env.Length)
		case operation.Sync:
			return &operation.Result{}, d.storage.Sync(handle)
		case operation.Fgetattr:
			attr, attrErr := d.storage.Fgetattr(handle)
			if attrErr != nil { return nil, attrErr }
			return &operation.Result{ Attr: attr }, nil
		case operation.Truncate:
			return &operation.Result{}, d.storage.Truncate(env.Path, env.Length)
		case operation.Unlink:
			return &operation.Result{}, d.storage.Unlink(env.Path)
		case operation.Mkdir:
			return &operation.Result{}, d.storage.Mkdir(env.Path, env.Mode)
		case operation.Rmdir:
			return &operation.Result{}, d.storage.Rmdir(env.Path)
		case operation.Rename:
			return &operation.Result{}, d.storage.Rename(env.Path, env.Path2)
		case operation.Chmod:
			return &operation.Result{}, d.storage.Chmod(env.Path, env.Mode)
		case operation.Link:
			return &operation.Result{}, d.storage.Link(env.Path, env.Path2)
		case operation.Chown:
			return &operation.Result{}, d.storage.Chown(env.Path, env.Uid, env.Gid)
		case operation.Mknod:
			return &operation.Result{}, d.storage.Mknod(env.Path, env.Mode, env.Dev)
		case operation.Utimens:
			return &operation.Result{}, d.storage.Utimens(env.Path, env.Atime, env.Mtime)
		case operation.Symlink:
			return &operation.Result{}, d.storage.Symlink(env.Target, env.Path)
		case operation.Readlink:
			target, linkErr := d.storage.Readlink(env.Path)
			if linkErr != nil { return nil, linkErr }
			return &operation.Result{ Target: target }, nil
		case operation.Getattr:
			attr, attrErr := d.storage.Getattr(env.Path)
			if attrErr != nil { return nil, attrErr }
			return &operation.Result{ Attr: attr }, nil
		case operation.Readdir:
			names, dirErr := d.storage.Readdir(env.Path)
			if dirErr != nil { return nil, dirErr }
			return &operation.Result{ Names: names }, nil
		case operation.Access:
			return &operation.Result{}, d.storage.Access(env.Path, env.Mode)
		case operation.Statfs:
			statfs, statErr := d.storage.Statfs()
			if statErr != nil { return nil, statErr }
			return &operation.Result{ StatFS: statfs }, nil
		case operation.Open:
			opened, openErr := d.storage.Open(env.Path, env.Flags, env.Mode)
			if openErr != nil { return nil, openErr }
			if origin == Local { return &operation.Result{ Handle: opened }, nil }
			return &operation.Result{}, d.storage.Close(opened)
		case operation.Close:
			if handle == nil { return &operation.Result{}, nil }
			return &operation.Result{}, d.storage.Close(handle)
		default:
			return nil, fmt.Errorf("%w: %q", operation.ErrUnknownOp, env.Op)
	}
}

/*
	resolve handle
		the returned release closes a handle that was opened only for this op, it is nil otherwise
*/

func (d *Dispatcher) resolveHandle(req *Request) (*storage.Handle, func(), error) {
	env := req.Envelope
	if ! needsHandle(env.Op) { return nil, nil, nil }
	if req.Handle != nil { return req.Handle, nil, nil }
	if env.Op == operation.Close { return nil, nil, nil }

	var path string
	var flags int
	var mode uint32

	switch {
		case env.File != nil:
			path, flags, mode = env.File.Path, operation.ReopenFlags(env.File.Flags), env.File.Mode
		case env.Op == operation.Write:
			path, flags, mode = env.Path, os.O_WRONLY | os.O_CREATE, pathWriteMode
		case env.Op == operation.Ftruncate || env.Op == operation.Sync:
			path, flags = env.Path, os.O_WRONLY
		default:
			path, flags = env.Path, os.O_RDONLY
	}

	handle, openErr := d.storage.Open(path, flags, mode)
	if openErr != nil { return nil, nil, openErr }

	release := func() {
		closeErr := d.storage.Close(handle)
		if closeErr != nil { d.Log.Warn("unable to close", path, closeErr.Error()) }
	}

	return handle, release, nil
}

func needsHandle(op operation.Op) bool {
	switch op {
		case operation.Read, operation.Write, operation.Ftruncate, operation.Sync, operation.Fgetattr, operation.Close:
			return true
		default:
			return false
	}
}
