package storage

import "fmt"
import "os"
import "path/filepath"
import "strings"

import "golang.org/x/sys/unix"

import "github.com/sirgallo/grsfs/pkg/logger"


//=========================================== Storage Passthrough


var Log = clog.NewCustomLog(NAME)


/*
	New Passthrough
		the root must already exist and be a directory, it is stored absolute and cleaned
*/

func NewPassthrough(root string) (*Passthrough, error) {
	absRoot, absErr := filepath.Abs(root)
	if absErr != nil { return nil, absErr }

	realRoot, realErr := filepath.EvalSymlinks(absRoot)
	if realErr != nil { return nil, realErr }

	info, statErr := os.Stat(realRoot)
	if statErr != nil { return nil, statErr }
	if ! info.IsDir() { return nil, fmt.Errorf("storage root %s is not a directory", realRoot) }

	return &Passthrough{
		Root: filepath.Clean(realRoot),
		Locks: NewLockProvider(),
	}, nil
}

/*
	Resolve:
		join the root relative path onto the root, refusing anything that lands outside it
			1.) the cleaned join must stay under the root
			2.) the deepest existing parent is resolved through its symlinks and must still be under the root
			3.) the last component is not followed, ops that act on a link itself see the link
*/

func (pt *Passthrough) Resolve(path string) (string, error) {
	joined := filepath.Join(pt.Root, path)
	if ! pt.within(joined) { return "", fmt.Errorf("%w: %s", ErrEscapesRoot, path) }
	if joined == pt.Root { return joined, nil }

	parent, parentErr := pt.realParent(filepath.Dir(joined))
	if parentErr != nil { return "", parentErr }
	if ! pt.within(parent) { return "", fmt.Errorf("%w: %s", ErrEscapesRoot, path) }

	return filepath.Join(parent, filepath.Base(joined)), nil
}

/*
	follow
		resolve a path whose last component may itself be a symlink, every hop is confined to the root
		a dangling link resolves to its (confined) target so a create lands inside the root
*/

func (pt *Passthrough) follow(path string) (string, error) {
	resolved, resolveErr := pt.Resolve(path)
	if resolveErr != nil { return "", resolveErr }

	for hops := 0; hops < MaxSymlinkHops; hops++ {
		info, lstatErr := os.Lstat(resolved)
		if lstatErr != nil || info.Mode() & os.ModeSymlink == 0 { return resolved, nil }

		target, readErr := os.Readlink(resolved)
		if readErr != nil { return "", readErr }
		if ! filepath.IsAbs(target) { target = filepath.Join(filepath.Dir(resolved), target) }

		target = filepath.Clean(target)
		if ! pt.within(target) { return "", fmt.Errorf("%w: %s", ErrEscapesRoot, path) }

		rel, relErr := filepath.Rel(pt.Root, target)
		if relErr != nil { return "", relErr }

		resolved, resolveErr = pt.Resolve(rel)
		if resolveErr != nil { return "", resolveErr }
	}

	return "", unix.ELOOP
}

func (pt *Passthrough) within(path string) bool {
	return path == pt.Root || strings.HasPrefix(path, pt.Root + string(filepath.Separator))
}

// realParent evaluates the symlinks of the deepest existing ancestor and re-appends the missing tail.
func (pt *Passthrough) realParent(dir string) (string, error) {
	existing, tail := dir, ""
	for {
		_, lstatErr := os.Lstat(existing)
		if lstatErr == nil { break }
		if ! os.IsNotExist(lstatErr) { return "", lstatErr }

		tail = filepath.Join(filepath.Base(existing), tail)
		next := filepath.Dir(existing)
		if next == existing { break }

		existing = next
	}

	realDir, evalErr := filepath.EvalSymlinks(existing)
	if evalErr != nil { return "", evalErr }

	return filepath.Join(realDir, tail), nil
}

func (pt *Passthrough) Open(path string, flags int, mode uint32) (*Handle, error) {
	resolved, resolveErr := pt.follow(path)
	if resolveErr != nil { return nil, wrap("open", path, resolveErr) }

	file, openErr := os.OpenFile(resolved, flags, os.FileMode(mode & 0777))
	if openErr != nil { return nil, wrap("open", path, openErr) }

	return &Handle{ Path: path, Flags: flags, file: file }, nil
}

func (pt *Passthrough) Close(handle *Handle) error {
	if handle == nil || handle.file == nil { return NewErrno("close", "", unix.EBADF) }
	return wrap("close", handle.Path, handle.file.Close())
}

/*
	Read
		short reads at end of file are not errors, the returned slice is trimmed to what was read
		the buffer never exceeds what is left of a regular file, nor MaxReadLength
*/

func (pt *Passthrough) Read(handle *Handle, offset int64, length int64) ([]byte, error) {
	if handle == nil || handle.file == nil { return nil, NewErrno("read", "", unix.EBADF) }
	if length < 0 || offset < 0 { return nil, NewErrno("read", handle.Path, unix.EINVAL) }

	var stat unix.Stat_t
	statErr := unix.Fstat(int(handle.file.Fd()), &stat)
	if statErr != nil { return nil, wrap("read", handle.Path, statErr) }

	if stat.Mode & unix.S_IFMT == unix.S_IFREG {
		remaining := int64(stat.Size) - offset
		if remaining < 0 { remaining = 0 }
		if length > remaining { length = remaining }
	}

	if length > MaxReadLength { length = MaxReadLength }

	buf := make([]byte, length)
	total := 0

	for total < len(buf) {
		n, readErr := unix.Pread(int(handle.file.Fd()), buf[total:], offset + int64(total))
		if readErr == unix.EINTR { continue }
		if readErr != nil { return nil, wrap("read", handle.Path, readErr) }
		if n == 0 { break }

		total += n
	}

	return buf[:total], nil
}

/*
	Write
		the byte count is always returned, even alongside an error
*/

func (pt *Passthrough) Write(handle *Handle, offset int64, data []byte) (int, error) {
	if handle == nil || handle.file == nil { return 0, NewErrno("write", "", unix.EBADF) }

	total := 0
	for total < len(data) {
		n, writeErr := unix.Pwrite(int(handle.file.Fd()), data[total:], offset + int64(total))
		if writeErr == unix.EINTR { continue }
		if writeErr != nil { return total, wrap("write", handle.Path, writeErr) }
		if n == 0 { return total, NewErrno("write", handle.Path, unix.EIO) }

		total += n
	}

	return total, nil
}

func (pt *Passthrough) Sync(handle *Handle) error {
	if handle == nil || handle.file == nil { return NewErrno("sync", "", unix.EBADF) }
	return wrap("sync", handle.Path, unix.Fsync(int(handle.file.Fd())))
}

func (pt *Passthrough) Ftruncate(handle *Handle, length int64) error {
	if handle == nil || handle.file == nil { return NewErrno("ftruncate", "", unix.EBADF) }
	return wrap("ftruncate", handle.Path, unix.Ftruncate(int(handle.file.Fd()), length))
}

func (pt *Passthrough) Truncate(path string, length int64) error {
	return pt.onTarget("truncate", path, func(resolved string) error { return unix.Truncate(resolved, length) })
}

func (pt *Passthrough) Unlink(path string) error {
	return pt.onPath("unlink", path, unix.Unlink)
}

func (pt *Passthrough) Mkdir(path string, mode uint32) error {
	return pt.onPath("mkdir", path, func(resolved string) error { return unix.Mkdir(resolved, mode) })
}

func (pt *Passthrough) Rmdir(path string) error {
	return pt.onPath("rmdir", path, unix.Rmdir)
}

func (pt *Passthrough) Chmod(path string, mode uint32) error {
	return pt.onTarget("chmod", path, func(resolved string) error { return unix.Chmod(resolved, mode) })
}

func (pt *Passthrough) Access(path string, mode uint32) error {
	return pt.onTarget("access", path, func(resolved string) error { return unix.Access(resolved, mode) })
}

func (pt *Passthrough) Rename(src string, dst string) error {
	resolvedSrc, srcErr := pt.Resolve(src)
	if srcErr != nil { return wrap("rename", src, srcErr) }

	resolvedDst, dstErr := pt.Resolve(dst)
	if dstErr != nil { return wrap("rename", dst, dstErr) }

	return wrap("rename", src, unix.Rename(resolvedSrc, resolvedDst))
}

/*
	Symlink
		the target is stored verbatim, only the link location is confined to the root
*/

func (pt *Passthrough) Symlink(target string, link string) error {
	return pt.onPath("symlink", link, func(resolved string) error { return unix.Symlink(target, resolved) })
}

func (pt *Passthrough) Readlink(path string) (string, error) {
	resolved, resolveErr := pt.Resolve(path)
	if resolveErr != nil { return "", wrap("readlink", path, resolveErr) }

	target, readErr := os.Readlink(resolved)
	if readErr != nil { return "", wrap("readlink", path, readErr) }

	return target, nil
}

func (pt *Passthrough) Getattr(path string) (*Attr, error) {
	resolved, resolveErr := pt.Resolve(path)
	if resolveErr != nil { return nil, wrap("getattr", path, resolveErr) }

	var stat unix.Stat_t
	statErr := unix.Lstat(resolved, &stat)
	if statErr != nil { return nil, wrap("getattr", path, statErr) }

	return toAttr(&stat), nil
}

func (pt *Passthrough) Fgetattr(handle *Handle) (*Attr, error) {
	if handle == nil || handle.file == nil { return nil, NewErrno("fgetattr", "", unix.EBADF) }

	var stat unix.Stat_t
	statErr := unix.Fstat(int(handle.file.Fd()), &stat)
	if statErr != nil { return nil, wrap("fgetattr", handle.Path, statErr) }

	return toAttr(&stat), nil
}

/*
	Readdir
		names only, sorted, without "." and ".."
*/

func (pt *Passthrough) Readdir(path string) ([]string, error) {
	resolved, resolveErr := pt.follow(path)
	if resolveErr != nil { return nil, wrap("readdir", path, resolveErr) }

	entries, readErr := os.ReadDir(resolved)
	if readErr != nil { return nil, wrap("readdir", path, readErr) }

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	return names, nil
}

func (pt *Passthrough) Statfs() (*StatFS, error) {
	var stat unix.Statfs_t
	statErr := unix.Statfs(pt.Root, &stat)
	if statErr != nil { return nil, wrap("statfs", "/", statErr) }

	return &StatFS{
		Bsize: uint64(stat.Bsize),
		Blocks: uint64(stat.Blocks),
		Bfree: uint64(stat.Bfree),
		Bavail: uint64(stat.Bavail),
		Files: uint64(stat.Files),
		Ffree: uint64(stat.Ffree),
	}, nil
}

/*
	Link
		a hard link of src at dst, neither side is followed
*/

func (pt *Passthrough) Link(src string, dst string) error {
	resolvedSrc, srcErr := pt.Resolve(src)
	if srcErr != nil { return wrap("link", src, srcErr) }

	resolvedDst, dstErr := pt.Resolve(dst)
	if dstErr != nil { return wrap("link", dst, dstErr) }

	return wrap("link", src, unix.Link(resolvedSrc, resolvedDst))
}

// Chown leaves an id untouched when it is -1.
func (pt *Passthrough) Chown(path string, uid int, gid int) error {
	return pt.onTarget("chown", path, func(resolved string) error { return unix.Chown(resolved, uid, gid) })
}

func (pt *Passthrough) Mknod(path string, mode uint32, dev uint64) error {
	return pt.onPath("mknod", path, func(resolved string) error { return unix.Mknod(resolved, mode, int(dev)) })
}

/*
	Utimens
		access and modification times in nanoseconds since the epoch
*/

func (pt *Passthrough) Utimens(path string, atime int64, mtime int64) error {
	times := []unix.Timespec{ unix.NsecToTimespec(atime), unix.NsecToTimespec(mtime) }
	return pt.onTarget("utimens", path, func(resolved string) error { return unix.UtimesNano(resolved, times) })
}

func (pt *Passthrough) onTarget(op string, path string, operation func(string) error) error {
	resolved, resolveErr := pt.follow(path)
	if resolveErr != nil { return wrap(op, path, resolveErr) }

	return wrap(op, path, operation(resolved))
}

func (pt *Passthrough) onPath(op string, path string, operation func(string) error) error {
	resolved, resolveErr := pt.Resolve(path)
	if resolveErr != nil { return wrap(op, path, resolveErr) }

	return wrap(op, path, operation(resolved))
}

func toAttr(stat *unix.Stat_t) *Attr {
	return &Attr{
		Mode: uint32(stat.Mode),
		Size: int64(stat.Size),
		Nlink: uint64(stat.Nlink),
		Uid: stat.Uid,
		Gid: stat.Gid,
		Ino: uint64(stat.Ino),
		Atime: int64(stat.Atim.Sec),
		Mtime: int64(stat.Mtim.Sec),
		Ctime: int64(stat.Ctim.Sec),
	}
}
