package storage

import "errors"
import "io/fs"

import "golang.org/x/sys/unix"


func (e *Errno) Error() string {
	return e.Op + " " + e.Path + ": " + e.Errno.Error()
}

func (e *Errno) Unwrap() error {
	return e.Errno
}

func (e *Errno) ErrnoValue() unix.Errno {
	return e.Errno
}

func NewErrno(op string, path string, errno unix.Errno) *Errno {
	return &Errno{ Op: op, Path: path, Errno: errno }
}

/*
	wrap
		convert whatever the os layer returned into an *Errno so callers always see a numeric errno
*/

func wrap(op string, path string, err error) error {
	if err == nil { return nil }
	return NewErrno(op, path, ToErrno(err))
}

/*
	To Errno
		1.) nil is 0
		2.) anything carrying an errno (storage, dispatcher or remote errors) reports its own
		3.) raw syscall errnos anywhere in the chain
		4.) root escapes are EPERM, well known io/fs sentinels map to their errno
		5.) everything else is EIO
*/

func ToErrno(err error) unix.Errno {
	if err == nil { return 0 }

	var carrier ErrnoCarrier
	if errors.As(err, &carrier) { return carrier.ErrnoValue() }

	var errno unix.Errno
	if errors.As(err, &errno) { return errno }

	switch {
		case errors.Is(err, ErrEscapesRoot):
			return unix.EPERM
		case errors.Is(err, fs.ErrNotExist):
			return unix.ENOENT
		case errors.Is(err, fs.ErrExist):
			return unix.EEXIST
		case errors.Is(err, fs.ErrPermission):
			return unix.EACCES
		case errors.Is(err, fs.ErrClosed):
			return unix.EBADF
		default:
			return unix.EIO
	}
}
