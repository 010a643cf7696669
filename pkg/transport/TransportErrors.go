package transport

import "encoding/json"
import "errors"
import "fmt"

import "golang.org/x/sys/unix"
import "google.golang.org/grpc/codes"
import "google.golang.org/grpc/status"

import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/operation"
import "github.com/sirgallo/grsfs/pkg/storage"


//=========================================== Remote Errors


func (e *RemoteError) Error() string {
	if e.Errno != 0 { return fmt.Sprintf("%s from %s: [errno %d] %s", e.Kind, e.Peer, int(e.Errno), e.Message) }
	return fmt.Sprintf("%s from %s: %s", e.Kind, e.Peer, e.Message)
}

func (e *RemoteError) Unwrap() error {
	if e.Errno != 0 { return e.Errno }
	return nil
}

/*
	Errno Value
		io and os errors keep the remote errno, value and type errors are EINVAL, anything else EIO
*/

func (e *RemoteError) ErrnoValue() unix.Errno {
	switch e.Kind {
		case IOError, OSError:
			if e.Errno != 0 { return e.Errno }
			return unix.EIO
		case ValueError, TypeError:
			return unix.EINVAL
		default:
			return unix.EIO
	}
}

func (h ReplyHeader) GetFault() *Fault {
	return h.Fault
}

func (f *Fault) Err(peer group.Conn) error {
	if f == nil { return nil }
	return &RemoteError{ Peer: peer, Kind: f.Kind, Errno: unix.Errno(f.Errno), Message: f.Message }
}

/*
	Fault From Error:
		marshal a handler error into one of the allowed wire shapes
			1.) remote errors being relayed keep their shape
			2.) unknown ops and invalid arguments are ValueError
			3.) undecodable payloads are TypeError
			4.) storage errors are OSError with their errno
			5.) any other error carrying an errno is IOError
			6.) everything else is a generic fault
*/

func FaultFromError(err error) *Fault {
	if err == nil { return nil }

	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return &Fault{ Kind: remoteErr.Kind, Errno: int(remoteErr.Errno), Message: remoteErr.Message }
	}

	if errors.Is(err, operation.ErrUnknownOp) || errors.Is(err, operation.ErrMissingStep) {
		return &Fault{ Kind: ValueError, Message: err.Error() }
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.Is(err, ErrBadPayload) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &Fault{ Kind: TypeError, Message: err.Error() }
	}

	var storageErr *storage.Errno
	if errors.As(err, &storageErr) {
		return &Fault{ Kind: OSError, Errno: int(storageErr.Errno), Message: err.Error() }
	}

	var carrier storage.ErrnoCarrier
	if errors.As(err, &carrier) {
		return &Fault{ Kind: IOError, Errno: int(carrier.ErrnoValue()), Message: err.Error() }
	}

	var errno unix.Errno
	if errors.As(err, &errno) {
		return &Fault{ Kind: OSError, Errno: int(errno), Message: err.Error() }
	}

	return &Fault{ Kind: GenericFault, Message: err.Error() }
}

/*
	classify
		transport level failures become ErrPeerUnreachable, any other grpc status is a generic remote fault
*/

func classify(peer group.Conn, err error) error {
	st, ok := status.FromError(err)
	if ! ok { return fmt.Errorf("%w: %s: %v", ErrPeerUnreachable, peer, err) }

	switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
			return fmt.Errorf("%w: %s: %s", ErrPeerUnreachable, peer, st.Message())
		default:
			return &RemoteError{ Peer: peer, Kind: GenericFault, Message: st.Message() }
	}
}

func IsUnreachable(err error) bool {
	return errors.Is(err, ErrPeerUnreachable)
}
