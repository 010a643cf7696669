package kernel

import "context"
import "sync"

import "github.com/sirgallo/grsfs/pkg/dispatcher"
import "github.com/sirgallo/grsfs/pkg/logger"
import "github.com/sirgallo/grsfs/pkg/operation"
import "github.com/sirgallo/grsfs/pkg/storage"


type FileID uint64

/*
	Open File
		Ref is what other nodes see of the file, Handle is the local storage handle
		read caches hold no local handle, their file ops are forwarded by ref
*/

type OpenFile struct {
	Ref operation.FileRef
	Handle *storage.Handle
}

type Dispatcher interface {
	DoReadOp(ctx context.Context, req *dispatcher.Request) (*operation.Result, error)
	DoWriteOp(ctx context.Context, req *dispatcher.Request) (*operation.Result, error)
}

type Kernel struct {
	dispatcher Dispatcher

	oftMutex sync.Mutex
	nextID FileID
	oft map[FileID]*OpenFile

	Log *clog.CustomLog
}


const NAME = "Kernel"
