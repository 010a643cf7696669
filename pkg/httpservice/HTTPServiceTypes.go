package httpservice

import "context"
import "net/http"
import "time"

import "github.com/sirgallo/grsfs/pkg/kernel"
import "github.com/sirgallo/grsfs/pkg/logger"
import "github.com/sirgallo/grsfs/pkg/node"
import "github.com/sirgallo/grsfs/pkg/operation"


// Node is what the admin routes drive.
type Node interface {
	Status() node.Status
	RunElection(ctx context.Context) error
	PromoteSpare(ctx context.Context) error
	Kernel() *kernel.Kernel
}

type HTTPServiceOpts struct {
	Port int
	Node Node
}

type HTTPService struct {
	Mux *http.ServeMux
	Port string
	Node Node

	server *http.Server
	Log *clog.CustomLog
}

/*
	Command Request
		one path based filesystem operation, Data is taken as raw text
*/

type CommandRequest struct {
	Op string `json:"op"`
	Path string `json:"path"`
	Path2 string `json:"path2,omitempty"`
	Target string `json:"target,omitempty"`
	Offset int64 `json:"offset,omitempty"`
	Length int64 `json:"length,omitempty"`
	Mode uint32 `json:"mode,omitempty"`
	Uid int `json:"uid,omitempty"`
	Gid int `json:"gid,omitempty"`
	Dev uint64 `json:"dev,omitempty"`
	Atime int64 `json:"atime,omitempty"`
	Mtime int64 `json:"mtime,omitempty"`
	Data string `json:"data,omitempty"`
}

type CommandResponse struct {
	RequestID string `json:"requestId"`
	Errno int `json:"errno"`
	Result *operation.Result `json:"result,omitempty"`
}

type ActionResponse struct {
	OK bool `json:"ok"`
	Error string `json:"error,omitempty"`
}


const NAME = "HTTP Service"

const (
	StatusRoute = "/status"
	ElectionRoute = "/election"
	PromoteRoute = "/promote"
	CommandRoute = "/command"
)

const HTTPTimeout = 10 * time.Second

// open and close manage the kernel's open file table and are not exposed over http
var handleOps = map[operation.Op]bool{
	operation.Open: true,
	operation.Close: true,
}
