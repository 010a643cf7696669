package httpservice

import "encoding/json"
import "errors"
import "fmt"
import "net/http"

import "github.com/google/uuid"

import "github.com/sirgallo/grsfs/pkg/operation"


var ErrHandleOp = errors.New("file handle ops are not available over http")


func (httpService *HTTPService) GenerateRequestUUID() string {
	id := uuid.New()
	return id.String()
}

func (requestData *CommandRequest) envelope() (*operation.Envelope, error) {
	op, parseErr := operation.ParseOp(requestData.Op)
	if parseErr != nil { return nil, parseErr }
	if handleOps[op] { return nil, fmt.Errorf("%w: %s", ErrHandleOp, op) }

	env := &operation.Envelope{
		Op: op,
		Path: requestData.Path,
		Path2: requestData.Path2,
		Target: requestData.Target,
		Offset: requestData.Offset,
		Length: requestData.Length,
		Mode: requestData.Mode,
		Uid: requestData.Uid,
		Gid: requestData.Gid,
		Dev: requestData.Dev,
		Atime: requestData.Atime,
		Mtime: requestData.Mtime,
	}

	if requestData.Data != "" { env.Data = operation.Binary(requestData.Data) }
	return env, nil
}

func (httpService *HTTPService) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	responseJSON, encErr := json.Marshal(body)
	if encErr != nil {
		http.Error(w, "failed to encode JSON response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_, writeErr := w.Write(responseJSON)
	if writeErr != nil { httpService.Log.Warn("unable to write response:", writeErr.Error()) }
}
