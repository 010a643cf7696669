package state

import "errors"
import "fmt"
import "io/fs"
import "os"
import "path/filepath"
import "time"

import "github.com/sirgallo/grsfs/pkg/logger"
import "github.com/sirgallo/grsfs/pkg/utils"


//=========================================== Clock State


var Log = clog.NewCustomLog(NAME)


/*
	New Clock:
		1.) if the checkpoint file does not exist, initialize it with {clock: 0}
		2.) otherwise load it and set current = checkpoint, anything unfinished before a crash is discarded
*/

func NewClock(path string) (*Clock, error) {
	clock := &Clock{ path: path }

	raw, readErr := os.ReadFile(path)
	if errors.Is(readErr, fs.ErrNotExist) {
		writeErr := writeAtomic(path, checkpointFile{ Clock: 0 })
		if writeErr != nil { return nil, writeErr }

		Log.Info("initialized clock checkpoint at", path)
		return clock, nil
	}

	if readErr != nil { return nil, readErr }

	loaded, decodeErr := utils.DecodeBytesToStruct[checkpointFile](raw)
	if decodeErr != nil { return nil, fmt.Errorf("corrupt clock checkpoint %s: %w", path, decodeErr) }

	clock.current = loaded.Clock
	clock.checkpoint = loaded.Clock

	Log.Info("loaded clock checkpoint", loaded.Clock, "from", path)
	return clock, nil
}

// Advance ID allocates the next step. It is not persisted until CheckpointID.
func (clock *Clock) AdvanceID() uint64 {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()

	clock.current++
	return clock.current
}

/*
	Checkpoint ID
		persist the current step with temp file + fsync + rename, checkpoint only moves on success
*/

func (clock *Clock) CheckpointID() error {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()

	step := clock.current
	writeErr := writeAtomic(clock.path, checkpointFile{ Clock: step, Updated: time.Now().Format(time.RFC3339) })
	if writeErr != nil { return writeErr }

	clock.checkpoint = step
	return nil
}

func (clock *Clock) Current() uint64 {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()

	return clock.current
}

func (clock *Clock) Checkpointed() uint64 {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()

	return clock.checkpoint
}

/*
	Set Step
		used by catch up only, moves the clock to an externally agreed step and persists it
*/

func (clock *Clock) SetStep(step uint64) error {
	clock.mutex.Lock()
	clock.current = step
	clock.mutex.Unlock()

	return clock.CheckpointID()
}

func (clock *Clock) Path() string {
	return clock.path
}

func writeAtomic(path string, contents checkpointFile) error {
	encoded, encErr := utils.EncodeStructToBytes[checkpointFile](contents)
	if encErr != nil { return encErr }

	dir, name := filepath.Split(path)
	if dir == "" { dir = "." }

	tmpFile, createErr := os.CreateTemp(dir, name + ".tmp-*")
	if createErr != nil { return createErr }

	tmpName := tmpFile.Name()
	defer os.Remove(tmpName)

	_, writeErr := tmpFile.Write(encoded)
	if writeErr == nil { writeErr = tmpFile.Chmod(FilePerm) }
	if writeErr == nil { writeErr = tmpFile.Sync() }

	closeErr := tmpFile.Close()
	if writeErr != nil { return writeErr }
	if closeErr != nil { return closeErr }

	return os.Rename(tmpName, path)
}
