package operation

import "encoding/base64"
import "encoding/json"
import "fmt"
import "os"
import "strconv"

import "github.com/sirgallo/grsfs/pkg/utils"


//=========================================== Operation


var knownOps = map[Op]bool{
	Read: false, Write: true, Truncate: true, Ftruncate: true, Unlink: true, Mkdir: true, Rmdir: true,
	Rename: true, Chmod: true, Symlink: true, Readlink: false, Open: false, Close: false, Sync: true,
	Getattr: false, Fgetattr: false, Readdir: false, Access: false, Statfs: false,
	Link: true, Chown: true, Mknod: true, Utimens: true,
}

func ParseOp(name string) (Op, error) {
	op := Op(name)
	if _, ok := knownOps[op]; ! ok { return "", fmt.Errorf("%w: %q", ErrUnknownOp, name) }

	return op, nil
}

func (op Op) Valid() bool {
	_, ok := knownOps[op]
	return ok
}

/*
	Is Write
		open is a write only when it can change the namespace or the file, i.e. write access, create or truncate
*/

func (env *Envelope) IsWrite() bool {
	if env.Op == Open { return OpenMutates(env.Flags) }
	return knownOps[env.Op]
}

func OpenMutates(flags int) bool {
	return flags & (os.O_WRONLY | os.O_RDWR) != 0 || flags & (os.O_CREATE | os.O_TRUNC) != 0
}

// Reopen Flags strips the flags that must only take effect on the first open.
func ReopenFlags(flags int) int {
	return flags &^ (os.O_CREATE | os.O_EXCL | os.O_TRUNC)
}

/*
	Paths
		every root relative path the envelope touches, used as lock keys
*/

func (env *Envelope) Paths() []string {
	var paths []string
	for _, path := range []string{ env.Path, env.Path2 } {
		if path != "" { paths = append(paths, path) }
	}

	if env.File != nil && env.File.Path != "" { paths = append(paths, env.File.Path) }
	return paths
}

func (env *Envelope) SetStep(step uint64) {
	env.SetInternal(InternalStep, strconv.FormatUint(step, 10))
}

func (env *Envelope) Step() (uint64, bool) {
	raw, ok := env.Internal[InternalStep]
	if ! ok { return 0, false }

	step, parseErr := strconv.ParseUint(raw, 10, 64)
	if parseErr != nil { return 0, false }

	return step, true
}

func (env *Envelope) SetInternal(key string, value string) {
	if env.Internal == nil { env.Internal = make(map[string]string) }
	env.Internal[key] = value
}

/*
	Clone
		a copy safe to hand to another goroutine, the data slice and internal bag are not shared
*/

func (env *Envelope) Clone() *Envelope {
	cloned := *env
	if env.File != nil {
		file := *env.File
		cloned.File = &file
	}

	if env.Data != nil { cloned.Data = append(Binary{}, env.Data...) }

	cloned.Internal = make(map[string]string, len(env.Internal))
	for key, value := range env.Internal {
		cloned.Internal[key] = value
	}

	return &cloned
}

func EncodeEnvelope(env *Envelope) ([]byte, error) {
	return utils.EncodeStructToBytes[*Envelope](env)
}

func DecodeEnvelope(encoded []byte) (*Envelope, error) {
	env, decodeErr := utils.DecodeBytesToStruct[Envelope](encoded)
	if decodeErr != nil { return nil, decodeErr }
	if ! env.Op.Valid() { return nil, fmt.Errorf("%w: %q", ErrUnknownOp, env.Op) }

	return env, nil
}

//=========================================== Binary Wrapping


func (bin Binary) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{ binaryKey: base64.StdEncoding.EncodeToString(bin) })
}

func (bin *Binary) UnmarshalJSON(data []byte) error {
	var wrapped map[string]string
	unmarshalErr := json.Unmarshal(data, &wrapped)
	if unmarshalErr != nil { return unmarshalErr }

	encoded, ok := wrapped[binaryKey]
	if ! ok { return fmt.Errorf("binary payload missing %s", binaryKey) }

	decoded, decodeErr := base64.StdEncoding.DecodeString(encoded)
	if decodeErr != nil { return decodeErr }

	*bin = decoded
	return nil
}
