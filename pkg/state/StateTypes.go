package state

import "sync"


type Clock struct {
	mutex sync.Mutex
	path string
	current uint64
	checkpoint uint64
}

type checkpointFile struct {
	Clock uint64 `json:"clock"`
	Updated string `json:"updated,omitempty"`
}


const NAME = "State"
const FilePerm = 0644
