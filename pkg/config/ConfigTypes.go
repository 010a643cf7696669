package config

import "errors"
import "time"


type PeerAddr struct {
	Host string
	Port int
}

type Config struct {
	// replication
	MinCopies int
	MaxCopies int
	NeverParticipate bool
	Spare bool
	ForceFsyncAfterWrite bool

	// network
	ServerAddress string
	ServerPort int
	HTTPPort int
	NetworkTimeout time.Duration
	Heartbeat time.Duration
	InitialConnectList []PeerAddr
	MaxConn int

	// storage
	BackingStore string
	BackingStoreState string
	JournalPath string
	JournalSize int

	// tls
	Key string
	Cert string
	CACert string

	// logging
	LogDir string
	LogVerbosity string
	LogQuiet bool
}


const NAME = "Config"
const DefaultSection = "grsfs"

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DefaultServerPort = 9090
	DefaultHTTPPort = 8080
	DefaultNetworkTimeout = 5 * time.Second
	DefaultHeartbeat = 1 * time.Second
	DefaultJournalSize = 10000
	DefaultMaxConn = 10
)
