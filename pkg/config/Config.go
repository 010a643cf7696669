package config

import "flag"
import "fmt"
import "net"
import "os"
import "strconv"
import "strings"

import "gopkg.in/ini.v1"


//=========================================== Config


func Default() *Config {
	hostname, hostErr := os.Hostname()
	if hostErr != nil { hostname = "localhost" }

	return &Config{
		MinCopies: 1,
		MaxCopies: 2,
		ServerAddress: hostname,
		ServerPort: DefaultServerPort,
		HTTPPort: DefaultHTTPPort,
		NetworkTimeout: DefaultNetworkTimeout,
		Heartbeat: DefaultHeartbeat,
		MaxConn: DefaultMaxConn,
		BackingStore: "storage",
		BackingStoreState: "storage.state",
		JournalPath: "storage.journal",
		JournalSize: DefaultJournalSize,
		LogVerbosity: "info",
	}
}

/*
	Load:
		1.) start from defaults
		2.) parse the command line once to find -config
		3.) if an ini file was given, load it over the defaults
		4.) re-apply only the flags that were set explicitly so the command line wins over the file
*/

func Load(args []string) (*Config, error) {
	cfg := Default()
	
	fs := flag.NewFlagSet("grsfs", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to an ini configuration file")
	RegisterFlags(fs, cfg)

	parseErr := fs.Parse(args)
	if parseErr != nil { return nil, parseErr }

	if *configPath != "" {
		fileCfg := Default()
		loadErr := LoadFile(*configPath, fileCfg)
		if loadErr != nil { return nil, loadErr }

		overrides := flag.NewFlagSet("grsfs-overrides", flag.ContinueOnError)
		overrides.String("config", "", "")
		RegisterFlags(overrides, fileCfg)

		var setErr error
		fs.Visit(func(f *flag.Flag) {
			if setErr != nil { return }
			setErr = overrides.Set(f.Name, f.Value.String())
		})

		if setErr != nil { return nil, setErr }
		cfg = fileCfg
	}

	validateErr := cfg.Validate()
	if validateErr != nil { return nil, validateErr }

	return cfg, nil
}

/*
	Load File
		keys are read from the default section first, then from [grsfs], later values winning
*/

func LoadFile(path string, cfg *Config) error {
	file, loadErr := ini.Load(path)
	if loadErr != nil { return loadErr }

	for _, section := range []*ini.Section{ file.Section(""), file.Section(DefaultSection) } {
		applyErr := applySection(section, cfg)
		if applyErr != nil { return fmt.Errorf("%s: %w", path, applyErr) }
	}

	return nil
}

func applySection(section *ini.Section, cfg *Config) error {
	cfg.MinCopies = section.Key("mincopies").MustInt(cfg.MinCopies)
	cfg.MaxCopies = section.Key("maxcopies").MustInt(cfg.MaxCopies)
	cfg.NeverParticipate = section.Key("neverparticipate").MustBool(cfg.NeverParticipate)
	cfg.Spare = section.Key("spare").MustBool(cfg.Spare)
	cfg.ForceFsyncAfterWrite = section.Key("forcefsyncafterwrite").MustBool(cfg.ForceFsyncAfterWrite)

	cfg.ServerAddress = section.Key("serveraddress").MustString(cfg.ServerAddress)
	cfg.ServerPort = section.Key("serverport").MustInt(cfg.ServerPort)
	cfg.HTTPPort = section.Key("httpport").MustInt(cfg.HTTPPort)
	cfg.NetworkTimeout = section.Key("networktimeout").MustDuration(cfg.NetworkTimeout)
	cfg.Heartbeat = section.Key("heartbeat").MustDuration(cfg.Heartbeat)
	cfg.MaxConn = section.Key("maxconn").MustInt(cfg.MaxConn)

	cfg.BackingStore = section.Key("backingstore").MustString(cfg.BackingStore)
	cfg.BackingStoreState = section.Key("backingstorestate").MustString(cfg.BackingStoreState)
	cfg.JournalPath = section.Key("journal").MustString(cfg.JournalPath)
	cfg.JournalSize = section.Key("journalsize").MustInt(cfg.JournalSize)

	cfg.Key = section.Key("key").MustString(cfg.Key)
	cfg.Cert = section.Key("cert").MustString(cfg.Cert)
	cfg.CACert = section.Key("cacert").MustString(cfg.CACert)

	cfg.LogDir = section.Key("logdir").MustString(cfg.LogDir)
	cfg.LogVerbosity = section.Key("logverbosity").MustString(cfg.LogVerbosity)
	cfg.LogQuiet = section.Key("logquiet").MustBool(cfg.LogQuiet)

	if section.HasKey("initial_connect_list") {
		peers, parseErr := ParseConnectList(section.Key("initial_connect_list").String())
		if parseErr != nil { return parseErr }

		cfg.InitialConnectList = peers
	}

	return nil
}

/*
	Register Flags
		bind every option to a flag, using the current value of cfg as the default
*/

func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.MinCopies, "mincopies", cfg.MinCopies, "minimum live replicas for writes, 0 runs singular")
	fs.IntVar(&cfg.MaxCopies, "maxcopies", cfg.MaxCopies, "copies at which replication is sufficient")
	fs.BoolVar(&cfg.NeverParticipate, "neverparticipate", cfg.NeverParticipate, "run as a read cache only")
	fs.BoolVar(&cfg.Spare, "spare", cfg.Spare, "start as a spare")
	fs.BoolVar(&cfg.ForceFsyncAfterWrite, "forcefsyncafterwrite", cfg.ForceFsyncAfterWrite, "fsync after every write")

	fs.StringVar(&cfg.ServerAddress, "serveraddress", cfg.ServerAddress, "address peers use to reach this node")
	fs.IntVar(&cfg.ServerPort, "serverport", cfg.ServerPort, "peer rpc port")
	fs.IntVar(&cfg.HTTPPort, "httpport", cfg.HTTPPort, "operator http port, 0 disables")
	fs.DurationVar(&cfg.NetworkTimeout, "networktimeout", cfg.NetworkTimeout, "connect and call timeout")
	fs.DurationVar(&cfg.Heartbeat, "heartbeat", cfg.Heartbeat, "watchdog interval")
	fs.IntVar(&cfg.MaxConn, "maxconn", cfg.MaxConn, "max pooled connections per peer")
	fs.Var(&connectListValue{ cfg: cfg }, "initial_connect_list", "comma separated host:port seed peers")

	fs.StringVar(&cfg.BackingStore, "backingstore", cfg.BackingStore, "storage root directory")
	fs.StringVar(&cfg.BackingStoreState, "backingstorestate", cfg.BackingStoreState, "clock checkpoint file")
	fs.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "journal database file")
	fs.IntVar(&cfg.JournalSize, "journalsize", cfg.JournalSize, "journal entries retained for catch up")

	fs.StringVar(&cfg.Key, "key", cfg.Key, "tls private key")
	fs.StringVar(&cfg.Cert, "cert", cfg.Cert, "tls certificate")
	fs.StringVar(&cfg.CACert, "cacert", cfg.CACert, "tls certificate authority")

	fs.StringVar(&cfg.LogDir, "logdir", cfg.LogDir, "directory for log files, empty logs to stdout")
	fs.StringVar(&cfg.LogVerbosity, "logverbosity", cfg.LogVerbosity, "debug, info, warn or error")
	fs.BoolVar(&cfg.LogQuiet, "logquiet", cfg.LogQuiet, "only log errors")
}

/*
	Parse Connect List
		"host:port,host:port" into peer addresses, empty entries are skipped
*/

func ParseConnectList(list string) ([]PeerAddr, error) {
	var peers []PeerAddr

	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" { continue }

		host, portStr, splitErr := net.SplitHostPort(entry)
		if splitErr != nil { return nil, fmt.Errorf("%w: peer %q: %v", ErrInvalidConfig, entry, splitErr) }

		port, portErr := strconv.Atoi(portStr)
		if portErr != nil || port <= 0 || port > 65535 || host == "" {
			return nil, fmt.Errorf("%w: peer %q has an invalid host or port", ErrInvalidConfig, entry)
		}

		peers = append(peers, PeerAddr{ Host: host, Port: port })
	}

	return peers, nil
}

func FormatConnectList(peers []PeerAddr) string {
	entries := make([]string, 0, len(peers))
	for _, peer := range peers {
		entries = append(entries, peer.String())
	}

	return strings.Join(entries, ",")
}

func (addr PeerAddr) String() string {
	return net.JoinHostPort(addr.Host, strconv.Itoa(addr.Port))
}

type connectListValue struct {
	cfg *Config
}

func (v *connectListValue) String() string {
	if v == nil || v.cfg == nil { return "" }
	return FormatConnectList(v.cfg.InitialConnectList)
}

func (v *connectListValue) Set(list string) error {
	peers, parseErr := ParseConnectList(list)
	if parseErr != nil { return parseErr }

	v.cfg.InitialConnectList = peers
	return nil
}
