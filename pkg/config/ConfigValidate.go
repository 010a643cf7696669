package config

import "errors"
import "fmt"


/*
	Validate
		every problem found is reported, wrapped in ErrInvalidConfig
*/

func (cfg *Config) Validate() error {
	var problems []error
	invalid := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Errorf("%w: " + format, append([]interface{}{ ErrInvalidConfig }, args...)...))
	}

	if cfg.MinCopies < 0 { invalid("mincopies must not be negative, got %d", cfg.MinCopies) }
	if cfg.MinCopies > 0 && cfg.MaxCopies < cfg.MinCopies + 1 {
		invalid("maxcopies (%d) must be at least mincopies + 1 (%d)", cfg.MaxCopies, cfg.MinCopies + 1)
	}

	if cfg.NeverParticipate && cfg.Spare { invalid("neverparticipate and spare are exclusive") }
	if cfg.ServerAddress == "" { invalid("serveraddress is required") }
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 { invalid("serverport out of range: %d", cfg.ServerPort) }
	if cfg.HTTPPort < 0 || cfg.HTTPPort > 65535 { invalid("httpport out of range: %d", cfg.HTTPPort) }
	if cfg.NetworkTimeout <= 0 { invalid("networktimeout must be positive") }
	if cfg.Heartbeat <= 0 { invalid("heartbeat must be positive") }
	if cfg.BackingStore == "" { invalid("backingstore is required") }
	if cfg.BackingStoreState == "" { invalid("backingstorestate is required") }
	if cfg.JournalSize < 0 { invalid("journalsize must not be negative") }
	if (cfg.Key == "") != (cfg.Cert == "") { invalid("key and cert must be configured together") }

	self := PeerAddr{ Host: cfg.ServerAddress, Port: cfg.ServerPort }
	seen := make(map[PeerAddr]bool)

	for _, peer := range cfg.InitialConnectList {
		if peer.Host == "" || peer.Port <= 0 || peer.Port > 65535 { invalid("invalid peer tuple %s", peer) }
		if peer == self { invalid("initial_connect_list contains this node (%s)", peer) }
		if seen[peer] { invalid("duplicate peer %s in initial_connect_list", peer) }

		seen[peer] = true
	}

	return errors.Join(problems...)
}
