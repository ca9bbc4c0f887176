// Package multirig implements a multiplexing control plane for
// amateur-radio transceivers that speak the Hamlib rigctl line
// protocol: it aggregates several physical rigs behind one virtual
// rigctl TCP endpoint, fanning out commands to a designated source rig
// and, per policy, to follower rigs, while a background synchronizer
// keeps followers eventually consistent with the source.
package multirig

import "github.com/rcludwick/multirig/rigcontrol/hamlib"

// Config is the top-level, already-validated configuration the core
// receives. Parsing it from YAML/JSON/flags, and persisting it back to
// disk, are external collaborators' responsibilities.
type Config struct {
	Rigs []hamlib.RigConfig

	RigctlListenHost string
	RigctlListenPort int

	SyncEnabled    bool
	SyncSourceIdx  int
	PollIntervalMs int
}

// DefaultConfig returns a minimal, single-rig configuration suitable as
// a starting point for callers building their own.
func DefaultConfig() Config {
	return Config{
		Rigs: []hamlib.RigConfig{
			{Name: "Rig 1", Enabled: true, PollIntervalMs: 1000, Backend: hamlib.BackendTCP, Host: "127.0.0.1", Port: 4532, FollowMain: true},
		},
		RigctlListenHost: "127.0.0.1",
		RigctlListenPort: 4534,
		SyncEnabled:      true,
		SyncSourceIdx:    0,
		PollIntervalMs:   1000,
	}
}
