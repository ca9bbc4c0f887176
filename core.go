package multirig

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rcludwick/multirig/debuglog"
	"github.com/rcludwick/multirig/rigcontrol/hamlib"
	"github.com/rcludwick/multirig/rigctlsrv"
	"github.com/rcludwick/multirig/rigsync"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Core owns the rig list, the virtual rigctl server, and the
// synchronizer, and is the single entry point external collaborators
// (an HTTP API, a CLI) use to drive the control plane.
type Core struct {
	log *logrus.Entry

	mu          sync.Mutex
	cfg         Config
	rigs        atomic.Pointer[[]*hamlib.Rig]
	syncEnabled atomic.Bool
	sourceIdx   atomic.Int64
	pollMs      atomic.Int64

	debug *debuglog.Store

	server *rigctlsrv.Server
	syncer *rigsync.Synchronizer

	started bool
}

// New constructs a Core. Apply must be called at least once before
// Start.
func New(log *logrus.Entry) *Core {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Core{log: log, debug: debuglog.NewStore()}
	empty := []*hamlib.Rig{}
	c.rigs.Store(&empty)
	return c
}

// Rigs implements rigctlsrv.State and rigsync.State.
func (c *Core) Rigs() []*hamlib.Rig { return *c.rigs.Load() }

// SourceIndex implements rigctlsrv.State and rigsync.State.
func (c *Core) SourceIndex() int { return int(c.sourceIdx.Load()) }

// SyncEnabled implements rigctlsrv.State and rigsync.State.
func (c *Core) SyncEnabled() bool { return c.syncEnabled.Load() }

// PollIntervalMs implements rigsync.State.
func (c *Core) PollIntervalMs() int {
	if ms := int(c.pollMs.Load()); ms > 0 {
		return ms
	}
	return 1000
}

func buildBackend(rc hamlib.RigConfig, log *logrus.Entry) (hamlib.Backend, error) {
	switch rc.Backend {
	case hamlib.BackendManaged:
		return hamlib.NewManagedBackend(hamlib.ManagedConfig{
			ModelID:    rc.ModelID,
			Device:     rc.Device,
			Baud:       rc.Baud,
			SerialOpts: rc.SerialOpts,
			ExtraArgs:  rc.ExtraArgs,
		}, log), nil
	case hamlib.BackendTCP, "":
		addr := fmt.Sprintf("%s:%d", rc.Host, rc.Port)
		return hamlib.NewTCPBackend(addr, log), nil
	default:
		return nil, fmt.Errorf("multirig: unknown backend kind %q", rc.Backend)
	}
}

// Apply atomically replaces the rig list and policy flags with those
// derived from cfg. The previous rig list is closed in the background
// once the swap is visible, and the synchronizer's debounce memory is
// reset so the first post-reconfiguration tick always broadcasts.
func (c *Core) Apply(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	newRigs := make([]*hamlib.Rig, 0, len(cfg.Rigs))
	for _, rc := range cfg.Rigs {
		entryLog := c.log.WithField("rig", rc.Name)
		be, err := buildBackend(rc, entryLog)
		if err != nil {
			for _, r := range newRigs {
				r.Close()
			}
			return err
		}
		newRigs = append(newRigs, hamlib.NewRig(rc, be, entryLog))
	}

	old := c.Rigs()
	c.rigs.Store(&newRigs)
	c.syncEnabled.Store(cfg.SyncEnabled)
	c.sourceIdx.Store(int64(cfg.SyncSourceIdx))
	c.pollMs.Store(int64(cfg.PollIntervalMs))
	c.cfg = cfg
	c.debug.EnsureRigs(len(newRigs))

	if c.syncer != nil {
		c.syncer.Reset()
	}

	go func() {
		var combined error
		for _, r := range old {
			if err := r.Close(); err != nil {
				combined = multierr.Append(combined, err)
			}
		}
		if combined != nil {
			c.log.WithField("err", combined).Warn("error closing previous rig set")
		}
	}()

	return nil
}

// Start brings up the virtual rigctl server and the synchronizer. Apply
// must have been called at least once first.
func (c *Core) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	c.server = rigctlsrv.New(rigctlsrv.Config{Host: c.cfg.RigctlListenHost, Port: c.cfg.RigctlListenPort}, c, c.debug, c.log.WithField("component", "rigctlsrv"))
	if err := c.server.Start(ctx); err != nil {
		return err
	}

	c.syncer = rigsync.New(c, c.log.WithField("component", "rigsync"))
	c.syncer.Start(ctx)

	c.started = true
	return nil
}

// Stop shuts down the synchronizer, the virtual server, and every rig,
// in that order. It is safe to call even if Start was never called.
func (c *Core) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.syncer != nil {
		c.syncer.Stop()
	}
	if c.server != nil {
		c.server.Stop()
	}

	var combined error
	for _, r := range c.Rigs() {
		if err := r.Close(); err != nil {
			combined = multierr.Append(combined, err)
		}
	}
	c.started = false
	return combined
}
