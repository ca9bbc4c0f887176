// Package rigsync implements the background synchronizer that keeps
// follower rigs in step with the source rig's frequency and mode,
// independent of whatever path actually changed the source (a virtual
// rigctl client, or the operator's own front panel).
package rigsync

import (
	"context"
	"sync"
	"time"

	"github.com/rcludwick/multirig/rigcontrol/hamlib"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// State is the read-only view of the control plane's current rig list
// and policy flags the synchronizer needs.
type State interface {
	Rigs() []*hamlib.Rig
	SourceIndex() int
	SyncEnabled() bool
	PollIntervalMs() int
}

type broadcastKey struct {
	freq     int
	mode     string
	passband int
}

// Synchronizer polls the source rig on a fixed period and mirrors
// observed state changes to eligible follower rigs.
type Synchronizer struct {
	state State
	log   *logrus.Entry

	mu   sync.Mutex
	last *broadcastKey

	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Synchronizer bound to state. It is not running until
// Start is called.
func New(state State, log *logrus.Entry) *Synchronizer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Synchronizer{state: state, log: log}
}

// Reset clears the debounce memory so the next tick always broadcasts,
// regardless of whether the source's state actually changed. Call this
// after reconfiguration.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = nil
}

// Start runs the synchronizer loop in the background until ctx is
// cancelled or Stop is called.
func (s *Synchronizer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
}

// Stop cancels the synchronizer loop and waits for it to exit. It is
// safe to call even if Start was never called.
func (s *Synchronizer) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Synchronizer) run(ctx context.Context) {
	defer close(s.done)
	for {
		interval := time.Duration(s.state.PollIntervalMs()) * time.Millisecond
		if interval < 100*time.Millisecond {
			interval = 100 * time.Millisecond
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		s.tick(ctx)
	}
}

func (s *Synchronizer) tick(ctx context.Context) {
	if !s.state.SyncEnabled() {
		return
	}

	rigs := s.state.Rigs()
	if len(rigs) == 0 {
		return
	}
	src := s.state.SourceIndex()
	if src < 0 {
		src = 0
	}
	if src >= len(rigs) {
		src = len(rigs) - 1
	}

	status := rigs[src].Status(ctx)
	if !status.Connected || status.FrequencyHz == nil {
		return
	}

	mode := ""
	passband := 0
	if status.Mode != nil {
		mode = *status.Mode
	}
	if status.Passband != nil {
		passband = *status.Passband
	}
	key := broadcastKey{freq: *status.FrequencyHz, mode: mode, passband: passband}

	s.mu.Lock()
	unchanged := s.last != nil && *s.last == key
	s.mu.Unlock()
	if unchanged {
		return
	}

	var combined error
	for i, r := range rigs {
		if i == src {
			continue
		}
		cfg := r.Config()
		if !cfg.FollowMain || !cfg.Enabled {
			continue
		}
		if err := r.SetFrequency(ctx, key.freq); err != nil {
			combined = multierr.Append(combined, err)
		}
		if mode != "" {
			if err := r.SetMode(ctx, mode, passband); err != nil {
				combined = multierr.Append(combined, err)
			}
		}
	}
	if combined != nil {
		s.log.WithField("err", combined).Debug("synchronizer tick had follower failures")
	}

	s.mu.Lock()
	s.last = &key
	s.mu.Unlock()
}
