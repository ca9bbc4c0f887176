// Copyright 2015 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package hamlib

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrOutOfBand is returned by Rig.SetFrequency when the requested
// frequency falls outside every enabled, bounded band preset and the
// rig's configuration does not allow out-of-band operation.
var ErrOutOfBand = errors.New("Frequency out of configured band ranges")

// Rig wraps a Backend with the policy multirig applies uniformly to
// every backend kind: band-limit enforcement, a short-lived status
// cache, and a one-shot capability probe per connection.
type Rig struct {
	mu  sync.Mutex
	cfg RigConfig
	be  Backend
	log *logrus.Entry

	lastError string

	statusAt    time.Time
	statusValue Status
	haveStatus  bool

	lastConnected bool
	capsDetected  bool
	caps          Caps
}

// NewRig wraps be under the policy described by cfg.
func NewRig(cfg RigConfig, be Backend, log *logrus.Entry) *Rig {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Rig{cfg: cfg, be: be, log: log.WithField("rig", cfg.Name)}
}

// Config returns the rig's configuration.
func (r *Rig) Config() RigConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// LastError returns the most recent policy or backend error recorded
// for this rig. It is sticky: a subsequent successful operation does
// not clear it, matching this project's "let the caller manage error
// state" convention.
func (r *Rig) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastError
}

func (r *Rig) setError(err error) {
	if err == nil {
		return
	}
	r.lastError = err.Error()
}

// effectiveRanges returns the enabled, fully-bounded preset ranges, and
// whether at least one enabled preset lacks a lower or an upper bound
// (which admits every frequency).
func effectiveRanges(presets []BandPreset) (ranges [][2]int, unbounded bool) {
	for _, p := range presets {
		if !p.Enabled {
			continue
		}
		if p.LowerHz == nil || p.UpperHz == nil {
			unbounded = true
			continue
		}
		ranges = append(ranges, [2]int{*p.LowerHz, *p.UpperHz})
	}
	return ranges, unbounded
}

func inBand(hz int, ranges [][2]int, unbounded bool) bool {
	if len(ranges) == 0 {
		return true
	}
	if unbounded {
		return true
	}
	for _, rg := range ranges {
		if hz >= rg[0] && hz <= rg[1] {
			return true
		}
	}
	return false
}

// SetFrequency sets the rig's frequency, rejecting the request without
// touching the backend if it falls outside every enabled bounded band
// preset (unless AllowOutOfBand is set).
func (r *Rig) SetFrequency(ctx context.Context, hz int) error {
	r.mu.Lock()
	cfg := r.cfg
	r.mu.Unlock()

	if !cfg.AllowOutOfBand {
		ranges, unbounded := effectiveRanges(cfg.BandPresets)
		if !inBand(hz, ranges, unbounded) {
			r.mu.Lock()
			r.setError(ErrOutOfBand)
			r.mu.Unlock()
			return ErrOutOfBand
		}
	}

	err := r.be.SetFrequency(ctx, hz)
	r.mu.Lock()
	if err != nil {
		r.setError(fmt.Errorf("set_frequency: %w", err))
	}
	r.invalidateStatusLocked()
	r.mu.Unlock()
	return err
}

func (r *Rig) SetMode(ctx context.Context, mode string, passband int) error {
	err := r.be.SetMode(ctx, mode, passband)
	r.mu.Lock()
	if err != nil {
		r.setError(fmt.Errorf("set_mode: %w", err))
	}
	r.invalidateStatusLocked()
	r.mu.Unlock()
	return err
}

func (r *Rig) SetVFO(ctx context.Context, vfo string) error {
	err := r.be.SetVFO(ctx, vfo)
	r.mu.Lock()
	if err != nil {
		r.setError(fmt.Errorf("set_vfo: %w", err))
	}
	r.mu.Unlock()
	return err
}

func (r *Rig) SetPTT(ctx context.Context, on bool) error {
	err := r.be.SetPTT(ctx, on)
	r.mu.Lock()
	if err != nil {
		r.setError(fmt.Errorf("set_ptt: %w", err))
	}
	r.mu.Unlock()
	return err
}

func (r *Rig) GetFrequency(ctx context.Context) (int, error)        { return r.be.GetFrequency(ctx) }
func (r *Rig) GetMode(ctx context.Context) (string, int, error)     { return r.be.GetMode(ctx) }
func (r *Rig) GetVFO(ctx context.Context) (string, error)           { return r.be.GetVFO(ctx) }
func (r *Rig) GetPTT(ctx context.Context) (bool, error)             { return r.be.GetPTT(ctx) }
func (r *Rig) GetPowerstat(ctx context.Context) (bool, error)        { return r.be.GetPowerstat(ctx) }
func (r *Rig) ChkVFO(ctx context.Context) (int, error)               { return r.be.ChkVFO(ctx) }
func (r *Rig) DumpState(ctx context.Context) ([]string, error)      { return r.be.DumpState(ctx) }
func (r *Rig) DumpCaps(ctx context.Context) ([]string, error)       { return r.be.DumpCaps(ctx) }

func (r *Rig) invalidateStatusLocked() {
	r.haveStatus = false
}

// Status returns the rig's status, memoized for up to the configured
// poll interval after a successful read. A failed read is never cached.
func (r *Rig) Status(ctx context.Context) Status {
	r.mu.Lock()
	ttl := time.Duration(r.cfg.EffectivePollInterval()) * time.Millisecond
	if r.haveStatus && time.Since(r.statusAt) < ttl {
		s := r.statusValue
		r.mu.Unlock()
		return s
	}
	r.mu.Unlock()

	status := r.probeStatus(ctx)

	r.mu.Lock()
	if status.Connected {
		r.statusValue = status
		r.statusAt = time.Now()
		r.haveStatus = true
	} else {
		r.haveStatus = false
	}
	needProbe := r.lastConnected != status.Connected || (status.Connected && !r.capsDetected)
	if r.lastConnected && !status.Connected {
		r.capsDetected = false
	}
	r.lastConnected = status.Connected
	r.mu.Unlock()

	if needProbe && status.Connected {
		r.refreshCaps(ctx)
	}

	return status
}

// refreshCaps runs the one-shot dump_caps probe and latches the result
// (even on failure, to avoid retrying every tick).
func (r *Rig) refreshCaps(ctx context.Context) {
	lines, err := r.be.DumpCaps(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.log.WithField("err", err).Debug("dump_caps failed, not retrying until reconnect")
	} else {
		r.caps = ParseDumpCaps(lines)
	}
	r.capsDetected = true
}

func (r *Rig) probeStatus(ctx context.Context) Status {
	hz, err := r.be.GetFrequency(ctx)
	if err != nil {
		return Status{Connected: false, Err: err.Error()}
	}
	mode, pb, err := r.be.GetMode(ctx)
	if err != nil {
		return Status{Connected: false, Err: err.Error()}
	}
	return Status{Connected: true, FrequencyHz: &hz, Mode: &mode, Passband: &pb}
}

// Caps returns the most recently detected capability descriptor.
func (r *Rig) Caps() Caps {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.caps
}

// Close releases the rig's backend.
func (r *Rig) Close() error {
	return r.be.Close()
}
