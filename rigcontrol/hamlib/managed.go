// Copyright 2015 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package hamlib

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	serial "github.com/albenik/go-serial/v2"
	"github.com/rcludwick/multirig/serialexec"
	"github.com/sirupsen/logrus"
)

// SettleDelay is how long the managed backend waits after spawning
// rigctld before it starts issuing commands to it.
var SettleDelay = 500 * time.Millisecond

// killGrace is how long Close waits after SIGTERM before escalating to
// SIGKILL.
var killGrace = time.Second

// ManagedConfig describes how to launch a local rigctld bound to a
// physical device.
type ManagedConfig struct {
	ModelID    int
	Device     string
	Baud       int
	SerialOpts string
	ExtraArgs  string
}

// ManagedBackend spawns and supervises a local rigctld process talking
// to a physical device over a serial port, and delegates every
// operation, serialized through a single-consumer executor, to a
// TCPBackend dialed at the ephemeral port rigctld was told to listen
// on.
type ManagedBackend struct {
	mu     sync.Mutex
	cfg    ManagedConfig
	log    *logrus.Entry
	proc   *os.Process
	inner  *TCPBackend
	exited bool

	// exec serializes every command issued to the spawned rigctld
	// through inner: the underlying serial device is a
	// non-reentrant resource, so commands must run one at a time in
	// submission order even if multiple goroutines call into this
	// backend concurrently (a set_freq fanned out to this rig racing a
	// synchronizer tick, say).
	exec *serialexec.Executor
}

// NewManagedBackend returns a Backend that lazily spawns rigctld on
// first use.
func NewManagedBackend(cfg ManagedConfig, log *logrus.Entry) *ManagedBackend {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ManagedBackend{cfg: cfg, log: log, exec: serialexec.New()}
}

func findFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// preflightSerial briefly opens the configured device to confirm it
// exists and is not already locked by another process. Failure here is
// only ever logged: a device path that hamlib itself can reach through
// some other means (a network rig URI, for instance) may fail this
// bare-serial-open check yet still work once rigctld starts.
func (b *ManagedBackend) preflightSerial() {
	baud := b.cfg.Baud
	if baud == 0 {
		baud = 38400
	}
	port, err := serial.Open(b.cfg.Device, serial.WithBaudrate(baud))
	if err != nil {
		b.log.WithFields(logrus.Fields{"device": b.cfg.Device, "err": err}).
			Debug("serial preflight failed, continuing anyway")
		return
	}
	port.Close()
}

// rigctldArgs builds the argv passed to the rigctld subprocess for the
// given managed-backend configuration and chosen TCP port.
func rigctldArgs(cfg ManagedConfig, port int) []string {
	args := []string{"-m", strconv.Itoa(cfg.ModelID), "-r", cfg.Device}
	if cfg.Baud != 0 {
		args = append(args, "-s", strconv.Itoa(cfg.Baud))
	}
	if cfg.SerialOpts != "" {
		args = append(args, strings.Fields(cfg.SerialOpts)...)
	}
	if cfg.ExtraArgs != "" {
		args = append(args, strings.Fields(cfg.ExtraArgs)...)
	}
	args = append(args, "-T", "127.0.0.1", "-t", strconv.Itoa(port))
	return args
}

func (b *ManagedBackend) spawnLocked() error {
	b.preflightSerial()

	port, err := findFreePort()
	if err != nil {
		return fmt.Errorf("hamlib: managed: choosing a port: %w", err)
	}

	args := rigctldArgs(b.cfg, port)

	cmd := exec.Command("rigctld", args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("hamlib: managed: starting rigctld: %w", err)
	}

	b.proc = cmd.Process
	b.exited = false
	go func() {
		cmd.Wait()
		b.mu.Lock()
		b.exited = true
		b.mu.Unlock()
	}()

	time.Sleep(SettleDelay)

	b.inner = NewTCPBackend(fmt.Sprintf("127.0.0.1:%d", port), b.log.WithField("managed-port", port))
	return nil
}

func (b *ManagedBackend) ensureLocked() (*TCPBackend, error) {
	if b.inner == nil || b.exited {
		if b.inner != nil {
			b.inner.Close()
		}
		if err := b.spawnLocked(); err != nil {
			return nil, err
		}
	}
	return b.inner, nil
}

func (b *ManagedBackend) ensure() (*TCPBackend, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ensureLocked()
}

// Close terminates the supervised rigctld subprocess, giving it one
// second to exit after SIGTERM before sending SIGKILL.
func (b *ManagedBackend) Close() error {
	b.exec.Close()

	b.mu.Lock()
	defer b.mu.Unlock()

	var innerErr error
	if b.inner != nil {
		innerErr = b.inner.Close()
		b.inner = nil
	}
	if b.proc == nil || b.exited {
		return innerErr
	}

	b.proc.Signal(syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		b.proc.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(killGrace):
		b.proc.Kill()
		<-done
	}
	b.exited = true
	return innerErr
}

// run ensures rigctld is spawned and then runs fn against it, both
// serialized through b.exec, so concurrent callers never interleave
// commands on the subprocess's connection and no call made after Close
// spawns a new rigctld.
func (b *ManagedBackend) run(fn func(*TCPBackend) (any, error)) (any, error) {
	return b.exec.Run(func() (any, error) {
		in, err := b.ensure()
		if err != nil {
			return nil, err
		}
		return fn(in)
	})
}

func (b *ManagedBackend) GetFrequency(ctx context.Context) (int, error) {
	v, err := b.run(func(in *TCPBackend) (any, error) { return in.GetFrequency(ctx) })
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (b *ManagedBackend) SetFrequency(ctx context.Context, hz int) error {
	_, err := b.run(func(in *TCPBackend) (any, error) { return nil, in.SetFrequency(ctx, hz) })
	return err
}

func (b *ManagedBackend) GetMode(ctx context.Context) (string, int, error) {
	type modeReply struct {
		mode     string
		passband int
	}
	v, err := b.run(func(in *TCPBackend) (any, error) {
		mode, pb, err := in.GetMode(ctx)
		return modeReply{mode: mode, passband: pb}, err
	})
	if err != nil {
		return "", 0, err
	}
	r := v.(modeReply)
	return r.mode, r.passband, nil
}

func (b *ManagedBackend) SetMode(ctx context.Context, mode string, passband int) error {
	_, err := b.run(func(in *TCPBackend) (any, error) { return nil, in.SetMode(ctx, mode, passband) })
	return err
}

func (b *ManagedBackend) GetVFO(ctx context.Context) (string, error) {
	v, err := b.run(func(in *TCPBackend) (any, error) { return in.GetVFO(ctx) })
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (b *ManagedBackend) SetVFO(ctx context.Context, vfo string) error {
	_, err := b.run(func(in *TCPBackend) (any, error) { return nil, in.SetVFO(ctx, vfo) })
	return err
}

func (b *ManagedBackend) GetPTT(ctx context.Context) (bool, error) {
	v, err := b.run(func(in *TCPBackend) (any, error) { return in.GetPTT(ctx) })
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (b *ManagedBackend) SetPTT(ctx context.Context, on bool) error {
	_, err := b.run(func(in *TCPBackend) (any, error) { return nil, in.SetPTT(ctx, on) })
	return err
}

func (b *ManagedBackend) GetPowerstat(ctx context.Context) (bool, error) {
	v, err := b.run(func(in *TCPBackend) (any, error) { return in.GetPowerstat(ctx) })
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (b *ManagedBackend) ChkVFO(ctx context.Context) (int, error) {
	v, err := b.run(func(in *TCPBackend) (any, error) { return in.ChkVFO(ctx) })
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (b *ManagedBackend) DumpState(ctx context.Context) ([]string, error) {
	v, err := b.run(func(in *TCPBackend) (any, error) { return in.DumpState(ctx) })
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (b *ManagedBackend) DumpCaps(ctx context.Context) ([]string, error) {
	v, err := b.run(func(in *TCPBackend) (any, error) { return in.DumpCaps(ctx) })
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}
