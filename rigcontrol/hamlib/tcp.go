// Copyright 2015 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package hamlib

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTCPAddr is the conventional rigctld listen address.
const DefaultTCPAddr = "localhost:4532"

// OpTimeout is the deadline applied to ordinary rigctl operations.
var OpTimeout = 1500 * time.Millisecond

// DumpTimeout is the deadline applied to dump_state/dump_caps, which can
// be considerably larger replies than a single value line.
var DumpTimeout = 5 * time.Second

// TCPBackend talks to an external rigctld over a long-lived TCP
// connection, reopening it on demand after any network failure.
type TCPBackend struct {
	mu           sync.Mutex
	addr         string
	conn         net.Conn
	r            *bufio.Reader
	erpSupported bool
	log          *logrus.Entry
}

// NewTCPBackend returns a Backend talking to rigctld at addr. The
// connection is not opened until the first operation.
func NewTCPBackend(addr string, log *logrus.Entry) *TCPBackend {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &TCPBackend{addr: addr, erpSupported: true, log: log}
}

func (b *TCPBackend) dialLocked() error {
	conn, err := net.DialTimeout("tcp", b.addr, OpTimeout)
	if err != nil {
		return err
	}
	b.conn = conn
	b.r = bufio.NewReader(conn)
	return nil
}

func (b *TCPBackend) closeConnLocked() {
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
		b.r = nil
	}
}

// Close releases the TCP connection, if any. It is idempotent.
func (b *TCPBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeConnLocked()
	return nil
}

func isNetErr(err error) bool {
	if err == io.EOF {
		return true
	}
	_, ok := err.(net.Error)
	return ok
}

// rawLine sends one line (already carrying its ERP prefix, or not) and
// reads lines until a terminal RPRT line, EOF, or timeout.
func (b *TCPBackend) rawLine(line string, timeout time.Duration) ([]string, error) {
	b.conn.SetWriteDeadline(time.Now().Add(timeout))
	if _, err := b.conn.Write([]byte(line + "\n")); err != nil {
		return nil, err
	}

	var lines []string
	for {
		b.conn.SetReadDeadline(time.Now().Add(timeout))
		s, err := b.r.ReadString('\n')
		s = strings.TrimRight(s, "\r\n")
		if s != "" {
			lines = append(lines, s)
		}
		if err != nil {
			if s != "" && strings.HasPrefix(s, "RPRT") {
				break
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() && len(lines) > 0 {
				break
			}
			return lines, err
		}
		if strings.HasPrefix(s, "RPRT") {
			break
		}
	}
	b.conn.SetReadDeadline(time.Time{})
	b.conn.SetWriteDeadline(time.Time{})
	return lines, nil
}

// command executes one rigctl command, including ERP negotiation and
// reconnect-on-network-error retry: up to three attempts, redialing
// whenever a network error is observed.
func (b *TCPBackend) command(name, argLine string, timeout time.Duration) (reply, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if b.conn == nil {
			if err = b.dialLocked(); err != nil {
				continue
			}
		}

		var rep reply
		rep, err = b.sendLocked(argLine, timeout)
		if err == nil {
			return rep, nil
		}
		if isNetErr(err) {
			b.closeConnLocked()
			continue
		}
		return reply{}, err
	}
	return reply{}, fmt.Errorf("hamlib: %s: %w", name, err)
}

func (b *TCPBackend) sendLocked(argLine string, timeout time.Duration) (reply, error) {
	if b.erpSupported {
		erpLines, err := b.rawLine("+"+argLine, timeout)
		if err == nil {
			rep := parseReply(erpLines)
			if rep.code == 0 {
				return rep, nil
			}
		} else if isNetErr(err) {
			return reply{}, err
		}

		rawLines, err := b.rawLine(argLine, timeout)
		if err != nil {
			return reply{}, err
		}
		rep := parseReply(rawLines)
		if rep.code == 0 {
			b.log.WithField("addr", b.addr).Debug("rigctld did not honor ERP framing, falling back to raw")
			b.erpSupported = false
		}
		return rep, nil
	}

	rawLines, err := b.rawLine(argLine, timeout)
	if err != nil {
		return reply{}, err
	}
	return parseReply(rawLines), nil
}

// chkVFORaw always talks raw, bypassing ERP negotiation entirely: some
// rigctld builds mishandle "+\chk_vfo" regardless of the backend's
// negotiated erpSupported state.
func (b *TCPBackend) chkVFORaw() (reply, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if b.conn == nil {
			if err = b.dialLocked(); err != nil {
				continue
			}
		}
		var lines []string
		lines, err = b.rawLine(`\chk_vfo`, OpTimeout)
		if err == nil {
			return parseReply(lines), nil
		}
		if isNetErr(err) {
			b.closeConnLocked()
			continue
		}
		return reply{}, err
	}
	return reply{}, fmt.Errorf("hamlib: chk_vfo: %w", err)
}

func rprtError(code int) error {
	return &RigctlError{Code: code, Message: "rig returned failure"}
}

func (b *TCPBackend) GetFrequency(ctx context.Context) (int, error) {
	rep, err := b.command("get_freq", `\get_freq`, OpTimeout)
	if err != nil {
		return 0, err
	}
	if rep.code != 0 {
		return 0, rprtError(rep.code)
	}
	v, ok := rep.value(0, "Frequency")
	if !ok {
		return 0, ErrUnexpectedValue
	}
	hz, err := strconv.Atoi(v)
	if err != nil {
		return 0, ErrUnexpectedValue
	}
	return hz, nil
}

func (b *TCPBackend) SetFrequency(ctx context.Context, hz int) error {
	rep, err := b.command("set_freq", fmt.Sprintf(`\set_freq %d`, hz), OpTimeout)
	if err != nil {
		return err
	}
	if rep.code != 0 {
		return rprtError(rep.code)
	}
	return nil
}

func (b *TCPBackend) GetMode(ctx context.Context) (string, int, error) {
	rep, err := b.command("get_mode", `\get_mode`, OpTimeout)
	if err != nil {
		return "", 0, err
	}
	if rep.code != 0 {
		return "", 0, rprtError(rep.code)
	}
	mode, ok := rep.value(0, "Mode")
	if !ok {
		return "", 0, ErrUnexpectedValue
	}
	pbStr, ok := rep.value(1, "Passband")
	pb := 0
	if ok {
		pb, _ = strconv.Atoi(pbStr)
	}
	return mode, pb, nil
}

func (b *TCPBackend) SetMode(ctx context.Context, mode string, passband int) error {
	rep, err := b.command("set_mode", fmt.Sprintf(`\set_mode %s %d`, mode, passband), OpTimeout)
	if err != nil {
		return err
	}
	if rep.code != 0 {
		return rprtError(rep.code)
	}
	return nil
}

func (b *TCPBackend) GetVFO(ctx context.Context) (string, error) {
	rep, err := b.command("get_vfo", `\get_vfo`, OpTimeout)
	if err != nil {
		return "", err
	}
	if rep.code != 0 {
		return "", rprtError(rep.code)
	}
	v, ok := rep.value(0, "VFO")
	if !ok {
		return "", ErrUnexpectedValue
	}
	return v, nil
}

func (b *TCPBackend) SetVFO(ctx context.Context, vfo string) error {
	rep, err := b.command("set_vfo", `\set_vfo `+vfo, OpTimeout)
	if err != nil {
		return err
	}
	if rep.code != 0 {
		return rprtError(rep.code)
	}
	return nil
}

func (b *TCPBackend) GetPTT(ctx context.Context) (bool, error) {
	rep, err := b.command("get_ptt", `\get_ptt`, OpTimeout)
	if err != nil {
		return false, err
	}
	if rep.code != 0 {
		return false, rprtError(rep.code)
	}
	v, ok := rep.value(0, "PTT")
	if !ok {
		return false, ErrUnexpectedValue
	}
	return v != "0", nil
}

func (b *TCPBackend) SetPTT(ctx context.Context, on bool) error {
	n := 0
	if on {
		n = 1
	}
	rep, err := b.command("set_ptt", fmt.Sprintf(`\set_ptt %d`, n), OpTimeout)
	if err != nil {
		return err
	}
	if rep.code != 0 {
		return rprtError(rep.code)
	}
	return nil
}

func (b *TCPBackend) GetPowerstat(ctx context.Context) (bool, error) {
	rep, err := b.command("get_powerstat", `\get_powerstat`, OpTimeout)
	if err != nil {
		return false, err
	}
	if rep.code != 0 {
		return false, rprtError(rep.code)
	}
	v, ok := rep.value(0, "Power Status")
	if !ok {
		return false, ErrUnexpectedValue
	}
	return v != "0", nil
}

// ChkVFO always uses the raw form on the wire, per this project's
// resolution of the ERP-negotiation quirk around chk_vfo (see
// DESIGN.md).
func (b *TCPBackend) ChkVFO(ctx context.Context) (int, error) {
	rep, err := b.chkVFORaw()
	if err != nil {
		return 0, err
	}
	v, ok := rep.value(0)
	if !ok {
		return 0, ErrUnexpectedValue
	}
	v = strings.TrimPrefix(v, "CHKVFO ")
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, ErrUnexpectedValue
	}
	return n, nil
}

func stripHeader(lines []string, header string) []string {
	if len(lines) > 0 && strings.HasPrefix(lines[0], header) {
		return lines[1:]
	}
	return lines
}

func (b *TCPBackend) DumpState(ctx context.Context) ([]string, error) {
	rep, err := b.command("dump_state", `\dump_state`, DumpTimeout)
	if err != nil {
		return nil, err
	}
	if rep.code != 0 {
		return nil, rprtError(rep.code)
	}
	return stripHeader(rep.lines, "dump_state:"), nil
}

func (b *TCPBackend) DumpCaps(ctx context.Context) ([]string, error) {
	rep, err := b.command("dump_caps", `\dump_caps`, DumpTimeout)
	if err != nil {
		return nil, err
	}
	if rep.code != 0 {
		return nil, rprtError(rep.code)
	}
	return stripHeader(rep.lines, "dump_caps:"), nil
}
