// Copyright 2015 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package hamlib

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnexpectedValue is returned when a backend's reply does not parse
// the way the calling operation expects.
var ErrUnexpectedValue = errors.New("hamlib: unexpected value in response")

// RigctlError wraps a non-zero RPRT code returned by a backend. Callers
// that need to tell apart "rig unreachable" from "rig answered with an
// error" should use errors.As against this type.
type RigctlError struct {
	Code    int
	Message string
}

func (e *RigctlError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("RPRT %d", e.Code)
	}
	return fmt.Sprintf("RPRT %d: %s", e.Code, e.Message)
}

// Status is a snapshot of a rig's observable state.
type Status struct {
	Connected   bool
	FrequencyHz *int
	Mode        *string
	Passband    *int
	Err         string
}

// Caps is a rig's parsed capability descriptor, built from dump_caps.
type Caps struct {
	FreqGet  bool
	FreqSet  bool
	ModeGet  bool
	ModeSet  bool
	VFOGet   bool
	VFOSet   bool
	PTTGet   bool
	PTTSet   bool
	Modes    []string
}

// Backend is the set of operations any rig backend must expose,
// regardless of how it actually talks to the physical transceiver.
type Backend interface {
	GetFrequency(ctx context.Context) (int, error)
	SetFrequency(ctx context.Context, hz int) error
	GetMode(ctx context.Context) (mode string, passband int, err error)
	SetMode(ctx context.Context, mode string, passband int) error
	GetVFO(ctx context.Context) (string, error)
	SetVFO(ctx context.Context, vfo string) error
	GetPTT(ctx context.Context) (bool, error)
	SetPTT(ctx context.Context, on bool) error
	GetPowerstat(ctx context.Context) (bool, error)
	ChkVFO(ctx context.Context) (int, error)
	DumpState(ctx context.Context) ([]string, error)
	DumpCaps(ctx context.Context) ([]string, error)
	Close() error
}

// reply is the dual-form parse of a backend's response to one command:
// a key/value map built from any "Key: Value" lines, the full line list
// for positional fallback, and the terminal RPRT code (0 if the peer
// never sent one but the command otherwise produced output).
type reply struct {
	kv    map[string]string
	lines []string
	code  int
}

// parseReply accepts both ERP-framed and raw rigctld replies. ERP
// replies carry "Key: Value" lines followed by a terminal "RPRT n"; raw
// replies carry bare values, possibly with a bare "RPRT n" of their own.
// Either form is accepted uniformly here so the TCP backend does not
// need to know which one the peer actually used for a given command.
func parseReply(raw []string) reply {
	r := reply{kv: map[string]string{}}
	for _, line := range raw {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "RPRT") {
			fields := strings.Fields(line)
			if len(fields) == 2 {
				if c, err := strconv.Atoi(fields[1]); err == nil {
					r.code = c
					continue
				}
			}
		}
		if idx := strings.Index(line, ":"); idx >= 0 {
			key := strings.TrimSpace(line[:idx])
			val := strings.TrimSpace(line[idx+1:])
			if val != "" {
				r.kv[key] = val
			}
		}
		r.lines = append(r.lines, line)
	}
	return r
}

// value returns the value for any of the candidate keys, or the line at
// positional index pos in the raw line list as a fallback.
func (r reply) value(pos int, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := r.kv[k]; ok {
			return v, true
		}
	}
	if pos >= 0 && pos < len(r.lines) {
		return r.lines[pos], true
	}
	return "", false
}
