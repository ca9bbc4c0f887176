// Copyright 2015 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

// Package hamlib provides a codec and client backends for a _subset_ of
// the Hamlib rigctl line protocol, along with the policy wrapper
// (band-limit enforcement, status caching, capability probing) that
// turns a bare backend into a rig usable by the rest of multirig.
package hamlib

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CommandKind identifies a decoded rigctl command. The string value is
// the canonical long name used both by the wire protocol and by this
// package's alias table.
type CommandKind string

const (
	CmdGetFreq      CommandKind = "get_freq"
	CmdSetFreq      CommandKind = "set_freq"
	CmdGetMode      CommandKind = "get_mode"
	CmdSetMode      CommandKind = "set_mode"
	CmdGetVFO       CommandKind = "get_vfo"
	CmdSetVFO       CommandKind = "set_vfo"
	CmdGetPTT       CommandKind = "get_ptt"
	CmdSetPTT       CommandKind = "set_ptt"
	CmdGetSplitVFO  CommandKind = "get_split_vfo"
	CmdGetLevel     CommandKind = "get_level"
	CmdGetPowerstat CommandKind = "get_powerstat"
	CmdChkVFO       CommandKind = "chk_vfo"
	CmdDumpState    CommandKind = "dump_state"
	CmdDumpCaps     CommandKind = "dump_caps"
	CmdGetInfo      CommandKind = "get_info"
)

// ErrUnknownCommand is returned by Decode when the command token does not
// resolve to any known short code or long name.
var ErrUnknownCommand = errors.New("hamlib: unknown command")

// ErrArity is returned by Decode when a command is given the wrong number
// of arguments.
var ErrArity = errors.New("hamlib: wrong number of arguments")

// ErrEmptyLine is returned by Decode for a line with nothing but
// whitespace on it. Callers should silently skip such lines rather than
// treat them as protocol errors.
var ErrEmptyLine = errors.New("hamlib: empty line")

// shortCodes maps single-character rigctl short codes to their command
// kind. Case matters: lowercase is "get", uppercase is "set", following
// rigctl convention.
var shortCodes = map[string]CommandKind{
	"f": CmdGetFreq,
	"F": CmdSetFreq,
	"m": CmdGetMode,
	"M": CmdSetMode,
	"v": CmdGetVFO,
	"V": CmdSetVFO,
	"t": CmdGetPTT,
	"T": CmdSetPTT,
	"s": CmdGetSplitVFO,
	"l": CmdGetLevel,
}

// longNames is the set of canonical long names Decode accepts directly,
// matched case-insensitively.
var longNames = map[string]CommandKind{
	string(CmdGetFreq):      CmdGetFreq,
	string(CmdSetFreq):      CmdSetFreq,
	string(CmdGetMode):      CmdGetMode,
	string(CmdSetMode):      CmdSetMode,
	string(CmdGetVFO):       CmdGetVFO,
	string(CmdSetVFO):       CmdSetVFO,
	string(CmdGetPTT):       CmdGetPTT,
	string(CmdSetPTT):       CmdSetPTT,
	string(CmdGetSplitVFO):  CmdGetSplitVFO,
	string(CmdGetLevel):     CmdGetLevel,
	string(CmdGetPowerstat): CmdGetPowerstat,
	string(CmdChkVFO):       CmdChkVFO,
	string(CmdDumpState):    CmdDumpState,
	string(CmdDumpCaps):     CmdDumpCaps,
	string(CmdGetInfo):      CmdGetInfo,
}

// Command is a decoded client-protocol request line.
type Command struct {
	Kind CommandKind
	ERP  byte // 0 if the line carried no ERP marker
	Raw  bool // true if the line used the '\' raw-command prefix
	Args []string
}

// HasERP reports whether the decoded line requested Extended Response
// Protocol framing.
func (c *Command) HasERP() bool { return c.ERP != 0 }

// Decode parses one client-protocol request line (without its trailing
// newline) into a Command.
func Decode(line string) (*Command, error) {
	line = strings.TrimRight(line, "\r\n")
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, ErrEmptyLine
	}

	cmd := &Command{}

	rest := strings.TrimLeft(line, " \t")
	if len(rest) > 0 {
		if r, size := utf8DecodeFirst(rest); isERPPrefix(r) {
			cmd.ERP = byte(r)
			rest = rest[size:]
		}
	}

	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, `\`) {
		cmd.Raw = true
		rest = rest[1:]
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return nil, ErrUnknownCommand
	}

	token, args := fields[0], fields[1:]
	kind, ok := resolve(token)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, token)
	}
	cmd.Kind = kind
	cmd.Args = args

	if err := checkArity(kind, args); err != nil {
		return nil, err
	}
	return cmd, nil
}

func resolve(token string) (CommandKind, bool) {
	if len(token) == 1 {
		k, ok := shortCodes[token]
		return k, ok
	}
	k, ok := longNames[strings.ToLower(token)]
	return k, ok
}

func checkArity(kind CommandKind, args []string) error {
	switch kind {
	case CmdSetFreq:
		if len(args) != 1 {
			return fmt.Errorf("%w: set_freq takes 1 argument", ErrArity)
		}
		if _, err := strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("%w: set_freq frequency must be an integer", ErrArity)
		}
	case CmdSetMode:
		if len(args) != 1 && len(args) != 2 {
			return fmt.Errorf("%w: set_mode takes 1 or 2 arguments", ErrArity)
		}
	case CmdSetVFO:
		if len(args) != 1 {
			return fmt.Errorf("%w: set_vfo takes 1 argument", ErrArity)
		}
	case CmdSetPTT:
		if len(args) != 1 {
			return fmt.Errorf("%w: set_ptt takes 1 argument", ErrArity)
		}
	case CmdGetLevel:
		if len(args) != 1 {
			return fmt.Errorf("%w: get_level takes 1 argument", ErrArity)
		}
	case CmdGetFreq, CmdGetMode, CmdGetVFO, CmdGetPTT, CmdGetSplitVFO,
		CmdGetPowerstat, CmdChkVFO, CmdDumpState, CmdDumpCaps, CmdGetInfo:
		if len(args) != 0 {
			return fmt.Errorf("%w: %s takes no arguments", ErrArity, kind)
		}
	}
	return nil
}

func utf8DecodeFirst(s string) (rune, int) {
	for _, r := range s {
		return r, len(string(r))
	}
	return 0, 0
}
