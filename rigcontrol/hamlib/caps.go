// Copyright 2015 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package hamlib

import "strings"

// capLine maps a "Can <x>:" prefix from dump_caps output to the Caps
// field it sets.
var capLine = []struct {
	prefix string
	set    func(*Caps, bool)
}{
	{"Can set Frequency:", func(c *Caps, v bool) { c.FreqSet = v }},
	{"Can get Frequency:", func(c *Caps, v bool) { c.FreqGet = v }},
	{"Can set Mode:", func(c *Caps, v bool) { c.ModeSet = v }},
	{"Can get Mode:", func(c *Caps, v bool) { c.ModeGet = v }},
	{"Can set VFO:", func(c *Caps, v bool) { c.VFOSet = v }},
	{"Can get VFO:", func(c *Caps, v bool) { c.VFOGet = v }},
	{"Can set PTT:", func(c *Caps, v bool) { c.PTTSet = v }},
	{"Can get PTT:", func(c *Caps, v bool) { c.PTTGet = v }},
}

// parseBoolFlag reports whether the dump_caps value for a "Can ..." line
// is affirmative: a 'Y' or 'E' first character, matching hamlib's own
// encoding (Y = yes, E = emulated). Only the first non-whitespace
// character of the value is significant; anything after it (trailing
// annotations some rigctld builds append) is ignored.
func parseBoolFlag(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	switch v[0] {
	case 'Y', 'y', 'E', 'e':
		return true
	default:
		return false
	}
}

// parseModeList splits a "Mode list: ..." value into a deduplicated,
// order-preserving list of mode names, discarding the literal "None".
func parseModeList(rest string) []string {
	fields := strings.Fields(rest)
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimRight(f, ",;:")
		f = strings.TrimSuffix(f, ".")
		if f == "" || f == "None" {
			continue
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// ParseDumpCaps builds a Caps descriptor from the lines of a dump_caps
// reply.
func ParseDumpCaps(lines []string) Caps {
	var caps Caps
	for _, line := range lines {
		line = strings.TrimSpace(line)
		matched := false
		for _, cl := range capLine {
			if strings.HasPrefix(line, cl.prefix) {
				val := strings.TrimSpace(line[len(cl.prefix):])
				cl.set(&caps, parseBoolFlag(val))
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "Mode list:"); ok {
			caps.Modes = parseModeList(rest)
		}
	}
	return caps
}
