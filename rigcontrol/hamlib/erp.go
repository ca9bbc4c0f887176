// Copyright 2015 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package hamlib

import "strings"

// isERPPrefix reports whether r, as the first rune of a rigctl command
// line, selects Extended Response Protocol framing for the response.
//
// A rune qualifies if it is punctuation (not alphanumeric, not
// whitespace) and not one of the three characters that already carry a
// different meaning in the protocol: '\\' (raw-command prefix), '?'
// (help) and '_' (reserved).
func isERPPrefix(r rune) bool {
	switch {
	case r == 0:
		return false
	case r == '\\' || r == '?' || r == '_':
		return false
	case r >= '0' && r <= '9':
		return false
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return false
	case r == ' ' || r == '\t':
		return false
	default:
		return true
	}
}

// joinERP assembles records into the wire form for an ERP response with
// the given marker. The '+' marker separates records with a newline and
// terminates the response with one; any other marker character is used
// both as the separator between records and as the terminator.
func joinERP(marker byte, records []string) []byte {
	sep := "\n"
	if marker != '+' {
		sep = string(marker)
	}
	return []byte(strings.Join(records, sep) + sep)
}
