// Copyright 2015 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package hamlib

import (
	"fmt"
	"strconv"
)

// Error codes from the rigctl/Hamlib domain that this codec is allowed
// to emit. The codec never invents codes outside this set; callers map
// internal failures onto one of these before rendering a response.
const (
	RPRTOk            = 0
	RPRTGeneric       = -1
	RPRTUnimplemented = -4
	RPRTIO            = -11
)

func renderSuccess(erp byte, name string, argDesc string, code int) []byte {
	if erp == 0 {
		return []byte(fmt.Sprintf("RPRT %d\n", code))
	}
	records := []string{fmt.Sprintf("%s: %s", name, argDesc), fmt.Sprintf("RPRT %d", code)}
	return joinERP(erp, records)
}

// RenderError renders a failed command (including one the codec could
// not even decode) in the requested ERP framing.
func RenderError(erp byte, name string, code int) []byte {
	if erp == 0 {
		return []byte(fmt.Sprintf("RPRT %d\n", code))
	}
	return joinERP(erp, []string{fmt.Sprintf("%s:", name), fmt.Sprintf("RPRT %d", code)})
}

// RenderSetFreq renders the response to a set_freq/F command.
func RenderSetFreq(erp byte, hz int, code int) []byte {
	return renderSuccess(erp, "set_freq", strconv.Itoa(hz), code)
}

// RenderGetFreq renders the response to a get_freq/f command.
func RenderGetFreq(erp byte, hz int) []byte {
	if erp == 0 {
		return []byte(strconv.Itoa(hz) + "\n")
	}
	return joinERP(erp, []string{"get_freq:", fmt.Sprintf("Frequency: %d", hz), "RPRT 0"})
}

// RenderSetMode renders the response to a set_mode/M command.
func RenderSetMode(erp byte, mode string, passband int, code int) []byte {
	arg := mode
	if passband != 0 {
		arg = fmt.Sprintf("%s %d", mode, passband)
	}
	return renderSuccess(erp, "set_mode", arg, code)
}

// RenderGetMode renders the response to a get_mode/m command.
func RenderGetMode(erp byte, mode string, passband int) []byte {
	if erp == 0 {
		return []byte(fmt.Sprintf("%s\n%d\n", mode, passband))
	}
	return joinERP(erp, []string{"get_mode:", fmt.Sprintf("Mode: %s", mode), fmt.Sprintf("Passband: %d", passband), "RPRT 0"})
}

// RenderSetVFO renders the response to a set_vfo/V command.
func RenderSetVFO(erp byte, vfo string, code int) []byte {
	return renderSuccess(erp, "set_vfo", vfo, code)
}

// RenderGetVFO renders the response to a get_vfo/v command.
func RenderGetVFO(erp byte, vfo string) []byte {
	if erp == 0 {
		return []byte(vfo + "\n")
	}
	return joinERP(erp, []string{"get_vfo:", fmt.Sprintf("VFO: %s", vfo), "RPRT 0"})
}

// RenderSetPTT renders the response to a set_ptt/T command.
func RenderSetPTT(erp byte, on bool, code int) []byte {
	v := "0"
	if on {
		v = "1"
	}
	return renderSuccess(erp, "set_ptt", v, code)
}

// RenderGetPTT renders the response to a get_ptt/t command.
func RenderGetPTT(erp byte, on bool) []byte {
	v := "0"
	if on {
		v = "1"
	}
	if erp == 0 {
		return []byte(v + "\n")
	}
	return joinERP(erp, []string{"get_ptt:", fmt.Sprintf("PTT: %s", v), "RPRT 0"})
}

// RenderGetPowerstat renders the response to a get_powerstat command.
func RenderGetPowerstat(erp byte, on bool) []byte {
	v := "0"
	if on {
		v = "1"
	}
	if erp == 0 {
		return []byte(v + "\n")
	}
	return joinERP(erp, []string{"get_powerstat:", fmt.Sprintf("Power Status: %s", v), "RPRT 0"})
}

// RenderGetSplitVFO renders the response to a get_split_vfo/s command.
// The virtual server's dispatcher always passes split off, with the
// source rig's current VFO (or VFOB as a fallback) as the TX VFO;
// multirig does not model independent TX VFOs.
func RenderGetSplitVFO(erp byte, split bool, txVFO string) []byte {
	s := "0"
	if split {
		s = "1"
	}
	if erp == 0 {
		return []byte(fmt.Sprintf("%s\n%s\n", s, txVFO))
	}
	return joinERP(erp, []string{"get_split_vfo:", fmt.Sprintf("Split: %s", s), fmt.Sprintf("TX VFO: %s", txVFO), "RPRT 0"})
}

// RenderGetLevel renders the response to a get_level/l command. multirig
// does not model individual level meters; it reports 0 for every level
// name so clients that poll it (e.g. WSJT-X's KEYSPD query) get a stable
// answer instead of an error.
func RenderGetLevel(erp byte, name string) []byte {
	if erp == 0 {
		return []byte("0\n")
	}
	return joinERP(erp, []string{"get_level:", fmt.Sprintf("Level Value: %s", "0"), "RPRT 0"})
}

// RenderChkVFO renders the response to a chk_vfo command. Raw-form
// requests get a bare integer; short-form requests get "CHKVFO <n>".
func RenderChkVFO(erp byte, raw bool, n int) []byte {
	if erp == 0 {
		if raw {
			return []byte(fmt.Sprintf("%d\n", n))
		}
		return []byte(fmt.Sprintf("CHKVFO %d\n", n))
	}
	return joinERP(erp, []string{fmt.Sprintf("chk_vfo: %d", n), "RPRT 0"})
}

// RenderDump renders the response to dump_state/dump_caps: the backend's
// own reply lines, joined, optionally wrapped in ERP framing under the
// given record name.
func RenderDump(erp byte, name string, lines []string) []byte {
	if erp == 0 {
		out := ""
		for _, l := range lines {
			out += l + "\n"
		}
		return []byte(out)
	}
	records := append([]string{name + ":"}, lines...)
	records = append(records, "RPRT 0")
	return joinERP(erp, records)
}
