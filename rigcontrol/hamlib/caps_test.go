package hamlib

import "testing"

func TestParseDumpCaps(t *testing.T) {
	lines := []string{
		"Model name: IC-7300",
		"Can set Frequency: Y",
		"Can get Frequency: Y",
		"Can set Mode: Y",
		"Can get Mode: Y",
		"Can set VFO: N",
		"Can get VFO: E",
		"Can set PTT: Y",
		"Can get PTT: N",
		"Mode list: USB LSB, CW. AM None None",
	}
	caps := ParseDumpCaps(lines)

	if !caps.FreqSet || !caps.FreqGet {
		t.Errorf("expected frequency get/set capability, got %+v", caps)
	}
	if !caps.ModeSet || !caps.ModeGet {
		t.Errorf("expected mode get/set capability, got %+v", caps)
	}
	if caps.VFOSet {
		t.Errorf("expected VFOSet false, got true")
	}
	if !caps.VFOGet {
		t.Errorf("expected VFOGet true (emulated), got false")
	}
	if !caps.PTTSet || caps.PTTGet {
		t.Errorf("unexpected PTT caps: %+v", caps)
	}

	wantModes := []string{"USB", "LSB", "CW", "AM"}
	if len(caps.Modes) != len(wantModes) {
		t.Fatalf("Modes = %v; want %v", caps.Modes, wantModes)
	}
	for i, m := range wantModes {
		if caps.Modes[i] != m {
			t.Errorf("Modes[%d] = %q; want %q", i, caps.Modes[i], m)
		}
	}
}

func TestParseBoolFlag(t *testing.T) {
	tests := map[string]bool{
		"Y": true, "y": true, "E": true, "N": false, "": false, " n ": false,
		// Only the leading character matters; trailing annotations some
		// rigctld builds append must not flip the result.
		"Yes":      true,
		"Y (RIT)":  true,
		"Emulated": true,
		"No":       false,
		" Y":       true,
	}
	for in, want := range tests {
		if got := parseBoolFlag(in); got != want {
			t.Errorf("parseBoolFlag(%q) = %v; want %v", in, got, want)
		}
	}
}
