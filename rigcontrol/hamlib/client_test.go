package hamlib

import (
	"context"
	"errors"
	"testing"
)

type fakeBackend struct {
	freqCalls int
	freq      int
	mode      string
	passband  int
	closed    bool

	setFreqCalls []int
	failGet      bool
}

func (f *fakeBackend) GetFrequency(ctx context.Context) (int, error) {
	f.freqCalls++
	if f.failGet {
		return 0, errors.New("boom")
	}
	return f.freq, nil
}
func (f *fakeBackend) SetFrequency(ctx context.Context, hz int) error {
	f.setFreqCalls = append(f.setFreqCalls, hz)
	f.freq = hz
	return nil
}
func (f *fakeBackend) GetMode(ctx context.Context) (string, int, error) { return f.mode, f.passband, nil }
func (f *fakeBackend) SetMode(ctx context.Context, mode string, pb int) error {
	f.mode, f.passband = mode, pb
	return nil
}
func (f *fakeBackend) GetVFO(ctx context.Context) (string, error)    { return "VFOA", nil }
func (f *fakeBackend) SetVFO(ctx context.Context, vfo string) error  { return nil }
func (f *fakeBackend) GetPTT(ctx context.Context) (bool, error)      { return false, nil }
func (f *fakeBackend) SetPTT(ctx context.Context, on bool) error     { return nil }
func (f *fakeBackend) GetPowerstat(ctx context.Context) (bool, error) { return true, nil }
func (f *fakeBackend) ChkVFO(ctx context.Context) (int, error)       { return 1, nil }
func (f *fakeBackend) DumpState(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeBackend) DumpCaps(ctx context.Context) ([]string, error) {
	return []string{"Can set Frequency: Y", "Can get Frequency: Y"}, nil
}
func (f *fakeBackend) Close() error { f.closed = true; return nil }

func intp(v int) *int { return &v }

func TestSetFrequencyBandLimit(t *testing.T) {
	cfg := RigConfig{
		Name: "test",
		BandPresets: []BandPreset{
			{Label: "20m", Enabled: true, LowerHz: intp(14000000), UpperHz: intp(14350000)},
		},
	}
	be := &fakeBackend{}
	r := NewRig(cfg, be, nil)

	if err := r.SetFrequency(context.Background(), 7074000); !errors.Is(err, ErrOutOfBand) {
		t.Fatalf("expected ErrOutOfBand, got %v", err)
	}
	if len(be.setFreqCalls) != 0 {
		t.Errorf("backend should not have been called, got %v", be.setFreqCalls)
	}
	if r.LastError() != ErrOutOfBand.Error() {
		t.Errorf("LastError() = %q; want %q", r.LastError(), ErrOutOfBand.Error())
	}

	if err := r.SetFrequency(context.Background(), 14074000); err != nil {
		t.Fatalf("in-band SetFrequency failed: %v", err)
	}
	if len(be.setFreqCalls) != 1 || be.setFreqCalls[0] != 14074000 {
		t.Errorf("backend calls = %v; want [14074000]", be.setFreqCalls)
	}
}

func TestSetFrequencyNoEnabledRangesAdmitsAll(t *testing.T) {
	cfg := RigConfig{Name: "test"}
	be := &fakeBackend{}
	r := NewRig(cfg, be, nil)

	if err := r.SetFrequency(context.Background(), 1234567); err != nil {
		t.Fatalf("expected admit-all with no bounded presets, got %v", err)
	}
}

func TestSetFrequencyUnboundedPresetAdmitsAll(t *testing.T) {
	cfg := RigConfig{
		Name: "test",
		BandPresets: []BandPreset{
			{Label: "general", Enabled: true},
			{Label: "20m", Enabled: true, LowerHz: intp(14000000), UpperHz: intp(14350000)},
		},
	}
	be := &fakeBackend{}
	r := NewRig(cfg, be, nil)

	if err := r.SetFrequency(context.Background(), 7074000); err != nil {
		t.Fatalf("expected admit due to unbounded enabled preset, got %v", err)
	}
}

func TestStatusCache(t *testing.T) {
	cfg := RigConfig{Name: "test", PollIntervalMs: 1000, BandPresets: nil}
	be := &fakeBackend{freq: 14074000, mode: "USB", passband: 2400}
	r := NewRig(cfg, be, nil)

	s1 := r.Status(context.Background())
	s2 := r.Status(context.Background())

	if be.freqCalls != 1 {
		t.Errorf("GetFrequency called %d times; want 1 (cached)", be.freqCalls)
	}
	if !s1.Connected || !s2.Connected {
		t.Errorf("expected connected status, got %+v / %+v", s1, s2)
	}
}

func TestStatusNotCachedOnFailure(t *testing.T) {
	cfg := RigConfig{Name: "test", PollIntervalMs: 1000}
	be := &fakeBackend{failGet: true}
	r := NewRig(cfg, be, nil)

	s := r.Status(context.Background())
	if s.Connected {
		t.Fatalf("expected disconnected status")
	}
	r.Status(context.Background())
	if be.freqCalls != 2 {
		t.Errorf("GetFrequency called %d times; want 2 (no caching of failures)", be.freqCalls)
	}
}

func TestCapsDetectedLatch(t *testing.T) {
	cfg := RigConfig{Name: "test", PollIntervalMs: 0}
	be := &fakeBackend{freq: 14074000}
	r := NewRig(cfg, be, nil)

	r.Status(context.Background())
	caps := r.Caps()
	if !caps.FreqGet || !caps.FreqSet {
		t.Errorf("expected caps detected after first connected status, got %+v", caps)
	}
}
