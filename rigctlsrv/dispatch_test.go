package rigctlsrv

import (
	"context"
	"testing"

	"github.com/rcludwick/multirig/debuglog"
	"github.com/rcludwick/multirig/rigcontrol/hamlib"
)

type fakeBackend struct {
	freq         int
	mode         string
	passband     int
	setFreqCalls int
}

func (f *fakeBackend) GetFrequency(ctx context.Context) (int, error) { return f.freq, nil }
func (f *fakeBackend) SetFrequency(ctx context.Context, hz int) error {
	f.setFreqCalls++
	f.freq = hz
	return nil
}
func (f *fakeBackend) GetMode(ctx context.Context) (string, int, error) { return f.mode, f.passband, nil }
func (f *fakeBackend) SetMode(ctx context.Context, mode string, pb int) error {
	f.mode, f.passband = mode, pb
	return nil
}
func (f *fakeBackend) GetVFO(ctx context.Context) (string, error)     { return "VFOA", nil }
func (f *fakeBackend) SetVFO(ctx context.Context, vfo string) error   { return nil }
func (f *fakeBackend) GetPTT(ctx context.Context) (bool, error)       { return false, nil }
func (f *fakeBackend) SetPTT(ctx context.Context, on bool) error      { return nil }
func (f *fakeBackend) GetPowerstat(ctx context.Context) (bool, error) { return true, nil }
func (f *fakeBackend) ChkVFO(ctx context.Context) (int, error)        { return 1, nil }
func (f *fakeBackend) DumpState(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeBackend) DumpCaps(ctx context.Context) ([]string, error)  { return nil, nil }
func (f *fakeBackend) Close() error                                    { return nil }

type fakeState struct {
	rigs   []*hamlib.Rig
	source int
	sync   bool
}

func (s *fakeState) Rigs() []*hamlib.Rig { return s.rigs }
func (s *fakeState) SourceIndex() int    { return s.source }
func (s *fakeState) SyncEnabled() bool   { return s.sync }

func newTestServer(t *testing.T, rigCfgs []hamlib.RigConfig, syncOn bool) (*Server, []*fakeBackend) {
	t.Helper()
	var backends []*fakeBackend
	var rigs []*hamlib.Rig
	for _, cfg := range rigCfgs {
		be := &fakeBackend{freq: 14074000, mode: "USB", passband: 2400}
		backends = append(backends, be)
		rigs = append(rigs, hamlib.NewRig(cfg, be, nil))
	}
	state := &fakeState{rigs: rigs, source: 0, sync: syncOn}
	srv := New(Config{Host: "127.0.0.1", Port: 0}, state, debuglog.NewStore(), nil)
	return srv, backends
}

func twoRigConfigs(follow1 bool) []hamlib.RigConfig {
	return []hamlib.RigConfig{
		{Name: "Rig 1", Enabled: true, FollowMain: true},
		{Name: "Rig 2", Enabled: true, FollowMain: follow1},
	}
}

func TestFanoutBothFollow(t *testing.T) {
	srv, backends := newTestServer(t, twoRigConfigs(true), true)
	resp := srv.dispatch(context.Background(), "F 14074000")
	if string(resp) != "RPRT 0\n" {
		t.Fatalf("resp = %q; want RPRT 0", resp)
	}
	if backends[0].setFreqCalls != 1 || backends[0].freq != 14074000 {
		t.Errorf("source rig: calls=%d freq=%d", backends[0].setFreqCalls, backends[0].freq)
	}
	if backends[1].setFreqCalls != 1 || backends[1].freq != 14074000 {
		t.Errorf("follower rig: calls=%d freq=%d", backends[1].setFreqCalls, backends[1].freq)
	}
}

func TestFanoutFollowMainFalse(t *testing.T) {
	srv, backends := newTestServer(t, twoRigConfigs(false), true)
	srv.dispatch(context.Background(), "F 14074000")
	if backends[0].setFreqCalls != 1 {
		t.Errorf("source rig calls = %d; want 1", backends[0].setFreqCalls)
	}
	if backends[1].setFreqCalls != 0 {
		t.Errorf("non-following rig calls = %d; want 0", backends[1].setFreqCalls)
	}
}

func TestFanoutSyncDisabled(t *testing.T) {
	srv, backends := newTestServer(t, twoRigConfigs(true), false)
	srv.dispatch(context.Background(), "F 14074000")
	if backends[0].setFreqCalls != 1 {
		t.Errorf("source rig calls = %d; want 1", backends[0].setFreqCalls)
	}
	if backends[1].setFreqCalls != 0 {
		t.Errorf("follower calls = %d; want 0 when sync disabled", backends[1].setFreqCalls)
	}
}

func TestGetFreqERPExactBytes(t *testing.T) {
	srv, _ := newTestServer(t, twoRigConfigs(true), true)
	resp := srv.dispatch(context.Background(), "+f")
	want := "get_freq:\nFrequency: 14074000\nRPRT 0\n"
	if string(resp) != want {
		t.Errorf("resp = %q; want %q", resp, want)
	}
}

func TestSetFreqOutOfBandRejected(t *testing.T) {
	lo, hi := 14000000, 14350000
	cfgs := []hamlib.RigConfig{
		{Name: "Rig 1", Enabled: true, FollowMain: true, BandPresets: []hamlib.BandPreset{
			{Label: "20m", Enabled: true, LowerHz: &lo, UpperHz: &hi},
		}},
	}
	srv, backends := newTestServer(t, cfgs, true)
	resp := srv.dispatch(context.Background(), "F 7074000")
	if string(resp) != "RPRT -1\n" {
		t.Fatalf("resp = %q; want RPRT -1", resp)
	}
	if backends[0].setFreqCalls != 0 {
		t.Errorf("backend should not have been called, calls=%d", backends[0].setFreqCalls)
	}
	if got, want := srv.state.Rigs()[0].LastError(), "Frequency out of configured band ranges"; got != want {
		t.Errorf("LastError() = %q; want %q", got, want)
	}
}

func TestUnknownCommand(t *testing.T) {
	srv, _ := newTestServer(t, twoRigConfigs(true), true)
	resp := srv.dispatch(context.Background(), "zzz")
	if string(resp) != "RPRT -4\n" {
		t.Fatalf("resp = %q; want RPRT -4", resp)
	}
}

func TestChkVFORawVsShort(t *testing.T) {
	srv, _ := newTestServer(t, twoRigConfigs(true), true)
	if got, want := string(srv.dispatch(context.Background(), `\chk_vfo`)), "1\n"; got != want {
		t.Errorf("raw chk_vfo = %q; want %q", got, want)
	}
	if got, want := string(srv.dispatch(context.Background(), "chk_vfo")), "CHKVFO 1\n"; got != want {
		t.Errorf("short chk_vfo = %q; want %q", got, want)
	}
}
