package rigsync

import (
	"context"
	"testing"

	"github.com/rcludwick/multirig/rigcontrol/hamlib"
)

type fakeBackend struct {
	freq         int
	mode         string
	passband     int
	setFreqCalls int
	setModeCalls int
	connected    bool
}

func (f *fakeBackend) GetFrequency(ctx context.Context) (int, error) { return f.freq, nil }
func (f *fakeBackend) SetFrequency(ctx context.Context, hz int) error {
	f.setFreqCalls++
	f.freq = hz
	return nil
}
func (f *fakeBackend) GetMode(ctx context.Context) (string, int, error) { return f.mode, f.passband, nil }
func (f *fakeBackend) SetMode(ctx context.Context, mode string, pb int) error {
	f.setModeCalls++
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
	rigs    []*hamlib.Rig
	source  int
	sync    bool
	pollMs  int
}

func (s *fakeState) Rigs() []*hamlib.Rig { return s.rigs }
func (s *fakeState) SourceIndex() int    { return s.source }
func (s *fakeState) SyncEnabled() bool   { return s.sync }
func (s *fakeState) PollIntervalMs() int { return s.pollMs }

func newTestSync(t *testing.T, follow1 bool, syncOn bool) (*Synchronizer, []*fakeBackend) {
	t.Helper()
	cfgs := []hamlib.RigConfig{
		{Name: "Rig 1", Enabled: true, FollowMain: true, PollIntervalMs: 1000},
		{Name: "Rig 2", Enabled: true, FollowMain: follow1, PollIntervalMs: 1000},
	}
	var backends []*fakeBackend
	var rigs []*hamlib.Rig
	for _, cfg := range cfgs {
		be := &fakeBackend{freq: 14074000, mode: "USB", passband: 2400}
		backends = append(backends, be)
		rigs = append(rigs, hamlib.NewRig(cfg, be, nil))
	}
	state := &fakeState{rigs: rigs, source: 0, sync: syncOn, pollMs: 1000}
	return New(state, nil), backends
}

func TestTickBroadcastsToFollower(t *testing.T) {
	s, backends := newTestSync(t, true, true)
	s.tick(context.Background())
	if backends[1].setFreqCalls != 1 || backends[1].freq != 14074000 {
		t.Errorf("follower: calls=%d freq=%d", backends[1].setFreqCalls, backends[1].freq)
	}
	if backends[1].setModeCalls != 1 || backends[1].mode != "USB" {
		t.Errorf("follower mode: calls=%d mode=%s", backends[1].setModeCalls, backends[1].mode)
	}
}

func TestTickSkipsNonFollower(t *testing.T) {
	s, backends := newTestSync(t, false, true)
	s.tick(context.Background())
	if backends[1].setFreqCalls != 0 {
		t.Errorf("non-follower calls = %d; want 0", backends[1].setFreqCalls)
	}
}

func TestTickSkipsWhenSyncDisabled(t *testing.T) {
	s, backends := newTestSync(t, true, false)
	s.tick(context.Background())
	if backends[1].setFreqCalls != 0 {
		t.Errorf("calls = %d; want 0 when sync disabled", backends[1].setFreqCalls)
	}
}

func TestTickDebouncesUnchangedState(t *testing.T) {
	s, backends := newTestSync(t, true, true)
	s.tick(context.Background())
	s.tick(context.Background())
	s.tick(context.Background())
	if backends[1].setFreqCalls != 1 {
		t.Errorf("calls = %d; want 1 (debounced)", backends[1].setFreqCalls)
	}
}

func TestTickRebroadcastsAfterChange(t *testing.T) {
	s, backends := newTestSync(t, true, true)
	s.tick(context.Background())
	// Change the source through its Rig so the rig's cached status
	// (valid for its 1000 ms poll interval) is invalidated.
	if err := s.state.Rigs()[0].SetFrequency(context.Background(), 7074000); err != nil {
		t.Fatalf("source SetFrequency: %v", err)
	}
	s.tick(context.Background())
	if backends[1].setFreqCalls != 2 || backends[1].freq != 7074000 {
		t.Errorf("follower: calls=%d freq=%d", backends[1].setFreqCalls, backends[1].freq)
	}
}

func TestResetForcesRebroadcast(t *testing.T) {
	s, backends := newTestSync(t, true, true)
	s.tick(context.Background())
	s.Reset()
	s.tick(context.Background())
	if backends[1].setFreqCalls != 2 {
		t.Errorf("calls = %d; want 2 after Reset", backends[1].setFreqCalls)
	}
}
