package rigctlsrv

import (
	"context"
	"errors"
	"strconv"

	"github.com/rcludwick/multirig/rigcontrol/hamlib"
	"go.uber.org/multierr"
)

// logRig appends a dispatch outcome to rig idx's debug ring, if one
// exists, so a command's text, decoded semantics, and resulting code or
// error can be reconstructed after the fact for that specific rig (not
// just the server-wide connect/rx/tx trace).
func (s *Server) logRig(idx int, cmd string, fields map[string]any, err error) {
	ring := s.debug.Rig(idx)
	if ring == nil {
		return
	}
	f := map[string]any{"cmd": cmd}
	for k, v := range fields {
		f[k] = v
	}
	if err != nil {
		f["err"] = err.Error()
	}
	ring.Add(nowUnixNano(), "dispatch", f)
}

// sourceIndex clamps idx into the valid range for a rig list of length
// n, returning -1 if the list is empty.
func sourceIndex(idx, n int) int {
	if n == 0 {
		return -1
	}
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}

// dispatch decodes one client-protocol line and returns the rendered
// response. All dispatch is serialized by dispatchMu so concurrent
// client sessions never interleave writes to the source rig or the
// per-rig debug rings.
func (s *Server) dispatch(ctx context.Context, line string) []byte {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	cmd, err := hamlib.Decode(line)
	if err != nil {
		if err == hamlib.ErrEmptyLine {
			return nil
		}
		if errors.Is(err, hamlib.ErrArity) {
			return hamlib.RenderError(0, "unknown", hamlib.RPRTGeneric)
		}
		return hamlib.RenderError(0, "unknown", hamlib.RPRTUnimplemented)
	}

	rigs := s.state.Rigs()
	src := sourceIndex(s.state.SourceIndex(), len(rigs))
	if src < 0 {
		return hamlib.RenderError(cmd.ERP, string(cmd.Kind), hamlib.RPRTIO)
	}
	source := rigs[src]

	switch cmd.Kind {
	case hamlib.CmdGetFreq:
		hz, err := source.GetFrequency(ctx)
		s.logRig(src, "get_freq", map[string]any{"freq": hz}, err)
		if err != nil {
			return hamlib.RenderError(cmd.ERP, "get_freq", codeFor(err))
		}
		return hamlib.RenderGetFreq(cmd.ERP, hz)

	case hamlib.CmdSetFreq:
		hz, _ := strconv.Atoi(cmd.Args[0])
		code := s.fanoutSetFreq(ctx, rigs, src, hz)
		return hamlib.RenderSetFreq(cmd.ERP, hz, code)

	case hamlib.CmdGetMode:
		mode, pb, err := source.GetMode(ctx)
		s.logRig(src, "get_mode", map[string]any{"mode": mode, "passband": pb}, err)
		if err != nil {
			return hamlib.RenderError(cmd.ERP, "get_mode", codeFor(err))
		}
		return hamlib.RenderGetMode(cmd.ERP, mode, pb)

	case hamlib.CmdSetMode:
		mode := cmd.Args[0]
		pb := 0
		if len(cmd.Args) == 2 {
			pb, _ = strconv.Atoi(cmd.Args[1])
		}
		code := s.fanoutSetMode(ctx, rigs, src, mode, pb)
		return hamlib.RenderSetMode(cmd.ERP, mode, pb, code)

	case hamlib.CmdGetVFO:
		vfo, err := source.GetVFO(ctx)
		s.logRig(src, "get_vfo", map[string]any{"vfo": vfo}, err)
		if err != nil {
			return hamlib.RenderError(cmd.ERP, "get_vfo", codeFor(err))
		}
		return hamlib.RenderGetVFO(cmd.ERP, vfo)

	case hamlib.CmdSetVFO:
		vfo := cmd.Args[0]
		code := s.fanoutSetVFO(ctx, rigs, src, vfo)
		return hamlib.RenderSetVFO(cmd.ERP, vfo, code)

	case hamlib.CmdGetPTT:
		on, err := source.GetPTT(ctx)
		s.logRig(src, "get_ptt", map[string]any{"ptt": on}, err)
		if err != nil {
			if rerr, ok := asRigctlError(err); ok {
				return hamlib.RenderError(cmd.ERP, "get_ptt", rerr.Code)
			}
			return hamlib.RenderError(cmd.ERP, "get_ptt", hamlib.RPRTGeneric)
		}
		return hamlib.RenderGetPTT(cmd.ERP, on)

	case hamlib.CmdSetPTT:
		n, _ := strconv.Atoi(cmd.Args[0])
		code := s.fanoutSetPTT(ctx, rigs, src, n != 0)
		return hamlib.RenderSetPTT(cmd.ERP, n != 0, code)

	case hamlib.CmdGetPowerstat:
		on, err := source.GetPowerstat(ctx)
		s.logRig(src, "get_powerstat", map[string]any{"powerstat": on}, err)
		if err != nil {
			return hamlib.RenderError(cmd.ERP, "get_powerstat", codeFor(err))
		}
		return hamlib.RenderGetPowerstat(cmd.ERP, on)

	case hamlib.CmdGetSplitVFO:
		vfo, err := source.GetVFO(ctx)
		if err != nil {
			vfo = "VFOB"
		}
		return hamlib.RenderGetSplitVFO(cmd.ERP, false, vfo)

	case hamlib.CmdGetLevel:
		return hamlib.RenderGetLevel(cmd.ERP, cmd.Args[0])

	case hamlib.CmdChkVFO:
		n, err := source.ChkVFO(ctx)
		s.logRig(src, "chk_vfo", map[string]any{"value": n}, err)
		if err != nil {
			return hamlib.RenderError(cmd.ERP, "chk_vfo", codeFor(err))
		}
		return hamlib.RenderChkVFO(cmd.ERP, cmd.Raw, n)

	case hamlib.CmdDumpState:
		lines, err := source.DumpState(ctx)
		s.logRig(src, "dump_state", map[string]any{"lines": len(lines)}, err)
		if err != nil {
			return hamlib.RenderError(cmd.ERP, "dump_state", codeFor(err))
		}
		return hamlib.RenderDump(cmd.ERP, "dump_state", lines)

	case hamlib.CmdDumpCaps:
		lines, err := source.DumpCaps(ctx)
		s.logRig(src, "dump_caps", map[string]any{"lines": len(lines)}, err)
		if err != nil {
			return hamlib.RenderError(cmd.ERP, "dump_caps", codeFor(err))
		}
		return hamlib.RenderDump(cmd.ERP, "dump_caps", lines)

	case hamlib.CmdGetInfo:
		return hamlib.RenderDump(cmd.ERP, "get_info", []string{"multirig"})

	default:
		return hamlib.RenderError(cmd.ERP, string(cmd.Kind), hamlib.RPRTUnimplemented)
	}
}

func asRigctlError(err error) (*hamlib.RigctlError, bool) {
	var rerr *hamlib.RigctlError
	ok := errors.As(err, &rerr)
	return rerr, ok
}

// followers returns the indices of rigs eligible to mirror a set-style
// command: sync must be globally enabled, and the rig itself must have
// follow_main and enabled both true.
func (s *Server) followers(rigs []*hamlib.Rig, src int) []int {
	if !s.state.SyncEnabled() {
		return nil
	}
	var out []int
	for i, r := range rigs {
		if i == src {
			continue
		}
		cfg := r.Config()
		if !cfg.FollowMain || !cfg.Enabled {
			continue
		}
		out = append(out, i)
	}
	return out
}

func (s *Server) fanoutSetFreq(ctx context.Context, rigs []*hamlib.Rig, src, hz int) int {
	srcErr := rigs[src].SetFrequency(ctx, hz)
	s.logRig(src, "set_freq", map[string]any{"freq": hz}, srcErr)
	var followerErr error
	for _, i := range s.followers(rigs, src) {
		err := rigs[i].SetFrequency(ctx, hz)
		s.logRig(i, "set_freq", map[string]any{"freq": hz, "follower": true}, err)
		if err != nil {
			followerErr = multierr.Append(followerErr, err)
		}
	}
	if followerErr != nil {
		s.log.WithField("err", followerErr).Debug("set_freq fanout had follower failures")
	}
	return codeFor(srcErr)
}

func (s *Server) fanoutSetMode(ctx context.Context, rigs []*hamlib.Rig, src int, mode string, pb int) int {
	srcErr := rigs[src].SetMode(ctx, mode, pb)
	s.logRig(src, "set_mode", map[string]any{"mode": mode, "passband": pb}, srcErr)
	var followerErr error
	for _, i := range s.followers(rigs, src) {
		err := rigs[i].SetMode(ctx, mode, pb)
		s.logRig(i, "set_mode", map[string]any{"mode": mode, "passband": pb, "follower": true}, err)
		if err != nil {
			followerErr = multierr.Append(followerErr, err)
		}
	}
	if followerErr != nil {
		s.log.WithField("err", followerErr).Debug("set_mode fanout had follower failures")
	}
	return codeFor(srcErr)
}

func (s *Server) fanoutSetVFO(ctx context.Context, rigs []*hamlib.Rig, src int, vfo string) int {
	srcErr := rigs[src].SetVFO(ctx, vfo)
	s.logRig(src, "set_vfo", map[string]any{"vfo": vfo}, srcErr)
	for _, i := range s.followers(rigs, src) {
		err := rigs[i].SetVFO(ctx, vfo)
		s.logRig(i, "set_vfo", map[string]any{"vfo": vfo, "follower": true}, err)
	}
	return codeFor(srcErr)
}

func (s *Server) fanoutSetPTT(ctx context.Context, rigs []*hamlib.Rig, src int, on bool) int {
	srcErr := rigs[src].SetPTT(ctx, on)
	s.logRig(src, "set_ptt", map[string]any{"ptt": on}, srcErr)
	for _, i := range s.followers(rigs, src) {
		err := rigs[i].SetPTT(ctx, on)
		s.logRig(i, "set_ptt", map[string]any{"ptt": on, "follower": true}, err)
	}
	return codeFor(srcErr)
}

func codeFor(err error) int {
	if err == nil {
		return hamlib.RPRTOk
	}
	if rerr, ok := asRigctlError(err); ok {
		return rerr.Code
	}
	return hamlib.RPRTGeneric
}
