// Package rigctlsrv implements the virtual rigctl TCP endpoint: the
// single listener that external clients (logging programs, digital-mode
// decoders) connect to, believing they are talking to one physical rig,
// while the server actually fans commands out across a configured list
// of rigs according to per-rig policy.
package rigctlsrv

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rcludwick/multirig/debuglog"
	"github.com/rcludwick/multirig/rigcontrol/hamlib"
	"github.com/sirupsen/logrus"
)

// State is the read-only view of the control plane's current rig list
// and policy flags that the server needs. multirig.Core implements this;
// the server never owns the rig list itself so that reconfiguration can
// swap it out from under a running server.
type State interface {
	Rigs() []*hamlib.Rig
	SourceIndex() int
	SyncEnabled() bool
}

// Config configures the virtual rigctl listener.
type Config struct {
	Host string
	Port int
}

// Server is the virtual rigctl TCP endpoint.
type Server struct {
	cfg   Config
	state State
	debug *debuglog.Store
	log   *logrus.Entry

	dispatchMu sync.Mutex

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// New returns a Server bound to the given state accessor.
func New(cfg Config, state State, debug *debuglog.Store, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if debug == nil {
		debug = debuglog.NewStore()
	}
	return &Server{cfg: cfg, state: state, debug: debug, log: log}
}

// Start binds the listener and begins accepting connections in the
// background. It returns once the listener is bound, so that callers
// can rely on the server being reachable as soon as Start returns.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(ctx)
	return nil
}

// Stop closes the listener and waits for in-flight sessions to notice
// and exit.
func (s *Server) Stop() {
	s.mu.Lock()
	l := s.listener
	s.listener = nil
	s.mu.Unlock()

	if l != nil {
		l.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		l := s.listener
		s.mu.Unlock()
		if l == nil {
			return
		}

		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if s.listenerClosed() {
				return
			}
			s.log.WithField("err", err).Warn("rigctl accept failed")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) listenerClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener == nil
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	peer := conn.RemoteAddr().String()
	s.debug.Server.Add(nowUnixNano(), "connect", map[string]any{"peer": peer})
	defer s.debug.Server.Add(nowUnixNano(), "disconnect", map[string]any{"peer": peer})

	r := bufio.NewReader(conn)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := r.ReadString('\n')
		if line == "" && err != nil {
			return
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(trimmed) == "" {
			if err != nil {
				return
			}
			continue
		}

		switch trimmed {
		case "q", "Q", "quit", "exit":
			return
		}

		s.debug.Server.Add(nowUnixNano(), "rx", map[string]any{"peer": peer, "line": trimmed})
		resp := s.dispatch(ctx, trimmed)
		s.debug.Server.Add(nowUnixNano(), "tx", map[string]any{"peer": peer, "line": strings.TrimRight(string(resp), "\n")})

		if _, werr := conn.Write(resp); werr != nil {
			return
		}

		if err != nil {
			return
		}
	}
}

func nowUnixNano() int64 { return time.Now().UnixNano() }
