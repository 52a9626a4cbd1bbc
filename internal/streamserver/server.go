package streamserver

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/agentharness/harness/internal/config"
	"github.com/agentharness/harness/internal/harnesserr"
	"github.com/agentharness/harness/internal/journal"
	"github.com/agentharness/harness/internal/livesession"
	"github.com/agentharness/harness/internal/registry"
	"github.com/agentharness/harness/internal/store"
)

// Deps bundles the control-plane collaborators the server dispatches
// commands to (spec.md §2 "CRUD and session commands ... -> C7 ->
// {C6, C8, C9}").
type Deps struct {
	Store    *store.Store
	Registry *registry.Registry
	Journal  *journal.Journal

	StartLiveSession func(ctx context.Context, cfg livesession.Config) (*livesession.LiveSession, error)
}

// Server is the Stream Server (C7).
type Server struct {
	cfg  *config.Config
	deps Deps

	ln      net.Listener
	ctx     context.Context
	cancel  context.CancelFunc
	limiter *rate.Limiter

	nextConnID uint64
	mu         sync.Mutex
	conns      map[uint64]*conn
}

// New constructs a Server. It does not start listening.
func New(cfg *config.Config, deps Deps) *Server {
	return &Server{
		cfg:     cfg,
		deps:    deps,
		conns:   make(map[uint64]*conn),
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
}

// ListenAndServe binds the configured address and serves until ctx is
// canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on an already-bound listener until ctx is
// canceled. Exposed separately from ListenAndServe so callers (and
// tests) that need the actual bound address — e.g. when Config.Port is
// 0 — can create the listener themselves first.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.ln = ln
	s.ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		<-s.ctx.Done()
		ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConn(nc)
	}
}

// Close stops accepting and tears down all live connections.
func (s *Server) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		s.closeConn(c)
	}
}

func (s *Server) handleConn(nc net.Conn) {
	id := atomic.AddUint64(&s.nextConnID, 1)
	c := newConn(id, nc, s)

	s.mu.Lock()
	s.conns[id] = c
	s.mu.Unlock()

	if !s.cfg.RequireToken {
		c.authenticated = true
	}

	go c.writeLoop()
	s.readLoop(c)
}

func (s *Server) readLoop(c *conn) {
	defer s.closeConn(c)

	r := bufio.NewReaderSize(c.nc, 64*1024)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			if len(line) > s.cfg.MaxLineBytes {
				continue // message too large: dropped, not fatal
			}
			s.handleLine(c, line)
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) handleLine(c *conn, line []byte) {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return // malformed JSON is ignored, never crashes the connection
	}

	switch env.Kind {
	case KindAuth:
		s.handleAuth(c, env)
	case KindCommand:
		if !s.requireAuth(c, env) {
			return
		}
		s.dispatchCommand(c, env)
	case KindPTYInput, KindPTYResize, KindPTYSignal:
		if !s.requireAuth(c, env) {
			return
		}
		s.handlePTYIO(c, env)
	}
}

func (s *Server) handleAuth(c *conn, env Envelope) {
	if !s.cfg.RequireToken || s.tokenValid(env.Token) {
		c.mu.Lock()
		c.authenticated = true
		c.mu.Unlock()
		c.send(Envelope{Kind: KindAuthOK, CommandID: env.CommandID})
		return
	}
	c.send(Envelope{Kind: KindAuthError, CommandID: env.CommandID, Error: &WireError{Code: "authentication-failed", Message: "invalid token"}})
}

// tokenValid accepts either the plain shared bearer token or, when
// AuthJWTKey is configured, an HMAC-signed JWT bearer token (spec.md §4.8
// "auth", JWT mode).
func (s *Server) tokenValid(token string) bool {
	if s.cfg.AuthToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) == 1 {
		return true
	}
	if s.cfg.AuthJWTKey == "" {
		return false
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, harnesserr.InvalidArgumentf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.AuthJWTKey), nil
	})
	return err == nil && parsed.Valid
}

// requireAuth enforces spec.md §4.8 "Auth": before auth succeeds, only
// `auth` itself is permitted.
func (s *Server) requireAuth(c *conn, env Envelope) bool {
	if !s.cfg.RequireToken {
		return true
	}
	c.mu.Lock()
	ok := c.authenticated
	c.mu.Unlock()
	if ok {
		return true
	}
	if env.Kind == KindCommand {
		c.send(Envelope{
			Kind:      KindCommandFailed,
			CommandID: env.CommandID,
			Error:     &WireError{Code: "authentication-required", Message: "authentication required"},
		})
	}
	return false
}

func (s *Server) closeConn(c *conn) {
	s.mu.Lock()
	if _, ok := s.conns[c.id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.conns, c.id)
	s.mu.Unlock()

	c.mu.Lock()
	attached := c.attachedSessionIDs
	subs := c.streamSubscriptionIDs
	c.mu.Unlock()

	for sessionID, attachID := range attached {
		if sess := s.deps.Registry.Get(sessionID); sess != nil && sess.Live != nil {
			sess.Live.Broker.Detach(attachID)
		}
	}
	for _, subID := range subs {
		s.deps.Journal.Unsubscribe(subID)
	}

	c.markClosed()
	c.nc.Close()
}
