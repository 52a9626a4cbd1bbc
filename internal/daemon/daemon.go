// Package daemon wires the control-plane components into one running
// process: the Store (C6), the Journal (C9), the Session Registry (C8),
// and the Stream Server (C7), then serves until a termination signal
// arrives.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentharness/harness/internal/config"
	"github.com/agentharness/harness/internal/journal"
	"github.com/agentharness/harness/internal/livesession"
	"github.com/agentharness/harness/internal/logger"
	"github.com/agentharness/harness/internal/registry"
	"github.com/agentharness/harness/internal/store"
	"github.com/agentharness/harness/internal/streamserver"
)

// Daemon owns the process-lifetime collaborators.
type Daemon struct {
	Config   *config.Config
	Store    *store.Store
	Journal  *journal.Journal
	Registry *registry.Registry
	Server   *streamserver.Server
}

// Run opens the store, wires the control plane, and serves until SIGINT
// or SIGTERM, then shuts down with a grace period.
func Run(cfg *config.Config) error {
	if err := logger.Init("info", ""); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	st, err := store.Open(cfg.StateStorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	j := journal.New(cfg.MaxStreamJournalEntries)
	reg := registry.New(j, cfg.TombstoneTTL)
	reg.OnPersist(func(sess *registry.Session) { persistSessionState(st, sess) })
	reg.OnRemove(func(sessionID string) {
		if err := st.DeleteSessionState(sessionID); err != nil {
			logger.Log.Warn("delete session state failed", slog.String("sessionId", sessionID), slog.Any("err", err))
		}
	})

	if needsInput, err := st.ListAllNeedsInput(); err != nil {
		logger.Log.Warn("list needs-input sessions failed", slog.Any("err", err))
	} else if len(needsInput) > 0 {
		logger.Log.Info("restored needs-input sessions from store", slog.Int("count", len(needsInput)))
	}

	srv := streamserver.New(cfg, streamserver.Deps{
		Store:    st,
		Registry: reg,
		Journal:  j,
		StartLiveSession: func(ctx context.Context, lscfg livesession.Config) (*livesession.LiveSession, error) {
			return livesession.Start(ctx, lscfg)
		},
	})

	d := &Daemon{Config: cfg, Store: st, Journal: j, Registry: reg, Server: srv}
	return d.run()
}

// persistSessionState mirrors a Registry mutation into the Session
// Store's durable projection, so a restart can answer session.status
// for a needs-input session the in-memory registry no longer holds
// (spec.md §4.7, §8 scenario 4).
func persistSessionState(st *store.Store, sess *registry.Session) {
	state := store.SessionState{
		SessionID: sess.SessionID,
		Scope: store.Scope{
			TenantID:    sess.Scope.TenantID,
			UserID:      sess.Scope.UserID,
			WorkspaceID: sess.Scope.WorkspaceID,
		},
		WorktreeID:      sess.Scope.WorktreeID,
		DirectoryID:     sess.DirectoryID,
		ConversationID:  sess.ConversationID,
		Status:          string(sess.Status),
		AttentionReason: sess.AttentionReason,
		StartedAt:       sess.StartedAt,
		ExitedAt:        sess.ExitedAt,
		LastEventAt:     sess.LastEventAt,
	}
	if sess.Controller != nil {
		state.ControllerID = sess.Controller.ControllerID
		state.ControllerType = string(sess.Controller.ControllerType)
		state.ControllerLabel = sess.Controller.ControllerLabel
		claimedAt := sess.Controller.ClaimedAt
		state.ClaimedAt = &claimedAt
	}
	if err := st.SaveSessionState(state); err != nil {
		logger.Log.Warn("save session state failed", slog.String("sessionId", sess.SessionID), slog.Any("err", err))
	}
}

func (d *Daemon) run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("harnessd listening", slog.String("addr", d.Config.Addr()))
		errCh <- d.Server.ListenAndServe(ctx)
	}()

	select {
	case sig := <-sigCh:
		logger.Log.Info("shutting down", slog.String("signal", sig.String()))
		cancel()
		d.Server.Close()
		time.Sleep(time.Second)
		return nil
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			return fmt.Errorf("daemon error: %w", err)
		}
		return nil
	}
}
