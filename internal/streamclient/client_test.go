package streamclient_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/agentharness/harness/internal/config"
	"github.com/agentharness/harness/internal/journal"
	"github.com/agentharness/harness/internal/livesession"
	"github.com/agentharness/harness/internal/registry"
	"github.com/agentharness/harness/internal/store"
	"github.com/agentharness/harness/internal/streamclient"
	"github.com/agentharness/harness/internal/streamserver"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	cfg := config.Default()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	j := journal.New(1000)
	reg := registry.New(j, func() time.Duration { return 0 })

	srv := streamserver.New(cfg, streamserver.Deps{
		Store:    st,
		Registry: reg,
		Journal:  j,
		StartLiveSession: func(ctx context.Context, lscfg livesession.Config) (*livesession.LiveSession, error) {
			t.Fatalf("unexpected live session start")
			return nil, nil
		},
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	go func() {
		_ = srv.Serve(ctx, ln)
	}()

	return ln.Addr().String()
}

func TestSendCommandRoundTrip(t *testing.T) {
	addr := startTestServer(t)
	c, err := streamclient.Connect(context.Background(), streamclient.Options{Addr: addr})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	env, err := c.SendCommand(context.Background(), streamserver.CmdSessionList, nil)
	if err != nil {
		t.Fatalf("send command: %v", err)
	}
	if env.Kind != streamserver.KindCommandComplete {
		t.Fatalf("got %+v, want command.completed", env)
	}
}

func TestSendCommandFailedReplyIsError(t *testing.T) {
	addr := startTestServer(t)
	c, err := streamclient.Connect(context.Background(), streamclient.Options{Addr: addr, CommandTimeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	// github.pr.* is handled (stubbed) so this exercises the error path,
	// not the timeout path; kept here as a sanity check that errors
	// round-trip as Go errors rather than silently-swallowed envelopes.
	_, err = c.SendCommand(context.Background(), "github.pr.list", nil)
	if err == nil {
		t.Fatalf("expected error for stubbed github.pr command")
	}
}
