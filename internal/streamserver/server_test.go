package streamserver

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/agentharness/harness/internal/config"
	"github.com/agentharness/harness/internal/journal"
	"github.com/agentharness/harness/internal/livesession"
	"github.com/agentharness/harness/internal/registry"
	"github.com/agentharness/harness/internal/store"
)

func testServer(t *testing.T, requireToken bool, token string) (*Server, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.RequireToken = requireToken
	cfg.AuthToken = token

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	j := journal.New(1000)
	reg := registry.New(j, func() time.Duration { return cfg.TombstoneTTL() })

	s := New(cfg, Deps{
		Store:    st,
		Registry: reg,
		Journal:  j,
		StartLiveSession: func(ctx context.Context, lscfg livesession.Config) (*livesession.LiveSession, error) {
			t.Fatalf("unexpected live session start in this test")
			return nil, nil
		},
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = s.Serve(context.Background(), ln) }()
	t.Cleanup(func() { s.Close() })
	return s, ln.Addr().String()
}

func dial(t *testing.T, addr string) (net.Conn, *bufio.Reader) {
	t.Helper()
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return nc, bufio.NewReader(nc)
}

func sendLine(t *testing.T, nc net.Conn, env Envelope) {
	t.Helper()
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b = append(b, '\n')
	if _, err := nc.Write(b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readEnvelope(t *testing.T, r *bufio.Reader) Envelope {
	t.Helper()
	line, err := r.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		t.Fatalf("unmarshal %q: %v", line, err)
	}
	return env
}

func TestCommandsRejectedBeforeAuthWhenTokenRequired(t *testing.T) {
	_, addr := testServer(t, true, "secret")
	nc, r := dial(t, addr)
	defer nc.Close()

	sendLine(t, nc, Envelope{Kind: KindCommand, CommandID: "c1", Type: CmdSessionList})
	env := readEnvelope(t, r)
	if env.Kind != KindCommandFailed || env.Error == nil || env.Error.Code != "authentication-required" {
		t.Fatalf("got %+v, want authentication-required failure", env)
	}
}

func TestAuthThenCommandSucceeds(t *testing.T) {
	_, addr := testServer(t, true, "secret")
	nc, r := dial(t, addr)
	defer nc.Close()

	sendLine(t, nc, Envelope{Kind: KindAuth, Token: "secret"})
	env := readEnvelope(t, r)
	if env.Kind != KindAuthOK {
		t.Fatalf("got %+v, want auth.ok", env)
	}

	sendLine(t, nc, Envelope{Kind: KindCommand, CommandID: "c1", Type: CmdSessionList})
	env = readEnvelope(t, r)
	if env.Kind != KindCommandComplete {
		t.Fatalf("got %+v, want command.completed", env)
	}
}

func TestAuthWithWrongTokenFails(t *testing.T) {
	_, addr := testServer(t, true, "secret")
	nc, r := dial(t, addr)
	defer nc.Close()

	sendLine(t, nc, Envelope{Kind: KindAuth, Token: "wrong"})
	env := readEnvelope(t, r)
	if env.Kind != KindAuthError {
		t.Fatalf("got %+v, want auth.error", env)
	}
}

func TestUnknownCommandReturnsInvalidArgument(t *testing.T) {
	_, addr := testServer(t, false, "")
	nc, r := dial(t, addr)
	defer nc.Close()

	sendLine(t, nc, Envelope{Kind: KindCommand, CommandID: "c1", Type: "no.such.command"})
	env := readEnvelope(t, r)
	if env.Kind != KindCommandFailed || env.Error.Code != "invalid-argument" {
		t.Fatalf("got %+v, want invalid-argument failure", env)
	}
}

func TestGitHubPRCommandsStubbed(t *testing.T) {
	_, addr := testServer(t, false, "")
	nc, r := dial(t, addr)
	defer nc.Close()

	sendLine(t, nc, Envelope{Kind: KindCommand, CommandID: "c1", Type: "github.pr.list"})
	env := readEnvelope(t, r)
	if env.Kind != KindCommandFailed || env.Error.Code != "precondition-failed" {
		t.Fatalf("got %+v, want precondition-failed stub", env)
	}
}

func TestDirectoryUpsertAndListRoundTrip(t *testing.T) {
	_, addr := testServer(t, false, "")
	nc, r := dial(t, addr)
	defer nc.Close()

	params, _ := json.Marshal(map[string]any{
		"tenantId": "t1", "userId": "u1", "workspaceId": "w1",
		"path": "/repo", "name": "repo",
	})
	sendLine(t, nc, Envelope{Kind: KindCommand, CommandID: "c1", Type: CmdDirectoryUpsert, Params: params})
	env := readEnvelope(t, r)
	if env.Kind != KindCommandComplete {
		t.Fatalf("upsert failed: %+v", env)
	}

	listParams, _ := json.Marshal(map[string]any{"tenantId": "t1", "userId": "u1", "workspaceId": "w1"})
	sendLine(t, nc, Envelope{Kind: KindCommand, CommandID: "c2", Type: CmdDirectoryList, Params: listParams})
	env = readEnvelope(t, r)
	if env.Kind != KindCommandComplete {
		t.Fatalf("list failed: %+v", env)
	}
}

func TestMalformedJSONDoesNotCrashConnection(t *testing.T) {
	_, addr := testServer(t, false, "")
	nc, r := dial(t, addr)
	defer nc.Close()

	nc.Write([]byte("not json at all\n"))
	sendLine(t, nc, Envelope{Kind: KindCommand, CommandID: "c1", Type: CmdSessionList})
	env := readEnvelope(t, r)
	if env.Kind != KindCommandComplete {
		t.Fatalf("connection should have survived malformed line, got %+v", env)
	}
}
