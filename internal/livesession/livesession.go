package livesession

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/agentharness/harness/internal/broker"
	"github.com/agentharness/harness/internal/ptyhost"
	"github.com/agentharness/harness/internal/vt"
)

// Config configures one Live Session.
type Config struct {
	Command      string
	Args         []string
	Cols, Rows   int
	HelperPath   string
	PerfEnabled  bool
	NotifyPath   string // "" disables notify tailing
	PollInterval time.Duration
	SnapshotEnabled bool // false disables oracle ingest (spec.md §4.5)

	TerminalFG     string
	TerminalBG     string
	TerminalCursor string
}

// LiveSession owns a Session Broker and, unless disabled, a Snapshot
// Oracle, and tails the adapter's notify file.
type LiveSession struct {
	cfg    Config
	host   *ptyhost.Host
	Broker *broker.Broker
	oracle *vt.Terminal
	tailer *NotifyTailer
}

// Start spawns the PTY helper, wires the broker and (optionally) the
// oracle, starts notify tailing if configured, and performs the startup
// query handshake (spec.md §4.5).
func Start(ctx context.Context, cfg Config) (*LiveSession, error) {
	host := ptyhost.New(ptyhost.Options{
		HelperPath:  cfg.HelperPath,
		Command:     cfg.Command,
		Args:        cfg.Args,
		Cols:        cfg.Cols,
		Rows:        cfg.Rows,
		PerfEnabled: cfg.PerfEnabled,
	})

	ls := &LiveSession{cfg: cfg, host: host}
	ls.Broker = broker.New(host, 0)

	if cfg.SnapshotEnabled {
		ls.oracle = vt.New(cfg.Rows, cfg.Cols, 10000)
		ls.oracle.SetReplyWriter(replyWriterFunc(func(p []byte) {
			host.Write(p)
		}))
		ls.oracle.SetDefaultColors(
			parseConfiguredColor(cfg.TerminalFG),
			parseConfiguredColor(cfg.TerminalBG),
			parseConfiguredColor(cfg.TerminalCursor),
		)
		ls.oracle.SetUnhandledQueryHook(func(kind, raw string) {
			ls.Broker.NotifyAdapterEvent("query-unhandled", map[string]string{"kind": kind, "raw": raw})
		})
		oracle := ls.oracle
		ls.Broker.Attach(broker.Handlers{
			OnData: func(_ uint64, chunk []byte) { oracle.Write(chunk) },
		}, nil)
	}

	if err := host.Start(ctx); err != nil {
		return nil, err
	}

	if cfg.NotifyPath != "" {
		ls.tailer = NewNotifyTailer(cfg.NotifyPath, cfg.PollInterval, func(c Classification) {
			ls.Broker.NotifyAdapterEvent(c.Kind, c)
		})
		ls.tailer.Start()
	}

	ls.sendHandshake()
	return ls, nil
}

// replyWriterFunc adapts a func to vt.QueryReplyWriter.
type replyWriterFunc func([]byte)

func (f replyWriterFunc) WriteReply(p []byte) { f(p) }

// sendHandshake writes the immediate startup probe sequence described in
// spec.md §4.5: terminal color query, primary device attributes, DSR,
// and window-size probe.
func (ls *LiveSession) sendHandshake() {
	probe := "\x1b]11;?\x1b\\\x1b[c\x1b[6n\x1b[18t"
	ls.host.Write([]byte(probe))
}

// Snapshot returns the current terminal frame and true, or false if
// snapshot ingest is disabled for this session.
func (ls *LiveSession) Snapshot() (vt.SnapshotFrame, bool) {
	if ls.oracle == nil {
		return vt.SnapshotFrame{}, false
	}
	return ls.oracle.Snapshot(), true
}

// Oracle exposes the underlying Snapshot Oracle, or nil if disabled.
func (ls *LiveSession) Oracle() *vt.Terminal { return ls.oracle }

// Close stops notify tailing and closes the underlying broker/host.
func (ls *LiveSession) Close() error {
	if ls.tailer != nil {
		ls.tailer.Stop()
	}
	return ls.Broker.Close()
}

// parseConfiguredColor parses a "#rrggbb" config value into a
// true-color ColorRef; an empty or malformed value yields the zero
// (default) ColorRef.
func parseConfiguredColor(hex string) vt.ColorRef {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return vt.ColorRef{}
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return vt.ColorRef{}
	}
	return vt.ColorRef{Kind: vt.ColorTrueColor, R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}
