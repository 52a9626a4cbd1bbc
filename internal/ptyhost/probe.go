package ptyhost

import (
	"bytes"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentharness/harness/internal/perf"
)

const (
	probeMaxPayload  = 256
	probeQueueSize   = 64
	probeWindowBytes = 8 * 1024
	probeMaxAge      = 5 * time.Second
)

type probe struct {
	id      string
	start   time.Time
	matches [][]byte
}

// probeTracker implements the keystroke round-trip probe described in
// spec.md §4.2: small writes are timed until they (or a CRLF-upgraded
// copy) reappear in the stdout stream, bounded by a sliding window and a
// max age so an un-echoed probe is eventually dropped silently.
type probeTracker struct {
	mu     sync.Mutex
	probes []probe
	window []byte
}

func newProbeTracker() *probeTracker {
	return &probeTracker{}
}

// track registers a new probe for payload if perf is enabled and the
// payload is small enough to plausibly be a single keystroke.
func (pt *probeTracker) track(payload []byte) {
	if len(payload) == 0 || len(payload) > probeMaxPayload || !perf.Enabled() {
		return
	}
	cp := append([]byte(nil), payload...)
	p := probe{
		id:      uuid.NewString(),
		start:   time.Now(),
		matches: [][]byte{cp, crlfUpgrade(cp)},
	}
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.probes = append(pt.probes, p)
	if len(pt.probes) > probeQueueSize {
		pt.probes = pt.probes[len(pt.probes)-probeQueueSize:]
	}
}

// observe feeds newly arrived stdout bytes through the sliding window and
// completes/expires pending probes.
func (pt *probeTracker) observe(data []byte) {
	if len(data) == 0 {
		return
	}
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if len(pt.probes) == 0 {
		// Still maintain the window in case a probe is tracked moments later.
		pt.appendWindow(data)
		return
	}
	pt.appendWindow(data)

	now := time.Now()
	remaining := pt.probes[:0:0]
	for _, p := range pt.probes {
		if now.Sub(p.start) > probeMaxAge {
			continue // silently expired
		}
		matched := false
		for _, m := range p.matches {
			if bytes.Contains(pt.window, m) {
				matched = true
				break
			}
		}
		if matched {
			perf.Record("pty.keystroke.roundtrip", map[string]any{
				"probe_id":   p.id,
				"elapsed_ms": now.Sub(p.start).Milliseconds(),
			})
			continue
		}
		remaining = append(remaining, p)
	}
	pt.probes = remaining
}

func (pt *probeTracker) appendWindow(data []byte) {
	pt.window = append(pt.window, data...)
	if len(pt.window) > probeWindowBytes {
		pt.window = pt.window[len(pt.window)-probeWindowBytes:]
	}
}

// crlfUpgrade returns a copy of b with every '\n' preceded by a '\r',
// matching how many PTYs/terminal apps echo a bare LF as CRLF.
func crlfUpgrade(b []byte) []byte {
	out := make([]byte, 0, len(b)+4)
	for i, c := range b {
		if c == '\n' && (i == 0 || b[i-1] != '\r') {
			out = append(out, '\r')
		}
		out = append(out, c)
	}
	return out
}
