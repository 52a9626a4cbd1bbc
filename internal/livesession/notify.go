// Package livesession implements the Live Session (spec.md §4.5,
// component C5): it pairs a Session Broker with a Snapshot Oracle and
// tails the adapter's notify JSONL file, classifying each record into
// notify / attention-required / turn-completed events. Grounded on the
// fsnotify watch-loop pattern the teacher uses for its sync package,
// with a polling fallback for filesystems where fsnotify can't watch
// (network mounts, some container overlays).
package livesession

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/agentharness/harness/internal/logger"
)

// NotifyRecord is one parsed line from the adapter's notify file.
type NotifyRecord struct {
	Ts      string          `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

type notifyPayloadType struct {
	Type string `json:"type"`
}

// Classification is the result of interpreting one NotifyRecord.
type Classification struct {
	Kind   string // "notify" | "attention-required" | "turn-completed"
	Reason string // set only for attention-required
	Raw    NotifyRecord
}

// classify implements spec.md §4.5's classification table.
func classify(rec NotifyRecord) Classification {
	var pt notifyPayloadType
	_ = json.Unmarshal(rec.Payload, &pt)

	switch {
	case pt.Type == "agent-turn-complete" || pt.Type == "agent.turn-completed":
		return Classification{Kind: "turn-completed", Raw: rec}
	case strings.HasPrefix(pt.Type, "item/file-change/request-approval"):
		return Classification{Kind: "attention-required", Reason: "approval", Raw: rec}
	case strings.HasPrefix(pt.Type, "item/tool/request-input"):
		return Classification{Kind: "attention-required", Reason: "user-input", Raw: rec}
	default:
		return Classification{Kind: "notify", Raw: rec}
	}
}

// NotifyTailer incrementally reads a notify JSONL file and emits
// Classifications as new lines arrive.
type NotifyTailer struct {
	path         string
	pollInterval time.Duration
	offset       int64
	onEvent      func(Classification)

	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// NewNotifyTailer constructs a tailer for path. pollInterval bounds the
// polling fallback's cadence and also acts as a coalescing interval for
// fsnotify events.
func NewNotifyTailer(path string, pollInterval time.Duration, onEvent func(Classification)) *NotifyTailer {
	if pollInterval <= 0 {
		pollInterval = 200 * time.Millisecond
	}
	return &NotifyTailer{
		path:         path,
		pollInterval: pollInterval,
		onEvent:      onEvent,
		stop:         make(chan struct{}),
	}
}

// Start begins tailing in a background goroutine. It never returns an
// error for a not-yet-existing file; it simply waits for it to appear.
func (nt *NotifyTailer) Start() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("livesession: fsnotify unavailable, falling back to polling", "err", err)
		go nt.pollLoop()
		return
	}
	nt.watcher = w
	if err := w.Add(parentDir(nt.path)); err != nil {
		logger.Warn("livesession: fsnotify watch failed, falling back to polling", "err", err)
		w.Close()
		nt.watcher = nil
		go nt.pollLoop()
		return
	}
	go nt.watchLoop()
}

// Stop halts the tailer.
func (nt *NotifyTailer) Stop() {
	close(nt.stop)
	if nt.watcher != nil {
		nt.watcher.Close()
	}
}

func (nt *NotifyTailer) watchLoop() {
	ticker := time.NewTicker(nt.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-nt.stop:
			return
		case ev, ok := <-nt.watcher.Events:
			if !ok {
				return
			}
			if ev.Name == nt.path && (ev.Op&(fsnotify.Write|fsnotify.Create) != 0) {
				nt.drain()
			}
		case <-ticker.C:
			nt.drain() // coalesce: also catch writes fsnotify missed/coalesced
		case err, ok := <-nt.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("livesession: fsnotify error", "err", err)
		}
	}
}

func (nt *NotifyTailer) pollLoop() {
	ticker := time.NewTicker(nt.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-nt.stop:
			return
		case <-ticker.C:
			nt.drain()
		}
	}
}

func (nt *NotifyTailer) drain() {
	f, err := os.Open(nt.path)
	if err != nil {
		return
	}
	defer f.Close()

	if _, err := f.Seek(nt.offset, 0); err != nil {
		return
	}
	r := bufio.NewReader(f)
	var consumed int64
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 && strings.HasSuffix(line, "\n") {
			consumed += int64(len(line))
			trimmed := strings.TrimRight(line, "\n")
			if trimmed == "" {
				continue
			}
			var rec NotifyRecord
			if jsonErr := json.Unmarshal([]byte(trimmed), &rec); jsonErr == nil {
				if nt.onEvent != nil {
					nt.onEvent(classify(rec))
				}
			}
		}
		if err != nil {
			break
		}
	}
	nt.offset += consumed
}

func parentDir(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "."
	}
	return path[:i]
}
