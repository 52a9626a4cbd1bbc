// Package perf implements the process-wide performance sink described in
// spec.md §9: a singleton initialized once at daemon startup with a log path
// and an enabled flag, accepting async-appended event records on a bounded
// queue, and flushed/closed at shutdown. Loss of records under backpressure
// is tolerable — perf data is observability only (spec.md §7).
package perf

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/agentharness/harness/internal/logger"
)

// Event is one perf sample, e.g. a completed keystroke round-trip probe.
type Event struct {
	Name      string         `json:"name"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}

const queueCapacity = 4096

type sink struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	enc     *json.Encoder
	queue   chan Event
	done    chan struct{}
}

var global = &sink{}

// Init starts the global perf sink. Calling Init again replaces the prior
// sink after closing it.
func Init(path string, enabled bool) error {
	Close()

	s := &sink{enabled: enabled}
	if enabled && path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		s.file = f
		s.enc = json.NewEncoder(f)
	}
	s.queue = make(chan Event, queueCapacity)
	s.done = make(chan struct{})

	go s.run()

	global = s
	return nil
}

func (s *sink) run() {
	defer close(s.done)
	for ev := range s.queue {
		if s.enc == nil {
			continue
		}
		s.mu.Lock()
		if err := s.enc.Encode(ev); err != nil {
			logger.Warn("perf sink write failed", "err", err)
		}
		s.mu.Unlock()
	}
}

// Enabled reports whether the global sink accepts events.
func Enabled() bool {
	return global.enabled
}

// Record enqueues an event. Non-blocking: if the queue is full the event is
// silently dropped, matching the "loss of records is tolerable" contract.
func Record(name string, fields map[string]any) {
	s := global
	if !s.enabled || s.queue == nil {
		return
	}
	ev := Event{Name: name, Timestamp: time.Now(), Fields: fields}
	select {
	case s.queue <- ev:
	default:
	}
}

// Close flushes and closes the global sink.
func Close() {
	s := global
	if s.queue == nil {
		return
	}
	close(s.queue)
	<-s.done
	if s.file != nil {
		s.file.Close()
	}
	global = &sink{}
}
