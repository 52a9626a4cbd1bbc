// Package ptyhost implements the in-process facade over the PTY helper
// process (spec.md §4.2, component C2): it spawns cmd/ptyhelper, frames
// outbound data/resize/close through internal/ptyproto, and surfaces
// data/error/exit events to its owner (internal/broker).
package ptyhost

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/agentharness/harness/internal/logger"
	"github.com/agentharness/harness/internal/ptyproto"
)

// ExitInfo describes how the PTY helper (and its child) terminated.
type ExitInfo struct {
	Code   int
	Signal string
	Err    error
}

// Options configure a Host.
type Options struct {
	HelperPath string   // explicit path; "" triggers ResolveHelperPath
	Command    string   // child command to run inside the PTY
	Args       []string // child args
	Cols, Rows int
	PerfEnabled bool
}

// Host owns one PTY helper child process.
type Host struct {
	opts Options

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	writeCh chan frameWrite
	closed  chan struct{}
	closeOnce sync.Once

	onData func([]byte)
	onExit func(ExitInfo)
	onError func(error)

	probes *probeTracker
	mu     sync.Mutex
}

type frameWrite struct {
	kind byte // 'd' data, 'r' resize, 'c' close
	data []byte
	cols, rows int
}

// New constructs a Host. Call Start to spawn the helper.
func New(opts Options) *Host {
	return &Host{
		opts:    opts,
		writeCh: make(chan frameWrite, 256),
		closed:  make(chan struct{}),
		probes:  newProbeTracker(),
	}
}

// OnData registers the callback invoked for each chunk of raw PTY stdout.
func (h *Host) OnData(fn func([]byte)) { h.onData = fn }

// OnExit registers the callback invoked once, when the helper process exits.
func (h *Host) OnExit(fn func(ExitInfo)) { h.onExit = fn }

// OnError registers the callback invoked on unrecoverable I/O errors.
func (h *Host) OnError(fn func(error)) { h.onError = fn }

// Start resolves and spawns the helper, then begins the writer and reader
// goroutines. The helper inherits the daemon's environment and working
// directory (spec.md §4.2); sandboxing is explicitly out of scope
// (spec.md §1 non-goal (d)).
func (h *Host) Start(ctx context.Context) error {
	if h.opts.Cols <= 0 || h.opts.Rows <= 0 {
		return fmt.Errorf("ptyhost: cols and rows must be positive, got %dx%d", h.opts.Cols, h.opts.Rows)
	}
	path := ResolveHelperPath(h.opts.HelperPath)
	args := append([]string{h.opts.Command}, h.opts.Args...)
	cmd := exec.CommandContext(ctx, path, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errHelperNotFound(path, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errHelperNotFound(path, err)
	}
	if err := cmd.Start(); err != nil {
		return errHelperNotFound(path, err)
	}

	h.cmd = cmd
	h.stdin = stdin
	h.stdout = stdout

	go h.writerLoop()
	go h.readerLoop()
	go h.waitLoop()

	// Push the initial size as the first resize frame.
	h.Resize(h.opts.Cols, h.opts.Rows)
	return nil
}

// Write enqueues a DATA frame. Returns nil immediately; the caller need
// not await delivery (spec.md §4.2).
func (h *Host) Write(payload []byte) error {
	select {
	case <-h.closed:
		return fmt.Errorf("ptyhost: write after close")
	default:
	}
	cp := append([]byte(nil), payload...)
	if h.opts.PerfEnabled {
		h.probes.track(cp)
	}
	select {
	case h.writeCh <- frameWrite{kind: 'd', data: cp}:
		return nil
	case <-h.closed:
		return fmt.Errorf("ptyhost: write after close")
	}
}

// Resize enqueues a RESIZE frame. cols/rows must be positive.
func (h *Host) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("ptyhost: resize requires positive cols/rows, got %dx%d", cols, rows)
	}
	select {
	case h.writeCh <- frameWrite{kind: 'r', cols: cols, rows: rows}:
		return nil
	case <-h.closed:
		return fmt.Errorf("ptyhost: resize after close")
	}
}

// Close enqueues a CLOSE frame and waits for the helper to exit.
func (h *Host) Close() error {
	select {
	case h.writeCh <- frameWrite{kind: 'c'}:
	case <-h.closed:
		return nil
	}
	<-h.closed
	return nil
}

func (h *Host) writerLoop() {
	w := bufio.NewWriter(h.stdin)
	for fw := range h.writeCh {
		var err error
		switch fw.kind {
		case 'd':
			err = ptyproto.EncodeData(w, fw.data)
		case 'r':
			err = ptyproto.EncodeResize(w, uint16(fw.cols), uint16(fw.rows))
		case 'c':
			err = ptyproto.EncodeClose(w)
		}
		if err == nil {
			err = w.Flush()
		}
		if err != nil {
			h.reportError(err)
			return
		}
		if fw.kind == 'c' {
			return
		}
	}
}

func (h *Host) readerLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, err := h.stdout.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if h.opts.PerfEnabled {
				h.probes.observe(chunk)
			}
			if h.onData != nil {
				h.onData(chunk)
			}
		}
		if err != nil {
			return
		}
	}
}

func (h *Host) waitLoop() {
	err := h.cmd.Wait()
	info := ExitInfo{}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			info.Code = exitErr.ExitCode()
		} else {
			info.Err = err
		}
	}
	h.closeOnce.Do(func() { close(h.closed) })
	if h.onExit != nil {
		h.onExit(info)
	}
}

func (h *Host) reportError(err error) {
	logger.Warn("ptyhost write error", "err", err)
	if h.onError != nil {
		h.onError(err)
	}
}
