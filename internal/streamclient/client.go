// Package streamclient implements the harness's own client for the
// Stream Server's line-JSON protocol (spec.md §6), used by cmd/harnessctl
// and any other in-process caller that needs to talk to a running
// harnessd. Grounded on the teacher's internal/ws/client.go
// connectAndServe reconnect loop, generalized from a WebSocket dial to a
// bare net.Dial plus a line reader.
package streamclient

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentharness/harness/internal/streamserver"
)

// Envelope is re-exported for callers that want to build one manually
// (e.g. to set rarely-used fields); most callers should use SendCommand.
type Envelope = streamserver.Envelope

// EnvelopeHandler receives every envelope the server pushes that isn't a
// reply to a pending SendCommand call: pty.output, pty.event, pty.exit,
// stream.event.
type EnvelopeHandler func(Envelope)

// Options configures a Client.
type Options struct {
	Addr  string
	Token string

	DialTimeout    time.Duration
	CommandTimeout time.Duration

	OnEnvelope EnvelopeHandler

	// Reconnect backoff bounds. Zero values use sane defaults.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Client owns one logical connection to a Stream Server, reconnecting
// with exponential backoff when the socket drops.
type Client struct {
	opts Options

	mu       sync.Mutex
	nc       net.Conn
	w        *bufio.Writer
	pending  map[string]chan Envelope
	connDone chan struct{} // closed by readLoop when nc drops

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// Connect dials addr, authenticates if a token is configured, and starts
// the background read/reconnect loop.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 30 * time.Second
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 250 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 10 * time.Second
	}

	c := &Client{
		opts:    opts,
		pending: make(map[string]chan Envelope),
	}
	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.dial(); err != nil {
		c.cancel()
		return nil, err
	}
	go c.reconnectLoop()
	return c, nil
}

func (c *Client) dial() error {
	nc, err := net.DialTimeout("tcp", c.opts.Addr, c.opts.DialTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.opts.Addr, err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.nc = nc
	c.w = bufio.NewWriter(nc)
	c.connDone = done
	c.mu.Unlock()

	go c.readLoop(nc, done)

	if c.opts.Token != "" {
		// A failed auth here surfaces again on the caller's first real
		// command, so there's nothing useful to do with the error yet.
		_, _ = c.SendCommand(c.ctx, streamserver.CmdAuth, nil)
	}
	return nil
}

// reconnectLoop redials with exponential backoff whenever readLoop exits
// because the connection dropped, until the client is closed.
func (c *Client) reconnectLoop() {
	backoff := c.opts.MinBackoff
	for {
		c.mu.Lock()
		done := c.connDone
		c.mu.Unlock()
		if done != nil {
			select {
			case <-done:
			case <-c.ctx.Done():
				return
			}
		}
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(backoff):
		}

		if err := c.dial(); err != nil {
			backoff *= 2
			if backoff > c.opts.MaxBackoff {
				backoff = c.opts.MaxBackoff
			}
			continue
		}
		backoff = c.opts.MinBackoff
	}
}

func (c *Client) readLoop(nc net.Conn, done chan struct{}) {
	r := bufio.NewReaderSize(nc, 64*1024)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			var env Envelope
			if json.Unmarshal(line, &env) == nil {
				c.dispatch(env)
			}
		}
		if err != nil {
			break
		}
	}
	close(done)

	c.mu.Lock()
	if c.nc == nc {
		c.nc = nil
		c.w = nil
	}
	pending := c.pending
	c.pending = make(map[string]chan Envelope)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	nc.Close()
}

func (c *Client) dispatch(env Envelope) {
	if env.CommandID != "" {
		c.mu.Lock()
		ch, ok := c.pending[env.CommandID]
		if ok {
			delete(c.pending, env.CommandID)
		}
		c.mu.Unlock()
		if ok {
			ch <- env
			close(ch)
			return
		}
	}
	if c.opts.OnEnvelope != nil {
		c.opts.OnEnvelope(env)
	}
}

// ErrNotConnected is returned by calls made while the client is
// reconnecting.
var ErrNotConnected = errors.New("streamclient: not connected")

// SendCommand issues a command and blocks for its command.completed or
// command.failed reply, or until ctx is done / the configured
// CommandTimeout elapses.
func (c *Client) SendCommand(ctx context.Context, cmdType string, params any) (Envelope, error) {
	c.mu.Lock()
	if c.nc == nil || c.w == nil {
		c.mu.Unlock()
		return Envelope{}, ErrNotConnected
	}

	commandID := uuid.NewString()
	ch := make(chan Envelope, 1)
	c.pending[commandID] = ch

	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			delete(c.pending, commandID)
			c.mu.Unlock()
			return Envelope{}, fmt.Errorf("marshal params: %w", err)
		}
		raw = b
	}

	env := Envelope{Kind: streamserver.KindCommand, CommandID: commandID, Type: cmdType, Params: raw}
	if cmdType == streamserver.CmdAuth {
		env.Kind = streamserver.KindAuth
		env.Token = c.opts.Token
	}
	b, err := json.Marshal(env)
	if err != nil {
		delete(c.pending, commandID)
		c.mu.Unlock()
		return Envelope{}, fmt.Errorf("marshal envelope: %w", err)
	}
	b = append(b, '\n')
	_, writeErr := c.w.Write(b)
	if writeErr == nil {
		writeErr = c.w.Flush()
	}
	c.mu.Unlock()
	if writeErr != nil {
		return Envelope{}, fmt.Errorf("write command: %w", writeErr)
	}

	timeout := time.NewTimer(c.opts.CommandTimeout)
	defer timeout.Stop()

	select {
	case env, ok := <-ch:
		if !ok {
			return Envelope{}, errors.New("streamclient: connection closed while awaiting reply")
		}
		if env.Kind == streamserver.KindCommandFailed && env.Error != nil {
			return env, fmt.Errorf("command %s failed: %s: %s", cmdType, env.Error.Code, env.Error.Message)
		}
		return env, nil
	case <-timeout.C:
		return Envelope{}, fmt.Errorf("command %s timed out after %s", cmdType, c.opts.CommandTimeout)
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

// SendInput writes pty.input without awaiting a reply.
func (c *Client) SendInput(sessionID string, data []byte) error {
	return c.sendRaw(Envelope{Kind: streamserver.KindPTYInput, SessionID: sessionID, ChunkBase64: base64.StdEncoding.EncodeToString(data)})
}

// SendResize writes pty.resize without awaiting a reply.
func (c *Client) SendResize(sessionID string, cols, rows int) error {
	return c.sendRaw(Envelope{Kind: streamserver.KindPTYResize, SessionID: sessionID, Cols: cols, Rows: rows})
}

// SendSignal writes pty.signal without awaiting a reply. signal is one
// of "interrupt", "eof", "terminate".
func (c *Client) SendSignal(sessionID, signal string) error {
	return c.sendRaw(Envelope{Kind: streamserver.KindPTYSignal, SessionID: sessionID, Signal: signal})
}

func (c *Client) sendRaw(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc == nil || c.w == nil {
		return ErrNotConnected
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if _, err := c.w.Write(b); err != nil {
		return err
	}
	return c.w.Flush()
}

// Close tears down the connection and stops reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	nc := c.nc
	c.mu.Unlock()
	c.cancel()
	if nc != nil {
		return nc.Close()
	}
	return nil
}
