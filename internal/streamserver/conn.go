package streamserver

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"

	"github.com/agentharness/harness/internal/logger"
)

// conn is one accepted connection's state (spec.md §4.8: id,
// authenticated, remainder, attachedSessionIds, eventSessionIds,
// streamSubscriptionIds, write queue, writeBlocked).
type conn struct {
	id   uint64
	nc   net.Conn
	srv  *Server

	mu            sync.Mutex
	authenticated bool

	attachedSessionIDs    map[string]uint64 // sessionId -> broker attachment id
	eventSessionIDs       map[string]bool
	streamSubscriptionIDs map[string]uint64 // subscriptionId -> journal subscription id

	writeQueue   [][]byte
	queuedBytes  int
	writeBlocked bool
	writeCond    *sync.Cond
	closed       bool
}

func newConn(id uint64, nc net.Conn, srv *Server) *conn {
	c := &conn{
		id:                    id,
		nc:                    nc,
		srv:                   srv,
		attachedSessionIDs:    make(map[string]uint64),
		eventSessionIDs:       make(map[string]bool),
		streamSubscriptionIDs: make(map[string]uint64),
	}
	c.writeCond = sync.NewCond(&c.mu)
	return c
}

// send enqueues an envelope for delivery, enforcing
// maxConnectionBufferedBytes backpressure (spec.md §4.8 "Backpressure").
func (c *conn) send(env Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		logger.Warn("streamserver: failed to marshal envelope", "err", err)
		return
	}
	b = append(b, '\n')

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.queuedBytes+len(b) > c.srv.cfg.MaxConnectionBufferedBytes {
		c.mu.Unlock()
		c.srv.closeConn(c)
		return
	}
	c.writeQueue = append(c.writeQueue, b)
	c.queuedBytes += len(b)
	c.writeCond.Signal()
	c.mu.Unlock()
}

// writeLoop drains the write queue to the socket, passing each write
// through the server's rate limiter. New builds that limiter with
// rate.Inf, so it does not delay writes.
func (c *conn) writeLoop() {
	w := bufio.NewWriter(c.nc)
	for {
		c.mu.Lock()
		for len(c.writeQueue) == 0 && !c.closed {
			c.writeCond.Wait()
		}
		if c.closed {
			c.mu.Unlock()
			return
		}
		batch := c.writeQueue
		c.writeQueue = nil
		c.queuedBytes = 0
		c.mu.Unlock()

		for _, b := range batch {
			if err := c.srv.limiter.Wait(c.srv.ctx); err != nil {
				return
			}
			if _, err := w.Write(b); err != nil {
				c.mu.Lock()
				c.writeBlocked = true
				c.mu.Unlock()
				c.srv.closeConn(c)
				return
			}
		}
		if err := w.Flush(); err != nil {
			c.srv.closeConn(c)
			return
		}
	}
}

func (c *conn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.writeCond.Broadcast()
	c.mu.Unlock()
}
