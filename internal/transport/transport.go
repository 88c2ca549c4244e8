// Package transport provides the byte-stream connection to an ABX server:
// TCP or WebSocket dialing, per-operation deadlines, context-driven
// interruption and exact-length reads.
package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/1ureka/abxclient/internal/util"
)

// Stream is the raw connection a Conn wraps. *net.TCPConn, net.Pipe ends and
// the WebSocket adapter all satisfy it.
type Stream interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Options holds the per-operation timeouts. A zero value disables the
// corresponding deadline.
type Options struct {
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Conn is a single connection to the feed server. It is owned by one phase of
// a session at a time and is not safe for concurrent use, except Close.
//
// When ctx is cancelled the underlying stream is closed so that a blocked
// Read or Write returns immediately.
type Conn struct {
	s    Stream
	opts Options

	ctx context.Context

	mu   sync.Mutex
	stop func() bool // nil until NewConn has registered the cancel hook

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an established stream. If ctx is already done the stream
// is closed right away and every operation fails with the context's cause.
func NewConn(ctx context.Context, s Stream, opts Options) *Conn {
	c := &Conn{s: s, opts: opts, ctx: ctx}

	// the hook may run before AfterFunc returns; Close waits on mu
	c.mu.Lock()
	c.stop = context.AfterFunc(ctx, func() {
		c.Close()
	})
	c.mu.Unlock()
	return c
}

// Read implements io.Reader with the configured read deadline applied to
// every call.
func (c *Conn) Read(p []byte) (int, error) {
	if c.opts.ReadTimeout > 0 {
		if err := c.s.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout)); err != nil {
			return 0, c.interrupted(err)
		}
	}

	n, err := c.s.Read(p)
	util.Stats.AddRecv(n)
	if err != nil {
		return n, c.interrupted(err)
	}
	return n, nil
}

// Write implements io.Writer with the configured write deadline applied.
func (c *Conn) Write(p []byte) (int, error) {
	if c.opts.WriteTimeout > 0 {
		if err := c.s.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
			return 0, c.interrupted(err)
		}
	}

	n, err := c.s.Write(p)
	util.Stats.AddSent(n)
	if err != nil {
		return n, c.interrupted(err)
	}
	return n, nil
}

// Send writes a complete request message.
func (c *Conn) Send(msg []byte) error {
	n, err := c.Write(msg)
	if err != nil {
		return fmt.Errorf("failed to send %d-byte request: %w", len(msg), err)
	}
	if n != len(msg) {
		return fmt.Errorf("failed to send request: short write (%d of %d bytes)", n, len(msg))
	}
	return nil
}

// ReadFrame reads exactly size bytes. See ReadExact for the error contract.
func (c *Conn) ReadFrame(size int) ([]byte, error) {
	return ReadExact(c, size)
}

// Close releases the connection. Safe to call multiple times.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		stop := c.stop
		c.mu.Unlock()
		if stop != nil {
			stop()
		}
		c.closeErr = c.s.Close()
		util.Stats.RemoveConn()
	})
	return c.closeErr
}

// interrupted replaces errors caused by context cancellation with the
// context's cause, so callers can match context.DeadlineExceeded or
// context.Canceled. io.EOF passes through untouched.
func (c *Conn) interrupted(err error) error {
	if err == io.EOF {
		return err
	}
	if cause := context.Cause(c.ctx); cause != nil {
		return fmt.Errorf("connection interrupted: %w", cause)
	}
	return err
}
