// Package network implements the TCP listeners and per-client connection
// handling for the lobby and game ports.
package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quadrelay-project/quadrelay/internal/protocol"
)

// ErrStopHandler tells the read loop to close the connection and stop
// processing. Handlers return it after a terminal response such as a
// rejected login.
var ErrStopHandler = errors.New("stop handler")

// maxPendingBytes bounds the reassembly buffer. A client that streams
// this much without a frame terminator is not speaking the protocol.
const maxPendingBytes = 64 * 1024

// writeTimeout applies to every outgoing frame.
const writeTimeout = 10 * time.Second

// Handler processes one decoded message. Returning ErrStopHandler ends
// the connection; any other error is logged and the loop continues.
type Handler func(msg protocol.Message) error

// RawHandler processes one frame that the catalog could not decode. It
// receives the frame without its terminator.
type RawHandler func(frame []byte) error

// Conn wraps a client TCP connection. Frames are NUL-terminated and may
// arrive fragmented or coalesced; the read loop reassembles them and
// dispatches each decoded message to the handlers registered for its
// kind, in registration order.
type Conn struct {
	mu     sync.Mutex
	conn   net.Conn
	logger zerolog.Logger

	handlers    map[protocol.Kind][]Handler
	rawHandlers map[string]RawHandler

	connectedAt  time.Time
	lastActivity time.Time

	closed       bool
	disconnected bool
}

// NewConn wraps an accepted net.Conn.
func NewConn(conn net.Conn) *Conn {
	now := time.Now()
	return &Conn{
		conn:         conn,
		connectedAt:  now,
		lastActivity: now,
		handlers:     make(map[protocol.Kind][]Handler),
		rawHandlers:  make(map[string]RawHandler),
		logger: log.With().
			Str("component", "conn").
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
	}
}

// On registers a handler for a message kind. Handlers for the same kind
// run in registration order. Registration happens before Run starts
// reading; it is not safe to call concurrently with the read loop.
func (c *Conn) On(kind protocol.Kind, h Handler) {
	c.handlers[kind] = append(c.handlers[kind], h)
}

// OnRaw registers a fallback for frames the catalog cannot decode,
// keyed by the frame's first token. Like On, it must not be called
// once the read loop is running.
func (c *Conn) OnRaw(firstToken string, h RawHandler) {
	c.rawHandlers[firstToken] = h
}

// Run reads frames until the peer disconnects, a handler stops the
// connection, or the context is cancelled. When the peer goes away a
// synthetic Disconnect message is dispatched exactly once so the
// owning server can release its state.
func (c *Conn) Run(ctx context.Context) {
	defer c.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()

	buf := make([]byte, 2048)
	var pending []byte

	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.touch()
			pending = append(pending, buf[:n]...)
			if len(pending) > maxPendingBytes {
				c.logger.Warn().Int("pending", len(pending)).Msg("oversized frame, dropping client")
				c.dispatchDisconnect()
				return
			}
			for {
				i := bytes.IndexByte(pending, protocol.Terminator)
				if i < 0 {
					break
				}
				frame := pending[:i]
				pending = pending[i+1:]
				if len(frame) == 0 {
					continue
				}
				if derr := c.dispatch(frame); derr != nil {
					if !errors.Is(derr, ErrStopHandler) {
						c.logger.Error().Err(derr).Msg("handler failed, closing connection")
					}
					return
				}
			}
		}
		if err != nil {
			c.dispatchDisconnect()
			return
		}
	}
}

func (c *Conn) dispatch(frame []byte) error {
	msg := protocol.Decode(frame)
	if msg == nil {
		return c.dispatchRaw(frame)
	}

	hs, ok := c.handlers[msg.Kind()]
	if !ok {
		c.logger.Debug().Int("kind", int(msg.Kind())).Msg("no handler for message")
		return nil
	}

	for _, h := range hs {
		err := h(msg)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrStopHandler) {
			return err
		}
		c.logger.Error().Err(err).Int("kind", int(msg.Kind())).Msg("message handler error")
	}
	return nil
}

// dispatchRaw routes a frame the catalog rejected to the fallback
// registered for its first token, if any.
func (c *Conn) dispatchRaw(frame []byte) error {
	first, _, _ := bytes.Cut(frame, []byte{protocol.Delim})
	h, ok := c.rawHandlers[string(first)]
	if !ok {
		c.logger.Warn().Str("frame", string(frame)).Msg("unrecognized frame")
		return nil
	}

	err := h(frame)
	if err == nil || errors.Is(err, ErrStopHandler) {
		return err
	}
	c.logger.Error().Err(err).Str("token", string(first)).Msg("raw handler error")
	return nil
}

func (c *Conn) dispatchDisconnect() {
	c.mu.Lock()
	if c.disconnected {
		c.mu.Unlock()
		return
	}
	c.disconnected = true
	hs := c.handlers[protocol.KindDisconnect]
	c.mu.Unlock()

	for _, h := range hs {
		if err := h(protocol.Disconnect{}); err != nil && !errors.Is(err, ErrStopHandler) {
			c.logger.Error().Err(err).Msg("disconnect handler error")
		}
	}
}

// Send encodes and writes the given messages in order.
func (c *Conn) Send(msgs ...protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection is closed")
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	for _, m := range msgs {
		if _, err := c.conn.Write(protocol.Encode(m)); err != nil {
			return fmt.Errorf("failed to write frame: %w", err)
		}
	}
	c.lastActivity = time.Now()
	return nil
}

// SendRaw writes an already-encoded frame, appending the terminator.
func (c *Conn) SendRaw(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection is closed")
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := c.conn.Write(append(append([]byte(nil), frame...), protocol.Terminator)); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	c.lastActivity = time.Now()
	return nil
}

// Close closes the underlying connection. Safe to call more than once
// and from any goroutine; the read loop notices and exits.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Debug().Msg("connection closed")
	return c.conn.Close()
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// LastActivity returns the time of the last read or write.
func (c *Conn) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// ConnectedAt returns when the connection was accepted.
func (c *Conn) ConnectedAt() time.Time {
	return c.connectedAt
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
