package network

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"
)

// ConnHandler takes ownership of an accepted connection. It is invoked
// on a fresh goroutine and must run the connection's read loop.
type ConnHandler func(ctx context.Context, conn *Conn)

// Listener accepts client TCP connections on one port and hands each
// one to its handler. The lobby and game services each run one.
type Listener struct {
	name     string
	addr     string
	handle   ConnHandler
	listener net.Listener
}

// NewListener creates a listener for the given bind address.
func NewListener(name, addr string, handle ConnHandler) *Listener {
	return &Listener{
		name:   name,
		addr:   addr,
		handle: handle,
	}
}

// Start binds the port and accepts connections until the context is
// cancelled. Each accepted connection gets its own goroutine.
func (l *Listener) Start(ctx context.Context) error {
	// SO_REUSEADDR allows immediate rebinding after a restart while
	// old client sockets linger in TIME_WAIT.
	lc := ReuseAddrListenConfig()
	var err error
	l.listener, err = lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to start %s listener on %s: %w", l.name, l.addr, err)
	}

	log.Info().Str("listener", l.name).Str("addr", l.addr).Msg("listener started")

	go func() {
		<-ctx.Done()
		l.listener.Close()
	}()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				log.Info().Str("listener", l.name).Msg("listener stopping")
				return nil
			default:
				log.Error().Err(err).Str("listener", l.name).Msg("failed to accept connection")
				continue
			}
		}

		log.Debug().
			Str("listener", l.name).
			Str("remote", conn.RemoteAddr().String()).
			Msg("new client connection")

		go l.handle(ctx, NewConn(conn))
	}
}

// Stop closes the listening socket.
func (l *Listener) Stop() error {
	if l.listener != nil {
		return l.listener.Close()
	}
	return nil
}
