package network

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quadrelay-project/quadrelay/internal/protocol"
)

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for channel")
	}
}

func TestConnReassemblesFragmentedFrames(t *testing.T) {
	client, server := net.Pipe()
	conn := NewConn(server)

	var mu sync.Mutex
	var texts []string
	conn.On(protocol.KindGameChat, func(m protocol.Message) error {
		mu.Lock()
		defer mu.Unlock()
		texts = append(texts, m.(protocol.GameChat).Text)
		return nil
	})
	disconnected := make(chan struct{})
	conn.On(protocol.KindDisconnect, func(m protocol.Message) error {
		close(disconnected)
		return nil
	})

	go conn.Run(context.Background())

	// One frame split across writes, two frames coalesced in one write.
	client.Write([]byte("<S>~<CH"))
	client.Write([]byte("AT>~one\x00<S>~<CHAT>~two\x00<S>~<CHA"))
	client.Write([]byte("T>~three\x00"))
	client.Close()

	// The Disconnect handler closing the channel twice would panic, so
	// this also verifies the synthetic message fires exactly once.
	waitClosed(t, disconnected)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"one", "two", "three"}, texts)
}

func TestConnSkipsUnrecognizedFrames(t *testing.T) {
	client, server := net.Pipe()
	conn := NewConn(server)

	got := make(chan string, 1)
	conn.On(protocol.KindGameChat, func(m protocol.Message) error {
		got <- m.(protocol.GameChat).Text
		return nil
	})

	go conn.Run(context.Background())
	defer client.Close()

	client.Write([]byte("total garbage\x00<S>~<CHAT>~still here\x00"))

	select {
	case text := <-got:
		require.Equal(t, "still here", text)
	case <-time.After(5 * time.Second):
		t.Fatal("chat message never dispatched")
	}
}

func TestConnHandlersRunInRegistrationOrder(t *testing.T) {
	client, server := net.Pipe()
	conn := NewConn(server)

	var mu sync.Mutex
	var calls []string
	done := make(chan struct{})
	conn.On(protocol.KindGameChat, func(m protocol.Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, "first")
		return nil
	})
	conn.On(protocol.KindGameChat, func(m protocol.Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, "second")
		close(done)
		return nil
	})

	go conn.Run(context.Background())
	defer client.Close()

	client.Write([]byte("<S>~<CHAT>~hello\x00"))
	waitClosed(t, done)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, calls)
}

func TestConnRawFallbackByFirstToken(t *testing.T) {
	client, server := net.Pipe()
	conn := NewConn(server)

	frames := make(chan string, 2)
	conn.On(protocol.KindGameChat, func(m protocol.Message) error {
		frames <- "decoded:" + m.(protocol.GameChat).Text
		return nil
	})
	conn.OnRaw("<S>", func(frame []byte) error {
		frames <- string(frame)
		return nil
	})

	go conn.Run(context.Background())
	defer client.Close()

	recv := func() string {
		select {
		case f := <-frames:
			return f
		case <-time.After(5 * time.Second):
			t.Fatal("frame never dispatched")
			return ""
		}
	}

	// A frame the catalog accepts goes to its typed handler; one it
	// rejects falls back to the handler for its first token.
	client.Write([]byte("<S>~<CHAT>~hi\x00<S>~<USE_POWER>~FROSTBITE~9\x00"))
	require.Equal(t, "decoded:hi", recv())
	require.Equal(t, "<S>~<USE_POWER>~FROSTBITE~9", recv())
}

func TestConnStopHandlerClosesConnection(t *testing.T) {
	client, server := net.Pipe()
	conn := NewConn(server)

	conn.On(protocol.KindServerAlive, func(m protocol.Message) error {
		if err := conn.Send(protocol.ServerAliveOK{}); err != nil {
			return err
		}
		return ErrStopHandler
	})

	go conn.Run(context.Background())

	client.Write([]byte("<SERVER>~<ALIVE?>\x00"))

	buf := make([]byte, 64)
	n, err := client.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte("<S>~<SERVER>~<ALIVE>\x00"), buf[:n])

	_, err = client.Read(buf)
	require.ErrorIs(t, err, io.EOF)
	require.True(t, conn.IsClosed())
}

func TestConnContextCancelStopsLoop(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	conn := NewConn(server)

	disconnected := make(chan struct{})
	conn.On(protocol.KindDisconnect, func(m protocol.Message) error {
		close(disconnected)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go conn.Run(ctx)

	cancel()
	waitClosed(t, disconnected)
	require.True(t, conn.IsClosed())
}

func TestConnSendAfterCloseFails(t *testing.T) {
	_, server := net.Pipe()
	conn := NewConn(server)
	conn.Close()
	require.Error(t, conn.Send(protocol.ServerAliveOK{}))
}
