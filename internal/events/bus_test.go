package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmitSyncDeliversToSubscribers(t *testing.T) {
	bus := NewEventBus()
	var got []Event

	bus.Subscribe(EventLobbyJoined, "test", func(ctx context.Context, e Event) error {
		got = append(got, e)
		return nil
	})

	err := bus.EmitSync(context.Background(), Event{
		Type:    EventLobbyJoined,
		Source:  "lobby",
		Payload: LobbyJoinedPayload{Username: "john", Slot: 0},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, EventLobbyJoined, got[0].Type)
	require.Equal(t, "john", got[0].Payload.(LobbyJoinedPayload).Username)
}

func TestUnsubscribeRemovesHandler(t *testing.T) {
	bus := NewEventBus()
	bus.Subscribe(EventMatchFinished, "a", func(ctx context.Context, e Event) error { return nil })
	bus.Subscribe(EventMatchFinished, "b", func(ctx context.Context, e Event) error { return nil })
	require.Equal(t, 2, bus.HandlerCount(EventMatchFinished))

	bus.Unsubscribe(EventMatchFinished, "a")
	require.Equal(t, 1, bus.HandlerCount(EventMatchFinished))
}

func TestEmitAfterStopIsNoop(t *testing.T) {
	bus := NewEventBus()
	called := false
	bus.Subscribe(EventShutdown, "test", func(ctx context.Context, e Event) error {
		called = true
		return nil
	})

	bus.Stop()
	bus.Emit(context.Background(), Event{Type: EventShutdown})
	require.False(t, called)
}
