// Package events implements the publish-subscribe backbone connecting the
// lobby and game services to the notification and telemetry sinks.
package events

import "time"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Lobby events
	EventLobbyJoined EventType = "lobby_joined"
	EventLobbyLeft   EventType = "lobby_left"
	EventLobbyChat   EventType = "lobby_chat"
	EventCommentSet  EventType = "comment_set"
	EventChallenge   EventType = "challenge_issued"

	// Game events
	EventMatchStarted  EventType = "match_started"
	EventMatchFinished EventType = "match_finished"

	// System events
	EventServerStatus  EventType = "server_status"
	EventConfigChanged EventType = "config_changed"
	EventShutdown      EventType = "shutdown"
)

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// LobbyJoinedPayload is emitted when a player takes a lobby slot.
type LobbyJoinedPayload struct {
	Username    string
	Slot        int
	Guest       bool
	PlayerCount int
}

// LobbyLeftPayload is emitted when a player leaves or is evicted.
type LobbyLeftPayload struct {
	Username    string
	Slot        int
	PlayerCount int
}

// LobbyChatPayload carries one lobby chat line.
type LobbyChatPayload struct {
	Username string
	Slot     int
	Text     string
}

// CommentSetPayload is emitted when a player updates their status line.
type CommentSetPayload struct {
	Username string
	Slot     int
	Comment  string
}

// ChallengePayload is emitted when one lobby player challenges another.
type ChallengePayload struct {
	Challenger string
	Challenged string
}

// MatchStartedPayload is emitted once both parties of a match are
// connected to the game port.
type MatchStartedPayload struct {
	MatchID string
	Players []string
}

// MatchFinishedPayload carries the final report of a match.
type MatchFinishedPayload struct {
	Winner      string
	Loser       string
	WinnerScore int
	LoserScore  int
	Moves       int
	Ranked      bool
	Void        bool
	Started     time.Time
	Finished    time.Time
}

// ServerStatusPayload is a periodic population snapshot.
type ServerStatusPayload struct {
	LobbyPlayers int
	GamePlayers  int
	Matches      int
}

// ConfigChangedPayload is emitted when configuration changes at runtime.
type ConfigChangedPayload struct {
	Section string
	Key     string
	Value   interface{}
}
