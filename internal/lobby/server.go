// Package lobby implements the lobby service: a fixed 13-slot roster of
// connected players with chat, status lines and the challenge handshake
// that pairs two players for a game.
package lobby

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quadrelay-project/quadrelay/internal/config"
	"github.com/quadrelay-project/quadrelay/internal/db"
	"github.com/quadrelay-project/quadrelay/internal/events"
	"github.com/quadrelay-project/quadrelay/internal/network"
	"github.com/quadrelay-project/quadrelay/internal/protocol"
	"github.com/quadrelay-project/quadrelay/internal/util"
)

// departure remembers who last left the lobby, for the last-logged query.
type departure struct {
	username string
	joinedAt time.Time
}

// Server owns the lobby roster. The roster has exactly
// protocol.LobbySlots positions; when all are taken the longest-resident
// client is evicted to make room.
type Server struct {
	cfg    *config.Config
	store  *db.Store
	bus    *events.EventBus
	logger zerolog.Logger

	mu         sync.Mutex
	clients    [protocol.LobbySlots]*Client
	lastLogged *departure
}

// NewServer creates a lobby server.
func NewServer(cfg *config.Config, store *db.Store, bus *events.EventBus) *Server {
	return &Server{
		cfg:    cfg,
		store:  store,
		bus:    bus,
		logger: util.ComponentLogger("lobby"),
	}
}

// Handle serves one accepted lobby connection until it disconnects.
// It is used as the listener's connection callback.
func (s *Server) Handle(ctx context.Context, conn *network.Conn) {
	newClient(ctx, conn, s)
	conn.Run(ctx)
}

// AddClient places a client in the lowest free slot, evicting the
// longest-resident client when the lobby is full. The updated roster is
// broadcast to every other occupied slot. The duplicate check happens
// under the same lock as the slot assignment, so two racing joins with
// the same username cannot both take a slot; the second one gets false.
func (s *Server) AddClient(c *Client) (int, bool) {
	username := c.Player().Username

	s.mu.Lock()
	for _, other := range s.clients {
		if other != nil && other.Player().Username == username {
			s.mu.Unlock()
			return -1, false
		}
	}

	idx := -1
	for i := range s.clients {
		if s.clients[i] == nil {
			idx = i
			break
		}
	}

	var evicted *Client
	if idx < 0 {
		idx = 0
		for i := range s.clients {
			if s.clients[i].conn.ConnectedAt().Before(s.clients[idx].conn.ConnectedAt()) {
				idx = i
			}
		}
		evicted = s.clients[idx]
		p := evicted.Player()
		s.lastLogged = &departure{username: p.Username, joinedAt: p.JoinedAt}
		s.clients[idx] = nil
	}

	s.clients[idx] = c
	c.setIdx(idx)
	state := s.stateLocked()
	recipients := s.occupiedLocked(idx)
	s.mu.Unlock()

	if evicted != nil {
		s.logger.Info().
			Str("username", evicted.Player().Username).
			Int("slot", idx).
			Msg("lobby full, evicting longest resident")
		evicted.conn.Close()
	}

	for _, r := range recipients {
		r.conn.Send(state)
	}
	return idx, true
}

// RemoveClient releases the client's slot if it still holds one. It is
// safe to call for clients that were already evicted; the slot is only
// cleared when it is still occupied by this exact client.
func (s *Server) RemoveClient(c *Client) bool {
	p := c.Player()
	if p.Idx < 0 {
		return false
	}

	s.mu.Lock()
	if s.clients[p.Idx] != c {
		s.mu.Unlock()
		return false
	}
	s.lastLogged = &departure{username: p.Username, joinedAt: p.JoinedAt}
	s.clients[p.Idx] = nil
	state := s.stateLocked()
	recipients := s.occupiedLocked(p.Idx)
	s.mu.Unlock()

	c.conn.Close()
	for _, r := range recipients {
		r.conn.Send(state)
	}
	return true
}

// UsernameExists reports whether a username currently occupies a slot.
func (s *Server) UsernameExists(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if c != nil && c.Player().Username == username {
			return true
		}
	}
	return false
}

// PlayerCount returns the number of occupied slots.
func (s *Server) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.clients {
		if c != nil {
			n++
		}
	}
	return n
}

// Players returns a snapshot of the roster, one entry per slot, nil for
// free slots.
func (s *Server) Players() []*protocol.PlayerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playersLocked()
}

func (s *Server) playersLocked() []*protocol.PlayerInfo {
	out := make([]*protocol.PlayerInfo, protocol.LobbySlots)
	for i, c := range s.clients {
		if c == nil {
			continue
		}
		p := c.Player()
		out[i] = &protocol.PlayerInfo{
			Username: p.Username,
			Comment:  p.Comment,
		}
	}
	return out
}

// State returns the roster snapshot in wire form.
func (s *Server) State() protocol.LobbyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Server) stateLocked() protocol.LobbyState {
	return protocol.NewLobbyState(s.playersLocked())
}

// LastLogged describes the player who most recently left the lobby.
func (s *Server) LastLogged() protocol.LastLogged {
	s.mu.Lock()
	defer s.mu.Unlock()
	motd := s.cfg.GetLobby().MOTD
	if s.lastLogged != nil {
		return protocol.NewLastLogged(s.lastLogged.username, s.lastLogged.joinedAt, motd)
	}
	return protocol.NewLastLogged("<>", time.Now(), motd)
}

// Challenge forwards a challenge prompt to the challenged slot, but only
// when both slots are occupied.
func (s *Server) Challenge(challengerIdx, challengedIdx int) {
	challenged := s.pair(challengerIdx, challengedIdx)
	if challenged == nil {
		return
	}
	challenged.conn.Send(protocol.Challenge{
		ChallengedIdx: challengedIdx,
		ChallengerIdx: challengerIdx,
	})
}

// ChallengeAuth forwards the authentication continuation of a challenge
// to the challenged slot.
func (s *Server) ChallengeAuth(challengerIdx, challengedIdx int, auth string) {
	challenged := s.pair(challengerIdx, challengedIdx)
	if challenged == nil {
		return
	}
	challenged.conn.Send(protocol.ChallengeAuth{
		ChallengedIdx: challengedIdx,
		ChallengerIdx: challengerIdx,
		Auth:          auth,
	})
}

// pair returns the challenged client when both indices are valid slots
// that are currently occupied.
func (s *Server) pair(challengerIdx, challengedIdx int) *Client {
	if challengerIdx < 0 || challengerIdx >= protocol.LobbySlots ||
		challengedIdx < 0 || challengedIdx >= protocol.LobbySlots {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[challengerIdx] == nil {
		return nil
	}
	return s.clients[challengedIdx]
}

// Broadcast sends a message to every occupied slot.
func (s *Server) Broadcast(msg protocol.Message) {
	s.mu.Lock()
	recipients := s.occupiedLocked(-1)
	s.mu.Unlock()

	for _, r := range recipients {
		r.conn.Send(msg)
	}
}

// ClientName returns the username occupying a slot, or empty.
func (s *Server) ClientName(idx int) string {
	if idx < 0 || idx >= protocol.LobbySlots {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[idx] == nil {
		return ""
	}
	return s.clients[idx].Player().Username
}

func (s *Server) occupiedLocked(excludedIdx int) []*Client {
	out := make([]*Client, 0, protocol.LobbySlots)
	for i, c := range s.clients {
		if c == nil || i == excludedIdx {
			continue
		}
		out = append(out, c)
	}
	return out
}
