// Package game implements the game service: it pairs the two clients of
// a match by their symmetric match key, relays in-game actions between
// them verbatim, and finalizes match statistics into the store.
package game

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quadrelay-project/quadrelay/internal/config"
	"github.com/quadrelay-project/quadrelay/internal/db"
	"github.com/quadrelay-project/quadrelay/internal/events"
	"github.com/quadrelay-project/quadrelay/internal/network"
	"github.com/quadrelay-project/quadrelay/internal/util"
)

// Server is the match registry. Matches are created on the first join
// and deleted when the last party leaves.
type Server struct {
	cfg    *config.Config
	store  *db.Store
	bus    *events.EventBus
	logger zerolog.Logger

	mu      sync.Mutex
	matches map[MatchID]*Match
}

// NewServer creates a game server.
func NewServer(cfg *config.Config, store *db.Store, bus *events.EventBus) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		bus:     bus,
		logger:  util.ComponentLogger("game"),
		matches: make(map[MatchID]*Match),
	}
}

// Handle serves one accepted game connection until it disconnects.
func (s *Server) Handle(ctx context.Context, conn *network.Conn) {
	newClient(ctx, conn, s)
	conn.Run(ctx)
}

// Register adds a client to its match, creating the match on first
// join. Registering both parties binds them as opponents.
func (s *Server) Register(c *Client) error {
	id := c.MatchID()

	s.mu.Lock()
	m, ok := s.matches[id]
	if !ok {
		m = newMatch(id)
		s.matches[id] = m
	}
	err := m.addParty(c)
	full := m.full()
	var players []string
	if full {
		for _, name := range m.names {
			players = append(players, name)
		}
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}

	if full {
		s.logger.Info().Str("match", id.String()).Strs("players", players).Msg("match started")
		s.emit(c.ctx, events.EventMatchStarted, events.MatchStartedPayload{
			MatchID: id.String(),
			Players: players,
		})
	}
	return nil
}

// PlayerCount approximates the population as matches times two.
func (s *Server) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches) * 2
}

// MatchCount returns the number of live matches.
func (s *Server) MatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches)
}

// SubmitStats records one party's end-of-match report. The result is
// finalized and persisted once both parties have reported, or as soon
// as one party reports into a match the opponent already left.
func (s *Server) SubmitStats(c *Client, stats Stats) {
	id := c.MatchID()

	s.mu.Lock()
	m, ok := s.matches[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if !m.addStats(c.UserID(), stats) {
		s.mu.Unlock()
		s.logger.Debug().
			Str("match", id.String()).
			Str("username", c.Username()).
			Msg("duplicate stats submission ignored")
		return
	}
	report := s.finalizeLocked(m, len(m.stats) == 2 || !m.full())
	winner, loser := reportNames(m, report)
	s.mu.Unlock()

	s.persist(c.ctx, id, report, winner, loser)
}

// Remove detaches a client from its match. A departure that leaves a
// half-reported match behind finalizes it from the single submission,
// so a unilateral quit still produces a result. Empty matches are
// deleted from the registry.
func (s *Server) Remove(c *Client) {
	id := c.MatchID()

	s.mu.Lock()
	m, ok := s.matches[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	m.removeParty(c)
	report := s.finalizeLocked(m, !m.full() && len(m.stats) >= 1)
	winner, loser := reportNames(m, report)
	if m.empty() {
		delete(s.matches, id)
	}
	s.mu.Unlock()

	s.persist(c.ctx, id, report, winner, loser)
}

func reportNames(m *Match, report *db.MatchReport) (string, string) {
	if report == nil {
		return "", ""
	}
	return m.names[report.WinnerID], m.names[report.LoserID]
}

// finalizeLocked generates the match report when the trigger condition
// holds and the match was not already reported.
func (s *Server) finalizeLocked(m *Match, trigger bool) *db.MatchReport {
	if m.reported || !trigger {
		return nil
	}
	report := m.report()
	if report != nil {
		m.reported = true
	}
	return report
}

func (s *Server) persist(ctx context.Context, id MatchID, report *db.MatchReport, winner, loser string) {
	if report == nil {
		return
	}

	if err := s.store.AddMatchReport(ctx, report); err != nil {
		s.logger.Error().Err(err).Str("match", id.String()).Msg("failed to persist match report")
	} else {
		s.logger.Info().
			Str("match", id.String()).
			Str("winner", winner).
			Str("loser", loser).
			Bool("ranked", report.Ranked).
			Bool("void", report.Void).
			Msg("match finished")
	}

	s.emit(ctx, events.EventMatchFinished, events.MatchFinishedPayload{
		Winner:      winner,
		Loser:       loser,
		WinnerScore: report.WinnerPiecesLeft,
		LoserScore:  report.LoserPiecesLeft,
		Moves:       report.MoveCounter,
		Ranked:      report.Ranked,
		Void:        report.Void,
		Started:     report.StartedAt,
		Finished:    report.FinishedAt,
	})
}

func (s *Server) emit(ctx context.Context, t events.EventType, payload interface{}) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(ctx, events.Event{Type: t, Source: "game", Payload: payload})
}
