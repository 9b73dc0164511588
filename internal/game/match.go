package game

import (
	"fmt"
	"time"

	"github.com/quadrelay-project/quadrelay/internal/db"
)

// MatchID identifies a match by its two players. The key is symmetric:
// the order of the identities does not matter.
type MatchID struct {
	a, b string
}

// NewMatchID builds the canonical key for a pair of identities.
func NewMatchID(x, y string) MatchID {
	if x > y {
		x, y = y, x
	}
	return MatchID{a: x, b: y}
}

func (id MatchID) String() string {
	return id.a + "|" + id.b
}

// Stats is one party's end-of-match report.
type Stats struct {
	OwnPieceCount      int
	OpponentPieceCount int
	CycleCounter       int
	GridSize           string
	SquadronSize       string
}

// Match tracks one live game: up to two connected parties, their stats
// submissions and void votes. All methods are called with the game
// server's lock held.
type Match struct {
	ID        MatchID
	StartedAt time.Time

	// ranked until a guest joins
	ranked bool

	parties   []*Client
	names     map[string]string
	userIDs   map[string]bool
	stats     map[string]Stats
	votedVoid map[string]bool
	reported  bool
}

func newMatch(id MatchID) *Match {
	return &Match{
		ID:        id,
		StartedAt: time.Now(),
		ranked:    true,
		names:     make(map[string]string),
		userIDs:   make(map[string]bool),
		stats:     make(map[string]Stats),
		votedVoid: make(map[string]bool),
	}
}

func (m *Match) empty() bool { return len(m.parties) == 0 }
func (m *Match) full() bool  { return len(m.parties) == 2 }

// addParty joins a client to the match. The third and later parties are
// rejected. When the second party arrives both clients are bound to
// each other as opponents.
func (m *Match) addParty(c *Client) error {
	if m.full() {
		return fmt.Errorf("match %s already has two parties", m.ID)
	}
	m.parties = append(m.parties, c)
	m.userIDs[c.UserID()] = true
	m.names[c.UserID()] = c.Username()

	if c.Guest() {
		m.ranked = false
	}

	if m.full() {
		m.parties[0].bindOpponent(m.parties[1])
		m.parties[1].bindOpponent(m.parties[0])
	}
	return nil
}

// removeParty detaches a client, recording its void vote and unbinding
// the remaining opponent.
func (m *Match) removeParty(c *Client) {
	for i, p := range m.parties {
		if p != c {
			continue
		}
		if c.VotedVoid() {
			m.votedVoid[c.UserID()] = true
		}
		m.parties = append(m.parties[:i], m.parties[i+1:]...)
		for _, rest := range m.parties {
			rest.bindOpponent(nil)
		}
		c.bindOpponent(nil)
		return
	}
}

// addStats records one party's submission. A repeated submission for
// the same identity is rejected.
func (m *Match) addStats(userID string, stats Stats) bool {
	if _, dup := m.stats[userID]; dup {
		return false
	}
	m.stats[userID] = stats
	return true
}

func (m *Match) isVoid() bool {
	for _, p := range m.parties {
		if p.VotedVoid() {
			m.votedVoid[p.UserID()] = true
		}
	}
	return len(m.votedVoid) == 2
}

// report finalizes the match into a persistable record, or nil when no
// meaningful result can be produced. The party reporting the higher
// own-piece count is the winner, and the winner's view of the
// opponent's remaining pieces becomes the loser's score. A winner who
// quits right after victory may report the opponent as zero; the loser
// reports both counts accurately, so the winner's numbers are the ones
// trusted.
func (m *Match) report() *db.MatchReport {
	if len(m.stats) == 0 {
		return nil
	}

	var winnerID, loserID string
	var winnerStats, loserStats Stats
	var haveLoserStats bool

	if len(m.stats) == 1 {
		for id, s := range m.stats {
			winnerID, winnerStats = id, s
		}
		for id := range m.userIDs {
			if id != winnerID {
				loserID = id
			}
		}
		if loserID == "" {
			// The opponent never joined; nothing to report.
			return nil
		}
	} else {
		ids := make([]string, 0, 2)
		for id := range m.stats {
			ids = append(ids, id)
		}
		s0, s1 := m.stats[ids[0]], m.stats[ids[1]]
		if s0.OwnPieceCount > s1.OwnPieceCount {
			winnerID, winnerStats, loserID, loserStats = ids[0], s0, ids[1], s1
		} else {
			winnerID, winnerStats, loserID, loserStats = ids[1], s1, ids[0], s0
		}
		haveLoserStats = true
	}

	moves := winnerStats.CycleCounter
	if haveLoserStats && loserStats.CycleCounter > moves {
		moves = loserStats.CycleCounter
	}

	return &db.MatchReport{
		WinnerID:         winnerID,
		LoserID:          loserID,
		WinnerPiecesLeft: winnerStats.OwnPieceCount,
		LoserPiecesLeft:  winnerStats.OpponentPieceCount,
		MoveCounter:      moves,
		GridSize:         winnerStats.GridSize,
		SquadronSize:     winnerStats.SquadronSize,
		StartedAt:        m.StartedAt,
		FinishedAt:       time.Now(),
		Ranked:           m.ranked,
		Void:             m.isVoid(),
	}
}
