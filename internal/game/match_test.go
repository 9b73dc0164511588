package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func party(id, name string, guest bool) *Client {
	return &Client{userID: id, username: name, guest: guest, joined: true}
}

func TestMatchAtMostTwoParties(t *testing.T) {
	m := newMatch(NewMatchID("a", "b"))
	require.NoError(t, m.addParty(party("a", "alice", false)))
	require.NoError(t, m.addParty(party("b", "bob", false)))
	assert.Error(t, m.addParty(party("c", "carol", false)))
}

func TestMatchBindsOpponents(t *testing.T) {
	m := newMatch(NewMatchID("a", "b"))
	pa := party("a", "alice", false)
	pb := party("b", "bob", false)

	require.NoError(t, m.addParty(pa))
	assert.Nil(t, pa.Opponent())

	require.NoError(t, m.addParty(pb))
	assert.Same(t, pb, pa.Opponent())
	assert.Same(t, pa, pb.Opponent())

	m.removeParty(pa)
	assert.Nil(t, pb.Opponent())
	assert.Nil(t, pa.Opponent())
}

func TestMatchStatsIdempotent(t *testing.T) {
	m := newMatch(NewMatchID("a", "b"))
	require.NoError(t, m.addParty(party("a", "alice", false)))
	require.NoError(t, m.addParty(party("b", "bob", false)))

	assert.True(t, m.addStats("a", Stats{OwnPieceCount: 9, CycleCounter: 10}))
	assert.False(t, m.addStats("a", Stats{OwnPieceCount: 1, CycleCounter: 99}))

	m.addStats("b", Stats{OwnPieceCount: 3, CycleCounter: 12})
	r := m.report()
	require.NotNil(t, r)
	assert.Equal(t, "a", r.WinnerID)
	assert.Equal(t, 9, r.WinnerPiecesLeft)
}

func TestMatchReportTrustsWinner(t *testing.T) {
	m := newMatch(NewMatchID("a", "b"))
	require.NoError(t, m.addParty(party("a", "alice", false)))
	require.NoError(t, m.addParty(party("b", "bob", false)))

	// The winner quit right after victory and reported the opponent
	// as zero; the loser reported both counts accurately. The winner's
	// numbers win.
	m.addStats("a", Stats{OwnPieceCount: 7, OpponentPieceCount: 0, CycleCounter: 41})
	m.addStats("b", Stats{OwnPieceCount: 2, OpponentPieceCount: 7, CycleCounter: 42})

	r := m.report()
	require.NotNil(t, r)
	assert.Equal(t, "a", r.WinnerID)
	assert.Equal(t, "b", r.LoserID)
	assert.Equal(t, 7, r.WinnerPiecesLeft)
	assert.Equal(t, 0, r.LoserPiecesLeft)
	assert.Equal(t, 42, r.MoveCounter)
	assert.True(t, r.Ranked)
	assert.False(t, r.Void)
}

func TestMatchSingleSubmissionReport(t *testing.T) {
	m := newMatch(NewMatchID("a", "b"))
	require.NoError(t, m.addParty(party("a", "alice", false)))
	require.NoError(t, m.addParty(party("b", "bob", false)))

	m.addStats("b", Stats{OwnPieceCount: 4, OpponentPieceCount: 1, CycleCounter: 30})
	r := m.report()
	require.NotNil(t, r)
	assert.Equal(t, "b", r.WinnerID)
	assert.Equal(t, "a", r.LoserID)
	assert.Equal(t, 4, r.WinnerPiecesLeft)
	assert.Equal(t, 1, r.LoserPiecesLeft)
}

func TestMatchNoReportWithoutStats(t *testing.T) {
	m := newMatch(NewMatchID("a", "b"))
	require.NoError(t, m.addParty(party("a", "alice", false)))
	assert.Nil(t, m.report())
}

func TestMatchGuestMakesUnranked(t *testing.T) {
	m := newMatch(NewMatchID("a", "b"))
	require.NoError(t, m.addParty(party("a", "alice", false)))
	require.NoError(t, m.addParty(party("b", "bob GUEST", true)))

	m.addStats("a", Stats{OwnPieceCount: 5})
	m.addStats("b", Stats{OwnPieceCount: 1})

	r := m.report()
	require.NotNil(t, r)
	assert.False(t, r.Ranked)
}

func TestMatchVoidNeedsBothVotes(t *testing.T) {
	m := newMatch(NewMatchID("a", "b"))
	pa := party("a", "alice", false)
	pb := party("b", "bob", false)
	require.NoError(t, m.addParty(pa))
	require.NoError(t, m.addParty(pb))

	pa.mu.Lock()
	pa.votedVoid = true
	pa.mu.Unlock()

	m.addStats("a", Stats{OwnPieceCount: 2})
	m.addStats("b", Stats{OwnPieceCount: 1})
	r := m.report()
	require.NotNil(t, r)
	assert.False(t, r.Void, "one vote must not void the match")

	pb.mu.Lock()
	pb.votedVoid = true
	pb.mu.Unlock()
	r = m.report()
	require.NotNil(t, r)
	assert.True(t, r.Void)
}
