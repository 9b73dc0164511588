package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash := HashPassword([]byte("secret"))
	require.Len(t, hash, saltHexLen+2*hashKeyLen)
	assert.True(t, VerifyPassword([]byte("secret"), hash))
	assert.False(t, VerifyPassword([]byte("wrong"), hash))
	assert.False(t, VerifyPassword(nil, hash))
	assert.False(t, VerifyPassword([]byte("secret"), ""))

	// A fresh salt every time.
	assert.NotEqual(t, hash, HashPassword([]byte("secret")))
}

func TestAuthenticateMemberAutoRegister(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	u, err := store.AuthenticateMember(ctx, "john", []byte("hunter2"), true)
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	assert.False(t, u.IsGuest())

	// Same credentials authenticate against the stored hash.
	again, err := store.AuthenticateMember(ctx, "john", []byte("hunter2"), true)
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)

	_, err = store.AuthenticateMember(ctx, "john", []byte("wrong"), true)
	require.ErrorIs(t, err, ErrAuthFailed)

	_, err = store.AuthenticateMember(ctx, "nobody", []byte("x"), false)
	require.ErrorIs(t, err, ErrAuthFailed)
}

func TestAuthenticateGuestCreatesOnce(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	u, err := store.AuthenticateGuest(ctx, "john GUEST")
	require.NoError(t, err)
	assert.True(t, u.IsGuest())

	again, err := store.AuthenticateGuest(ctx, "john GUEST")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
}

func TestIsGuestRequiresSuffix(t *testing.T) {
	assert.True(t, (&User{Username: "john GUEST"}).IsGuest())

	// A password makes it a member even with the guest suffix.
	assert.False(t, (&User{Username: "john GUEST", Password: "hash"}).IsGuest())

	// GUEST embedded anywhere else in the name is just a name.
	assert.False(t, (&User{Username: "GUESTBOOK"}).IsGuest())
	assert.False(t, (&User{Username: "the GUEST house"}).IsGuest())
	assert.False(t, (&User{Username: "john"}).IsGuest())
}

func TestCommentPersists(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	u, err := store.CreateMember(ctx, "john", []byte("pw"))
	require.NoError(t, err)

	comment, err := store.Comment(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "", comment)

	require.NoError(t, store.SetComment(ctx, u.ID, "back in 5"))
	comment, err = store.Comment(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "back in 5", comment)
}

func TestChangePassword(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	u, err := store.CreateMember(ctx, "john", []byte("old"))
	require.NoError(t, err)
	require.NoError(t, store.ChangePassword(ctx, u.ID, []byte("new")))

	_, err = store.AuthenticateMember(ctx, "john", []byte("old"), false)
	require.ErrorIs(t, err, ErrAuthFailed)
	_, err = store.AuthenticateMember(ctx, "john", []byte("new"), false)
	require.NoError(t, err)
}

func addMatch(t *testing.T, store *Store, winner, loser *User, finished time.Time, ranked, void bool) {
	t.Helper()
	err := store.AddMatchReport(context.Background(), &MatchReport{
		WinnerID:         winner.ID,
		LoserID:          loser.ID,
		WinnerPiecesLeft: 7,
		LoserPiecesLeft:  2,
		MoveCounter:      20,
		GridSize:         "medium",
		SquadronSize:     "medium",
		StartedAt:        finished.Add(-10 * time.Minute),
		FinishedAt:       finished,
		Ranked:           ranked,
		Void:             void,
	})
	require.NoError(t, err)
}

func TestRecentMatchesExcludeVoid(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a, err := store.CreateMember(ctx, "alice", []byte("pw"))
	require.NoError(t, err)
	b, err := store.CreateMember(ctx, "bob", []byte("pw"))
	require.NoError(t, err)

	base := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	addMatch(t, store, a, b, base, true, false)
	addMatch(t, store, b, a, base.Add(time.Hour), true, false)
	addMatch(t, store, a, b, base.Add(2*time.Hour), true, true) // void

	matches, err := store.RecentMatches(ctx, 15)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	// Newest first.
	assert.Equal(t, "bob", matches[0].Winner)
	assert.Equal(t, "alice", matches[1].Winner)
	assert.Equal(t, 7, matches[0].WinnerScore)
	assert.Equal(t, 2, matches[0].LoserScore)
}

func TestRankingOrderedByWinRatio(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	users := make([]*User, 4)
	for i, name := range []string{"user_0", "user_1", "user_2", "user_3"} {
		u, err := store.CreateMember(ctx, name, []byte("pw"))
		require.NoError(t, err)
		users[i] = u
	}

	month := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		addMatch(t, store, users[0], users[2], month.Add(time.Duration(i)*time.Hour), true, false)
	}
	for i := 0; i < 5; i++ {
		addMatch(t, store, users[1], users[2], month.Add(time.Duration(i)*time.Hour), true, false)
	}
	for i := 0; i < 10; i++ {
		addMatch(t, store, users[2], users[3], month.Add(time.Duration(i)*time.Hour), true, false)
	}
	// Different month, must not count.
	addMatch(t, store, users[3], users[2], month.AddDate(0, 1, 1), true, false)
	// Unranked and void, must not count with default flags.
	addMatch(t, store, users[3], users[2], month, false, false)
	addMatch(t, store, users[3], users[2], month, true, true)

	ranking, err := store.Ranking(ctx, 2020, 1, true, false)
	require.NoError(t, err)
	require.Len(t, ranking, 4)

	// Perfect ratios first (more wins breaking the tie), then partial.
	assert.Equal(t, "user_0", ranking[0].Username)
	assert.Equal(t, 7, ranking[0].Wins)
	assert.Equal(t, 7, ranking[0].Games)
	assert.Equal(t, "user_1", ranking[1].Username)
	assert.Equal(t, 5, ranking[1].Wins)
	assert.Equal(t, "user_2", ranking[2].Username)
	assert.Equal(t, 10, ranking[2].Wins)
	assert.Equal(t, 22, ranking[2].Games)
	assert.Equal(t, "user_3", ranking[3].Username)
	assert.Equal(t, 0, ranking[3].Wins)
	assert.Equal(t, 10, ranking[3].Games)
}

func TestRatingsAggregates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a, err := store.CreateMember(ctx, "alice", []byte("pw"))
	require.NoError(t, err)
	b, err := store.CreateMember(ctx, "bob", []byte("pw"))
	require.NoError(t, err)

	finished := time.Date(2020, 3, 10, 18, 0, 0, 0, time.UTC)
	addMatch(t, store, a, b, finished, true, false)
	addMatch(t, store, a, b, finished.Add(time.Hour), true, false)
	addMatch(t, store, b, a, finished.Add(2*time.Hour), true, false)
	// Void matches leave the aggregates alone.
	addMatch(t, store, b, a, finished.Add(3*time.Hour), true, true)

	ratings, err := store.MonthlyRatings(ctx, 2020, 3)
	require.NoError(t, err)
	require.Len(t, ratings, 2)

	assert.Equal(t, a.ID, ratings[0].UserID)
	assert.Equal(t, 2, ratings[0].Wins)
	assert.Equal(t, 3, ratings[0].Games)
	assert.Equal(t, 3, ratings[0].Version)
	assert.Equal(t, b.ID, ratings[1].UserID)
	assert.Equal(t, 1, ratings[1].Wins)
	assert.Equal(t, 3, ratings[1].Games)
}

func TestReopenKeepsSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.sqlite3")

	store, err := Open(path)
	require.NoError(t, err)
	u, err := store.CreateMember(context.Background(), "john", []byte("pw"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	again, err := store.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "john", again.Username)
}
