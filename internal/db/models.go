package db

import (
	"strings"
	"time"
)

// User is one row of the users table. Password and Comment are empty
// strings when unset; guests never have a password.
type User struct {
	ID        string
	Username  string
	Password  string
	Comment   string
	CreatedAt time.Time
}

// IsGuest reports whether this account is a guest account. Guests are
// created without a password when a " GUEST" login arrives.
func (u *User) IsGuest() bool {
	return strings.HasSuffix(u.Username, " GUEST") && u.Password == ""
}

// MatchReport is one finished match as persisted in the matches table.
type MatchReport struct {
	ID               string
	WinnerID         string
	LoserID          string
	WinnerPiecesLeft int
	LoserPiecesLeft  int
	MoveCounter      int
	GridSize         string
	SquadronSize     string
	StartedAt        time.Time
	FinishedAt       time.Time
	Ranked           bool
	Void             bool
}

// MatchSummary is a finished match joined with the player usernames,
// as shown in the recent-battles list.
type MatchSummary struct {
	Winner      string
	Loser       string
	WinnerScore int
	LoserScore  int
	Started     time.Time
	Finished    time.Time
	Moves       int
}

// RankingRow is one leaderboard entry for a month.
type RankingRow struct {
	UserID   string
	Username string
	Wins     int
	Games    int
}

// Rating is one row of the ratings table: the materialized monthly
// aggregate kept in step with match inserts.
type Rating struct {
	UserID  string
	Year    int
	Month   int
	Wins    int
	Games   int
	Version int
}
