// Package db implements the SQLite persistence layer: user accounts,
// finished matches, monthly leaderboards and schema migrations.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// ErrAuthFailed is returned when credentials do not match a stored account.
var ErrAuthFailed = errors.New("authentication failed")

// ErrConflict is returned when a compare-and-swap rating update loses
// against a concurrent writer. Callers retry a bounded number of times.
var ErrConflict = errors.New("concurrent rating update")

// ratingRetries bounds the retry loop around rating updates.
const ratingRetries = 3

// Store wraps a SQLite database with thread-safe access.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens or creates the database at the given path and brings the
// schema up to date.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	// SQLite does not support concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Warn().Err(err).Msg("failed to enable WAL mode")
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		log.Warn().Err(err).Msg("failed to enable foreign keys")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := setupMetadata(db); err != nil {
		return nil, fmt.Errorf("failed to set up metadata table: %w", err)
	}
	if err := executeMigrations(db); err != nil {
		return nil, err
	}

	log.Info().Str("path", dbPath).Msg("database opened")

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetUser returns the user with the given id, or nil when absent.
func (s *Store) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		"select id, username, coalesce(password, ''), coalesce(comment, ''), coalesce(created_at, 0)"+
			" from users where id = ?", userID))
}

// GetUserByUsername returns the user with the given username, or nil
// when absent.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		"select id, username, coalesce(password, ''), coalesce(comment, ''), coalesce(created_at, 0)"+
			" from users where username = ?", username))
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var u User
	var createdAt int64
	err := row.Scan(&u.ID, &u.Username, &u.Password, &u.Comment, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.CreatedAt = time.Unix(createdAt, 0)
	return &u, nil
}

// CreateMember registers a new member account with a hashed password.
func (s *Store) CreateMember(ctx context.Context, username string, password []byte) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &User{
		ID:        uuid.NewString(),
		Username:  username,
		Password:  HashPassword(password),
		CreatedAt: time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		"insert into users (id, username, password, created_at) values (?, ?, ?, ?)",
		u.ID, u.Username, u.Password, u.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create member %s: %w", username, err)
	}
	return u, nil
}

// CreateGuest registers a passwordless guest account.
func (s *Store) CreateGuest(ctx context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &User{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		"insert into users (id, username, created_at) values (?, ?, ?)",
		u.ID, u.Username, u.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create guest %s: %w", username, err)
	}
	return u, nil
}

// AuthenticateMember verifies a member login. Unknown usernames are
// auto-registered when autoRegister is set; bad credentials return
// ErrAuthFailed.
func (s *Store) AuthenticateMember(ctx context.Context, username string, password []byte, autoRegister bool) (*User, error) {
	u, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		if !autoRegister {
			return nil, ErrAuthFailed
		}
		log.Info().Str("username", username).Msg("auto registering member")
		return s.CreateMember(ctx, username, password)
	}
	if !VerifyPassword(password, u.Password) {
		return nil, ErrAuthFailed
	}
	return u, nil
}

// AuthenticateGuest resolves a guest login, creating the account on
// first use.
func (s *Store) AuthenticateGuest(ctx context.Context, username string) (*User, error) {
	u, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}
	return s.CreateGuest(ctx, username)
}

// ChangePassword replaces a member's stored password hash.
func (s *Store) ChangePassword(ctx context.Context, userID string, newPassword []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"update users set password = ? where id = ?", HashPassword(newPassword), userID)
	if err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}
	return nil
}

// Comment returns the persisted lobby status line for a user.
func (s *Store) Comment(ctx context.Context, userID string) (string, error) {
	var comment string
	err := s.db.QueryRowContext(ctx,
		"select coalesce(comment, '') from users where id = ?", userID).Scan(&comment)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read comment: %w", err)
	}
	return comment, nil
}

// SetComment persists a user's lobby status line.
func (s *Store) SetComment(ctx context.Context, userID, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"update users set comment = ? where id = ?", comment, userID)
	if err != nil {
		return fmt.Errorf("failed to set comment: %w", err)
	}
	return nil
}

// AddMatchReport persists a finished match and folds it into the
// monthly rating aggregates of both players. The rating update is a
// compare-and-swap; the whole transaction is retried on conflict.
func (s *Store) AddMatchReport(ctx context.Context, report *MatchReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}

	var err error
	for attempt := 0; attempt < ratingRetries; attempt++ {
		err = s.addMatchReportOnce(ctx, report)
		if !errors.Is(err, ErrConflict) {
			return err
		}
		log.Warn().Int("attempt", attempt+1).Msg("rating update conflict, retrying")
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	return err
}

func (s *Store) addMatchReportOnce(ctx context.Context, report *MatchReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`insert or replace into matches (
		  id, winner_id, loser_id, winner_pieces_left, loser_pieces_left,
		  move_counter, grid_size, squadron_size, started_at, finished_at,
		  is_ranked, is_void
		) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.WinnerID, report.LoserID,
		report.WinnerPiecesLeft, report.LoserPiecesLeft, report.MoveCounter,
		report.GridSize, report.SquadronSize,
		report.StartedAt.Unix(), report.FinishedAt.Unix(),
		report.Ranked, report.Void)
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}

	// Void and unranked matches are stored but do not move the boards.
	if report.Ranked && !report.Void {
		year, month := report.FinishedAt.Year(), int(report.FinishedAt.Month())
		if err := updateRating(ctx, tx, report.WinnerID, year, month, true); err != nil {
			return err
		}
		if err := updateRating(ctx, tx, report.LoserID, year, month, false); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func updateRating(ctx context.Context, tx *sql.Tx, userID string, year, month int, won bool) error {
	var wins, games, version int
	err := tx.QueryRowContext(ctx,
		"select wins, games, version from ratings where user_id = ? and year = ? and month = ?",
		userID, year, month).Scan(&wins, &games, &version)
	if err == sql.ErrNoRows {
		w := 0
		if won {
			w = 1
		}
		_, err = tx.ExecContext(ctx,
			"insert into ratings (user_id, year, month, wins, games, version) values (?, ?, ?, ?, 1, 1)",
			userID, year, month, w)
		if err != nil {
			return fmt.Errorf("failed to insert rating: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read rating: %w", err)
	}

	if won {
		wins++
	}
	res, err := tx.ExecContext(ctx,
		"update ratings set wins = ?, games = ?, version = ? where user_id = ? and year = ? and month = ? and version = ?",
		wins, games+1, version+1, userID, year, month, version)
	if err != nil {
		return fmt.Errorf("failed to update rating: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// RecentMatches returns the latest finished matches, newest first,
// excluding void ones.
func (s *Store) RecentMatches(ctx context.Context, limit int) ([]MatchSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`select u1.username, u2.username,
		  m.winner_pieces_left, m.loser_pieces_left,
		  m.started_at, m.finished_at, m.move_counter
		 from matches m
		 left join users u1 on m.winner_id = u1.id
		 left join users u2 on m.loser_id = u2.id
		 where m.is_void = 0
		 order by m.finished_at desc
		 limit ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent matches: %w", err)
	}
	defer rows.Close()

	var out []MatchSummary
	for rows.Next() {
		var m MatchSummary
		var started, finished int64
		if err := rows.Scan(&m.Winner, &m.Loser, &m.WinnerScore, &m.LoserScore, &started, &finished, &m.Moves); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		m.Started = time.Unix(started, 0)
		m.Finished = time.Unix(finished, 0)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Ranking computes the leaderboard of a month from the matches table,
// best win ratio first, ties broken by win count then username.
func (s *Store) Ranking(ctx context.Context, year, month int, rankedOnly, includeVoid bool) ([]RankingRow, error) {
	start, end := monthRange(year, month)

	rows, err := s.db.QueryContext(ctx,
		`select u.id, u.username,
		  sum(case when m.winner_id = u.id then 1 else 0 end) as wins,
		  count(m.id) as games
		 from users u
		 join matches m on m.winner_id = u.id or m.loser_id = u.id
		 where m.finished_at >= ? and m.finished_at < ?
		  and (? = 0 or m.is_ranked = 1)
		  and (? = 1 or m.is_void = 0)
		 group by u.id, u.username
		 order by cast(wins as real) / games desc, wins desc, u.username asc
		 limit 100`,
		start, end, rankedOnly, includeVoid)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranking: %w", err)
	}
	defer rows.Close()

	var out []RankingRow
	for rows.Next() {
		var r RankingRow
		if err := rows.Scan(&r.UserID, &r.Username, &r.Wins, &r.Games); err != nil {
			return nil, fmt.Errorf("failed to scan ranking row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MonthlyRatings reads the materialized aggregates for a month,
// most wins first.
func (s *Store) MonthlyRatings(ctx context.Context, year, month int) ([]Rating, error) {
	rows, err := s.db.QueryContext(ctx,
		`select user_id, year, month, wins, games, version
		 from ratings where year = ? and month = ?
		 order by wins desc, games asc`, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	var out []Rating
	for rows.Next() {
		var r Rating
		if err := rows.Scan(&r.UserID, &r.Year, &r.Month, &r.Wins, &r.Games, &r.Version); err != nil {
			return nil, fmt.Errorf("failed to scan rating row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func monthRange(year, month int) (int64, int64) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start.Unix(), start.AddDate(0, 1, 0).Unix()
}
