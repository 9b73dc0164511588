package db

import (
	"database/sql"
	"fmt"
)

// migrations are applied in order; the metadata table records the last
// applied version so existing databases upgrade in place.
var migrations = []string{
	// v1: user accounts
	`create table users (
	  id varchar primary key,
	  username varchar unique,
	  password varchar
	)`,
	// v2: persisted lobby status line
	`alter table users add column comment varchar`,
	// v3: finished matches
	`create table matches (
	  id varchar primary key,
	  winner_id varchar,
	  loser_id varchar,
	  winner_pieces_left integer,
	  loser_pieces_left integer,
	  move_counter integer,
	  grid_size varchar,
	  squadron_size varchar,
	  started_at integer,
	  finished_at integer,
	  is_ranked integer,
	  is_void integer,
	  foreign key(winner_id) references users (id),
	  foreign key(loser_id) references users (id)
	)`,
	// v4: account creation timestamp
	`alter table users add column created_at integer`,
	// v5: materialized monthly aggregates, versioned for
	// compare-and-swap updates
	`create table ratings (
	  user_id varchar,
	  year integer,
	  month integer,
	  wins integer,
	  games integer,
	  version integer,
	  primary key (user_id, year, month),
	  foreign key(user_id) references users (id)
	)`,
}

func setupMetadata(db *sql.DB) error {
	_, err := db.Exec(
		`create table if not exists metadata (
		  name varchar primary key,
		  value varchar
		)`)
	return err
}

func schemaVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("select value from metadata where name='version'").Scan(&version)
	if err == sql.ErrNoRows {
		if _, err := db.Exec("insert into metadata (name, value) values ('version', '0')"); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return version, err
}

func executeMigrations(db *sql.DB) error {
	version, err := schemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration to v%d failed: %w", i+1, err)
		}
		if _, err := db.Exec("update metadata set value = ? where name='version'", i+1); err != nil {
			return fmt.Errorf("failed to record schema version %d: %w", i+1, err)
		}
	}
	return nil
}
