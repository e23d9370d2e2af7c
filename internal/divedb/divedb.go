// Package divedb persists dives, label events and learned user
// baselines in sqlite. The analysis core never touches SQL; this
// package owns the schema and the apply/replace/recompute paths that
// keep stored baselines consistent with the label-event log.
package divedb

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "modernc.org/sqlite"
)

type DiveDB struct {
	*sql.DB
}

// schema.sql creates the dives, label_events and user_baselines tables.
//
//go:embed schema.sql
var schemaSQL string

func NewDiveDB(path string) (*DiveDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize dive schema: %w", err)
	}

	return &DiveDB{db}, nil
}

// applyPragmas sets the connection pragmas every database needs:
// WAL for concurrent readers during label-worker writes, and a busy
// timeout so short write bursts queue instead of failing.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}
