package blogstore

import (
	"database/sql"
	"fmt"
)

// SetupSchema initializes the content tables in the provided database.
// It should be called once on startup before a Store is created. It is
// idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id        INTEGER PRIMARY KEY,
    username  TEXT NOT NULL UNIQUE,
    firstname TEXT,
    lastname  TEXT,
    email     TEXT NOT NULL,
    pwhash    TEXT NOT NULL
);
`
		schemaEmployees = `
CREATE TABLE IF NOT EXISTS employees (
    id  INTEGER PRIMARY KEY,
    uid INTEGER NOT NULL UNIQUE REFERENCES users(id)
);
`
		schemaAdmins = `
CREATE TABLE IF NOT EXISTS admins (
    id  INTEGER PRIMARY KEY,
    uid INTEGER NOT NULL UNIQUE REFERENCES users(id)
);
`
		schemaDrafts = `
CREATE TABLE IF NOT EXISTS drafts (
    id     INTEGER PRIMARY KEY,
    author INTEGER NOT NULL REFERENCES users(id),
    path   TEXT NOT NULL,
    title  TEXT
);
`
		schemaArticles = `
CREATE TABLE IF NOT EXISTS articles (
    id     INTEGER PRIMARY KEY,
    path   TEXT NOT NULL UNIQUE,
    title  TEXT NOT NULL,
    cdate  TEXT NOT NULL DEFAULT (datetime('now')),
    author INTEGER NOT NULL REFERENCES users(id)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	// If the transaction succeeds, tx.Commit() will be called first, and the rollback will do nothing. If it fails, this will clean up.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, schema := range []string{schemaUsers, schemaEmployees, schemaAdmins, schemaDrafts, schemaArticles} {
		if _, err = tx.Exec(schema); err != nil {
			return fmt.Errorf("could not create schema: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}
