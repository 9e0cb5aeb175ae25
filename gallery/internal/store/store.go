// Package store is the data access layer for the gallery cache.
//
// Every mutation is an upsert keyed by a natural identifier, so re-running
// an extraction against unchanged source markup refreshes rows instead of
// duplicating them.
package store

import "database/sql"

// Store wraps the cache database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}
