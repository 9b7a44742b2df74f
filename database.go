package main

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/oops"
)

// Slot keys in the key-value table.
const (
	charactersKey  = "mm-characters"
	assignmentsKey = "mm-assignments"
)

// Store is a durable string-keyed slot store. Get reports false when the
// key has never been written.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type sqliteStore struct {
	db *sqlx.DB
}

func newSQLiteStore(db *sqlx.DB) *sqliteStore {
	return &sqliteStore{db: db}
}

func (s *sqliteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM kv WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, oops.In("store").With("key", key).Wrapf(err, "get %s", key)
	}
	return value, true, nil
}

func (s *sqliteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return oops.In("store").With("key", key).Wrapf(err, "set %s", key)
	}
	return nil
}

// openDB connects to the SQLite database at dsn and makes sure the schema exists.
func openDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, oops.In("store").Wrapf(err, "connect %s", dsn)
	}
	// One writer; keeps in-memory DSNs on a single connection too.
	db.SetMaxOpenConns(1)

	if err := initDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func initDB(db *sqlx.DB) error {
	schema := `
	PRAGMA journal_mode=WAL;

	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	if err != nil {
		log.Printf("initDB error: %v", err)
		return oops.In("store").Wrapf(err, "init schema")
	}
	DebugLog("Database initialized successfully")
	return nil
}
