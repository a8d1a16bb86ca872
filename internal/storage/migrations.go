package storage

import (
	"database/sql"
	"fmt"
)

// migration is one versioned schema step. Steps are applied in order inside
// a transaction and recorded in schema_migrations, so restarting an
// upgraded binary is a no-op.
type migration struct {
	version     int
	description string
	sql         string
}

var migrations = []migration{
	{
		version:     1,
		description: "users table with presence columns",
		sql: `
			CREATE TABLE IF NOT EXISTS users (
				id         TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				avatar     TEXT NOT NULL DEFAULT '',
				role       TEXT NOT NULL DEFAULT 'customer',
				is_online  INTEGER NOT NULL DEFAULT 0,
				last_seen  DATETIME,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
	{
		version:     2,
		description: "messages table",
		sql: `
			CREATE TABLE IF NOT EXISTS messages (
				id              TEXT PRIMARY KEY,
				conversation_id TEXT NOT NULL,
				sender_id       TEXT NOT NULL,
				receiver_id     TEXT NOT NULL,
				content         TEXT NOT NULL,
				read            INTEGER NOT NULL DEFAULT 0,
				read_at         DATETIME,
				created_at      DATETIME NOT NULL
			);
		`,
	},
	{
		version:     3,
		description: "message lookup indexes",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_messages_conversation
				ON messages (conversation_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_messages_unread
				ON messages (conversation_id, receiver_id, read);
			CREATE INDEX IF NOT EXISTS idx_messages_sender
				ON messages (sender_id);
			CREATE INDEX IF NOT EXISTS idx_messages_receiver
				ON messages (receiver_id);
		`,
	},
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
		}
	}
	return nil
}

func appliedVersions(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(m.sql); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
		return err
	}
	return tx.Commit()
}
