package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chatline/pkg/interfaces"
	"chatline/pkg/types"
)

// UserRepo implements interfaces.UserRepository over the store. Accounts
// are created elsewhere; this service reads them and maintains the
// presence columns. Insert exists for seeding and tests.
type UserRepo struct {
	store *Store
}

// NewUserRepo creates a user repository.
func NewUserRepo(store *Store) *UserRepo {
	return &UserRepo{store: store}
}

var _ interfaces.UserRepository = (*UserRepo)(nil)

// FindByID returns the user or interfaces.ErrUserNotFound.
func (r *UserRepo) FindByID(ctx context.Context, id string) (*types.User, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT id, name, avatar, role, is_online, last_seen, created_at
		FROM users WHERE id = ?
	`, id)

	var user types.User
	var lastSeen sql.NullTime
	err := row.Scan(&user.ID, &user.Name, &user.Avatar, &user.Role, &user.IsOnline, &lastSeen, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	if lastSeen.Valid {
		user.LastSeen = &lastSeen.Time
	}
	return &user, nil
}

// UpdatePresence persists the online flag. Going offline also stamps
// last_seen; going online leaves it untouched.
func (r *UserRepo) UpdatePresence(ctx context.Context, id string, isOnline bool, lastSeen time.Time) error {
	return r.store.executeWrite(func(db *sql.DB) error {
		var err error
		if isOnline {
			_, err = db.ExecContext(ctx, "UPDATE users SET is_online = 1 WHERE id = ?", id)
		} else {
			_, err = db.ExecContext(ctx, "UPDATE users SET is_online = 0, last_seen = ? WHERE id = ?", lastSeen, id)
		}
		if err != nil {
			return fmt.Errorf("update presence: %w", err)
		}
		return nil
	})
}

// Insert creates a user row.
func (r *UserRepo) Insert(ctx context.Context, user *types.User) error {
	return r.store.executeWrite(func(db *sql.DB) error {
		createdAt := user.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO users (id, name, avatar, role, is_online, last_seen, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, user.ID, user.Name, user.Avatar, user.Role, user.IsOnline, user.LastSeen, createdAt)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
}
