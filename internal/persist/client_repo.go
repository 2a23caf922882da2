package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ClientRow struct {
	ID        uuid.UUID
	UserID    int64
	CreatedAt time.Time
}

// ClientRepo stores WebSocket client registrations.
type ClientRepo struct {
	db *DB
}

func NewClientRepo(db *DB) *ClientRepo {
	return &ClientRepo{db: db}
}

// Register mints a new client id for userID.
func (r *ClientRepo) Register(ctx context.Context, userID int64) (uuid.UUID, error) {
	id := uuid.New()
	if _, err := r.db.Pool.Exec(ctx,
		`INSERT INTO clients (id, user_id) VALUES ($1, $2)`, id, userID,
	); err != nil {
		return uuid.Nil, fmt.Errorf("insert client: %w", err)
	}
	return id, nil
}

// Unregister deletes a registration and reports whether it existed.
func (r *ClientRepo) Unregister(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete client: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Exists reports whether id is registered.
func (r *ClientRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := r.Load(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Load returns the registration for id, or pgx.ErrNoRows.
func (r *ClientRepo) Load(ctx context.Context, id uuid.UUID) (*ClientRow, error) {
	row := &ClientRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, user_id, created_at FROM clients WHERE id = $1`, id,
	).Scan(&row.ID, &row.UserID, &row.CreatedAt)
	if err != nil {
		return nil, err
	}
	return row, nil
}
