package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepo is a read-only view of accounts owned by the external
// authentication system. The ledger only resolves buyer details for
// the administrator listing.
type UserRepo struct {
	pool *pgxpool.Pool
}

type UserRecord struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	IsAdmin   bool
	CreatedAt time.Time
	LastLogin *time.Time
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) FindByID(ctx context.Context, userID int64) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return UserRecord{}, fmt.Errorf("invalid user id")
	}

	var record UserRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, email, first_name, last_name, is_admin, created_at, last_login
FROM users
WHERE id = $1
LIMIT 1
`, userID).Scan(
		&record.ID,
		&record.Email,
		&record.FirstName,
		&record.LastName,
		&record.IsAdmin,
		&record.CreatedAt,
		&record.LastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("find user by id: %w", err)
	}

	return record, nil
}
