package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrPurchaseNotFound = errors.New("purchase not found")

	// ErrCompletedPurchaseExists is raised when an insert or completion
	// would produce a second completed purchase for the same
	// (user, project) pair. The partial unique index
	// purchases_one_completed_per_owner is the source of truth.
	ErrCompletedPurchaseExists = errors.New("completed purchase already exists for user and project")
)

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

// PurchaseRecord snapshots amount and currency at creation time.
// The only legal mutation after insert is pending -> completed.
type PurchaseRecord struct {
	ID             int64
	ProjectID      int64
	UserID         int64
	Amount         decimal.Decimal
	CryptoCurrency string
	TransactionID  *string
	PurchasedAt    time.Time
	IsCompleted    bool
}

type PurchaseWithProject struct {
	PurchaseRecord
	Project ProjectRecord
}

type PurchaseDetail struct {
	PurchaseRecord
	Project ProjectRecord
	User    UserRecord
}

type NewPurchase struct {
	ProjectID      int64
	UserID         int64
	Amount         decimal.Decimal
	CryptoCurrency string
	TransactionID  *string
	IsCompleted    bool
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

func (r *PurchaseRepo) Insert(ctx context.Context, in NewPurchase) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if in.ProjectID <= 0 || in.UserID <= 0 || strings.TrimSpace(in.CryptoCurrency) == "" {
		return PurchaseRecord{}, fmt.Errorf("invalid purchase insert payload")
	}

	var record PurchaseRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO purchases (
	project_id,
	user_id,
	amount,
	crypto_currency,
	transaction_id,
	purchased_at,
	is_completed
) VALUES ($1, $2, $3, $4, $5, NOW(), $6)
RETURNING id, project_id, user_id, amount, crypto_currency, transaction_id, purchased_at, is_completed
`, in.ProjectID, in.UserID, in.Amount, strings.ToUpper(strings.TrimSpace(in.CryptoCurrency)), in.TransactionID, in.IsCompleted).Scan(
		&record.ID,
		&record.ProjectID,
		&record.UserID,
		&record.Amount,
		&record.CryptoCurrency,
		&record.TransactionID,
		&record.PurchasedAt,
		&record.IsCompleted,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return PurchaseRecord{}, ErrCompletedPurchaseExists
		}
		return PurchaseRecord{}, fmt.Errorf("insert purchase: %w", err)
	}

	return record, nil
}

func (r *PurchaseRepo) HasCompleted(ctx context.Context, userID, projectID int64) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || projectID <= 0 {
		return false, fmt.Errorf("invalid ownership lookup payload")
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM purchases
	WHERE user_id = $1
	  AND project_id = $2
	  AND is_completed
)
`, userID, projectID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check completed purchase: %w", err)
	}

	return exists, nil
}

func (r *PurchaseRepo) FindByID(ctx context.Context, purchaseID int64) (PurchaseWithProject, error) {
	if r.pool == nil {
		return PurchaseWithProject{}, fmt.Errorf("postgres pool is nil")
	}
	if purchaseID <= 0 {
		return PurchaseWithProject{}, fmt.Errorf("invalid purchase id")
	}

	record, err := scanPurchaseWithProject(r.pool.QueryRow(ctx, `
SELECT pu.id, pu.project_id, pu.user_id, pu.amount, pu.crypto_currency,
       pu.transaction_id, pu.purchased_at, pu.is_completed,
       pr.id, pr.title, pr.short_description, pr.full_description, pr.price,
       pr.crypto_currency, pr.thumbnail_url, pr.download_url, pr.is_featured,
       pr.tags, pr.created_at, pr.updated_at
FROM purchases pu
JOIN projects pr ON pr.id = pu.project_id
WHERE pu.id = $1
LIMIT 1
`, purchaseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseWithProject{}, ErrPurchaseNotFound
		}
		return PurchaseWithProject{}, fmt.Errorf("find purchase by id: %w", err)
	}

	return record, nil
}

func (r *PurchaseRepo) ListByUser(ctx context.Context, userID int64) ([]PurchaseWithProject, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT pu.id, pu.project_id, pu.user_id, pu.amount, pu.crypto_currency,
       pu.transaction_id, pu.purchased_at, pu.is_completed,
       pr.id, pr.title, pr.short_description, pr.full_description, pr.price,
       pr.crypto_currency, pr.thumbnail_url, pr.download_url, pr.is_featured,
       pr.tags, pr.created_at, pr.updated_at
FROM purchases pu
JOIN projects pr ON pr.id = pu.project_id
WHERE pu.user_id = $1
ORDER BY pu.purchased_at DESC, pu.id DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list purchases by user: %w", err)
	}
	defer rows.Close()

	records := make([]PurchaseWithProject, 0)
	for rows.Next() {
		record, err := scanPurchaseWithProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user purchase row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user purchase rows: %w", err)
	}

	return records, nil
}

func (r *PurchaseRepo) ListAll(ctx context.Context) ([]PurchaseDetail, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT pu.id, pu.project_id, pu.user_id, pu.amount, pu.crypto_currency,
       pu.transaction_id, pu.purchased_at, pu.is_completed,
       pr.id, pr.title, pr.short_description, pr.full_description, pr.price,
       pr.crypto_currency, pr.thumbnail_url, pr.download_url, pr.is_featured,
       pr.tags, pr.created_at, pr.updated_at,
       u.id, u.email, u.first_name, u.last_name, u.is_admin, u.created_at, u.last_login
FROM purchases pu
JOIN projects pr ON pr.id = pu.project_id
JOIN users u ON u.id = pu.user_id
ORDER BY pu.purchased_at DESC, pu.id DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list all purchases: %w", err)
	}
	defer rows.Close()

	records := make([]PurchaseDetail, 0)
	for rows.Next() {
		var record PurchaseDetail
		if err := rows.Scan(
			&record.ID,
			&record.ProjectID,
			&record.UserID,
			&record.Amount,
			&record.CryptoCurrency,
			&record.TransactionID,
			&record.PurchasedAt,
			&record.IsCompleted,
			&record.Project.ID,
			&record.Project.Title,
			&record.Project.ShortDescription,
			&record.Project.FullDescription,
			&record.Project.Price,
			&record.Project.CryptoCurrency,
			&record.Project.ThumbnailURL,
			&record.Project.DownloadURL,
			&record.Project.IsFeatured,
			&record.Project.Tags,
			&record.Project.CreatedAt,
			&record.Project.UpdatedAt,
			&record.User.ID,
			&record.User.Email,
			&record.User.FirstName,
			&record.User.LastName,
			&record.User.IsAdmin,
			&record.User.CreatedAt,
			&record.User.LastLogin,
		); err != nil {
			return nil, fmt.Errorf("scan purchase detail row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase detail rows: %w", err)
	}

	return records, nil
}

// Complete transitions a record to completed and overwrites its
// transaction id. The row is locked and updated inside one
// transaction; re-completing an already-completed record re-applies
// the same transition, and the partial unique index rejects a
// completion that would create a second completed record for the pair.
func (r *PurchaseRepo) Complete(ctx context.Context, purchaseID int64, transactionID string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if purchaseID <= 0 || strings.TrimSpace(transactionID) == "" {
		return PurchaseRecord{}, fmt.Errorf("invalid purchase completion payload")
	}

	var record PurchaseRecord
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var lockedID int64
		if err := tx.QueryRow(ctx, `
SELECT id
FROM purchases
WHERE id = $1
FOR UPDATE
`, purchaseID).Scan(&lockedID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPurchaseNotFound
			}
			return fmt.Errorf("lock purchase row: %w", err)
		}

		return tx.QueryRow(ctx, `
UPDATE purchases
SET
	transaction_id = $2,
	is_completed = TRUE
WHERE id = $1
RETURNING id, project_id, user_id, amount, crypto_currency, transaction_id, purchased_at, is_completed
`, purchaseID, strings.TrimSpace(transactionID)).Scan(
			&record.ID,
			&record.ProjectID,
			&record.UserID,
			&record.Amount,
			&record.CryptoCurrency,
			&record.TransactionID,
			&record.PurchasedAt,
			&record.IsCompleted,
		)
	})
	if err != nil {
		if errors.Is(err, ErrPurchaseNotFound) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		if isUniqueViolation(err) {
			return PurchaseRecord{}, ErrCompletedPurchaseExists
		}
		return PurchaseRecord{}, fmt.Errorf("complete purchase: %w", err)
	}

	return record, nil
}

func (r *PurchaseRepo) DeletePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if cutoff.IsZero() {
		return 0, fmt.Errorf("cutoff is required")
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM purchases
WHERE NOT is_completed
  AND purchased_at < $1
`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale pending purchases: %w", err)
	}

	return tag.RowsAffected(), nil
}

func scanPurchaseWithProject(row pgx.Row) (PurchaseWithProject, error) {
	var record PurchaseWithProject
	if err := row.Scan(
		&record.ID,
		&record.ProjectID,
		&record.UserID,
		&record.Amount,
		&record.CryptoCurrency,
		&record.TransactionID,
		&record.PurchasedAt,
		&record.IsCompleted,
		&record.Project.ID,
		&record.Project.Title,
		&record.Project.ShortDescription,
		&record.Project.FullDescription,
		&record.Project.Price,
		&record.Project.CryptoCurrency,
		&record.Project.ThumbnailURL,
		&record.Project.DownloadURL,
		&record.Project.IsFeatured,
		&record.Project.Tags,
		&record.Project.CreatedAt,
		&record.Project.UpdatedAt,
	); err != nil {
		return PurchaseWithProject{}, err
	}
	return record, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
