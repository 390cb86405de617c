package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrProjectNotFound = errors.New("project not found")

// ProjectRepo is the read-only catalog store. The ledger consults it
// and never mutates it; catalog writes happen through admin tooling
// outside this service.
type ProjectRepo struct {
	pool *pgxpool.Pool
}

type ProjectRecord struct {
	ID               int64
	Title            string
	ShortDescription string
	FullDescription  string
	Price            decimal.Decimal
	CryptoCurrency   string
	ThumbnailURL     string
	DownloadURL      string
	IsFeatured       bool
	Tags             string
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}

func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

func (r *ProjectRepo) FindByID(ctx context.Context, projectID int64) (ProjectRecord, error) {
	if r.pool == nil {
		return ProjectRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if projectID <= 0 {
		return ProjectRecord{}, fmt.Errorf("invalid project id")
	}

	var record ProjectRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, title, short_description, full_description, price, crypto_currency,
       thumbnail_url, download_url, is_featured, tags, created_at, updated_at
FROM projects
WHERE id = $1
LIMIT 1
`, projectID).Scan(
		&record.ID,
		&record.Title,
		&record.ShortDescription,
		&record.FullDescription,
		&record.Price,
		&record.CryptoCurrency,
		&record.ThumbnailURL,
		&record.DownloadURL,
		&record.IsFeatured,
		&record.Tags,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProjectRecord{}, ErrProjectNotFound
		}
		return ProjectRecord{}, fmt.Errorf("find project by id: %w", err)
	}

	return record, nil
}
