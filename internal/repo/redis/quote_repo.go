package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const quotePrefix = "checkout_quotes:"

// QuoteRepo holds checkout quotes for exactly their lifetime. A quote
// that cannot be found is expired (or never existed); the ledger treats
// both the same way, so no tombstones are kept.
type QuoteRepo struct {
	client *goredis.Client
}

type QuoteRecord struct {
	CheckoutID     string
	ProjectID      int64
	Amount         decimal.Decimal
	Currency       string
	PaymentAddress string
	ExpiresAt      time.Time
}

func NewQuoteRepo(client *goredis.Client) *QuoteRepo {
	return &QuoteRepo{client: client}
}

func (r *QuoteRepo) Save(ctx context.Context, quote QuoteRecord) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(quote.CheckoutID) == "" || quote.ProjectID <= 0 {
		return fmt.Errorf("invalid quote payload")
	}

	ttl := time.Until(quote.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("quote is already expired")
	}

	key := quoteKey(quote.CheckoutID)
	fields := map[string]interface{}{
		"project_id": quote.ProjectID,
		"amount":     quote.Amount.String(),
		"currency":   quote.Currency,
		"address":    quote.PaymentAddress,
		"expires_at": quote.ExpiresAt.Unix(),
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save checkout quote: %w", err)
	}

	return nil
}

// Find returns the quote and true, or zero and false when the quote is
// absent or expired.
func (r *QuoteRepo) Find(ctx context.Context, checkoutID string) (QuoteRecord, bool, error) {
	if r.client == nil {
		return QuoteRecord{}, false, fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(checkoutID) == "" {
		return QuoteRecord{}, false, fmt.Errorf("checkout id is required")
	}

	values, err := r.client.HGetAll(ctx, quoteKey(checkoutID)).Result()
	if err != nil {
		return QuoteRecord{}, false, fmt.Errorf("get checkout quote: %w", err)
	}
	if len(values) == 0 {
		return QuoteRecord{}, false, nil
	}

	quote, err := parseQuoteRecord(checkoutID, values)
	if err != nil {
		return QuoteRecord{}, false, err
	}

	return quote, true, nil
}

func parseQuoteRecord(checkoutID string, values map[string]string) (QuoteRecord, error) {
	projectID, err := strconv.ParseInt(values["project_id"], 10, 64)
	if err != nil {
		return QuoteRecord{}, fmt.Errorf("parse quote project_id: %w", err)
	}
	amount, err := decimal.NewFromString(values["amount"])
	if err != nil {
		return QuoteRecord{}, fmt.Errorf("parse quote amount: %w", err)
	}
	expiresAt, err := strconv.ParseInt(values["expires_at"], 10, 64)
	if err != nil {
		return QuoteRecord{}, fmt.Errorf("parse quote expires_at: %w", err)
	}

	return QuoteRecord{
		CheckoutID:     checkoutID,
		ProjectID:      projectID,
		Amount:         amount,
		Currency:       values["currency"],
		PaymentAddress: values["address"],
		ExpiresAt:      time.Unix(expiresAt, 0).UTC(),
	}, nil
}

func quoteKey(checkoutID string) string {
	return quotePrefix + checkoutID
}
