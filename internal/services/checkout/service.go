package checkout

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	pgrepo "github.com/olegbarsky/digistore/internal/repo/postgres"
	redrepo "github.com/olegbarsky/digistore/internal/repo/redis"
	catalogsvc "github.com/olegbarsky/digistore/internal/services/catalog"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrProjectNotFound = errors.New("project not found")
)

type Catalog interface {
	Get(ctx context.Context, projectID int64) (pgrepo.ProjectRecord, error)
}

type QuoteStore interface {
	Save(ctx context.Context, quote redrepo.QuoteRecord) error
}

type Config struct {
	QuoteTTL time.Duration
}

// Service issues ephemeral checkout quotes. Nothing is written to the
// ledger here; the quote lives in the quote store for exactly its
// lifetime so the verify path can refuse expired checkouts.
type Service struct {
	catalog Catalog
	quotes  QuoteStore
	logger  *zap.Logger
	cfg     Config
	now     func() time.Time
	newID   func() string
}

type Quote struct {
	CheckoutID     string
	ProjectID      int64
	ProjectTitle   string
	Amount         decimal.Decimal
	Currency       string
	PaymentAddress string
	ExpiresAt      time.Time
}

func NewService(catalog Catalog, quotes QuoteStore, cfg Config, logger *zap.Logger) *Service {
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		catalog: catalog,
		quotes:  quotes,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (s *Service) NewQuote(ctx context.Context, projectID int64) (Quote, error) {
	if projectID <= 0 {
		return Quote{}, ErrValidation
	}
	if s.catalog == nil {
		return Quote{}, fmt.Errorf("catalog is nil")
	}

	project, err := s.catalog.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, catalogsvc.ErrProjectNotFound) {
			return Quote{}, ErrProjectNotFound
		}
		return Quote{}, err
	}

	address, err := paymentAddress(project.CryptoCurrency)
	if err != nil {
		return Quote{}, err
	}

	quote := Quote{
		CheckoutID:     s.newID(),
		ProjectID:      project.ID,
		ProjectTitle:   project.Title,
		Amount:         project.Price,
		Currency:       project.CryptoCurrency,
		PaymentAddress: address,
		ExpiresAt:      s.now().UTC().Add(s.cfg.QuoteTTL),
	}

	if s.quotes != nil {
		if err := s.quotes.Save(ctx, redrepo.QuoteRecord{
			CheckoutID:     quote.CheckoutID,
			ProjectID:      quote.ProjectID,
			Amount:         quote.Amount,
			Currency:       quote.Currency,
			PaymentAddress: quote.PaymentAddress,
			ExpiresAt:      quote.ExpiresAt,
		}); err != nil {
			// A quote-store outage must not block checkouts. The
			// verify path tolerates a missing quote the same way.
			s.logger.Warn("saving checkout quote failed, quote will not be expiry-checked",
				zap.String("checkout_id", quote.CheckoutID), zap.Error(err))
		}
	}

	return quote, nil
}

// paymentAddress reproduces the settlement address shapes of the
// upstream payment provider: bech32-style for BTC, 0x-hex for ETH, a
// generic token otherwise. The addresses are placeholders until a real
// payment-network adapter supplies live ones, but their shape is part
// of the client contract.
func paymentAddress(currency string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case "BTC":
		suffix, err := randomHex(19)
		if err != nil {
			return "", err
		}
		return "bc1q" + suffix, nil
	case "ETH":
		suffix, err := randomHex(20)
		if err != nil {
			return "", err
		}
		return "0x" + suffix, nil
	default:
		suffix, err := randomHex(16)
		if err != nil {
			return "", err
		}
		return "addr_" + suffix, nil
	}
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
