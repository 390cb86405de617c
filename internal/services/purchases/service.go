package purchases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	pgrepo "github.com/olegbarsky/digistore/internal/repo/postgres"
	redrepo "github.com/olegbarsky/digistore/internal/repo/redis"
	"github.com/olegbarsky/digistore/internal/services/auth"
	catalogsvc "github.com/olegbarsky/digistore/internal/services/catalog"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrProjectNotFound  = errors.New("project not found")
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrForbidden        = errors.New("forbidden")

	// ErrAlreadyOwned means the caller already has a completed purchase
	// for the project. Every path that could mint a second one maps
	// here, including the storage-level unique violation.
	ErrAlreadyOwned = errors.New("project already purchased")

	// ErrUnknownUser means the token is valid but the account has not
	// been provisioned in the local users table yet.
	ErrUnknownUser = errors.New("unknown user")
)

type Catalog interface {
	Get(ctx context.Context, projectID int64) (pgrepo.ProjectRecord, error)
}

type Store interface {
	Insert(ctx context.Context, in pgrepo.NewPurchase) (pgrepo.PurchaseRecord, error)
	HasCompleted(ctx context.Context, userID, projectID int64) (bool, error)
	FindByID(ctx context.Context, purchaseID int64) (pgrepo.PurchaseWithProject, error)
	ListByUser(ctx context.Context, userID int64) ([]pgrepo.PurchaseWithProject, error)
	ListAll(ctx context.Context) ([]pgrepo.PurchaseDetail, error)
	Complete(ctx context.Context, purchaseID int64, transactionID string) (pgrepo.PurchaseRecord, error)
}

type QuoteStore interface {
	Find(ctx context.Context, checkoutID string) (redrepo.QuoteRecord, bool, error)
}

type UserStore interface {
	FindByID(ctx context.Context, userID int64) (pgrepo.UserRecord, error)
}

// Verifier answers whether a payment for the given amount settled on
// the network under the given transaction id. Implementations must
// respect ctx; the service treats a deadline as "not confirmed yet",
// not as a failure.
type Verifier interface {
	Verify(ctx context.Context, amount decimal.Decimal, currency, transactionID string) (bool, error)
}

type DownloadResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

type Config struct {
	OracleTimeout time.Duration
}

type Service struct {
	catalog   Catalog
	store     Store
	quotes    QuoteStore
	users     UserStore
	verifier  Verifier
	downloads DownloadResolver
	logger    *zap.Logger
	cfg       Config
}

type Dependencies struct {
	Catalog   Catalog
	Store     Store
	Quotes    QuoteStore
	Users     UserStore
	Verifier  Verifier
	Downloads DownloadResolver
	Logger    *zap.Logger
}

type CreateInput struct {
	ProjectID     int64
	TransactionID string
	IsCompleted   bool
}

type VerifyInput struct {
	ProjectID     int64
	CheckoutID    string
	TransactionID string
}

// VerifyResult carries both outcomes of a verification attempt. A
// declined payment or expired checkout is Verified=false with a
// message, not an error: the request itself succeeded.
type VerifyResult struct {
	Verified    bool
	Message     string
	PurchaseID  int64
	DownloadURL string
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = 10 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Service{
		catalog:   deps.Catalog,
		store:     deps.Store,
		quotes:    deps.Quotes,
		users:     deps.Users,
		verifier:  deps.Verifier,
		downloads: deps.Downloads,
		logger:    deps.Logger,
		cfg:       cfg,
	}
}

// Create records a purchase on behalf of the caller. The amount and
// currency are snapshotted from the project at this moment and never
// change afterwards, whatever happens to the project later.
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (pgrepo.PurchaseRecord, error) {
	if userID <= 0 || in.ProjectID <= 0 {
		return pgrepo.PurchaseRecord{}, ErrValidation
	}
	if s.store == nil {
		return pgrepo.PurchaseRecord{}, fmt.Errorf("purchase store is nil")
	}

	if err := s.ensureUser(ctx, userID); err != nil {
		return pgrepo.PurchaseRecord{}, err
	}

	project, err := s.getProject(ctx, in.ProjectID)
	if err != nil {
		return pgrepo.PurchaseRecord{}, err
	}

	owned, err := s.store.HasCompleted(ctx, userID, in.ProjectID)
	if err != nil {
		return pgrepo.PurchaseRecord{}, err
	}
	if owned {
		return pgrepo.PurchaseRecord{}, ErrAlreadyOwned
	}

	record, err := s.store.Insert(ctx, pgrepo.NewPurchase{
		ProjectID:      project.ID,
		UserID:         userID,
		Amount:         project.Price,
		CryptoCurrency: project.CryptoCurrency,
		TransactionID:  optionalString(in.TransactionID),
		IsCompleted:    in.IsCompleted,
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrCompletedPurchaseExists) {
			return pgrepo.PurchaseRecord{}, ErrAlreadyOwned
		}
		return pgrepo.PurchaseRecord{}, err
	}

	return record, nil
}

// Verify settles a checkout: it re-checks ownership, confirms the
// payment with the oracle, and only then writes the completed purchase.
// The quote must still be live; an expired or unknown checkout id is
// refused before the oracle is consulted.
func (s *Service) Verify(ctx context.Context, userID int64, in VerifyInput) (VerifyResult, error) {
	if userID <= 0 || in.ProjectID <= 0 || strings.TrimSpace(in.TransactionID) == "" {
		return VerifyResult{}, ErrValidation
	}
	if s.store == nil {
		return VerifyResult{}, fmt.Errorf("purchase store is nil")
	}
	if s.verifier == nil {
		return VerifyResult{}, fmt.Errorf("payment verifier is nil")
	}

	if err := s.ensureUser(ctx, userID); err != nil {
		return VerifyResult{}, err
	}

	project, err := s.getProject(ctx, in.ProjectID)
	if err != nil {
		return VerifyResult{}, err
	}

	// Without a quote store, or when the quote store is unreachable,
	// the expiry check degrades to skipped and the expected amount
	// falls back to the live catalog snapshot. Only a reachable store
	// with no matching live quote refuses the checkout.
	expectedAmount := project.Price
	expectedCurrency := project.CryptoCurrency
	if s.quotes != nil {
		quote, ok, err := s.findQuote(ctx, in.CheckoutID)
		switch {
		case err != nil:
			s.logger.Warn("checkout quote lookup failed, skipping expiry check",
				zap.String("checkout_id", in.CheckoutID), zap.Error(err))
		case !ok || quote.ProjectID != in.ProjectID:
			return VerifyResult{Message: "checkout expired, request a new quote"}, nil
		default:
			expectedAmount = quote.Amount
			expectedCurrency = quote.Currency
		}
	}

	owned, err := s.store.HasCompleted(ctx, userID, in.ProjectID)
	if err != nil {
		return VerifyResult{}, err
	}
	if owned {
		return VerifyResult{}, ErrAlreadyOwned
	}

	confirmed, err := s.confirmPayment(ctx, expectedAmount, expectedCurrency, in.TransactionID)
	if err != nil {
		return VerifyResult{}, err
	}
	if !confirmed {
		return VerifyResult{Message: "payment not confirmed on the network yet"}, nil
	}

	txID := strings.TrimSpace(in.TransactionID)
	record, err := s.store.Insert(ctx, pgrepo.NewPurchase{
		ProjectID:      project.ID,
		UserID:         userID,
		Amount:         expectedAmount,
		CryptoCurrency: expectedCurrency,
		TransactionID:  &txID,
		IsCompleted:    true,
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrCompletedPurchaseExists) {
			return VerifyResult{}, ErrAlreadyOwned
		}
		return VerifyResult{}, err
	}

	downloadURL, err := s.resolveDownload(ctx, project.DownloadURL)
	if err != nil {
		return VerifyResult{}, err
	}

	return VerifyResult{
		Verified:    true,
		Message:     "payment verified",
		PurchaseID:  record.ID,
		DownloadURL: downloadURL,
	}, nil
}

// Complete transitions a purchase to completed. Only the owner or an
// admin may do it; completing an already-completed purchase with the
// same transition is allowed and idempotent at the storage layer.
func (s *Service) Complete(ctx context.Context, identity auth.Identity, purchaseID int64, transactionID string) (pgrepo.PurchaseRecord, error) {
	if purchaseID <= 0 || strings.TrimSpace(transactionID) == "" {
		return pgrepo.PurchaseRecord{}, ErrValidation
	}
	if s.store == nil {
		return pgrepo.PurchaseRecord{}, fmt.Errorf("purchase store is nil")
	}

	existing, err := s.store.FindByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return pgrepo.PurchaseRecord{}, ErrPurchaseNotFound
		}
		return pgrepo.PurchaseRecord{}, err
	}
	if existing.UserID != identity.UserID && !identity.IsAdmin() {
		return pgrepo.PurchaseRecord{}, ErrForbidden
	}

	record, err := s.store.Complete(ctx, purchaseID, transactionID)
	if err != nil {
		switch {
		case errors.Is(err, pgrepo.ErrPurchaseNotFound):
			return pgrepo.PurchaseRecord{}, ErrPurchaseNotFound
		case errors.Is(err, pgrepo.ErrCompletedPurchaseExists):
			return pgrepo.PurchaseRecord{}, ErrAlreadyOwned
		default:
			return pgrepo.PurchaseRecord{}, err
		}
	}

	return record, nil
}

// Get returns a single purchase, visible only to its owner or an admin.
func (s *Service) Get(ctx context.Context, identity auth.Identity, purchaseID int64) (pgrepo.PurchaseWithProject, error) {
	if purchaseID <= 0 {
		return pgrepo.PurchaseWithProject{}, ErrValidation
	}
	if s.store == nil {
		return pgrepo.PurchaseWithProject{}, fmt.Errorf("purchase store is nil")
	}

	record, err := s.store.FindByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return pgrepo.PurchaseWithProject{}, ErrPurchaseNotFound
		}
		return pgrepo.PurchaseWithProject{}, err
	}
	if record.UserID != identity.UserID && !identity.IsAdmin() {
		return pgrepo.PurchaseWithProject{}, ErrForbidden
	}

	return record, nil
}

func (s *Service) ListMine(ctx context.Context, userID int64) ([]pgrepo.PurchaseWithProject, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	if s.store == nil {
		return nil, fmt.Errorf("purchase store is nil")
	}

	return s.store.ListByUser(ctx, userID)
}

func (s *Service) ListAll(ctx context.Context) ([]pgrepo.PurchaseDetail, error) {
	if s.store == nil {
		return nil, fmt.Errorf("purchase store is nil")
	}

	return s.store.ListAll(ctx)
}

// ensureUser confirms the buyer is provisioned locally. Without a user
// store the check is skipped and the foreign key is the last line of
// defense.
func (s *Service) ensureUser(ctx context.Context, userID int64) error {
	if s.users == nil {
		return nil
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return ErrUnknownUser
		}
		return fmt.Errorf("resolve buyer: %w", err)
	}

	return nil
}

func (s *Service) getProject(ctx context.Context, projectID int64) (pgrepo.ProjectRecord, error) {
	if s.catalog == nil {
		return pgrepo.ProjectRecord{}, fmt.Errorf("catalog is nil")
	}

	project, err := s.catalog.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, catalogsvc.ErrProjectNotFound) {
			return pgrepo.ProjectRecord{}, ErrProjectNotFound
		}
		return pgrepo.ProjectRecord{}, err
	}

	return project, nil
}

func (s *Service) findQuote(ctx context.Context, checkoutID string) (redrepo.QuoteRecord, bool, error) {
	if strings.TrimSpace(checkoutID) == "" {
		return redrepo.QuoteRecord{}, false, nil
	}

	quote, ok, err := s.quotes.Find(ctx, checkoutID)
	if err != nil {
		return redrepo.QuoteRecord{}, false, fmt.Errorf("find checkout quote: %w", err)
	}

	return quote, ok, nil
}

// confirmPayment runs the oracle under its own deadline. A deadline
// hit means the network has not confirmed yet; the caller gets a
// normal "not confirmed" answer rather than an error.
func (s *Service) confirmPayment(ctx context.Context, amount decimal.Decimal, currency, transactionID string) (bool, error) {
	oracleCtx, cancel := context.WithTimeout(ctx, s.cfg.OracleTimeout)
	defer cancel()

	confirmed, err := s.verifier.Verify(oracleCtx, amount, currency, strings.TrimSpace(transactionID))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return false, nil
		}
		return false, fmt.Errorf("verify payment: %w", err)
	}

	return confirmed, nil
}

func (s *Service) resolveDownload(ctx context.Context, ref string) (string, error) {
	if s.downloads == nil || strings.TrimSpace(ref) == "" {
		return ref, nil
	}

	url, err := s.downloads.Resolve(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("resolve download url: %w", err)
	}

	return url, nil
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
