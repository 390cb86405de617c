package checkout

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	pgrepo "github.com/olegbarsky/digistore/internal/repo/postgres"
	redrepo "github.com/olegbarsky/digistore/internal/repo/redis"
	catalogsvc "github.com/olegbarsky/digistore/internal/services/catalog"
)

type catalogStub struct {
	projects map[int64]pgrepo.ProjectRecord
}

func (c *catalogStub) Get(_ context.Context, projectID int64) (pgrepo.ProjectRecord, error) {
	project, ok := c.projects[projectID]
	if !ok {
		return pgrepo.ProjectRecord{}, catalogsvc.ErrProjectNotFound
	}
	return project, nil
}

type quoteStoreStub struct {
	saved   []redrepo.QuoteRecord
	saveErr error
}

func (q *quoteStoreStub) Save(_ context.Context, quote redrepo.QuoteRecord) error {
	if q.saveErr != nil {
		return q.saveErr
	}
	q.saved = append(q.saved, quote)
	return nil
}

func testCatalog() *catalogStub {
	return &catalogStub{projects: map[int64]pgrepo.ProjectRecord{
		7: {
			ID:             7,
			Title:          "Crypto Trading Bot",
			Price:          decimal.RequireFromString("0.005"),
			CryptoCurrency: "BTC",
			DownloadURL:    "downloads/trading-bot.zip",
		},
		8: {
			ID:             8,
			Title:          "Market Scanner",
			Price:          decimal.RequireFromString("0.08"),
			CryptoCurrency: "ETH",
		},
		9: {
			ID:             9,
			Title:          "Portfolio Tracker",
			Price:          decimal.RequireFromString("1.5"),
			CryptoCurrency: "LTC",
		},
	}}
}

func TestNewQuoteShapesBTC(t *testing.T) {
	quotes := &quoteStoreStub{}
	svc := NewService(testCatalog(), quotes, Config{QuoteTTL: time.Hour}, nil)
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	quote, err := svc.NewQuote(context.Background(), 7)
	if err != nil {
		t.Fatalf("new quote: %v", err)
	}

	if quote.CheckoutID == "" {
		t.Fatalf("checkout id must be set")
	}
	if quote.Currency != "BTC" {
		t.Fatalf("unexpected currency: %s", quote.Currency)
	}
	if !quote.Amount.Equal(decimal.RequireFromString("0.005")) {
		t.Fatalf("unexpected amount: %s", quote.Amount)
	}
	if !strings.HasPrefix(quote.PaymentAddress, "bc1q") || len(quote.PaymentAddress) != 4+38 {
		t.Fatalf("unexpected btc address shape: %q", quote.PaymentAddress)
	}
	if !quote.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry: %s", quote.ExpiresAt)
	}

	if len(quotes.saved) != 1 {
		t.Fatalf("expected quote to be saved, got %d", len(quotes.saved))
	}
	if quotes.saved[0].CheckoutID != quote.CheckoutID || quotes.saved[0].ProjectID != 7 {
		t.Fatalf("unexpected saved quote: %+v", quotes.saved[0])
	}
}

func TestNewQuoteShapesETHAndGeneric(t *testing.T) {
	svc := NewService(testCatalog(), &quoteStoreStub{}, Config{}, nil)

	eth, err := svc.NewQuote(context.Background(), 8)
	if err != nil {
		t.Fatalf("new eth quote: %v", err)
	}
	if !strings.HasPrefix(eth.PaymentAddress, "0x") || len(eth.PaymentAddress) != 2+40 {
		t.Fatalf("unexpected eth address shape: %q", eth.PaymentAddress)
	}

	generic, err := svc.NewQuote(context.Background(), 9)
	if err != nil {
		t.Fatalf("new generic quote: %v", err)
	}
	if !strings.HasPrefix(generic.PaymentAddress, "addr_") || len(generic.PaymentAddress) != 5+32 {
		t.Fatalf("unexpected generic address shape: %q", generic.PaymentAddress)
	}
}

func TestNewQuoteSurvivesQuoteStoreOutage(t *testing.T) {
	quotes := &quoteStoreStub{saveErr: errors.New("connection refused")}
	svc := NewService(testCatalog(), quotes, Config{QuoteTTL: time.Hour}, nil)

	quote, err := svc.NewQuote(context.Background(), 7)
	if err != nil {
		t.Fatalf("new quote: %v", err)
	}
	if quote.CheckoutID == "" || quote.PaymentAddress == "" {
		t.Fatalf("quote must still be issued when the store is down: %+v", quote)
	}
	if len(quotes.saved) != 0 {
		t.Fatalf("nothing should be recorded on a failing store")
	}
}

func TestNewQuoteUnknownProject(t *testing.T) {
	svc := NewService(testCatalog(), &quoteStoreStub{}, Config{}, nil)

	if _, err := svc.NewQuote(context.Background(), 999); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestNewQuoteCheckoutIDsAreUnique(t *testing.T) {
	svc := NewService(testCatalog(), &quoteStoreStub{}, Config{}, nil)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		quote, err := svc.NewQuote(context.Background(), 7)
		if err != nil {
			t.Fatalf("new quote: %v", err)
		}
		if _, dup := seen[quote.CheckoutID]; dup {
			t.Fatalf("duplicate checkout id: %s", quote.CheckoutID)
		}
		seen[quote.CheckoutID] = struct{}{}
	}
}
