package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
)

func TestQuoteRepoSaveFindRoundtrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(mr.Addr(), "", 0)
	repo := NewQuoteRepo(client)

	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second).UTC()
	saved := QuoteRecord{
		CheckoutID:     "chk-123",
		ProjectID:      7,
		Amount:         decimal.RequireFromString("0.005"),
		Currency:       "BTC",
		PaymentAddress: "bc1qabc",
		ExpiresAt:      expiresAt,
	}

	if err := repo.Save(context.Background(), saved); err != nil {
		t.Fatalf("save quote: %v", err)
	}

	found, ok, err := repo.Find(context.Background(), "chk-123")
	if err != nil {
		t.Fatalf("find quote: %v", err)
	}
	if !ok {
		t.Fatalf("expected quote to be found")
	}
	if found.ProjectID != 7 {
		t.Fatalf("unexpected project id: %d", found.ProjectID)
	}
	if !found.Amount.Equal(saved.Amount) {
		t.Fatalf("unexpected amount: %s", found.Amount)
	}
	if found.Currency != "BTC" || found.PaymentAddress != "bc1qabc" {
		t.Fatalf("unexpected quote fields: %+v", found)
	}
	if !found.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("unexpected expires_at: %s", found.ExpiresAt)
	}
}

func TestQuoteRepoFindUnknownCheckoutID(t *testing.T) {
	mr := miniredis.RunT(t)
	repo := NewQuoteRepo(NewClient(mr.Addr(), "", 0))

	_, ok, err := repo.Find(context.Background(), "chk-missing")
	if err != nil {
		t.Fatalf("find quote: %v", err)
	}
	if ok {
		t.Fatalf("unknown checkout id must not be found")
	}
}

func TestQuoteRepoQuoteExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	repo := NewQuoteRepo(NewClient(mr.Addr(), "", 0))

	quote := QuoteRecord{
		CheckoutID:     "chk-exp",
		ProjectID:      1,
		Amount:         decimal.RequireFromString("0.08"),
		Currency:       "ETH",
		PaymentAddress: "0xdead",
		ExpiresAt:      time.Now().Add(time.Hour),
	}
	if err := repo.Save(context.Background(), quote); err != nil {
		t.Fatalf("save quote: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	_, ok, err := repo.Find(context.Background(), "chk-exp")
	if err != nil {
		t.Fatalf("find quote after expiry: %v", err)
	}
	if ok {
		t.Fatalf("expired quote must not be found")
	}
}

func TestQuoteRepoRejectsExpiredQuoteOnSave(t *testing.T) {
	mr := miniredis.RunT(t)
	repo := NewQuoteRepo(NewClient(mr.Addr(), "", 0))

	err := repo.Save(context.Background(), QuoteRecord{
		CheckoutID: "chk-old",
		ProjectID:  1,
		ExpiresAt:  time.Now().Add(-time.Minute),
	})
	if err == nil {
		t.Fatalf("saving an already-expired quote must fail")
	}
}
