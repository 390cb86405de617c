package artifacts

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResolvePassesThroughAbsoluteURLs(t *testing.T) {
	svc := NewService(nil, "digistore-artifacts", time.Minute)

	got, err := svc.Resolve(context.Background(), "https://cdn.example.com/trading-bot.zip")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "https://cdn.example.com/trading-bot.zip" {
		t.Fatalf("absolute url must pass through, got %q", got)
	}
}

func TestResolveWithoutClientReturnsRef(t *testing.T) {
	svc := NewService(nil, "digistore-artifacts", time.Minute)

	got, err := svc.Resolve(context.Background(), "downloads/trading-bot.zip")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "downloads/trading-bot.zip" {
		t.Fatalf("unexpected ref: %q", got)
	}
}

func TestResolveEmptyRef(t *testing.T) {
	svc := NewService(nil, "digistore-artifacts", time.Minute)

	if _, err := svc.Resolve(context.Background(), "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
