package purchases

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SimulatedVerifier stands in for a real blockchain oracle. It accepts
// any well-formed transaction id for a non-negative amount (the
// catalog allows free projects), which is what the store runs on until
// a network adapter lands. The ctx contract matches a real oracle's,
// so swapping one in touches nothing else.
type SimulatedVerifier struct{}

func NewSimulatedVerifier() *SimulatedVerifier {
	return &SimulatedVerifier{}
}

func (v *SimulatedVerifier) Verify(ctx context.Context, amount decimal.Decimal, currency, transactionID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if strings.TrimSpace(transactionID) == "" {
		return false, fmt.Errorf("transaction id is required")
	}
	if strings.TrimSpace(currency) == "" {
		return false, fmt.Errorf("currency is required")
	}
	if amount.IsNegative() {
		return false, nil
	}

	return true, nil
}
