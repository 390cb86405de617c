package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// Amounts go over the wire as JSON numbers, matching the clients that
// already consume this API.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type CheckoutResponse struct {
	CheckoutID     string          `json:"checkoutId"`
	ProjectID      int64           `json:"projectId"`
	ProjectTitle   string          `json:"projectTitle"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	PaymentAddress string          `json:"paymentAddress"`
	ExpiresAt      time.Time       `json:"expiresAt"`
}

type VerifyRequest struct {
	ProjectID     int64  `json:"projectId"`
	CheckoutID    string `json:"checkoutId"`
	TransactionID string `json:"transactionId"`
}

type VerifyResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	PurchaseID  int64  `json:"purchaseId,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}
