package models

import (
	"strings"
	"time"
)

// Status is the settlement state of a ledger record.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Transaction is one row of the append-only ledger.
type Transaction struct {
	ID            int64     `json:"id"`
	CardNumber    string    `json:"cardNumber"`
	CardAmount    float64   `json:"cardAmount"`
	UsdcAmount    float64   `json:"usdcAmount"`
	ProcessingFee float64   `json:"processingFee"`
	NetworkFee    float64   `json:"networkFee"`
	WalletAddress string    `json:"walletAddress"`
	TxHash        string    `json:"txHash,omitempty"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Masked returns a display copy with all but the last four card digits hidden.
func (t Transaction) Masked() Transaction {
	t.CardNumber = MaskCardNumber(t.CardNumber)
	return t
}

// MaskCardNumber hides every digit except the last four.
func MaskCardNumber(cardNumber string) string {
	if len(cardNumber) <= 4 {
		return cardNumber
	}
	return strings.Repeat("*", len(cardNumber)-4) + cardNumber[len(cardNumber)-4:]
}

// Offer is a quoted, time-limited conversion proposal. It is returned to the
// client and never persisted; the client echoes it back on transaction creation.
type Offer struct {
	ProviderID    string    `json:"providerId"`
	CardNumber    string    `json:"cardNumber"`
	CardValueUsd  float64   `json:"cardValueUsd"`
	UsdcAmount    float64   `json:"usdcAmount"`
	ProcessingFee float64   `json:"processingFee"`
	NetworkFee    float64   `json:"networkFee"`
	ExchangeRate  float64   `json:"exchangeRate"`
	ExpiryTime    time.Time `json:"expiryTime"`
}

// ValidateRequest is the payload for POST /api/validate.
type ValidateRequest struct {
	ProviderID string  `json:"providerId"`
	CardNumber string  `json:"cardNumber"`
	Pin        string  `json:"pin,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
}

// CreateTransactionRequest is the payload for POST /api/transactions. The
// client copies the financial fields from its held Offer verbatim.
type CreateTransactionRequest struct {
	ProviderID     string     `json:"providerId"`
	CardNumber     string     `json:"cardNumber"`
	CardValueUsd   float64    `json:"cardValueUsd"`
	UsdcAmount     float64    `json:"usdcAmount"`
	ProcessingFee  float64    `json:"processingFee"`
	NetworkFee     float64    `json:"networkFee"`
	WalletAddress  string     `json:"walletAddress"`
	OfferExpiresAt *time.Time `json:"offerExpiresAt,omitempty"`
}

// CreateTransactionResponse carries the unsigned transfer back to the client.
type CreateTransactionResponse struct {
	TransactionID int64     `json:"transactionId"`
	TxData        string    `json:"txData"`
	EstimatedGas  uint64    `json:"estimatedGas"`
	GasPrice      string    `json:"gasPrice"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// SettleRequest is the payload for POST /api/settle.
type SettleRequest struct {
	TransactionID int64  `json:"transactionId"`
	SignedTx      string `json:"signedTx"`
}

// SettleResponse reports the outcome of a chain submission.
type SettleResponse struct {
	Status                  Status    `json:"status"`
	TxHash                  string    `json:"txHash"`
	EstimatedCompletionTime time.Time `json:"estimatedCompletionTime"`
}

// StatusResponse is the payload for GET /api/status.
type StatusResponse struct {
	Status             Status     `json:"status"`
	TxHash             string     `json:"txHash"`
	BlockConfirmations int        `json:"blockConfirmations"`
	CompletedAt        *time.Time `json:"completedAt"`
}

// Stats aggregates the whole ledger.
type Stats struct {
	TotalCount      int64            `json:"totalCount"`
	TotalCardAmount float64          `json:"totalCardAmount"`
	TotalUsdcAmount float64          `json:"totalUsdcAmount"`
	StatusCounts    map[Status]int64 `json:"statusCounts"`
}

// Pagination describes an offset-based page of ledger records.
type Pagination struct {
	Total   int64 `json:"total"`
	Pages   int64 `json:"pages"`
	Current int   `json:"current"`
}
