package service

import "errors"

var (
	// ErrSettlementInProgress rejects a second settle call for a transaction
	// that already left PENDING. One settlement per record, ever.
	ErrSettlementInProgress = errors.New("settlement already in progress")

	// ErrOfferExpired rejects transaction creation from a stale offer.
	ErrOfferExpired = errors.New("offer has expired, please re-validate the card")
)

// ValidationKind discriminates card validation failures so callers can treat
// them uniformly as 400s while keeping the specific reason testable.
type ValidationKind int

const (
	KindUnknownProvider ValidationKind = iota
	KindInvalidLength
	KindInvalidFormat
	KindPinRequired
	KindInvalidCard
	KindUnsupportedAmount
)

// ValidationError is a user-facing card validation failure. Message is safe to
// surface verbatim.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// GatewayError wraps a chain submission failure whose message the settlement
// contract surfaces to the caller.
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string {
	return e.Err.Error()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
