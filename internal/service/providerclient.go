package service

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/Elishaokon13/loonpay/internal/giftcard"
)

// ProviderClient is the issuer-side card check: ownership sanity plus balance
// lookup. Real issuers expose this as a network API; the simulation below
// stands in for it, so the validation flow never hardwires the mock.
type ProviderClient interface {
	CheckCard(ctx context.Context, provider *giftcard.Provider, cardNumber, pin string, amount float64) (float64, error)
}

// SimulatedProviderClient fakes the issuer call. Cards shorter than ten
// characters or containing the literal "invalid" are rejected; balances come
// from the requested amount or a random supported denomination.
type SimulatedProviderClient struct {
	latency time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedProviderClient builds the mock issuer. latency of zero disables
// the artificial delay; the real call is I/O bound, which is why the whole
// check sits behind an interface and takes a context.
func NewSimulatedProviderClient(latency time.Duration) *SimulatedProviderClient {
	return &SimulatedProviderClient{
		latency: latency,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *SimulatedProviderClient) CheckCard(ctx context.Context, provider *giftcard.Provider, cardNumber, pin string, amount float64) (float64, error) {
	if c.latency > 0 {
		select {
		case <-time.After(c.latency):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	if len(cardNumber) < 10 || strings.Contains(cardNumber, "invalid") {
		return 0, &ValidationError{Kind: KindInvalidCard, Message: "Invalid gift card number"}
	}

	if amount != 0 {
		if !provider.SupportsDenomination(amount) {
			return 0, &ValidationError{Kind: KindUnsupportedAmount, Message: "Invalid amount for this gift card"}
		}
		return amount, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return provider.Denominations[c.rng.Intn(len(provider.Denominations))], nil
}
