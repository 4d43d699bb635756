// Package chain abstracts the blockchain RPC surface behind a capability
// interface. The only implementation in this repository is a simulation; the
// orchestration layer never knows the difference, so a real client can be
// dropped in via configuration.
package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/Elishaokon13/loonpay/internal/config"
)

// ErrSubmitRejected wraps every broadcast rejection from the gateway.
var ErrSubmitRejected = errors.New("transaction rejected by network")

// UnsignedTransfer is the payload the client signs out-of-band.
type UnsignedTransfer struct {
	TxData       string
	EstimatedGas uint64
}

// TxStatus is one confirmation snapshot for a submitted transaction.
type TxStatus struct {
	Confirmed     bool
	BlockNumber   uint64
	Confirmations int
}

// Gateway is the chain client capability used by the settlement flow.
type Gateway interface {
	BuildTransfer(ctx context.Context, toAddress string, amount float64, fromAddress string) (UnsignedTransfer, error)
	Submit(ctx context.Context, signedTx string) (string, error)
	PollStatus(ctx context.Context, txHash string) (TxStatus, error)
}

// SimulatedGateway fakes a chain RPC client: fixed gas estimates, random
// hashes, probabilistic confirmation. Latency simulation is off by default so
// tests run instantly.
type SimulatedGateway struct {
	cfg config.Chain

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulatedGateway(cfg config.Chain) *SimulatedGateway {
	return &SimulatedGateway{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// BuildTransfer encodes the recipient into a mock ERC-20 call payload. The
// encoding is deterministic; gas is a constant since nothing estimates it.
func (g *SimulatedGateway) BuildTransfer(ctx context.Context, toAddress string, amount float64, fromAddress string) (UnsignedTransfer, error) {
	if err := g.sleep(ctx, 800*time.Millisecond); err != nil {
		return UnsignedTransfer{}, err
	}
	return UnsignedTransfer{
		TxData:       "0x70a08231000000000000000000000000" + strings.TrimPrefix(fromAddress, "0x"),
		EstimatedGas: g.cfg.EstimatedGas,
	}, nil
}

// Submit fakes broadcasting a signed transaction. Rejections happen with the
// configured probability; the default config never rejects.
func (g *SimulatedGateway) Submit(ctx context.Context, signedTx string) (string, error) {
	if err := g.sleep(ctx, 2*time.Second); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rng.Float64() < g.cfg.FailureProbability {
		return "", fmt.Errorf("%w: broadcast failed", ErrSubmitRejected)
	}

	hash := make([]byte, 32)
	g.rng.Read(hash)
	return "0x" + hex.EncodeToString(hash), nil
}

// PollStatus fakes a confirmation query. Each call independently confirms with
// the configured probability; a real client would track a monotonically
// growing confirmation count instead.
func (g *SimulatedGateway) PollStatus(ctx context.Context, txHash string) (TxStatus, error) {
	if err := g.sleep(ctx, time.Second); err != nil {
		return TxStatus{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rng.Float64() >= g.cfg.ConfirmProbability {
		return TxStatus{}, nil
	}
	return TxStatus{
		Confirmed:     true,
		BlockNumber:   15_000_000 + uint64(g.rng.Intn(1_000_000)),
		Confirmations: 1 + g.rng.Intn(10),
	}, nil
}

func (g *SimulatedGateway) sleep(ctx context.Context, d time.Duration) error {
	if !g.cfg.SimulateLatency {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
