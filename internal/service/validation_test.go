package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Elishaokon13/loonpay/internal/config"
	"github.com/Elishaokon13/loonpay/internal/exchange"
	"github.com/Elishaokon13/loonpay/internal/giftcard"
	"github.com/Elishaokon13/loonpay/internal/models"
)

func testValidationService(t *testing.T) *ValidationService {
	t.Helper()
	registry, err := giftcard.NewRegistry([]config.Provider{
		{ID: "amazon", Name: "Amazon", Denominations: []float64{25, 50, 100, 200}, ExchangeRate: 0.92,
			MinLength: 16, MaxLength: 16, Format: "^[A-Z0-9]{4}-[A-Z0-9]{6}-[A-Z0-9]{4}$"},
		{ID: "walmart", Name: "Walmart", Denominations: []float64{25, 50, 100, 200, 500}, ExchangeRate: 0.90,
			RequiresPin: true, MinLength: 16, MaxLength: 19},
		{ID: "target", Name: "Target", Denominations: []float64{25, 50, 100}, ExchangeRate: 0.88,
			RequiresPin: true, MinLength: 15, MaxLength: 15},
	})
	require.NoError(t, err)

	calc := exchange.NewCalculator(0.995, 0.03)
	client := NewSimulatedProviderClient(0)
	return NewValidationService(registry, client, calc, 15*time.Minute, zap.NewNop())
}

func validationKind(t *testing.T, err error) ValidationKind {
	t.Helper()
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	return vErr.Kind
}

func TestValidateKnownAmount(t *testing.T) {
	svc := testValidationService(t)

	offer, err := svc.Validate(context.Background(), models.ValidateRequest{
		ProviderID: "target",
		CardNumber: "123456789012345",
		Pin:        "1234",
		Amount:     50,
	})
	require.NoError(t, err)

	assert.Equal(t, 50.0, offer.CardValueUsd)
	// Target keeps 12% of face value; the remaining 44 USD is quoted.
	assert.InDelta(t, 6.0, offer.ProcessingFee, 1e-9)
	assert.InDelta(t, 44*0.03, offer.NetworkFee, 1e-9)
	assert.InDelta(t, 44*0.995-44*0.03, offer.UsdcAmount, 1e-9)
	assert.Equal(t, 0.995, offer.ExchangeRate)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), offer.ExpiryTime, 5*time.Second)
}

func TestValidateRandomBalance(t *testing.T) {
	svc := testValidationService(t)

	offer, err := svc.Validate(context.Background(), models.ValidateRequest{
		ProviderID: "target",
		CardNumber: "123456789012345",
		Pin:        "1234",
	})
	require.NoError(t, err)
	assert.Contains(t, []float64{25, 50, 100}, offer.CardValueUsd)
}

func TestValidateFailures(t *testing.T) {
	svc := testValidationService(t)

	tests := []struct {
		name        string
		req         models.ValidateRequest
		wantKind    ValidationKind
		errContains string
	}{
		{
			name:     "unknown provider",
			req:      models.ValidateRequest{ProviderID: "nocorp", CardNumber: "123456789012345"},
			wantKind: KindUnknownProvider,
		},
		{
			name:        "amazon card with fifteen digits",
			req:         models.ValidateRequest{ProviderID: "amazon", CardNumber: "123456789012345"},
			wantKind:    KindInvalidLength,
			errContains: "16 digits",
		},
		{
			name:        "walmart card too short",
			req:         models.ValidateRequest{ProviderID: "walmart", CardNumber: "12345", Pin: "1"},
			wantKind:    KindInvalidLength,
			errContains: "16-19 digits",
		},
		{
			name:     "amazon format mismatch",
			req:      models.ValidateRequest{ProviderID: "amazon", CardNumber: "1234567890123456"},
			wantKind: KindInvalidFormat,
		},
		{
			name:     "missing pin",
			req:      models.ValidateRequest{ProviderID: "walmart", CardNumber: "1234567890123456"},
			wantKind: KindPinRequired,
		},
		{
			name:     "card flagged invalid",
			req:      models.ValidateRequest{ProviderID: "walmart", CardNumber: "123456_invalid_9", Pin: "1234"},
			wantKind: KindInvalidCard,
		},
		{
			name:     "unsupported amount",
			req:      models.ValidateRequest{ProviderID: "target", CardNumber: "123456789012345", Pin: "1234", Amount: 75},
			wantKind: KindUnsupportedAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, validationKind(t, err))
			if tt.errContains != "" {
				assert.Contains(t, err.Error(), tt.errContains)
			}
		})
	}
}
