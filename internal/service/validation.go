package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Elishaokon13/loonpay/internal/exchange"
	"github.com/Elishaokon13/loonpay/internal/giftcard"
	"github.com/Elishaokon13/loonpay/internal/models"
)

// ValidationService checks a submitted card against the provider catalog and,
// when the card is good, prices it into a time-limited offer. Stateless:
// offers live only on the client until redeemed.
type ValidationService struct {
	registry *giftcard.Registry
	client   ProviderClient
	calc     *exchange.Calculator
	offerTTL time.Duration
	logger   *zap.Logger
}

func NewValidationService(registry *giftcard.Registry, client ProviderClient, calc *exchange.Calculator, offerTTL time.Duration, logger *zap.Logger) *ValidationService {
	return &ValidationService{
		registry: registry,
		client:   client,
		calc:     calc,
		offerTTL: offerTTL,
		logger:   logger,
	}
}

// Validate runs the full card check and returns a priced offer. All failures
// are *ValidationError with a message safe to show the user.
//
// The local rule checks (provider, length, format, pin) run before the issuer
// call so obviously bad cards never reach the I/O path.
func (s *ValidationService) Validate(ctx context.Context, req models.ValidateRequest) (*models.Offer, error) {
	provider, ok := s.registry.Find(req.ProviderID)
	if !ok {
		return nil, &ValidationError{Kind: KindUnknownProvider, Message: "Invalid gift card provider"}
	}

	if !s.registry.ValidateCardNumberLength(req.ProviderID, req.CardNumber) {
		return nil, &ValidationError{
			Kind: KindInvalidLength,
			Message: fmt.Sprintf("Invalid card number length. %s gift cards require %s.",
				provider.Name, s.registry.LengthRequirement(req.ProviderID)),
		}
	}

	if provider.Format != nil && !provider.Format.MatchString(req.CardNumber) {
		return nil, &ValidationError{
			Kind:    KindInvalidFormat,
			Message: fmt.Sprintf("Invalid card number format for %s gift card.", provider.Name),
		}
	}

	if provider.RequiresPin && req.Pin == "" {
		return nil, &ValidationError{Kind: KindPinRequired, Message: "PIN is required for this gift card"}
	}

	balance, err := s.client.CheckCard(ctx, provider, req.CardNumber, req.Pin, req.Amount)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("card validated",
		zap.String("provider", provider.ID),
		zap.Float64("balance", balance))

	offer := s.buildOffer(provider, req.CardNumber, balance)
	return &offer, nil
}

// buildOffer prices a validated balance: the provider keeps its cut as the
// processing fee, the remainder is quoted into USDC.
func (s *ValidationService) buildOffer(provider *giftcard.Provider, cardNumber string, balance float64) models.Offer {
	processingFee := balance * (1 - provider.ExchangeRate)
	quote := s.calc.Convert(balance - processingFee)

	return models.Offer{
		ProviderID:    provider.ID,
		CardNumber:    cardNumber,
		CardValueUsd:  balance,
		UsdcAmount:    quote.UsdcAmount,
		ProcessingFee: processingFee,
		NetworkFee:    quote.NetworkFee,
		ExchangeRate:  quote.ExchangeRate,
		ExpiryTime:    time.Now().Add(s.offerTTL),
	}
}
