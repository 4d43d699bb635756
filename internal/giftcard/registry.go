package giftcard

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Elishaokon13/loonpay/internal/config"
)

// Provider is one gift card issuer with its validation rules. Format is nil
// when the issuer declares no card number pattern.
type Provider struct {
	ID            string
	Name          string
	Denominations []float64
	RequiresPin   bool
	ExchangeRate  float64
	MinLength     int
	MaxLength     int
	Format        *regexp.Regexp
}

// SupportsDenomination reports whether amount is one of the provider's
// allowed face values.
func (p *Provider) SupportsDenomination(amount float64) bool {
	for _, d := range p.Denominations {
		if d == amount {
			return true
		}
	}
	return false
}

// Registry is the read-only provider catalog, built once from configuration
// at startup and injected wherever provider rules are needed.
type Registry struct {
	providers map[string]*Provider
}

// NewRegistry compiles the configured catalog. Card number patterns are matched
// case-insensitively, which mirrors how issuers print card codes.
func NewRegistry(cfgs []config.Provider) (*Registry, error) {
	providers := make(map[string]*Provider, len(cfgs))
	for _, c := range cfgs {
		p := &Provider{
			ID:            c.ID,
			Name:          c.Name,
			Denominations: c.Denominations,
			RequiresPin:   c.RequiresPin,
			ExchangeRate:  c.ExchangeRate,
			MinLength:     c.MinLength,
			MaxLength:     c.MaxLength,
		}
		if c.Format != "" {
			re, err := regexp.Compile("(?i)" + c.Format)
			if err != nil {
				return nil, fmt.Errorf("provider %s: bad card number format: %w", c.ID, err)
			}
			p.Format = re
		}
		providers[c.ID] = p
	}
	return &Registry{providers: providers}, nil
}

// Find returns the provider with the given id, or false if unknown.
func (r *Registry) Find(id string) (*Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// ValidateCardNumberLength checks the stripped card number length against the
// provider's bounds. Unknown providers fail the check.
func (r *Registry) ValidateCardNumberLength(providerID, cardNumber string) bool {
	p, ok := r.providers[providerID]
	if !ok {
		return false
	}
	n := len(StripCardNumber(cardNumber))
	return n >= p.MinLength && n <= p.MaxLength
}

// LengthRequirement renders the provider's card number length rule for error
// messages, e.g. "15 digits" or "16-19 digits".
func (r *Registry) LengthRequirement(providerID string) string {
	p, ok := r.providers[providerID]
	if !ok {
		return "Valid card number"
	}
	if p.MinLength == p.MaxLength {
		return fmt.Sprintf("%d digits", p.MinLength)
	}
	return fmt.Sprintf("%d-%d digits", p.MinLength, p.MaxLength)
}

// StripCardNumber removes spaces and dashes before length checks.
func StripCardNumber(cardNumber string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, cardNumber)
}
