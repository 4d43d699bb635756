package config

import (
	"fmt"
	"strings"
)

var DefaultConfig = []byte(`
application: "loonpay"

logger:
  level: "debug"

is_prod_mode: false

server:
  port: 8080

postgres:
  uri: ""

exchange:
  rate: 0.995
  fee_rate: 0.03

offer:
  ttl_minutes: 15

chain:
  service_wallet: "0x1234567890123456789012345678901234567890"
  estimated_gas: 65000
  gas_price: "0.0000001"
  confirm_probability: 0.7
  failure_probability: 0.0
  simulate_latency: false

providers:
  - id: "amazon"
    name: "Amazon"
    denominations: [25, 50, 100, 200]
    requires_pin: false
    exchange_rate: 0.92
    min_length: 16
    max_length: 16
    format: "^[A-Z0-9]{4}-[A-Z0-9]{6}-[A-Z0-9]{4}$"
  - id: "walmart"
    name: "Walmart"
    denominations: [25, 50, 100, 200, 500]
    requires_pin: true
    exchange_rate: 0.90
    min_length: 16
    max_length: 19
  - id: "target"
    name: "Target"
    denominations: [25, 50, 100]
    requires_pin: true
    exchange_rate: 0.88
    min_length: 15
    max_length: 15
  - id: "bestbuy"
    name: "Best Buy"
    denominations: [25, 50, 100, 250]
    requires_pin: false
    exchange_rate: 0.85
    min_length: 12
    max_length: 13
`)

type Config struct {
	Application string     `koanf:"application"`
	Logger      Logger     `koanf:"logger"`
	IsProdMode  bool       `koanf:"is_prod_mode"`
	Server      Server     `koanf:"server"`
	Postgres    Postgres   `koanf:"postgres"`
	Exchange    Exchange   `koanf:"exchange"`
	Offer       Offer      `koanf:"offer"`
	Chain       Chain      `koanf:"chain"`
	Providers   []Provider `koanf:"providers"`
}

type Logger struct {
	Level string `koanf:"level"`
}

type Server struct {
	Port int `koanf:"port"`
}

type Postgres struct {
	URI string `koanf:"uri"`
}

// Exchange holds the process-wide USD to USDC conversion constants.
type Exchange struct {
	Rate    float64 `koanf:"rate"`
	FeeRate float64 `koanf:"fee_rate"`
}

type Offer struct {
	TTLMinutes int `koanf:"ttl_minutes"`
}

// Chain configures the simulated blockchain gateway.
type Chain struct {
	ServiceWallet      string  `koanf:"service_wallet"`
	EstimatedGas       uint64  `koanf:"estimated_gas"`
	GasPrice           string  `koanf:"gas_price"`
	ConfirmProbability float64 `koanf:"confirm_probability"`
	FailureProbability float64 `koanf:"failure_probability"`
	SimulateLatency    bool    `koanf:"simulate_latency"`
}

// Provider is the static validation profile of one gift card issuer.
// MinLength equals MaxLength for issuers with a fixed card number length.
type Provider struct {
	ID            string    `koanf:"id"`
	Name          string    `koanf:"name"`
	Denominations []float64 `koanf:"denominations"`
	RequiresPin   bool      `koanf:"requires_pin"`
	ExchangeRate  float64   `koanf:"exchange_rate"`
	MinLength     int       `koanf:"min_length"`
	MaxLength     int       `koanf:"max_length"`
	Format        string    `koanf:"format"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var problems []string

	if c.Application == "" {
		problems = append(problems, "application: cannot be empty")
	}
	if c.Logger.Level == "" {
		problems = append(problems, "logger.level: cannot be empty")
	}
	if c.Server.Port <= 0 {
		problems = append(problems, "server.port: must be positive")
	}
	if c.Postgres.URI == "" {
		problems = append(problems, "postgres.uri: cannot be empty")
	}
	if c.Exchange.Rate <= 0 || c.Exchange.Rate > 1 {
		problems = append(problems, "exchange.rate: must be in (0, 1]")
	}
	if c.Exchange.FeeRate < 0 || c.Exchange.FeeRate >= 1 {
		problems = append(problems, "exchange.fee_rate: must be in [0, 1)")
	}
	if c.Chain.ConfirmProbability < 0 || c.Chain.ConfirmProbability > 1 {
		problems = append(problems, "chain.confirm_probability: must be in [0, 1]")
	}
	if c.Chain.FailureProbability < 0 || c.Chain.FailureProbability > 1 {
		problems = append(problems, "chain.failure_probability: must be in [0, 1]")
	}
	if c.Offer.TTLMinutes <= 0 {
		problems = append(problems, "offer.ttl_minutes: must be positive")
	}
	if len(c.Providers) == 0 {
		problems = append(problems, "providers: cannot be empty")
	}
	for _, p := range c.Providers {
		if p.ID == "" {
			problems = append(problems, "providers: id cannot be empty")
			continue
		}
		if p.MinLength <= 0 || p.MaxLength < p.MinLength {
			problems = append(problems, fmt.Sprintf("providers.%s: invalid length bounds", p.ID))
		}
		if p.ExchangeRate <= 0 || p.ExchangeRate > 1 {
			problems = append(problems, fmt.Sprintf("providers.%s: exchange_rate must be in (0, 1]", p.ID))
		}
		if len(p.Denominations) == 0 {
			problems = append(problems, fmt.Sprintf("providers.%s: denominations cannot be empty", p.ID))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
