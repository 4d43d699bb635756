package exchange

// Quote is the USDC side of a USD conversion, after the network fee.
type Quote struct {
	UsdcAmount   float64 `json:"usdcAmount"`
	ExchangeRate float64 `json:"exchangeRate"`
	NetworkFee   float64 `json:"networkFee"`
}

// Calculator converts USD amounts to USDC with fixed, process-wide constants.
// A production build would source the rate from an oracle; here it is plain
// configuration so quotes are deterministic.
type Calculator struct {
	rate    float64
	feeRate float64
}

func NewCalculator(rate, feeRate float64) *Calculator {
	return &Calculator{rate: rate, feeRate: feeRate}
}

// Convert quotes usdAmount. Pure, no I/O.
func (c *Calculator) Convert(usdAmount float64) Quote {
	networkFee := usdAmount * c.feeRate
	return Quote{
		UsdcAmount:   usdAmount*c.rate - networkFee,
		ExchangeRate: c.rate,
		NetworkFee:   networkFee,
	}
}
