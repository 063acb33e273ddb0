package models

import "time"

// MarketRegime is a coarse classification of a trading day derived from the
// put/call ratio and price dispersion of the filtered chain.
type MarketRegime string

const (
	// RegimeUnknown means no rows survived filtering for the day.
	RegimeUnknown MarketRegime = "unknown"
	// RegimeNeutral is the default when no threshold trips.
	RegimeNeutral MarketRegime = "neutral"
	// RegimeBullish is a low put/call ratio day.
	RegimeBullish MarketRegime = "bullish"
	// RegimeBearish is a high put/call ratio day.
	RegimeBearish MarketRegime = "bearish"
	// RegimeVolatileBullish is bullish sentiment with elevated dispersion.
	RegimeVolatileBullish MarketRegime = "volatile_bullish"
	// RegimeVolatileBearish is bearish sentiment with elevated dispersion.
	RegimeVolatileBearish MarketRegime = "volatile_bearish"
	// RegimeHighVolatility is elevated dispersion without a directional tilt.
	RegimeHighVolatility MarketRegime = "high_volatility"
)

// Valid returns true if the MarketRegime is one of the defined constants.
func (m MarketRegime) Valid() bool {
	switch m {
	case RegimeUnknown, RegimeNeutral, RegimeBullish, RegimeBearish,
		RegimeVolatileBullish, RegimeVolatileBearish, RegimeHighVolatility:
		return true
	default:
		return false
	}
}

// MarketConditions summarizes one trading day's filtered chain. A day with no
// surviving rows yields the zero value with Regime set to RegimeUnknown;
// callers detect that case via Rows == 0 rather than an error.
type MarketConditions struct {
	Date        time.Time    `json:"date"`
	Rows        int          `json:"rows"`
	TotalVolume int64        `json:"total_volume"`
	CallVolume  int64        `json:"call_volume"`
	PutVolume   int64        `json:"put_volume"`
	// PutCallRatio is 0, not NaN, when call volume is zero.
	PutCallRatio float64 `json:"put_call_ratio"`
	// PriceRange is max minus min of close across the slice.
	PriceRange float64 `json:"price_range"`
	AvgPrice   float64 `json:"avg_price"`
	// PriceDispersion is stddev/mean of close, 0 when the mean is 0.
	PriceDispersion float64 `json:"price_dispersion"`
	UniqueStrikes   int     `json:"unique_strikes"`
	// LiquidContracts counts rows with a liquidity score of at least 50.
	LiquidContracts int `json:"liquid_contracts"`
	// UnderlyingEstimate is the heuristic chain-derived spot proxy; zero and
	// HasEstimate false when it could not be computed.
	UnderlyingEstimate float64      `json:"underlying_estimate,omitempty"`
	HasEstimate        bool         `json:"has_estimate"`
	Regime             MarketRegime `json:"regime"`
}
