package domain

// ArbDirection names which pair of legs is being bought.
type ArbDirection string

const (
	// DirectionKalshiYesPolyNo buys YES on Kalshi and NO on Polymarket.
	DirectionKalshiYesPolyNo ArbDirection = "kalshi_yes_poly_no"
	// DirectionPolyYesKalshiNo buys YES on Polymarket and NO on Kalshi.
	DirectionPolyYesKalshiNo ArbDirection = "poly_yes_kalshi_no"
)

// Leg names one side of one venue's market within an arbitrage trade.
type Leg string

const (
	LegKalshiYes Leg = "kalshi_yes"
	LegKalshiNo  Leg = "kalshi_no"
	LegPolyYes   Leg = "poly_yes"
	LegPolyNo    Leg = "poly_no"
)

// LegDepth is the result of walking one leg's ask ladder: the size that can
// be consumed while the combined cost stays below settlement, the
// volume-weighted average price paid over that size, and the profit realized
// at the actual per-level prices.
type LegDepth struct {
	Size     float64 `json:"size"`
	AvgPrice float64 `json:"avgPrice"`
	Profit   float64 `json:"profit"`
}

// ArbResult is the full output of one arbitrage computation over a matched
// pair. HasSignal is false when any of the four best asks is missing or
// outside (0,1); in that state every other numeric field is zero and must
// not be read as a price. A present result with a negative Spread is the
// explicit "no profitable opportunity" state, distinct from missing data.
type ArbResult struct {
	PairID    string `json:"pairId"`
	HasSignal bool   `json:"hasSignal"`

	// Best ask per leg; populated whenever HasSignal is true.
	KalshiYesAsk float64 `json:"kalshiYesAsk"`
	KalshiNoAsk  float64 `json:"kalshiNoAsk"`
	PolyYesAsk   float64 `json:"polyYesAsk"`
	PolyNoAsk    float64 `json:"polyNoAsk"`

	Direction ArbDirection `json:"direction"`
	Spread    float64      `json:"spread"`

	// Depth-aware figures for the chosen direction.
	MaxSize         float64  `json:"maxSize"`
	TotalProfit     float64  `json:"totalProfit"`
	TotalCost       float64  `json:"totalCost"`
	ProfitMargin    float64  `json:"profitMargin"` // TotalProfit / TotalCost
	ConstrainingLeg Leg      `json:"constrainingLeg"`
	YesLegDepth     LegDepth `json:"yesLegDepth"`
	NoLegDepth      LegDepth `json:"noLegDepth"`

	// Actionable is true only when Spread exceeds the configured threshold.
	Actionable bool `json:"actionable"`
}
