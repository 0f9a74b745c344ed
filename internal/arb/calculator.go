// Package arb computes depth-aware cross-venue arbitrage over matched
// binary-outcome markets. Buying YES on one venue and NO on the other locks
// in 1.0 at settlement; the opportunity is the gap between that payout and
// the combined cost of the two legs, walked through real ask depth.
package arb

import (
	"github.com/pmarketarb/pmproxy/internal/domain"
)

// DefaultThreshold is the minimum spread for an opportunity to be flagged
// actionable. 0.001 is a 0.1% edge, roughly venue fee noise.
const DefaultThreshold = 0.001

// Engine evaluates matched pairs against the live book store.
type Engine struct {
	store     domain.BookStore
	threshold float64
}

// NewEngine creates an engine reading from store. threshold <= 0 selects
// DefaultThreshold.
func NewEngine(store domain.BookStore, threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{store: store, threshold: threshold}
}

// Compute evaluates both arbitrage directions for pair and returns the
// better one with its depth walk. All four best asks must be present and
// strictly inside (0,1); otherwise the result carries HasSignal=false and
// whatever asks were observed, so callers can tell "no data" from "no edge".
func (e *Engine) Compute(pair domain.MatchedPair) domain.ArbResult {
	kalshiYes := e.view(pair.KalshiYesKey())
	kalshiNo := e.view(pair.KalshiNoKey())
	polyYes := e.view(pair.YesToken())
	polyNo := e.view(pair.NoToken())

	res := domain.ArbResult{
		PairID:       pair.ID,
		KalshiYesAsk: kalshiYes.BestAsk(),
		KalshiNoAsk:  kalshiNo.BestAsk(),
		PolyYesAsk:   polyYes.BestAsk(),
		PolyNoAsk:    polyNo.BestAsk(),
	}

	if !validAsk(res.KalshiYesAsk) || !validAsk(res.KalshiNoAsk) ||
		!validAsk(res.PolyYesAsk) || !validAsk(res.PolyNoAsk) {
		return res
	}
	res.HasSignal = true

	spreadKYPN := 1.0 - (res.KalshiYesAsk + res.PolyNoAsk)
	spreadPYKN := 1.0 - (res.PolyYesAsk + res.KalshiNoAsk)

	// Ties go to the Kalshi-YES direction.
	var yesView, noView domain.OrderBookView
	var yesBest, noBest float64
	var yesLeg, noLeg domain.Leg
	if spreadPYKN > spreadKYPN {
		res.Direction = domain.DirectionPolyYesKalshiNo
		res.Spread = spreadPYKN
		yesView, yesBest, yesLeg = polyYes, res.PolyYesAsk, domain.LegPolyYes
		noView, noBest, noLeg = kalshiNo, res.KalshiNoAsk, domain.LegKalshiNo
	} else {
		res.Direction = domain.DirectionKalshiYesPolyNo
		res.Spread = spreadKYPN
		yesView, yesBest, yesLeg = kalshiYes, res.KalshiYesAsk, domain.LegKalshiYes
		noView, noBest, noLeg = polyNo, res.PolyNoAsk, domain.LegPolyNo
	}

	// Walk each leg's ladder against the other leg's best ask. The walk
	// stops as soon as a level's combined cost reaches settlement value.
	res.YesLegDepth = walkDepth(yesView.Asks, noBest)
	res.NoLegDepth = walkDepth(noView.Asks, yesBest)
	res.MaxSize = min(res.YesLegDepth.Size, res.NoLegDepth.Size)

	if res.YesLegDepth.Size <= res.NoLegDepth.Size {
		res.ConstrainingLeg = yesLeg
	} else {
		res.ConstrainingLeg = noLeg
	}

	if res.MaxSize > 0 {
		// Profit for the executable size. The constraining leg's full walk
		// already prices exactly MaxSize; the other leg gets re-walked with
		// a cap so its deeper levels past MaxSize never count.
		var constrainingAvg, otherBest float64
		if res.ConstrainingLeg == yesLeg {
			res.TotalProfit = res.YesLegDepth.Profit
			constrainingAvg, otherBest = res.YesLegDepth.AvgPrice, noBest
		} else {
			res.TotalProfit = constrainedProfit(noView.Asks, yesBest, res.MaxSize)
			constrainingAvg, otherBest = res.NoLegDepth.AvgPrice, yesBest
		}
		res.TotalCost = (constrainingAvg + otherBest) * res.MaxSize
		if res.TotalCost > 0 {
			res.ProfitMargin = res.TotalProfit / res.TotalCost
		}
	}

	res.Actionable = res.Spread > e.threshold
	return res
}

// view fetches a full-depth book, treating a missing key as an empty book.
func (e *Engine) view(key string) domain.OrderBookView {
	v, err := e.store.Get(key, 0)
	if err != nil {
		return domain.OrderBookView{}
	}
	return v
}

func validAsk(price float64) bool {
	return price > 0 && price < 1.0
}

// walkDepth consumes asks (ascending) while price+otherBest stays below 1.0,
// returning total consumable size, volume-weighted average price, and profit
// realized at the actual per-level prices.
func walkDepth(asks []domain.PriceLevel, otherBest float64) domain.LegDepth {
	var size, weighted, profit float64
	for _, lvl := range asks {
		combined := lvl.Price + otherBest
		if combined >= 1.0 {
			break
		}
		size += lvl.Size
		weighted += lvl.Size * lvl.Price
		profit += (1.0 - combined) * lvl.Size
	}
	d := domain.LegDepth{Size: size, Profit: profit}
	if size > 0 {
		d.AvgPrice = weighted / size
	}
	return d
}

// constrainedProfit is walkDepth capped at maxSize units, taking partial
// fills at the level where the cap lands.
func constrainedProfit(asks []domain.PriceLevel, otherBest, maxSize float64) float64 {
	var profit float64
	remaining := maxSize
	for _, lvl := range asks {
		if remaining <= 0 {
			break
		}
		combined := lvl.Price + otherBest
		if combined >= 1.0 {
			break
		}
		take := min(lvl.Size, remaining)
		remaining -= take
		profit += (1.0 - combined) * take
	}
	return profit
}
