package domain

// MatchedPair associates one Kalshi market with one Polymarket market that
// the external matching pipeline believes resolve the same real-world
// question. The pair carries which Polymarket token represents each outcome;
// Inverted means the pipeline's first token answers the question in the
// opposite sense of the Kalshi YES side, so the tokens swap roles.
type MatchedPair struct {
	ID           string
	KalshiTicker string

	// Polymarket CLOB token ids, canonical decimal form.
	PolyYesTokenID string
	PolyNoTokenID  string

	// Pipeline-level market id for Polymarket, used as a store alias.
	PolyInstrumentID string

	Inverted bool
}

// YesToken returns the Polymarket token id playing the YES role for this
// pair, honoring the inversion flag.
func (p MatchedPair) YesToken() string {
	if p.Inverted {
		return p.PolyNoTokenID
	}
	return p.PolyYesTokenID
}

// NoToken returns the Polymarket token id playing the NO role for this pair.
func (p MatchedPair) NoToken() string {
	if p.Inverted {
		return p.PolyYesTokenID
	}
	return p.PolyNoTokenID
}

// KalshiYesKey and KalshiNoKey are the store keys of the synthetic
// single-sided books derived from the Kalshi snapshot channel.
func (p MatchedPair) KalshiYesKey() string { return p.KalshiTicker + "_yes" }

func (p MatchedPair) KalshiNoKey() string { return p.KalshiTicker + "_no" }
