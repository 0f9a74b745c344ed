package subscriber

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pmarketarb/pmproxy/internal/domain"
)

// DefaultRefreshInterval is how often the matched-pair set is re-read.
const DefaultRefreshInterval = 5 * time.Minute

// tickerSubscriber is the slice of the connector contract the coordinator
// drives on the Kalshi side.
type tickerSubscriber interface {
	SetSubscriptions(ids []string)
}

// tokenSubscriber adds the token-to-instrument alias push used on the
// Polymarket side.
type tokenSubscriber interface {
	SetSubscriptions(ids []string)
	SetInstrumentAliases(mapping map[string]string)
}

// Coordinator periodically reads the active matched pairs and pushes the
// derived watch-lists into both connectors. Pushes are idempotent: the
// connectors replace their desired sets wholesale and already-stored books
// survive a re-push.
type Coordinator struct {
	source   domain.PairSource
	kalshi   tickerSubscriber
	poly     tokenSubscriber
	logger   *slog.Logger
	interval time.Duration

	mu    sync.RWMutex
	pairs []domain.MatchedPair
}

// NewCoordinator wires a pair source to the two connectors. interval <= 0
// selects DefaultRefreshInterval.
func NewCoordinator(source domain.PairSource, kalshi tickerSubscriber, poly tokenSubscriber, logger *slog.Logger, interval time.Duration) *Coordinator {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Coordinator{
		source:   source,
		kalshi:   kalshi,
		poly:     poly,
		logger:   logger.With(slog.String("component", "subscriber")),
		interval: interval,
	}
}

// Run refreshes once immediately, then on every interval tick until ctx is
// canceled. A failed refresh keeps the previous subscriptions in place.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Error("initial pair refresh failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Error("pair refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Refresh re-reads the pair set and pushes the derived ticker and token
// watch-lists into the connectors.
func (c *Coordinator) Refresh(ctx context.Context) error {
	pairs, err := c.source.ListActive(ctx)
	if err != nil {
		return err
	}

	tickers := make([]string, 0, len(pairs))
	seenTickers := make(map[string]struct{}, len(pairs))
	tokens := make([]string, 0, 2*len(pairs))
	seenTokens := make(map[string]struct{}, 2*len(pairs))
	aliases := make(map[string]string, 2*len(pairs))

	for _, p := range pairs {
		if _, ok := seenTickers[p.KalshiTicker]; !ok {
			seenTickers[p.KalshiTicker] = struct{}{}
			tickers = append(tickers, p.KalshiTicker)
		}
		for _, tokenID := range []string{p.PolyYesTokenID, p.PolyNoTokenID} {
			if tokenID == "" {
				continue
			}
			if _, ok := seenTokens[tokenID]; !ok {
				seenTokens[tokenID] = struct{}{}
				tokens = append(tokens, tokenID)
			}
			aliases[tokenID] = p.PolyInstrumentID
		}
	}

	if len(tickers) > 0 {
		c.kalshi.SetSubscriptions(tickers)
	}
	if len(tokens) > 0 {
		c.poly.SetInstrumentAliases(aliases)
		c.poly.SetSubscriptions(tokens)
	}

	c.mu.Lock()
	c.pairs = pairs
	c.mu.Unlock()

	c.logger.Info("subscriptions refreshed",
		slog.Int("pairs", len(pairs)),
		slog.Int("tickers", len(tickers)),
		slog.Int("tokens", len(tokens)),
	)
	return nil
}

// Pairs returns a copy of the most recently fetched pair set.
func (c *Coordinator) Pairs() []domain.MatchedPair {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.MatchedPair, len(c.pairs))
	copy(out, c.pairs)
	return out
}
