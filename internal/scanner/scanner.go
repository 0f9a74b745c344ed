// Package scanner periodically sweeps the matched pairs, runs the arbitrage
// engine over the live books, and publishes actionable opportunities.
package scanner

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pmarketarb/pmproxy/internal/arb"
	"github.com/pmarketarb/pmproxy/internal/domain"
)

// DefaultInterval is the sweep period. Books refresh on venue snapshot
// cadence, so sub-second sweeps would only re-read unchanged data.
const DefaultInterval = 2 * time.Second

// Channel and stream names for published signals.
const (
	SignalChannel = "arb:signals"
	SignalStream  = "arb:signals:stream"
)

// pairLister supplies the current matched-pair set each sweep.
type pairLister interface {
	Pairs() []domain.MatchedPair
}

// Signal is the published form of one actionable opportunity.
type Signal struct {
	ID         string           `json:"id"`
	DetectedMs int64            `json:"detectedMs"`
	Result     domain.ArbResult `json:"result"`
}

// Scanner drives the arbitrage engine on a timer and pushes actionable
// results onto the signal bus. A nil bus degrades to log-only operation.
type Scanner struct {
	pairs    pairLister
	engine   *arb.Engine
	bus      domain.SignalBus
	logger   *slog.Logger
	interval time.Duration

	now func() time.Time
}

// New creates a scanner. interval <= 0 selects DefaultInterval; bus may be
// nil.
func New(pairs pairLister, engine *arb.Engine, bus domain.SignalBus, logger *slog.Logger, interval time.Duration) *Scanner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scanner{
		pairs:    pairs,
		engine:   engine,
		bus:      bus,
		logger:   logger.With(slog.String("component", "scanner")),
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps on every tick until ctx is canceled.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep evaluates every pair once and publishes the actionable results. It
// returns how many signals were emitted.
func (s *Scanner) Sweep(ctx context.Context) int {
	pairs := s.pairs.Pairs()
	emitted := 0

	for _, pair := range pairs {
		res := s.engine.Compute(pair)
		if !res.HasSignal || !res.Actionable {
			continue
		}
		emitted++

		sig := Signal{
			ID:         uuid.NewString(),
			DetectedMs: s.now().UnixMilli(),
			Result:     res,
		}
		s.logger.Info("arbitrage opportunity",
			slog.String("signal_id", sig.ID),
			slog.String("pair_id", res.PairID),
			slog.String("direction", string(res.Direction)),
			slog.Float64("spread", res.Spread),
			slog.Float64("max_size", res.MaxSize),
			slog.Float64("total_profit", res.TotalProfit),
		)

		if s.bus == nil {
			continue
		}
		payload, err := json.Marshal(sig)
		if err != nil {
			s.logger.Error("marshal signal failed", slog.String("error", err.Error()))
			continue
		}
		if err := s.bus.Publish(ctx, SignalChannel, payload); err != nil {
			s.logger.Warn("publish signal failed", slog.String("error", err.Error()))
		}
		if err := s.bus.StreamAppend(ctx, SignalStream, payload); err != nil {
			s.logger.Warn("stream append failed", slog.String("error", err.Error()))
		}
	}

	return emitted
}
