// Package subscriber keeps the two venue connectors subscribed to the
// market pairs the external matching pipeline has confirmed.
package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pmarketarb/pmproxy/internal/connector/polymarket"
	"github.com/pmarketarb/pmproxy/internal/domain"
)

// DefaultPairLimit caps how many matches one refresh pulls, highest
// combined volume first.
const DefaultPairLimit = 250

// pairQuery ranks both venues' markets by volume and returns confirmed,
// nowhere-rejected matches ordered by combined rank. market_b's
// platform_data carries the CLOB token id pair for the Polymarket side.
const pairQuery = `
WITH kalshi_rankings AS (
	SELECT m.id, ROW_NUMBER() OVER (ORDER BY COALESCE(m.volume, 0) DESC) AS volume_rank
	FROM markets m JOIN platforms p ON m.platform_id = p.id
	WHERE p.code = 'kalshi' AND m.volume IS NOT NULL
),
polymarket_rankings AS (
	SELECT m.id, ROW_NUMBER() OVER (ORDER BY COALESCE(m.volume, 0) DESC) AS volume_rank
	FROM markets m JOIN platforms p ON m.platform_id = p.id
	WHERE p.code = 'polymarket' AND m.volume IS NOT NULL
)
SELECT
	mm.id,
	CASE WHEN platform_a.code = 'kalshi' THEN market_a.external_id
	     ELSE market_b.external_id END AS kalshi_ticker,
	CASE WHEN platform_a.code = 'polymarket' THEN market_a.external_id
	     ELSE market_b.external_id END AS poly_external_id,
	CASE WHEN platform_a.code = 'polymarket' THEN market_a.platform_data
	     ELSE market_b.platform_data END AS poly_platform_data,
	COALESCE(mm.is_inversed, FALSE) AS is_inversed
FROM market_matches mm
LEFT JOIN markets market_a ON mm.market_id_a = market_a.id
LEFT JOIN markets market_b ON mm.market_id_b = market_b.id
LEFT JOIN platforms platform_a ON market_a.platform_id = platform_a.id
LEFT JOIN platforms platform_b ON market_b.platform_id = platform_b.id
LEFT JOIN kalshi_rankings rank_k ON rank_k.id =
	CASE WHEN platform_a.code = 'kalshi' THEN market_a.id ELSE market_b.id END
LEFT JOIN polymarket_rankings rank_p ON rank_p.id =
	CASE WHEN platform_a.code = 'polymarket' THEN market_a.id ELSE market_b.id END
WHERE mm.ai_status = 'confirmed'
  AND mm.close_condition_ai_status != 'rejected'
  AND mm.user_status != 'rejected'
  AND mm.close_condition_user_status != 'rejected'
ORDER BY COALESCE(rank_k.volume_rank, 999999) + COALESCE(rank_p.volume_rank, 999999) ASC,
         mm.created_at DESC
LIMIT $1`

// PostgresPairSource reads confirmed matched pairs from the matching
// pipeline's database.
type PostgresPairSource struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	limit  int
}

// NewPostgresPairSource creates a source reading at most limit pairs per
// call; limit <= 0 selects DefaultPairLimit.
func NewPostgresPairSource(pool *pgxpool.Pool, logger *slog.Logger, limit int) *PostgresPairSource {
	if limit <= 0 {
		limit = DefaultPairLimit
	}
	return &PostgresPairSource{
		pool:   pool,
		logger: logger.With(slog.String("component", "pair_source")),
		limit:  limit,
	}
}

// ListActive fetches confirmed pairs, highest combined volume first. Rows
// missing a ticker or a usable token id pair are skipped, not fatal.
func (s *PostgresPairSource) ListActive(ctx context.Context) ([]domain.MatchedPair, error) {
	rows, err := s.pool.Query(ctx, pairQuery, s.limit)
	if err != nil {
		return nil, fmt.Errorf("subscriber: query matched pairs: %w", err)
	}
	defer rows.Close()

	var pairs []domain.MatchedPair
	for rows.Next() {
		var (
			id           string
			ticker       *string
			polyExtID    *string
			platformData []byte
			inversed     bool
		)
		if err := rows.Scan(&id, &ticker, &polyExtID, &platformData, &inversed); err != nil {
			return nil, fmt.Errorf("subscriber: scan matched pair: %w", err)
		}

		if ticker == nil || strings.TrimSpace(*ticker) == "" || polyExtID == nil {
			continue
		}
		yesID, noID, ok := tokenIDsFromPlatformData(platformData)
		if !ok {
			s.logger.Debug("skipping pair without token ids", slog.String("pair_id", id))
			continue
		}

		pairs = append(pairs, domain.MatchedPair{
			ID:               id,
			KalshiTicker:     strings.TrimSpace(*ticker),
			PolyYesTokenID:   yesID,
			PolyNoTokenID:    noID,
			PolyInstrumentID: *polyExtID,
			Inverted:         inversed,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("subscriber: read matched pairs: %w", err)
	}

	s.logger.Info("fetched matched pairs", slog.Int("count", len(pairs)))
	return pairs, nil
}

// tokenIDsFromPlatformData extracts the two CLOB token ids from a market's
// platform_data JSON. clobTokenIds arrives either as a JSON array or as a
// string holding a JSON array; both forms are accepted and the ids are
// canonicalized to decimal.
func tokenIDsFromPlatformData(data []byte) (yesID, noID string, ok bool) {
	if len(data) == 0 {
		return "", "", false
	}

	var pd struct {
		ClobTokenIDs json.RawMessage `json:"clobTokenIds"`
	}
	if err := json.Unmarshal(data, &pd); err != nil || len(pd.ClobTokenIDs) == 0 {
		return "", "", false
	}

	raw := pd.ClobTokenIDs
	var nested string
	if err := json.Unmarshal(raw, &nested); err == nil {
		raw = json.RawMessage(nested)
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil || len(ids) < 2 {
		return "", "", false
	}

	yesID, err := polymarket.CanonicalTokenID(ids[0])
	if err != nil {
		return "", "", false
	}
	noID, err = polymarket.CanonicalTokenID(ids[1])
	if err != nil {
		return "", "", false
	}
	return yesID, noID, true
}
