package subscriber

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmarketarb/pmproxy/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	pairs []domain.MatchedPair
	err   error
	calls int
}

func (f *fakeSource) ListActive(context.Context) ([]domain.MatchedPair, error) {
	f.calls++
	return f.pairs, f.err
}

type fakeTickerConn struct {
	subs [][]string
}

func (f *fakeTickerConn) SetSubscriptions(ids []string) {
	f.subs = append(f.subs, append([]string(nil), ids...))
}

type fakeTokenConn struct {
	subs    [][]string
	aliases []map[string]string
}

func (f *fakeTokenConn) SetSubscriptions(ids []string) {
	f.subs = append(f.subs, append([]string(nil), ids...))
}

func (f *fakeTokenConn) SetInstrumentAliases(mapping map[string]string) {
	f.aliases = append(f.aliases, mapping)
}

func TestRefreshPushesDerivedWatchLists(t *testing.T) {
	source := &fakeSource{pairs: []domain.MatchedPair{
		{ID: "m1", KalshiTicker: "T1", PolyYesTokenID: "101", PolyNoTokenID: "102", PolyInstrumentID: "mkt-1"},
		{ID: "m2", KalshiTicker: "T2", PolyYesTokenID: "201", PolyNoTokenID: "202", PolyInstrumentID: "mkt-2"},
		// Duplicate ticker and token must collapse.
		{ID: "m3", KalshiTicker: "T1", PolyYesTokenID: "101", PolyNoTokenID: "103", PolyInstrumentID: "mkt-3"},
	}}
	kalshi := &fakeTickerConn{}
	poly := &fakeTokenConn{}
	coord := NewCoordinator(source, kalshi, poly, testLogger(), 0)

	require.NoError(t, coord.Refresh(context.Background()))

	require.Len(t, kalshi.subs, 1)
	assert.Equal(t, []string{"T1", "T2"}, kalshi.subs[0])

	require.Len(t, poly.subs, 1)
	assert.Equal(t, []string{"101", "102", "201", "202", "103"}, poly.subs[0])

	require.Len(t, poly.aliases, 1)
	// The later pair wins the shared token's alias slot.
	assert.Equal(t, "mkt-3", poly.aliases[0]["101"])
	assert.Equal(t, "mkt-1", poly.aliases[0]["102"])
	assert.Equal(t, "mkt-2", poly.aliases[0]["201"])

	pairs := coord.Pairs()
	assert.Len(t, pairs, 3)
}

func TestRefreshFailureKeepsPreviousState(t *testing.T) {
	source := &fakeSource{pairs: []domain.MatchedPair{
		{ID: "m1", KalshiTicker: "T1", PolyYesTokenID: "101", PolyNoTokenID: "102"},
	}}
	kalshi := &fakeTickerConn{}
	poly := &fakeTokenConn{}
	coord := NewCoordinator(source, kalshi, poly, testLogger(), 0)

	require.NoError(t, coord.Refresh(context.Background()))
	require.Len(t, coord.Pairs(), 1)

	source.err = errors.New("db down")
	require.Error(t, coord.Refresh(context.Background()))

	// Connectors saw no second push and the pair set is unchanged.
	assert.Len(t, kalshi.subs, 1)
	assert.Len(t, poly.subs, 1)
	assert.Len(t, coord.Pairs(), 1)
}

func TestRefreshEmptyResultPushesNothing(t *testing.T) {
	source := &fakeSource{}
	kalshi := &fakeTickerConn{}
	poly := &fakeTokenConn{}
	coord := NewCoordinator(source, kalshi, poly, testLogger(), 0)

	require.NoError(t, coord.Refresh(context.Background()))
	assert.Empty(t, kalshi.subs)
	assert.Empty(t, poly.subs)
}

func TestPairsReturnsCopy(t *testing.T) {
	source := &fakeSource{pairs: []domain.MatchedPair{
		{ID: "m1", KalshiTicker: "T1", PolyYesTokenID: "101", PolyNoTokenID: "102"},
	}}
	coord := NewCoordinator(source, &fakeTickerConn{}, &fakeTokenConn{}, testLogger(), 0)
	require.NoError(t, coord.Refresh(context.Background()))

	got := coord.Pairs()
	got[0].KalshiTicker = "mutated"
	assert.Equal(t, "T1", coord.Pairs()[0].KalshiTicker)
}

func TestTokenIDsFromPlatformData(t *testing.T) {
	yes, no, ok := tokenIDsFromPlatformData([]byte(`{"clobTokenIds":["101","102"]}`))
	require.True(t, ok)
	assert.Equal(t, "101", yes)
	assert.Equal(t, "102", no)

	// Stringified JSON array, the other shape seen in platform_data.
	yes, no, ok = tokenIDsFromPlatformData([]byte(`{"clobTokenIds":"[\"0x2a\",\"0x2b\"]"}`))
	require.True(t, ok)
	assert.Equal(t, "42", yes)
	assert.Equal(t, "43", no)

	_, _, ok = tokenIDsFromPlatformData(nil)
	assert.False(t, ok)
	_, _, ok = tokenIDsFromPlatformData([]byte(`{}`))
	assert.False(t, ok)
	_, _, ok = tokenIDsFromPlatformData([]byte(`{"clobTokenIds":["only-one"]}`))
	assert.False(t, ok)
	_, _, ok = tokenIDsFromPlatformData([]byte(`{"clobTokenIds":"not json"}`))
	assert.False(t, ok)
}
