package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmarketarb/pmproxy/internal/domain"
)

func TestUpsertCreatesAndGetSorts(t *testing.T) {
	s := NewBookStore()
	s.now = func() int64 { return 1000 }

	s.Upsert("T_yes", domain.BookUpdate{
		Bids: map[float64]float64{0.30: 5, 0.35: 7},
		Asks: map[float64]float64{0.45: 20, 0.40: 10},
	})

	view, err := s.Get("T_yes", 0)
	require.NoError(t, err)

	require.Len(t, view.Asks, 2)
	assert.Equal(t, domain.PriceLevel{Price: 0.40, Size: 10}, view.Asks[0])
	assert.Equal(t, domain.PriceLevel{Price: 0.45, Size: 20}, view.Asks[1])

	require.Len(t, view.Bids, 2)
	assert.Equal(t, domain.PriceLevel{Price: 0.35, Size: 7}, view.Bids[0])
	assert.Equal(t, domain.PriceLevel{Price: 0.30, Size: 5}, view.Bids[1])

	assert.Equal(t, int64(1000), view.LastUpdatedMs)
}

func TestUpsertReplacesSideWholesale(t *testing.T) {
	s := NewBookStore()

	s.Upsert("T_yes", domain.BookUpdate{
		Asks: map[float64]float64{0.40: 10, 0.45: 20},
	})
	s.Upsert("T_yes", domain.BookUpdate{
		Asks: map[float64]float64{0.50: 5},
	})

	view, err := s.Get("T_yes", 0)
	require.NoError(t, err)
	require.Len(t, view.Asks, 1)
	assert.Equal(t, 0.50, view.Asks[0].Price)
}

func TestUpsertNilSideLeavesStoredSide(t *testing.T) {
	s := NewBookStore()

	s.Upsert("T_yes", domain.BookUpdate{
		Bids: map[float64]float64{0.30: 5},
		Asks: map[float64]float64{0.40: 10},
	})
	s.Upsert("T_yes", domain.BookUpdate{
		Asks: map[float64]float64{0.41: 12},
	})

	view, err := s.Get("T_yes", 0)
	require.NoError(t, err)
	require.Len(t, view.Bids, 1)
	assert.Equal(t, 0.30, view.Bids[0].Price)
	require.Len(t, view.Asks, 1)
	assert.Equal(t, 0.41, view.Asks[0].Price)
}

func TestUpsertDropsNonPositiveSizes(t *testing.T) {
	s := NewBookStore()

	s.Upsert("T_yes", domain.BookUpdate{
		Asks: map[float64]float64{0.40: 10, 0.45: 0, 0.50: -3},
	})

	view, err := s.Get("T_yes", 0)
	require.NoError(t, err)
	require.Len(t, view.Asks, 1)
	assert.Equal(t, 0.40, view.Asks[0].Price)
}

func TestGetDepthTruncation(t *testing.T) {
	s := NewBookStore()
	s.Upsert("T_yes", domain.BookUpdate{
		Bids: map[float64]float64{0.10: 1, 0.20: 2, 0.30: 3},
		Asks: map[float64]float64{0.40: 4, 0.50: 5, 0.60: 6},
	})

	view, err := s.Get("T_yes", 2)
	require.NoError(t, err)
	require.Len(t, view.Bids, 2)
	require.Len(t, view.Asks, 2)
	// Truncation keeps the best levels on each side.
	assert.Equal(t, 0.30, view.Bids[0].Price)
	assert.Equal(t, 0.40, view.Asks[0].Price)

	full, err := s.Get("T_yes", -1)
	require.NoError(t, err)
	assert.Len(t, full.Asks, 3)
}

func TestGetUnknownKey(t *testing.T) {
	s := NewBookStore()
	_, err := s.Get("missing", 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListIndex(t *testing.T) {
	s := NewBookStore()
	s.now = func() int64 { return 42 }
	s.Upsert("a", domain.BookUpdate{Asks: map[float64]float64{0.5: 1}})
	s.Upsert("b", domain.BookUpdate{Asks: map[float64]float64{0.6: 1}})

	index := s.ListIndex()
	require.Len(t, index, 2)
	keys := map[string]int64{}
	for _, e := range index {
		keys[e.Key] = e.LastUpdatedMs
	}
	assert.Equal(t, int64(42), keys["a"])
	assert.Equal(t, int64(42), keys["b"])
}

func TestSetConnectorStatusFieldMerge(t *testing.T) {
	s := NewBookStore()

	s.SetConnectorStatus(domain.VenueKalshi, domain.StatusUpdate{Connected: domain.BoolPtr(true)})
	s.SetConnectorStatus(domain.VenueKalshi, domain.StatusUpdate{LastMessageMs: domain.Int64Ptr(123)})

	st := s.GetStatus()[domain.VenueKalshi]
	assert.True(t, st.Connected)
	require.NotNil(t, st.LastMessageMs)
	assert.Equal(t, int64(123), *st.LastMessageMs)

	// A later connected-only update keeps the message timestamp.
	s.SetConnectorStatus(domain.VenueKalshi, domain.StatusUpdate{Connected: domain.BoolPtr(false)})
	st = s.GetStatus()[domain.VenueKalshi]
	assert.False(t, st.Connected)
	require.NotNil(t, st.LastMessageMs)
}

func TestSetConnectorStatusUnknownVenue(t *testing.T) {
	s := NewBookStore()
	s.SetConnectorStatus("other", domain.StatusUpdate{Connected: domain.BoolPtr(true)})
	assert.True(t, s.GetStatus()["other"].Connected)
}

func TestGetStatusInitialState(t *testing.T) {
	s := NewBookStore()
	status := s.GetStatus()
	require.Contains(t, status, domain.VenueKalshi)
	require.Contains(t, status, domain.VenuePolymarket)
	assert.False(t, status[domain.VenueKalshi].Connected)
	assert.Nil(t, status[domain.VenueKalshi].LastMessageMs)
}

func TestConcurrentAccess(t *testing.T) {
	s := NewBookStore()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Upsert("T_yes", domain.BookUpdate{
					Asks: map[float64]float64{0.40: float64(j + 1)},
				})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = s.Get("T_yes", 1)
				s.ListIndex()
				s.GetStatus()
			}
		}()
	}
	wg.Wait()

	view, err := s.Get("T_yes", 0)
	require.NoError(t, err)
	require.Len(t, view.Asks, 1)
}
