package domain

import "context"

// BookStore is the shared repository of per-instrument order books and
// connector liveness. Implementations must be safe for concurrent readers
// and concurrent writers; per-key reads are atomic (a reader never sees a
// half-written book) but no cross-key consistency is promised.
type BookStore interface {
	// Upsert merges up into the record for key, creating it when absent.
	// Non-nil sides replace the stored side wholesale.
	Upsert(key string, up BookUpdate)

	// Get returns a sorted view truncated to depth levels per side; depth
	// values <= 0 mean unbounded. Returns ErrNotFound for unknown keys,
	// the normal state during warm-up rather than a fault.
	Get(key string, depth int) (OrderBookView, error)

	// ListIndex enumerates stored keys with their last update time.
	ListIndex() []IndexEntry

	SetConnectorStatus(venue string, up StatusUpdate)
	GetStatus() map[string]ConnectorStatus
}

// PairSource supplies the externally matched instrument pairs worth
// streaming. The matching pipeline itself is out of scope; this is its
// read-side boundary.
type PairSource interface {
	ListActive(ctx context.Context) ([]MatchedPair, error)
}

// Connector is the shared contract of one venue's streaming connection.
type Connector interface {
	// SetSubscriptions replaces the desired watch-list. Safe to call
	// repeatedly with overlapping sets; already-stored books for
	// still-subscribed instruments are untouched. While connected, the
	// full new list is re-sent; while disconnected it is stored and a
	// connection attempt is triggered if none is in flight.
	SetSubscriptions(ids []string)

	// Start begins connecting. A second call while already connected is a
	// no-op beyond keeping the desired subscriptions current.
	Start()

	// Recycle force-closes the live socket and schedules a prompt
	// reconnect.
	Recycle()

	Close() error
}
