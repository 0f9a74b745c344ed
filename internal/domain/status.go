package domain

// Venue identifiers used as connector status keys and MatchedPair endpoints.
const (
	VenueKalshi     = "kalshi"
	VenuePolymarket = "polymarket"
)

// ConnectorStatus is per-venue liveness bookkeeping. It is not a health
// verdict: judging readiness from these fields is the caller's concern.
// LastMessageMs is nil until the first inbound frame is seen.
type ConnectorStatus struct {
	Connected     bool   `json:"connected"`
	LastMessageMs *int64 `json:"lastMessageMs"`
}

// StatusUpdate is a field-wise merge against a stored ConnectorStatus. Nil
// fields leave the stored value untouched.
type StatusUpdate struct {
	Connected     *bool
	LastMessageMs *int64
}

// BoolPtr returns a pointer to b, for building StatusUpdate values inline.
func BoolPtr(b bool) *bool { return &b }

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 { return &v }
