package domain

import "context"

// SignalBus publishes arbitrage signals to downstream consumers over both
// an ephemeral channel and a durable ordered stream.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}
