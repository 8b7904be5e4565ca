package messaging

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler receives one decoded envelope. Returning an error does not stop
// the subscription.
type Handler func(ctx context.Context, env Envelope) error

// Consume subscribes to channel and feeds each envelope to handle until ctx
// is done or the broker closes the subscription. Undecodable messages and
// handler failures are passed to onError.
func Consume(ctx context.Context, broker Broker, channel string, handle Handler, onError func(error)) error {
	msgChan, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	if onError == nil {
		onError = func(error) {}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgChan:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				onError(fmt.Errorf("failed to decode message on %s: %w", channel, err))
				continue
			}
			if err := handle(ctx, env); err != nil {
				onError(err)
			}
		}
	}
}
