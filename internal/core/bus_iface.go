package core

import "context"

// Bus moves serialized messages between named channels. The in-process and
// cross-process implementations share this contract.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	Close() error
}

type Subscription interface {
	Channel() string
	// C is closed once the subscription ends.
	C() <-chan []byte
	Close() error
}
