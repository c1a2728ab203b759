package audit

import "context"

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher is what services depend on to emit events.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
