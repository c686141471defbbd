package event

import "context"

// Sink receives resource events after a successful write.
type Sink interface {
	Publish(ctx context.Context, ev *ResourceEvent)
}

// Fanout hands every event to each sink in order.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, ev *ResourceEvent) {
	for _, s := range f {
		s.Publish(ctx, ev)
	}
}
