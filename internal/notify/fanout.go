package notify

import (
	"context"
	"errors"
	"fmt"
)

// Fanout publishes every event to all of its publishers. A failing publisher
// does not stop delivery to the others; the joined error is returned.
type Fanout struct {
	publishers []namedPublisher
}

type namedPublisher struct {
	name string
	pub  Publisher
}

// NewFanout builds an empty fanout; add sinks with Add.
func NewFanout() *Fanout {
	return &Fanout{}
}

// Add registers a named sink. Nil publishers are ignored.
func (f *Fanout) Add(name string, pub Publisher) *Fanout {
	if pub != nil {
		f.publishers = append(f.publishers, namedPublisher{name: name, pub: pub})
	}
	return f
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	return len(f.publishers)
}

func (f *Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.pub.Publish(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
		}
	}
	return errors.Join(errs...)
}
