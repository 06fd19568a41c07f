package weather

import (
	"context"
	"errors"
	"fmt"
)

// MultiSink publishes to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, loc Location, report DayReport) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, loc, report); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, loc Location, report DayReport) error

func (f SinkFunc) Publish(ctx context.Context, loc Location, report DayReport) error {
	return f(ctx, loc, report)
}
