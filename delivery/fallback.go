package delivery

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/trialsink"
)

// FallbackOption configures a Fallback.
type FallbackOption func(*Fallback)

// WithLogger sets the logger used to report failed attempts.
func WithLogger(logger *slog.Logger) FallbackOption {
	return func(f *Fallback) {
		f.logger = logger
	}
}

// Fallback tries its deliverers in order and stops at the first success.
type Fallback struct {
	deliverers []trialsink.Deliverer
	logger     *slog.Logger
}

var _ trialsink.Deliverer = (*Fallback)(nil)

// NewFallback creates a Fallback over deliverers, tried in the given order.
func NewFallback(deliverers []trialsink.Deliverer, opts ...FallbackOption) *Fallback {
	f := &Fallback{
		deliverers: deliverers,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Deliver returns nil as soon as one deliverer succeeds. If all fail, the joined errors are
// returned.
func (f *Fallback) Deliver(ctx context.Context, filename, contentType string, data []byte) error {
	if len(f.deliverers) == 0 {
		return goerr.Wrap(ErrNoDeliverer, "cannot deliver export", goerr.V("filename", filename))
	}

	var errs []error
	for i, d := range f.deliverers {
		err := d.Deliver(ctx, filename, contentType, data)
		if err == nil {
			return nil
		}
		f.logger.Warn("delivery failed, trying next",
			slog.Int("index", i),
			slog.String("filename", filename),
			slog.Any("error", err),
		)
		errs = append(errs, err)
	}

	return goerr.Wrap(errors.Join(errs...), "all deliveries failed", goerr.V("filename", filename))
}
