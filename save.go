package trialsink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	otelAPI "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/m-mizutani/trialsink"

// SaveOutcome is the terminal outcome of Saver.Save.
type SaveOutcome int

const (
	// SaveSkipped means the log was empty and nothing was persisted.
	SaveSkipped SaveOutcome = iota

	// SavedRemote means the table was uploaded to the remote session.
	SavedRemote

	// SavedLocal means the table was handed to the local deliverer.
	SavedLocal
)

// String returns the string representation of the save outcome.
func (x SaveOutcome) String() string {
	switch x {
	case SaveSkipped:
		return "skipped"
	case SavedRemote:
		return "remote"
	case SavedLocal:
		return "local"
	default:
		return fmt.Sprintf("SaveOutcome(%d)", int(x))
	}
}

// Saved reports whether the table reached a destination.
func (x SaveOutcome) Saved() bool {
	return x != SaveSkipped
}

// SaveResult describes what Save did.
type SaveResult struct {
	Outcome  SaveOutcome
	Filename string
	Rows     int
}

// SaverOption configures a Saver.
type SaverOption func(*Saver)

// WithRemote sets the remote session tried before local delivery.
func WithRemote(remote RemoteSession) SaverOption {
	return func(s *Saver) {
		s.remote = remote
	}
}

// WithProjector sets the projector used to build the table.
func WithProjector(p *Projector) SaverOption {
	return func(s *Saver) {
		s.projector = p
	}
}

// WithClock sets the time source for filename timestamps. Default: time.Now.
func WithClock(now func() time.Time) SaverOption {
	return func(s *Saver) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SaverOption {
	return func(s *Saver) {
		s.logger = logger
	}
}

// WithTracerProvider sets an explicit TracerProvider.
// If not set, the global TracerProvider is used.
func WithTracerProvider(tp otelTrace.TracerProvider) SaverOption {
	return func(s *Saver) {
		s.tracerProvider = tp
	}
}

// Saver persists the projected trial log, preferring the remote session and falling back to
// the local deliverer.
type Saver struct {
	log       *TrialLog
	local     Deliverer
	remote    RemoteSession
	projector *Projector
	now       func() time.Time
	logger    *slog.Logger

	tracerProvider otelTrace.TracerProvider
	tracer         otelTrace.Tracer
}

// NewSaver creates a Saver for log. local receives the table whenever the remote session is
// unavailable or the upload fails.
func NewSaver(log *TrialLog, local Deliverer, opts ...SaverOption) *Saver {
	s := &Saver{
		log:       log,
		local:     local,
		projector: NewProjector(),
		now:       time.Now,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.tracerProvider == nil {
		s.tracerProvider = otelAPI.GetTracerProvider()
	}
	s.tracer = s.tracerProvider.Tracer(tracerName)

	return s
}

// Save exports the log. It returns SaveSkipped when there is nothing to export, SavedRemote when
// the upload succeeded, and otherwise delivers the same table locally and returns SavedLocal.
// A failed remote attempt never prevents local delivery; an error is returned only when the
// local deliverer itself fails.
func (x *Saver) Save(ctx context.Context, participantID string) (res *SaveResult, err error) {
	ctx, span := x.tracer.Start(ctx, "save",
		otelTrace.WithSpanKind(otelTrace.SpanKindInternal),
	)
	defer func() {
		if res != nil {
			span.SetAttributes(
				attribute.String("trialsink.outcome", res.Outcome.String()),
				attribute.Int("trialsink.rows", res.Rows),
			)
		}
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	tbl := x.projector.ToTable(x.log.All())
	if tbl == nil {
		x.logger.Info("no trials logged, nothing to save")
		return &SaveResult{Outcome: SaveSkipped}, nil
	}

	content := tbl.Bytes()
	now := x.now()

	if x.remote != nil && x.remote.Active() {
		filename := RemoteFilename(participantID, now)
		if err := x.remote.Upload(ctx, filename, string(content)); err != nil {
			x.logger.Warn("remote save failed, falling back to local delivery",
				slog.String("filename", filename),
				slog.Any("error", err),
			)
		} else {
			// The result is already stored; a failed close only leaves the session unfinished
			// on the service side.
			if err := x.remote.Close(ctx); err != nil {
				x.logger.Warn("failed to close remote session", slog.Any("error", err))
			}
			x.logger.Info("table saved to remote session",
				slog.String("filename", filename),
				slog.Int("rows", tbl.NumRows()),
			)
			return &SaveResult{Outcome: SavedRemote, Filename: filename, Rows: tbl.NumRows()}, nil
		}
	}

	filename := LocalFilename(participantID, now)
	if x.local == nil {
		return nil, goerr.New("no local deliverer configured", goerr.V("filename", filename))
	}
	if err := x.local.Deliver(ctx, filename, ContentTypeCSV, content); err != nil {
		return nil, goerr.Wrap(err, "failed to deliver table locally", goerr.V("filename", filename))
	}

	x.logger.Info("table delivered locally",
		slog.String("filename", filename),
		slog.Int("rows", tbl.NumRows()),
	)
	return &SaveResult{Outcome: SavedLocal, Filename: filename, Rows: tbl.NumRows()}, nil
}
