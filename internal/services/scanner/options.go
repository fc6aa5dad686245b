package scanner

import (
    "log/slog"
    "time"

    "go.opentelemetry.io/otel/trace"

    "netaudit/internal/domain"
    "netaudit/internal/services/scoring"
)

type Option func(*Service)

// WithTiers sets the score -> risk level table. Defaults to scoring.ThreeTier.
func WithTiers(t scoring.TierTable) Option {
    return func(s *Service) { s.tiers = t }
}

// WithProfile sets the scan profile passed to the intelligence source.
func WithProfile(p domain.ScanProfile) Option {
    return func(s *Service) { s.profile = p }
}

func WithLogger(l *slog.Logger) Option {
    return func(s *Service) { s.logger = l }
}

func WithTracer(t trace.Tracer) Option {
    return func(s *Service) { s.tracer = t }
}

func WithClock(now func() time.Time) Option {
    return func(s *Service) { s.now = now }
}

func WithIDs(newID func() string) Option {
    return func(s *Service) { s.newID = newID }
}

// WithLogSink receives every log entry as it is emitted, in order. The sink
// runs while the service lock is held and must not call back into the Service.
func WithLogSink(sink func(domain.LogEntry)) Option {
    return func(s *Service) { s.sink = sink }
}
