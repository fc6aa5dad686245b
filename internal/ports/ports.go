package ports

import (
    "context"

    "netaudit/internal/domain"
)

// IntelligenceSource produces the raw scan record for a target. Any failure is
// reported as a domain IntelligenceUnavailable error.
type IntelligenceSource interface {
    Fetch(ctx context.Context, target string, profile domain.ScanProfile) (*domain.RawScanRecord, error)
}

// NarrativeGenerator turns a scan record and its precomputed score into a
// human-readable assessment.
type NarrativeGenerator interface {
    Narrate(ctx context.Context, record *domain.RawScanRecord, score int) (*domain.Narrative, error)
}

// Scanner is the consumer-facing surface of the orchestrator.
type Scanner interface {
    Begin(target string) (runID string, err error)
    Execute(ctx context.Context, runID string) (*domain.AnalysisResult, error)
    Abort(runID, reason string) error
    Reset()
    History() []domain.HistoryItem
}

// Profiles provides the latest assessment per target.
type Profiles interface {
    GetLatest(ctx context.Context, target string) (domain.HistoryItem, error)
}
