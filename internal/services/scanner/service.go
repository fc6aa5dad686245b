// Package scanner orchestrates a single security assessment run:
// Acquisition -> Collection -> Extraction -> Analysis -> Reporting.
//
// A Service owns one run at a time. Begin validates the target and moves the
// service from Idle (or a finished run) to Scanning; Execute drives the rest
// of the phases. Every step is recorded as a LogEntry, and a run always ends
// in Reporting with both the scan record and the analysis, or in Error with
// neither.
package scanner

import (
    "context"
    "fmt"
    "log/slog"
    "sync"
    "time"

    "github.com/google/uuid"
    "go.opentelemetry.io/otel/attribute"
    "go.opentelemetry.io/otel/trace"
    "go.opentelemetry.io/otel/trace/noop"

    "netaudit/internal/domain"
    "netaudit/internal/ports"
    "netaudit/internal/services/scoring"
)

var (
    // ErrBusy is wrapped by the InvalidInput error Begin returns while a run
    // is still Scanning or Analyzing.
    ErrBusy = errString("scan already in progress")
    // ErrStaleRun is returned by Execute for a run that was reset, replaced
    // or already executed.
    ErrStaleRun = errString("scan run is no longer active")
)

type errString string

func (e errString) Error() string { return string(e) }

type Service struct {
    intel    ports.IntelligenceSource
    narrator ports.NarrativeGenerator
    history  ports.HistoryRepository

    tiers   scoring.TierTable
    profile domain.ScanProfile
    logger  *slog.Logger
    tracer  trace.Tracer
    now     func() time.Time
    newID   func() string
    sink    func(domain.LogEntry)

    mu       sync.Mutex
    state    domain.State
    phase    string
    target   string
    runID    string
    cancel   context.CancelFunc
    logs     []domain.LogEntry
    record   *domain.RawScanRecord
    analysis *domain.AnalysisResult
}

func New(intel ports.IntelligenceSource, narrator ports.NarrativeGenerator, history ports.HistoryRepository, opts ...Option) *Service {
    s := &Service{
        intel:    intel,
        narrator: narrator,
        history:  history,
        tiers:    scoring.ThreeTier,
        profile:  domain.ScanProfile{VersionDetection: true, ScriptScan: true},
        logger:   slog.Default(),
        tracer:   noop.NewTracerProvider().Tracer("netaudit/scanner"),
        now:      time.Now,
        newID:    uuid.NewString,
        state:    domain.StateIdle,
    }
    for _, opt := range opts {
        opt(s)
    }
    return s
}

// Snapshot is a point-in-time copy of the orchestrator. Record and Analysis
// are only set in Reporting.
type Snapshot struct {
    RunID    string                 `json:"run_id,omitempty"`
    State    domain.State           `json:"state"`
    Phase    string                 `json:"phase,omitempty"`
    Target   string                 `json:"target,omitempty"`
    Logs     []domain.LogEntry      `json:"logs"`
    Record   *domain.RawScanRecord  `json:"record,omitempty"`
    Analysis *domain.AnalysisResult `json:"analysis,omitempty"`
}

// Start runs a full assessment of target and blocks until it finishes.
func (s *Service) Start(ctx context.Context, target string) (*domain.AnalysisResult, error) {
    runID, err := s.Begin(target)
    if err != nil {
        return nil, err
    }
    return s.Execute(ctx, runID)
}

// Begin accepts a new run and performs the Acquisition phase. Invalid targets
// and starts while a run is in flight are rejected without touching state.
func (s *Service) Begin(target string) (string, error) {
    host, registrable, err := NormalizeTarget(target)
    if err != nil {
        s.logger.Warn("rejected scan target", "target", target, "error", err)
        return "", err
    }

    s.mu.Lock()
    defer s.mu.Unlock()
    if !s.state.Accepting() {
        return "", &domain.Error{
            Kind:    domain.KindInvalidInput,
            Message: fmt.Sprintf("a scan of %s is already in progress", s.target),
            Err:     ErrBusy,
        }
    }

    s.clearLocked()
    s.runID = s.newID()
    s.target = host
    s.state = domain.StateScanning
    s.phase = domain.PhaseAcquisition
    s.logger.Info("scan accepted", "run_id", s.runID, "target", host)

    s.emitLocked(domain.LevelInfo, fmt.Sprintf("Initiating security assessment of %s", host))
    s.emitLocked(domain.LevelSuccess, fmt.Sprintf("Target resolved: %s (registrable domain %s)", host, registrable))
    return s.runID, nil
}

// Execute drives an accepted run from Collection to Reporting. The two
// collaborator calls are made without holding the lock; if the run is reset
// meanwhile, their results are discarded and ErrStaleRun is returned.
func (s *Service) Execute(ctx context.Context, runID string) (*domain.AnalysisResult, error) {
    ctx, cancel := context.WithCancel(ctx)
    defer cancel()

    s.mu.Lock()
    if runID == "" || runID != s.runID || s.state != domain.StateScanning || s.cancel != nil {
        s.mu.Unlock()
        return nil, ErrStaleRun
    }
    s.cancel = cancel
    target := s.target
    s.mu.Unlock()

    ctx, span := s.tracer.Start(ctx, "scan", trace.WithAttributes(
        attribute.String("scan.run_id", runID),
        attribute.String("scan.target", target),
    ))
    defer span.End()

    record, err := s.collect(ctx, runID, target)
    if err != nil {
        span.RecordError(err)
        return nil, err
    }
    if err := s.extract(ctx, runID, record); err != nil {
        span.RecordError(err)
        return nil, err
    }
    result, err := s.analyze(ctx, runID, record)
    if err != nil {
        span.RecordError(err)
        return nil, err
    }
    span.SetAttributes(attribute.Int("scan.score", result.Score))
    return result, nil
}

func (s *Service) collect(ctx context.Context, runID, target string) (*domain.RawScanRecord, error) {
    ctx, span := s.tracer.Start(ctx, "scan.collection")
    defer span.End()

    if err := s.enter(runID, domain.StateScanning, domain.PhaseCollection,
        domain.LevelInfo, fmt.Sprintf("Querying intelligence source for %s", target)); err != nil {
        return nil, err
    }

    started := s.now()
    record, err := s.intel.Fetch(ctx, target, s.profile)

    s.mu.Lock()
    defer s.mu.Unlock()
    if s.runID != runID {
        return nil, ErrStaleRun
    }
    if err != nil {
        return nil, s.failLocked(ctx, domain.IntelligenceUnavailable(err))
    }
    if err := record.Validate(); err != nil {
        return nil, s.failLocked(ctx, err)
    }
    s.logger.InfoContext(ctx, "intelligence collected",
        "run_id", runID,
        "target", target,
        "ports", len(record.OpenPorts),
        "duration_ms", s.now().Sub(started).Milliseconds(),
    )

    s.record = record
    open, filtered := 0, 0
    for _, p := range record.OpenPorts {
        if p.State == domain.PortFiltered {
            filtered++
        } else if p.State != domain.PortClosed {
            open++
        }
    }
    s.emitLocked(domain.LevelInfo, fmt.Sprintf("Discovered %d ports on %s (%d open, %d filtered)",
        len(record.OpenPorts), record.Target, open, filtered))
    for _, p := range record.OpenPorts {
        if p.RiskTag == domain.RiskHigh || p.RiskTag == domain.RiskCritical {
            s.emitLocked(domain.LevelError, fmt.Sprintf("%s risk service exposed: %d/%s (%s)",
                p.RiskTag, p.Port, serviceName(p), p.State))
        }
    }
    return record, nil
}

func (s *Service) extract(ctx context.Context, runID string, record *domain.RawScanRecord) error {
    _, span := s.tracer.Start(ctx, "scan.extraction")
    defer span.End()

    s.mu.Lock()
    defer s.mu.Unlock()
    if s.runID != runID {
        return ErrStaleRun
    }
    s.phase = domain.PhaseExtraction
    s.emitLocked(domain.LevelInfo, "Correlating service banners with version fingerprints")

    disclosed := 0
    for _, p := range record.OpenPorts {
        if p.State != domain.PortClosed && p.VersionDisclosed() {
            disclosed++
        }
    }
    s.emitLocked(domain.LevelInfo, fmt.Sprintf("%d of %d services disclose version banners", disclosed, len(record.OpenPorts)))
    if len(record.DNSRecords) > 0 {
        s.emitLocked(domain.LevelInfo, fmt.Sprintf("Resolved %d DNS records", len(record.DNSRecords)))
    }
    if record.AnomaliesDetected {
        s.emitLocked(domain.LevelWarning, fmt.Sprintf("Anomalous network behaviour detected on %s", record.Target))
    }
    return nil
}

func (s *Service) analyze(ctx context.Context, runID string, record *domain.RawScanRecord) (*domain.AnalysisResult, error) {
    ctx, span := s.tracer.Start(ctx, "scan.analysis")
    defer span.End()

    score := scoring.Score(record)
    level := s.tiers.Lookup(score)
    if err := s.enter(runID, domain.StateAnalyzing, domain.PhaseAnalysis,
        domain.LevelInfo, "Computing security score and generating assessment"); err != nil {
        return nil, err
    }

    narrative, err := s.narrator.Narrate(ctx, record, score)

    s.mu.Lock()
    defer s.mu.Unlock()
    if s.runID != runID {
        return nil, ErrStaleRun
    }
    if err != nil {
        return nil, s.failLocked(ctx, domain.NarrationUnavailable(err))
    }
    if narrative == nil {
        return nil, s.failLocked(ctx, domain.Internal("narrative generator returned no narrative"))
    }
    if narrative.Score != score || narrative.RiskLevel != level {
        s.logger.DebugContext(ctx, "discarding proposed score",
            "run_id", runID,
            "proposed_score", narrative.Score,
            "proposed_risk_level", narrative.RiskLevel,
            "score", score,
        )
    }

    result := &domain.AnalysisResult{
        Score:           score,
        RiskLevel:       level,
        Summary:         narrative.Summary,
        Vulnerabilities: append([]domain.Vulnerability{}, narrative.Vulnerabilities...),
        Recommendations: append([]string{}, narrative.Recommendations...),
    }

    s.history.Record(domain.HistoryItem{
        ID:        s.newID(),
        Target:    s.target,
        Timestamp: s.now(),
        Score:     score,
        PortCount: len(record.OpenPorts),
    })

    lvl := domain.LevelSuccess
    if score < 50 {
        lvl = domain.LevelError
    }
    s.emitLocked(lvl, fmt.Sprintf("Security score: %d/100 (%s)", score, level))

    s.analysis = result
    s.state = domain.StateReporting
    s.phase = domain.PhaseReporting
    s.cancel = nil
    s.logger.InfoContext(ctx, "scan complete", "run_id", runID, "target", s.target, "score", score, "risk_level", level)
    return copyResult(result), nil
}

// Reset discards the current run and returns to Idle. An in-flight
// collaborator call gets its context cancelled but may still complete; its
// result is dropped. Session history is kept.
func (s *Service) Reset() {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.cancel != nil {
        s.cancel()
    }
    if s.runID != "" {
        s.logger.Info("scan reset", "run_id", s.runID, "state", s.state)
    }
    s.clearLocked()
    s.runID = ""
    s.target = ""
    s.phase = ""
    s.state = domain.StateIdle
}

// Abort fails an accepted run that will never be executed, for example
// because it could not be queued. Runs already executing, finished or
// replaced are left alone and ErrStaleRun is returned.
func (s *Service) Abort(runID, reason string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if runID == "" || runID != s.runID || s.state != domain.StateScanning || s.cancel != nil {
        return ErrStaleRun
    }
    _ = s.failLocked(context.Background(), domain.Internal(fmt.Sprintf("scan aborted: %s", reason)))
    return nil
}

func (s *Service) State() domain.State {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.state
}

func (s *Service) Snapshot() Snapshot {
    s.mu.Lock()
    defer s.mu.Unlock()
    snap := Snapshot{
        RunID:  s.runID,
        State:  s.state,
        Phase:  s.phase,
        Target: s.target,
        Logs:   append([]domain.LogEntry{}, s.logs...),
    }
    if s.state == domain.StateReporting {
        snap.Record = s.record
        snap.Analysis = copyResult(s.analysis)
    }
    return snap
}

func (s *Service) History() []domain.HistoryItem {
    return s.history.List()
}

// enter moves a still-current run into state/phase and logs msg.
func (s *Service) enter(runID string, state domain.State, phase string, level domain.LogLevel, msg string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.runID != runID {
        return ErrStaleRun
    }
    s.state = state
    s.phase = phase
    s.emitLocked(level, msg)
    return nil
}

// failLocked logs err as the final entry of the run and moves to Error.
func (s *Service) failLocked(ctx context.Context, err error) error {
    s.emitLocked(domain.LevelError, err.Error())
    s.logger.ErrorContext(ctx, "scan failed",
        "run_id", s.runID,
        "target", s.target,
        "phase", s.phase,
        "kind", domain.KindOf(err),
        "error", err,
    )
    s.state = domain.StateError
    s.record = nil
    s.analysis = nil
    s.cancel = nil
    return err
}

func (s *Service) emitLocked(level domain.LogLevel, msg string) {
    entry := domain.LogEntry{Timestamp: s.now(), Phase: s.phase, Message: msg, Level: level}
    s.logs = append(s.logs, entry)
    if s.sink != nil {
        s.sink(entry)
    }
}

func (s *Service) clearLocked() {
    s.logs = nil
    s.record = nil
    s.analysis = nil
    s.cancel = nil
}

func serviceName(p domain.PortFinding) string {
    if p.Service == "" {
        return "unknown"
    }
    return p.Service
}

func copyResult(r *domain.AnalysisResult) *domain.AnalysisResult {
    if r == nil {
        return nil
    }
    out := *r
    out.Vulnerabilities = append([]domain.Vulnerability{}, r.Vulnerabilities...)
    out.Recommendations = append([]string{}, r.Recommendations...)
    return &out
}

var _ ports.Scanner = (*Service)(nil)
