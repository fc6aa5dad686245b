package scanner

import (
    "context"
    "errors"
    "fmt"
    "io"
    "log/slog"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "netaudit/internal/adapters/memory"
    "netaudit/internal/domain"
    "netaudit/internal/services/scoring"
)

func strp(s string) *string { return &s }

// stubIntel returns a fixed record. When gate is set, Fetch signals entered
// and then waits for gate, ignoring cancellation like a slow upstream would.
type stubIntel struct {
    record *domain.RawScanRecord
    err    error

    gate    chan struct{}
    entered chan struct{}

    mu         sync.Mutex
    calls      int
    gotTarget  string
    gotProfile domain.ScanProfile
    ctxErr     error
}

func (s *stubIntel) Fetch(ctx context.Context, target string, profile domain.ScanProfile) (*domain.RawScanRecord, error) {
    s.mu.Lock()
    s.calls++
    s.gotTarget = target
    s.gotProfile = profile
    s.mu.Unlock()
    if s.gate != nil {
        close(s.entered)
        <-s.gate
        s.mu.Lock()
        s.ctxErr = ctx.Err()
        s.mu.Unlock()
    }
    return s.record, s.err
}

type stubNarrator struct {
    narrative *domain.Narrative
    err       error
    gotScore  int
    calls     int
}

func (n *stubNarrator) Narrate(ctx context.Context, record *domain.RawScanRecord, score int) (*domain.Narrative, error) {
    n.calls++
    n.gotScore = score
    if n.err != nil {
        return nil, n.err
    }
    return n.narrative, nil
}

func fixtureRecord() *domain.RawScanRecord {
    return &domain.RawScanRecord{
        Target:    "example.com",
        Timestamp: "2024-05-01T12:00:00Z",
        DNSRecords: []domain.DNSRecord{
            {Type: "A", Name: "example.com", Value: "93.184.216.34"},
        },
        Geolocation: domain.Geolocation{Country: "US", City: "Norwell", ISP: "Edgecast"},
        OpenPorts: []domain.PortFinding{
            {Port: 22, Service: "ssh", Version: strp("OpenSSH 4.3"), State: domain.PortOpen, RiskTag: domain.RiskCritical},
            {Port: 80, Service: "http", State: domain.PortOpen, RiskTag: domain.RiskLow},
            {Port: 443, Service: "https", Version: strp("nginx 1.1"), State: domain.PortOpen, RiskTag: domain.RiskMedium},
            {Port: 3306, Service: "mysql", State: domain.PortFiltered, RiskTag: domain.RiskHigh},
        },
        WhoisSummary: domain.WhoisSummary{Registrar: "RESERVED-IANA", CreationDate: "1995-08-14", ExpiryDate: "2025-08-13"},
    }
}

func fixtureNarrative() *domain.Narrative {
    return &domain.Narrative{
        Summary:   "Outdated SSH daemon exposed.",
        RiskLevel: "Totally Fine",
        Score:     999,
        Vulnerabilities: []domain.Vulnerability{
            {ID: "VULN-001", Name: "Outdated OpenSSH", Severity: domain.SeverityCritical, CVE: strp("CVE-2006-5051")},
        },
        Recommendations: []string{"Upgrade OpenSSH"},
    }
}

type fixture struct {
    svc      *Service
    intel    *stubIntel
    narrator *stubNarrator
    history  *memory.History

    mu   sync.Mutex
    sunk []domain.LogEntry
}

func newFixture(t *testing.T, opts ...Option) *fixture {
    t.Helper()
    f := &fixture{
        intel:    &stubIntel{record: fixtureRecord()},
        narrator: &stubNarrator{narrative: fixtureNarrative()},
        history:  memory.NewHistory(),
    }
    clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
    ids := 0
    base := []Option{
        WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
        WithClock(func() time.Time {
            clock = clock.Add(time.Second)
            return clock
        }),
        WithIDs(func() string {
            ids++
            return fmt.Sprintf("id-%d", ids)
        }),
        WithLogSink(func(e domain.LogEntry) {
            f.mu.Lock()
            f.sunk = append(f.sunk, e)
            f.mu.Unlock()
        }),
    }
    f.svc = New(f.intel, f.narrator, f.history, append(base, opts...)...)
    return f
}

func TestStartRejectsEmptyTarget(t *testing.T) {
    f := newFixture(t)
    for _, target := range []string{"", "   ", "exa mple.com", "http://"} {
        _, err := f.svc.Start(context.Background(), target)
        require.Error(t, err, "target %q", target)
        assert.ErrorIs(t, err, domain.ErrInvalidInput)
        assert.Equal(t, domain.StateIdle, f.svc.State())
        assert.Empty(t, f.svc.Snapshot().Logs)
    }
    assert.Zero(t, f.intel.calls)

    // caller may retry immediately
    _, err := f.svc.Start(context.Background(), "example.com")
    require.NoError(t, err)
}

func TestSuccessfulRun(t *testing.T) {
    f := newFixture(t)
    result, err := f.svc.Start(context.Background(), "https://Example.com/login")
    require.NoError(t, err)

    snap := f.svc.Snapshot()
    assert.Equal(t, domain.StateReporting, snap.State)
    require.NotNil(t, snap.Record)
    require.NotNil(t, snap.Analysis)

    // 22: 2+40+5, 80: 2+5, 443: 2+15+5, 3306: 2+25 -> 103 -> floored
    assert.Equal(t, scoring.Score(snap.Record), result.Score)
    assert.Equal(t, 0, result.Score)
    assert.Equal(t, result.Score, f.narrator.gotScore)
    assert.Equal(t, "Critical", result.RiskLevel)
    assert.Equal(t, "Outdated SSH daemon exposed.", result.Summary)
    assert.Len(t, result.Vulnerabilities, 1)
    assert.Equal(t, []string{"Upgrade OpenSSH"}, result.Recommendations)

    assert.Equal(t, "example.com", f.intel.gotTarget)
    assert.Equal(t, domain.ScanProfile{VersionDetection: true, ScriptScan: true}, f.intel.gotProfile)

    history := f.svc.History()
    require.Len(t, history, 1)
    assert.Equal(t, "example.com", history[0].Target)
    assert.Equal(t, 4, history[0].PortCount)
    assert.Equal(t, result.Score, history[0].Score)
}

func TestRunLogOrdering(t *testing.T) {
    f := newFixture(t)
    _, err := f.svc.Start(context.Background(), "example.com")
    require.NoError(t, err)

    logs := f.svc.Snapshot().Logs
    phases := []string{}
    for _, e := range logs {
        if len(phases) == 0 || phases[len(phases)-1] != e.Phase {
            phases = append(phases, e.Phase)
        }
    }
    assert.Equal(t, []string{
        domain.PhaseAcquisition,
        domain.PhaseCollection,
        domain.PhaseExtraction,
        domain.PhaseAnalysis,
    }, phases)

    assert.Equal(t, domain.LevelInfo, logs[0].Level)
    assert.Contains(t, logs[0].Message, "example.com")
    assert.Equal(t, domain.LevelSuccess, logs[1].Level)

    var highRisk []string
    for _, e := range logs {
        if e.Phase == domain.PhaseCollection && e.Level == domain.LevelError {
            highRisk = append(highRisk, e.Message)
        }
    }
    require.Len(t, highRisk, 2)
    assert.Contains(t, highRisk[0], "22/ssh")
    assert.Contains(t, highRisk[1], "3306/mysql")

    last := logs[len(logs)-1]
    assert.Equal(t, domain.PhaseAnalysis, last.Phase)
    assert.Equal(t, domain.LevelError, last.Level, "score below 50 is reported at error level")
    assert.Contains(t, last.Message, "0/100")

    for i := 1; i < len(logs); i++ {
        assert.True(t, logs[i].Timestamp.After(logs[i-1].Timestamp))
    }

    f.mu.Lock()
    defer f.mu.Unlock()
    assert.Equal(t, logs, f.sunk)
}

func TestScoreLogSuccessLevel(t *testing.T) {
    f := newFixture(t)
    f.intel.record = &domain.RawScanRecord{Target: "quiet.example", OpenPorts: []domain.PortFinding{
        {Port: 443, Service: "https", State: domain.PortOpen, RiskTag: domain.RiskNone},
    }}
    result, err := f.svc.Start(context.Background(), "quiet.example")
    require.NoError(t, err)
    assert.Equal(t, 96, result.Score)
    assert.Equal(t, "Secure", result.RiskLevel)

    logs := f.svc.Snapshot().Logs
    assert.Equal(t, domain.LevelSuccess, logs[len(logs)-1].Level)
    for _, e := range logs {
        assert.NotEqual(t, domain.LevelWarning, e.Level)
    }
}

func TestAnomalyWarning(t *testing.T) {
    f := newFixture(t)
    f.intel.record = &domain.RawScanRecord{Target: "odd.example", AnomaliesDetected: true}
    result, err := f.svc.Start(context.Background(), "odd.example")
    require.NoError(t, err)
    assert.Equal(t, 75, result.Score)

    var warnings []domain.LogEntry
    for _, e := range f.svc.Snapshot().Logs {
        if e.Level == domain.LevelWarning {
            warnings = append(warnings, e)
        }
    }
    require.Len(t, warnings, 1)
    assert.Equal(t, domain.PhaseExtraction, warnings[0].Phase)
}

func TestTierTableOption(t *testing.T) {
    f := newFixture(t, WithTiers(scoring.FiveTier), WithProfile(domain.ScanProfile{}))
    f.intel.record = &domain.RawScanRecord{Target: "a.example", AnomaliesDetected: true}
    result, err := f.svc.Start(context.Background(), "a.example")
    require.NoError(t, err)
    assert.Equal(t, "Low", result.RiskLevel)
    assert.Equal(t, domain.ScanProfile{}, f.intel.gotProfile)
}

func TestCollectionFailure(t *testing.T) {
    f := newFixture(t)
    f.intel.err = errors.New("upstream timed out after 30s")

    _, err := f.svc.Start(context.Background(), "example.com")
    require.Error(t, err)
    assert.ErrorIs(t, err, domain.ErrIntelligenceUnavailable)
    assert.Equal(t, "upstream timed out after 30s", err.Error())

    snap := f.svc.Snapshot()
    assert.Equal(t, domain.StateError, snap.State)
    assert.Nil(t, snap.Record)
    assert.Nil(t, snap.Analysis)
    last := snap.Logs[len(snap.Logs)-1]
    assert.Equal(t, domain.LevelError, last.Level)
    assert.Equal(t, domain.PhaseCollection, last.Phase)
    assert.Equal(t, "upstream timed out after 30s", last.Message)

    assert.Zero(t, f.narrator.calls)
    assert.Empty(t, f.svc.History())
}

func TestNilRecordIsInvariantViolation(t *testing.T) {
    f := newFixture(t)
    f.intel.record = nil
    _, err := f.svc.Start(context.Background(), "example.com")
    assert.ErrorIs(t, err, domain.ErrInternal)
    assert.Equal(t, domain.StateError, f.svc.State())
}

func TestEmptyTargetRecordIsInvariantViolation(t *testing.T) {
    f := newFixture(t)
    f.intel.record.Target = ""
    _, err := f.svc.Start(context.Background(), "example.com")
    assert.ErrorIs(t, err, domain.ErrInternal)
    snap := f.svc.Snapshot()
    assert.Equal(t, domain.StateError, snap.State)
    assert.Equal(t, "scan record has an empty target", snap.Logs[len(snap.Logs)-1].Message)
    assert.Zero(t, f.narrator.calls)
}

func TestNarrationFailure(t *testing.T) {
    f := newFixture(t)
    f.narrator.err = errors.New("model overloaded")

    _, err := f.svc.Start(context.Background(), "example.com")
    assert.ErrorIs(t, err, domain.ErrNarrationUnavailable)
    assert.Equal(t, "model overloaded", err.Error())

    snap := f.svc.Snapshot()
    assert.Equal(t, domain.StateError, snap.State)
    assert.Nil(t, snap.Record)
    assert.Nil(t, snap.Analysis)
    last := snap.Logs[len(snap.Logs)-1]
    assert.Equal(t, domain.PhaseAnalysis, last.Phase)
    assert.Equal(t, domain.LevelError, last.Level)
    assert.Empty(t, f.svc.History())
}

func TestNilNarrative(t *testing.T) {
    f := newFixture(t)
    f.narrator.narrative = nil
    _, err := f.svc.Start(context.Background(), "example.com")
    assert.ErrorIs(t, err, domain.ErrInternal)
    assert.Equal(t, domain.StateError, f.svc.State())
}

func TestRestartFromTerminalStates(t *testing.T) {
    f := newFixture(t)
    f.intel.err = errors.New("boom")
    _, err := f.svc.Start(context.Background(), "example.com")
    require.Error(t, err)

    f.intel.err = nil
    _, err = f.svc.Start(context.Background(), "example.com")
    require.NoError(t, err)
    assert.Equal(t, domain.StateReporting, f.svc.State())
    // prior run's log was cleared
    assert.Equal(t, domain.PhaseAcquisition, f.svc.Snapshot().Logs[0].Phase)
    for _, e := range f.svc.Snapshot().Logs {
        assert.NotEqual(t, "boom", e.Message)
    }

    _, err = f.svc.Start(context.Background(), "second.example")
    require.NoError(t, err)
    history := f.svc.History()
    require.Len(t, history, 2)
    assert.Equal(t, "second.example", history[0].Target)
    assert.Equal(t, "example.com", history[1].Target)
    assert.True(t, history[0].Timestamp.After(history[1].Timestamp))
}

func TestConcurrentStartRejected(t *testing.T) {
    f := newFixture(t)
    f.intel.gate = make(chan struct{})
    f.intel.entered = make(chan struct{})

    done := make(chan error, 1)
    go func() {
        _, err := f.svc.Start(context.Background(), "example.com")
        done <- err
    }()
    <-f.intel.entered
    assert.Equal(t, domain.StateScanning, f.svc.State())

    _, err := f.svc.Begin("other.example")
    assert.ErrorIs(t, err, domain.ErrInvalidInput)
    assert.ErrorIs(t, err, ErrBusy)
    assert.Equal(t, "example.com", f.svc.Snapshot().Target)

    close(f.intel.gate)
    require.NoError(t, <-done)

    _, err = f.svc.Begin("other.example")
    assert.NoError(t, err)
}

func TestResetMidRunDiscardsResult(t *testing.T) {
    f := newFixture(t)
    f.intel.gate = make(chan struct{})
    f.intel.entered = make(chan struct{})

    done := make(chan error, 1)
    go func() {
        _, err := f.svc.Start(context.Background(), "example.com")
        done <- err
    }()
    <-f.intel.entered

    f.svc.Reset()
    snap := f.svc.Snapshot()
    assert.Equal(t, domain.StateIdle, snap.State)
    assert.Empty(t, snap.Logs)

    close(f.intel.gate)
    assert.ErrorIs(t, <-done, ErrStaleRun)

    f.intel.mu.Lock()
    assert.ErrorIs(t, f.intel.ctxErr, context.Canceled)
    f.intel.mu.Unlock()

    snap = f.svc.Snapshot()
    assert.Equal(t, domain.StateIdle, snap.State)
    assert.Empty(t, snap.Logs)
    assert.Nil(t, snap.Record)
    assert.Empty(t, f.svc.History())
    assert.Zero(t, f.narrator.calls)
}

func TestResetKeepsHistory(t *testing.T) {
    f := newFixture(t)
    _, err := f.svc.Start(context.Background(), "example.com")
    require.NoError(t, err)

    f.svc.Reset()
    snap := f.svc.Snapshot()
    assert.Equal(t, domain.StateIdle, snap.State)
    assert.Empty(t, snap.Logs)
    assert.Empty(t, snap.Target)
    assert.Nil(t, snap.Record)
    assert.Nil(t, snap.Analysis)
    assert.Len(t, f.svc.History(), 1)

    // reset from Idle and Error is a no-op beyond clearing
    f.svc.Reset()
    assert.Equal(t, domain.StateIdle, f.svc.State())
    f.intel.err = errors.New("down")
    _, _ = f.svc.Start(context.Background(), "example.com")
    f.svc.Reset()
    assert.Equal(t, domain.StateIdle, f.svc.State())
    assert.Len(t, f.svc.History(), 1)
}

func TestExecuteGuards(t *testing.T) {
    f := newFixture(t)
    _, err := f.svc.Execute(context.Background(), "")
    assert.ErrorIs(t, err, ErrStaleRun)

    runID, err := f.svc.Begin("example.com")
    require.NoError(t, err)
    _, err = f.svc.Execute(context.Background(), "other")
    assert.ErrorIs(t, err, ErrStaleRun)

    _, err = f.svc.Execute(context.Background(), runID)
    require.NoError(t, err)
    _, err = f.svc.Execute(context.Background(), runID)
    assert.ErrorIs(t, err, ErrStaleRun)
    assert.Equal(t, 1, f.intel.calls)
}

func TestBeginOnlyAcquires(t *testing.T) {
    f := newFixture(t)
    runID, err := f.svc.Begin("example.com")
    require.NoError(t, err)
    assert.Equal(t, "id-1", runID)

    snap := f.svc.Snapshot()
    assert.Equal(t, domain.StateScanning, snap.State)
    assert.Equal(t, domain.PhaseAcquisition, snap.Phase)
    require.Len(t, snap.Logs, 2)
    assert.Nil(t, snap.Record)
    assert.Zero(t, f.intel.calls)
}

func TestResultIsACopy(t *testing.T) {
    f := newFixture(t)
    result, err := f.svc.Start(context.Background(), "example.com")
    require.NoError(t, err)
    result.Recommendations[0] = "tampered"
    result.Score = 100
    snap := f.svc.Snapshot()
    assert.Equal(t, "Upgrade OpenSSH", snap.Analysis.Recommendations[0])
    assert.Equal(t, scoring.Score(snap.Record), snap.Analysis.Score)
}

func TestAbortAcceptedRun(t *testing.T) {
    f := newFixture(t)
    runID, err := f.svc.Begin("example.com")
    require.NoError(t, err)

    require.NoError(t, f.svc.Abort(runID, "queue unavailable"))
    snap := f.svc.Snapshot()
    assert.Equal(t, domain.StateError, snap.State)
    require.NotEmpty(t, snap.Logs)
    last := snap.Logs[len(snap.Logs)-1]
    assert.Equal(t, domain.LevelError, last.Level)
    assert.Equal(t, "scan aborted: queue unavailable", last.Message)

    _, err = f.svc.Execute(context.Background(), runID)
    assert.ErrorIs(t, err, ErrStaleRun)
    assert.Zero(t, f.intel.calls)
    assert.ErrorIs(t, f.svc.Abort(runID, "again"), ErrStaleRun)

    _, err = f.svc.Start(context.Background(), "example.org")
    require.NoError(t, err)
    assert.Equal(t, domain.StateReporting, f.svc.State())
}

func TestAbortLeavesExecutingRunAlone(t *testing.T) {
    f := newFixture(t)
    f.intel.gate = make(chan struct{})
    f.intel.entered = make(chan struct{})
    runID, err := f.svc.Begin("example.com")
    require.NoError(t, err)

    done := make(chan error, 1)
    go func() {
        _, err := f.svc.Execute(context.Background(), runID)
        done <- err
    }()
    <-f.intel.entered
    assert.ErrorIs(t, f.svc.Abort(runID, "shutting down"), ErrStaleRun)
    close(f.intel.gate)
    require.NoError(t, <-done)
    assert.Equal(t, domain.StateReporting, f.svc.State())
    assert.ErrorIs(t, f.svc.Abort(runID, "late"), ErrStaleRun)
}
