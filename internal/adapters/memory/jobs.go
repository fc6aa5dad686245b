package memory

import (
    "context"
    "sync"
    "time"

    "github.com/google/uuid"

    "netaudit/internal/ports"
)

const (
    jobQueued    = "queued"
    jobRunning   = "running"
    jobCompleted = "completed"
    jobFailed    = "failed"
)

type job struct {
    id         string
    runID      string
    status     string
    reason     string
    attempts   int
    queuedAt   time.Time
    startedAt  time.Time
    finishedAt time.Time
}

// Jobs is an in-process scan job queue with the same lifecycle as a job table:
// queued -> running -> completed|failed.
type Jobs struct {
    mu    sync.Mutex
    byID  map[string]*job
    byRun map[string]*job
    queue []string
    now   func() time.Time
}

func NewJobs() *Jobs {
    return &Jobs{
        byID:  make(map[string]*job),
        byRun: make(map[string]*job),
        now:   time.Now,
    }
}

func (j *Jobs) Enqueue(ctx context.Context, runID string) (string, error) {
    if err := ctx.Err(); err != nil {
        return "", err
    }
    j.mu.Lock()
    defer j.mu.Unlock()
    jb := &job{id: uuid.NewString(), runID: runID, status: jobQueued, queuedAt: j.now()}
    j.byID[jb.id] = jb
    j.byRun[runID] = jb
    j.queue = append(j.queue, jb.id)
    return jb.id, nil
}

// ClaimNext pops the oldest queued job and marks it running.
func (j *Jobs) ClaimNext(ctx context.Context) (ports.ScanJob, bool, error) {
    if err := ctx.Err(); err != nil {
        return ports.ScanJob{}, false, err
    }
    j.mu.Lock()
    defer j.mu.Unlock()
    for len(j.queue) > 0 {
        id := j.queue[0]
        j.queue = j.queue[1:]
        jb, ok := j.byID[id]
        // claimed inline already
        if !ok || jb.status != jobQueued {
            continue
        }
        j.start(jb)
        return ports.ScanJob{ID: jb.id, RunID: jb.runID}, true, nil
    }
    return ports.ScanJob{}, false, nil
}

// StartJobForRun marks the queued job of a specific run as running, or creates
// a running job when the run was never queued.
func (j *Jobs) StartJobForRun(ctx context.Context, runID string) (string, error) {
    if err := ctx.Err(); err != nil {
        return "", err
    }
    j.mu.Lock()
    defer j.mu.Unlock()
    jb, ok := j.byRun[runID]
    if !ok {
        jb = &job{id: uuid.NewString(), runID: runID, queuedAt: j.now()}
        j.byID[jb.id] = jb
        j.byRun[runID] = jb
    } else if jb.status != jobQueued {
        return "", ErrJobNotQueued
    }
    j.start(jb)
    return jb.id, nil
}

func (j *Jobs) start(jb *job) {
    jb.status = jobRunning
    jb.attempts++
    jb.startedAt = j.now()
}

func (j *Jobs) MarkCompleted(ctx context.Context, jobID string) error {
    return j.finish(jobID, jobCompleted, "")
}

func (j *Jobs) MarkFailed(ctx context.Context, jobID string, reason string) error {
    return j.finish(jobID, jobFailed, reason)
}

func (j *Jobs) finish(jobID, status, reason string) error {
    j.mu.Lock()
    defer j.mu.Unlock()
    jb, ok := j.byID[jobID]
    if !ok {
        return ErrNotFound
    }
    jb.status = status
    jb.reason = reason
    jb.finishedAt = j.now()
    return nil
}

func (j *Jobs) Status(ctx context.Context, runID string) (string, string, error) {
    j.mu.Lock()
    defer j.mu.Unlock()
    jb, ok := j.byRun[runID]
    if !ok {
        return "", "", ErrNotFound
    }
    return jb.status, jb.reason, nil
}

var (
    ErrNotFound     = errString("not found")
    ErrJobNotQueued = errString("job is not queued")
)

type errString string

func (e errString) Error() string { return string(e) }

var _ ports.JobRepository = (*Jobs)(nil)
var _ ports.HistoryRepository = (*History)(nil)
