package ports

import "context"

type ScanJob struct {
    ID    string
    RunID string
}

// JobRepository supports queueing, claiming and settling scan jobs.
type JobRepository interface {
    Enqueue(ctx context.Context, runID string) (jobID string, err error)
    ClaimNext(ctx context.Context) (job ScanJob, found bool, err error)
    MarkCompleted(ctx context.Context, jobID string) error
    MarkFailed(ctx context.Context, jobID string, reason string) error
    StartJobForRun(ctx context.Context, runID string) (jobID string, err error)
    Status(ctx context.Context, runID string) (status string, reason string, err error)
}
