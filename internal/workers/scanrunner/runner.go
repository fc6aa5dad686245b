package scanrunner

import (
    "context"
    "log/slog"
    "sync"
    "time"

    "netaudit/internal/domain"
    "netaudit/internal/ports"
)

// ScanProcessor performs the scan work for a job's run id. Abort settles a
// run whose job was claimed but will never be processed.
type ScanProcessor interface {
    Process(ctx context.Context, runID string) error
    Abort(runID, reason string) error
}

// ScannerProcessor executes accepted runs on the orchestrator.
type ScannerProcessor struct {
    Scanner ports.Scanner
    Timeout time.Duration
}

func (p ScannerProcessor) Process(ctx context.Context, runID string) error {
    if p.Timeout > 0 {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, p.Timeout)
        defer cancel()
    }
    _, err := p.Scanner.Execute(ctx, runID)
    return err
}

func (p ScannerProcessor) Abort(runID, reason string) error {
    return p.Scanner.Abort(runID, reason)
}

// Run starts worker goroutines that claim jobs and process them. The returned
// WaitGroup is done once ctx is cancelled and every worker has drained.
func Run(ctx context.Context, repo ports.JobRepository, processor ScanProcessor, concurrency int, pollInterval time.Duration, logger *slog.Logger) *sync.WaitGroup {
    var wg sync.WaitGroup
    if concurrency < 1 { return &wg }
    jobsCh := make(chan ports.ScanJob, concurrency)

    // dispatcher loop
    wg.Add(1)
    go func() {
        defer wg.Done()
        defer close(jobsCh)
        ticker := time.NewTicker(pollInterval)
        defer ticker.Stop()
        for {
            select {
            case <-ctx.Done():
                return
            case <-ticker.C:
                for {
                    job, found, err := repo.ClaimNext(ctx)
                    if err != nil {
                        if ctx.Err() == nil {
                            logger.Error("job claim error", "error", err)
                        }
                        break
                    }
                    if !found { break }
                    select {
                    case jobsCh <- job:
                    case <-ctx.Done():
                        abandon(repo, processor, job, logger)
                        return
                    }
                }
            }
        }
    }()

    // workers
    for i := 0; i < concurrency; i++ {
        wg.Add(1)
        go func(idx int) {
            defer wg.Done()
            for job := range jobsCh {
                settle(ctx, repo, processor, job.ID, job.RunID, logger.With("worker", idx))
            }
        }(i)
    }
    return &wg
}

// ProcessInline processes a specific run synchronously using the same
// processor logic as the background workers. It marks the job as running,
// calls processor.Process, and completes or fails it.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor ScanProcessor, runID string, logger *slog.Logger) error {
    jobID, err := repo.StartJobForRun(ctx, runID)
    if err != nil { return err }
    return settle(ctx, repo, processor, jobID, runID, logger)
}

// abandon fails a claimed job and its run together so neither is left
// running once the pool stops.
func abandon(repo ports.JobRepository, processor ScanProcessor, job ports.ScanJob, logger *slog.Logger) {
    const reason = "worker shutting down"
    if err := repo.MarkFailed(context.Background(), job.ID, reason); err != nil {
        logger.Error("mark failed error", "job_id", job.ID, "error", err)
    }
    if err := processor.Abort(job.RunID, reason); err != nil {
        logger.Warn("abort run", "job_id", job.ID, "run_id", job.RunID, "error", err)
    }
}

func settle(ctx context.Context, repo ports.JobRepository, processor ScanProcessor, jobID, runID string, logger *slog.Logger) error {
    // settle even if ctx was cancelled mid-run
    bg := context.WithoutCancel(ctx)
    if err := processor.Process(ctx, runID); err != nil {
        if merr := repo.MarkFailed(bg, jobID, err.Error()); merr != nil {
            logger.Error("mark failed error", "job_id", jobID, "error", merr)
        }
        logger.Warn("scan job failed", "job_id", jobID, "run_id", runID, "kind", domain.KindOf(err), "error", err)
        return err
    }
    if err := repo.MarkCompleted(bg, jobID); err != nil {
        logger.Error("complete err", "job_id", jobID, "error", err)
        return err
    }
    return nil
}
