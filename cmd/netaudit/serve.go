package main

import (
    "context"
    "errors"
    "fmt"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/go-chi/chi/v5"
    "github.com/spf13/cobra"

    httpadapter "netaudit/internal/adapters/http"
    "netaudit/internal/adapters/memory"
    profsvc "netaudit/internal/services/profiles"
    scanworker "netaudit/internal/workers/scanrunner"
)

func serveCmd() *cobra.Command {
    var riskProfile string
    cmd := &cobra.Command{
        Use:   "serve",
        Short: "Run the HTTP API",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg, err := loadConfig(riskProfile)
            if err != nil {
                return err
            }
            return serve(cmd.Context(), newApp(cfg))
        },
    }
    cmd.Flags().StringVar(&riskProfile, "risk-profile", "", "risk tier profile (three-tier or five-tier)")
    return cmd
}

func serve(parent context.Context, a *app) error {
    if parent == nil { parent = context.Background() }
    ctx, cancel := context.WithCancel(parent)
    defer cancel()

    jobs := memory.NewJobs()
    profiles := profsvc.New(a.history)
    processor := scanworker.ScannerProcessor{Scanner: a.scanner, Timeout: a.cfg.ScanTimeout}

    srv := httpadapter.New(a.scanner, profiles, jobs, processor, a.cfg.ScanWorkers, a.logger)
    r := chi.NewRouter()
    r.Mount("/", srv.Routes())

    // background job workers for the asynchronous POST /scan path
    wg := scanworker.Run(ctx, jobs, processor, a.cfg.ScanWorkers, 250*time.Millisecond, a.logger)
    if a.cfg.ScanWorkers > 0 {
        log.Printf("scan workers started: %d", a.cfg.ScanWorkers)
    } else {
        log.Printf("scan workers disabled; POST /scan requires wait=true")
    }

    httpSrv := &http.Server{Addr: a.cfg.ListenAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
    errCh := make(chan error, 1)
    go func() { errCh <- httpSrv.ListenAndServe() }()
    log.Printf("listening on %s (env %s)", a.cfg.ListenAddr, a.cfg.Env)

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
    defer signal.Stop(sigCh)

    select {
    case sig := <-sigCh:
        log.Printf("shutting down on %s", sig)
    case <-parent.Done():
        log.Printf("shutting down: %v", parent.Err())
    case err := <-errCh:
        if !errors.Is(err, http.ErrServerClosed) {
            return fmt.Errorf("server error: %w", err)
        }
    }

    cancel()
    a.scanner.Reset()
    shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
    defer done()
    if err := httpSrv.Shutdown(shutdownCtx); err != nil {
        log.Printf("http shutdown: %v", err)
    }
    wg.Wait()
    return nil
}
