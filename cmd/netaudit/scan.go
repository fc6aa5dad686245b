package main

import (
    "context"
    "fmt"
    "os"
    "os/signal"
    "syscall"

    "github.com/fatih/color"
    "github.com/spf13/cobra"

    "netaudit/internal/domain"
    "netaudit/internal/services/scanner"
)

func scanCmd() *cobra.Command {
    var (
        riskProfile string
        noColor     bool
    )
    cmd := &cobra.Command{
        Use:   "scan [target...]",
        Short: "Assess one or more targets and print the results",
        Args:  cobra.MinimumNArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            if noColor {
                color.NoColor = true
            }
            cfg, err := loadConfig(riskProfile)
            if err != nil {
                return err
            }
            ui := newRenderer(cmd.OutOrStdout())
            a := newApp(cfg, scanner.WithLogSink(ui.Entry))

            ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
            defer stop()
            return runScans(ctx, a, ui, args)
        },
    }
    cmd.Flags().StringVar(&riskProfile, "risk-profile", "", "risk tier profile (three-tier or five-tier)")
    cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colorized output")
    return cmd
}

// runScans assesses targets one after another. A failed target does not stop
// the rest; the number of failures is reported at the end.
func runScans(ctx context.Context, a *app, ui *renderer, targets []string) error {
    failures := 0
    for _, target := range targets {
        if ctx.Err() != nil {
            break
        }
        ui.Header(target)
        runCtx, cancel := context.WithTimeout(ctx, a.cfg.ScanTimeout)
        result, err := a.scanner.Start(runCtx, target)
        cancel()
        if err != nil {
            failures++
            ui.Failure(target, domain.KindOf(err), err)
            continue
        }
        ui.Result(result)
    }
    ui.History(a.scanner.History())

    if failures > 0 {
        return fmt.Errorf("%d of %d assessments failed", failures, len(targets))
    }
    return ctx.Err()
}
