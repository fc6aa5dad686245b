package main

import (
    "fmt"
    "log/slog"
    "os"
    "strings"

    "github.com/spf13/cobra"
    "go.opentelemetry.io/otel"

    "netaudit/internal/adapters/intel"
    "netaudit/internal/adapters/memory"
    "netaudit/internal/adapters/narrative"
    "netaudit/internal/config"
    "netaudit/internal/ports"
    "netaudit/internal/services/scanner"
    "netaudit/internal/services/scoring"
)

func main() {
    rootCmd := &cobra.Command{
        Use:   "netaudit",
        Short: "Network security assessment",
        Long: `netaudit collects intelligence about a host, scores its exposure and
produces a narrative assessment with recommendations.`,
        SilenceUsage: true,
    }
    rootCmd.AddCommand(serveCmd())
    rootCmd.AddCommand(scanCmd())

    if err := rootCmd.Execute(); err != nil {
        fmt.Fprintf(os.Stderr, "Error: %v\n", err)
        os.Exit(1)
    }
}

// app is the wired object graph shared by serve and scan.
type app struct {
    cfg     config.Config
    logger  *slog.Logger
    history *memory.History
    scanner *scanner.Service
}

func newApp(cfg config.Config, extra ...scanner.Option) *app {
    logger := newLogger(cfg.LogLevel)
    history := memory.NewHistory()
    opts := []scanner.Option{
        scanner.WithTiers(cfg.Tiers),
        scanner.WithProfile(cfg.Profile),
        scanner.WithLogger(logger),
        scanner.WithTracer(otel.Tracer("netaudit/scanner")),
    }
    opts = append(opts, extra...)
    svc := scanner.New(intelSource(cfg, logger), narrative.New(cfg.Tiers), history, opts...)
    return &app{cfg: cfg, logger: logger, history: history, scanner: svc}
}

func intelSource(cfg config.Config, logger *slog.Logger) ports.IntelligenceSource {
    if cfg.Intel.URL == "" {
        return intel.NewSimulated(cfg.Intel.SimulatedLatency)
    }
    src := intel.NewHTTPSource(cfg.Intel.URL, cfg.Intel.APIKey, cfg.Intel.Timeout, uint64(cfg.Intel.MaxRetries))
    src.Logger = logger
    return src
}

func newLogger(level string) *slog.Logger {
    var lvl slog.Level
    switch strings.ToLower(level) {
    case "debug":
        lvl = slog.LevelDebug
    case "warn", "warning":
        lvl = slog.LevelWarn
    case "error":
        lvl = slog.LevelError
    default:
        lvl = slog.LevelInfo
    }
    return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// loadConfig applies the --risk-profile flag on top of config.Load.
func loadConfig(riskProfile string) (config.Config, error) {
    cfg, err := config.Load()
    if err != nil || riskProfile == "" {
        return cfg, err
    }
    cfg.RiskProfile = riskProfile
    cfg.Tiers, err = scoring.TableByName(riskProfile)
    return cfg, err
}
