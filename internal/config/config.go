package config

import (
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    "gopkg.in/yaml.v3"

    "netaudit/internal/domain"
    "netaudit/internal/services/scoring"
)

type Config struct {
    Env         string
    ListenAddr  string
    LogLevel    string
    ScanWorkers int
    ScanTimeout time.Duration

    RiskProfile string
    Tiers       scoring.TierTable
    Profile     domain.ScanProfile

    Intel IntelConfig
}

// IntelConfig selects the intelligence source. An empty URL uses the
// simulated source.
type IntelConfig struct {
    URL              string
    APIKey           string
    Timeout          time.Duration
    MaxRetries       int
    SimulatedLatency time.Duration
}

// fileConfig is the YAML layout of CONFIG_FILE. Pointers distinguish unset
// keys from zero values.
type fileConfig struct {
    ListenAddr  *string             `yaml:"listen_addr"`
    LogLevel    *string             `yaml:"log_level"`
    ScanWorkers *int                `yaml:"scan_workers"`
    ScanTimeout *string             `yaml:"scan_timeout"`
    RiskProfile *string             `yaml:"risk_profile"`
    Tiers       []scoring.Tier      `yaml:"tiers"`
    ScanProfile *domain.ScanProfile `yaml:"scan_profile"`
    Intel       struct {
        URL              *string `yaml:"url"`
        APIKey           *string `yaml:"api_key"`
        Timeout          *string `yaml:"timeout"`
        MaxRetries       *int    `yaml:"max_retries"`
        SimulatedLatency *string `yaml:"simulated_latency"`
    } `yaml:"intelligence"`
}

func defaults() Config {
    return Config{
        Env:         "development",
        ListenAddr:  ":8080",
        LogLevel:    "info",
        ScanWorkers: 1,
        ScanTimeout: 2 * time.Minute,
        RiskProfile: "three-tier",
        Profile:     domain.ScanProfile{VersionDetection: true, ScriptScan: true},
        Intel: IntelConfig{
            Timeout:          30 * time.Second,
            MaxRetries:       2,
            SimulatedLatency: 750 * time.Millisecond,
        },
    }
}

// Load builds the config from defaults, then CONFIG_FILE (if set), then
// environment variables.
func Load() (Config, error) {
    cfg := defaults()
    if path := os.Getenv("CONFIG_FILE"); path != "" {
        if err := cfg.applyFile(path); err != nil {
            return cfg, err
        }
    }
    if err := cfg.applyEnv(); err != nil {
        return cfg, err
    }
    if err := cfg.resolveTiers(); err != nil {
        return cfg, err
    }
    return cfg, cfg.Validate()
}

func (c *Config) applyFile(path string) error {
    data, err := os.ReadFile(path)
    if err != nil {
        return fmt.Errorf("read config file: %w", err)
    }
    var fc fileConfig
    if err := yaml.Unmarshal(data, &fc); err != nil {
        return fmt.Errorf("parse config file %s: %w", path, err)
    }

    setString(&c.ListenAddr, fc.ListenAddr)
    setString(&c.LogLevel, fc.LogLevel)
    setString(&c.RiskProfile, fc.RiskProfile)
    setString(&c.Intel.URL, fc.Intel.URL)
    setString(&c.Intel.APIKey, fc.Intel.APIKey)
    if fc.ScanWorkers != nil { c.ScanWorkers = *fc.ScanWorkers }
    if fc.Intel.MaxRetries != nil { c.Intel.MaxRetries = *fc.Intel.MaxRetries }
    if fc.ScanProfile != nil { c.Profile = *fc.ScanProfile }
    if len(fc.Tiers) > 0 { c.Tiers = scoring.TierTable(fc.Tiers) }

    durations := []struct {
        key string
        src *string
        dst *time.Duration
    }{
        {"scan_timeout", fc.ScanTimeout, &c.ScanTimeout},
        {"intelligence.timeout", fc.Intel.Timeout, &c.Intel.Timeout},
        {"intelligence.simulated_latency", fc.Intel.SimulatedLatency, &c.Intel.SimulatedLatency},
    }
    for _, d := range durations {
        if d.src == nil { continue }
        v, err := time.ParseDuration(*d.src)
        if err != nil {
            return fmt.Errorf("config file %s: invalid %s %q", path, d.key, *d.src)
        }
        *d.dst = v
    }
    return nil
}

func (c *Config) applyEnv() error {
    c.Env = getenv("APP_ENV", c.Env)
    c.ListenAddr = getenv("LISTEN_ADDR", c.ListenAddr)
    c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
    c.ScanWorkers = getenvInt("SCAN_WORKERS", c.ScanWorkers)
    c.RiskProfile = getenv("RISK_PROFILE", c.RiskProfile)
    c.Intel.URL = getenv("INTEL_URL", c.Intel.URL)
    c.Intel.APIKey = getenv("INTEL_API_KEY", c.Intel.APIKey)
    c.Intel.MaxRetries = getenvInt("INTEL_MAX_RETRIES", c.Intel.MaxRetries)
    c.Profile.VersionDetection = getenvBool("SCAN_VERSION_DETECTION", c.Profile.VersionDetection)
    c.Profile.ScriptScan = getenvBool("SCAN_SCRIPT_SCAN", c.Profile.ScriptScan)

    var err error
    if c.ScanTimeout, err = getenvDuration("SCAN_TIMEOUT", c.ScanTimeout); err != nil { return err }
    if c.Intel.Timeout, err = getenvDuration("INTEL_TIMEOUT", c.Intel.Timeout); err != nil { return err }
    if c.Intel.SimulatedLatency, err = getenvDuration("INTEL_SIMULATED_LATENCY", c.Intel.SimulatedLatency); err != nil { return err }
    return nil
}

// resolveTiers picks the named profile unless the file supplied a table.
func (c *Config) resolveTiers() error {
    if len(c.Tiers) > 0 {
        return nil
    }
    t, err := scoring.TableByName(c.RiskProfile)
    if err != nil {
        return err
    }
    c.Tiers = t
    return nil
}

func (c Config) Validate() error {
    if c.ListenAddr == "" {
        return fmt.Errorf("listen address is required")
    }
    if c.ScanWorkers < 0 {
        return fmt.Errorf("scan workers must not be negative, got %d", c.ScanWorkers)
    }
    if c.ScanTimeout <= 0 {
        return fmt.Errorf("scan timeout must be positive, got %v", c.ScanTimeout)
    }
    if c.Intel.MaxRetries < 0 {
        return fmt.Errorf("intelligence max retries must not be negative, got %d", c.Intel.MaxRetries)
    }
    if err := c.Tiers.Validate(); err != nil {
        return fmt.Errorf("risk tiers: %w", err)
    }
    return nil
}

func setString(dst *string, src *string) {
    if src != nil { *dst = *src }
}

func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func getenvInt(key string, def int) int {
    if v := os.Getenv(key); v != "" {
        if out, err := strconv.Atoi(strings.TrimSpace(v)); err == nil { return out }
    }
    return def
}

func getenvBool(key string, def bool) bool {
    if v := os.Getenv(key); v != "" {
        if out, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil { return out }
    }
    return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
    v := os.Getenv(key)
    if v == "" {
        return def, nil
    }
    d, err := time.ParseDuration(v)
    if err != nil {
        return def, fmt.Errorf("invalid %s duration: %s", key, v)
    }
    return d, nil
}
