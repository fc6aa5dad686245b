package domain

import (
    "encoding/json"
    "strings"
    "time"
)

// Core domain models shared by the scoring engine, the orchestrator and the
// adapters. JSON tags match the wire shape of the intelligence endpoint.

type PortState string

const (
    PortOpen     PortState = "open"
    PortFiltered PortState = "filtered"
    PortClosed   PortState = "closed"
)

// RiskTag is the per-port risk classification used as a scoring input.
type RiskTag string

const (
    RiskNone     RiskTag = "None"
    RiskLow      RiskTag = "Low"
    RiskMedium   RiskTag = "Medium"
    RiskHigh     RiskTag = "High"
    RiskCritical RiskTag = "Critical"
)

// ParseRiskTag is case-insensitive. Unknown or empty tags map to RiskNone.
func ParseRiskTag(s string) RiskTag {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "low":
        return RiskLow
    case "medium":
        return RiskMedium
    case "high":
        return RiskHigh
    case "critical":
        return RiskCritical
    default:
        return RiskNone
    }
}

func (t *RiskTag) UnmarshalJSON(b []byte) error {
    var s string
    if err := json.Unmarshal(b, &s); err != nil {
        // numbers, nulls and other junk degrade to None
        *t = RiskNone
        return nil
    }
    *t = ParseRiskTag(s)
    return nil
}

type PortFinding struct {
    Port    uint16    `json:"port" yaml:"port"`
    Service string    `json:"service" yaml:"service"`
    Version *string   `json:"version,omitempty" yaml:"version,omitempty"`
    State   PortState `json:"state" yaml:"state"`
    Reason  *string   `json:"reason,omitempty" yaml:"reason,omitempty"`
    RiskTag RiskTag   `json:"risk_tag" yaml:"risk_tag"`
}

// VersionDisclosed reports whether the finding leaks a concrete version banner.
func (p PortFinding) VersionDisclosed() bool {
    if p.Version == nil {
        return false
    }
    v := strings.TrimSpace(*p.Version)
    return v != "" && !strings.EqualFold(v, "unknown")
}

type DNSRecord struct {
    Type  string `json:"type"`
    Name  string `json:"name"`
    Value string `json:"value"`
}

type Geolocation struct {
    Country string `json:"country"`
    City    string `json:"city"`
    ISP     string `json:"isp"`
}

type WhoisSummary struct {
    Registrar    string `json:"registrar"`
    CreationDate string `json:"creation_date"`
    ExpiryDate   string `json:"expiry_date"`
}

// RawScanRecord is the reconnaissance output for one target. It is produced
// once by an IntelligenceSource and never mutated afterwards.
type RawScanRecord struct {
    Target            string        `json:"target"`
    Timestamp         string        `json:"timestamp"`
    DNSRecords        []DNSRecord   `json:"dns_records"`
    Geolocation       Geolocation   `json:"geolocation"`
    OpenPorts         []PortFinding `json:"open_ports"`
    WhoisSummary      WhoisSummary  `json:"whois_summary"`
    AnomaliesDetected bool          `json:"anomalies_detected"`
}

// Validate checks the fields the orchestrator relies on.
func (r *RawScanRecord) Validate() error {
    if r == nil {
        return Internal("intelligence source returned no scan record")
    }
    if strings.TrimSpace(r.Target) == "" {
        return Internal("scan record has an empty target")
    }
    return nil
}

type Severity string

const (
    SeverityLow      Severity = "Low"
    SeverityMedium   Severity = "Medium"
    SeverityHigh     Severity = "High"
    SeverityCritical Severity = "Critical"
)

type Vulnerability struct {
    ID          string   `json:"id"`
    Name        string   `json:"name"`
    Severity    Severity `json:"severity"`
    Description string   `json:"description"`
    Mitigation  string   `json:"mitigation"`
    CVE         *string  `json:"cve,omitempty"`
}

type AnalysisResult struct {
    Score           int             `json:"score"`
    RiskLevel       string          `json:"risk_level"`
    Summary         string          `json:"summary"`
    Vulnerabilities []Vulnerability `json:"vulnerabilities"`
    Recommendations []string        `json:"recommendations"`
}

// Narrative is what a NarrativeGenerator returns. Score and RiskLevel are
// proposals only; the orchestrator replaces both.
type Narrative struct {
    Summary         string
    RiskLevel       string
    Vulnerabilities []Vulnerability
    Recommendations []string
    Score           int
}

// ScanProfile toggles optional collection features of the intelligence source.
type ScanProfile struct {
    VersionDetection bool `json:"version_detection" yaml:"version_detection"`
    ScriptScan       bool `json:"script_scan" yaml:"script_scan"`
}

type LogLevel string

const (
    LevelInfo    LogLevel = "info"
    LevelSuccess LogLevel = "success"
    LevelWarning LogLevel = "warning"
    LevelError   LogLevel = "error"
)

type LogEntry struct {
    Timestamp time.Time `json:"timestamp"`
    Phase     string    `json:"phase"`
    Message   string    `json:"message"`
    Level     LogLevel  `json:"level"`
}

type HistoryItem struct {
    ID        string    `json:"id"`
    Target    string    `json:"target"`
    Timestamp time.Time `json:"timestamp"`
    Score     int       `json:"score"`
    PortCount int       `json:"port_count"`
}
