// Package intel provides IntelligenceSource implementations: a deterministic
// simulated source for offline use and an HTTP client for a remote
// intelligence endpoint.
package intel

import (
    "context"
    "fmt"
    "hash/fnv"
    "math/rand"
    "time"

    "netaudit/internal/domain"
)

type catalogEntry struct {
    port    uint16
    service string
    version string
    risk    domain.RiskTag
}

// catalog is the pool simulated findings are drawn from.
var catalog = []catalogEntry{
    {21, "ftp", "vsftpd 2.3.4", domain.RiskCritical},
    {22, "ssh", "OpenSSH 7.4", domain.RiskMedium},
    {23, "telnet", "Linux telnetd", domain.RiskCritical},
    {25, "smtp", "Postfix smtpd", domain.RiskLow},
    {53, "domain", "ISC BIND 9.11", domain.RiskLow},
    {80, "http", "nginx 1.18.0", domain.RiskLow},
    {110, "pop3", "Dovecot pop3d", domain.RiskMedium},
    {143, "imap", "unknown", domain.RiskLow},
    {443, "https", "nginx 1.18.0", domain.RiskNone},
    {445, "microsoft-ds", "Samba smbd 3.X", domain.RiskHigh},
    {3306, "mysql", "MySQL 5.5.62", domain.RiskHigh},
    {3389, "ms-wbt-server", "unknown", domain.RiskHigh},
    {5432, "postgresql", "PostgreSQL 9.6", domain.RiskMedium},
    {6379, "redis", "Redis 4.0.9", domain.RiskCritical},
    {8080, "http-proxy", "Apache Tomcat 8.5", domain.RiskMedium},
    {9200, "elasticsearch", "Elasticsearch 6.8", domain.RiskHigh},
}

var (
    registrars = []string{"MarkMonitor Inc.", "GoDaddy.com, LLC", "NameCheap, Inc.", "Gandi SAS", "Tucows Domains Inc."}
    locations  = []domain.Geolocation{
        {Country: "United States", City: "Ashburn", ISP: "Amazon.com, Inc."},
        {Country: "Germany", City: "Frankfurt am Main", ISP: "Hetzner Online GmbH"},
        {Country: "Netherlands", City: "Amsterdam", ISP: "DigitalOcean, LLC"},
        {Country: "Singapore", City: "Singapore", ISP: "Google LLC"},
        {Country: "France", City: "Roubaix", ISP: "OVH SAS"},
    }
    stateReasons = map[domain.PortState]string{
        domain.PortOpen:     "syn-ack",
        domain.PortFiltered: "no-response",
    }
)

// Simulated fabricates a plausible scan record seeded by the target name, so
// the same target always yields the same record. No packets are sent.
type Simulated struct {
    Latency time.Duration
    now     func() time.Time
}

func NewSimulated(latency time.Duration) *Simulated {
    return &Simulated{Latency: latency, now: time.Now}
}

func (s *Simulated) Fetch(ctx context.Context, target string, profile domain.ScanProfile) (*domain.RawScanRecord, error) {
    if s.Latency > 0 {
        select {
        case <-ctx.Done():
            return nil, domain.IntelligenceUnavailable(fmt.Errorf("intelligence query for %s aborted: %w", target, ctx.Err()))
        case <-time.After(s.Latency):
        }
    }

    h := fnv.New64a()
    _, _ = h.Write([]byte(target))
    rng := rand.New(rand.NewSource(int64(h.Sum64())))

    rec := &domain.RawScanRecord{
        Target:    target,
        Timestamp: s.now().UTC().Format(time.RFC3339),
        DNSRecords: []domain.DNSRecord{
            {Type: "A", Name: target, Value: fmt.Sprintf("198.51.100.%d", 1+rng.Intn(254))},
            {Type: "NS", Name: target, Value: fmt.Sprintf("ns%d.%s", 1+rng.Intn(4), target)},
            {Type: "MX", Name: target, Value: "mail." + target},
        },
        Geolocation: locations[rng.Intn(len(locations))],
        WhoisSummary: domain.WhoisSummary{
            Registrar:    registrars[rng.Intn(len(registrars))],
            CreationDate: fmt.Sprintf("%d-%02d-%02d", 1998+rng.Intn(22), 1+rng.Intn(12), 1+rng.Intn(28)),
            ExpiryDate:   fmt.Sprintf("%d-%02d-%02d", 2026+rng.Intn(5), 1+rng.Intn(12), 1+rng.Intn(28)),
        },
        AnomaliesDetected: rng.Intn(5) == 0,
    }

    // 2..7 distinct catalog entries, kept in catalog (port) order
    picks := rng.Perm(len(catalog))[:2+rng.Intn(6)]
    chosen := make([]bool, len(catalog))
    for _, i := range picks {
        chosen[i] = true
    }
    for i, c := range catalog {
        if !chosen[i] {
            continue
        }
        state := domain.PortOpen
        if rng.Intn(6) == 0 {
            state = domain.PortFiltered
        }
        f := domain.PortFinding{Port: c.port, Service: c.service, State: state, RiskTag: c.risk}
        if profile.VersionDetection {
            v := c.version
            f.Version = &v
        }
        if profile.ScriptScan {
            r := stateReasons[state]
            f.Reason = &r
        }
        rec.OpenPorts = append(rec.OpenPorts, f)
    }
    return rec, nil
}
