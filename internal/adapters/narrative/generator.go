// Package narrative builds the human-readable part of an assessment from a
// scan record using a static service knowledge base. It makes no external
// calls, so its output is reproducible.
package narrative

import (
    "context"
    "errors"
    "fmt"
    "sort"
    "strings"

    "netaudit/internal/domain"
    "netaudit/internal/services/scoring"
)

type Generator struct {
    tiers scoring.TierTable
}

func New(tiers scoring.TierTable) *Generator {
    return &Generator{tiers: tiers}
}

var severityRank = map[domain.Severity]int{
    domain.SeverityCritical: 0,
    domain.SeverityHigh:     1,
    domain.SeverityMedium:   2,
    domain.SeverityLow:      3,
}

func (g *Generator) Narrate(ctx context.Context, record *domain.RawScanRecord, score int) (*domain.Narrative, error) {
    if err := ctx.Err(); err != nil {
        return nil, domain.NarrationUnavailable(err)
    }
    if record == nil {
        return nil, domain.NarrationUnavailable(errors.New("no scan record to narrate"))
    }

    var (
        vulns     []domain.Vulnerability
        recs      []string
        seen      = map[string]bool{}
        disclosed []string
        exposed   int
    )
    addRec := func(r string) {
        if r != "" && !seen[r] {
            seen[r] = true
            recs = append(recs, r)
        }
    }

    for _, p := range record.OpenPorts {
        if p.State == domain.PortClosed {
            continue
        }
        exposed++
        if p.VersionDisclosed() {
            disclosed = append(disclosed, fmt.Sprintf("%s/%d", p.Service, p.Port))
        }
        sev, ok := severityFor(p.RiskTag)
        if !ok {
            continue
        }
        v := domain.Vulnerability{Severity: sev}
        if adv, found := lookupAdvisory(p.Service); found {
            v.Name = adv.name
            v.Description = adv.description
            v.Mitigation = adv.mitigation
            v.CVE = adv.cveFor(p.Version)
        } else {
            v.Name = fmt.Sprintf("Exposed %s service", p.Service)
            v.Description = fmt.Sprintf("Port %d (%s) is reachable and was classified %s risk.", p.Port, p.Service, p.RiskTag)
            v.Mitigation = fmt.Sprintf("Confirm port %d must be public; otherwise firewall it.", p.Port)
        }
        if p.Version != nil && v.CVE != nil {
            v.Description += fmt.Sprintf(" Detected version %s is affected by %s.", *p.Version, *v.CVE)
        }
        vulns = append(vulns, v)
    }

    sort.SliceStable(vulns, func(i, j int) bool {
        return severityRank[vulns[i].Severity] < severityRank[vulns[j].Severity]
    })
    for i := range vulns {
        vulns[i].ID = fmt.Sprintf("VULN-%03d", i+1)
        addRec(vulns[i].Mitigation)
    }
    if len(disclosed) > 0 {
        addRec("Suppress version banners on " + strings.Join(disclosed, ", ") + ".")
    }
    if record.AnomaliesDetected {
        addRec("Investigate the anomalous network behaviour observed during collection and review IDS logs.")
    }
    if len(recs) == 0 {
        addRec("No immediate action required; schedule a periodic reassessment.")
    }

    level := g.tiers.Lookup(score)
    return &domain.Narrative{
        Summary:         g.summary(record, score, level, exposed, vulns),
        RiskLevel:       level,
        Vulnerabilities: vulns,
        Recommendations: recs,
        Score:           score,
    }, nil
}

func (g *Generator) summary(record *domain.RawScanRecord, score int, level string, exposed int, vulns []domain.Vulnerability) string {
    var b strings.Builder
    fmt.Fprintf(&b, "%s scored %d/100 (%s). ", record.Target, score, level)
    fmt.Fprintf(&b, "%d exposed service(s) were identified", exposed)
    severe := 0
    for _, v := range vulns {
        if v.Severity == domain.SeverityCritical || v.Severity == domain.SeverityHigh {
            severe++
        }
    }
    if severe > 0 {
        fmt.Fprintf(&b, ", %d of them high or critical risk", severe)
    }
    b.WriteString(".")
    geo := record.Geolocation
    if geo.ISP != "" || geo.Country != "" {
        fmt.Fprintf(&b, " The host is served by %s", orUnknown(geo.ISP))
        if geo.City != "" || geo.Country != "" {
            fmt.Fprintf(&b, " in %s", strings.Trim(geo.City+", "+geo.Country, ", "))
        }
        b.WriteString(".")
    }
    if record.AnomaliesDetected {
        b.WriteString(" Anomalous behaviour was detected and warrants follow-up.")
    }
    return b.String()
}

func severityFor(tag domain.RiskTag) (domain.Severity, bool) {
    switch tag {
    case domain.RiskLow:
        return domain.SeverityLow, true
    case domain.RiskMedium:
        return domain.SeverityMedium, true
    case domain.RiskHigh:
        return domain.SeverityHigh, true
    case domain.RiskCritical:
        return domain.SeverityCritical, true
    default:
        return "", false
    }
}

func orUnknown(s string) string {
    if s == "" {
        return "an unknown provider"
    }
    return s
}
