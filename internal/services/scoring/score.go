// Package scoring computes the deterministic security score of a scan record.
//
// Scores run from 100 (nothing exposed) down to 0. Every cause of risk adds a
// penalty; penalties are additive and independent of port order.
package scoring

import "netaudit/internal/domain"

const (
    perfectScore = 100

    surfacePenalty = 2
    versionPenalty = 5
    anomalyPenalty = 25
)

var riskPenalty = map[domain.RiskTag]int{
    domain.RiskCritical: 40,
    domain.RiskHigh:     25,
    domain.RiskMedium:   15,
    domain.RiskLow:      5,
    domain.RiskNone:     2,
}

// Score returns the security score for r. It never fails; a nil record scores
// as an empty one.
func Score(r *domain.RawScanRecord) int {
    return clamp(perfectScore - Penalty(r))
}

// Penalty is the total deduction for r before flooring.
func Penalty(r *domain.RawScanRecord) int {
    if r == nil {
        return 0
    }
    total := 0
    for _, p := range r.OpenPorts {
        total += PortPenalty(p)
    }
    if r.AnomaliesDetected {
        total += anomalyPenalty
    }
    return total
}

// PortPenalty is the surface, risk and version deduction for a single
// finding. Closed ports cost nothing.
func PortPenalty(p domain.PortFinding) int {
    if p.State == domain.PortClosed {
        return 0
    }
    pen, ok := riskPenalty[p.RiskTag]
    if !ok {
        pen = riskPenalty[domain.RiskNone]
    }
    pen += surfacePenalty
    if p.VersionDisclosed() {
        pen += versionPenalty
    }
    return pen
}

func clamp(score int) int {
    if score < 0 {
        return 0
    }
    if score > perfectScore {
        return perfectScore
    }
    return score
}
