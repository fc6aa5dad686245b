package main

import (
    "fmt"
    "io"
    "strings"

    "github.com/fatih/color"

    "netaudit/internal/domain"
)

// renderer prints scan progress and results to a terminal.
type renderer struct {
    out io.Writer

    info    *color.Color
    success *color.Color
    warning *color.Color
    failure *color.Color
    heading *color.Color
    dim     *color.Color
}

func newRenderer(out io.Writer) *renderer {
    return &renderer{
        out:     out,
        info:    color.New(color.FgCyan),
        success: color.New(color.FgGreen),
        warning: color.New(color.FgYellow),
        failure: color.New(color.FgRed),
        heading: color.New(color.FgBlue, color.Bold),
        dim:     color.New(color.FgHiBlack),
    }
}

func (r *renderer) levelColor(level domain.LogLevel) *color.Color {
    switch level {
    case domain.LevelSuccess:
        return r.success
    case domain.LevelWarning:
        return r.warning
    case domain.LevelError:
        return r.failure
    default:
        return r.info
    }
}

// Entry is installed as the scanner's log sink.
func (r *renderer) Entry(e domain.LogEntry) {
    r.dim.Fprintf(r.out, "%s ", e.Timestamp.Format("15:04:05"))
    r.levelColor(e.Level).Fprintf(r.out, "[%-11s] %s\n", e.Phase, e.Message)
}

func (r *renderer) Header(target string) {
    fmt.Fprintln(r.out)
    r.heading.Fprintf(r.out, "== %s ==\n", target)
}

func (r *renderer) Failure(target string, kind domain.ErrorKind, err error) {
    r.failure.Fprintf(r.out, "assessment of %s failed (%s): %v\n", target, kind, err)
}

func (r *renderer) scoreColor(score int) *color.Color {
    switch {
    case score >= 80:
        return r.success
    case score >= 50:
        return r.warning
    default:
        return r.failure
    }
}

func (r *renderer) severityColor(s domain.Severity) *color.Color {
    switch s {
    case domain.SeverityCritical, domain.SeverityHigh:
        return r.failure
    case domain.SeverityMedium:
        return r.warning
    default:
        return r.info
    }
}

func (r *renderer) Result(res *domain.AnalysisResult) {
    fmt.Fprintln(r.out)
    r.scoreColor(res.Score).Fprintf(r.out, "Score: %d/100 (%s)\n", res.Score, res.RiskLevel)
    fmt.Fprintln(r.out, res.Summary)

    if len(res.Vulnerabilities) > 0 {
        r.heading.Fprintln(r.out, "Vulnerabilities:")
        for _, v := range res.Vulnerabilities {
            cve := ""
            if v.CVE != nil {
                cve = " " + *v.CVE
            }
            r.severityColor(v.Severity).Fprintf(r.out, "  %s [%s] %s%s\n", v.ID, v.Severity, v.Name, cve)
            fmt.Fprintf(r.out, "      %s\n", v.Description)
        }
    }
    if len(res.Recommendations) > 0 {
        r.heading.Fprintln(r.out, "Recommendations:")
        for i, rec := range res.Recommendations {
            fmt.Fprintf(r.out, "  %d. %s\n", i+1, rec)
        }
    }
}

func (r *renderer) History(items []domain.HistoryItem) {
    if len(items) == 0 {
        return
    }
    fmt.Fprintln(r.out)
    r.heading.Fprintln(r.out, "Session history:")
    for _, it := range items {
        line := fmt.Sprintf("  %s  %-30s %3d/100  %d ports", it.Timestamp.Format("2006-01-02 15:04:05"), it.Target, it.Score, it.PortCount)
        r.scoreColor(it.Score).Fprintln(r.out, strings.TrimRight(line, " "))
    }
}
