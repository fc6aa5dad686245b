package domain

// State is the orchestrator lifecycle state.
type State string

const (
    StateIdle      State = "Idle"
    StateScanning  State = "Scanning"
    StateAnalyzing State = "Analyzing"
    StateReporting State = "Reporting"
    StateError     State = "Error"
)

// Accepting reports whether a new run may start from s.
func (s State) Accepting() bool {
    return s == StateIdle || s == StateReporting || s == StateError
}

// Phase names, in execution order.
const (
    PhaseAcquisition = "Acquisition"
    PhaseCollection  = "Collection"
    PhaseExtraction  = "Extraction"
    PhaseAnalysis    = "Analysis"
    PhaseReporting   = "Reporting"
)
