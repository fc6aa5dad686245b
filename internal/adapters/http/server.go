package httpadapter

import (
    "context"
    "encoding/json"
    "errors"
    "log/slog"
    "net/http"
    "strconv"
    "time"

    "github.com/go-chi/chi/v5"
    "github.com/go-chi/chi/v5/middleware"

    "netaudit/internal/adapters/memory"
    "netaudit/internal/domain"
    "netaudit/internal/ports"
    profilesvc "netaudit/internal/services/profiles"
    "netaudit/internal/services/scanner"
    scanrunner "netaudit/internal/workers/scanrunner"
)

const defaultWaitTimeout = 30 * time.Second

// ErrAsyncDisabled is returned for queued scans when no workers consume the
// queue.
var ErrAsyncDisabled = errString("asynchronous scans are disabled; retry with wait=true")

type errString string

func (e errString) Error() string { return string(e) }

// Assessor is the orchestrator surface the API needs: the consumer
// operations plus a read-only view of the current run.
type Assessor interface {
    ports.Scanner
    Snapshot() scanner.Snapshot
}

type Server struct {
    scanner   Assessor
    profiles  ports.Profiles
    jobs      ports.JobRepository
    processor scanrunner.ScanProcessor
    workers   int
    logger    *slog.Logger
}

// New wires the API. workers is the size of the pool draining jobs; with none,
// only blocking scans are accepted.
func New(scanner Assessor, profiles ports.Profiles, jobs ports.JobRepository, processor scanrunner.ScanProcessor, workers int, logger *slog.Logger) *Server {
    if logger == nil { logger = slog.Default() }
    return &Server{scanner: scanner, profiles: profiles, jobs: jobs, processor: processor, workers: workers, logger: logger}
}

// Routes returns a chi.Router with every API handler mounted.
func (s *Server) Routes() chi.Router {
    r := chi.NewRouter()
    r.Use(middleware.RequestID)
    r.Use(middleware.Recoverer)

    r.Get("/healthz", s.getHealthz)
    r.Post("/scan", s.postScan)
    r.Get("/scan", s.getScan)
    r.Post("/scan/reset", s.postReset)
    r.Get("/scans/{id}", s.getScanStatus)
    r.Get("/history", s.getHistory)
    r.Get("/profiles/{target}", s.getProfile)
    return r
}

type scanRequest struct {
    Target string `json:"target"`
}

type scanAccepted struct {
    ScanID string `json:"scan_id"`
}

type scanStatus struct {
    ID     string `json:"id"`
    Status string `json:"status"`
    Reason string `json:"reason,omitempty"`
}

type errorBody struct {
    Error string `json:"error"`
    Kind  string `json:"kind,omitempty"`
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) postScan(w http.ResponseWriter, r *http.Request) {
    var req scanRequest
    if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
        writeError(w, domain.InvalidInput("request body must be JSON with a target"))
        return
    }
    wait, err := parseBool(r.URL.Query().Get("wait"))
    if err != nil {
        writeError(w, domain.InvalidInput("wait must be a boolean"))
        return
    }

    if !wait && s.workers < 1 {
        writeError(w, ErrAsyncDisabled)
        return
    }

    runID, err := s.scanner.Begin(req.Target)
    if err != nil {
        writeError(w, err)
        return
    }

    if !wait {
        if _, err := s.jobs.Enqueue(r.Context(), runID); err != nil {
            s.logger.ErrorContext(r.Context(), "enqueue scan", "run_id", runID, "error", err)
            if aerr := s.scanner.Abort(runID, "could not queue scan: "+err.Error()); aerr != nil {
                s.logger.WarnContext(r.Context(), "abort unqueued scan", "run_id", runID, "error", aerr)
            }
            writeError(w, err)
            return
        }
        writeJSON(w, http.StatusAccepted, scanAccepted{ScanID: runID})
        return
    }

    timeout := defaultWaitTimeout
    if v := r.URL.Query().Get("timeout"); v != "" {
        if secs, perr := strconv.Atoi(v); perr == nil && secs > 0 {
            timeout = time.Duration(secs) * time.Second
        }
    }
    ctx, cancel := context.WithTimeout(r.Context(), timeout)
    defer cancel()
    // same path the workers take
    if err := scanrunner.ProcessInline(ctx, s.jobs, s.processor, runID, s.logger); err != nil {
        writeError(w, err)
        return
    }
    writeJSON(w, http.StatusOK, s.scanner.Snapshot())
}

func (s *Server) getScan(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, s.scanner.Snapshot())
}

func (s *Server) postReset(w http.ResponseWriter, r *http.Request) {
    s.scanner.Reset()
    writeJSON(w, http.StatusOK, s.scanner.Snapshot())
}

func (s *Server) getScanStatus(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "id")
    status, reason, err := s.jobs.Status(r.Context(), id)
    if err != nil {
        writeError(w, err)
        return
    }
    writeJSON(w, http.StatusOK, scanStatus{ID: id, Status: status, Reason: reason})
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
    items := s.scanner.History()
    if items == nil { items = []domain.HistoryItem{} }
    writeJSON(w, http.StatusOK, items)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
    item, err := s.profiles.GetLatest(r.Context(), chi.URLParam(r, "target"))
    if err != nil {
        writeError(w, err)
        return
    }
    writeJSON(w, http.StatusOK, item)
}

func parseBool(v string) (bool, error) {
    if v == "" { return false, nil }
    return strconv.ParseBool(v)
}

func statusFor(err error) int {
    switch {
    case errors.Is(err, ErrAsyncDisabled):
        return http.StatusServiceUnavailable
    case errors.Is(err, scanner.ErrBusy), errors.Is(err, scanner.ErrStaleRun), errors.Is(err, memory.ErrJobNotQueued):
        return http.StatusConflict
    case errors.Is(err, profilesvc.ErrNotFound), errors.Is(err, memory.ErrNotFound):
        return http.StatusNotFound
    }
    switch domain.KindOf(err) {
    case domain.KindInvalidInput:
        return http.StatusBadRequest
    case domain.KindIntelligenceUnavailable, domain.KindNarrationUnavailable:
        return http.StatusBadGateway
    default:
        return http.StatusInternalServerError
    }
}

func writeError(w http.ResponseWriter, err error) {
    body := errorBody{Error: err.Error()}
    var de *domain.Error
    if errors.As(err, &de) {
        body.Kind = string(de.Kind)
    }
    writeJSON(w, statusFor(err), body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(code)
    _ = json.NewEncoder(w).Encode(v)
}
