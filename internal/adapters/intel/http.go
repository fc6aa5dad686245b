package intel

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "log/slog"
    "net/http"
    "strings"
    "time"

    "github.com/sethvargo/go-retry"

    "netaudit/internal/domain"
)

const maxResponseBytes = 4 << 20

// HTTPSource asks a remote intelligence endpoint for a scan record:
//
//  POST {Endpoint}  {"target": "...", "profile": {...}}  ->  RawScanRecord JSON
//
// Rate limits, 5xx responses and transport errors are retried with
// exponential backoff; anything else fails immediately.
type HTTPSource struct {
    Endpoint   string
    APIKey     string
    Client     *http.Client
    MaxRetries uint64
    BaseDelay  time.Duration
    Logger     *slog.Logger
}

func NewHTTPSource(endpoint, apiKey string, timeout time.Duration, maxRetries uint64) *HTTPSource {
    return &HTTPSource{
        Endpoint:   endpoint,
        APIKey:     apiKey,
        Client:     &http.Client{Timeout: timeout},
        MaxRetries: maxRetries,
        BaseDelay:  500 * time.Millisecond,
        Logger:     slog.Default(),
    }
}

type fetchRequest struct {
    Target  string             `json:"target"`
    Profile domain.ScanProfile `json:"profile"`
}

func (s *HTTPSource) Fetch(ctx context.Context, target string, profile domain.ScanProfile) (*domain.RawScanRecord, error) {
    body, err := json.Marshal(fetchRequest{Target: target, Profile: profile})
    if err != nil {
        return nil, domain.IntelligenceUnavailable(err)
    }

    backoff := retry.WithMaxRetries(s.MaxRetries, retry.NewExponential(s.BaseDelay))
    attempt := 0
    var record *domain.RawScanRecord
    err = retry.Do(ctx, backoff, func(ctx context.Context) error {
        attempt++
        rec, err := s.fetchOnce(ctx, body)
        if err != nil {
            if isRetryable(err) {
                s.Logger.WarnContext(ctx, "intelligence query failed, retrying", "target", target, "attempt", attempt, "error", err)
                return retry.RetryableError(err)
            }
            return err
        }
        record = rec
        return nil
    })
    if err != nil {
        return nil, domain.IntelligenceUnavailable(err)
    }
    // returned as sent; the orchestrator validates the record
    return record, nil
}

type statusError struct {
    code int
    body string
}

func (e *statusError) Error() string {
    if e.body == "" {
        return fmt.Sprintf("intelligence endpoint returned %d", e.code)
    }
    return fmt.Sprintf("intelligence endpoint returned %d: %s", e.code, e.body)
}

func isRetryable(err error) bool {
    var se *statusError
    if errors.As(err, &se) {
        return se.code == http.StatusTooManyRequests || se.code >= 500
    }
    var pe *permanentError
    if errors.As(err, &pe) {
        return false
    }
    if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
        return false
    }
    // transport level: refused, reset, EOF
    return true
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func (s *HTTPSource) fetchOnce(ctx context.Context, body []byte) (*domain.RawScanRecord, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
    if err != nil {
        return nil, &permanentError{err: fmt.Errorf("build intelligence request: %w", err)}
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("Accept", "application/json")
    if s.APIKey != "" {
        req.Header.Set("Authorization", "Bearer "+s.APIKey)
    }

    resp, err := s.Client.Do(req)
    if err != nil {
        return nil, err
    }
    defer resp.Body.Close()

    data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
    if err != nil {
        return nil, err
    }
    if resp.StatusCode != http.StatusOK {
        return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(truncate(string(data), 200))}
    }

    var rec domain.RawScanRecord
    if err := json.Unmarshal(data, &rec); err != nil {
        return nil, &permanentError{err: fmt.Errorf("malformed intelligence response: %w", err)}
    }
    return &rec, nil
}

func truncate(s string, n int) string {
    if len(s) <= n {
        return s
    }
    return s[:n] + "..."
}
