package profiles

import (
    "context"

    "netaudit/internal/domain"
    "netaudit/internal/ports"
    "netaudit/internal/services/scanner"
)

// Service answers "what was the latest assessment of this domain" from the
// session history. Targets are matched by registrable domain, so
// www.example.com and api.example.com share a profile.
type Service struct {
    history ports.HistoryRepository
}

func New(history ports.HistoryRepository) *Service { return &Service{history: history} }

func (s *Service) GetLatest(ctx context.Context, target string) (domain.HistoryItem, error) {
    _, want, err := scanner.NormalizeTarget(target)
    if err != nil {
        return domain.HistoryItem{}, err
    }
    // newest first, so the first match is the latest
    for _, item := range s.history.List() {
        _, registrable, err := scanner.NormalizeTarget(item.Target)
        if err != nil {
            continue
        }
        if registrable == want {
            return item, nil
        }
    }
    return domain.HistoryItem{}, ErrNotFound
}

var ErrNotFound = errString("not found")
type errString string
func (e errString) Error() string { return string(e) }

var _ ports.Profiles = (*Service)(nil)
