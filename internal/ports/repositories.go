package ports

import "netaudit/internal/domain"

// HistoryRepository is the session history: prepend-only, newest first.
type HistoryRepository interface {
    Record(item domain.HistoryItem)
    List() []domain.HistoryItem
}
