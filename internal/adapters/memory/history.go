package memory

import (
    "sync"

    "netaudit/internal/domain"
)

// History is the session history. Items are stored oldest first internally so
// Record is an amortized O(1) append; List returns them newest first.
type History struct {
    mu    sync.RWMutex
    items []domain.HistoryItem
}

func NewHistory() *History { return &History{} }

func (h *History) Record(item domain.HistoryItem) {
    h.mu.Lock()
    h.items = append(h.items, item)
    h.mu.Unlock()
}

// List returns a copy, newest first.
func (h *History) List() []domain.HistoryItem {
    h.mu.RLock()
    defer h.mu.RUnlock()
    out := make([]domain.HistoryItem, len(h.items))
    for i, item := range h.items {
        out[len(h.items)-1-i] = item
    }
    return out
}

func (h *History) Len() int {
    h.mu.RLock()
    defer h.mu.RUnlock()
    return len(h.items)
}
