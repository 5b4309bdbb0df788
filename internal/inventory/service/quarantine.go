package service

import (
	"sync"
)

// Quarantine tracks items whose ledger replay failed with an inconsistency.
// Quarantined items are skipped by ledger-replay analytics and by the alert
// scanner until an operator reconciles them. Purely in-memory: a restart
// clears it, and the next failing replay re-quarantines.
type Quarantine struct {
	mu    sync.RWMutex
	items map[string]struct{} // tenantID + "/" + itemID
}

// NewQuarantine creates an empty quarantine registry
func NewQuarantine() *Quarantine {
	return &Quarantine{items: make(map[string]struct{})}
}

func quarantineKey(tenantID, itemID string) string {
	return tenantID + "/" + itemID
}

// Add quarantines an item
func (q *Quarantine) Add(tenantID, itemID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[quarantineKey(tenantID, itemID)] = struct{}{}
}

// Remove lifts an item's quarantine
func (q *Quarantine) Remove(tenantID, itemID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.items, quarantineKey(tenantID, itemID))
}

// Contains reports whether the item is quarantined
func (q *Quarantine) Contains(tenantID, itemID string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.items[quarantineKey(tenantID, itemID)]
	return ok
}
