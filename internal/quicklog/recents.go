package quicklog

import (
	"sync"

	"github.com/npezzotti/go-carehome/internal/clock"
	"github.com/npezzotti/go-carehome/internal/observe"
	"github.com/npezzotti/go-carehome/internal/types"
)

const MaxRecents = 6

// Recents keeps the most recently submitted action/variant pairs, newest
// first and without duplicates.
type Recents struct {
	now clock.Clock
	observe.Hub

	mu   sync.RWMutex
	list []types.RecentAction
}

func NewRecents(now clock.Clock) *Recents {
	return &Recents{now: now}
}

// Push moves pairs to the front in the order given.
func (r *Recents) Push(pairs ...types.RecentAction) {
	if len(pairs) == 0 {
		return
	}
	ts := r.now()

	merged := make([]types.RecentAction, 0, len(pairs)+MaxRecents)
	for _, p := range pairs {
		p.Timestamp = ts
		merged = append(merged, p)
	}

	r.mu.Lock()
	r.list = dedupe(append(merged, r.list...))
	r.mu.Unlock()

	r.Publish()
}

func (r *Recents) List() []types.RecentAction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.RecentAction{}, r.list...)
}

func (r *Recents) State() []types.RecentAction {
	return r.List()
}

// Restore loads a stored list, reapplying the cap and dedup.
func (r *Recents) Restore(list []types.RecentAction) {
	r.mu.Lock()
	r.list = dedupe(list)
	r.mu.Unlock()

	r.Publish()
}

func dedupe(list []types.RecentAction) []types.RecentAction {
	out := make([]types.RecentAction, 0, MaxRecents)
	seen := make(map[[2]string]bool)
	for _, ra := range list {
		key := [2]string{ra.ActionId, ra.VariantId}
		if seen[key] || len(out) == MaxRecents {
			continue
		}
		seen[key] = true
		out = append(out, ra)
	}
	return out
}
