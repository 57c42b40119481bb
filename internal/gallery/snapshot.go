package gallery

import (
	"slices"
	"sync/atomic"
	"time"

	"github.com/starford/galdr/internal/models"
)

var generations atomic.Uint64

// Snapshot is an immutable, ordered view of the assembled gallery. It is
// safe for concurrent use.
type Snapshot struct {
	items      []models.Item
	byID       map[string]int
	generation uint64
	builtAt    time.Time
	dropped    int
}

// NewSnapshot wraps already-ordered items. Each call gets a new generation.
func NewSnapshot(items []models.Item) *Snapshot {
	s := &Snapshot{
		items:      items,
		byID:       make(map[string]int, len(items)),
		generation: generations.Add(1),
		builtAt:    time.Now(),
	}
	for i, it := range items {
		if _, ok := s.byID[it.ID]; !ok {
			s.byID[it.ID] = i
		}
	}
	return s
}

// Items returns the ordered items. The returned slice is a copy; the items'
// own slices are shared and must not be modified.
func (s *Snapshot) Items() []models.Item { return slices.Clone(s.items) }

// Len returns the number of items.
func (s *Snapshot) Len() int { return len(s.items) }

// Lookup returns the item with the given id.
func (s *Snapshot) Lookup(id string) (models.Item, bool) {
	i, ok := s.byID[id]
	if !ok {
		return models.Item{}, false
	}
	return s.items[i], true
}

// Generation identifies this snapshot; later snapshots have larger values.
func (s *Snapshot) Generation() uint64 { return s.generation }

// BuiltAt returns the assembly time.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Dropped returns how many folders assembly left out.
func (s *Snapshot) Dropped() int { return s.dropped }
