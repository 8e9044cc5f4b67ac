package deps

import (
	"fmt"

	"github.com/roach88/doccore/internal/cell"
	"github.com/roach88/doccore/internal/ir"
)

// InvariantError is the panic value for illegal essential store operations.
// Like cell.InvariantError it signals a broken build, not bad input.
type InvariantError struct {
	Op  string
	Key EssentialKey
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("essential store invariant violated: %s %s", e.Op, e.Key)
}

// EssentialStore owns all essential data of a document. Entries are created
// lazily, the first time a dependency instruction asks for them.
type EssentialStore struct {
	cells  map[EssentialKey]*cell.Cell
	order  []EssentialKey
	seeds  map[EssentialKey]ir.Value
	seeded map[EssentialKey]bool
}

// NewEssentialStore creates an empty store.
func NewEssentialStore() *EssentialStore {
	return &EssentialStore{
		cells:  make(map[EssentialKey]*cell.Cell),
		seeds:  make(map[EssentialKey]ir.Value),
		seeded: make(map[EssentialKey]bool),
	}
}

// Get returns the cell for key, if created.
func (s *EssentialStore) Get(key EssentialKey) (*cell.Cell, bool) {
	c, ok := s.cells[key]
	return c, ok
}

// Create allocates the cell for key. Creating the same key twice is an
// invariant violation and panics.
func (s *EssentialStore) Create(key EssentialKey, v ir.Value, fromDefault bool) *cell.Cell {
	if _, exists := s.cells[key]; exists {
		panic(&InvariantError{Op: "create existing", Key: key})
	}
	if seed, ok := s.seeds[key]; ok {
		v, fromDefault = seed, false
		s.seeded[key] = true
	}
	c := cell.NewFresh(v, fromDefault)
	s.cells[key] = c
	s.order = append(s.order, key)
	return c
}

// GetOrCreate returns the cell for key, creating it from init if needed.
func (s *EssentialStore) GetOrCreate(key EssentialKey, init func() (ir.Value, bool)) *cell.Cell {
	if c, ok := s.cells[key]; ok {
		return c
	}
	v, fromDefault := init()
	return s.Create(key, v, fromDefault)
}

// Seed supplies a value that replaces the initial value of key when it is
// created. Used to resume state across rebuilds.
func (s *EssentialStore) Seed(key EssentialKey, v ir.Value) {
	s.seeds[key] = v
}

// Keys returns created keys in creation order.
func (s *EssentialStore) Keys() []EssentialKey {
	return append([]EssentialKey(nil), s.order...)
}

// Modified reports whether key holds a value set after creation, or one
// restored from a seed.
func (s *EssentialStore) Modified(key EssentialKey) bool {
	c, ok := s.cells[key]
	if !ok {
		return false
	}
	return s.seeded[key] || c.Changes() > 1
}

// Len returns the number of created entries.
func (s *EssentialStore) Len() int {
	return len(s.cells)
}
