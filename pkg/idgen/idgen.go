// Package idgen provides the UUID source used for event envelope ids,
// in-flight flush handles, and default trace/observation/score ids.
// Envelope ids must be unique for the life of the process; target object
// ids may repeat across create/update calls for the same target.
package idgen

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Source generates fresh unique ids. Injectable so tests can assert on
// predictable ids instead of random UUIDs.
type Source interface {
	New() string
}

// UUID is the production Source, backed by github.com/google/uuid.
type UUID struct{}

// New returns a fresh random (v4) UUID string.
func (UUID) New() string {
	return uuid.NewString()
}

// Sequential is a deterministic test Source that hands out "id-1", "id-2", …
// Safe for concurrent use, since ids are requested from both facade and
// pipeline goroutines.
type Sequential struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequential creates a Sequential id source with the given prefix.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New returns the next sequential id.
func (s *Sequential) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.prefix + "-" + strconv.Itoa(s.next)
}
