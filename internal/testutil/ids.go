package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs returns predetermined ids, then numbered ones.
//
// The listed ids are handed out first, in order. After they run out,
// ids are "<prefix>-<n>" with n counting from 1. This keeps scenario
// output byte-identical between runs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	ids    []string
	n      int
}

// NewSequenceIDs creates a generator. An empty prefix uses "id".
func NewSequenceIDs(prefix string, ids ...string) *SequenceIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceIDs{prefix: prefix, ids: ids}
}

// Generate returns the next id.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.ids) > 0 {
		id := g.ids[0]
		g.ids = g.ids[1:]
		return id
	}
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
