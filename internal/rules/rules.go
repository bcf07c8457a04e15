// Package rules compiles segmentation-rule expressions and caches the
// compiled form by experiment id (spec §4.2). The grammar is intentionally
// opaque per spec §4.1 — only the contract (parse succeeds or fails) matters
// to the service layer.
package rules

import (
	"strings"
	"sync"

	"github.com/abtest/experiment-core/internal/xerrors"
)

// CompiledRule is the pre-parsed form of a segmentation expression. The
// concrete representation is opaque to callers outside this package;
// bucket-assignment evaluation of a CompiledRule is explicitly out of scope.
type CompiledRule struct {
	Source  string
	clauses []string
}

// Compiler parses segmentation expressions into CompiledRule values.
type Compiler interface {
	Parse(expr string) (*CompiledRule, error)
}

// simpleCompiler splits on "&&" into clauses and rejects empty clauses. It
// exists to give CompiledRule a real (if minimal) shape rather than an
// uninterpreted string, while staying true to spec §4.1's "grammar is
// opaque; only the contract matters."
type simpleCompiler struct{}

// NewCompiler returns the default Compiler.
func NewCompiler() Compiler { return simpleCompiler{} }

func (simpleCompiler) Parse(expr string) (*CompiledRule, error) {
	if strings.TrimSpace(expr) == "" {
		return &CompiledRule{Source: expr}, nil
	}
	parts := strings.Split(expr, "&&")
	clauses := make([]string, 0, len(parts))
	for _, p := range parts {
		clause := strings.TrimSpace(p)
		if clause == "" {
			return nil, xerrors.NewRuleParseError(expr, "empty clause")
		}
		clauses = append(clauses, clause)
	}
	return &CompiledRule{Source: expr, clauses: clauses}, nil
}

// Cache is the in-memory experimentId -> CompiledRule mapping of spec §4.2.
// Readers share an RWMutex read lock; writers take an
// exclusive lock. The cache is advisory: correctness never depends on it.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*CompiledRule
}

// NewCache creates an empty rule cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*CompiledRule)}
}

// Get returns the compiled rule for id, if present.
func (c *Cache) Get(id string) (*CompiledRule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[id]
	return r, ok
}

// Set installs the compiled rule for id, replacing any previous entry.
func (c *Cache) Set(id string, rule *CompiledRule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = rule
}

// Clear removes id's entry, if any.
func (c *Cache) Clear(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}
