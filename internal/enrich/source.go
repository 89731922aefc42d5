// Package enrich fans businesses out to contact-discovery sources and merges
// the results into a single contact record per business.
package enrich

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/outreach-cli/internal/contacts"
	"github.com/sells-group/outreach-cli/internal/model"
)

// Source is a contact-discovery backend (website profile scraper, search
// engine miner). Discover returns whatever contact data the source found;
// an error means the source produced nothing usable this run.
type Source interface {
	// Name returns the source identifier used in logs and merge records.
	Name() string
	// Priority is the source's rank in the cascade; lower is preferred.
	Priority() int
	// Discover looks up contact data for one business.
	Discover(ctx context.Context, biz model.Business) (contacts.SourceRecord, error)
}

// Registry manages the available discovery sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds a source to the registry.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Name()] = s
}

// Get returns a source by name, or nil if not found.
func (r *Registry) Get(name string) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[name]
}

// Ordered returns all sources sorted by priority.
func (r *Registry) Ordered() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority() < out[j].Priority() })
	return out
}
