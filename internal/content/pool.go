// Package content serves the catalogue of caption templates available to sessions.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/makeitmeme/internal/dependencies/clock"
	"github.com/mcoot/makeitmeme/internal/model"
)

// DefaultCacheTTL is how long the active template list is reused before refetching
const DefaultCacheTTL = 300 * time.Second

// Source provides the templates currently enabled by the content collaborator
type Source interface {
	ActiveTemplates(ctx context.Context) ([]model.Template, error)
}

// Pool caches the active templates of a Source for a fixed TTL.
// Reads may be stale by up to the TTL; Refresh forces a refetch.
type Pool struct {
	source Source
	clock  clock.Clock
	ttl    time.Duration
	logger *slog.Logger

	mu        sync.Mutex
	cached    []model.Template
	fetchedAt time.Time
}

// NewPool creates a pool over the given source
func NewPool(source Source, clk clock.Clock, ttl time.Duration, logger *slog.Logger) *Pool {
	return &Pool{
		source: source,
		clock:  clk,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "content")),
	}
}

// ActiveTemplates returns the enabled templates, using the cache while it is fresh
func (p *Pool) ActiveTemplates(ctx context.Context) ([]model.Template, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && p.clock.Now().Sub(p.fetchedAt) < p.ttl {
		return p.cached, nil
	}
	return p.fetchLocked(ctx)
}

// Refresh refetches the templates regardless of cache age
func (p *Pool) Refresh(ctx context.Context) ([]model.Template, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetchLocked(ctx)
}

// Template returns a single active template
func (p *Pool) Template(ctx context.Context, id model.TemplateID) (model.Template, error) {
	templates, err := p.ActiveTemplates(ctx)
	if err != nil {
		return model.Template{}, err
	}
	for _, t := range templates {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Template{}, model.ErrTemplateNotFound
}

func (p *Pool) fetchLocked(ctx context.Context) ([]model.Template, error) {
	all, err := p.source.ActiveTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch templates: %w", err)
	}

	active := make([]model.Template, 0, len(all))
	for _, t := range all {
		if t.Active {
			active = append(active, t)
		}
	}
	p.cached = active
	p.fetchedAt = p.clock.Now()
	p.logger.Debug("template cache refreshed", slog.Int("count", len(active)))
	return active, nil
}
