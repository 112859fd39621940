package usecase

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"ensemble-ai/internal/domain"
)

// Registry is a named lookup of strategies, owned explicitly by the
// embedding application. Registration validates via the typed Strategy
// contract; there is no package-level instance.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	logger     *slog.Logger
}

// RegistryStats summarizes the registry's contents.
type RegistryStats struct {
	Total  int                  `json:"total"`
	ByKind map[StrategyKind]int `json:"by_kind"`
}

// NewRegistry creates an empty strategy registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		strategies: make(map[string]Strategy),
		logger:     logger,
	}
}

// Register adds a strategy after validating its contract. Duplicate ids and
// contract violations fail.
func (r *Registry) Register(s Strategy) error {
	if s == nil {
		return domain.NewDomainError("Registry.Register", domain.ErrStrategyInvalid, "nil strategy")
	}
	if err := s.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := s.Info().ID
	if _, exists := r.strategies[id]; exists {
		return domain.NewDomainError("Registry.Register", domain.ErrDuplicate, id)
	}
	r.strategies[id] = s

	r.logger.Debug("strategy registered", "id", id, "kind", string(s.Kind()))
	return nil
}

// Resolve accepts either a string id or a Strategy instance. Ids are looked
// up; instances are re-validated and returned as-is. An unresolvable
// reference returns nil with a warning, never an error.
func (r *Registry) Resolve(ref any) Strategy {
	switch v := ref.(type) {
	case string:
		s, err := r.Get(v)
		if err != nil {
			r.logger.Warn("strategy not found", "id", v)
			return nil
		}
		return s
	case Strategy:
		if err := v.Validate(); err != nil {
			r.logger.Warn("strategy instance invalid", "id", v.Info().ID, "error", err)
			return nil
		}
		return v
	default:
		r.logger.Warn("unresolvable strategy reference", "type", fmt.Sprintf("%T", ref))
		return nil
	}
}

// Get retrieves a strategy by id.
func (r *Registry) Get(id string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[id]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrNotFound, id)
	}
	return s, nil
}

// Has reports whether a strategy with the id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.strategies[id]
	return ok
}

// List returns all registered strategies sorted by id.
func (r *Registry) List() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Info().ID < out[j].Info().ID })
	return out
}

// ListByKind returns the registered strategies of one variant, sorted by id.
func (r *Registry) ListByKind(kind StrategyKind) []Strategy {
	var out []Strategy
	for _, s := range r.List() {
		if s.Kind() == kind {
			out = append(out, s)
		}
	}
	return out
}

// Unregister removes a strategy by id.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.strategies[id]; !ok {
		return domain.NewDomainError("Registry.Unregister", domain.ErrNotFound, id)
	}
	delete(r.strategies, id)
	return nil
}

// Clear removes every registered strategy.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies = make(map[string]Strategy)
}

// Stats summarizes the registry contents by variant.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{
		Total:  len(r.strategies),
		ByKind: make(map[StrategyKind]int),
	}
	for _, s := range r.strategies {
		stats.ByKind[s.Kind()]++
	}
	return stats
}
