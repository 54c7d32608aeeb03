package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrDuplicateStrategy = errors.New("strategy already registered")

type StrategyFactory func() Strategy

type StrategyInfo struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  map[string]float64 `json:"parameters,omitempty"`
}

type registration struct {
	description string
	factory     StrategyFactory
}

// Registry maps strategy names to factories. Every New call returns a fresh
// instance so runs never share strategy state.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]registration)}
}

func (r *Registry) Register(name, description string, factory StrategyFactory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("register strategy %q: missing name or factory", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStrategy, name)
	}
	r.strategies[name] = registration{description: description, factory: factory}
	return nil
}

// New builds the named strategy and applies params when it is Parameterized.
func (r *Registry) New(name string, params map[string]float64) (Strategy, error) {
	r.mu.RLock()
	reg, ok := r.strategies[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}

	s := reg.factory()
	if len(params) == 0 {
		return s, nil
	}
	p, ok := s.(Parameterized)
	if !ok {
		return nil, fmt.Errorf("%w: strategy %s takes no parameters", ErrInvalidConfig, name)
	}
	if err := p.SetParameters(params); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
	}
	return s, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Describe() []StrategyInfo {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StrategyInfo, 0, len(names))
	for _, name := range names {
		reg := r.strategies[name]
		info := StrategyInfo{Name: name, Description: reg.description}
		if p, ok := reg.factory().(Parameterized); ok {
			info.Parameters = p.Parameters()
		}
		out = append(out, info)
	}
	return out
}
