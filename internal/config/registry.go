package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/audiosession/pkg/session"
)

// ErrPlatformNotRegistered is returned by [Registry.Create] when no factory
// has been registered under the requested name.
var ErrPlatformNotRegistered = errors.New("config: platform not registered")

// PlatformFactory builds a session platform from the loaded config.
type PlatformFactory func(*Config) (session.Platform, error)

// Registry maps platform names to their constructors. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	platforms map[string]PlatformFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{platforms: make(map[string]PlatformFactory)}
}

// Register registers a platform factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) Register(name string, factory PlatformFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.platforms[name] = factory
}

// Names returns the registered platform names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.platforms))
	for name := range r.platforms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Create instantiates the platform registered under name.
// Returns [ErrPlatformNotRegistered] if no factory has been registered for it.
func (r *Registry) Create(name string, cfg *Config) (session.Platform, error) {
	r.mu.RLock()
	factory, ok := r.platforms[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPlatformNotRegistered, name)
	}
	return factory(cfg)
}
