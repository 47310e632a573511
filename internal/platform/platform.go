// Package platform selects the audio session backend for the build target.
//
// Backends register themselves in a [config.Registry]. The simulated backend
// is always available; the AVAudioSession backend is compiled in on iOS with
// cgo and is the default there.
package platform

import (
	"sync"

	"github.com/MrWong99/audiosession/internal/config"
	"github.com/MrWong99/audiosession/internal/platform/simulated"
	"github.com/MrWong99/audiosession/pkg/session"
)

var (
	registry     *config.Registry
	registryOnce sync.Once
)

// Registry returns the registry holding every backend compiled into this
// binary.
func Registry() *config.Registry {
	registryOnce.Do(func() {
		registry = config.NewRegistry()
		registry.Register(simulated.Name, func(*config.Config) (session.Platform, error) {
			return simulated.New(), nil
		})
		registerNative(registry)
	})
	return registry
}

// DefaultName returns the backend used when the config names none.
func DefaultName() string { return defaultName }

// New builds the backend named by cfg.Platform, or the default backend.
func New(cfg *config.Config) (session.Platform, error) {
	name := cfg.Platform
	if name == "" {
		name = defaultName
	}
	return Registry().Create(name, cfg)
}
