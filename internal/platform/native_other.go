//go:build !(ios && cgo)

package platform

import (
	"github.com/MrWong99/audiosession/internal/config"
	"github.com/MrWong99/audiosession/internal/platform/simulated"
)

const defaultName = simulated.Name

func registerNative(*config.Registry) {}
