//go:build ios && cgo

package platform

import (
	"github.com/MrWong99/audiosession/internal/config"
	"github.com/MrWong99/audiosession/internal/platform/avsession"
	"github.com/MrWong99/audiosession/pkg/session"
)

const defaultName = avsession.Name

func registerNative(r *config.Registry) {
	r.Register(avsession.Name, func(*config.Config) (session.Platform, error) {
		return avsession.Shared(), nil
	})
}
