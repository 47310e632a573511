//go:build ios && cgo

package avsession

/*
#cgo CFLAGS: -x objective-c -fobjc-arc
#cgo LDFLAGS: -framework Foundation -framework AVFoundation
#include "native/avsession.m"
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/MrWong99/audiosession/pkg/session"
)

var (
	shared     *Platform
	sharedOnce sync.Once
)

// Platform drives the process-wide AVAudioSession.
type Platform struct {
	hub *hub
}

var _ session.Platform = (*Platform)(nil)

// Shared returns the process-wide backend. There is one AVAudioSession per
// process, so there is one Platform.
func Shared() *Platform {
	sharedOnce.Do(func() {
		shared = &Platform{hub: newHub(addObservers, removeObservers)}
	})
	return shared
}

// Name implements [session.Platform].
func (p *Platform) Name() string { return Name }

// Query implements [session.Platform].
func (p *Platform) Query(ctx context.Context) (session.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return session.Snapshot{}, err
	}
	var cerr *C.char
	blob := C.avsQuery(&cerr)
	if blob == nil {
		return session.Snapshot{}, fmt.Errorf("avsession: query: %w: %s", session.ErrQueryFailed, takeString(cerr))
	}
	data := C.GoString(blob)
	C.free(unsafe.Pointer(blob))

	s, err := session.DecodeSnapshot([]byte(data))
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("avsession: query: %w: %w", session.ErrQueryFailed, err)
	}
	return s, nil
}

// Subscribe implements [session.Platform].
func (p *Platform) Subscribe(h session.Handler) (session.Subscription, error) {
	return p.hub.subscribe(h)
}

// ApplyCategory implements [session.Platform].
func (p *Platform) ApplyCategory(ctx context.Context, cfg session.CategoryConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	category := C.CString(string(cfg.Category))
	defer C.free(unsafe.Pointer(category))
	mode := C.CString(string(cfg.Mode))
	defer C.free(unsafe.Pointer(mode))

	var cerr *C.char
	rc := C.avsApplyCategory(category, mode, C.int(optionBits(cfg.Options)),
		C.double(cfg.PreferredSampleRate), C.double(cfg.PreferredIOBufferDuration.Seconds()), &cerr)
	if rc != 0 {
		return fmt.Errorf("avsession: apply %s/%s: %w: %s", cfg.Category, cfg.Mode, session.ErrConfigurationRejected, takeString(cerr))
	}
	return nil
}

// OverrideOutputToSpeaker implements [session.Platform].
func (p *Platform) OverrideOutputToSpeaker(ctx context.Context, enabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var on C.int
	if enabled {
		on = 1
	}
	var cerr *C.char
	if C.avsOverrideSpeaker(on, &cerr) != 0 {
		return fmt.Errorf("avsession: override speaker=%t: %w: %s", enabled, session.ErrConfigurationRejected, takeString(cerr))
	}
	return nil
}

func addObservers() error {
	if C.avsAddObservers() != 0 {
		C.avsRemoveObservers()
		return errors.New("notification center refused an observer")
	}
	return nil
}

func removeObservers() {
	C.avsRemoveObservers()
}

func takeString(s *C.char) string {
	if s == nil {
		return "unknown error"
	}
	defer C.free(unsafe.Pointer(s))
	return C.GoString(s)
}
