// Package avsession is the AVAudioSession backend. The Objective-C bridge in
// native/ is compiled on iOS with cgo; the notification fan-out and the wire
// mapping between C and Go live in untagged files so they build everywhere.
package avsession

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/audiosession/pkg/session"
)

// Name is the registry name of this backend.
const Name = "avaudiosession"

// hub fans one set of OS observers out to any number of subscribers. The
// observers are installed with the first subscription and removed with the
// last one.
type hub struct {
	attach func() error
	detach func()

	mu       sync.Mutex
	nextID   int
	handlers map[int]session.Handler
}

func newHub(attach func() error, detach func()) *hub {
	return &hub{
		attach:   attach,
		detach:   detach,
		handlers: make(map[int]session.Handler),
	}
}

func (h *hub) subscribe(fn session.Handler) (session.Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.handlers) == 0 {
		if err := h.attach(); err != nil {
			return nil, fmt.Errorf("avsession: add observers: %w: %v", session.ErrSubscription, err)
		}
		slog.Debug("avsession: observers installed")
	}
	h.nextID++
	id := h.nextID
	h.handlers[id] = fn
	return &subscription{hub: h, id: id}, nil
}

func (h *hub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.handlers[id]; !ok {
		return
	}
	delete(h.handlers, id)
	if len(h.handlers) == 0 {
		h.detach()
		slog.Debug("avsession: observers removed")
	}
}

// dispatch delivers n to every subscriber on the calling thread.
func (h *hub) dispatch(n session.Notification) {
	h.mu.Lock()
	fns := make([]session.Handler, 0, len(h.handlers))
	for _, fn := range h.handlers {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(n)
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}

type subscription struct {
	hub  *hub
	id   int
	once sync.Once
}

func (s *subscription) Cancel() error {
	s.once.Do(func() { s.hub.remove(s.id) })
	return nil
}
