package debugserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/audiosession/internal/monitor"
)

const (
	// clientBuffer is the number of events held per stream client.
	clientBuffer = 32

	writeTimeout = 5 * time.Second
)

type client struct {
	events chan monitor.Event
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// broadcaster fans monitor events out to WebSocket clients. A client that
// falls behind loses events rather than slowing the monitor down.
type broadcaster struct {
	mu      sync.Mutex
	nextID  uint64
	clients map[uint64]*client
}

func newBroadcaster() *broadcaster {
	return &broadcaster{clients: make(map[uint64]*client)}
}

func (b *broadcaster) add() (uint64, *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	c := &client{events: make(chan monitor.Event, clientBuffer), done: make(chan struct{})}
	b.clients[b.nextID] = c
	return b.nextID, c
}

func (b *broadcaster) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.clients[id]; ok {
		c.close()
		delete(b.clients, id)
	}
}

func (b *broadcaster) publish(ev monitor.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, c := range b.clients {
		select {
		case c.events <- ev:
		default:
			slog.Warn("debugserver: stream client too slow, event dropped", "client", id, "type", ev.Type)
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, c := range b.clients {
		c.close()
		delete(b.clients, id)
	}
}

func (b *broadcaster) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// handleEvents upgrades to a WebSocket and streams every monitor event as a
// JSON text message until the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("debugserver: websocket accept", "err", err)
		return
	}
	defer conn.CloseNow()

	id, c := s.events.add()
	defer s.events.remove(id)
	slog.Debug("debugserver: stream client connected", "client", id)

	// Reads are not expected; CloseRead cancels ctx when the peer closes.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			slog.Debug("debugserver: stream client gone", "client", id)
			return
		case <-c.done:
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case ev := <-c.events:
			if err := write(ctx, conn, ev); err != nil {
				if !errors.Is(err, context.Canceled) {
					slog.Warn("debugserver: stream write", "client", id, "err", err)
				}
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, ev monitor.Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
