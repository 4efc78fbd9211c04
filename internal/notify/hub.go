package notify

import (
	"sync"
)

const clientBuffer = 16

// Hub tracks the notification streams open on this process, keyed by user.
// A user may have several streams (tabs, devices); each gets every message.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[chan []byte]struct{}
	closed  bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[chan []byte]struct{})}
}

// Subscribe registers a stream for userID. The returned func must be called once the
// stream ends.
func (h *Hub) Subscribe(userID string) (<-chan []byte, func()) {
	ch := make(chan []byte, clientBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[chan []byte]struct{})
	}
	h.clients[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			clients := h.clients[userID]
			if _, ok := clients[ch]; !ok {
				return
			}
			delete(clients, ch)
			if len(clients) == 0 {
				delete(h.clients, userID)
			}
			close(ch)
		})
	}
}

// Deliver hands msg to every stream of userID and returns how many accepted it.
// Slow streams with a full buffer are skipped.
func (h *Hub) Deliver(userID string, msg []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for ch := range h.clients[userID] {
		select {
		case ch <- msg:
			delivered++
		default:
		}
	}
	return delivered
}

func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// Close ends every open stream. Later subscriptions get an already closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for ch := range clients {
			close(ch)
		}
	}
	h.clients = make(map[string]map[chan []byte]struct{})
	h.closed = true
}
