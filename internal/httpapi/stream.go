package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/aitrader/internal/listener"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EVENT STREAM - Websocket broadcast of ledger events
// ═══════════════════════════════════════════════════════════════════════════════
//
// Monitoring surface: every decoded ItemBought/ItemSold event is fanned out
// to connected clients as JSON. Slow clients lose messages, never block the
// repricing path.
//
// ═══════════════════════════════════════════════════════════════════════════════

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type streamEvent struct {
	Kind  string `json:"kind"`
	Item  string `json:"item"`
	Actor string `json:"actor"`
	Qty   string `json:"qty"`
	Block uint64 `json:"block"`
}

// Hub fans ledger events out to websocket subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan []byte]struct{})}
}

// Broadcast sends one event to every subscriber without blocking.
func (h *Hub) Broadcast(ev listener.Event) {
	payload, err := json.Marshal(streamEvent{
		Kind:  ev.Kind.String(),
		Item:  ev.Item.Hex(),
		Actor: ev.Actor.Hex(),
		Qty:   ev.Qty.String(),
		Block: ev.Block,
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (h *Hub) subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
	close(ch)
}

// ServeHTTP upgrades the connection and streams events until the client
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	ch := h.subscribe()
	done := make(chan struct{})

	// Reader: only there to notice the close.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.unsubscribe(ch)
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
