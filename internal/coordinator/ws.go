package coordinator

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/technosupport/vms-coordinator/internal/leasestore"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // observer dashboard is read-only; tighten for prod deploys
	},
}

// Event is a best-effort lease lifecycle notification fanned out to
// connected observers (spec.md §6.1's dashboard stream). Delivery is
// not guaranteed: a slow or disconnected observer just misses events.
type Event struct {
	Kind       string `json:"kind,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`
	Type       string `json:"type"`
}

// Hub fans out Events to every currently connected websocket observer.
// It never blocks a Broadcast call on a slow reader: each observer gets
// a buffered outbox, and a full outbox just drops the connection.
type Hub struct {
	mu        sync.Mutex
	observers map[*observer]struct{}
}

type observer struct {
	conn   *websocket.Conn
	outbox chan Event
}

func NewHub() *Hub {
	return &Hub{observers: make(map[*observer]struct{})}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("coordinator: ws upgrade failed: %v", err)
		return
	}

	obs := &observer{conn: conn, outbox: make(chan Event, 32)}
	h.register(obs)
	defer h.unregister(obs)

	go obs.readPump()
	obs.writePump()
}

func (h *Hub) register(obs *observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers[obs] = struct{}{}
}

func (h *Hub) unregister(obs *observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.observers[obs]; ok {
		delete(h.observers, obs)
		close(obs.outbox)
		_ = obs.conn.Close()
	}
}

// Broadcast fans out event to every connected observer without blocking.
// An observer whose outbox is already full is dropped rather than
// letting one slow consumer stall lease lifecycle handling.
func (h *Hub) Broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for obs := range h.observers {
		select {
		case obs.outbox <- event:
		default:
			log.Printf("coordinator: ws observer outbox full, dropping connection")
			delete(h.observers, obs)
			close(obs.outbox)
			_ = obs.conn.Close()
		}
	}
}

// readPump discards inbound messages; the stream is observer-only. It
// exists to surface close/error conditions and keep the connection's
// read deadline serviced.
func (o *observer) readPump() {
	for {
		if _, _, err := o.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (o *observer) writePump() {
	for event := range o.outbox {
		if err := o.conn.WriteJSON(event); err != nil {
			return
		}
	}
}

// HubNotifier adapts Hub to orchestrator.Notifier so the same websocket
// fan-out used for acquire/renew/release events also carries
// start/stop-worker lifecycle observations from a co-located Gateway
// Orchestrator.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) Notify(kind leasestore.Kind, resourceID, event string) {
	n.hub.Broadcast(Event{Kind: string(kind), ResourceID: resourceID, Type: event})
}
