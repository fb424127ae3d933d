package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tabletab/api/internal/database"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// sectionEvent is an internal struct for routing events to kitchen sections
type sectionEvent struct {
	SectionID uuid.UUID
	Event     Event
}

// Hub maintains the set of active kitchen displays and broadcasts ticket
// events to them, one room per kitchen section.
type Hub struct {
	// Registered clients by kitchen section ID
	rooms map[uuid.UUID]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *sectionEvent

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *sectionEvent, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.sectionID] == nil {
				h.rooms[client.sectionID] = make(map[*Client]bool)
			}
			h.rooms[client.sectionID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.sectionID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.sectionID)
					}
				}
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			data, err := json.Marshal(ev.Event)
			if err != nil {
				log.Printf("ERROR: marshal ws event: %v", err)
				continue
			}
			h.mu.RLock()
			for client := range h.rooms[ev.SectionID] {
				select {
				case client.send <- data:
				default:
					// Slow consumer, drop the connection
					close(client.send)
					delete(h.rooms[ev.SectionID], client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues an event for every display watching the given section.
// Best-effort: if the hub's buffer is full the event is dropped.
func (h *Hub) Broadcast(sectionID uuid.UUID, event Event) {
	select {
	case h.broadcast <- &sectionEvent{SectionID: sectionID, Event: event}:
	default:
		log.Printf("WARN: ws broadcast buffer full, dropping %s event", event.Type)
	}
}

// itemPayload is the wire shape of a kitchen ticket event.
type itemPayload struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	Status    string    `json:"status"`
	Quantity  int32     `json:"quantity"`
	LinePrice string    `json:"line_price"`
	Notes     *string   `json:"notes"`
}

// ItemCreated implements service.ItemNotifier.
func (h *Hub) ItemCreated(sectionID uuid.UUID, item database.OrderItem) {
	h.broadcastItem(sectionID, "item.created", item)
}

// ItemStatusChanged implements service.ItemNotifier.
func (h *Hub) ItemStatusChanged(sectionID uuid.UUID, item database.OrderItem) {
	h.broadcastItem(sectionID, "item.status_changed", item)
}

func (h *Hub) broadcastItem(sectionID uuid.UUID, eventType string, item database.OrderItem) {
	p := itemPayload{
		ID:        item.ID,
		OrderID:   item.OrderID,
		Status:    item.Status,
		Quantity:  item.Quantity,
		LinePrice: numericToString(item.LinePrice),
	}
	if item.Notes.Valid {
		p.Notes = &item.Notes.String
	}
	data, err := json.Marshal(p)
	if err != nil {
		log.Printf("ERROR: marshal item payload: %v", err)
		return
	}
	h.Broadcast(sectionID, Event{Type: eventType, Payload: data})
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
