package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tabletab/api/internal/database"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, sectionID uuid.UUID) *Client {
	return &Client{
		hub:       hub,
		sectionID: sectionID,
		send:      make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	sectionID := uuid.New()
	client := mockClient(hub, sectionID)

	// Register client
	hub.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[sectionID] == nil {
		t.Fatal("section room not created")
	}
	if !hub.rooms[sectionID][client] {
		t.Fatal("client not registered in section room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	sectionID := uuid.New()
	client := mockClient(hub, sectionID)

	// Register client
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	// Unregister client
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms[sectionID] != nil {
		t.Fatal("section room not cleaned up after last client unregistered")
	}
}

func TestBroadcastToSingleSection(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	section1 := uuid.New()
	section2 := uuid.New()

	client1 := mockClient(hub, section1)
	client2 := mockClient(hub, section2)

	// Register both clients
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	// Broadcast to section1 only
	testPayload := json.RawMessage(`{"id":"test-123"}`)
	event := Event{
		Type:    "item.created",
		Payload: testPayload,
	}
	hub.Broadcast(section1, event)

	// Check client1 receives the message
	select {
	case msg := <-client1.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != "item.created" {
			t.Errorf("expected type 'item.created', got '%s'", received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload '%s', got '%s'", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client1 did not receive message")
	}

	// Check client2 does NOT receive the message
	select {
	case <-client2.send:
		t.Fatal("client2 should not have received message for different section")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToMultipleClientsInSameSection(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	sectionID := uuid.New()
	client1 := mockClient(hub, sectionID)
	client2 := mockClient(hub, sectionID)
	client3 := mockClient(hub, sectionID)

	// Register all clients to same section
	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	// Broadcast event
	testPayload := json.RawMessage(`{"status":"PREPARING"}`)
	event := Event{
		Type:    "item.status_changed",
		Payload: testPayload,
	}
	hub.Broadcast(sectionID, event)

	// All three clients should receive the message
	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "item.status_changed" {
				t.Errorf("client%d: expected type 'item.status_changed', got '%s'", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestItemStatusChangedPayload(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	sectionID := uuid.New()
	client := mockClient(hub, sectionID)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	var price pgtype.Numeric
	_ = price.Scan("54.00")
	item := database.OrderItem{
		ID:               uuid.New(),
		OrderID:          uuid.New(),
		KitchenSectionID: pgtype.UUID{Bytes: sectionID, Valid: true},
		Quantity:         2,
		LinePrice:        price,
		Status:           "PREPARING",
	}
	hub.ItemStatusChanged(sectionID, item)

	select {
	case msg := <-client.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != "item.status_changed" {
			t.Errorf("expected type 'item.status_changed', got '%s'", received.Type)
		}
		var p itemPayload
		if err := json.Unmarshal(received.Payload, &p); err != nil {
			t.Fatalf("failed to unmarshal payload: %v", err)
		}
		if p.ID != item.ID {
			t.Errorf("item ID: got %v, want %v", p.ID, item.ID)
		}
		if p.LinePrice != "54.00" {
			t.Errorf("line price: got %s, want 54.00", p.LinePrice)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client did not receive message")
	}
}
