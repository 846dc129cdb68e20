package ws

import (
	"encoding/json"
	"testing"
	"time"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, topic string) *Client {
	return &Client{
		hub:   hub,
		topic: topic,
		send:  make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, TopicOrders)

	// Register client
	hub.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[TopicOrders] == nil {
		t.Fatal("topic room not created")
	}
	if !hub.rooms[TopicOrders][client] {
		t.Fatal("client not registered in topic room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, TopicKitchen)

	// Register client
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	// Unregister client
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms[TopicKitchen] != nil {
		t.Fatal("topic room not cleaned up after last client unregistered")
	}
}

func TestBroadcastToSingleTopic(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	ordersClient := mockClient(hub, TopicOrders)
	tablesClient := mockClient(hub, TopicTables)

	// Register both clients
	hub.register <- ordersClient
	hub.register <- tablesClient
	time.Sleep(10 * time.Millisecond)

	// Broadcast to the orders topic only
	testPayload := json.RawMessage(`{"order_id":"test-123"}`)
	event := Event{
		Type:    "order.created",
		Payload: testPayload,
	}
	hub.BroadcastToTopic(TopicOrders, event)

	// Check the orders client receives the message
	select {
	case msg := <-ordersClient.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != "order.created" {
			t.Errorf("expected type 'order.created', got '%s'", received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload '%s', got '%s'", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("orders client did not receive message")
	}

	// Check the tables client does NOT receive the message
	select {
	case <-tablesClient.send:
		t.Fatal("tables client should not have received an orders event")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToMultipleClientsInSameTopic(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client1 := mockClient(hub, TopicKitchen)
	client2 := mockClient(hub, TopicKitchen)
	client3 := mockClient(hub, TopicKitchen)

	// Register all clients to the same topic
	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	// Broadcast event
	testPayload := json.RawMessage(`{"status":"served"}`)
	event := Event{
		Type:    "item.served",
		Payload: testPayload,
	}
	hub.BroadcastToTopic(TopicKitchen, event)

	// All three clients should receive the message
	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "item.served" {
				t.Errorf("client%d: expected type 'item.served', got '%s'", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestHubTopicIsolation(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Create 2 clients per topic
	clients := map[string][]*Client{
		TopicOrders:  {mockClient(hub, TopicOrders), mockClient(hub, TopicOrders)},
		TopicTables:  {mockClient(hub, TopicTables), mockClient(hub, TopicTables)},
		TopicKitchen: {mockClient(hub, TopicKitchen), mockClient(hub, TopicKitchen)},
	}

	// Register all clients
	for _, clientList := range clients {
		for _, client := range clientList {
			hub.register <- client
		}
	}
	time.Sleep(10 * time.Millisecond)

	// Broadcast to the tables topic only
	event := Event{
		Type:    "table.updated",
		Payload: json.RawMessage(`{"status":"available"}`),
	}
	hub.BroadcastToTopic(TopicTables, event)

	// Only tables clients should receive
	for topic, clientList := range clients {
		for i, client := range clientList {
			select {
			case msg := <-client.send:
				if topic != TopicTables {
					t.Fatalf("topic %s client %d should not receive message", topic, i)
				}
				var received Event
				if err := json.Unmarshal(msg, &received); err != nil {
					t.Fatalf("unmarshal error: %v", err)
				}
				if received.Type != "table.updated" {
					t.Errorf("wrong event type: %s", received.Type)
				}
			case <-time.After(50 * time.Millisecond):
				if topic == TopicTables {
					t.Fatalf("tables client %d should have received message", i)
				}
				// Expected for other topics
			}
		}
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client1 := mockClient(hub, TopicOrders)
	client2 := mockClient(hub, TopicOrders)

	// Register both clients
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[TopicOrders]) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(hub.rooms[TopicOrders]))
	}
	hub.mu.RUnlock()

	// Unregister first client
	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[TopicOrders]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.rooms[TopicOrders]))
	}
	hub.mu.RUnlock()

	// Unregister second client
	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms[TopicOrders] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}

func TestBroadcastToEmptyTopic(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Create a client for the orders topic
	client := mockClient(hub, TopicOrders)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	// Broadcast to a topic with no subscribers
	event := Event{
		Type:    "item.served",
		Payload: json.RawMessage(`{"test":"data"}`),
	}
	hub.BroadcastToTopic(TopicKitchen, event)

	// The orders client should NOT receive anything
	select {
	case <-client.send:
		t.Fatal("client should not receive message for different topic")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}
}

func TestValidTopic(t *testing.T) {
	for _, topic := range []string{TopicOrders, TopicTables, TopicKitchen} {
		if !ValidTopic(topic) {
			t.Errorf("expected %q to be a valid topic", topic)
		}
	}
	for _, topic := range []string{"", "bills", "ORDERS", "kitchen/items"} {
		if ValidTopic(topic) {
			t.Errorf("expected %q to be rejected", topic)
		}
	}
}
