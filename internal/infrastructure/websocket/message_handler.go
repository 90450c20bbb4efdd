package websocket

import (
	"encoding/json"
	"time"

	"sakanect/pkg/logger"
)

// Event types pushed to clients.
const (
	EventNewMessage   = "new_message"
	EventOfferUpdate  = "offer_update"
	EventNotification = "notification"

	EventPing  = "ping"
	EventPong  = "pong"
	EventError = "error"
)

// Event is the envelope of every frame in either direction.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// OfferUpdateData is pushed to both parties when an offer changes state.
type OfferUpdateData struct {
	OfferID        string  `json:"offer_id"`
	ConversationID string  `json:"conversation_id"`
	ListingID      string  `json:"listing_id"`
	Status         string  `json:"status"`
	Amount         float64 `json:"amount"`
	QuantityKg     int     `json:"quantity_kg"`
	NextOfferID    string  `json:"next_offer_id,omitempty"`
}

// HandleClientMessage processes frames sent by the browser. The socket is
// push-only for domain events; writes go through the REST API.
func (m *Manager) HandleClientMessage(client *Client, raw []byte) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		logger.Debug("WebSocket: invalid frame from %s: %v", client.UserID, err)
		m.sendError(client, "Invalid message format")
		return
	}

	switch event.Type {
	case EventPing:
		m.send(client, Event{Type: EventPong, Timestamp: time.Now().UTC().Format(time.RFC3339)})
	default:
		m.sendError(client, "Unsupported message type: "+event.Type)
	}
}

func (m *Manager) sendError(client *Client, message string) {
	m.send(client, Event{
		Type:      EventError,
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (m *Manager) send(client *Client, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case client.Send <- payload:
	default:
	}
}
