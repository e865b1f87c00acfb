package event

import (
	"encoding/json"
	"time"
)

// WSMessage is the JSON message sent over WebSocket.
type WSMessage struct {
	Event string         `json:"event"`          // Event name (e.g., "remote-listing")
	Data  map[string]any `json:"data,omitempty"` // Event-specific data
	TS    int64          `json:"ts"`             // Timestamp (Unix ms)
}

// NewWSMessage wraps an event in the wire envelope.
func NewWSMessage(ev Event) WSMessage {
	return WSMessage{
		Event: ev.EventName(),
		Data:  eventToData(ev),
		TS:    time.Now().UnixMilli(),
	}
}

// eventToData converts an Event to a map for JSON serialization.
func eventToData(ev Event) map[string]any {
	// Use JSON marshal/unmarshal for simplicity
	data, err := json.Marshal(ev)
	if err != nil {
		return nil
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}
