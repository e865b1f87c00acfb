// Package event defines the typed notifications pushed to gateway clients.
//
// Design principles:
// - Each event type is a separate Go type for type safety
// - Events carry their full payload; clients never poll for follow-up data
// - Delivery order within one session matches emission order
package event

// Event is the interface all event types must implement.
type Event interface {
	// EventName returns the unique name for this event type (e.g., "remote-listing")
	EventName() string
}
