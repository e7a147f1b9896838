package model

import "time"

// ChangeKind defines the type of change a push event reports.
type ChangeKind string

const (
	// ChangeInsert signifies a new record was created.
	ChangeInsert ChangeKind = "insert"
	// ChangeUpdate signifies an existing record was updated.
	ChangeUpdate ChangeKind = "update"
	// ChangeDelete signifies a record was deleted.
	ChangeDelete ChangeKind = "delete"
)

// Valid reports whether k is one of the known kinds.
func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
		return true
	}
	return false
}

// ChangeEvent is the payload of a push notification. It carries no record
// data; receivers refetch the whole collection.
type ChangeEvent struct {
	Collection string     `json:"collection"`
	Kind       ChangeKind `json:"kind"`
	RecordID   string     `json:"recordId,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// NewChangeEvent stamps an event with the current time.
func NewChangeEvent(collection string, kind ChangeKind, recordID string) ChangeEvent {
	return ChangeEvent{
		Collection: collection,
		Kind:       kind,
		RecordID:   recordID,
		Timestamp:  time.Now().UTC(),
	}
}

// Subscription actions of the WebSocket protocol.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Server message types of the WebSocket protocol.
const (
	MessageChange       = "change"
	MessageSubscribed   = "subscribed"
	MessageUnsubscribed = "unsubscribed"
	MessageError        = "error"
)

// SubscriptionRequest is sent by a client to start or stop receiving change
// events for a collection.
type SubscriptionRequest struct {
	// Action can be "subscribe" or "unsubscribe"
	Action     string `json:"action"`
	Collection string `json:"collection"`
}

// ServerMessage is every frame the server writes on the change relay.
type ServerMessage struct {
	Type       string       `json:"type"`
	Collection string       `json:"collection,omitempty"`
	Event      *ChangeEvent `json:"event,omitempty"`
	Error      string       `json:"error,omitempty"`
}
