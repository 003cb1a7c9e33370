// Package chat persists WhatsApp contacts and their message history.
package chat

import "time"

// Contact is one WhatsApp conversation partner, keyed by their WhatsApp id
// (the phone number the platform hands us). The Extracted* fields carry the
// latest booking hints pulled out of their messages.
type Contact struct {
	ID                    int64
	WaID                  string
	DisplayName           string
	LastMessageTimestamp  time.Time
	ExtractedUserName     *string
	LastExtractedTourType *string
	LastExtractedTourDate *string
	LastExtractedTourTime *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Message is one inbound or outbound message. WaMessageID is the platform's
// id and is the dedupe key for webhook redeliveries.
type Message struct {
	ID          int64
	WaMessageID string
	ContactID   int64
	Body        string
	IsFromMe    bool
	Timestamp   time.Time
	Status      string
	MessageType string
	CreatedAt   time.Time
}
