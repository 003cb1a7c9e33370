// Package webhook decodes WhatsApp Business webhook deliveries.
package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MessageEvent is one inbound message from the provider envelope.
type MessageEvent struct {
	From      string    // sender's WhatsApp id (phone-based)
	Body      string    // text body, empty for non-text messages
	ID        string    // provider message id
	Type      string    // "text", "image", "audio", ...
	Timestamp time.Time // provider unix timestamp, UTC
}

// IsText reports whether the pipeline should process this message.
func (e MessageEvent) IsText() bool {
	return e.Type == "text"
}

// StatusEvent is a delivery-receipt update for a previously sent message.
type StatusEvent struct {
	ID          string // provider message id the status refers to
	Status      string // "sent", "delivered", "read", "failed"
	RecipientID string
}

// Events holds everything extracted from one webhook delivery.
type Events struct {
	Messages []MessageEvent
	Statuses []StatusEvent
}

// ParseEvents walks the provider's nested envelope
// (entry[].changes[].value.{messages[],statuses[]}) and collects message and
// status events. Every level is optional: missing fields, missing arrays, or
// wrong types produce zero events for that section instead of an error. Only a
// body that is not valid JSON fails the whole delivery.
func ParseEvents(body []byte) (Events, error) {
	var root struct {
		Entry json.RawMessage `json:"entry"`
	}
	if err := json.Unmarshal(body, &root); err != nil {
		// A valid JSON document of the wrong shape (array, scalar) still
		// counts as a parseable delivery with nothing in it.
		if json.Valid(body) {
			return Events{}, nil
		}
		return Events{}, fmt.Errorf("webhook: parse payload: %w", err)
	}

	var events Events
	for _, entry := range asArray(root.Entry) {
		var e struct {
			Changes json.RawMessage `json:"changes"`
		}
		if err := json.Unmarshal(entry, &e); err != nil {
			continue
		}
		for _, change := range asArray(e.Changes) {
			var c struct {
				Field string          `json:"field"`
				Value json.RawMessage `json:"value"`
			}
			if err := json.Unmarshal(change, &c); err != nil || c.Field != "messages" {
				continue
			}
			var v struct {
				Messages json.RawMessage `json:"messages"`
				Statuses json.RawMessage `json:"statuses"`
			}
			if err := json.Unmarshal(c.Value, &v); err != nil {
				continue
			}
			for _, raw := range asArray(v.Messages) {
				if evt, ok := parseMessage(raw); ok {
					events.Messages = append(events.Messages, evt)
				}
			}
			for _, raw := range asArray(v.Statuses) {
				if evt, ok := parseStatus(raw); ok {
					events.Statuses = append(events.Statuses, evt)
				}
			}
		}
	}
	return events, nil
}

func parseMessage(raw json.RawMessage) (MessageEvent, bool) {
	var m struct {
		From      string   `json:"from"`
		ID        string   `json:"id"`
		Type      string   `json:"type"`
		Timestamp unixTime `json:"timestamp"`
		Text      struct {
			Body string `json:"body"`
		} `json:"text"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return MessageEvent{}, false
	}
	msgType := m.Type
	if msgType == "" {
		msgType = "unknown"
	}
	return MessageEvent{
		From:      m.From,
		Body:      m.Text.Body,
		ID:        m.ID,
		Type:      msgType,
		Timestamp: m.Timestamp.Time(),
	}, true
}

func parseStatus(raw json.RawMessage) (StatusEvent, bool) {
	var s struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		RecipientID string `json:"recipient_id"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return StatusEvent{}, false
	}
	return StatusEvent{ID: s.ID, Status: s.Status, RecipientID: s.RecipientID}, true
}

// asArray decodes a raw value as a JSON array, returning nil for anything else.
func asArray(raw json.RawMessage) []json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

// unixTime accepts the provider timestamp as either a JSON number or a quoted
// decimal string and yields an absolute UTC time.
type unixTime int64

func (t *unixTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*t = 0
		return nil
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*t = 0
		return nil
	}
	*t = unixTime(sec)
	return nil
}

func (t unixTime) Time() time.Time {
	if t == 0 {
		return time.Time{}
	}
	return time.Unix(int64(t), 0).UTC()
}
