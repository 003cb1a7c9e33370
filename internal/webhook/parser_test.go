package webhook

import (
	"testing"
	"time"
)

func TestParseEventsFullPayload(t *testing.T) {
	body := []byte(`{
		"entry": [{
			"changes": [{
				"field": "messages",
				"value": {
					"messages": [
						{"from": "14155552671", "id": "wamid.A1", "type": "text", "timestamp": "1717000000", "text": {"body": "Hi! Food tour tomorrow?"}},
						{"from": "14155552672", "id": "wamid.A2", "type": "image", "timestamp": 1717000100}
					],
					"statuses": [
						{"id": "wamid.B1", "status": "delivered", "recipient_id": "14155552671"}
					]
				}
			}]
		}]
	}`)

	events, err := ParseEvents(body)
	if err != nil {
		t.Fatalf("ParseEvents: %v", err)
	}
	if len(events.Messages) != 2 {
		t.Fatalf("expected 2 message events, got %d", len(events.Messages))
	}
	if len(events.Statuses) != 1 {
		t.Fatalf("expected 1 status event, got %d", len(events.Statuses))
	}

	msg := events.Messages[0]
	if msg.From != "14155552671" || msg.ID != "wamid.A1" || msg.Body != "Hi! Food tour tomorrow?" {
		t.Errorf("unexpected first message event: %+v", msg)
	}
	if !msg.IsText() {
		t.Error("expected first message to be text")
	}
	want := time.Unix(1717000000, 0).UTC()
	if !msg.Timestamp.Equal(want) {
		t.Errorf("expected timestamp %s, got %s", want, msg.Timestamp)
	}

	if events.Messages[1].IsText() {
		t.Error("expected image message to not be text")
	}
	if events.Messages[1].Type != "image" {
		t.Errorf("expected image type, got %s", events.Messages[1].Type)
	}

	st := events.Statuses[0]
	if st.ID != "wamid.B1" || st.Status != "delivered" || st.RecipientID != "14155552671" {
		t.Errorf("unexpected status event: %+v", st)
	}
}

func TestParseEventsMissingBranches(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"entry not array", `{"entry": 42}`},
		{"entry empty", `{"entry": []}`},
		{"no changes", `{"entry": [{}]}`},
		{"changes wrong type", `{"entry": [{"changes": "nope"}]}`},
		{"wrong field", `{"entry": [{"changes": [{"field": "other", "value": {}}]}]}`},
		{"value missing", `{"entry": [{"changes": [{"field": "messages"}]}]}`},
		{"no messages or statuses", `{"entry": [{"changes": [{"field": "messages", "value": {}}]}]}`},
		{"messages wrong type", `{"entry": [{"changes": [{"field": "messages", "value": {"messages": {}}}]}]}`},
		{"top-level array", `[1,2,3]`},
		{"top-level string", `"hello"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events, err := ParseEvents([]byte(tc.body))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(events.Messages) != 0 || len(events.Statuses) != 0 {
				t.Fatalf("expected no events, got %+v", events)
			}
		})
	}
}

func TestParseEventsSkipsMalformedElements(t *testing.T) {
	body := []byte(`{
		"entry": [
			"not an object",
			{"changes": [{"field": "messages", "value": {
				"messages": [
					17,
					{"from": "14155550000", "id": "wamid.OK", "type": "text", "timestamp": "1717000000", "text": {"body": "hello"}}
				]
			}}]}
		]
	}`)

	events, err := ParseEvents(body)
	if err != nil {
		t.Fatalf("ParseEvents: %v", err)
	}
	if len(events.Messages) != 1 {
		t.Fatalf("expected 1 surviving message, got %d", len(events.Messages))
	}
	if events.Messages[0].ID != "wamid.OK" {
		t.Errorf("unexpected message: %+v", events.Messages[0])
	}
}

func TestParseEventsInvalidJSON(t *testing.T) {
	if _, err := ParseEvents([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid JSON body")
	}
}

func TestParseEventsBadTimestampTolerated(t *testing.T) {
	body := []byte(`{"entry": [{"changes": [{"field": "messages", "value": {
		"messages": [{"from": "1", "id": "wamid.T", "type": "text", "timestamp": "soon", "text": {"body": "x"}}]
	}}]}]}`)

	events, err := ParseEvents(body)
	if err != nil {
		t.Fatalf("ParseEvents: %v", err)
	}
	if len(events.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(events.Messages))
	}
	if !events.Messages[0].Timestamp.IsZero() {
		t.Errorf("expected zero timestamp for unparseable value, got %s", events.Messages[0].Timestamp)
	}
}
