package responder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nycadventuretours/whatsapp-concierge/internal/chat"
	"github.com/nycadventuretours/whatsapp-concierge/internal/extraction"
	"github.com/nycadventuretours/whatsapp-concierge/internal/tours"
	"github.com/nycadventuretours/whatsapp-concierge/internal/webhook"
)

type stubContacts struct {
	contact         *chat.Contact
	contactErr      error
	updateErr       error
	saveErr         error
	saveOutboundErr error
	savedMessages   []*chat.Message
	updatedContact  *chat.Contact
	statusUpdates   map[string]string
	statusErr       error
	nextMessageID   int64
}

func (s *stubContacts) GetOrCreateContact(_ context.Context, waID, displayName string) (*chat.Contact, error) {
	if s.contactErr != nil {
		return nil, s.contactErr
	}
	if s.contact == nil {
		s.contact = &chat.Contact{ID: 1, WaID: waID, DisplayName: displayName}
	}
	return s.contact, nil
}

func (s *stubContacts) UpdateContact(_ context.Context, c *chat.Contact) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updatedContact = c
	return nil
}

func (s *stubContacts) SaveMessage(_ context.Context, m *chat.Message) (int64, error) {
	if s.saveErr != nil {
		return 0, s.saveErr
	}
	if m.IsFromMe && s.saveOutboundErr != nil {
		return 0, s.saveOutboundErr
	}
	s.savedMessages = append(s.savedMessages, m)
	s.nextMessageID++
	return s.nextMessageID, nil
}

func (s *stubContacts) UpdateMessageStatus(_ context.Context, waMessageID, status string) error {
	if s.statusErr != nil {
		return s.statusErr
	}
	if s.statusUpdates == nil {
		s.statusUpdates = map[string]string{}
	}
	s.statusUpdates[waMessageID] = status
	return nil
}

type stubExtractor struct {
	intent *extraction.Intent
	err    error
}

func (s *stubExtractor) Extract(context.Context, string) (*extraction.Intent, error) {
	return s.intent, s.err
}

type stubMatcher struct {
	preset  *tours.Preset
	gotType string
	gotDate string
	gotTime string
}

func (s *stubMatcher) Match(_ context.Context, tourType, date, timeSlot string) *tours.Preset {
	s.gotType, s.gotDate, s.gotTime = tourType, date, timeSlot
	if s.preset == nil {
		return tours.FallbackPreset()
	}
	return s.preset
}

type stubSender struct {
	sendOK     bool
	sentTo     string
	sentBody   string
	readMarked []string
}

func (s *stubSender) SendText(_ context.Context, toID, body string) bool {
	s.sentTo, s.sentBody = toID, body
	return s.sendOK
}

func (s *stubSender) MarkAsRead(_ context.Context, messageID string) bool {
	s.readMarked = append(s.readMarked, messageID)
	return true
}

type stubAudit struct {
	entries []*ResponseLog
	err     error
}

func (s *stubAudit) Append(_ context.Context, l *ResponseLog) error {
	s.entries = append(s.entries, l)
	return s.err
}

func textEvent() webhook.MessageEvent {
	return webhook.MessageEvent{
		From:      "14155552671",
		Body:      "Hi, I'm Alice. Food tour tomorrow morning?",
		ID:        "wamid.IN1",
		Type:      "text",
		Timestamp: time.Unix(1717000000, 0).UTC(),
	}
}

func newTestPipeline(contacts *stubContacts, ex *stubExtractor, m *stubMatcher, snd *stubSender, audit *stubAudit) *Pipeline {
	return NewPipeline(Config{
		Contacts:    contacts,
		Extractor:   ex,
		Matcher:     m,
		Sender:      snd,
		Audit:       audit,
		CompanyName: "NYC Adventure Tours",
		NewReplyID:  func() string { return "auto-reply-fixed" },
	})
}

func TestPipelineHappyPath(t *testing.T) {
	contacts := &stubContacts{}
	ex := &stubExtractor{intent: &extraction.Intent{
		UserName: "Alice", TourType: "Food Tour", TourDate: "tomorrow", TourTime: "morning",
	}}
	matcher := &stubMatcher{preset: &tours.Preset{
		ID: 2, TourType: "Food Tour", TimeSlot: "9 AM", GuideName: "Bob",
		MeetingLocation: "Little Italy", IdentifiableObject: "a green flag",
		GuidePhoneNumber: "+1 555 0101",
	}}
	sender := &stubSender{sendOK: true}
	audit := &stubAudit{}

	p := newTestPipeline(contacts, ex, matcher, sender, audit)
	p.HandleMessage(context.Background(), textEvent())

	// Inbound and outbound messages persisted.
	if len(contacts.savedMessages) != 2 {
		t.Fatalf("expected 2 saved messages, got %d", len(contacts.savedMessages))
	}
	in, outMsg := contacts.savedMessages[0], contacts.savedMessages[1]
	if in.WaMessageID != "wamid.IN1" || in.IsFromMe || in.Status != "received" {
		t.Errorf("unexpected inbound record: %+v", in)
	}
	if outMsg.WaMessageID != "auto-reply-fixed" || !outMsg.IsFromMe || outMsg.Status != "sent" {
		t.Errorf("unexpected outbound record: %+v", outMsg)
	}

	// Contact enriched with extracted intent.
	if contacts.updatedContact == nil || contacts.updatedContact.ExtractedUserName == nil ||
		*contacts.updatedContact.ExtractedUserName != "Alice" {
		t.Errorf("expected extracted name on contact: %+v", contacts.updatedContact)
	}

	// Matcher got the raw intent fields.
	if matcher.gotType != "Food Tour" || matcher.gotDate != "tomorrow" || matcher.gotTime != "morning" {
		t.Errorf("unexpected matcher criteria: %q %q %q", matcher.gotType, matcher.gotDate, matcher.gotTime)
	}

	// Reply sent and original marked read.
	if sender.sentTo != "14155552671" || !strings.Contains(sender.sentBody, "Bob") {
		t.Errorf("unexpected send: to=%q body=%q", sender.sentTo, sender.sentBody)
	}
	if len(sender.readMarked) != 1 || sender.readMarked[0] != "wamid.IN1" {
		t.Errorf("expected original marked read, got %v", sender.readMarked)
	}

	// Exactly one audit row, marked Sent, with the preset details.
	if len(audit.entries) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(audit.entries))
	}
	entry := audit.entries[0]
	if entry.Status != StatusSent || entry.ErrorMessage != nil {
		t.Errorf("unexpected audit status: %+v", entry)
	}
	if entry.GuideNameUsed != "Bob" || entry.TourLocationUsed != "Little Italy" || entry.TourTimeUsed != "9 AM" {
		t.Errorf("unexpected audit preset fields: %+v", entry)
	}
	if entry.AiExtractedData == nil || !strings.Contains(*entry.AiExtractedData, "Alice") {
		t.Errorf("expected extracted data in audit row: %+v", entry.AiExtractedData)
	}
	if entry.IncomingMessageID == nil || *entry.IncomingMessageID != 1 {
		t.Errorf("expected incoming message id 1: %+v", entry.IncomingMessageID)
	}
}

func TestPipelineSendFailureStillAudited(t *testing.T) {
	contacts := &stubContacts{}
	audit := &stubAudit{}
	sender := &stubSender{sendOK: false}

	p := newTestPipeline(contacts, &stubExtractor{}, &stubMatcher{}, sender, audit)
	p.HandleMessage(context.Background(), textEvent())

	if len(audit.entries) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(audit.entries))
	}
	entry := audit.entries[0]
	if entry.Status != StatusFailed {
		t.Errorf("expected Failed status, got %s", entry.Status)
	}
	if entry.ErrorMessage == nil || *entry.ErrorMessage != "Failed to send WhatsApp message" {
		t.Errorf("unexpected error message: %+v", entry.ErrorMessage)
	}
	// Outbound message still recorded, with failed status.
	if len(contacts.savedMessages) != 2 || contacts.savedMessages[1].Status != "failed" {
		t.Errorf("expected failed outbound record: %+v", contacts.savedMessages)
	}
}

func TestPipelineSendAndStoreFailuresBothAudited(t *testing.T) {
	contacts := &stubContacts{saveOutboundErr: errors.New("insert rejected")}
	audit := &stubAudit{}
	sender := &stubSender{sendOK: false}

	p := newTestPipeline(contacts, &stubExtractor{}, &stubMatcher{}, sender, audit)
	p.HandleMessage(context.Background(), textEvent())

	if len(audit.entries) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(audit.entries))
	}
	entry := audit.entries[0]
	if entry.Status != StatusFailed || entry.ErrorMessage == nil {
		t.Fatalf("unexpected audit row: %+v", entry)
	}
	// The send failure stays first; the store failure is appended, not lost.
	if !strings.Contains(*entry.ErrorMessage, "Failed to send WhatsApp message") ||
		!strings.Contains(*entry.ErrorMessage, "insert rejected") {
		t.Errorf("expected both failures in error message, got %q", *entry.ErrorMessage)
	}
}

func TestPipelineExtractionFailureContinues(t *testing.T) {
	contacts := &stubContacts{}
	audit := &stubAudit{}
	sender := &stubSender{sendOK: true}
	matcher := &stubMatcher{}

	p := newTestPipeline(contacts, &stubExtractor{err: errors.New("quota")}, matcher, sender, audit)
	p.HandleMessage(context.Background(), textEvent())

	if matcher.gotType != "" || matcher.gotDate != "" || matcher.gotTime != "" {
		t.Errorf("expected empty criteria without intent, got %q %q %q", matcher.gotType, matcher.gotDate, matcher.gotTime)
	}
	if len(audit.entries) != 1 || audit.entries[0].Status != StatusSent {
		t.Fatalf("expected Sent despite extraction failure: %+v", audit.entries)
	}
	if audit.entries[0].AiAPICallDurationMs == nil {
		t.Error("expected AI duration recorded even on failure")
	}
	if contacts.updatedContact != nil {
		t.Error("expected no contact update without intent")
	}
}

func TestPipelineContactFailureAudited(t *testing.T) {
	contacts := &stubContacts{contactErr: errors.New("db down")}
	audit := &stubAudit{}

	p := newTestPipeline(contacts, &stubExtractor{}, &stubMatcher{}, &stubSender{}, audit)
	p.HandleMessage(context.Background(), textEvent())

	if len(audit.entries) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(audit.entries))
	}
	entry := audit.entries[0]
	if entry.Status != StatusFailed || entry.ErrorMessage == nil {
		t.Errorf("unexpected audit row: %+v", entry)
	}
	if entry.FullResponseText != "Automated response generation failed." {
		t.Errorf("unexpected response text: %q", entry.FullResponseText)
	}
	if entry.IncomingMessageID != nil {
		t.Errorf("expected nil incoming message id, got %v", *entry.IncomingMessageID)
	}
	if entry.GuideNameUsed != "N/A" || entry.CompanyNameUsed != "N/A" {
		t.Errorf("expected N/A placeholders: %+v", entry)
	}
}

func TestPipelinePanicRecoveredAndAudited(t *testing.T) {
	contacts := &stubContacts{}
	audit := &stubAudit{}
	p := NewPipeline(Config{
		Contacts:  contacts,
		Extractor: &stubExtractor{},
		Matcher:   panicMatcher{},
		Sender:    &stubSender{},
		Audit:     audit,
	})

	p.HandleMessage(context.Background(), textEvent())

	if len(audit.entries) != 1 {
		t.Fatalf("expected 1 audit row after panic, got %d", len(audit.entries))
	}
	entry := audit.entries[0]
	if entry.Status != StatusFailed || entry.ErrorMessage == nil || !strings.Contains(*entry.ErrorMessage, "panic") {
		t.Errorf("unexpected audit row after panic: %+v", entry)
	}
}

type panicMatcher struct{}

func (panicMatcher) Match(context.Context, string, string, string) *tours.Preset {
	panic("boom")
}

func TestPipelineIgnoresNonText(t *testing.T) {
	contacts := &stubContacts{}
	audit := &stubAudit{}
	p := newTestPipeline(contacts, &stubExtractor{}, &stubMatcher{}, &stubSender{}, audit)

	p.HandleMessage(context.Background(), webhook.MessageEvent{
		From: "1", ID: "wamid.IMG", Type: "image",
	})

	if len(audit.entries) != 0 {
		t.Errorf("expected no audit rows for non-text message, got %d", len(audit.entries))
	}
	if len(contacts.savedMessages) != 0 {
		t.Errorf("expected no saved messages, got %d", len(contacts.savedMessages))
	}
}

func TestPipelineUnknownNameFallsBackToDisplayName(t *testing.T) {
	contacts := &stubContacts{}
	ex := &stubExtractor{intent: &extraction.Intent{
		UserName: "N/A", TourType: "Walking Tour", TourDate: "N/A", TourTime: "N/A",
	}}
	p := newTestPipeline(contacts, ex, &stubMatcher{}, &stubSender{sendOK: true}, &stubAudit{})

	p.HandleMessage(context.Background(), textEvent())

	if contacts.updatedContact == nil || contacts.updatedContact.ExtractedUserName == nil {
		t.Fatal("expected contact update")
	}
	// Display name defaults to the WhatsApp id for new contacts.
	if *contacts.updatedContact.ExtractedUserName != "14155552671" {
		t.Errorf("expected display name fallback, got %q", *contacts.updatedContact.ExtractedUserName)
	}
}

func TestHandleStatus(t *testing.T) {
	contacts := &stubContacts{}
	p := newTestPipeline(contacts, &stubExtractor{}, &stubMatcher{}, &stubSender{}, &stubAudit{})

	p.HandleStatus(context.Background(), webhook.StatusEvent{
		ID: "wamid.OUT1", Status: "delivered", RecipientID: "14155552671",
	})

	if contacts.statusUpdates["wamid.OUT1"] != "delivered" {
		t.Errorf("expected status recorded, got %v", contacts.statusUpdates)
	}
}

func TestHandleStatusErrorSwallowed(t *testing.T) {
	contacts := &stubContacts{statusErr: errors.New("db down")}
	p := newTestPipeline(contacts, &stubExtractor{}, &stubMatcher{}, &stubSender{}, &stubAudit{})

	// Must not panic or propagate.
	p.HandleStatus(context.Background(), webhook.StatusEvent{ID: "wamid.X", Status: "read"})
}
