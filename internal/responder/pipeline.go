// Package responder runs the automated reply pipeline: persist the inbound
// message, extract booking intent, match a tour preset, send the templated
// reply, and always leave one audit row behind.
package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nycadventuretours/whatsapp-concierge/internal/chat"
	"github.com/nycadventuretours/whatsapp-concierge/internal/extraction"
	"github.com/nycadventuretours/whatsapp-concierge/internal/observability/metrics"
	"github.com/nycadventuretours/whatsapp-concierge/internal/tours"
	"github.com/nycadventuretours/whatsapp-concierge/internal/webhook"
)

// Audit row statuses.
const (
	StatusSent   = "Sent"
	StatusFailed = "Failed"
)

const fallbackResponseText = "Automated response generation failed."

// ContactStore is the chat persistence surface the pipeline needs.
type ContactStore interface {
	GetOrCreateContact(ctx context.Context, waID, displayName string) (*chat.Contact, error)
	UpdateContact(ctx context.Context, c *chat.Contact) error
	SaveMessage(ctx context.Context, m *chat.Message) (int64, error)
	UpdateMessageStatus(ctx context.Context, waMessageID, status string) error
}

// Extractor pulls booking intent out of free text.
type Extractor interface {
	Extract(ctx context.Context, messageText string) (*extraction.Intent, error)
}

// Matcher resolves extracted hints to a tour preset. Never returns nil.
type Matcher interface {
	Match(ctx context.Context, tourType, date, timeSlot string) *tours.Preset
}

// Sender delivers outbound WhatsApp traffic.
type Sender interface {
	SendText(ctx context.Context, toID, body string) bool
	MarkAsRead(ctx context.Context, messageID string) bool
}

// AuditLog records automated response attempts.
type AuditLog interface {
	Append(ctx context.Context, l *ResponseLog) error
}

// Config wires a Pipeline.
type Config struct {
	Contacts    ContactStore
	Extractor   Extractor
	Matcher     Matcher
	Sender      Sender
	Audit       AuditLog
	Metrics     *metrics.PipelineMetrics
	Logger      *slog.Logger
	CompanyName string

	// Now and NewReplyID are overridable for tests.
	Now        func() time.Time
	NewReplyID func() string
}

// Pipeline orchestrates one message end to end.
type Pipeline struct {
	contacts    ContactStore
	extractor   Extractor
	matcher     Matcher
	sender      Sender
	audit       AuditLog
	metrics     *metrics.PipelineMetrics
	logger      *slog.Logger
	companyName string
	now         func() time.Time
	newReplyID  func() string
}

func NewPipeline(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	companyName := cfg.CompanyName
	if companyName == "" {
		companyName = "NYC Adventure Tours"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newReplyID := cfg.NewReplyID
	if newReplyID == nil {
		newReplyID = func() string { return "auto-reply-" + uuid.NewString() }
	}
	return &Pipeline{
		contacts:    cfg.Contacts,
		extractor:   cfg.Extractor,
		matcher:     cfg.Matcher,
		sender:      cfg.Sender,
		audit:       cfg.Audit,
		metrics:     cfg.Metrics,
		logger:      logger,
		companyName: companyName,
		now:         now,
		newReplyID:  newReplyID,
	}
}

// outcome accumulates everything the audit row needs while the pipeline runs.
// It starts in the failed state and is upgraded step by step, so an abort at
// any point still produces a truthful row.
type outcome struct {
	receivedAt        time.Time
	contactWaID       string
	incomingMessageID int64
	aiDurationMs      *int
	template          string
	companyName       string
	guideName         string
	tourLocation      string
	tourTime          string
	identifiable      string
	guideNumber       string
	responseText      string
	status            string
	errMsg            string
	aiExtracted       string
}

func (o *outcome) fail(msg string) {
	o.status = StatusFailed
	o.errMsg = msg
}

// HandleMessage runs the full pipeline for one inbound message event.
// Non-text messages are ignored. Failures never escape: they are logged,
// audited, and counted.
func (p *Pipeline) HandleMessage(ctx context.Context, ev webhook.MessageEvent) {
	if !ev.IsText() {
		p.logger.Debug("responder: ignoring non-text message", "type", ev.Type, "message_id", ev.ID)
		p.metrics.ObserveWebhookEvent("message", "ignored")
		return
	}

	out := &outcome{
		receivedAt:   p.now(),
		contactWaID:  ev.From,
		template:     "TourConfirmation",
		status:       StatusFailed,
		responseText: fallbackResponseText,
	}
	defer p.finish(ctx, out)
	defer func() {
		if r := recover(); r != nil {
			out.fail(fmt.Sprintf("panic: %v", r))
			p.logger.Error("responder: panic while processing message", "from", ev.From, "panic", r)
		}
	}()

	p.process(ctx, ev, out)
}

func (p *Pipeline) process(ctx context.Context, ev webhook.MessageEvent, out *outcome) {
	p.logger.Info("responder: processing text message", "from", ev.From, "message_id", ev.ID)

	contact, err := p.contacts.GetOrCreateContact(ctx, ev.From, ev.From)
	if err != nil {
		out.fail(err.Error())
		p.logger.Error("responder: contact lookup failed", "from", ev.From, "error", err)
		return
	}
	contact.LastMessageTimestamp = ev.Timestamp

	incomingID, err := p.contacts.SaveMessage(ctx, &chat.Message{
		WaMessageID: ev.ID,
		ContactID:   contact.ID,
		Body:        ev.Body,
		IsFromMe:    false,
		Timestamp:   ev.Timestamp,
		Status:      "received",
		MessageType: "text",
	})
	if err != nil {
		out.fail(err.Error())
		p.logger.Error("responder: save incoming message failed", "from", ev.From, "error", err)
		return
	}
	out.incomingMessageID = incomingID

	// Extraction duration is recorded whether or not the call succeeds.
	aiStart := p.now()
	intent, err := p.extractor.Extract(ctx, ev.Body)
	aiElapsed := p.now().Sub(aiStart)
	aiMs := int(aiElapsed.Milliseconds())
	out.aiDurationMs = &aiMs
	p.metrics.ObserveExtraction(aiElapsed.Seconds())
	if err != nil {
		p.logger.Warn("responder: intent extraction failed, continuing without intent", "from", ev.From, "error", err)
		intent = nil
	}

	if intent != nil {
		name := contact.DisplayName
		if extraction.Known(intent.UserName) {
			name = intent.UserName
		}
		contact.ExtractedUserName = &name
		contact.LastExtractedTourType = &intent.TourType
		contact.LastExtractedTourDate = &intent.TourDate
		contact.LastExtractedTourTime = &intent.TourTime
		if err := p.contacts.UpdateContact(ctx, contact); err != nil {
			out.fail(err.Error())
			p.logger.Error("responder: contact update failed", "from", ev.From, "error", err)
			return
		}
		if data, err := json.Marshal(intent); err == nil {
			out.aiExtracted = string(data)
		}
		p.logger.Info("responder: extracted intent", "from", ev.From, "intent", out.aiExtracted)
	}

	var tourType, tourDate, tourTime string
	if intent != nil {
		tourType, tourDate, tourTime = intent.TourType, intent.TourDate, intent.TourTime
	}
	preset := p.matcher.Match(ctx, tourType, tourDate, tourTime)

	out.companyName = p.companyName
	out.guideName = preset.GuideName
	out.tourLocation = preset.MeetingLocation
	out.tourTime = preset.TimeSlot
	out.identifiable = preset.IdentifiableObject
	out.guideNumber = preset.GuidePhoneNumber
	out.responseText = tours.ComposeResponse(preset, p.companyName)

	sent := p.sender.SendText(ctx, ev.From, out.responseText)
	outStatus := "failed"
	if sent {
		out.status = StatusSent
		outStatus = "sent"
	} else {
		out.fail("Failed to send WhatsApp message")
	}

	if _, err := p.contacts.SaveMessage(ctx, &chat.Message{
		WaMessageID: p.newReplyID(),
		ContactID:   contact.ID,
		Body:        out.responseText,
		IsFromMe:    true,
		Timestamp:   p.now(),
		Status:      outStatus,
		MessageType: "text",
	}); err != nil {
		// Keep the send failure if there was one; the audit row should
		// report the first thing that went wrong.
		if out.errMsg == "" {
			out.errMsg = err.Error()
		} else {
			out.errMsg = out.errMsg + "; " + err.Error()
		}
		p.logger.Error("responder: save outgoing message failed", "from", ev.From, "error", err)
		return
	}

	p.sender.MarkAsRead(ctx, ev.ID)
	p.logger.Info("responder: automated response finished", "from", ev.From, "status", out.status)
}

// finish writes the audit row and records metrics. It always runs, including
// after a panic recovery, so every text message leaves exactly one row.
func (p *Pipeline) finish(ctx context.Context, out *outcome) {
	sentAt := p.now()
	elapsed := sentAt.Sub(out.receivedAt)

	entry := &ResponseLog{
		ContactWaID:            out.contactWaID,
		RequestReceivedTime:    out.receivedAt,
		ResponseSentTime:       sentAt,
		ProcessingDurationMs:   int(elapsed.Milliseconds()),
		AiAPICallDurationMs:    out.aiDurationMs,
		TemplateUsed:           out.template,
		CompanyNameUsed:        orNA(out.companyName),
		GuideNameUsed:          orNA(out.guideName),
		TourLocationUsed:       orNA(out.tourLocation),
		TourTimeUsed:           orNA(out.tourTime),
		IdentifiableObjectUsed: orNA(out.identifiable),
		GuideNumberUsed:        orNA(out.guideNumber),
		FullResponseText:       out.responseText,
		Status:                 out.status,
	}
	if out.incomingMessageID > 0 {
		id := out.incomingMessageID
		entry.IncomingMessageID = &id
	}
	if out.errMsg != "" {
		msg := out.errMsg
		entry.ErrorMessage = &msg
	}
	if out.aiExtracted != "" {
		data := out.aiExtracted
		entry.AiExtractedData = &data
	}

	if err := p.audit.Append(ctx, entry); err != nil {
		p.logger.Error("responder: audit log write failed", "contact", out.contactWaID, "error", err)
	}
	p.metrics.ObserveResponse(out.status, elapsed.Seconds())
	p.metrics.ObserveWebhookEvent("message", "processed")
}

// HandleStatus records a delivery status transition. Unknown message ids are
// a no-op in the store.
func (p *Pipeline) HandleStatus(ctx context.Context, ev webhook.StatusEvent) {
	p.logger.Info("responder: status update", "message_id", ev.ID, "status", ev.Status, "recipient", ev.RecipientID)
	if err := p.contacts.UpdateMessageStatus(ctx, ev.ID, ev.Status); err != nil {
		p.logger.Error("responder: status update failed", "message_id", ev.ID, "error", err)
		p.metrics.ObserveWebhookEvent("status", "error")
		return
	}
	p.metrics.ObserveWebhookEvent("status", "processed")
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}
