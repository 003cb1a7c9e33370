package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/nycadventuretours/whatsapp-concierge/internal/events"
	"github.com/nycadventuretours/whatsapp-concierge/internal/webhook"
	"github.com/nycadventuretours/whatsapp-concierge/pkg/logging"
)

// MessageProcessor handles parsed webhook events.
type MessageProcessor interface {
	HandleMessage(ctx context.Context, ev webhook.MessageEvent)
	HandleStatus(ctx context.Context, ev webhook.StatusEvent)
}

// WhatsAppWebhookHandler terminates the WhatsApp Business webhook: GET for
// the platform's verification handshake, POST for message and status events.
type WhatsAppWebhookHandler struct {
	processor   MessageProcessor
	processed   *events.ProcessedStore
	verifyToken string
	appSecret   string
	logger      *logging.Logger
}

func NewWhatsAppWebhookHandler(
	processor MessageProcessor,
	processed *events.ProcessedStore,
	verifyToken, appSecret string,
	logger *logging.Logger,
) *WhatsAppWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WhatsAppWebhookHandler{
		processor:   processor,
		processed:   processed,
		verifyToken: verifyToken,
		appSecret:   appSecret,
		logger:      logger,
	}
}

// Verify answers the platform's subscription handshake by echoing the
// challenge when the verify token matches.
func (h *WhatsAppWebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	challenge := r.URL.Query().Get("hub.challenge")
	token := r.URL.Query().Get("hub.verify_token")

	h.logger.Info("webhook verification request", "mode", mode)

	if mode == "subscribe" && token != "" && token == h.verifyToken {
		h.logger.Info("webhook verified")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}

	h.logger.Warn("webhook verification failed", "mode", mode)
	http.Error(w, "invalid verify token", http.StatusForbidden)
}

// Receive ingests one webhook delivery. The signature check is soft: it only
// rejects when both a secret and a signature header are present and the
// digest does not match, mirroring how the platform rolls out app secrets.
func (h *WhatsAppWebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("webhook body read failed", "error", err)
		http.Error(w, "failed to read request body", http.StatusInternalServerError)
		return
	}

	if sig := r.Header.Get("X-Hub-Signature-256"); sig != "" && h.appSecret != "" {
		if !webhook.VerifySignature(body, sig, h.appSecret) {
			h.logger.Warn("webhook signature verification failed")
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
	}

	evs, err := webhook.ParseEvents(body)
	if err != nil {
		h.logger.Error("webhook payload parse failed", "error", err)
		http.Error(w, "internal server error processing webhook", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	for _, msg := range evs.Messages {
		if h.isDuplicate(ctx, msg.ID) {
			h.logger.Info("skipping already processed message", "message_id", msg.ID)
			continue
		}
		h.processor.HandleMessage(ctx, msg)
	}
	for _, st := range evs.Statuses {
		h.processor.HandleStatus(ctx, st)
	}

	w.WriteHeader(http.StatusOK)
}

// isDuplicate claims the message id with the dedupe guard. Guard failures
// err on the side of processing; the storage layer is idempotent.
func (h *WhatsAppWebhookHandler) isDuplicate(ctx context.Context, messageID string) bool {
	if messageID == "" {
		return false
	}
	first, err := h.processed.MarkProcessed(ctx, messageID)
	if err != nil {
		h.logger.Warn("dedupe guard unavailable, processing anyway", "message_id", messageID, "error", err)
		return false
	}
	return !first
}
