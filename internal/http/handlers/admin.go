package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nycadventuretours/whatsapp-concierge/internal/chat"
	"github.com/nycadventuretours/whatsapp-concierge/pkg/logging"
)

// ContactDirectory is the contact and message read surface, backed by the
// chat store.
type ContactDirectory interface {
	ListContacts(ctx context.Context) ([]*chat.Contact, error)
	MessagesForContact(ctx context.Context, contactID int64) ([]*chat.Message, error)
}

// AdminHandler serves the read-only operations dashboard: recent automated
// responses, aggregate stats, and the contact directory.
type AdminHandler struct {
	db       *sql.DB
	contacts ContactDirectory
	logger   *logging.Logger
}

func NewAdminHandler(db *sql.DB, contacts ContactDirectory, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{db: db, contacts: contacts, logger: logger}
}

// ResponseLogEntry is the JSON shape for one audit row.
type ResponseLogEntry struct {
	ID                   int64     `json:"id"`
	ContactWaID          string    `json:"contact_wa_id"`
	RequestReceivedTime  time.Time `json:"request_received_time"`
	ResponseSentTime     time.Time `json:"response_sent_time"`
	ProcessingDurationMs int       `json:"processing_duration_ms"`
	AiAPICallDurationMs  *int      `json:"ai_api_call_duration_ms,omitempty"`
	TemplateUsed         string    `json:"template_used"`
	GuideNameUsed        string    `json:"guide_name_used"`
	Status               string    `json:"status"`
	ErrorMessage         *string   `json:"error_message,omitempty"`
	AiExtractedData      *string   `json:"ai_extracted_data,omitempty"`
}

// ListResponses returns the newest audit rows.
// GET /admin/responses?limit=50
func (h *AdminHandler) ListResponses(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT id, contact_wa_id, request_received_time, response_sent_time,
			processing_duration_ms, ai_api_call_duration_ms, template_used,
			guide_name_used, status, error_message, ai_extracted_data
		FROM automated_response_logs
		ORDER BY request_received_time DESC
		LIMIT $1`, limit)
	if err != nil {
		h.logger.Error("admin: list responses query failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	entries := []ResponseLogEntry{}
	for rows.Next() {
		var e ResponseLogEntry
		if err := rows.Scan(
			&e.ID, &e.ContactWaID, &e.RequestReceivedTime, &e.ResponseSentTime,
			&e.ProcessingDurationMs, &e.AiAPICallDurationMs, &e.TemplateUsed,
			&e.GuideNameUsed, &e.Status, &e.ErrorMessage, &e.AiExtractedData,
		); err != nil {
			h.logger.Error("admin: scan response row failed", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("admin: iterate response rows failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"responses": entries, "count": len(entries)})
}

// StatsResponse aggregates pipeline health over a window.
type StatsResponse struct {
	Period          string  `json:"period"`
	TotalResponses  int     `json:"total_responses"`
	SentCount       int     `json:"sent_count"`
	FailedCount     int     `json:"failed_count"`
	AvgProcessingMs float64 `json:"avg_processing_ms"`
	AvgAiCallMs     float64 `json:"avg_ai_call_ms"`
	ContactCount    int     `json:"contact_count"`
}

// GetStats returns aggregate automated-response stats.
// GET /admin/stats?period=day|week
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	var since time.Time
	switch period {
	case "", "day":
		period = "day"
		since = time.Now().Add(-24 * time.Hour)
	case "week":
		since = time.Now().Add(-7 * 24 * time.Hour)
	default:
		http.Error(w, "period must be day or week", http.StatusBadRequest)
		return
	}

	stats := StatsResponse{Period: period}
	err := h.db.QueryRowContext(r.Context(), `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'Sent'),
			COUNT(*) FILTER (WHERE status = 'Failed'),
			COALESCE(AVG(processing_duration_ms), 0),
			COALESCE(AVG(ai_api_call_duration_ms), 0)
		FROM automated_response_logs
		WHERE request_received_time >= $1`, since).
		Scan(&stats.TotalResponses, &stats.SentCount, &stats.FailedCount,
			&stats.AvgProcessingMs, &stats.AvgAiCallMs)
	if err != nil {
		h.logger.Error("admin: stats query failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.db.QueryRowContext(r.Context(),
		`SELECT COUNT(*) FROM contacts`).Scan(&stats.ContactCount); err != nil {
		h.logger.Error("admin: contact count query failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ContactEntry is the JSON shape for one contact row.
type ContactEntry struct {
	ID                   int64     `json:"id"`
	WaID                 string    `json:"wa_id"`
	DisplayName          string    `json:"display_name"`
	ExtractedUserName    *string   `json:"extracted_user_name,omitempty"`
	LastTourType         *string   `json:"last_extracted_tour_type,omitempty"`
	LastMessageTimestamp time.Time `json:"last_message_timestamp"`
}

// ListContacts returns contacts ordered by most recent activity.
// GET /admin/contacts
func (h *AdminHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	list, err := h.contacts.ListContacts(r.Context())
	if err != nil {
		h.logger.Error("admin: list contacts failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	contacts := make([]ContactEntry, 0, len(list))
	for _, c := range list {
		contacts = append(contacts, ContactEntry{
			ID:                   c.ID,
			WaID:                 c.WaID,
			DisplayName:          c.DisplayName,
			ExtractedUserName:    c.ExtractedUserName,
			LastTourType:         c.LastExtractedTourType,
			LastMessageTimestamp: c.LastMessageTimestamp,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"contacts": contacts, "count": len(contacts)})
}

// MessageEntry is the JSON shape for one message row.
type MessageEntry struct {
	ID          int64     `json:"id"`
	WaMessageID string    `json:"wa_message_id"`
	Body        string    `json:"body"`
	IsFromMe    bool      `json:"is_from_me"`
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
	MessageType string    `json:"message_type"`
}

// ContactMessages returns one contact's conversation history, oldest first.
// GET /admin/contacts/{id}/messages
func (h *AdminHandler) ContactMessages(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		http.Error(w, "invalid contact id", http.StatusBadRequest)
		return
	}

	list, err := h.contacts.MessagesForContact(r.Context(), id)
	if err != nil {
		h.logger.Error("admin: contact messages failed", "contact_id", id, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	messages := make([]MessageEntry, 0, len(list))
	for _, m := range list {
		messages = append(messages, MessageEntry{
			ID:          m.ID,
			WaMessageID: m.WaMessageID,
			Body:        m.Body,
			IsFromMe:    m.IsFromMe,
			Timestamp:   m.Timestamp,
			Status:      m.Status,
			MessageType: m.MessageType,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages, "count": len(messages)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
