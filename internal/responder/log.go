package responder

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ResponseLog is the audit record for one automated-response attempt. Exactly
// one row is written per processed text message, success or failure.
type ResponseLog struct {
	ID                     int64
	IncomingMessageID      *int64
	ContactWaID            string
	RequestReceivedTime    time.Time
	ResponseSentTime       time.Time
	ProcessingDurationMs   int
	AiAPICallDurationMs    *int
	TemplateUsed           string
	CompanyNameUsed        string
	GuideNameUsed          string
	TourLocationUsed       string
	TourTimeUsed           string
	IdentifiableObjectUsed string
	GuideNumberUsed        string
	FullResponseText       string
	Status                 string
	ErrorMessage           *string
	AiExtractedData        *string
	CreatedAt              time.Time
}

// PgxPool is the subset of pgxpool.Pool the log store needs.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LogStore persists automated response audit rows.
type LogStore struct {
	pool PgxPool
}

func NewLogStore(pool PgxPool) *LogStore {
	if pool == nil {
		return nil
	}
	return &LogStore{pool: pool}
}

// Append writes one audit row.
func (s *LogStore) Append(ctx context.Context, l *ResponseLog) error {
	query := `
		INSERT INTO automated_response_logs (
			incoming_message_id, contact_wa_id, request_received_time, response_sent_time,
			processing_duration_ms, ai_api_call_duration_ms, template_used, company_name_used,
			guide_name_used, tour_location_used, tour_time_used, identifiable_object_used,
			guide_number_used, full_response_text, status, error_message, ai_extracted_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := s.pool.Exec(ctx, query,
		l.IncomingMessageID,
		l.ContactWaID,
		l.RequestReceivedTime,
		l.ResponseSentTime,
		l.ProcessingDurationMs,
		l.AiAPICallDurationMs,
		l.TemplateUsed,
		l.CompanyNameUsed,
		l.GuideNameUsed,
		l.TourLocationUsed,
		l.TourTimeUsed,
		l.IdentifiableObjectUsed,
		l.GuideNumberUsed,
		l.FullResponseText,
		l.Status,
		l.ErrorMessage,
		l.AiExtractedData,
	)
	if err != nil {
		return fmt.Errorf("responder: append log: %w", err)
	}
	return nil
}

// ListRecent returns the newest audit rows first.
func (s *LogStore) ListRecent(ctx context.Context, limit int) ([]*ResponseLog, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, incoming_message_id, contact_wa_id, request_received_time, response_sent_time,
			processing_duration_ms, ai_api_call_duration_ms, template_used, company_name_used,
			guide_name_used, tour_location_used, tour_time_used, identifiable_object_used,
			guide_number_used, full_response_text, status, error_message, ai_extracted_data, created_at
		FROM automated_response_logs
		ORDER BY request_received_time DESC
		LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("responder: list logs: %w", err)
	}
	defer rows.Close()

	var logs []*ResponseLog
	for rows.Next() {
		var l ResponseLog
		if err := rows.Scan(
			&l.ID,
			&l.IncomingMessageID,
			&l.ContactWaID,
			&l.RequestReceivedTime,
			&l.ResponseSentTime,
			&l.ProcessingDurationMs,
			&l.AiAPICallDurationMs,
			&l.TemplateUsed,
			&l.CompanyNameUsed,
			&l.GuideNameUsed,
			&l.TourLocationUsed,
			&l.TourTimeUsed,
			&l.IdentifiableObjectUsed,
			&l.GuideNumberUsed,
			&l.FullResponseText,
			&l.Status,
			&l.ErrorMessage,
			&l.AiExtractedData,
			&l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("responder: scan log: %w", err)
		}
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("responder: iterate logs: %w", err)
	}
	return logs, nil
}
