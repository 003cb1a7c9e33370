package chat

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the store needs, so tests can swap in
// a mock.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists contacts and messages in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

const contactColumns = `id, wa_id, display_name, last_message_timestamp,
	extracted_user_name, last_extracted_tour_type, last_extracted_tour_date,
	last_extracted_tour_time, created_at, updated_at`

func scanContact(row pgx.Row) (*Contact, error) {
	var c Contact
	err := row.Scan(
		&c.ID,
		&c.WaID,
		&c.DisplayName,
		&c.LastMessageTimestamp,
		&c.ExtractedUserName,
		&c.LastExtractedTourType,
		&c.LastExtractedTourDate,
		&c.LastExtractedTourTime,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOrCreateContact looks up a contact by WhatsApp id and inserts it when
// absent. Insert races on wa_id resolve via ON CONFLICT to the existing row.
func (s *Store) GetOrCreateContact(ctx context.Context, waID, displayName string) (*Contact, error) {
	query := `
		INSERT INTO contacts (wa_id, display_name, last_message_timestamp)
		VALUES ($1, $2, now())
		ON CONFLICT (wa_id) DO UPDATE SET last_message_timestamp = now(), updated_at = now()
		RETURNING ` + contactColumns
	c, err := scanContact(s.pool.QueryRow(ctx, query, waID, displayName))
	if err != nil {
		return nil, fmt.Errorf("chat: get or create contact: %w", err)
	}
	return c, nil
}

// UpdateContact writes the mutable contact fields back.
func (s *Store) UpdateContact(ctx context.Context, c *Contact) error {
	query := `
		UPDATE contacts
		SET display_name = $2,
			last_message_timestamp = $3,
			extracted_user_name = $4,
			last_extracted_tour_type = $5,
			last_extracted_tour_date = $6,
			last_extracted_tour_time = $7,
			updated_at = now()
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		c.ID,
		c.DisplayName,
		c.LastMessageTimestamp,
		c.ExtractedUserName,
		c.LastExtractedTourType,
		c.LastExtractedTourDate,
		c.LastExtractedTourTime,
	)
	if err != nil {
		return fmt.Errorf("chat: update contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chat: update contact: no row with id %d", c.ID)
	}
	return nil
}

// ListContacts returns all contacts, most recently active first.
func (s *Store) ListContacts(ctx context.Context) ([]*Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts ORDER BY last_message_timestamp DESC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("chat: list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("chat: scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat: iterate contacts: %w", err)
	}
	return contacts, nil
}

// SaveMessage inserts a message, updating status, body, and timestamp in
// place when the platform redelivers an id we already stored. Returns the
// row id either way.
func (s *Store) SaveMessage(ctx context.Context, m *Message) (int64, error) {
	query := `
		INSERT INTO messages (wa_message_id, contact_id, body, is_from_me, timestamp, status, message_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (wa_message_id) DO UPDATE
			SET status = EXCLUDED.status,
				body = EXCLUDED.body,
				timestamp = EXCLUDED.timestamp
		RETURNING id`
	var id int64
	err := s.pool.QueryRow(ctx, query,
		m.WaMessageID,
		m.ContactID,
		m.Body,
		m.IsFromMe,
		m.Timestamp,
		m.Status,
		m.MessageType,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("chat: save message: %w", err)
	}
	return id, nil
}

// UpdateMessageStatus records a delivery status transition from the platform.
// Unknown message ids are a silent no-op; status events routinely arrive for
// messages sent outside this system.
func (s *Store) UpdateMessageStatus(ctx context.Context, waMessageID, status string) error {
	query := `UPDATE messages SET status = $2 WHERE wa_message_id = $1`
	if _, err := s.pool.Exec(ctx, query, waMessageID, status); err != nil {
		return fmt.Errorf("chat: update message status: %w", err)
	}
	return nil
}

// MessagesForContact returns a contact's history oldest first.
func (s *Store) MessagesForContact(ctx context.Context, contactID int64) ([]*Message, error) {
	query := `
		SELECT id, wa_message_id, contact_id, body, is_from_me, timestamp, status, message_type, created_at
		FROM messages
		WHERE contact_id = $1
		ORDER BY timestamp ASC`
	rows, err := s.pool.Query(ctx, query, contactID)
	if err != nil {
		return nil, fmt.Errorf("chat: messages for contact: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID,
			&m.WaMessageID,
			&m.ContactID,
			&m.Body,
			&m.IsFromMe,
			&m.Timestamp,
			&m.Status,
			&m.MessageType,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("chat: scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat: iterate messages: %w", err)
	}
	return messages, nil
}
