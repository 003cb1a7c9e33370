package tours

import (
	"context"
	"errors"
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

// Store reads and writes the tour preset catalog in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

const presetColumns = `id, tour_type, date, time_slot, guide_name, meeting_location,
	identifiable_object, guide_phone_number, is_active, max_capacity, price, description,
	created_at, updated_at`

func scanPreset(row pgx.Row) (*Preset, error) {
	var p Preset
	err := row.Scan(
		&p.ID,
		&p.TourType,
		&p.Date,
		&p.TimeSlot,
		&p.GuideName,
		&p.MeetingLocation,
		&p.IdentifiableObject,
		&p.GuidePhoneNumber,
		&p.IsActive,
		&p.MaxCapacity,
		&p.Price,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindBestMatch walks three match tiers: all three criteria, tour type alone,
// then the first active preset. Criteria are matched as case-insensitive
// substrings. Returns nil, nil when the catalog has no active rows at all.
func (s *Store) FindBestMatch(ctx context.Context, tourType, date, timeSlot string) (*Preset, error) {
	if tourType != "" && date != "" && timeSlot != "" {
		query := `SELECT ` + presetColumns + `
			FROM tour_presets
			WHERE tour_type ILIKE $1 AND date ILIKE $2 AND time_slot ILIKE $3 AND is_active
			ORDER BY id LIMIT 1`
		p, err := scanPreset(s.pool.QueryRow(ctx, query, like(tourType), like(date), like(timeSlot)))
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("tours: exact match query: %w", err)
		}
	}

	if tourType != "" {
		query := `SELECT ` + presetColumns + `
			FROM tour_presets
			WHERE tour_type ILIKE $1 AND is_active
			ORDER BY id LIMIT 1`
		p, err := scanPreset(s.pool.QueryRow(ctx, query, like(tourType)))
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("tours: type match query: %w", err)
		}
	}

	query := `SELECT ` + presetColumns + `
		FROM tour_presets
		WHERE is_active
		ORDER BY id LIMIT 1`
	p, err := scanPreset(s.pool.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tours: first active query: %w", err)
	}
	return p, nil
}

// GetByID fetches one preset. Returns nil, nil when the id does not exist.
func (s *Store) GetByID(ctx context.Context, id int64) (*Preset, error) {
	query := `SELECT ` + presetColumns + ` FROM tour_presets WHERE id = $1`
	p, err := scanPreset(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tours: get by id: %w", err)
	}
	return p, nil
}

// ListActive returns every active preset ordered for display.
func (s *Store) ListActive(ctx context.Context) ([]*Preset, error) {
	query := `SELECT ` + presetColumns + `
		FROM tour_presets
		WHERE is_active
		ORDER BY tour_type, date, time_slot`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("tours: list active: %w", err)
	}
	defer rows.Close()

	var presets []*Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, fmt.Errorf("tours: scan preset: %w", err)
		}
		presets = append(presets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tours: iterate presets: %w", err)
	}
	return presets, nil
}

func like(v string) string {
	return "%" + v + "%"
}
