package store

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"smart-calendar-api/internal/model"
)

const eventColumns = `id, owner_id, title, description, event_date, start_time, end_time,
	color, reminder_enabled, reminder_minutes, is_shared, shared_with, sort_order,
	created_at, updated_at`

// CreateEvent inserts e, assigning its ID and CreatedAt.
func (s *Store) CreateEvent(ctx context.Context, e *model.Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO events (id, owner_id, title, description, event_date, start_time, end_time,
		                     color, reminder_enabled, reminder_minutes, is_shared, shared_with, sort_order)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		 RETURNING created_at`,
		e.ID, e.OwnerID, e.Title, e.Description, e.Date.In(time.UTC), e.StartTime, e.EndTime,
		e.Color, e.ReminderEnabled, e.ReminderMinutes, e.IsShared, nonNil(e.SharedWith), e.Order,
	).Scan(&e.CreatedAt)
}

func (s *Store) ListEvents(ctx context.Context, ownerID string) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE owner_id = $1
		 ORDER BY event_date, sort_order, start_time`, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetEvent(ctx context.Context, ownerID, id string) (*model.Event, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 AND owner_id = $2`, id, ownerID)
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateEvent rewrites the editable fields and stamps UpdatedAt.
func (s *Store) UpdateEvent(ctx context.Context, e *model.Event) error {
	var updated time.Time
	err := s.pool.QueryRow(ctx,
		`UPDATE events
		 SET title=$1, description=$2, event_date=$3, start_time=$4, end_time=$5, color=$6,
		     reminder_enabled=$7, reminder_minutes=$8, is_shared=$9, shared_with=$10, updated_at=NOW()
		 WHERE id=$11 AND owner_id=$12
		 RETURNING updated_at`,
		e.Title, e.Description, e.Date.In(time.UTC), e.StartTime, e.EndTime, e.Color,
		e.ReminderEnabled, e.ReminderMinutes, e.IsShared, nonNil(e.SharedWith), e.ID, e.OwnerID,
	).Scan(&updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	if err != nil {
		return err
	}
	e.UpdatedAt = updated
	return nil
}

// UpdateEventOrder writes only the position field.
func (s *Store) UpdateEventOrder(ctx context.Context, ownerID, id string, order int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE events SET sort_order=$1 WHERE id=$2 AND owner_id=$3`, order, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) ShareEvent(ctx context.Context, ownerID, id string, sharedWith []string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE events SET is_shared=true, shared_with=$1 WHERE id=$2 AND owner_id=$3`,
		nonNil(sharedWith), id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, ownerID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM events WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (model.Event, error) {
	var (
		e       model.Event
		day     time.Time
		updated *time.Time
	)
	err := row.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Description, &day, &e.StartTime, &e.EndTime,
		&e.Color, &e.ReminderEnabled, &e.ReminderMinutes, &e.IsShared, &e.SharedWith, &e.Order,
		&e.CreatedAt, &updated)
	if err != nil {
		return e, err
	}
	e.Date = civil.DateOf(day)
	if updated != nil {
		e.UpdatedAt = *updated
	}
	return e, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
