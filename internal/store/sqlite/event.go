package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"smart-calendar-api/internal/model"
)

const eventColumns = `id, owner_id, title, description, event_date, start_time, end_time,
	color, reminder_enabled, reminder_minutes, is_shared, shared_with, sort_order,
	created_at, updated_at`

func (s *Store) CreateEvent(ctx context.Context, e *model.Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	shared, err := encodeShared(e.SharedWith)
	if err != nil {
		return err
	}
	created := s.now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.OwnerID, e.Title, e.Description, e.Date.String(), e.StartTime, e.EndTime,
		e.Color, e.ReminderEnabled, e.ReminderMinutes, e.IsShared, shared, e.Order,
		formatTime(created), "",
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	e.CreatedAt = created
	return nil
}

func (s *Store) ListEvents(ctx context.Context, ownerID string) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE owner_id = ?
		 ORDER BY event_date, sort_order, start_time`, ownerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

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
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ? AND owner_id = ?`, id, ownerID)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) UpdateEvent(ctx context.Context, e *model.Event) error {
	shared, err := encodeShared(e.SharedWith)
	if err != nil {
		return err
	}
	updated := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE events
		 SET title=?, description=?, event_date=?, start_time=?, end_time=?, color=?,
		     reminder_enabled=?, reminder_minutes=?, is_shared=?, shared_with=?, updated_at=?
		 WHERE id=? AND owner_id=?`,
		e.Title, e.Description, e.Date.String(), e.StartTime, e.EndTime, e.Color,
		e.ReminderEnabled, e.ReminderMinutes, e.IsShared, shared, formatTime(updated),
		e.ID, e.OwnerID,
	)
	if err := mustAffect(res, err); err != nil {
		return err
	}
	e.UpdatedAt = updated
	return nil
}

func (s *Store) UpdateEventOrder(ctx context.Context, ownerID, id string, order int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET sort_order=? WHERE id=? AND owner_id=?`, order, id, ownerID)
	return mustAffect(res, err)
}

func (s *Store) ShareEvent(ctx context.Context, ownerID, id string, sharedWith []string) error {
	shared, err := encodeShared(sharedWith)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET is_shared=1, shared_with=? WHERE id=? AND owner_id=?`, shared, id, ownerID)
	return mustAffect(res, err)
}

func (s *Store) DeleteEvent(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE id=? AND owner_id=?`, id, ownerID)
	return mustAffect(res, err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (model.Event, error) {
	var (
		e                model.Event
		day, shared      string
		created, updated string
	)
	err := row.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Description, &day, &e.StartTime, &e.EndTime,
		&e.Color, &e.ReminderEnabled, &e.ReminderMinutes, &e.IsShared, &shared, &e.Order,
		&created, &updated)
	if err != nil {
		return e, err
	}
	if e.Date, err = civil.ParseDate(day); err != nil {
		return e, fmt.Errorf("event %s date: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(shared), &e.SharedWith); err != nil {
		return e, fmt.Errorf("event %s shared_with: %w", e.ID, err)
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return e, err
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return e, err
	}
	return e, nil
}

func encodeShared(s []string) (string, error) {
	if s == nil {
		s = []string{}
	}
	b, err := json.Marshal(s)
	return string(b), err
}

func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
