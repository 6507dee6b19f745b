// CLAUDE:SUMMARY SQLite-backed reminder store: CRUD, pause toggle, 100-item cap, and expired one-time purge.
package reminders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/adfriend/dbopen"
	"github.com/hazyhaar/adfriend/idgen"
)

// Schema creates the reminders table.
const Schema = `
CREATE TABLE IF NOT EXISTS reminders (
    id          TEXT PRIMARY KEY,
    text        TEXT NOT NULL,
    remind_at   TEXT NOT NULL,
    days        TEXT NOT NULL DEFAULT '[]',
    created_at  INTEGER NOT NULL,
    is_paused   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_reminders_created ON reminders(created_at);
`

// Store persists reminders in SQLite.
type Store struct {
	DB *sql.DB

	newID  idgen.Generator
	policy *bluemonday.Policy
	now    func() time.Time
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIDGenerator overrides the id generator. Default: "rem_" + UUIDv7.
func WithIDGenerator(gen idgen.Generator) StoreOption {
	return func(s *Store) { s.newID = gen }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithStoreLogger sets the logger.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore wraps an open database. The schema must already be applied.
func NewStore(db *sql.DB, opts ...StoreOption) *Store {
	s := &Store{
		DB:     db,
		newID:  idgen.Prefixed("rem_", idgen.Default),
		policy: bluemonday.StrictPolicy(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OpenStore opens (or creates) the SQLite file at path and applies Schema.
func OpenStore(path string, opts ...StoreOption) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithSchema(Schema), dbopen.WithMkdirAll())
	if err != nil {
		return nil, fmt.Errorf("reminders: open store: %w", err)
	}
	return NewStore(db, opts...), nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.DB.Close() }

const selectCols = `SELECT id, text, remind_at, days, created_at, is_paused FROM reminders`

type scanner interface {
	Scan(dest ...any) error
}

func scanReminder(row scanner) (*Reminder, error) {
	var (
		r      Reminder
		days   string
		paused int
	)
	if err := row.Scan(&r.ID, &r.Text, &r.RemindAt, &days, &r.CreatedAt, &paused); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(days), &r.Days); err != nil {
		return nil, fmt.Errorf("reminders: decode days of %s: %w", r.ID, err)
	}
	if r.Days == nil {
		r.Days = []string{}
	}
	r.IsPaused = paused != 0
	return &r, nil
}

// All returns every stored reminder in creation order.
func (s *Store) All(ctx context.Context) ([]Reminder, error) {
	rows, err := s.DB.QueryContext(ctx, selectCols+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("reminders: list: %w", err)
	}
	defer rows.Close()

	out := []Reminder{}
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Get returns the reminder with the given id, or nil if absent.
func (s *Store) Get(ctx context.Context, id string) (*Reminder, error) {
	r, err := scanReminder(s.DB.QueryRowContext(ctx, selectCols+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reminders: get %s: %w", id, err)
	}
	return r, nil
}

// Today returns the reminders due for display now.
func (s *Store) Today(ctx context.Context) ([]Reminder, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return Today(all, s.now()), nil
}

// Save creates a reminder when in.ID is empty and updates it otherwise.
// Text is stripped of any markup before validation and stored as plain text.
func (s *Store) Save(ctx context.Context, in Input) (*Reminder, error) {
	in.Text = strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(in.Text)))
	if err := in.Validate(); err != nil {
		return nil, err
	}
	days := in.Days
	if days == nil {
		days = []string{}
	}
	daysJSON, err := json.Marshal(days)
	if err != nil {
		return nil, fmt.Errorf("reminders: encode days: %w", err)
	}

	var saved *Reminder
	err = dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if in.ID == "" {
			var n int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reminders`).Scan(&n); err != nil {
				return err
			}
			if n >= MaxReminders {
				return ErrLimit
			}
			r := Reminder{
				ID:        s.newID(),
				Text:      in.Text,
				RemindAt:  in.RemindAt,
				Days:      days,
				CreatedAt: s.now().UnixMilli(),
				IsPaused:  in.IsPaused != nil && *in.IsPaused,
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO reminders (id, text, remind_at, days, created_at, is_paused)
				VALUES (?, ?, ?, ?, ?, ?)`,
				r.ID, r.Text, r.RemindAt, string(daysJSON), r.CreatedAt, r.IsPaused,
			); err != nil {
				return err
			}
			saved = &r
			return nil
		}

		cur, err := scanReminder(tx.QueryRowContext(ctx, selectCols+` WHERE id = ?`, in.ID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, in.ID)
		}
		if err != nil {
			return err
		}
		cur.Text, cur.RemindAt, cur.Days = in.Text, in.RemindAt, days
		if in.IsPaused != nil {
			cur.IsPaused = *in.IsPaused
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE reminders SET text=?, remind_at=?, days=?, is_paused=? WHERE id=?`,
			cur.Text, cur.RemindAt, string(daysJSON), cur.IsPaused, cur.ID,
		); err != nil {
			return err
		}
		saved = cur
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reminders: save: %w", err)
	}
	s.logger.Debug("reminders: saved", "id", saved.ID, "update", in.ID != "")
	return saved, nil
}

// Delete removes a reminder. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := dbopen.Exec(ctx, s.DB, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("reminders: delete %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.Warn("reminders: delete of unknown id", "id", id)
	}
	return nil
}

// TogglePause flips the paused flag and returns the updated reminder,
// or nil when the id is unknown.
func (s *Store) TogglePause(ctx context.Context, id string) (*Reminder, error) {
	res, err := dbopen.Exec(ctx, s.DB, `UPDATE reminders SET is_paused = 1 - is_paused WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("reminders: toggle %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.Warn("reminders: toggle of unknown id", "id", id)
		return nil, nil
	}
	return s.Get(ctx, id)
}

// PurgeExpired deletes one-time reminders created before the start of the
// current day. They can no longer be shown.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now()
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).UnixMilli()
	res, err := dbopen.Exec(ctx, s.DB,
		`DELETE FROM reminders WHERE days = '[]' AND created_at < ?`, midnight)
	if err != nil {
		return 0, fmt.Errorf("reminders: purge: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
