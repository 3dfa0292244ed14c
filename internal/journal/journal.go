// Package journal keeps a local record of committed time entries and voice commands.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/timebot/core/logger"
)

// Entry is a time entry the bot wrote to Odoo.
type Entry struct {
	ID          int64     `db:"id"`
	OdooEntryID int64     `db:"odoo_entry_id"`
	ChatID      int64     `db:"chat_id"`
	UserID      int64     `db:"user_id"`
	ProjectID   int64     `db:"project_id"`
	ProjectName string    `db:"project_name"`
	TaskID      int64     `db:"task_id"`
	TaskName    string    `db:"task_name"`
	Hours       float64   `db:"hours"`
	Description string    `db:"description"`
	EntryDate   string    `db:"entry_date"`
	CreatedAt   time.Time `db:"created_at"`
}

// VoiceIntent is one transcribed voice note and the command it mapped to.
type VoiceIntent struct {
	ID         int64     `db:"id"`
	ChatID     int64     `db:"chat_id"`
	UserID     int64     `db:"user_id"`
	Transcript string    `db:"transcript"`
	Command    string    `db:"command"`
	Matched    bool      `db:"matched"`
	CreatedAt  time.Time `db:"created_at"`
}

// Store persists journal records through sqlx; queries are written with ?
// placeholders and rebound for the driver.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// New creates a Store on an open, migrated database.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const insertEntry = `INSERT INTO time_entries
	(odoo_entry_id, chat_id, user_id, project_id, project_name, task_id, task_name, hours, description, entry_date, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id`

// RecordEntry stores e and returns its local id. CreatedAt defaults to now.
func (s *Store) RecordEntry(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	var id int64
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(insertEntry),
		e.OdooEntryID, e.ChatID, e.UserID, e.ProjectID, e.ProjectName,
		e.TaskID, e.TaskName, e.Hours, e.Description, e.EntryDate, e.CreatedAt,
	).Scan(&id)
	if err != nil {
		logger.Warn(ctx, logger.CompJournal, "journal.entry.insert",
			append([]slog.Attr{slog.String("status", "fail")}, logger.ErrAttrs(err)...)...)
		return 0, fmt.Errorf("journal: insert entry: %w", err)
	}
	logger.Debug(ctx, logger.CompJournal, "journal.entry.insert",
		slog.String("status", "ok"),
		slog.Int64("entry_id", e.OdooEntryID),
	)
	return id, nil
}

// RecentEntries returns the newest entries of a chat and user.
func (s *Store) RecentEntries(ctx context.Context, chatID, userID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []Entry
	q := s.db.Rebind(`SELECT id, odoo_entry_id, chat_id, user_id, project_id, project_name, task_id, task_name,
		hours, description, entry_date, created_at
		FROM time_entries WHERE chat_id = ? AND user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &out, q, chatID, userID, limit); err != nil {
		return nil, fmt.Errorf("journal: select entries: %w", err)
	}
	return out, nil
}

// RecordVoice stores a voice intent. CreatedAt defaults to now.
func (s *Store) RecordVoice(ctx context.Context, v VoiceIntent) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.now().UTC()
	}
	q := s.db.Rebind(`INSERT INTO voice_intents (chat_id, user_id, transcript, command, matched, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q, v.ChatID, v.UserID, v.Transcript, v.Command, v.Matched, v.CreatedAt); err != nil {
		logger.Warn(ctx, logger.CompJournal, "journal.voice.insert",
			append([]slog.Attr{slog.String("status", "fail")}, logger.ErrAttrs(err)...)...)
		return fmt.Errorf("journal: insert voice intent: %w", err)
	}
	return nil
}

// RecentVoice returns the newest voice intents of a chat and user.
func (s *Store) RecentVoice(ctx context.Context, chatID, userID int64, limit int) ([]VoiceIntent, error) {
	if limit <= 0 {
		limit = 5
	}
	var out []VoiceIntent
	q := s.db.Rebind(`SELECT id, chat_id, user_id, transcript, command, matched, created_at
		FROM voice_intents WHERE chat_id = ? AND user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &out, q, chatID, userID, limit); err != nil {
		return nil, fmt.Errorf("journal: select voice intents: %w", err)
	}
	return out, nil
}
