package session

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Archive persists conversation snapshots to SQLite for later
// inspection. It is write-only from the engine's perspective: sessions
// are never reloaded from it, so losing the file loses nothing but
// history for debugging.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewArchive(db *sql.DB, logger *slog.Logger) *Archive {
	return &Archive{db: db, logger: logger}
}

// Save replaces the stored snapshot for one conversation. The turns
// slice must be a snapshot taken under the session lock.
func (a *Archive) Save(id string, mode Mode, start time.Time, turns []Turn) error {
	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT OR REPLACE INTO conversations (id, start_time, mode) VALUES (?, ?, ?)",
		id, start, string(mode),
	)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM turns WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}

	for seq, turn := range turns {
		_, err = tx.Exec(
			"INSERT INTO turns (conversation_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
			id, seq, turn.Role, turn.Content, turn.Timestamp,
		)
		if err != nil {
			a.logger.Warn("failed to save turn", "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	a.logger.Info("conversation archived", "conversation_id", id, "turn_count", len(turns))
	return nil
}
