package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hrtoolkit/internal/logic"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schemaFS embed.FS

// Store is the result journal: the chats the bot serves and every winner
// and group set it announced. Rosters and draw state are never stored.
type Store struct {
	DB *sqlx.DB
}

// Win is one journaled draw result.
type Win struct {
	ID      int64     `db:"id"`
	ChatID  int64     `db:"chat_id"`
	Winner  string    `db:"winner"`
	Repeat  bool      `db:"repeat_allowed"`
	DrawnAt time.Time `db:"drawn_at"`
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, ":memory:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// WAL lets the bot read while a journal write is in flight.
	_, _ = db.Exec("PRAGMA journal_mode=WAL;")
	_, _ = db.Exec("PRAGMA synchronous=NORMAL;")
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	st := &Store{DB: db}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) migrate() error {
	ddl, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(string(ddl))
	return err
}

func (s *Store) UpsertChat(ctx context.Context, chatID int64, title string) error {
	return retry(ctx, func() error {
		_, err := s.DB.ExecContext(ctx, "INSERT INTO chats (chat_id, title) VALUES (?, ?) ON CONFLICT(chat_id) DO UPDATE SET title=excluded.title", chatID, title)
		return err
	})
}

func (s *Store) CountChats(ctx context.Context) (int, error) {
	var n int
	err := s.DB.GetContext(ctx, &n, "SELECT COUNT(1) FROM chats")
	return n, err
}

func (s *Store) RecordWin(ctx context.Context, chatID int64, winner string, repeat bool, at time.Time) error {
	return retry(ctx, func() error {
		_, err := s.DB.ExecContext(ctx, "INSERT INTO draw_wins (chat_id, winner, repeat_allowed, drawn_at) VALUES (?, ?, ?, ?)", chatID, winner, repeat, at.UTC())
		return err
	})
}

// ListWins returns the latest wins of a chat, newest first.
func (s *Store) ListWins(ctx context.Context, chatID int64, limit int) ([]Win, error) {
	if limit <= 0 {
		limit = 20
	}
	var wins []Win
	err := s.DB.SelectContext(ctx, &wins, "SELECT id, chat_id, winner, repeat_allowed, drawn_at FROM draw_wins WHERE chat_id=? ORDER BY id DESC LIMIT ?", chatID, limit)
	return wins, err
}

// RecordGrouping journals a group set in one transaction and returns its id.
func (s *Store) RecordGrouping(ctx context.Context, chatID int64, groups []logic.Group, at time.Time) (string, error) {
	id := uuid.NewString()
	err := retry(ctx, func() error {
		return s.WithTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, "INSERT INTO groupings (id, chat_id, group_count, created_at) VALUES (?, ?, ?, ?)", id, chatID, len(groups), at.UTC()); err != nil {
				return fmt.Errorf("insert grouping: %w", err)
			}
			for _, g := range groups {
				for pos, m := range g.Members {
					if _, err := tx.ExecContext(ctx, "INSERT INTO grouping_members (grouping_id, group_no, group_name, position, member) VALUES (?, ?, ?, ?, ?)", id, g.ID, g.Name, pos, m); err != nil {
						return fmt.Errorf("insert member of group %d: %w", g.ID, err)
					}
				}
			}
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Member is one journaled group membership.
type Member struct {
	GroupNo  int    `db:"group_no"`
	Name     string `db:"group_name"`
	Position int    `db:"position"`
	Member   string `db:"member"`
}

// GroupingMembers returns the members of a journaled grouping in group and
// dealing order.
func (s *Store) GroupingMembers(ctx context.Context, id string) ([]Member, error) {
	var members []Member
	err := s.DB.SelectContext(ctx, &members, "SELECT group_no, group_name, position, member FROM grouping_members WHERE grouping_id=? ORDER BY group_no, position", id)
	return members, err
}

// RenameGrouping stores display names assigned after the grouping was made.
func (s *Store) RenameGrouping(ctx context.Context, id string, groups []logic.Group) error {
	return retry(ctx, func() error {
		return s.WithTx(ctx, func(tx *sqlx.Tx) error {
			for _, g := range groups {
				if _, err := tx.ExecContext(ctx, "UPDATE grouping_members SET group_name=? WHERE grouping_id=? AND group_no=?", g.Name, id, g.ID); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func (s *Store) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.DB.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

const maxAttempts = 5

// retry reruns fn while SQLite reports the database busy or locked.
func retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil || !isLockedError(err) {
			return err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt*100) * time.Millisecond):
		}
	}
	return fmt.Errorf("exhausted %d attempts: %w", maxAttempts, lastErr)
}

func isLockedError(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database is busy")
}
