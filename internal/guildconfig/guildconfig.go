// Package guildconfig persists per-guild announcement settings in SQLite.
package guildconfig

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// MaxPadding bounds the silence on each side of an announcement.
const MaxPadding = 10 * time.Second

// ErrInvalidPadding is returned by SetPadding for durations outside
// [0, MaxPadding].
var ErrInvalidPadding = errors.New("padding must be between 0 and 10s")

// Settings is the effective configuration of one guild.
type Settings struct {
	Lang    string        `json:"lang"`
	Padding time.Duration `json:"padding"`
}

// Store reads and writes guild settings. Guilds without a row, or with a
// column left unset, fall back to the store's defaults.
type Store struct {
	db       *sqlx.DB
	defaults Settings
}

type row struct {
	GuildID   string         `db:"guild_id"`
	Lang      sql.NullString `db:"lang"`
	PaddingMS sql.NullInt64  `db:"padding_ms"`
}

const schema = `
CREATE TABLE IF NOT EXISTS guild_tts_config (
	guild_id TEXT PRIMARY KEY,
	lang TEXT,
	padding_ms INTEGER,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

// Open connects to the database at path (":memory:" works) and creates the
// schema if needed.
func Open(path string, defaults Settings) (*Store, error) {
	if path == "" {
		path = "interlude.db"
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connecting to guild config database: %w", err)
	}
	// ":memory:" databases exist per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating guild config table: %w", err)
	}

	slog.Info("guild config store ready", "path", path)
	return &Store{db: db, defaults: defaults}, nil
}

// Get returns the effective settings for guildID.
func (s *Store) Get(ctx context.Context, guildID string) (Settings, error) {
	var r row
	err := s.db.GetContext(ctx, &r,
		`SELECT guild_id, lang, padding_ms FROM guild_tts_config WHERE guild_id = ?`, guildID)
	if errors.Is(err, sql.ErrNoRows) {
		return s.defaults, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("loading settings for guild %s: %w", guildID, err)
	}

	out := s.defaults
	if r.Lang.Valid && r.Lang.String != "" {
		out.Lang = r.Lang.String
	}
	if r.PaddingMS.Valid {
		out.Padding = time.Duration(r.PaddingMS.Int64) * time.Millisecond
	}
	return out, nil
}

// SetLang stores the guild's announcement language. Validation against the
// synthesizer's languages is the caller's job.
func (s *Store) SetLang(ctx context.Context, guildID, lang string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_tts_config (guild_id, lang, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(guild_id) DO UPDATE SET lang = excluded.lang, updated_at = excluded.updated_at`,
		guildID, lang)
	if err != nil {
		return fmt.Errorf("saving language for guild %s: %w", guildID, err)
	}
	return nil
}

// SetPadding stores the silence added before and after each announcement.
// Durations are kept at millisecond precision.
func (s *Store) SetPadding(ctx context.Context, guildID string, padding time.Duration) error {
	if padding < 0 || padding > MaxPadding {
		return ErrInvalidPadding
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_tts_config (guild_id, padding_ms, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(guild_id) DO UPDATE SET padding_ms = excluded.padding_ms, updated_at = excluded.updated_at`,
		guildID, padding.Milliseconds())
	if err != nil {
		return fmt.Errorf("saving padding for guild %s: %w", guildID, err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
