package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory preference database.
const MemoryPath = ":memory:"

// ErrInvalidPreference is returned for values the UI cannot render.
var ErrInvalidPreference = errors.New("invalid preference")

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}

// UIState is the persisted part of the client state. Notifications and the
// connection flag are deliberately absent; they are rebuilt every session.
type UIState struct {
	Theme       Theme  `json:"theme" yaml:"theme"`
	SidebarOpen bool   `json:"sidebarOpen" yaml:"sidebarOpen"`
	Language    string `json:"language" yaml:"language"`
}

// DefaultUIState is returned for keys never written.
func DefaultUIState() UIState {
	return UIState{Theme: ThemeSystem, SidebarOpen: true, Language: "fr"}
}

const (
	keyTheme       = "theme"
	keySidebarOpen = "sidebar_open"
	keyLanguage    = "language"
)

type keyValue struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// Preferences persists UI state and free-form user preferences in SQLite.
type Preferences struct {
	db *sqlx.DB
}

// OpenPreferences opens (or creates) the database at path and applies
// pending migrations. MemoryPath yields a throwaway database.
func OpenPreferences(path string) (*Preferences, error) {
	if path == "" {
		path = MemoryPath
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating preference directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if path == MemoryPath {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	p := &Preferences{db: db}
	if err := p.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return p, nil
}

// Close closes the underlying database connection.
func (p *Preferences) Close() error {
	return p.db.Close()
}

// SchemaVersion returns the highest applied migration.
func (p *Preferences) SchemaVersion() (int, error) {
	var v int
	if err := p.db.Get(&v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

func (p *Preferences) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := p.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if currentVersion, err = p.SchemaVersion(); err != nil {
			return err
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := p.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// UIState loads the persisted UI state, filling defaults for missing keys.
func (p *Preferences) UIState(ctx context.Context) (UIState, error) {
	var rows []keyValue
	if err := p.db.SelectContext(ctx, &rows, "SELECT key, value FROM ui_state"); err != nil {
		return UIState{}, fmt.Errorf("querying ui state: %w", err)
	}

	st := DefaultUIState()
	for _, r := range rows {
		switch r.Key {
		case keyTheme:
			if t := Theme(r.Value); t.Valid() {
				st.Theme = t
			}
		case keySidebarOpen:
			if b, err := strconv.ParseBool(r.Value); err == nil {
				st.SidebarOpen = b
			}
		case keyLanguage:
			st.Language = r.Value
		}
	}
	return st, nil
}

func (p *Preferences) SetTheme(ctx context.Context, t Theme) error {
	if !t.Valid() {
		return fmt.Errorf("%w: theme %q", ErrInvalidPreference, t)
	}
	return p.put(ctx, "ui_state", keyTheme, string(t))
}

func (p *Preferences) SetSidebarOpen(ctx context.Context, open bool) error {
	return p.put(ctx, "ui_state", keySidebarOpen, strconv.FormatBool(open))
}

func (p *Preferences) SetLanguage(ctx context.Context, lang string) error {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return fmt.Errorf("%w: empty language", ErrInvalidPreference)
	}
	return p.put(ctx, "ui_state", keyLanguage, lang)
}

// SetUIState writes all UI fields in one transaction.
func (p *Preferences) SetUIState(ctx context.Context, st UIState) error {
	if !st.Theme.Valid() {
		return fmt.Errorf("%w: theme %q", ErrInvalidPreference, st.Theme)
	}
	if strings.TrimSpace(st.Language) == "" {
		return fmt.Errorf("%w: empty language", ErrInvalidPreference)
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, upsertQuery("ui_state"))
	if err != nil {
		return fmt.Errorf("preparing ui state statement: %w", err)
	}
	defer stmt.Close()

	for _, kv := range []keyValue{
		{keyTheme, string(st.Theme)},
		{keySidebarOpen, strconv.FormatBool(st.SidebarOpen)},
		{keyLanguage, strings.TrimSpace(st.Language)},
	} {
		if _, err := stmt.ExecContext(ctx, kv.Key, kv.Value); err != nil {
			return fmt.Errorf("writing ui state %s: %w", kv.Key, err)
		}
	}
	return tx.Commit()
}

// Get returns a user preference.
func (p *Preferences) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := p.db.GetContext(ctx, &v, "SELECT value FROM user_preferences WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting preference %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores a user preference, replacing any previous value.
func (p *Preferences) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidPreference)
	}
	return p.put(ctx, "user_preferences", key, value)
}

// Delete removes a user preference. Unknown keys are ignored.
func (p *Preferences) Delete(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx, "DELETE FROM user_preferences WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting preference %s: %w", key, err)
	}
	return nil
}

// All returns every user preference.
func (p *Preferences) All(ctx context.Context) (map[string]string, error) {
	var rows []keyValue
	if err := p.db.SelectContext(ctx, &rows, "SELECT key, value FROM user_preferences ORDER BY key"); err != nil {
		return nil, fmt.Errorf("querying preferences: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// Reset drops everything persisted, UI state included.
func (p *Preferences) Reset(ctx context.Context) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"ui_state", "user_preferences"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func (p *Preferences) put(ctx context.Context, table, key, value string) error {
	if _, err := p.db.ExecContext(ctx, upsertQuery(table), key, value); err != nil {
		return fmt.Errorf("writing %s %s: %w", table, key, err)
	}
	return nil
}

func upsertQuery(table string) string {
	return `INSERT INTO ` + table + ` (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
}
