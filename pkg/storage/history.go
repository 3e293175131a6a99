package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rubiojr/storefront/pkg/db"
	"github.com/rubiojr/storefront/pkg/log"
	"github.com/rubiojr/storefront/pkg/navigate"
	"github.com/rubiojr/storefront/pkg/search"
)

// HistoryFile is the database file name inside the storage directory.
const HistoryFile = "history.db"

// Entry is a recorded selection.
type Entry struct {
	ID              int64     `json:"id"`
	Kind            string    `json:"kind"`
	Label           string    `json:"label"`
	CollectionName  string    `json:"collection_name,omitempty"`
	ContractAddress string    `json:"contract_address,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	AttrKey         string    `json:"attr_key,omitempty"`
	AttrValue       string    `json:"attr_value,omitempty"`
	URL             string    `json:"url"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewEntry builds the Entry recorded for a resolved selection.
func NewEntry(sel navigate.Selection, target navigate.Target) Entry {
	e := Entry{
		Kind:      sel.Kind,
		Label:     sel.Label(),
		URL:       target.URL(),
		CreatedAt: time.Now(),
	}
	switch {
	case sel.Collection != nil:
		e.CollectionName = sel.Collection.Name
		e.ContractAddress = sel.Collection.ContractAddress
		e.ImageURL = sel.Collection.ImageURL
	case sel.Attribute != nil:
		e.CollectionName = sel.Attribute.CollectionName
		e.ContractAddress = sel.Attribute.ContractAddress
		e.ImageURL = sel.Attribute.ImageURL
		e.AttrKey = sel.Attribute.Key
		e.AttrValue = sel.Attribute.Value
	}
	return e
}

// History stores recent selections in sqlite.
type History struct {
	db  *sql.DB
	log *log.Logger
}

// OpenDB opens the SQLite database at dbPath with the storage pragmas
// applied. Migrations are not run.
func OpenDB(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA temp_store = memory",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}
	return sqlDB, nil
}

// OpenHistory opens (or creates) the history database at dbPath and applies
// pending migrations.
func OpenHistory(dbPath string) (*History, error) {
	sqlDB, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.InitializeDatabase(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &History{db: sqlDB, log: log.ForService("storage")}, nil
}

// OpenHistoryIn opens the history database inside storageDir.
func OpenHistoryIn(storageDir string) (*History, error) {
	return OpenHistory(filepath.Join(storageDir, HistoryFile))
}

func (h *History) Close() error {
	return h.db.Close()
}

// Record stores e. A zero CreatedAt is set to now.
func (h *History) Record(ctx context.Context, e Entry) error {
	if e.Kind == "" || e.Label == "" {
		return fmt.Errorf("recording history: kind and label are required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := h.db.ExecContext(ctx, `
		INSERT INTO history (kind, label, collection_name, contract_address, image_url, attr_key, attr_value, url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Kind, e.Label, e.CollectionName, e.ContractAddress, e.ImageURL, e.AttrKey, e.AttrValue, e.URL, e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("recording history: %w", err)
	}

	h.log.Debugf("recorded %s %q", e.Kind, e.Label)
	return nil
}

// Recent returns up to limit entries, newest first. Repeated selections of
// the same item only appear once.
func (h *History) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT id, kind, label, collection_name, contract_address, image_url, attr_key, attr_value, url, created_at
		FROM history
		WHERE id IN (SELECT MAX(id) FROM history GROUP BY kind, label, url)
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.Label, &e.CollectionName, &e.ContractAddress,
			&e.ImageURL, &e.AttrKey, &e.AttrValue, &e.URL, &created); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.CreatedAt = time.UnixMilli(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of recorded selections.
func (h *History) Count(ctx context.Context) (int, error) {
	var n int
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM history").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting history: %w", err)
	}
	return n, nil
}

// Clear deletes every entry.
func (h *History) Clear(ctx context.Context) error {
	if _, err := h.db.ExecContext(ctx, "DELETE FROM history"); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}

// Prune keeps the newest keep entries.
func (h *History) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := h.db.ExecContext(ctx, `
		DELETE FROM history WHERE id NOT IN (SELECT id FROM history ORDER BY id DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	return res.RowsAffected()
}

func (h *History) Vacuum() error {
	_, err := h.db.Exec("VACUUM")
	return err
}

func (h *History) WALCheckpoint() error {
	_, err := h.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// AsResult converts entries into an autocomplete result so they can be
// shown next to the seed results. Free-text entries become suggestions.
func AsResult(entries []Entry) *search.Result {
	res := &search.Result{}
	for _, e := range entries {
		switch e.Kind {
		case navigate.KindCollection:
			res.Collections = append(res.Collections, search.CollectionHit{
				Name:            e.CollectionName,
				ContractAddress: e.ContractAddress,
				ImageURL:        e.ImageURL,
			})
		case navigate.KindAttribute:
			res.Attributes = append(res.Attributes, search.AttributeHit{
				CollectionName:  e.CollectionName,
				ContractAddress: e.ContractAddress,
				ImageURL:        e.ImageURL,
				Key:             e.AttrKey,
				Value:           e.AttrValue,
			})
		case navigate.KindToken:
			res.Tokens = append(res.Tokens, e.Label)
		default:
			res.Suggestions = append(res.Suggestions, e.Label)
		}
	}
	return res
}
