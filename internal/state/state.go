package state

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName      = "inno"
	dbFileName   = "inno.db"
	saveDebounce = 500 * time.Millisecond
)

// Manager persists the last battery reading in a small SQLite database so
// that a restarted daemon starts from it instead of the defaults.
type Manager struct {
	db        *sql.DB
	saveMu    sync.Mutex
	saveTimer *time.Timer
	pending   *Snapshot
}

// Open opens the database under the XDG state directory.
func Open() (*Manager, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, err
	}
	return OpenPath(dbPath)
}

// OpenPath opens (creating if needed) the database at dbPath. ":memory:" is
// accepted.
func OpenPath(dbPath string) (*Manager, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases alive between calls.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Manager{db: db}, nil
}

// Close flushes any pending save and closes the database.
func (m *Manager) Close() error {
	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	pending := m.pending
	m.pending = nil
	m.saveMu.Unlock()

	if pending != nil {
		_ = saveSnapshot(m.db, *pending)
	}

	return m.db.Close()
}

// Last returns the persisted reading, or nil on first run.
func (m *Manager) Last() (*Snapshot, error) {
	return getSnapshot(m.db)
}

// Save schedules snap to be written. Saves arriving within the debounce
// window collapse into one write of the newest snapshot.
func (m *Manager) Save(snap Snapshot) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.pending = &snap

	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}

	m.saveTimer = time.AfterFunc(saveDebounce, func() {
		m.saveMu.Lock()
		pending := m.pending
		m.pending = nil
		m.saveMu.Unlock()

		if pending != nil {
			_ = saveSnapshot(m.db, *pending)
		}
	})
}

func getSnapshot(db *sql.DB) (*Snapshot, error) {
	row := db.QueryRow(`
		SELECT percentage, state, text, updated_at
		FROM battery_state WHERE id = 1
	`)

	var snap Snapshot
	var text sql.NullString
	var updatedAt int64
	err := row.Scan(&snap.Percentage, &snap.State, &text, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no saved state is valid on first run
	}
	if err != nil {
		return nil, err
	}

	if text.Valid {
		snap.Text = text.String
	}
	snap.UpdatedAt = time.Unix(updatedAt, 0)
	return &snap, nil
}

func saveSnapshot(db *sql.DB, snap Snapshot) error {
	_, err := db.Exec(`
		INSERT INTO battery_state (id, percentage, state, text, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			percentage = excluded.percentage,
			state = excluded.state,
			text = excluded.text,
			updated_at = excluded.updated_at
	`, snap.Percentage, snap.State, snap.Text, snap.UpdatedAt.Unix())
	return err
}

func getDBPath() (string, error) {
	return xdg.StateFile(filepath.Join(appName, dbFileName))
}
