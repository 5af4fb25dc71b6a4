/*
Package history keeps a ledger of records already retrieved so later runs can
skip them.
*/
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shanehull/annfetch/internal/types"
)

const (
	historyFileName = "retrieval_history.json"
	historyDirName  = "annfetch"
)

type Entry struct {
	Title       string    `json:"title"`
	Date        string    `json:"date"`
	RetrievedAt time.Time `json:"retrieved_at"`
	Documents   []string  `json:"documents,omitempty"`
}

type History struct {
	UpdatedAt time.Time        `json:"updated_at"`
	Records   map[string]Entry `json:"records"`
}

type Manager struct {
	history         History
	mutex           sync.Mutex
	historyFilePath string
	log             *slog.Logger
	now             func() time.Time
}

// DefaultPath is the ledger location used when none is configured.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), historyDirName, historyFileName)
}

func NewManager(path string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory %s: %w", filepath.Dir(path), err)
	}

	m := &Manager{
		historyFilePath: path,
		log:             logger,
		now:             time.Now,
	}
	m.loadHistory()
	return m, nil
}

func (m *Manager) loadHistory() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.history = History{Records: make(map[string]Entry)}

	data, err := os.ReadFile(m.historyFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.log.Debug("history file not found, starting fresh", "path", m.historyFilePath)
			return
		}
		m.log.Warn("error reading history file, starting fresh", "path", m.historyFilePath, "err", err)
		return
	}

	var loaded History
	if err := json.Unmarshal(data, &loaded); err != nil {
		m.log.Warn("error unmarshalling history, starting fresh", "path", m.historyFilePath, "err", err)
		return
	}
	if loaded.Records != nil {
		m.history = loaded
	}
	m.log.Debug("loaded retrieval history", "records", len(m.history.Records))
}

func (m *Manager) saveHistory() error {
	m.history.UpdatedAt = m.now().UTC()

	data, err := json.MarshalIndent(m.history, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling history: %w", err)
	}
	if err := os.WriteFile(m.historyFilePath, data, 0o644); err != nil {
		return fmt.Errorf("writing history file %s: %w", m.historyFilePath, err)
	}
	return nil
}

// Seen reports whether the record with this key was retrieved before.
func (m *Manager) Seen(key string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	_, ok := m.history.Records[key]
	return ok
}

// Record marks a record as retrieved and persists the ledger.
func (m *Manager) Record(key string, ref types.RecordRef, docs []types.ExtractedDocument) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entry := Entry{
		Title:       ref.Title,
		Date:        ref.Date.Date.Format("2006-01-02"),
		RetrievedAt: m.now().UTC(),
	}
	for _, d := range docs {
		entry.Documents = append(entry.Documents, d.Path)
	}
	m.history.Records[key] = entry
	return m.saveHistory()
}

func (m *Manager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.history.Records)
}

func (m *Manager) HistoryFilePath() string {
	return m.historyFilePath
}
