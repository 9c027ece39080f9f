package schedule

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/raceserver/controller/internal/clock"
)

// scheduleFileName is normative per the external-interfaces contract.
const scheduleFileName = "event-schedule.json"

// Store loads and saves the Schedule document under <baseDir>/Data. The
// directory is created on first use. All saves are atomic: write to a
// temp file, remove the target if present, rename into place.
type Store struct {
	mu      sync.Mutex
	dataDir string
	clock   clock.Clock
}

// NewStore returns a Store rooted at <baseDir>/Data.
func NewStore(baseDir string, c clock.Clock) *Store {
	if c == nil {
		c = clock.Real{}
	}
	return &Store{dataDir: filepath.Join(baseDir, "Data"), clock: c}
}

func (s *Store) path() string {
	return filepath.Join(s.dataDir, scheduleFileName)
}

// Load reads the schedule document. It is lossy-tolerant: a
// missing file, a read failure, or a structurally invalid document all
// yield an empty schedule rather than an error, with the latter two cases
// logged.
func (s *Store) Load() Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path())
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[schedule] reading %s: %v", s.path(), err)
		}
		return Schedule{}
	}

	var doc Schedule
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("[schedule] %s is not a valid schedule document: %v", s.path(), err)
		return Schedule{}
	}

	normalizeInvariants(doc.Events)
	return doc
}

// Save writes doc atomically, stamping LastUpdated with the store's clock.
func (s *Store) Save(doc Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc.LastUpdated = s.clock.Now().UTC()
	normalizeInvariants(doc.Events)

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling schedule: %w", err)
	}

	tmp, err := os.CreateTemp(s.dataDir, scheduleFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	target := s.path()
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing target: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	committed = true
	return nil
}

// Replace validates events, then persists a new schedule built from them,
// returning the saved document.
func (s *Store) Replace(events []Event) (Schedule, error) {
	if err := Validate(events); err != nil {
		return Schedule{}, err
	}
	doc := Schedule{Events: append([]Event(nil), events...)}
	if err := s.Save(doc); err != nil {
		return Schedule{}, err
	}
	return s.Load(), nil
}

// Backup copies the current document to a timestamped sibling file and
// returns its path. It is a no-op (returning "") if no document exists yet.
func (s *Store) Backup() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading schedule for backup: %w", err)
	}

	stamp := s.clock.Now().UTC().Format("20060102-150405")
	backupPath := filepath.Join(s.dataDir, fmt.Sprintf("event-schedule.backup.%s.json", stamp))
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing backup: %w", err)
	}
	return backupPath, nil
}
