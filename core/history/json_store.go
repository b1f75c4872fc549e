package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var ErrNotFound = errors.New("run not found")

const DefaultMaxRecords = 500

// JSONStore keeps run records in a JSON file. An empty path keeps them in
// memory only.
type JSONStore struct {
	filePath   string
	maxRecords int
	mu         sync.RWMutex
	data       *storeData
}

type storeData struct {
	Runs []*RunRecord `json:"runs"`
}

// NewJSONStore opens the store at filePath, creating the file if needed.
// Once more than maxRecords runs are kept the oldest are dropped; zero
// means DefaultMaxRecords.
func NewJSONStore(filePath string, maxRecords int) (*JSONStore, error) {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	store := &JSONStore{
		filePath:   filePath,
		maxRecords: maxRecords,
		data: &storeData{
			Runs: make([]*RunRecord, 0),
		},
	}

	if filePath == "" {
		return store, nil
	}

	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load run history: %w", err)
		}
		if err := store.save(); err != nil {
			return nil, fmt.Errorf("failed to create run history file: %w", err)
		}
	}

	return store, nil
}

// Save adds rec, replacing a record with the same id.
func (s *JSONStore) Save(rec *RunRecord) error {
	if rec.ID == "" {
		return errors.New("run record without id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.data.Runs {
		if r.ID == rec.ID {
			s.data.Runs[i] = rec
			return s.save()
		}
	}

	s.data.Runs = append(s.data.Runs, rec)
	if extra := len(s.data.Runs) - s.maxRecords; extra > 0 {
		s.data.Runs = append([]*RunRecord{}, s.data.Runs[extra:]...)
	}
	return s.save()
}

func (s *JSONStore) Get(id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.data.Runs {
		if r.ID == id {
			return r, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// List returns up to limit records, newest first. A limit of zero or less
// returns all of them.
func (s *JSONStore) List(limit int) []*RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*RunRecord, 0)
	for i := len(s.data.Runs) - 1; i >= 0; i-- {
		if limit > 0 && len(runs) >= limit {
			break
		}
		runs = append(runs, s.data.Runs[i])
	}
	return runs
}

// ByFunction returns the records of one function, newest first.
func (s *JSONStore) ByFunction(name string) []*RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*RunRecord, 0)
	for i := len(s.data.Runs) - 1; i >= 0; i-- {
		if s.data.Runs[i].Function == name {
			runs = append(runs, s.data.Runs[i])
		}
	}
	return runs
}

func (s *JSONStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.data.Runs {
		if r.ID == id {
			s.data.Runs = append(s.data.Runs[:i], s.data.Runs[i+1:]...)
			return s.save()
		}
	}

	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *JSONStore) load() error {
	file, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	if len(file) == 0 {
		return nil
	}

	return json.Unmarshal(file, s.data)
}

func (s *JSONStore) save() error {
	if s.filePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return err
	}

	return os.WriteFile(s.filePath, data, 0644)
}
