package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"dailysync/internal/model"
	"dailysync/internal/util"
)

// Record is the on-disk shape of one job.
type Record struct {
	SourcePath           string `json:"folder1"`
	DestPath             string `json:"folder2"`
	TriggerTime          string `json:"time"`
	NotificationsEnabled *bool  `json:"notifications_enabled,omitempty"`
}

// Store persists the ordered job list as a JSON array.
type Store struct {
	path string

	mu        sync.Mutex
	lastWrite []byte
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the job list. A missing file yields an empty list.
func (s *Store) Load() ([]model.Job, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Job{}, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	return Decode(data)
}

// Save writes jobs atomically. Ids are not persisted.
func (s *Store) Save(jobs []model.Job) error {
	data, err := Encode(jobs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := util.AtomicWrite(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	s.lastWrite = data

	return nil
}

// IsOwnWrite reports whether data is exactly what this store last wrote.
func (s *Store) IsOwnWrite(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWrite != nil && bytes.Equal(s.lastWrite, data)
}

func Encode(jobs []model.Job) ([]byte, error) {
	records := make([]Record, 0, len(jobs))
	for _, j := range jobs {
		records = append(records, Record{
			SourcePath:           j.SourcePath,
			DestPath:             j.DestPath,
			TriggerTime:          j.TriggerTime,
			NotificationsEnabled: new(j.NotificationsEnabled),
		})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}

	return append(data, '\n'), nil
}

func Decode(data []byte) ([]model.Job, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	jobs := make([]model.Job, 0, len(records))
	for _, rec := range records {
		enabled := true
		if rec.NotificationsEnabled != nil {
			enabled = *rec.NotificationsEnabled
		}

		jobs = append(jobs, model.Job{
			SourcePath:           rec.SourcePath,
			DestPath:             rec.DestPath,
			TriggerTime:          rec.TriggerTime,
			NotificationsEnabled: enabled,
		})
	}

	return jobs, nil
}
