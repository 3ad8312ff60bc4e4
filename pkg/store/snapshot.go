package store

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/Sternrassler/rest-harvester/pkg/pagination"
	"github.com/goccy/go-json"
)

var (
	// ErrNotFound indicates no snapshot is stored under the requested key.
	ErrNotFound = errors.New("snapshot not found")

	// ErrInvalidSnapshot indicates a stored document could not be decoded.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// Snapshot is a harvested collection plus the context it was fetched in.
type Snapshot struct {
	Label     string              `json:"label,omitempty"`
	Endpoint  string              `json:"endpoint"`
	Query     url.Values          `json:"query,omitempty"`
	Count     int                 `json:"count"`
	FetchedAt time.Time           `json:"fetched_at"`
	Records   []pagination.Record `json:"records"`
}

// NewSnapshot wraps records fetched for key.
func NewSnapshot(key Key, records []pagination.Record, fetchedAt time.Time) *Snapshot {
	if records == nil {
		records = []pagination.Record{}
	}
	return &Snapshot{
		Label:     key.Label,
		Endpoint:  key.Endpoint,
		Query:     key.Query,
		Count:     len(records),
		FetchedAt: fetchedAt.UTC(),
		Records:   records,
	}
}

// Key returns the key the snapshot was stored under.
func (s *Snapshot) Key() Key {
	return Key{Endpoint: s.Endpoint, Query: s.Query, Label: s.Label}
}

// Encode renders the snapshot as an indented JSON document.
func (s *Snapshot) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a document produced by Encode. Numbers inside records are
// kept as json.Number.
func Decode(data []byte) (*Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var s Snapshot
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if s.Count != len(s.Records) {
		return nil, fmt.Errorf("%w: count %d does not match %d records", ErrInvalidSnapshot, s.Count, len(s.Records))
	}
	return &s, nil
}

// WriteFile writes the snapshot to path. The document goes to a temporary
// file in the same directory first and is renamed over path once complete.
func WriteFile(path string, s *Snapshot) error {
	if s == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}

	data, err := s.Encode()
	if err != nil {
		StoreErrors.WithLabelValues("write").Inc()
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		StoreErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		StoreErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		StoreErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		StoreErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		StoreErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		StoreErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("rename snapshot: %w", err)
	}

	StoreWrites.WithLabelValues(backendFile).Inc()
	SnapshotBytes.WithLabelValues(backendFile).Observe(float64(len(data)))
	return nil
}

// ReadFile loads a snapshot written by WriteFile.
// Returns ErrNotFound if path does not exist.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			StoreReads.WithLabelValues(backendFile, "miss").Inc()
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		StoreErrors.WithLabelValues("read").Inc()
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	s, err := Decode(data)
	if err != nil {
		StoreErrors.WithLabelValues("read").Inc()
		return nil, err
	}

	StoreReads.WithLabelValues(backendFile, "hit").Inc()
	return s, nil
}
