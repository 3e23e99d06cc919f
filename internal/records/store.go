// Package records implements the append-only CSV record log.
package records

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Header is the fixed first row of the record log.
var Header = []string{"Date/time", "Country", "City", "Weather"}

// ErrPersist wraps every failure to append a record.
var ErrPersist = errors.New("persist failure")

// Record is one row of the log.
type Record struct {
	Timestamp string
	Country   string
	City      string
	Label     string
}

func (r Record) row() []string {
	return []string{r.Timestamp, r.Country, r.City, r.Label}
}

// Store appends records to a CSV file, opening and closing the file for
// every row so each append is on disk before the next iteration.
type Store struct {
	path      string
	truncated string
}

// Initialize prepares the record log at path. A missing or empty file
// gets the header; an existing file must already start with it. A final
// row cut short by power loss (no trailing newline) is removed so the next
// append starts on a fresh line; Truncated reports what was dropped. Any
// error here is fatal to the caller since no record could ever be
// persisted.
func Initialize(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open record log %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read record log %s: %w", path, err)
	}

	header := strings.Join(Header, ",")
	store := &Store{path: path}

	if len(data) > 0 && data[len(data)-1] != '\n' {
		cut := bytes.LastIndexByte(data, '\n') + 1
		// Only a torn header may be dropped from a file without any newline.
		if cut == 0 && !strings.HasPrefix(header, strings.TrimRight(string(data), "\r")) {
			return nil, fmt.Errorf("record log %s has an unexpected header %q", path, strings.TrimSpace(string(data)))
		}
		if err := f.Truncate(int64(cut)); err != nil {
			return nil, fmt.Errorf("failed to repair record log %s: %w", path, err)
		}
		store.truncated = string(data[cut:])
		data = data[:cut]
	}

	if len(data) > 0 {
		first, _, _ := strings.Cut(string(data), "\n")
		if strings.TrimRight(first, "\r") != header {
			return nil, fmt.Errorf("record log %s has an unexpected header %q", path, strings.TrimSpace(first))
		}
		if store.truncated != "" {
			if err := f.Sync(); err != nil {
				return nil, fmt.Errorf("failed to sync %s: %w", path, err)
			}
		}
		return store, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("failed to sync %s: %w", path, err)
	}

	return store, nil
}

// Truncated returns the incomplete trailing row Initialize removed, if any.
func (s *Store) Truncated() string {
	return s.truncated
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Append writes one record and syncs it to disk.
func (s *Store) Append(rec Record) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrPersist, s.path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(rec.row()); err != nil {
		f.Close()
		return fmt.Errorf("%w: write: %v", ErrPersist, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("%w: flush: %v", ErrPersist, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("%w: sync: %v", ErrPersist, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrPersist, err)
	}
	return nil
}

// ReadAll parses the record log at path, skipping the header.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse record log: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, Record{Timestamp: row[0], Country: row[1], City: row[2], Label: row[3]})
	}
	return out, nil
}
