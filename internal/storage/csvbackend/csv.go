// Package csvbackend stores records as CSV rows, one per accepted entry.
package csvbackend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/FranksOps/contactscout/internal/storage"
)

var _ storage.Backend = (*backend)(nil)

// listSep joins multi-valued cells.
const listSep = "; "

var header = []string{"id", "run_id", "query", "domain", "url", "emails", "phones", "created_at"}

type backend struct {
	mu   sync.Mutex
	file *os.File
}

// New opens path for appending and writes the header row when the file is new.
func New(path string) (storage.Backend, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open csv export: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat csv export: %w", err)
	}
	if info.Size() == 0 {
		if err := writeRow(f, header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &backend{file: f}, nil
}

func writeRow(w io.Writer, row []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv row: %w", err)
	}
	return nil
}

func (b *backend) Save(_ context.Context, rec *storage.Record) error {
	row := []string{
		rec.ID,
		rec.RunID,
		rec.Query,
		rec.Domain,
		rec.URL,
		strings.Join(rec.Emails, listSep),
		strings.Join(rec.Phones, listSep),
		rec.CreatedAt.Format(time.RFC3339Nano),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return writeRow(b.file, row)
}

func (b *backend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind csv export: %w", err)
	}

	r := csv.NewReader(b.file)
	r.FieldsPerRecord = -1
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.Record{}, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var matched []*storage.Record
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if len(row) != len(header) {
			continue
		}
		createdAt, _ := time.Parse(time.RFC3339Nano, row[7])
		rec := &storage.Record{
			ID:        row[0],
			RunID:     row[1],
			Query:     row[2],
			Domain:    row[3],
			URL:       row[4],
			Emails:    splitList(row[5]),
			Phones:    splitList(row[6]),
			CreatedAt: createdAt,
		}
		if filter.Match(rec) {
			matched = append(matched, rec)
		}
	}
	return filter.Page(matched), nil
}

func splitList(cell string) []string {
	if cell == "" {
		return nil
	}
	return strings.Split(cell, listSep)
}

func (b *backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
