// Package storage exports accepted contact entries to machine-readable
// files and reads them back.
package storage

import (
	"context"
	"time"

	"github.com/FranksOps/contactscout/internal/contact"
	"github.com/google/uuid"
)

// Record is one accepted report entry as exported.
type Record struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Query     string    `json:"query"`
	Domain    string    `json:"domain"`
	URL       string    `json:"url"`
	Emails    []string  `json:"emails"`
	Phones    []string  `json:"phones"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows Query results. Zero fields match everything.
type Filter struct {
	Domain string
	RunID  string
	Since  *time.Time
	Limit  int
	Offset int
}

// Backend stores and queries records.
type Backend interface {
	Save(ctx context.Context, rec *Record) error
	Query(ctx context.Context, filter Filter) ([]*Record, error)
	Close() error
}

// Records converts entries into export records stamped with runID and now.
func Records(runID, query string, entries []contact.Entry, now time.Time) []*Record {
	out := make([]*Record, 0, len(entries))
	for _, e := range entries {
		out = append(out, &Record{
			ID:        uuid.NewString(),
			RunID:     runID,
			Query:     query,
			Domain:    e.Domain,
			URL:       e.URL,
			Emails:    e.Contacts.Emails.Values(),
			Phones:    e.Contacts.Phones.Values(),
			CreatedAt: now.UTC(),
		})
	}
	return out
}

// SaveAll writes every record, stopping at the first error.
func SaveAll(ctx context.Context, b Backend, recs []*Record) error {
	for _, r := range recs {
		if err := b.Save(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Match reports whether r passes the field filters of f.
func (f Filter) Match(r *Record) bool {
	if f.Domain != "" && r.Domain != f.Domain {
		return false
	}
	if f.RunID != "" && r.RunID != f.RunID {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page orders matched records newest first and applies Offset and Limit.
// recs must be in insertion order.
func (f Filter) Page(recs []*Record) []*Record {
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	if f.Offset > 0 {
		if f.Offset >= len(recs) {
			return []*Record{}
		}
		recs = recs[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(recs) {
		recs = recs[:f.Limit]
	}
	return recs
}
