package csvbackend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/contactscout/internal/storage"
)

func TestCSVBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.csv")

	b, err := New(path)
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	recs := []*storage.Record{
		{ID: "c1", RunID: "run", Query: `bodas, "málaga"`, Domain: "a.example", URL: "https://a.example/", Emails: []string{"a@x.com", "b@x.com"}, Phones: []string{"+34 600 123 456"}, CreatedAt: now.Add(-time.Hour)},
		{ID: "c2", RunID: "run", Domain: "b.example", URL: "https://b.example/", Phones: []string{"612345678"}, CreatedAt: now},
	}
	if err := storage.SaveAll(ctx, b, recs); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	got, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c2" {
		t.Fatalf("expected newest-first two records, got %d", len(got))
	}
	first := got[1]
	if first.Query != `bodas, "málaga"` {
		t.Errorf("query cell did not round-trip: %q", first.Query)
	}
	if fmt.Sprint(first.Emails) != "[a@x.com b@x.com]" || fmt.Sprint(first.Phones) != "[+34 600 123 456]" {
		t.Errorf("lists did not round-trip: %v %v", first.Emails, first.Phones)
	}
	if len(got[0].Emails) != 0 {
		t.Errorf("expected no emails for c2, got %v", got[0].Emails)
	}
	if !first.CreatedAt.Equal(recs[0].CreatedAt) {
		t.Errorf("timestamp did not round-trip: %v vs %v", first.CreatedAt, recs[0].CreatedAt)
	}

	byDomain, _ := b.Query(ctx, storage.Filter{Domain: "a.example"})
	if len(byDomain) != 1 || byDomain[0].ID != "c1" {
		t.Errorf("expected [c1] for domain filter, got %+v", byDomain)
	}
}

func TestCSVBackend_HeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.csv")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		b, err := New(path)
		if err != nil {
			t.Fatalf("open %d failed: %v", i, err)
		}
		_ = b.Save(ctx, &storage.Record{ID: fmt.Sprint(i)})
		_ = b.Close()
	}

	raw, _ := os.ReadFile(path)
	if n := strings.Count(string(raw), "id,run_id"); n != 1 {
		t.Errorf("expected a single header row, found %d", n)
	}
}

func TestCSVBackend_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.csv")
	b, _ := New(path)
	defer b.Close()

	got, err := b.Query(context.Background(), storage.Filter{})
	if err != nil || len(got) != 0 {
		t.Errorf("expected no records, got %v, %v", got, err)
	}
}
