// Package report renders run results: the contact report file and the
// run summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/template"
	"time"

	"github.com/FranksOps/contactscout/internal/dedup"
	"github.com/FranksOps/contactscout/internal/pipeline"
)

// Summary describes one run.
type Summary struct {
	RunID             string         `json:"run_id"`
	Query             string         `json:"query"`
	Provider          string         `json:"provider"`
	Candidates        int            `json:"candidates"`
	FetchFailures     map[string]int `json:"fetch_failures"`
	TotalFailures     int            `json:"total_failures"`
	PagesWithContacts int            `json:"pages_with_contacts"`
	PagesEmpty        int            `json:"pages_empty"`
	EntriesAccepted   int            `json:"entries_accepted"`
	EntriesDropped    int            `json:"entries_dropped"`
	UniqueEmails      int            `json:"unique_emails"`
	UniquePhones      int            `json:"unique_phones"`
	ReportPath        string         `json:"report_path,omitempty"`
	ExportPath        string         `json:"export_path,omitempty"`
	Exported          int            `json:"exported,omitempty"`
	StartTime         time.Time      `json:"start_time"`
	EndTime           time.Time      `json:"end_time"`
	Duration          time.Duration  `json:"duration_ns"`
}

// GenerateSummary combines pipeline and dedup counters for a run that
// began at start and ended at end.
func GenerateSummary(query string, stats pipeline.Stats, state *dedup.State, start, end time.Time) Summary {
	s := Summary{
		Query:             query,
		Candidates:        stats.Candidates,
		FetchFailures:     make(map[string]int, len(stats.FetchFailures)),
		PagesWithContacts: stats.PagesWithContacts,
		PagesEmpty:        stats.PagesEmpty,
		StartTime:         start,
		EndTime:           end,
		Duration:          end.Sub(start),
	}
	for kind, n := range stats.FetchFailures {
		s.FetchFailures[kind] = n
		s.TotalFailures += n
	}
	if state != nil {
		s.EntriesAccepted, s.EntriesDropped = state.Counts()
		s.UniqueEmails, s.UniquePhones = state.Seen()
	}
	return s
}

// WriteJSON writes the summary as indented JSON.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

var textTmpl = template.Must(template.New("summary").Funcs(template.FuncMap{
	"sortedKeys": func(m map[string]int) []string { return slices.Sorted(maps.Keys(m)) },
}).Parse(`contactscout run {{.RunID}}
------------------
Query:          {{.Query}}
Provider:       {{.Provider}}
Duration:       {{.Duration}}
Candidates:     {{.Candidates}}
Fetch failures: {{.TotalFailures}}
{{- $f := .FetchFailures}}
{{- range sortedKeys $f}}
  {{.}}: {{index $f .}}
{{- end}}
With contacts:  {{.PagesWithContacts}}
No contacts:    {{.PagesEmpty}}
Entries:        {{.EntriesAccepted}} accepted, {{.EntriesDropped}} dropped as duplicates
Unique:         {{.UniqueEmails}} emails, {{.UniquePhones}} phones
Report:         {{if .ReportPath}}{{.ReportPath}}{{else}}no file created{{end}}
{{- if .ExportPath}}
Export:         {{.ExportPath}} ({{.Exported}} records)
{{- end}}
`))

// WriteText writes a human-readable summary.
func WriteText(w io.Writer, summary Summary) error {
	if err := textTmpl.Execute(w, summary); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}
