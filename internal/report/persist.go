package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"

	"github.com/FranksOps/contactscout/internal/contact"
)

const (
	DefaultDir  = "output"
	DefaultExt  = ".txt"
	defaultBase = "results"
	separator   = "--------------------------------------------------"
	placeholder = "None"
)

// ErrNoEntries is returned by Persist when there is nothing to write; no
// file is created.
var ErrNoEntries = errors.New("report: no entries, no file created")

var blockTmpl = template.Must(template.New("block").Funcs(template.FuncMap{
	"list": joinOrNone,
}).Parse(`{{range .}}Website Name: {{.Domain}}
URL: {{.URL}}
Emails: {{list .Contacts.Emails}}
Phone Numbers: {{list .Contacts.Phones}}

` + separator + `

{{end}}`))

func joinOrNone(s contact.Set) string {
	if s.Empty() {
		return placeholder
	}
	return strings.Join(s.Values(), ", ")
}

// WriteEntries renders entries in the report block layout.
func WriteEntries(w io.Writer, entries []contact.Entry) error {
	if err := blockTmpl.Execute(w, entries); err != nil {
		return fmt.Errorf("render entries: %w", err)
	}
	return nil
}

// SanitizeFilename keeps letters, digits, '_', '-' and spaces from query,
// then turns spaces into underscores. An empty result becomes "results".
func SanitizeFilename(query string) string {
	var b strings.Builder
	for _, r := range query {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return defaultBase
	}
	return b.String()
}

// Persister writes reports into a directory without ever replacing an
// existing file.
type Persister struct {
	dir string
	ext string
}

// NewPersister returns a Persister writing dir/<name><ext>. Empty
// arguments select "output" and ".txt".
func NewPersister(dir, ext string) *Persister {
	if dir == "" {
		dir = DefaultDir
	}
	if ext == "" {
		ext = DefaultExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &Persister{dir: dir, ext: ext}
}


// Persist writes entries to a fresh file named after query and returns its
// path. Empty entries yield ErrNoEntries.
func (p *Persister) Persist(entries []contact.Entry, query string) (string, error) {
	if len(entries) == 0 {
		return "", ErrNoEntries
	}
	f, path, err := p.Create(SanitizeFilename(query), p.ext)
	if err != nil {
		return "", err
	}
	if err := WriteEntries(f, entries); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close report: %w", err)
	}
	return path, nil
}

// Create makes the first free file among base+ext, base_1+ext, base_2+ext
// and so on inside the output directory. The check and creation are one
// atomic step, so concurrent runs cannot claim the same name.
func (p *Persister) Create(base, ext string) (*os.File, string, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create output dir: %w", err)
	}
	for n := 0; ; n++ {
		name := base + ext
		if n > 0 {
			name = fmt.Sprintf("%s_%d%s", base, n, ext)
		}
		path := filepath.Join(p.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create %s: %w", path, err)
		}
	}
}
