package serp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// File replays canned results from disk. A file whose first non-space byte
// is '[' is read as a JSON array of {"url","title"}; anything else is one
// URL per line with '#' comments. The query is not used.
type File struct {
	Path string
}

func (f *File) Name() string { return "file" }

func (f *File) Search(_ context.Context, _ string, limit int, _ string) ([]Result, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive: %d", limit)
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}

	var raw []Result
	if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("decode results file: %w", err)
		}
	} else {
		sc := bufio.NewScanner(bytes.NewReader(b))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			raw = append(raw, Result{URL: line})
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("scan results file: %w", err)
		}
	}

	c := newCollector(limit, f.Name())
	for _, r := range raw {
		c.add(r)
	}
	return c.out, nil
}
