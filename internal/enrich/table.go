package enrich

import (
	"context"
	"sort"
	"strings"
)

// Table resolves lookups from a static code → description table. An exact
// code match wins; otherwise the first description (in code order) that
// contains the input, case-insensitively, is returned.
type Table struct {
	kind    string
	entries map[string]string
	codes   []string
}

func NewTable(kind string, entries map[string]string) *Table {
	t := &Table{kind: kind, entries: make(map[string]string, len(entries))}
	for code, text := range entries {
		t.entries[code] = text
		t.codes = append(t.codes, code)
	}
	sort.Strings(t.codes)
	return t
}

func (t *Table) Kind() string { return t.kind }

func (t *Table) Lookup(ctx context.Context, input string) (Result, error) {
	res := Result{Kind: t.kind, Input: input}
	key := strings.TrimSpace(input)
	if key == "" {
		return res, nil
	}
	if text, ok := t.entries[key]; ok {
		res.Found, res.Code, res.Text = true, key, text
		return res, nil
	}
	needle := strings.ToLower(key)
	for _, code := range t.codes {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if strings.Contains(strings.ToLower(t.entries[code]), needle) {
			res.Found, res.Code, res.Text = true, code, t.entries[code]
			return res, nil
		}
	}
	return res, nil
}
