package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Columns every uploaded CSV must carry. image_url and id are optional.
var requiredColumns = []string{"title", "description", "url"}

// ParseCSV reads a catalog upload.
//
// The first record is the header; column names are matched case-insensitively
// and in any order, and unknown columns are ignored. The title, description
// and url columns are required: a header without them yields an error that
// wraps [ErrInvalidUpload]. Rows whose title is blank are dropped.
func ParseCSV(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("catalog: parse csv: empty upload: %w", ErrInvalidUpload)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: parse csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("catalog: parse csv: missing columns %s: %w", strings.Join(missing, ", "), ErrInvalidUpload)
	}

	cell := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var entries []Entry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: parse csv line %d: %w", line, err)
		}
		e := Entry{
			ID:          cell(rec, "id"),
			Title:       cell(rec, "title"),
			Description: cell(rec, "description"),
			URL:         cell(rec, "url"),
			ImageURL:    cell(rec, "image_url"),
		}
		if e.Title == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// WriteCSV writes entries in the upload format accepted by [ParseCSV].
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "title", "description", "url", "image_url"}); err != nil {
		return fmt.Errorf("catalog: write csv: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.ID, e.Title, e.Description, e.URL, e.ImageURL}); err != nil {
			return fmt.Errorf("catalog: write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("catalog: write csv: %w", err)
	}
	return nil
}
