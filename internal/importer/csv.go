// Package importer parses LinkedIn connection exports and imports them with
// per-user deduplication.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

// Upload constraints.
const (
	// MaxUploadBytes is the size ceiling for an uploaded export (5 MiB).
	MaxUploadBytes = 5 << 20

	// preambleLines is the number of non-tabular metadata lines LinkedIn
	// prepends before the real header row.
	preambleLines = 3
)

// Per-field length caps applied during normalization.
const (
	maxNameLength  = 100
	maxFieldLength = 255
)

// Export column headers, matched case-sensitively.
const (
	colFirstName   = "First Name"
	colLastName    = "Last Name"
	colCompany     = "Company"
	colPosition    = "Position"
	colURL         = "URL"
	colEmail       = "Email Address"
	colConnectedOn = "Connected On"
)

// Parse errors.
var (
	// ErrPayloadTooLarge is returned before parsing when the upload exceeds
	// MaxUploadBytes.
	ErrPayloadTooLarge = errors.New("file exceeds maximum upload size")

	// ErrParse is returned when the upload cannot be decoded as a CSV export.
	ErrParse = errors.New("file could not be parsed as a connections export")
)

// connectedOnLayouts are the date formats seen in LinkedIn exports.
var connectedOnLayouts = []string{
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"2006-01-02",
}

// Candidate is one normalized row of the export: trimmed required name,
// trimmed-or-nil optional fields, and a parsed connection date when the
// export's date format is recognized.
type Candidate struct {
	FirstName   string
	LastName    string
	Company     *string
	Position    *string
	ProfileURL  *string
	Email       *string
	ConnectedOn *time.Time
}

// Normalize decodes an uploaded export into candidate records under the
// default size cap. The first three lines of preamble are discarded, the
// next line supplies the header, blank lines are skipped and rows without a
// first name are dropped without counting as errors.
func Normalize(r io.Reader) ([]Candidate, error) {
	return NormalizeLimit(r, MaxUploadBytes)
}

// NormalizeLimit is Normalize with a caller-supplied size cap; maxBytes of 0
// or less falls back to MaxUploadBytes.
func NormalizeLimit(r io.Reader, maxBytes int64) ([]Candidate, error) {
	if maxBytes <= 0 {
		maxBytes = MaxUploadBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrPayloadTooLarge
	}
	if !utf8.Valid(data) || bytes.ContainsRune(data, 0) {
		return nil, fmt.Errorf("%w: not valid text", ErrParse)
	}

	text := stripPreamble(string(data))

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	columns := indexColumns(header)

	var candidates []Candidate
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}

		firstName := truncate(strings.TrimSpace(field(row, columns, colFirstName)), maxNameLength)
		if firstName == "" {
			// Rows without a first name are discarded, not errors.
			continue
		}

		candidates = append(candidates, Candidate{
			FirstName:   firstName,
			LastName:    truncate(strings.TrimSpace(field(row, columns, colLastName)), maxNameLength),
			Company:     optional(field(row, columns, colCompany), maxFieldLength),
			Position:    optional(field(row, columns, colPosition), maxFieldLength),
			ProfileURL:  optional(field(row, columns, colURL), maxFieldLength),
			Email:       optional(field(row, columns, colEmail), maxFieldLength),
			ConnectedOn: parseConnectedOn(field(row, columns, colConnectedOn)),
		})
	}
	return candidates, nil
}

// stripPreamble removes the leading metadata lines of the export.
func stripPreamble(text string) string {
	rest := text
	for i := 0; i < preambleLines; i++ {
		idx := strings.IndexByte(rest, '\n')
		if idx < 0 {
			return ""
		}
		rest = rest[idx+1:]
	}
	return rest
}

// indexColumns maps known header names to their positions, case-sensitively.
func indexColumns(header []string) map[string]int {
	known := map[string]bool{
		colFirstName: true, colLastName: true, colCompany: true,
		colPosition: true, colURL: true, colEmail: true, colConnectedOn: true,
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if known[name] {
			columns[name] = i
		}
	}
	return columns
}

// field returns a row value by column name, or "" when the column is absent
// or the row is short.
func field(row []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// optional trims and caps a value, returning nil for empty strings.
func optional(value string, maxLen int) *string {
	trimmed := truncate(strings.TrimSpace(value), maxLen)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	// Cut at a rune boundary.
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen]
}

// parseConnectedOn parses the export's connection date. Unrecognized values
// yield nil rather than an error.
func parseConnectedOn(value string) *time.Time {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	for _, layout := range connectedOnLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return &t
		}
	}
	return nil
}
