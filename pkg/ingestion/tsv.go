// Package ingestion implements the Ingestion Pipeline: TSV parsing,
// per-row validation, intra-batch duplicate detection, dependency-aware
// clearing, and chunked transactional persistence for the four master/
// transactional file kinds (styles, stores, skus, sales).
package ingestion

import (
	"bytes"
	"fmt"
	"strings"
)

// maxRows bounds a single upload; beyond this the file is rejected before
// any row is validated or persisted.
const maxRows = 500000

// Row is one parsed data line, keyed by header column name. A row whose
// field count didn't match the header is represented as an empty Row —
// callers treat that as a row-level validation failure.
type Row map[string]string

// ParseTSV splits a TSV payload into rows keyed by expectedHeader. The
// first line must match expectedHeader case-insensitively, in order, or
// the whole file is rejected.
func ParseTSV(data []byte, expectedHeader []string) ([]Row, error) {
	text := strings.TrimRight(string(data), "\r\n")
	if text == "" {
		return nil, fmt.Errorf("file is empty")
	}
	lines := strings.Split(text, "\n")

	header := strings.Split(strings.TrimRight(lines[0], "\r"), "\t")
	if !headerMatches(header, expectedHeader) {
		return nil, fmt.Errorf("header mismatch: expected %s, got %s",
			strings.Join(expectedHeader, "\t"), strings.Join(header, "\t"))
	}

	dataLines := lines[1:]
	// Drop a single trailing blank line produced by a final newline.
	if len(dataLines) > 0 && strings.TrimSpace(dataLines[len(dataLines)-1]) == "" {
		dataLines = dataLines[:len(dataLines)-1]
	}
	if len(dataLines) > maxRows {
		return nil, fmt.Errorf("row count %d exceeds maximum of %d", len(dataLines), maxRows)
	}

	rows := make([]Row, len(dataLines))
	for i, line := range dataLines {
		fields := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(fields) != len(expectedHeader) {
			rows[i] = Row{}
			continue
		}
		row := make(Row, len(expectedHeader))
		for j, col := range expectedHeader {
			row[col] = strings.TrimSpace(fields[j])
		}
		rows[i] = row
	}
	return rows, nil
}

func headerMatches(got, expected []string) bool {
	if len(got) != len(expected) {
		return false
	}
	for i := range expected {
		if !strings.EqualFold(strings.TrimSpace(got[i]), expected[i]) {
			return false
		}
	}
	return true
}

// detectBOM strips a leading UTF-8 byte-order mark some spreadsheet tools
// prepend when exporting TSV.
func detectBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}
