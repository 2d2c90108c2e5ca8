package ingestion

import (
	"fmt"
	"strings"
)

// ArtifactStore persists the error/warning artifacts produced by a failed
// or partially-skipped upload; the URL each Put returns is reported in the
// upload result's errorFiles map so an operator can fetch the row-level
// diagnostic later. Storage.Database
// doesn't own a blob store, so this is implemented as a pluggable sink —
// the HTTP layer wires a filesystem- or object-store-backed
// implementation in.
type ArtifactStore interface {
	Put(taskID, name string, content []byte) (url string, err error)
}

// Artifacts is the set of error-reporting files produced for a failed
// or partially-skipped ingestion. Any entry may be empty, in which case it
// is not written.
type Artifacts struct {
	ValidationErrors []byte // validation_errors.tsv
	SkippedRows      []byte // skipped_rows.tsv (Sales only)
	AllFailed        []byte // all_failed_with_errors.tsv
	ErrorSummary     []byte // error_summary.tsv
}

// BuildArtifacts renders a Result's warnings and errors into the four
// artifact files. validationErrors lists each row error as its line
// number and reason under a "line\terror" header, and skippedRows lists
// each warning under a "line\treason" header; neither includes the
// original field values of the row. allFailed holds the same content as
// validationErrors (errors only, no warnings). errorSummary tallies counts per error kind
// (the string before the first ':' in each RowError.Reason).
func BuildArtifacts(r *Result) *Artifacts {
	a := &Artifacts{}

	if len(r.Errors) > 0 {
		var b strings.Builder
		b.WriteString("line\terror\n")
		for _, e := range r.Errors {
			line, reason := splitRowMessage(e)
			fmt.Fprintf(&b, "%s\t%s\n", line, reason)
		}
		a.ValidationErrors = []byte(b.String())
		a.AllFailed = a.ValidationErrors
	}

	if len(r.Warnings) > 0 {
		var b strings.Builder
		b.WriteString("line\treason\n")
		for _, w := range r.Warnings {
			line, reason := splitRowMessage(w)
			fmt.Fprintf(&b, "%s\t%s\n", line, reason)
		}
		a.SkippedRows = []byte(b.String())
	}

	summary := map[string]int{}
	for _, e := range r.Errors {
		_, reason := splitRowMessage(e)
		kind := reason
		if idx := strings.Index(reason, ":"); idx >= 0 {
			kind = reason[:idx]
		}
		summary[kind]++
	}
	if len(summary) > 0 {
		var b strings.Builder
		b.WriteString("kind\tcount\n")
		for kind, count := range summary {
			fmt.Fprintf(&b, "%s\t%d\n", kind, count)
		}
		a.ErrorSummary = []byte(b.String())
	}

	return a
}

// splitRowMessage pulls the line number and reason out of a "Row N:
// reason" formatted message, falling back to leaving it whole if the
// prefix isn't present (e.g. a plain warning string).
func splitRowMessage(msg string) (line, reason string) {
	if !strings.HasPrefix(msg, "Row ") {
		return "", msg
	}
	rest := msg[len("Row "):]
	idx := strings.Index(rest, ":")
	if idx < 0 {
		return "", msg
	}
	return rest[:idx], strings.TrimSpace(rest[idx+1:])
}

// Put writes every populated artifact under name-prefixed keys via store,
// returning the set of URLs keyed by conventional filename — the shape
// status responses surface as errorFiles.
func (a *Artifacts) Put(store ArtifactStore, taskID string) (map[string]string, error) {
	urls := make(map[string]string)
	files := map[string][]byte{
		"validation_errors.tsv":   a.ValidationErrors,
		"skipped_rows.tsv":        a.SkippedRows,
		"all_failed_with_errors.tsv": a.AllFailed,
		"error_summary.tsv":       a.ErrorSummary,
	}
	for name, content := range files {
		if len(content) == 0 {
			continue
		}
		url, err := store.Put(taskID, name, content)
		if err != nil {
			return nil, fmt.Errorf("failed to store artifact %s: %w", name, err)
		}
		urls[name] = url
	}
	return urls, nil
}
