// Package validation provides reusable input sanitation helpers; the HTTP
// upload handler is the entry point that uses them.
//
// It validates the things that are common to any file-accepting surface —
// filenames and sizes — before a file ever reaches the Ingestion Pipeline's
// TSV parser. Field-level row validation (empty/length/number/date/foreign
// key checks) is a different concern with different failure semantics and
// lives in pkg/ingestion instead.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// Validator holds upload-time limits used to pre-screen incoming files.
type Validator struct {
	maxFileSize    int64
	maxFilenameLen int
	allowedExts    map[string]bool
}

// NewValidator creates a validator with conservative defaults: a 100MB
// maximum file size, a 255-character filename limit, and no extension
// restriction until SetAllowedExtensions is called.
func NewValidator() *Validator {
	return &Validator{
		maxFileSize:    100 * 1024 * 1024,
		maxFilenameLen: 255,
		allowedExts:    make(map[string]bool),
	}
}

// SetMaxFileSize overrides the maximum accepted upload size in bytes.
func (v *Validator) SetMaxFileSize(size int64) {
	v.maxFileSize = size
}

// SetAllowedExtensions restricts uploads to the given extensions
// (case-insensitive, include the leading dot). An empty list disables
// filtering.
func (v *Validator) SetAllowedExtensions(extensions []string) {
	v.allowedExts = make(map[string]bool)
	for _, ext := range extensions {
		v.allowedExts[strings.ToLower(ext)] = true
	}
}

// ValidationError reports a single field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateFilename rejects empty names, names over the configured length,
// path traversal sequences, directory separators, control characters, and
// (if configured) disallowed extensions.
func (v *Validator) ValidateFilename(filename string) error {
	if filename == "" {
		return ValidationError{Field: "filename", Message: "filename cannot be empty", Value: filename}
	}

	if len(filename) > v.maxFilenameLen {
		return ValidationError{
			Field:   "filename",
			Message: fmt.Sprintf("filename too long (max %d characters)", v.maxFilenameLen),
			Value:   filename,
		}
	}

	if strings.Contains(filename, "..") {
		return ValidationError{Field: "filename", Message: "filename contains path traversal sequences", Value: filename}
	}

	if strings.ContainsAny(filename, "/\\") {
		return ValidationError{Field: "filename", Message: "filename contains directory separators", Value: filename}
	}

	for _, r := range filename {
		if unicode.IsControl(r) {
			return ValidationError{Field: "filename", Message: "filename contains control characters", Value: filename}
		}
	}

	if len(v.allowedExts) > 0 {
		ext := strings.ToLower(filepath.Ext(filename))
		if !v.allowedExts[ext] {
			return ValidationError{
				Field:   "filename",
				Message: fmt.Sprintf("file extension %q is not permitted", ext),
				Value:   filename,
			}
		}
	}

	return nil
}

// ValidateFileSize rejects negative sizes and sizes over the configured
// maximum.
func (v *Validator) ValidateFileSize(size int64) error {
	if size < 0 {
		return ValidationError{Field: "file_size", Message: "file size cannot be negative", Value: size}
	}
	if size > v.maxFileSize {
		return ValidationError{
			Field:   "file_size",
			Message: fmt.Sprintf("file size exceeds maximum (%d bytes)", v.maxFileSize),
			Value:   size,
		}
	}
	return nil
}

// ValidateUploadRequest runs the filename and size checks together,
// returning every failure found rather than stopping at the first one.
func (v *Validator) ValidateUploadRequest(filename string, fileSize int64) []ValidationError {
	var errs []ValidationError
	if err := v.ValidateFilename(filename); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := v.ValidateFileSize(fileSize); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	return errs
}

// SanitizeInput strips null bytes, trims surrounding whitespace, and drops
// control characters other than newline and tab.
func (v *Validator) SanitizeInput(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	input = strings.TrimSpace(input)

	var result strings.Builder
	for _, r := range input {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		result.WriteRune(r)
	}
	return result.String()
}
