package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidator(t *testing.T) {
	v := NewValidator()

	assert.Equal(t, int64(100*1024*1024), v.maxFileSize)
	assert.Equal(t, 255, v.maxFilenameLen)
	assert.NotNil(t, v.allowedExts)
}

func TestSetMaxFileSize(t *testing.T) {
	v := NewValidator()
	v.SetMaxFileSize(50 * 1024 * 1024)
	assert.Equal(t, int64(50*1024*1024), v.maxFileSize)
}

func TestSetAllowedExtensions(t *testing.T) {
	v := NewValidator()
	v.SetAllowedExtensions([]string{".tsv", ".TXT"})

	assert.True(t, v.allowedExts[".tsv"])
	assert.True(t, v.allowedExts[".txt"])
	assert.False(t, v.allowedExts[".TXT"])
}

func TestValidationError(t *testing.T) {
	err := ValidationError{Field: "test_field", Message: "test message", Value: "test_value"}
	assert.Equal(t, "validation error for field 'test_field': test message", err.Error())
}

func TestValidateFilename(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name     string
		filename string
		wantErr  bool
		errField string
	}{
		{"valid simple", "sales_2024_01.tsv", false, ""},
		{"empty filename", "", true, "filename"},
		{"path traversal", "../../etc/passwd.tsv", true, "filename"},
		{"forward slash", "dir/file.tsv", true, "filename"},
		{"backslash", "dir\\file.tsv", true, "filename"},
		{"control character", "file\x00.tsv", true, "filename"},
		{"too long", strings.Repeat("a", 300) + ".tsv", true, "filename"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateFilename(tt.filename)
			if tt.wantErr {
				require.Error(t, err)
				ve, ok := err.(ValidationError)
				require.True(t, ok)
				assert.Equal(t, tt.errField, ve.Field)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFilenameExtensionAllowlist(t *testing.T) {
	v := NewValidator()
	v.SetAllowedExtensions([]string{".tsv"})

	assert.NoError(t, v.ValidateFilename("sales.tsv"))
	assert.Error(t, v.ValidateFilename("sales.csv"))
}

func TestValidateFileSize(t *testing.T) {
	v := NewValidator()
	v.SetMaxFileSize(1000)

	assert.NoError(t, v.ValidateFileSize(500))
	assert.Error(t, v.ValidateFileSize(-1))
	assert.Error(t, v.ValidateFileSize(1001))
}

func TestValidateUploadRequest(t *testing.T) {
	v := NewValidator()
	v.SetMaxFileSize(1000)
	v.SetAllowedExtensions([]string{".tsv"})

	assert.Empty(t, v.ValidateUploadRequest("styles.tsv", 100))

	errs := v.ValidateUploadRequest("../bad.csv", 5000)
	assert.Len(t, errs, 2)
}

func TestSanitizeInput(t *testing.T) {
	v := NewValidator()

	assert.Equal(t, "hello world", v.SanitizeInput("  hello world  "))
	assert.Equal(t, "hello", v.SanitizeInput("hel\x00lo"))
	assert.Equal(t, "line1\nline2", v.SanitizeInput("line1\nline2"))
}
