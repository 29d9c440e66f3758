// Package validator checks uploads before they reach the document directory.
// It turns client-supplied filenames into safe document ids and returns
// per-field error details.
package validator

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
)

const maxFilenameLength = 255

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return apperrors.ErrInvalidInput }

var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// SanitizeFilename reduces name to a flat ASCII filename. Directory parts are
// dropped, accents are transliterated, whitespace becomes "_" and anything
// outside [A-Za-z0-9_.-] is removed, as are leading and trailing "._".
// The result may be empty.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base("/" + name)
	ascii, _, err := transform.String(stripMarks, name)
	if err != nil {
		ascii = name
	}
	ascii = strings.Join(strings.Fields(ascii), "_")
	var b strings.Builder
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}

// ValidateUpload sanitizes name and checks the upload against maxBytes. It
// returns the document id the upload will be stored under.
func ValidateUpload(name string, size int64, maxBytes int64) (string, error) {
	errs := make(map[string]string)

	docID := SanitizeFilename(name)
	switch {
	case strings.TrimSpace(name) == "":
		errs["filename"] = "filename is required"
	case docID == "":
		errs["filename"] = "filename has no usable characters"
	case len(docID) > maxFilenameLength:
		errs["filename"] = fmt.Sprintf("filename must be at most %d characters", maxFilenameLength)
	case strings.TrimPrefix(filepath.Ext(docID), ".") == "":
		errs["filename"] = "filename must have an extension"
	}
	if size <= 0 {
		errs["file"] = "file is empty"
	} else if maxBytes > 0 && size > maxBytes {
		errs["file"] = fmt.Sprintf("file must be at most %d bytes", maxBytes)
	}
	if len(errs) > 0 {
		return "", &ValidationError{Fields: errs}
	}
	return docID, nil
}
