// Package textfile reads uploaded documents as text. Bytes that are valid
// UTF-8 are used as-is; anything else is decoded as ISO-8859-1, which maps
// every byte to a code point, so arbitrary uploads still index.
package textfile

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
)

// Decode converts raw file content to a string.
func Decode(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrDecode, err, "decoding %d bytes as iso-8859-1", len(data))
	}
	return string(out), nil
}

// Read loads and decodes path. A missing file is reported as ErrFileNotFound,
// any other failure as ErrIO.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperrors.Wrap(apperrors.ErrFileNotFound, err, "reading %s", path)
		}
		return "", apperrors.Wrap(apperrors.ErrIO, err, "reading %s", path)
	}
	text, err := Decode(data)
	if err != nil {
		return "", err
	}
	return text, nil
}

// SplitLines splits text into physical lines without their terminators.
// "\n", "\r\n" and a lone "\r" all end a line; a terminator at the very end
// does not start an extra empty line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// ReadLines is Read followed by SplitLines.
func ReadLines(path string) ([]string, error) {
	text, err := Read(path)
	if err != nil {
		return nil, err
	}
	return SplitLines(text), nil
}
