// Package naming builds the file names written by both pipeline stages.
package naming

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrBlobPath is returned when a trigger path has no file segment.
var ErrBlobPath = errors.New("blob path has no file segment")

const processedPrefix = "processed_"

var termReplacer = strings.NewReplacer(" ", "_", "-", "_")

// RandomToken returns 8 lowercase hex characters taken from a random UUID.
func RandomToken() string {
	id := uuid.New()
	return hex.EncodeToString(id[:4])
}

// SanitizeTerm replaces spaces and hyphens with underscores.
func SanitizeTerm(term string) string {
	return termReplacer.Replace(term)
}

// ResultFilename names the raw search result blob.
func ResultFilename(term, token string) string {
	return SanitizeTerm(fmt.Sprintf("search_results_%s_%s.json", term, token))
}

// ProcessedFilename derives the data lake file name from the trigger path
// "<container>/<file>". Only the second segment is used.
func ProcessedFilename(blobPath string) (string, error) {
	parts := strings.Split(blobPath, "/")
	if len(parts) < 2 {
		return "", fmt.Errorf("%w: %q", ErrBlobPath, blobPath)
	}
	return processedPrefix + parts[1], nil
}
