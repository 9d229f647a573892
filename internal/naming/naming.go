// Package naming derives storage keys for uploaded survey media.
package naming

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/unicode/norm"
)

const (
	maxLabelLength = 64
	nonceLength    = 8
	timeLayout     = "20060102_150405"
	fallbackLabel  = "unknown"
	fallbackExt    = ".bin"
)

// Context is the per-submission part of every key.
type Context struct {
	Label       string
	SubmittedAt time.Time
	// SubmissionID disambiguates submissions for the same label within one second.
	SubmissionID string
}

// BuildKey returns <label>_<YYYYMMDD_HHMMSS>_<nonce>_<index><ext>. index is 1-based.
func BuildKey(ctx Context, index int, contentType string) string {
	parts := []string{Sanitize(ctx.Label), ctx.SubmittedAt.Format(timeLayout)}
	if nonce := shortNonce(ctx.SubmissionID); nonce != "" {
		parts = append(parts, nonce)
	}
	parts = append(parts, fmt.Sprintf("%d", index))
	return strings.Join(parts, "_") + Extension(contentType)
}

// Sanitize folds a free-form label into a path-safe token.
func Sanitize(label string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range norm.NFKD.String(strings.TrimSpace(label)) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.'):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
		if b.Len() >= maxLabelLength {
			break
		}
	}
	out := strings.Trim(b.String(), "_.-")
	if len(out) > maxLabelLength {
		out = strings.Trim(out[:maxLabelLength], "_.-")
	}
	if out == "" {
		return fallbackLabel
	}
	return out
}

// Extension maps a MIME type to a file extension including the dot.
func Extension(contentType string) string {
	if m := mimetype.Lookup(contentType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return fallbackExt
}

// shortNonce keeps the first hex digits of the submission ID.
func shortNonce(id string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(id) {
		if b.Len() == nonceLength {
			break
		}
		if ('0' <= r && r <= '9') || ('a' <= r && r <= 'f') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
