package survey

import (
	"strings"
)

// Answers maps a field name to its answer values. Single-valued fields use one
// element; multi-choice fields use one element per chosen option.
type Answers map[string][]string

// Get returns the first value for the field or "".
func (a Answers) Get(name string) string {
	if vs := a[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Set replaces the field's values with a single value.
func (a Answers) Set(name, value string) {
	a[name] = []string{value}
}

// Add appends a value to the field.
func (a Answers) Add(name, value string) {
	a[name] = append(a[name], value)
}

// MediaItem is one captured photo or video. It is treated as immutable once captured.
type MediaItem struct {
	Filename    string
	ContentType string
	Data        []byte
}

// IsImage reports whether the declared MIME kind is an image.
func (m MediaItem) IsImage() bool {
	return strings.HasPrefix(m.ContentType, "image/")
}

// IsVideo reports whether the declared MIME kind is a video.
func (m MediaItem) IsVideo() bool {
	return strings.HasPrefix(m.ContentType, "video/")
}

// Record is one in-progress submission: the variant, its answers and the attached media
// in attachment order. A Record is owned by exactly one submission.
type Record struct {
	Variant string
	Answers Answers
	Media   []MediaItem
}
