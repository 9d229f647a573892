package media

import (
	"bytes"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

const exifTimeLayout = "2006:01:02 15:04:05"

var exifHeader = []byte("Exif\x00\x00")

// MetadataStatus tells whether a capture time could be read from the image.
type MetadataStatus int

const (
	MetadataAbsent MetadataStatus = iota
	MetadataPresent
	MetadataMalformed
)

func (s MetadataStatus) String() string {
	switch s {
	case MetadataPresent:
		return "present"
	case MetadataMalformed:
		return "malformed"
	default:
		return "absent"
	}
}

// CaptureTime is the result of reading embedded capture metadata.
type CaptureTime struct {
	Status MetadataStatus
	Time   time.Time
}

// ReadCaptureTime extracts DateTimeOriginal (falling back to DateTime) and interprets the
// naive value in loc. It never fails: unreadable metadata is reported as MetadataMalformed.
func ReadCaptureTime(data []byte, loc *time.Location) (result CaptureTime) {
	if !bytes.Contains(data, exifHeader) {
		return CaptureTime{Status: MetadataAbsent}
	}

	// goexif panics on some truncated IFDs.
	defer func() {
		if r := recover(); r != nil {
			result = CaptureTime{Status: MetadataMalformed}
		}
	}()

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil && x == nil {
		return CaptureTime{Status: MetadataMalformed}
	}

	for _, name := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		tag, err := x.Get(name)
		if err != nil {
			continue
		}
		raw, err := tag.StringVal()
		if err != nil {
			continue
		}
		raw = strings.TrimRight(strings.TrimSpace(raw), "\x00")
		t, err := time.ParseInLocation(exifTimeLayout, raw, loc)
		if err != nil {
			return CaptureTime{Status: MetadataMalformed}
		}
		return CaptureTime{Status: MetadataPresent, Time: t}
	}
	return CaptureTime{Status: MetadataAbsent}
}
