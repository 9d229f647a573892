// Package media burns a capture timestamp and location label into survey photos.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register decoder
	"strings"
	"time"

	"github.com/abduss/stopsurvey/internal/clock"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font/opentype"
	_ "golang.org/x/image/webp" // register decoder
)

const (
	// DefaultQuality is the JPEG quality used for stamped output.
	DefaultQuality = 95
	// StampedContentType is the MIME type of every stamped image.
	StampedContentType = "image/jpeg"
)

// ErrUnreadableImage is returned when an item declared as an image cannot be decoded.
var ErrUnreadableImage = errors.New("unreadable image")

// Stamped is a transformed media item together with its resolved capture time.
type Stamped struct {
	Data        []byte
	ContentType string
	CapturedAt  time.Time
	Metadata    MetadataStatus
	Primary     string
	Secondary   string
}

// Options configures a Stamper.
type Options struct {
	Location *time.Location
	Clock    clock.Clock
	// FontPath points at a TTF/OTF file. Empty or unusable falls back to the bitmap face.
	FontPath string
	Quality  int
	Logger   *zap.Logger
}

// Stamper resolves capture times and renders overlays. It holds no per-call state and
// is safe for concurrent use.
type Stamper struct {
	loc     *time.Location
	clock   clock.Clock
	font    *opentype.Font
	quality int
	logger  *zap.Logger
}

// NewStamper builds a Stamper, loading the configured font if any.
func NewStamper(opts Options) *Stamper {
	s := &Stamper{
		loc:     opts.Location,
		clock:   opts.Clock,
		quality: opts.Quality,
		logger:  opts.Logger,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.quality <= 0 || s.quality > 100 {
		s.quality = DefaultQuality
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if opts.FontPath != "" {
		f, err := LoadFont(opts.FontPath)
		if err != nil {
			s.logger.Warn("stamp font unavailable, using bitmap face", zap.String("path", opts.FontPath), zap.Error(err))
		} else {
			s.font = f
		}
	}
	return s
}

// Now returns the current time in the reference timezone.
func (s *Stamper) Now() time.Time {
	return s.clock.Now().In(s.loc)
}

// Stamp transforms one media item. Images get the overlay and are re-encoded as JPEG;
// other kinds pass through unchanged with the fallback capture time.
func (s *Stamper) Stamp(data []byte, contentType, label string) (Stamped, error) {
	if !strings.HasPrefix(contentType, "image/") {
		captured := s.Now()
		primary, secondary := OverlayText(captured, label)
		return Stamped{
			Data:        data,
			ContentType: contentType,
			CapturedAt:  captured,
			Metadata:    MetadataAbsent,
			Primary:     primary,
			Secondary:   secondary,
		}, nil
	}
	return s.StampImage(data, label)
}

// StampImage burns the overlay into an image and returns the JPEG re-encoding.
func (s *Stamper) StampImage(data []byte, label string) (Stamped, error) {
	meta := ReadCaptureTime(data, s.loc)
	captured := meta.Time
	if meta.Status != MetadataPresent {
		captured = s.Now()
		if meta.Status == MetadataMalformed {
			s.logger.Debug("capture metadata malformed, using ingestion time")
		}
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Stamped{}, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}

	b := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(canvas, canvas.Bounds(), src, b.Min, xdraw.Src)

	primary, secondary := OverlayText(captured, label)
	drawOverlay(canvas, s.font, primary, secondary)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: s.quality}); err != nil {
		return Stamped{}, fmt.Errorf("encode stamped image: %w", err)
	}

	return Stamped{
		Data:        buf.Bytes(),
		ContentType: StampedContentType,
		CapturedAt:  captured,
		Metadata:    meta.Status,
		Primary:     primary,
		Secondary:   secondary,
	}, nil
}
