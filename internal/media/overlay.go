package media

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Layout ratios, relative to the image width (sizes, horizontal margin) or height
// (vertical margin), so the stamp looks the same at any resolution.
const (
	primarySizeRatio   = 0.09
	secondarySizeRatio = 0.032
	marginXRatio       = 0.03
	marginYRatio       = 0.04
	lineGapRatio       = 0.35
)

// OverlayText renders the two stamp lines for a capture time and label. It is a pure
// function of its inputs.
func OverlayText(t time.Time, label string) (primary, secondary string) {
	primary = t.Format("03:04 PM")
	secondary = t.Format("02 Jan 2006, Mon")
	if label = strings.TrimSpace(label); label != "" {
		secondary += " | " + strings.ToUpper(label)
	}
	return primary, secondary
}

// LoadFont parses a TrueType/OpenType font file.
func LoadFont(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return f, nil
}

// faceFor returns a face for the pixel size and the scale factor to apply when drawing.
// Without a usable font the 7x13 bitmap face is scaled up instead.
func faceFor(f *opentype.Font, size float64) (font.Face, float64) {
	if f != nil {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
		if err == nil {
			return face, 1
		}
	}
	return basicfont.Face7x13, size / float64(basicfont.Face7x13.Height)
}

type textLine struct {
	text  string
	face  font.Face
	scale float64
}

func (l textLine) ascent() int {
	return int(math.Ceil(float64(l.face.Metrics().Ascent.Ceil()) * l.scale))
}

func (l textLine) descent() int {
	return int(math.Ceil(float64(l.face.Metrics().Descent.Ceil()) * l.scale))
}

// draw renders the line, shadow first, with its baseline at (x, baseline).
func (l textLine) draw(dst xdraw.Image, x, baseline int) {
	m := l.face.Metrics()
	asc := m.Ascent.Ceil()
	w := font.MeasureString(l.face, l.text).Ceil()
	h := asc + m.Descent.Ceil()
	if w <= 0 || h <= 0 {
		return
	}

	shadow := max(1, int(float64(h)*l.scale/20))
	for _, pass := range []struct {
		offset int
		col    color.Color
	}{
		{shadow, color.RGBA{A: 0xC0}},
		{0, color.White},
	} {
		glyphs := image.NewRGBA(image.Rect(0, 0, w, h))
		d := &font.Drawer{
			Dst:  glyphs,
			Src:  image.NewUniform(pass.col),
			Face: l.face,
			Dot:  fixed.P(0, asc),
		}
		d.DrawString(l.text)

		top := baseline - int(math.Round(float64(asc)*l.scale)) + pass.offset
		left := x + pass.offset
		target := image.Rect(left, top, left+int(math.Round(float64(w)*l.scale)), top+int(math.Round(float64(h)*l.scale)))
		xdraw.NearestNeighbor.Scale(dst, target, glyphs, glyphs.Bounds(), xdraw.Over, nil)
	}
}

// drawOverlay stamps both lines bottom-left onto dst.
func drawOverlay(dst *image.RGBA, f *opentype.Font, primary, secondary string) {
	b := dst.Bounds()
	width, height := float64(b.Dx()), float64(b.Dy())

	primaryFace, primaryScale := faceFor(f, math.Max(1, width*primarySizeRatio))
	defer primaryFace.Close()
	secondaryFace, secondaryScale := faceFor(f, math.Max(1, width*secondarySizeRatio))
	defer secondaryFace.Close()

	top := textLine{text: primary, face: primaryFace, scale: primaryScale}
	bottom := textLine{text: secondary, face: secondaryFace, scale: secondaryScale}

	x := b.Min.X + int(width*marginXRatio)
	bottomBaseline := b.Max.Y - int(height*marginYRatio) - bottom.descent()
	gap := int(float64(bottom.ascent()) * lineGapRatio)
	topBaseline := bottomBaseline - bottom.ascent() - gap - top.descent()

	top.draw(dst, x, topBaseline)
	bottom.draw(dst, x, bottomBaseline)
}
