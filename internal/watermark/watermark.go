// Package watermark composites a semi-transparent logo onto images.
package watermark

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	_ "image/gif"
	_ "image/jpeg"
)

const (
	// DefaultOpacity is the logo opacity in percent when the settings
	// document does not specify one.
	DefaultOpacity = 50

	// logoShrink divides the logo dimensions before compositing, so an
	// oversized logo never covers the whole photo.
	logoShrink = 2
)

// Options control how the logo is prepared before stamping.
type Options struct {
	// Color replaces the logo's RGB channels wholesale; the alpha channel
	// is kept, so the logo shape survives the recolor.
	Color color.NRGBA
	// Opacity in percent, 0 (invisible) to 100 (as-is).
	Opacity int
}

func DefaultOptions() Options {
	return Options{
		Color:   color.NRGBA{R: 255, G: 255, B: 255},
		Opacity: DefaultOpacity,
	}
}

// Composer stamps a prepared logo onto images. Preparation happens once at
// construction; Stamp is safe for concurrent use.
type Composer struct {
	logo *image.NRGBA
}

// NewComposer decodes the logo from r and prepares it per opts.
func NewComposer(r io.Reader, opts Options) (*Composer, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode logo: %w", err)
	}
	return &Composer{logo: prepareLogo(src, opts)}, nil
}

// Stamp decodes the image from src, pastes the logo centered over it and
// encodes the result to dst as PNG. The output is always PNG regardless of
// the input format.
func (c *Composer) Stamp(dst io.Writer, src io.Reader) error {
	base, _, err := image.Decode(src)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	bounds := base.Bounds()
	out := image.NewNRGBA(bounds)
	draw.Draw(out, bounds, base, bounds.Min, draw.Src)

	lb := c.logo.Bounds()
	offset := image.Pt(
		bounds.Min.X+(bounds.Dx()-lb.Dx())/2,
		bounds.Min.Y+(bounds.Dy()-lb.Dy())/2,
	)
	draw.Draw(out, lb.Add(offset.Sub(lb.Min)), c.logo, lb.Min, draw.Over)

	if err := png.Encode(dst, out); err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	return nil
}

// prepareLogo recolors, shrinks and fades the logo.
func prepareLogo(src image.Image, opts Options) *image.NRGBA {
	opacity := opts.Opacity
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 100 {
		opacity = 100
	}
	alphaScale := uint32(opacity * 255 / 100)

	sb := src.Bounds()
	w, h := sb.Dx()/logoShrink, sb.Dy()/logoShrink
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// nearest-neighbor sample; the logo is decorative, not
			// precision artwork
			sx := sb.Min.X + x*sb.Dx()/w
			sy := sb.Min.Y + y*sb.Dy()/h
			_, _, _, a := src.At(sx, sy).RGBA()
			out.SetNRGBA(x, y, color.NRGBA{
				R: opts.Color.R,
				G: opts.Color.G,
				B: opts.Color.B,
				A: uint8((a >> 8) * alphaScale / 255),
			})
		}
	}
	return out
}
