// Package frame holds the single reusable canvas of a render and packs it into
// the raw byte layout the encoder reads.
package frame

import (
	"image"
)

type Frame struct {
	RGBA        *image.RGBA
	Transparent bool
	packed      []byte
	stale       bool
}

func New(width, height int, transparent bool) *Frame {
	return &Frame{
		RGBA:        image.NewRGBA(image.Rect(0, 0, width, height)),
		Transparent: transparent,
		stale:       true,
	}
}

// Invalidate must be called after RGBA is drawn on so the next Bytes call
// packs it again.
func (f *Frame) Invalidate() { f.stale = true }

func (f *Frame) Width() int  { return f.RGBA.Rect.Dx() }
func (f *Frame) Height() int { return f.RGBA.Rect.Dy() }

// BytesPerPixel is 4 for transparent frames and 3 otherwise.
func (f *Frame) BytesPerPixel() int {
	if f.Transparent {
		return 4
	}
	return 3
}

// Size is the byte length of one packed frame.
func (f *Frame) Size() int {
	return f.Width() * f.Height() * f.BytesPerPixel()
}

// Bytes packs the canvas row by row: rgb24 for opaque frames, straight
// (non-premultiplied) rgba for transparent ones. The returned slice is reused
// and only repacked after Invalidate.
func (f *Frame) Bytes() []byte {
	if !f.stale && len(f.packed) == f.Size() {
		return f.packed
	}
	if cap(f.packed) < f.Size() {
		f.packed = make([]byte, f.Size())
	}
	out := f.packed[:f.Size()]
	f.packed = out
	f.stale = false

	src := f.RGBA
	w, h := f.Width(), f.Height()
	o := 0
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		if f.Transparent {
			for i := 0; i < len(row); i += 4 {
				r, g, b, a := row[i], row[i+1], row[i+2], row[i+3]
				out[o], out[o+1], out[o+2], out[o+3] = unpremultiply(r, a), unpremultiply(g, a), unpremultiply(b, a), a
				o += 4
			}
			continue
		}
		for i := 0; i < len(row); i += 4 {
			out[o], out[o+1], out[o+2] = row[i], row[i+1], row[i+2]
			o += 3
		}
	}
	return out
}

func unpremultiply(c, a uint8) uint8 {
	switch a {
	case 0:
		return 0
	case 0xff:
		return c
	}
	v := (uint32(c)*0xff + uint32(a)/2) / uint32(a)
	if v > 0xff {
		v = 0xff
	}
	return uint8(v)
}
