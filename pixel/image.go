// Package pixel holds the raw RGB frame exchanged by sinks and sources.
//
// An Image is an opaque row-major buffer of interleaved R, G, B samples, 3 bytes per
// pixel. Conversions to and from the standard library's image types are provided for
// callers that render or capture frames; the protocol itself only ever sees Pix.
package pixel

import (
	"fmt"
	"image"
	"image/color"
)

// Channels is the number of bytes per pixel.
const Channels = 3

// Image is a Width×Height RGB frame.
type Image struct {
	Width  uint32
	Height uint32
	Pix    []byte // len(Pix) == Width*Height*Channels
}

// BufferLen returns the number of bytes a width×height frame occupies.
func BufferLen(width, height uint32) uint64 {
	return uint64(width) * uint64(height) * Channels
}

// New allocates a black frame.
func New(width, height uint32) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]byte, BufferLen(width, height)),
	}
}

// FromRaw wraps raw without copying. It fails if raw cannot be reshaped into width×height.
func FromRaw(width, height uint32, raw []byte) (*Image, error) {
	if uint64(len(raw)) != BufferLen(width, height) {
		return nil, fmt.Errorf("pixel: %dx%d needs %d bytes, got %d",
			width, height, BufferLen(width, height), len(raw))
	}
	return &Image{Width: width, Height: height, Pix: raw}, nil
}

// FromFunc builds a frame by calling f for every pixel.
func FromFunc(width, height uint32, f func(x, y uint32) color.RGBA) *Image {
	img := New(width, height)
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			img.Set(x, y, f(x, y))
		}
	}
	return img
}

func (m *Image) offset(x, y uint32) int {
	return int((uint64(y)*uint64(m.Width) + uint64(x)) * Channels)
}

// At returns the pixel at (x, y). Alpha is always 0xff.
func (m *Image) At(x, y uint32) color.RGBA {
	i := m.offset(x, y)
	return color.RGBA{R: m.Pix[i], G: m.Pix[i+1], B: m.Pix[i+2], A: 0xff}
}

// Set stores the RGB part of c at (x, y).
func (m *Image) Set(x, y uint32, c color.RGBA) {
	i := m.offset(x, y)
	m.Pix[i], m.Pix[i+1], m.Pix[i+2] = c.R, c.G, c.B
}

// Raw returns the underlying buffer.
func (m *Image) Raw() []byte { return m.Pix }

// Len returns the buffer length in bytes.
func (m *Image) Len() int { return len(m.Pix) }

// ToRGBA converts the frame for use with image/draw, image/png and friends.
func (m *Image) ToRGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, int(m.Width), int(m.Height)))
	for src, dst := 0, 0; src+2 < len(m.Pix); src, dst = src+3, dst+4 {
		out.Pix[dst] = m.Pix[src]
		out.Pix[dst+1] = m.Pix[src+1]
		out.Pix[dst+2] = m.Pix[src+2]
		out.Pix[dst+3] = 0xff
	}
	return out
}

// FromImage flattens any image.Image into an RGB frame, dropping alpha.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	img := New(uint32(b.Dx()), uint32(b.Dy()))
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(src.At(x, y)).(color.RGBA)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2] = c.R, c.G, c.B
			i += Channels
		}
	}
	return img
}
