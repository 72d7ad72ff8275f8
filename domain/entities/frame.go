package entities

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	// FrameWidth is the display width in pixels.
	FrameWidth = 96

	// FrameHeight is the display height in pixels.
	FrameHeight = 38

	// FrameRowBytes is the number of packed bytes per display row.
	FrameRowBytes = FrameWidth / 8

	// FrameSize is the exact size of one rendered frame in bytes.
	FrameSize = FrameRowBytes * FrameHeight

	// MaxFrameIndex is the last frame index a guest is asked to render.
	// At 10 fps, 101 frames is a little over ten seconds of animation.
	MaxFrameIndex FrameIndex = 100
)

// FrameIndex identifies a frame within one render stream.
type FrameIndex uint16

// Frame is one rendered image: a 96x38 1-bit bitmap, rows packed
// most-significant bit first.
type Frame [FrameSize]byte

// FrameFromBytes copies b into a Frame. b must be exactly FrameSize bytes.
func FrameFromBytes(b []byte) (Frame, error) {
	var f Frame
	if len(b) != FrameSize {
		return f, fmt.Errorf("frame must be %d bytes, got %d", FrameSize, len(b))
	}
	copy(f[:], b)
	return f, nil
}

// DecodeFrame decodes a base64 (standard alphabet) screen_update payload.
func DecodeFrame(data string) (Frame, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	return FrameFromBytes(raw)
}

// Encode returns the base64 (standard alphabet) wire encoding of the frame.
func (f *Frame) Encode() string {
	return base64.StdEncoding.EncodeToString(f[:])
}

// Pixel reports whether the pixel at (x, y) is lit.
// Coordinates outside the display are never lit.
func (f *Frame) Pixel(x, y int) bool {
	if x < 0 || x >= FrameWidth || y < 0 || y >= FrameHeight {
		return false
	}
	b := f[y*FrameRowBytes+x/8]
	return b&(0x80>>(x%8)) != 0
}

// ASCII renders the frame as text, one line per row, '#' for lit pixels.
func (f *Frame) ASCII() string {
	var sb strings.Builder
	sb.Grow((FrameWidth + 1) * FrameHeight)
	for y := 0; y < FrameHeight; y++ {
		for x := 0; x < FrameWidth; x++ {
			if f.Pixel(x, y) {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
