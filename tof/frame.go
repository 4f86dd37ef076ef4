// Package tof reads 8x8 range frames from a VL53L5CX-style time-of-flight
// sensor and reduces them to left, center, and right zone distances.
package tof

import (
	"fmt"
	"strings"
)

// FrameDim is the row and column count of a ranging frame.
const FrameDim = 8

// A Frame is one full grid snapshot of distances in millimeters, row-major
// as seen from behind the sensor after reorientation.
type Frame [FrameDim][FrameDim]int

// Reorient flips the frame vertically and horizontally. The sensor is
// mounted upside down, so a raw frame must be reoriented once before any
// zone extraction.
func (f Frame) Reorient() Frame {
	var out Frame
	for r := 0; r < FrameDim; r++ {
		for c := 0; c < FrameDim; c++ {
			out[r][c] = f[FrameDim-1-r][FrameDim-1-c]
		}
	}
	return out
}

// String renders the frame in rows for debug logging.
func (f Frame) String() string {
	var b strings.Builder
	b.WriteString("[\n")
	for r := 0; r < FrameDim; r++ {
		b.WriteString("  [")
		for c := 0; c < FrameDim; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%6d", f[r][c])
		}
		b.WriteString(" ]\n")
	}
	b.WriteString("]")
	return b.String()
}
