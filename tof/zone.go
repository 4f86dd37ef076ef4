package tof

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrOutOfBounds is returned when a zone does not fit inside a frame.
	ErrOutOfBounds = errors.New("zone bounds are out of range")
	// ErrEmptySamples is returned when an average is requested over no samples.
	ErrEmptySamples = errors.New("no samples to average")
)

// A Zone is a named rectangular sub-region of a frame, bounds inclusive.
type Zone struct {
	Name     string
	StartRow int
	StartCol int
	EndRow   int
	EndCol   int
}

// The three fixed zones of the forward field of view.
var (
	ZoneCenter = Zone{Name: "center", StartRow: 2, StartCol: 2, EndRow: 5, EndCol: 5}
	ZoneLeft   = Zone{Name: "left", StartRow: 0, StartCol: 0, EndRow: 7, EndCol: 1}
	ZoneRight  = Zone{Name: "right", StartRow: 0, StartCol: 6, EndRow: 7, EndCol: 7}
)

// Samples is a rectangular set of distance samples extracted from a frame,
// preserving row and column order.
type Samples [][]int

// Extract returns the cells of the frame enclosed by the zone. The zone
// must lie entirely within the frame; a partial result is never returned
// since it would silently skew the zone average.
func (f Frame) Extract(z Zone) (Samples, error) {
	valid := z.StartRow >= 0 && z.StartCol >= 0 &&
		z.EndRow < FrameDim && z.EndCol < FrameDim &&
		z.StartRow <= z.EndRow && z.StartCol <= z.EndCol
	if !valid {
		return nil, errors.Wrapf(ErrOutOfBounds,
			"zone %q rows %d-%d cols %d-%d in %dx%d frame",
			z.Name, z.StartRow, z.EndRow, z.StartCol, z.EndCol, FrameDim, FrameDim)
	}

	out := make(Samples, 0, z.EndRow-z.StartRow+1)
	for r := z.StartRow; r <= z.EndRow; r++ {
		row := make([]int, 0, z.EndCol-z.StartCol+1)
		for c := z.StartCol; c <= z.EndCol; c++ {
			row = append(row, f[r][c])
		}
		out = append(out, row)
	}
	return out, nil
}

// Average reduces a sample set to a single distance by arithmetic mean,
// truncated toward zero to a whole millimeter.
func Average(samples Samples) (int, error) {
	var flat []float64
	for _, row := range samples {
		for _, v := range row {
			flat = append(flat, float64(v))
		}
	}
	if len(flat) == 0 {
		return 0, ErrEmptySamples
	}
	return int(stat.Mean(flat, nil)), nil
}
