// Package ultrasonic reads averaged distances from a single forward-facing
// ultrasonic rangefinder. It is the degenerate one-zone counterpart of the
// tof package: all three zones report the same distance, in centimeters.
package ultrasonic

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/stat"
)

// ErrNoValidReading is returned when the sensor never produces a valid
// distance within the retry budget. A rover that cannot sense is unsafe
// to keep driving, so callers must treat this as fatal to the run.
var ErrNoValidReading = errors.New("unable to get a valid distance reading")

// A Ranger is the raw ultrasonic driver. A negative distance means the
// echo was missed and the reading is invalid.
type Ranger interface {
	ReadDistance(ctx context.Context) (float64, error)
}

const (
	defaultNumReadings = 10
	maxReadAttempts    = 10
	readingSettle      = 10 * time.Millisecond
)

// A Reader averages several rangefinder readings into one distance,
// retrying invalid readings up to a fixed cap.
type Reader struct {
	ranger      Ranger
	logger      golog.Logger
	numReadings int
}

// NewReader wraps a ranger with averaging over the default reading count.
func NewReader(ranger Ranger, logger golog.Logger) *Reader {
	return &Reader{ranger: ranger, logger: logger, numReadings: defaultNumReadings}
}

// Read takes the configured number of readings in quick succession and
// returns their arithmetic mean in centimeters. Each reading is retried
// up to the attempt cap; exhausting the cap fails the whole read with
// ErrNoValidReading.
func (r *Reader) Read(ctx context.Context) (float64, error) {
	readings := make([]float64, 0, r.numReadings)
	for i := 0; i < r.numReadings; i++ {
		distance, err := r.readValid(ctx)
		if err != nil {
			return 0, err
		}
		readings = append(readings, distance)
		if !utils.SelectContextOrWait(ctx, readingSettle) {
			return 0, ctx.Err()
		}
	}
	avg := stat.Mean(readings, nil)
	r.logger.Debugf("distance average %.2f cm over %d readings", avg, len(readings))
	return avg, nil
}

func (r *Reader) readValid(ctx context.Context) (float64, error) {
	for attempt := 0; attempt < maxReadAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		distance, err := r.ranger.ReadDistance(ctx)
		if err != nil {
			return 0, errors.Wrap(err, "cannot read distance")
		}
		if distance >= 0 {
			return distance, nil
		}
		r.logger.Debugf("invalid distance reading, attempt %d", attempt+1)
	}
	return 0, ErrNoValidReading
}

// Distances reports the averaged distance for all three zones, truncated
// to whole centimeters. With one scalar sensor there is no left/right
// asymmetry to steer by.
func (r *Reader) Distances(ctx context.Context) (left, center, right int, err error) {
	avg, err := r.Read(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	d := int(avg)
	return d, d, d, nil
}
