package tof

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// A Sensor is the raw time-of-flight driver. Frames it returns are in the
// sensor's native orientation; reorientation is this package's job.
type Sensor interface {
	Configure(ctx context.Context, cfg SensorConfig) error
	StartRanging(ctx context.Context) error
	StopRanging(ctx context.Context) error
	FrameReady(ctx context.Context) (bool, error)
	ReadFrame(ctx context.Context) (Frame, error)
}

// SensorConfig is the one-time ranging setup for the sensor.
type SensorConfig struct {
	Resolution         int `json:"resolution"`
	RangingFrequencyHz int `json:"ranging_frequency_hz"`
	IntegrationTimeMs  int `json:"integration_time_ms"`
	SharpenerPercent   int `json:"sharpener_percent"`
	TargetOrder        int `json:"target_order"`
}

// DefaultSensorConfig favors frame rate over accuracy, matching the
// original tuning for a reactive rover.
func DefaultSensorConfig() SensorConfig {
	return SensorConfig{
		Resolution:         FrameDim * FrameDim,
		RangingFrequencyHz: 15,
		IntegrationTimeMs:  20,
		SharpenerPercent:   40,
		TargetOrder:        0,
	}
}

// frameReadyPoll is how long to wait between frame readiness checks.
const frameReadyPoll = 10 * time.Millisecond

// A FrameSource configures a sensor and serves reoriented frames and
// per-zone average distances from it.
type FrameSource struct {
	sensor Sensor
	logger golog.Logger
}

// NewFrameSource configures the sensor and starts it ranging.
func NewFrameSource(ctx context.Context, sensor Sensor, cfg SensorConfig, logger golog.Logger) (*FrameSource, error) {
	if err := sensor.Configure(ctx, cfg); err != nil {
		return nil, errors.Wrap(err, "cannot configure ranging sensor")
	}
	if err := sensor.StartRanging(ctx); err != nil {
		return nil, errors.Wrap(err, "cannot start ranging")
	}
	return &FrameSource{sensor: sensor, logger: logger}, nil
}

// NextFrame blocks until the sensor has a frame, then returns it
// reoriented for zone extraction.
func (fs *FrameSource) NextFrame(ctx context.Context) (Frame, error) {
	for {
		ready, err := fs.sensor.FrameReady(ctx)
		if err != nil {
			return Frame{}, errors.Wrap(err, "cannot check frame readiness")
		}
		if ready {
			break
		}
		if !utils.SelectContextOrWait(ctx, frameReadyPoll) {
			return Frame{}, ctx.Err()
		}
	}

	raw, err := fs.sensor.ReadFrame(ctx)
	if err != nil {
		return Frame{}, errors.Wrap(err, "cannot read frame")
	}
	return raw.Reorient(), nil
}

// Distances polls one frame and reduces it to the left, center, and right
// zone averages in millimeters.
func (fs *FrameSource) Distances(ctx context.Context) (left, center, right int, err error) {
	frame, err := fs.NextFrame(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	fs.logger.Debugf("frame:\n%s", frame)

	zones := []struct {
		zone Zone
		out  *int
	}{
		{ZoneLeft, &left},
		{ZoneCenter, &center},
		{ZoneRight, &right},
	}
	for _, z := range zones {
		samples, err := frame.Extract(z.zone)
		if err != nil {
			return 0, 0, 0, err
		}
		avg, err := Average(samples)
		if err != nil {
			return 0, 0, 0, errors.Wrapf(err, "zone %q", z.zone.Name)
		}
		*z.out = avg
	}
	fs.logger.Debugf("distances mm left=%d center=%d right=%d", left, center, right)
	return left, center, right, nil
}

// Close stops the sensor ranging.
func (fs *FrameSource) Close(ctx context.Context) error {
	return fs.sensor.StopRanging(ctx)
}
