// Package fake implements a scripted time-of-flight sensor.
package fake

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/hybotics/trilobot/tof"
)

// UniformFrame returns a frame with every cell at the given distance.
func UniformFrame(mm int) tof.Frame {
	var f tof.Frame
	for r := 0; r < tof.FrameDim; r++ {
		for c := 0; c < tof.FrameDim; c++ {
			f[r][c] = mm
		}
	}
	return f
}

// Sensor plays back a script of frames. Once the script is exhausted it
// keeps returning the last frame. The zero value is unusable; give it at
// least one frame.
type Sensor struct {
	mu      sync.Mutex
	frames  []tof.Frame
	next    int
	started bool

	// Config is the last configuration applied.
	Config tof.SensorConfig
	// FrameErr, if set, is returned by every ReadFrame call.
	FrameErr error
	// ReadCount is the number of ReadFrame calls so far.
	ReadCount int
}

// NewSensor returns a sensor that serves the given frames in order.
func NewSensor(frames ...tof.Frame) *Sensor {
	return &Sensor{frames: frames}
}

// Configure records the configuration.
func (s *Sensor) Configure(ctx context.Context, cfg tof.SensorConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Config = cfg
	return nil
}

// StartRanging marks the sensor started.
func (s *Sensor) StartRanging(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

// StopRanging marks the sensor stopped.
func (s *Sensor) StopRanging(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}

// FrameReady reports true whenever the sensor is ranging.
func (s *Sensor) FrameReady(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, nil
}

// ReadFrame returns the next scripted frame.
func (s *Sensor) ReadFrame(ctx context.Context) (tof.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReadCount++
	if s.FrameErr != nil {
		return tof.Frame{}, s.FrameErr
	}
	if len(s.frames) == 0 {
		return tof.Frame{}, errors.New("no frames scripted")
	}
	f := s.frames[s.next]
	if s.next < len(s.frames)-1 {
		s.next++
	}
	return f, nil
}
