// Package fake implements a scripted ultrasonic rangefinder.
package fake

import (
	"context"
	"sync"
)

// Ranger plays back a script of distance readings in centimeters. Once
// the script is exhausted it keeps returning the last value.
type Ranger struct {
	mu       sync.Mutex
	readings []float64
	next     int

	// ReadErr, if set, is returned by every ReadDistance call.
	ReadErr error
	// ReadCount is the number of ReadDistance calls so far.
	ReadCount int
}

// NewRanger returns a ranger that serves the given readings in order.
// Negative values simulate missed echoes.
func NewRanger(readings ...float64) *Ranger {
	return &Ranger{readings: readings}
}

// ReadDistance returns the next scripted reading.
func (r *Ranger) ReadDistance(ctx context.Context) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ReadCount++
	if r.ReadErr != nil {
		return 0, r.ReadErr
	}
	if len(r.readings) == 0 {
		return -1, nil
	}
	v := r.readings[r.next]
	if r.next < len(r.readings)-1 {
		r.next++
	}
	return v, nil
}
