// Package fake implements a rover that records every command it receives.
package fake

import (
	"context"
	"sync"

	"github.com/edaniels/golog"

	"github.com/hybotics/trilobot/rover"
)

// Speeds is one recorded SetMotorSpeeds call.
type Speeds struct {
	Left, Right float64
}

// LightEvent is one recorded underlight command.
type LightEvent struct {
	Group   []rover.Light
	Color   rover.Color
	Cleared bool
}

// Rover records motor and light commands for inspection in tests.
type Rover struct {
	Logger golog.Logger

	mu     sync.Mutex
	speeds []Speeds
	lights []LightEvent
}

// SetMotorSpeeds records the requested speeds.
func (r *Rover) SetMotorSpeeds(ctx context.Context, left, right float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speeds = append(r.speeds, Speeds{left, right})
	if r.Logger != nil {
		r.Logger.Debugf("motor speeds set to (%.2f, %.2f)", left, right)
	}
	return nil
}

// SetUnderlights records the lit group.
func (r *Rover) SetUnderlights(ctx context.Context, group []rover.Light, color rover.Color) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lights = append(r.lights, LightEvent{Group: group, Color: color})
	return nil
}

// ClearUnderlights records the cleared group.
func (r *Rover) ClearUnderlights(ctx context.Context, group []rover.Light) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lights = append(r.lights, LightEvent{Group: group, Cleared: true})
	return nil
}

// SpeedHistory returns all motor commands in order.
func (r *Rover) SpeedHistory() []Speeds {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Speeds, len(r.speeds))
	copy(out, r.speeds)
	return out
}

// LastSpeeds returns the most recent motor command.
func (r *Rover) LastSpeeds() (Speeds, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.speeds) == 0 {
		return Speeds{}, false
	}
	return r.speeds[len(r.speeds)-1], true
}

// LightHistory returns all underlight commands in order.
func (r *Rover) LightHistory() []LightEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LightEvent, len(r.lights))
	copy(out, r.lights)
	return out
}
