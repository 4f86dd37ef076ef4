// Package rover defines the actuator surface of a Trilobot-style rover:
// a differential drive pair plus six addressable underlights.
package rover

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// A Rover is the drive and lighting hardware the avoidance loop commands.
// Motor speeds are normalized to [-1, 1] where positive is forward.
type Rover interface {
	SetMotorSpeeds(ctx context.Context, left, right float64) error
	SetUnderlights(ctx context.Context, group []Light, color Color) error
	ClearUnderlights(ctx context.Context, group []Light) error
}

// A Light identifies one underlight position on the chassis.
type Light int

// The six underlight positions.
const (
	LightFrontLeft Light = iota
	LightMiddleLeft
	LightRearLeft
	LightFrontRight
	LightMiddleRight
	LightRearRight
)

// Light groups used for signaling intent.
var (
	LeftLights  = []Light{LightFrontLeft, LightMiddleLeft}
	RightLights = []Light{LightFrontRight, LightMiddleRight}
	RearLights  = []Light{LightRearLeft, LightRearRight}
	FrontLights = []Light{LightFrontLeft, LightFrontRight}
	AllLights = []Light{
		LightFrontLeft, LightMiddleLeft, LightRearLeft,
		LightFrontRight, LightMiddleRight, LightRearRight,
	}
)

// Color is an RGB triple for the underlighting.
type Color struct {
	R, G, B uint8
}

// The underlighting palette.
var (
	Red    = Color{255, 0, 0}
	Green  = Color{0, 255, 0}
	Blue   = Color{0, 0, 255}
	Purple = Color{127, 0, 127}
	Yellow = Color{255, 255, 0}
	Cyan   = Color{0, 255, 255}
)

// DefaultBlinkRate is how long a blink cycle holds the lights on.
const DefaultBlinkRate = 250 * time.Millisecond

// Blink turns a light group on in the given color and clears it again,
// once per cycle. The group is always cleared before returning, even when
// the context is canceled mid-hold.
func Blink(ctx context.Context, r Rover, group []Light, color Color, cycles int, rate time.Duration) error {
	for i := 0; i < cycles; i++ {
		if err := r.SetUnderlights(ctx, group, color); err != nil {
			return errors.Wrap(err, "cannot set underlights")
		}
		ok := utils.SelectContextOrWait(ctx, rate)
		if err := r.ClearUnderlights(ctx, group); err != nil {
			return errors.Wrap(err, "cannot clear underlights")
		}
		if !ok {
			return ctx.Err()
		}
	}
	return nil
}

// Stop commands both motors to zero speed.
func Stop(ctx context.Context, r Rover) error {
	return r.SetMotorSpeeds(ctx, 0, 0)
}
