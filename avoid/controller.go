package avoid

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/hybotics/trilobot/rover"
	"github.com/hybotics/trilobot/tof"
)

// State is the phase of the avoidance loop.
type State int

// The loop phases.
const (
	StateForward State = iota
	StateBackingUp
	StateTurning
)

func (s State) String() string {
	switch s {
	case StateForward:
		return "FORWARD"
	case StateBackingUp:
		return "BACKING_UP"
	case StateTurning:
		return "TURNING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// A RangeSource reports one averaged distance per zone each poll. All
// three values are in the source's native unit.
type RangeSource interface {
	Distances(ctx context.Context) (left, center, right int, err error)
}

// ControllerParams bundles everything a Controller needs. Clock and Rand
// are optional; they default to the wall clock and a time-seeded source.
type ControllerParams struct {
	Config Config
	Rover  rover.Rover
	Ranges RangeSource
	Logger golog.Logger
	Clock  clock.Clock
	Rand   *rand.Rand
}

// Validate validates that p contains all required parameters.
func (p ControllerParams) Validate() error {
	if p.Rover == nil {
		return errors.New("missing required parameter rover")
	}
	if p.Ranges == nil {
		return errors.New("missing required parameter ranges")
	}
	if p.Logger == nil {
		return errors.New("missing required parameter logger")
	}
	return p.Config.Validate()
}

// A Controller runs the obstacle-avoidance loop: drive forward until the
// center zone closes inside the collision threshold, back up a fixed
// number of pulses, then turn until the way ahead is clear again.
type Controller struct {
	cfg    Config
	rov    rover.Rover
	ranges RangeSource
	logger golog.Logger
	clock  clock.Clock
	rand   *rand.Rand

	state    State
	lastTurn Direction
}

// NewController validates the parameters and returns a controller ready
// to Run.
func NewController(params ControllerParams) (*Controller, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:    params.Config,
		rov:    params.Rover,
		ranges: params.Ranges,
		logger: params.Logger,
		clock:  params.Clock,
		rand:   params.Rand,
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.rand == nil {
		c.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c, nil
}

// State returns the current loop phase.
func (c *Controller) State() State {
	return c.state
}

// LastTurn returns the direction chosen on the most recent reactive
// cycle, or NoTurn before the first one.
func (c *Controller) LastTurn() Direction {
	return c.lastTurn
}

// Run drives the loop until the context is canceled or sensing fails
// fatally. Whatever the exit path, the motors are commanded to zero
// speed before Run returns; an uncommanded motor left running on exit is
// a safety hazard. Operator cancellation is a clean exit, not an error.
func (c *Controller) Run(ctx context.Context) (err error) {
	defer func() {
		// The run context may already be done, so the safety stop gets
		// its own.
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		err = multierr.Combine(err, rover.Stop(stopCtx, c.rov))
	}()

	c.state = StateForward
	c.lastTurn = NoTurn

	for {
		if ctx.Err() != nil {
			return nil
		}

		var next State
		var stepErr error
		switch c.state {
		case StateForward:
			next, stepErr = c.stepForward(ctx)
		case StateBackingUp:
			next, stepErr = c.stepBackup(ctx)
		case StateTurning:
			next, stepErr = c.stepTurning(ctx)
		default:
			return errors.Errorf("unknown state %v", c.state)
		}

		switch {
		case stepErr == nil:
		case errors.Is(stepErr, context.Canceled) || errors.Is(stepErr, context.DeadlineExceeded):
			return nil
		case recoverable(stepErr):
			// A bad zone request spoils this cycle's averages but not the
			// run; retry on the next poll.
			c.logger.Warnw("skipping cycle", "state", c.state, "error", stepErr)
			if !c.waitFor(ctx, c.cfg.pollInterval()) {
				return nil
			}
			continue
		default:
			// A rover that cannot sense is unsafe to keep driving: show
			// the alarm, stop, and surface the error.
			c.logger.Errorw("sensing failed, stopping", "error", stepErr)
			if blinkErr := rover.Blink(ctx, c.rov, rover.AllLights, rover.Red, 10, c.cfg.blinkRate()); blinkErr != nil {
				c.logger.Warnw("cannot show failure indication", "error", blinkErr)
			}
			return stepErr
		}
		c.state = next
	}
}

func (c *Controller) stepForward(ctx context.Context) (State, error) {
	// Intent is signaled before the motors move.
	if err := rover.Blink(ctx, c.rov, rover.FrontLights, rover.Green, 1, c.cfg.blinkRate()); err != nil {
		return StateForward, err
	}
	if err := c.setSpeeds(ctx,
		c.cfg.ForwardLeftSpeed+c.cfg.ForwardLeftTrim,
		c.cfg.ForwardRightSpeed+c.cfg.ForwardRightTrim); err != nil {
		return StateForward, err
	}

	left, center, right, err := c.ranges.Distances(ctx)
	if err != nil {
		return StateForward, err
	}
	c.logger.Debugf("moving forward: left=%d center=%d right=%d", left, center, right)

	if Collision(center, c.cfg.CollisionThreshold) {
		c.logger.Infof("imminent collision at %d, reacting", center)
		return StateBackingUp, nil
	}
	if !c.waitFor(ctx, c.cfg.pollInterval()) {
		return StateForward, ctx.Err()
	}
	return StateForward, nil
}

// stepBackup reverses in fixed pulses with the rear indicator lit. It
// never re-checks collision; the maneuver is assumed to clear enough
// room for turning.
func (c *Controller) stepBackup(ctx context.Context) (State, error) {
	c.logger.Debug("backing up")
	for i := 0; i < c.cfg.BackupPulses; i++ {
		if err := c.rov.SetUnderlights(ctx, rover.RearLights, rover.Yellow); err != nil {
			return StateBackingUp, err
		}
		if err := c.setSpeeds(ctx, -c.cfg.BackupSpeed, -c.cfg.BackupSpeed); err != nil {
			return StateBackingUp, err
		}
		ok := c.waitFor(ctx, c.cfg.backupPulse())
		if err := c.rov.ClearUnderlights(ctx, rover.RearLights); err != nil {
			return StateBackingUp, err
		}
		if !ok {
			return StateBackingUp, ctx.Err()
		}
	}
	return StateTurning, nil
}

func (c *Controller) stepTurning(ctx context.Context) (State, error) {
	left, center, right, err := c.ranges.Distances(ctx)
	if err != nil {
		return StateTurning, err
	}
	if !Collision(center, c.cfg.CollisionThreshold) {
		c.logger.Infof("collision cleared at %d, resuming forward", center)
		return StateForward, nil
	}

	percent := c.rand.Float64() * 100
	dir := DecideTurn(left, right, c.cfg.TurnTolerance, percent)
	c.lastTurn = dir
	c.logger.Debugf("turning %s: percent=%.2f left=%d right=%d", dir, percent, left, right)

	group := rover.RightLights
	leftSpeed, rightSpeed := c.cfg.TurnSpeed, -c.cfg.TurnSpeed
	if dir == TurnLeft {
		group = rover.LeftLights
		leftSpeed, rightSpeed = -c.cfg.TurnSpeed, c.cfg.TurnSpeed
	}
	if err := rover.Blink(ctx, c.rov, group, rover.Blue, 1, c.cfg.blinkRate()); err != nil {
		return StateTurning, err
	}
	if err := c.setSpeeds(ctx, leftSpeed, rightSpeed); err != nil {
		return StateTurning, err
	}
	if !c.waitFor(ctx, c.cfg.turnHold()) {
		return StateTurning, ctx.Err()
	}
	return StateTurning, nil
}

// setSpeeds issues a motor command unless the drive is disabled.
func (c *Controller) setSpeeds(ctx context.Context, left, right float64) error {
	if !c.cfg.DriveEnabled {
		return nil
	}
	return c.rov.SetMotorSpeeds(ctx, left, right)
}

// waitFor pauses on the injected clock, reporting false if the context
// finished first.
func (c *Controller) waitFor(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := c.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func recoverable(err error) bool {
	return errors.Is(err, tof.ErrOutOfBounds) || errors.Is(err, tof.ErrEmptySamples)
}
