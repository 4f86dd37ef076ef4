package avoid

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/hybotics/trilobot/rover"
	roverfake "github.com/hybotics/trilobot/rover/fake"
	"github.com/hybotics/trilobot/tof"
)

type rangeStep struct {
	left, center, right int
	err                 error
}

// scriptRanges serves scripted poll results, repeating the last one, and
// reports each completed call on a channel so tests can pace themselves.
type scriptRanges struct {
	mu     sync.Mutex
	steps  []rangeStep
	next   int
	calls  int
	callCh chan int
}

func newScriptRanges(steps ...rangeStep) *scriptRanges {
	return &scriptRanges{steps: steps, callCh: make(chan int, 256)}
}

func (s *scriptRanges) Distances(ctx context.Context) (int, int, int, error) {
	s.mu.Lock()
	step := s.steps[s.next]
	if s.next < len(s.steps)-1 {
		s.next++
	}
	s.calls++
	n := s.calls
	s.mu.Unlock()
	select {
	case s.callCh <- n:
	default:
	}
	return step.left, step.center, step.right, step.err
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.DriveEnabled = true
	cfg.PollIntervalMs = 1
	cfg.TurnHoldMs = 1
	cfg.BackupPulseMs = 1
	cfg.BlinkRateMs = 1
	return cfg
}

func newTestController(t *testing.T, cfg Config, rov rover.Rover, src RangeSource) *Controller {
	t.Helper()
	c, err := NewController(ControllerParams{
		Config: cfg,
		Rover:  rov,
		Ranges: src,
		Logger: golog.NewTestLogger(t),
		Rand:   rand.New(rand.NewSource(1)),
	})
	test.That(t, err, test.ShouldBeNil)
	return c
}

// runUntilCalls runs the controller until the range source has served at
// least n polls, then cancels and returns Run's error.
func runUntilCalls(t *testing.T, c *Controller, src *scriptRanges, n int) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case k := <-src.callCh:
			if k >= n {
				cancel()
				select {
				case err := <-done:
					return err
				case <-timeout:
					t.Fatal("controller did not stop after cancel")
				}
			}
		case err := <-done:
			return err
		case <-timeout:
			t.Fatal("timed out waiting for polls")
		}
	}
}

func countLightSets(events []roverfake.LightEvent, group []rover.Light, color rover.Color) int {
	n := 0
	for _, e := range events {
		if e.Cleared || len(e.Group) != len(group) || e.Color != color {
			continue
		}
		match := true
		for i := range group {
			if e.Group[i] != group[i] {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}

func TestControllerReactiveCycle(t *testing.T) {
	rov := &roverfake.Rover{}
	src := newScriptRanges(
		rangeStep{left: 1000, center: 1000, right: 1000},
		rangeStep{left: 100, center: 150, right: 50},
		rangeStep{left: 100, center: 150, right: 50},
		rangeStep{left: 1000, center: 1000, right: 1000},
	)
	c := newTestController(t, fastConfig(), rov, src)

	err := runUntilCalls(t, c, src, 6)
	test.That(t, err, test.ShouldBeNil)

	// left had more room, so geometry picked the left turn
	test.That(t, c.LastTurn(), test.ShouldEqual, TurnLeft)

	speeds := rov.SpeedHistory()
	test.That(t, len(speeds), test.ShouldBeGreaterThan, 7)

	// the run must end with a safety stop
	test.That(t, speeds[len(speeds)-1], test.ShouldResemble, roverfake.Speeds{})

	firstBackup, firstTurn := -1, -1
	backups := 0
	for i, s := range speeds {
		switch {
		case s.Left < 0 && s.Right < 0:
			if firstBackup == -1 {
				firstBackup = i
			}
			backups++
		case s.Left < 0 && s.Right > 0:
			if firstTurn == -1 {
				firstTurn = i
			}
		}
	}
	// exactly the configured pulse count, all before the turn decision
	test.That(t, backups, test.ShouldEqual, fastConfig().BackupPulses)
	test.That(t, firstBackup, test.ShouldBeGreaterThan, -1)
	test.That(t, firstTurn, test.ShouldBeGreaterThan, firstBackup)

	lights := rov.LightHistory()
	test.That(t, countLightSets(lights, rover.RearLights, rover.Yellow), test.ShouldEqual, fastConfig().BackupPulses)
	test.That(t, countLightSets(lights, rover.LeftLights, rover.Blue), test.ShouldEqual, 1)
	test.That(t, countLightSets(lights, rover.FrontLights, rover.Green), test.ShouldBeGreaterThan, 0)
	test.That(t, countLightSets(lights, rover.AllLights, rover.Red), test.ShouldEqual, 0)
}

func TestControllerCancellationStopsMotors(t *testing.T) {
	rov := &roverfake.Rover{}
	src := newScriptRanges(rangeStep{left: 100, center: 150, right: 100})
	c := newTestController(t, fastConfig(), rov, src)

	err := runUntilCalls(t, c, src, 3)
	test.That(t, err, test.ShouldBeNil)

	last, ok := rov.LastSpeeds()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, last, test.ShouldResemble, roverfake.Speeds{})

	// operator cancel must not raise the lights alarm
	test.That(t, countLightSets(rov.LightHistory(), rover.AllLights, rover.Red), test.ShouldEqual, 0)
}

func TestControllerMockClockPacing(t *testing.T) {
	rov := &roverfake.Rover{}
	src := newScriptRanges(rangeStep{left: 1000, center: 1000, right: 1000})
	cfg := fastConfig()
	// A poll interval no real-time test could sit through; only advancing
	// the injected clock can move the loop past it.
	cfg.PollIntervalMs = int(time.Hour / time.Millisecond)
	mock := clock.NewMock()
	c, err := NewController(ControllerParams{
		Config: cfg,
		Rover:  rov,
		Ranges: src,
		Logger: golog.NewTestLogger(t),
		Clock:  mock,
		Rand:   rand.New(rand.NewSource(1)),
	})
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	timeout := time.After(10 * time.Second)
	polls := 0
	for polls < 3 {
		select {
		case <-src.callCh:
			polls++
		case <-timeout:
			t.Fatal("clock advance did not pace the loop")
		default:
			mock.Add(cfg.pollInterval())
			time.Sleep(time.Millisecond)
		}
	}
	cancel()
	select {
	case err = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("controller did not stop after cancel")
	}
	test.That(t, err, test.ShouldBeNil)

	test.That(t, polls, test.ShouldBeGreaterThanOrEqualTo, 3)
	last, ok := rov.LastSpeeds()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, last, test.ShouldResemble, roverfake.Speeds{})
}

func TestControllerCancelDuringBackup(t *testing.T) {
	rov := &roverfake.Rover{}
	src := newScriptRanges(rangeStep{left: 100, center: 150, right: 100})
	cfg := fastConfig()
	// A pulse long enough that the cancel always lands inside it.
	cfg.BackupPulseMs = int(time.Hour / time.Millisecond)
	c := newTestController(t, cfg, rov, src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// The first reverse command means a pulse is underway.
	deadline := time.Now().Add(10 * time.Second)
	for {
		if s, ok := rov.LastSpeeds(); ok && s.Left < 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("backup never started")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	var err error
	select {
	case err = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("controller did not stop after cancel")
	}
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.State(), test.ShouldEqual, StateBackingUp)

	last, ok := rov.LastSpeeds()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, last, test.ShouldResemble, roverfake.Speeds{})

	// the interrupted pulse still cleared its rear indicator
	var lastRear roverfake.LightEvent
	found := false
	for _, e := range rov.LightHistory() {
		if len(e.Group) == len(rover.RearLights) && e.Group[0] == rover.RearLights[0] {
			lastRear = e
			found = true
		}
	}
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, lastRear.Cleared, test.ShouldBeTrue)
}

func TestDefaultConfigBlinkRate(t *testing.T) {
	cfg := DefaultConfig()
	test.That(t, cfg.blinkRate(), test.ShouldEqual, rover.DefaultBlinkRate)
}

func TestControllerSensorFailure(t *testing.T) {
	rov := &roverfake.Rover{}
	src := newScriptRanges(rangeStep{err: errors.New("i2c bus stuck")})
	c := newTestController(t, fastConfig(), rov, src)

	err := c.Run(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "i2c bus stuck")

	// failure indication, then a stopped rover
	test.That(t, countLightSets(rov.LightHistory(), rover.AllLights, rover.Red), test.ShouldEqual, 10)
	last, ok := rov.LastSpeeds()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, last, test.ShouldResemble, roverfake.Speeds{})
}

func TestControllerSkipsBadZoneCycle(t *testing.T) {
	rov := &roverfake.Rover{}
	src := newScriptRanges(
		rangeStep{err: errors.Wrap(tof.ErrOutOfBounds, `zone "center"`)},
		rangeStep{left: 1000, center: 1000, right: 1000},
	)
	c := newTestController(t, fastConfig(), rov, src)

	err := runUntilCalls(t, c, src, 3)
	test.That(t, err, test.ShouldBeNil)

	// the bad cycle is skipped without any reactive maneuver
	for _, s := range rov.SpeedHistory() {
		test.That(t, s.Left, test.ShouldBeGreaterThanOrEqualTo, 0)
		test.That(t, s.Right, test.ShouldBeGreaterThanOrEqualTo, 0)
	}
}

func TestControllerDryRun(t *testing.T) {
	cfg := fastConfig()
	cfg.DriveEnabled = false
	rov := &roverfake.Rover{}
	src := newScriptRanges(rangeStep{left: 100, center: 150, right: 100})
	c := newTestController(t, cfg, rov, src)

	err := runUntilCalls(t, c, src, 3)
	test.That(t, err, test.ShouldBeNil)

	// only the safety stop reaches the motors, but signaling still runs
	test.That(t, rov.SpeedHistory(), test.ShouldResemble, []roverfake.Speeds{{}})
	test.That(t, len(rov.LightHistory()), test.ShouldBeGreaterThan, 0)
}

func TestControllerSymmetricObstacleStillTurns(t *testing.T) {
	rov := &roverfake.Rover{}
	src := newScriptRanges(rangeStep{left: 150, center: 150, right: 150})
	c := newTestController(t, fastConfig(), rov, src)

	err := runUntilCalls(t, c, src, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.LastTurn(), test.ShouldNotEqual, NoTurn)
}

func TestControllerParamsValidate(t *testing.T) {
	rov := &roverfake.Rover{}
	src := newScriptRanges(rangeStep{})
	logger := golog.NewTestLogger(t)

	_, err := NewController(ControllerParams{Config: DefaultConfig(), Ranges: src, Logger: logger})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewController(ControllerParams{Config: DefaultConfig(), Rover: rov, Logger: logger})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewController(ControllerParams{Config: DefaultConfig(), Rover: rov, Ranges: src})
	test.That(t, err, test.ShouldNotBeNil)

	bad := DefaultConfig()
	bad.TurnSpeed = 2
	_, err = NewController(ControllerParams{Config: bad, Rover: rov, Ranges: src, Logger: logger})
	test.That(t, err, test.ShouldNotBeNil)
}
