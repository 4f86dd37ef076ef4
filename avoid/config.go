package avoid

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hybotics/trilobot/rover"
)

// Config tunes the avoidance loop. Distance fields are unit-agnostic but
// must all be in the unit the range source reports (millimeters for the
// time-of-flight source, centimeters for the ultrasonic one); units are
// fixed per deployment and never mixed within a run.
type Config struct {
	// CollisionThreshold is the center distance at or below which an
	// obstacle is imminent.
	CollisionThreshold int `json:"collision_threshold"`
	// TurnTolerance is the minimum left/right difference needed to pick
	// a turn by geometry alone.
	TurnTolerance int `json:"turn_tolerance"`

	ForwardLeftSpeed  float64 `json:"forward_left_speed"`
	ForwardRightSpeed float64 `json:"forward_right_speed"`
	// Trims are added to the forward speeds to compensate for motor
	// mismatch.
	ForwardLeftTrim  float64 `json:"forward_left_trim"`
	ForwardRightTrim float64 `json:"forward_right_trim"`
	TurnSpeed        float64 `json:"turn_speed"`
	BackupSpeed      float64 `json:"backup_speed"`

	PollIntervalMs int `json:"poll_interval_ms"`
	TurnHoldMs     int `json:"turn_hold_ms"`
	BackupPulses   int `json:"backup_pulses"`
	BackupPulseMs  int `json:"backup_pulse_ms"`
	BlinkRateMs    int `json:"blink_rate_ms"`

	// DriveEnabled gates all motor commands; with it off the loop still
	// senses, decides, and signals, for dry-run diagnostics.
	DriveEnabled bool `json:"drive_enabled"`
}

// DefaultConfig is the millimeter tuning for the 8x8 time-of-flight
// sensor, with the drive off for safe bring-up.
func DefaultConfig() Config {
	return Config{
		CollisionThreshold: 200,
		TurnTolerance:      1,
		ForwardLeftSpeed:   0.50,
		ForwardRightSpeed:  0.50,
		TurnSpeed:          0.45,
		BackupSpeed:        0.45,
		PollIntervalMs:     250,
		TurnHoldMs:         450,
		BackupPulses:       5,
		BackupPulseMs:      150,
		BlinkRateMs:        int(rover.DefaultBlinkRate / time.Millisecond),
	}
}

// Validate ensures all parts of the config are usable.
func (c *Config) Validate() error {
	if c.CollisionThreshold <= 0 {
		return errors.New("collision_threshold must be positive")
	}
	if c.TurnTolerance < 0 {
		return errors.New("turn_tolerance cannot be negative")
	}
	for _, s := range []struct {
		name  string
		value float64
	}{
		{"forward_left_speed", c.ForwardLeftSpeed + c.ForwardLeftTrim},
		{"forward_right_speed", c.ForwardRightSpeed + c.ForwardRightTrim},
		{"turn_speed", c.TurnSpeed},
		{"backup_speed", c.BackupSpeed},
	} {
		if s.value < -1 || s.value > 1 {
			return errors.Errorf("%s must be within [-1, 1], got %.2f", s.name, s.value)
		}
	}
	if c.BackupPulses <= 0 {
		return errors.New("backup_pulses must be positive")
	}
	if c.PollIntervalMs < 0 || c.TurnHoldMs < 0 || c.BackupPulseMs < 0 || c.BlinkRateMs < 0 {
		return errors.New("durations cannot be negative")
	}
	return nil
}

func (c *Config) pollInterval() time.Duration { return time.Duration(c.PollIntervalMs) * time.Millisecond }
func (c *Config) turnHold() time.Duration     { return time.Duration(c.TurnHoldMs) * time.Millisecond }
func (c *Config) backupPulse() time.Duration  { return time.Duration(c.BackupPulseMs) * time.Millisecond }
func (c *Config) blinkRate() time.Duration    { return time.Duration(c.BlinkRateMs) * time.Millisecond }
