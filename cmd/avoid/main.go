// Package main runs the obstacle-avoidance loop against fake hardware.
// Real motor and sensor drivers live out of tree; this command is the
// dry-run harness for the decision core.
package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/hybotics/trilobot/avoid"
	roverfake "github.com/hybotics/trilobot/rover/fake"
	"github.com/hybotics/trilobot/tof"
	toffake "github.com/hybotics/trilobot/tof/fake"
	"github.com/hybotics/trilobot/ultrasonic"
	ultrafake "github.com/hybotics/trilobot/ultrasonic/fake"
)

var logger = golog.NewDevelopmentLogger("avoid")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"config,usage=path to a JSON avoidance config"`
	Drive      bool   `flag:"drive,usage=enable motor actuation"`
	Ultrasonic bool   `flag:"ultrasonic,usage=use the scalar ultrasonic source instead of the ToF grid"`
	Seed       int64  `flag:"seed,usage=seed for the turn tie-break (0 means time-seeded)"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg := avoid.DefaultConfig()
	if argsParsed.ConfigFile != "" {
		data, err := os.ReadFile(argsParsed.ConfigFile)
		if err != nil {
			return errors.Wrap(err, "cannot read config")
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return errors.Wrap(err, "cannot parse config")
		}
	} else if argsParsed.Ultrasonic {
		// ultrasonic distances are centimeters, not millimeters
		cfg.CollisionThreshold = 18
	}
	cfg.DriveEnabled = cfg.DriveEnabled || argsParsed.Drive

	rov := &roverfake.Rover{Logger: logger.Named("rover")}

	var ranges avoid.RangeSource
	if argsParsed.Ultrasonic {
		ranger := ultrafake.NewRanger(90, 80, 60, 40, 15, 15, 15, 60, 90)
		ranges = ultrasonic.NewReader(ranger, logger.Named("ultrasonic"))
	} else {
		sensor := toffake.NewSensor(demoFrames()...)
		source, err := tof.NewFrameSource(ctx, sensor, tof.DefaultSensorConfig(), logger.Named("tof"))
		if err != nil {
			return err
		}
		defer func() {
			utils.UncheckedError(source.Close(ctx))
		}()
		ranges = source
	}

	params := avoid.ControllerParams{
		Config: cfg,
		Rover:  rov,
		Ranges: ranges,
		Logger: logger,
	}
	if argsParsed.Seed != 0 {
		params.Rand = rand.New(rand.NewSource(argsParsed.Seed))
	}
	controller, err := avoid.NewController(params)
	if err != nil {
		return err
	}
	return controller.Run(ctx)
}

// demoFrames scripts an approach to an off-center wall followed by open
// floor, so one full reactive cycle plays out.
func demoFrames() []tof.Frame {
	approach := []int{1200, 900, 600, 350}
	frames := make([]tof.Frame, 0, len(approach)+3)
	for _, mm := range approach {
		frames = append(frames, toffake.UniformFrame(mm))
	}

	// wall crowding the right side: more room on the left once the
	// frame is reoriented
	wall := toffake.UniformFrame(150)
	for r := 0; r < tof.FrameDim; r++ {
		for c := tof.FrameDim - 2; c < tof.FrameDim; c++ {
			wall[r][c] = 700
		}
	}
	frames = append(frames, wall, wall, toffake.UniformFrame(1000))
	return frames
}
