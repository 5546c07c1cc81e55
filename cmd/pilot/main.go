// Command pilot follows a 2D track with a tracked robot: it ingests
// pose packets from the optical tracking system over UDP, optionally
// runs orientation calibration, then drives the path follower at a
// fixed control rate while recording the run and serving a monitor UI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/pilot/internal/calib"
	"github.com/banshee-data/pilot/internal/config"
	"github.com/banshee-data/pilot/internal/db"
	"github.com/banshee-data/pilot/internal/drivemux"
	"github.com/banshee-data/pilot/internal/follower"
	"github.com/banshee-data/pilot/internal/monitor"
	"github.com/banshee-data/pilot/internal/robot"
	"github.com/banshee-data/pilot/internal/timeutil"
	"github.com/banshee-data/pilot/internal/track"
	"github.com/banshee-data/pilot/internal/tracking"
	"github.com/banshee-data/pilot/internal/version"
)

var (
	robotName     = flag.String("robot", "umh_2", "Robot name from the config file")
	configPath    = flag.String("config", "config/robots.json", "Path to the robots config file")
	trackType     = flag.String("track", "square", "Track shape: circle, square, figure-eight, line")
	trackSize     = flag.Float64("track-size", 2.0, "Track radius / side length / line length in meters")
	trackPoints   = flag.Int("track-points", 40, "Waypoint count for generated tracks")
	trackFile     = flag.String("track-file", "", "Load track from a JSON file instead of generating")
	saveTrack     = flag.String("save-track", "", "Save the track to this JSON file and exit")
	lookahead     = flag.Float64("lookahead", 0.5, "Base lookahead distance in meters")
	tickRate      = flag.Duration("rate", 100*time.Millisecond, "Control tick period")
	laneOffset    = flag.Float64("offset", 0, "Initial lane offset in meters (positive = right)")
	useSim        = flag.Bool("sim", false, "Drive the simulated robot instead of hardware")
	runCalibrate  = flag.Bool("calibrate", false, "Run orientation calibration before following")
	calibDir      = flag.String("calib-dir", "calibration", "Directory of per-robot calibration records")
	dbFile        = flag.String("db", "pilot_run.db", "Path to the SQLite run recording database")
	migrationsDir = flag.String("migrations", "internal/db/migrations", "Path to the migrations directory")
	listen        = flag.String("listen", ":8081", "Monitor HTTP listen address")
	plotFile      = flag.String("plot", "", "Render a PNG of the run to this path on exit")
)

func main() {
	flag.Parse()
	log.Printf("pilot %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	// log.Fatalf skips deferred cleanup, so everything that opens a
	// socket, serial port or database runs inside run.
	if err := run(); err != nil {
		log.Fatalf("pilot: %v", err)
	}
}

func run() error {
	tr, err := buildTrack()
	if err != nil {
		return fmt.Errorf("failed to build track: %w", err)
	}
	if *saveTrack != "" {
		if err := tr.Save(*saveTrack); err != nil {
			return fmt.Errorf("failed to save track: %w", err)
		}
		log.Printf("Saved track %q (%d waypoints) to %s", tr.Name(), len(tr.Points()), *saveTrack)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rob, cleanup, err := buildRobot(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up robot: %w", err)
	}
	defer cleanup()

	cal, err := calibration(ctx, rob)
	if err != nil {
		return fmt.Errorf("calibration failed: %w", err)
	}

	rdb, err := db.Open(*dbFile)
	if err != nil {
		return fmt.Errorf("failed to open run database: %w", err)
	}
	defer rdb.Close()
	if err := rdb.MigrateUp(*migrationsDir); err != nil {
		return fmt.Errorf("failed to migrate run database: %w", err)
	}
	sessionID, err := rdb.StartSession(*robotName, tr.Name())
	if err != nil {
		return fmt.Errorf("failed to start run session: %w", err)
	}
	log.Printf("Recording session %s", sessionID)

	cfg := follower.DefaultConfig()
	cfg.Lookahead = *lookahead
	f := follower.New(cfg, tr, rob, cal, timeutil.RealClock{})
	f.SetOffset(*laneOffset)

	srv := monitor.NewServer(monitor.ServerConfig{
		Address: *listen,
		RobotID: *robotName,
		Track:   tr,
		Flw:     f,
		Robot:   rob,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Start(ctx); err != nil {
			log.Printf("Monitor server error: %v", err)
		}
	}()

	runControlLoop(ctx, f, rob, rdb, srv, sessionID)

	if err := rob.Stop(); err != nil {
		log.Printf("Failed to stop robot: %v", err)
	}
	if err := rdb.EndSession(sessionID); err != nil {
		log.Printf("Failed to end session: %v", err)
	}
	if sum, err := rdb.SummarizeSession(sessionID); err != nil {
		log.Printf("Failed to summarize session: %v", err)
	} else if sum.Samples > 1 {
		log.Printf("Run: %.2f m in %s, mean %.3f m/s (stddev %.3f, max %.3f)",
			sum.Distance, sum.Duration.Round(time.Second), sum.MeanSpeed, sum.SpeedStdDev, sum.MaxSpeed)
	}

	stop()
	wg.Wait()

	if *plotFile != "" {
		samples, err := rdb.PosesForSession(sessionID)
		if err != nil {
			return fmt.Errorf("failed to load session poses: %w", err)
		}
		if err := monitor.RenderRun(tr, samples, *plotFile); err != nil {
			return fmt.Errorf("failed to render run plot: %w", err)
		}
		log.Printf("Wrote run plot to %s", *plotFile)
	}
	return nil
}

// runControlLoop drives the follower at the configured tick rate until
// the track completes, the follower sticks terminally, or ctx ends.
func runControlLoop(ctx context.Context, f *follower.Follower, rob robot.Robot, rdb *db.DB, srv *monitor.Server, sessionID string) {
	f.Start()
	log.Printf("Following started (state %s)", f.State())

	ticker := time.NewTicker(*tickRate)
	defer ticker.Stop()

	lastState := f.State()
	for {
		select {
		case <-ctx.Done():
			log.Println("Control loop stopping...")
			return
		case <-ticker.C:
		}

		res, err := f.Update()

		if res.State != lastState {
			log.Printf("Follower state %s -> %s", lastState, res.State)
			if dberr := rdb.RecordTransition(sessionID, string(lastState), string(res.State)); dberr != nil {
				log.Printf("Failed to record transition: %v", dberr)
			}
			lastState = res.State
		}

		if p, ok := rob.Pose(); ok {
			srv.AppendTrail(p)
			if dberr := rdb.RecordPose(sessionID, p); dberr != nil {
				log.Printf("Failed to record pose: %v", dberr)
			}
		}

		if err != nil {
			if errors.Is(err, follower.ErrStuck) {
				log.Printf("Robot is stuck and recovery failed: %v", err)
				return
			}
			log.Printf("Follower error: %v", err)
			return
		}

		if res.State == follower.StateCompleted {
			log.Println("Track completed")
			return
		}

		if res.HasCommand {
			if err := rob.MoveByVector(res.Command.DX, res.Command.DY); err != nil {
				log.Printf("Failed to send move command: %v", err)
				continue
			}
			if dberr := rdb.RecordCommand(sessionID, res.Command.DX, res.Command.DY); dberr != nil {
				log.Printf("Failed to record command: %v", dberr)
			}
		}
	}
}

// buildTrack builds the track from a file or one of the generators.
func buildTrack() (*track.Track, error) {
	if *trackFile != "" {
		return track.Load(*trackFile)
	}
	switch *trackType {
	case "circle":
		return track.Circle(*trackSize, *trackPoints, 0, 0)
	case "square":
		return track.Square(*trackSize, *trackPoints/4)
	case "figure-eight":
		return track.FigureEight(*trackSize, *trackPoints)
	case "line":
		return track.Line(*trackSize, *trackPoints, 0)
	default:
		return nil, fmt.Errorf("unknown track type %q", *trackType)
	}
}

// buildRobot assembles either the simulation or the hardware robot with
// its tracking listener and drive link.
func buildRobot(ctx context.Context) (robot.Robot, func(), error) {
	if *useSim {
		sim := robot.NewSim(robot.DefaultSimConfig(), 0, 0)
		go sim.Run(ctx, timeutil.RealClock{}, 20*time.Millisecond)
		log.Println("Using simulated robot")
		return sim, func() { sim.Close() }, nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, nil, err
	}
	rc, err := cfg.Robot(*robotName)
	if err != nil {
		return nil, nil, err
	}
	if rc.DrivePort == "" {
		return nil, nil, fmt.Errorf("robot %q has no drive_port configured", *robotName)
	}

	cell := tracking.NewPoseCell()
	listener := tracking.NewListener(tracking.ListenerConfig{
		RobotID: *robotName,
		Port:    rc.UDPPort,
		Cell:    cell,
	})
	if err := listener.Start(); err != nil {
		return nil, nil, err
	}

	mux, err := drivemux.NewRealMux(rc.DrivePort, drivemux.DefaultPortMode())
	if err != nil {
		listener.Stop()
		return nil, nil, err
	}

	rob := robot.NewTracked(*robotName, cell, mux)
	cleanup := func() {
		listener.Stop()
		rob.Close()
	}
	log.Printf("Using robot %s (udp :%d, drive %s)", *robotName, rc.UDPPort, rc.DrivePort)
	return rob, cleanup, nil
}

// calibration runs or loads the orientation calibration per the flags.
// Running without any calibration is allowed but warned about, since
// every movement command will then be interpreted as robot-frame.
func calibration(ctx context.Context, rob robot.Robot) (calib.Calibration, error) {
	store := calib.NewFileStore(*calibDir)

	if *runCalibrate {
		log.Printf("Running orientation calibration for %s...", *robotName)
		c := calib.New(calib.DefaultConfig(), timeutil.RealClock{})
		cal, err := c.Calibrate(ctx, *robotName, rob)
		if err != nil {
			return calib.Calibration{}, err
		}
		if err := store.Save(cal); err != nil {
			return calib.Calibration{}, err
		}
		log.Printf("Calibrated: offset %.4f rad (%.2f deg)", cal.Offset, cal.Offset*180/math.Pi)
		return cal, nil
	}

	cal, err := store.Load(*robotName)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("No calibration record for %s; running uncalibrated (use -calibrate)", *robotName)
			return calib.Calibration{RobotID: *robotName}, nil
		}
		return calib.Calibration{}, err
	}
	log.Printf("Loaded calibration from %s: offset %.4f rad", cal.CalibratedAt.Format(time.RFC3339), cal.Offset)
	return cal, nil
}
