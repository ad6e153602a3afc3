// Package daemon wires the battery monitor, the search protocol and the
// patrol scheduler together and exposes them over an HTTP API on a unix
// socket.
package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/eaglewings/perch/pkg/config"
	"github.com/eaglewings/perch/pkg/drone"
	"github.com/eaglewings/perch/pkg/drone/httpcam"
	"github.com/eaglewings/perch/pkg/drone/sim"
	"github.com/eaglewings/perch/pkg/drone/tello"
	"github.com/eaglewings/perch/pkg/events"
	"github.com/eaglewings/perch/pkg/exec"
	"github.com/eaglewings/perch/pkg/monitor"
	"github.com/eaglewings/perch/pkg/vision"
	"github.com/eaglewings/perch/pkg/vision/aruco"
)

var (
	conf  config.Config
	mon   *monitor.Monitor
	hub   *events.Hub
	sched *Scheduler
)

// Options configures a daemon run.
type Options struct {
	ConfigPath     string
	UnixSocketPath string
	AllowNonRoot   bool

	// Drone selects the vehicle driver: "sim" or "tello".
	Drone string
	// TelloAddr overrides the Tello command address.
	TelloAddr string
	// CameraURL is an HTTP JPEG still endpoint used as the frame source
	// for the tello driver. Without it the tello flies blind and marker
	// search fails fast.
	CameraURL string
}

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/status", getStatus)
	router.GET("/battery-info", getBatteryInfo)
	router.GET("/config", getConfig)
	router.PUT("/config", setConfig)
	router.POST("/search", postSearch)
	router.POST("/reset-spot", postResetSpot)
	router.PUT("/charging", putCharging)
	router.GET("/patrol", getPatrol)
	router.POST("/patrol/skip", postPatrolSkip)
	router.GET("/events", getEvents)
	router.GET("/version", getVersion)

	return router
}

// buildVehicle creates the drone driver, frame source and marker
// detector for the selected driver.
func buildVehicle(opt Options) (drone.Commander, drone.FrameSource, vision.Detector, func(), error) {
	switch opt.Drone {
	case "", "sim":
		d := sim.New()
		return d, d, sim.NewDetector(d), func() {}, nil
	case "tello":
		d := tello.New(opt.TelloAddr)
		if opt.CameraURL == "" {
			logrus.Warn("no camera url configured, marker search will be unavailable")
			return d, nil, nil, func() {}, nil
		}

		cam := httpcam.New(opt.CameraURL, 200*time.Millisecond)
		cam.Start()

		det := aruco.New(conf.MarkerDictionary(), conf.MarkerSize())

		cleanup := func() {
			cam.Stop()
			if err := det.Close(); err != nil {
				logrus.Warnf("failed to close marker detector: %v", err)
			}
		}
		return d, cam, det, cleanup, nil
	default:
		return nil, nil, nil, nil, pkgerrors.Errorf("unknown drone driver %q", opt.Drone)
	}
}

// patrolPreCheck refuses a patrol flight when the battery is already at
// or below the warning threshold.
func patrolPreCheck() error {
	info := mon.BatteryInfo()
	if info.IsLow {
		return pkgerrors.Errorf("battery too low for patrol: %d%%", info.CurrentLevel)
	}
	return nil
}

// patrolTask is one scheduled patrol flight: take off, search for the
// charging spot, land. The landing runs even when the search fails.
func patrolTask(d drone.Commander) func() error {
	return func() error {
		logrus.Info("starting scheduled patrol flight")

		mon.ResetChargingSpot()

		if !exec.Run(d.TakeOff, "take off") {
			return pkgerrors.New("takeoff failed")
		}

		found := mon.ManualChargingSearch()

		if !exec.Run(d.Land, "land") {
			return pkgerrors.New("landing failed")
		}

		if found {
			logrus.Info("patrol flight located the charging spot")
		} else {
			logrus.Warn("patrol flight did not locate the charging spot")
		}
		return nil
	}
}

// reschedulePatrol applies a changed patrol schedule. An empty
// expression clears the schedule.
func reschedulePatrol(expr string) {
	if expr == "" {
		sched.Clear()
		logrus.Info("patrol schedule cleared")
		return
	}
	if err := sched.Schedule(expr); err != nil {
		logrus.Errorf("failed to apply patrol schedule %q: %v", expr, err)
		return
	}
	logrus.Infof("patrol schedule set to %q", expr)
}

func Run(opt Options) error {
	router := setupRoutes()

	var err error
	conf, err = config.NewFile(opt.ConfigPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	hub = events.NewHub()

	d, frames, detector, cleanupVehicle, err := buildVehicle(opt)
	if err != nil {
		logrus.Fatalf("failed to build vehicle: %v", err)
	}

	if !exec.Run(d.Connect, "connect to drone") {
		cleanupVehicle()
		logrus.Fatal("failed to connect to drone")
	}

	mon = monitor.New(conf, d, frames, detector, hub)
	if !mon.Start() {
		logrus.Fatal("failed to start battery monitoring")
	}

	sched = NewScheduler(patrolTask(d), patrolPreCheck, func(err error) {
		logrus.Errorf("patrol scheduler: %v", err)
	})
	if expr := conf.PatrolSchedule(); expr != "" {
		if err := sched.Schedule(expr); err != nil {
			logrus.Errorf("invalid patrol schedule %q: %v", expr, err)
		}
	}
	sched.Start()

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			reschedulePatrol(conf.PatrolSchedule())
			logrus.Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler: router,
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", opt.UnixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || opt.AllowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", opt.UnixSocketPath)
		err = os.Chmod(opt.UnixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping patrol scheduler")
	sched.Stop()

	logrus.Info("stopping battery monitor")
	mon.Cleanup()

	if err := d.End(); err != nil {
		logrus.Errorf("failed to release drone before exiting: %v", err)
	}
	cleanupVehicle()

	logrus.Info("exiting")
	return nil
}
