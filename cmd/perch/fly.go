package main

import (
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eaglewings/perch/pkg/config"
	"github.com/eaglewings/perch/pkg/drone/sim"
	"github.com/eaglewings/perch/pkg/events"
	"github.com/eaglewings/perch/pkg/exec"
	"github.com/eaglewings/perch/pkg/monitor"
)

var (
	flyBatteryGate = 45
	flyDuration    = 30 * time.Second
)

// NewFlyCommand runs a self-contained demo mission on the simulated
// drone, without the daemon: take off, fly a scan pattern while the
// battery monitor runs, and land. If the battery drops below the gate
// the mission is cut short and a charging spot search runs instead.
func NewFlyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fly",
		Short:   "Fly a demo mission on the simulated drone",
		GroupID: gAdvanced,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runFlyMission()
		},
	}

	f := cmd.Flags()
	f.IntVar(&flyBatteryGate, "battery-gate", 45, "minimum battery percent to continue the mission")
	f.DurationVar(&flyDuration, "duration", 30*time.Second, "mission duration")

	return cmd
}

func runFlyMission() error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load config")
	}

	d := sim.New()
	detector := sim.NewDetector(d)
	hub := events.NewHub()

	if !exec.Run(d.Connect, "connect to drone") {
		return pkgerrors.New("failed to connect to drone")
	}
	defer func() {
		if err := d.End(); err != nil {
			logrus.Errorf("failed to release drone: %v", err)
		}
	}()

	mon := monitor.New(conf, d, d, detector, hub)
	mon.Start()
	defer mon.Cleanup()

	info := mon.BatteryInfo()
	logrus.Infof("battery at %d%% before takeoff", info.CurrentLevel)
	if info.IsCritical {
		return pkgerrors.Errorf("battery too low to fly: %d%%", info.CurrentLevel)
	}

	if !exec.Run(d.TakeOff, "take off") {
		return pkgerrors.New("takeoff failed")
	}
	mon.ResetChargingSpot()

	if !exec.Run(d.StreamOn, "start video stream") {
		logrus.Warn("continuing mission without video")
	}

	// Scan pattern: rotate in place until the duration elapses or the
	// battery gate is hit.
	deadline := time.Now().Add(flyDuration)
	for time.Now().Before(deadline) {
		info = mon.BatteryInfo()
		if info.CurrentLevel < flyBatteryGate {
			logrus.Warnf("battery at %d%%, below gate %d%%, aborting mission", info.CurrentLevel, flyBatteryGate)
			if mon.ManualChargingSearch() {
				logrus.Info("reached charging spot, landing there")
			} else {
				logrus.Warn("charging spot not found, landing in place")
			}
			break
		}

		exec.Run(func() error { return d.RotateClockwise(45) }, "rotate clockwise")
		time.Sleep(time.Second)
	}

	if !exec.Run(d.Land, "land") {
		return pkgerrors.New("landing failed")
	}

	st := mon.Status()
	logrus.WithFields(logrus.Fields{
		"batteryLevel":      st.BatteryLevel,
		"batteryStatus":     st.BatteryStatus,
		"chargingSpotFound": st.ChargingSpotFound,
	}).Info("mission complete")
	return nil
}
