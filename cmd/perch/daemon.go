package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eaglewings/perch/pkg/daemon"
	"github.com/eaglewings/perch/pkg/version"
)

var (
	// alwaysAllowNonRootAccess indicates whether to always allow non-root users to access the perch daemon.
	alwaysAllowNonRootAccess = false
	droneDriver              = "sim"
	telloAddr                = ""
	cameraURL                = ""
)

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "daemon",
		Short:   "Run perch daemon in the foreground",
		GroupID: gAdvanced,
		RunE: func(_ *cobra.Command, _ []string) error {
			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("perch daemon starting")
			return daemon.Run(daemon.Options{
				ConfigPath:     configPath,
				UnixSocketPath: unixSocketPath,
				AllowNonRoot:   alwaysAllowNonRootAccess,
				Drone:          droneDriver,
				TelloAddr:      telloAddr,
				CameraURL:      cameraURL,
			})
		},
	}

	f := cmd.Flags()

	f.BoolVar(&alwaysAllowNonRootAccess, "always-allow-non-root-access", false,
		"Always allow non-root users to access the daemon.")
	f.StringVar(&droneDriver, "drone", "sim", "drone driver (sim, tello)")
	f.StringVar(&telloAddr, "tello-addr", "", "Tello command address (default 192.168.10.1:8889)")
	f.StringVar(&cameraURL, "camera-url", "", "HTTP JPEG still endpoint used as the frame source for the tello driver")

	return cmd
}
