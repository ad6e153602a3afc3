package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/eaglewings/perch/pkg/client"
	"github.com/eaglewings/perch/pkg/types"
)

type statusData struct {
	status      *types.Status
	batteryInfo *types.BatteryInfo
	patrol      *client.PatrolStatus
}

// apiClient is rebuilt in the root PersistentPreRunE so the
// --daemon-socket flag applies to every client command.
var apiClient = client.NewClient(unixSocketPath)

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	st, err := apiClient.GetStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	info, err := apiClient.GetBatteryInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get battery info: %w", err)
	}

	patrol, err := apiClient.GetPatrol()
	if err != nil {
		return nil, fmt.Errorf("failed to get patrol status: %w", err)
	}

	return &statusData{
		status:      st,
		batteryInfo: info,
		patrol:      patrol,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of perch",
		Long:    `Get monitoring state, battery info, charging spot and patrol schedule.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Get various info first.
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			// Battery.
			cmd.Println(bold("Battery status:"))
			cmd.Printf("  Current level: %s\n", bold("%d%%", data.batteryInfo.CurrentLevel))
			cmd.Printf("  State: %s\n", statusText(data.batteryInfo.Status))
			cmd.Printf("  Low: %s\n", bool2Text(data.batteryInfo.IsLow))
			cmd.Printf("  Critical: %s\n", bool2Text(data.batteryInfo.IsCritical))

			cmd.Println()

			// Monitoring and charging spot.
			cmd.Println(bold("Monitoring:"))
			cmd.Printf("  Running: %s\n", bool2Text(data.status.Monitoring))
			cmd.Printf("  Charging spot found: %s\n", bool2Text(data.status.ChargingSpotFound))
			if pos := data.status.ChargingSpotPosition; pos != nil {
				cmd.Printf("  Charging spot position: %s\n", bold("(%.1f, %.1f)", pos.X, pos.Y))
			}

			cmd.Println()

			// Thresholds.
			cmd.Println(bold("Thresholds:"))
			cmd.Printf("  Warning: %s\n", bold("%d%%", data.status.WarningThreshold))
			cmd.Printf("  Critical: %s\n", bold("%d%%", data.status.CriticalThreshold))
			cmd.Printf("  Charging: %s\n", bold("%d%%", data.status.ChargingThreshold))

			cmd.Println()

			// Patrol.
			cmd.Println(bold("Patrol:"))
			if data.patrol.NextRun.IsZero() {
				cmd.Println("  No patrol scheduled.")
			} else {
				cmd.Printf("  Next run: %s\n", bold("%s", data.patrol.NextRun.Local().Format("2006-01-02 15:04:05")))
			}

			return nil
		},
	}
}

func statusText(s types.BatteryStatus) string {
	switch s {
	case types.BatteryNormal:
		return color.GreenString(string(s))
	case types.BatteryWarning:
		return color.YellowString(string(s))
	case types.BatteryCritical:
		return color.RedString(string(s))
	case types.BatteryCharging:
		return color.CyanString(string(s))
	default:
		return string(s)
	}
}
