package main

import (
	"github.com/spf13/cobra"
)

// NewChargingCommand reports the external docked signal. A charging pad
// controller (or the operator) tells the daemon when the vehicle is
// actually on the pad; the daemon cannot sense this itself.
func NewChargingCommand() *cobra.Command {
	return newEnableDisableCommand(
		"charging",
		"the docked (charging) signal",
		`Tell the daemon whether the drone is docked on its charging pad.

While the signal is enabled the battery status is pinned to "charging"
and threshold transitions are suppressed. Disabling the signal
reclassifies the status from the last known battery level.`,
		func() (string, error) { return apiClient.SetCharging(true) },
		func() (string, error) { return apiClient.SetCharging(false) },
	)
}
