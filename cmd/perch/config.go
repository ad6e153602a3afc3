package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eaglewings/perch/pkg/config"
	"github.com/eaglewings/perch/pkg/utils/ptr"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Inspect or change the daemon configuration",
		GroupID: gAdvanced,
		Long: `Inspect or change the daemon configuration.

Changes are validated by the daemon, applied to the running monitor and
persisted to the config file.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Show the current daemon configuration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				conf, err := apiClient.GetConfig()
				if err != nil {
					return fmt.Errorf("failed to get config: %v", err)
				}

				b, err := json.MarshalIndent(conf, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(b))
				return nil
			},
		},
		newIntSettingCommand("warning-threshold", "warning threshold (percent)", func(v int) *config.RawFileConfig {
			return &config.RawFileConfig{WarningThreshold: &v}
		}),
		newIntSettingCommand("critical-threshold", "critical threshold (percent)", func(v int) *config.RawFileConfig {
			return &config.RawFileConfig{CriticalThreshold: &v}
		}),
		newIntSettingCommand("charging-threshold", "charging threshold (percent)", func(v int) *config.RawFileConfig {
			return &config.RawFileConfig{ChargingThreshold: &v}
		}),
		newIntSettingCommand("approach-distance", "approach distance (cm)", func(v int) *config.RawFileConfig {
			return &config.RawFileConfig{ApproachDistanceCm: &v}
		}),
		newFloatSettingCommand("check-interval", "battery check interval (seconds)", func(v float64) *config.RawFileConfig {
			return &config.RawFileConfig{CheckIntervalSeconds: &v}
		}),
		newFloatSettingCommand("search-timeout", "search timeout (seconds)", func(v float64) *config.RawFileConfig {
			return &config.RawFileConfig{SearchTimeoutSeconds: &v}
		}),
		&cobra.Command{
			Use:   "patrol-schedule [cron expression]",
			Short: "Set the patrol cron schedule (empty string clears it)",
			RunE: func(_ *cobra.Command, args []string) error {
				if len(args) != 1 {
					return fmt.Errorf("invalid number of arguments")
				}

				ret, err := apiClient.SetConfig(&config.RawFileConfig{PatrolSchedule: ptr.To(args[0])})
				if err != nil {
					return fmt.Errorf("failed to set patrol schedule: %v", err)
				}
				if ret != "" {
					logrus.Infof("daemon responded: %s", ret)
				}
				logrus.Infof("successfully set patrol schedule to %q", args[0])
				return nil
			},
		},
	)

	return cmd
}

func newIntSettingCommand(name, desc string, build func(int) *config.RawFileConfig) *cobra.Command {
	return &cobra.Command{
		Use:   name + " [value]",
		Short: "Set the " + desc,
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := parseIntArg(args, name)
			if err != nil {
				return err
			}

			ret, err := apiClient.SetConfig(build(v))
			if err != nil {
				return fmt.Errorf("failed to set %s: %v", name, err)
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			logrus.Infof("successfully set %s to %d", name, v)
			return nil
		},
	}
}

func newFloatSettingCommand(name, desc string, build func(float64) *config.RawFileConfig) *cobra.Command {
	return &cobra.Command{
		Use:   name + " [value]",
		Short: "Set the " + desc,
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("invalid number of arguments")
			}
			v, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid %s: %v", name, err)
			}

			ret, err := apiClient.SetConfig(build(v))
			if err != nil {
				return fmt.Errorf("failed to set %s: %v", name, err)
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			logrus.Infof("successfully set %s to %v", name, v)
			return nil
		},
	}
}
