package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eaglewings/perch/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "search",
		Short:   "Search for the charging spot now",
		GroupID: gBasic,
		Long: `Search for the charging spot now.

The drone rotates in place, scanning for the charging spot marker, and
approaches it when found. This blocks until the search finishes or its
timeout elapses.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			logrus.Info("starting charging spot search, this can take a while")

			found, err := apiClient.Search()
			if err != nil {
				return fmt.Errorf("failed to run search: %v", err)
			}

			if found {
				logrus.Info("charging spot found and reached")
			} else {
				logrus.Warn("charging spot not found")
			}

			return nil
		},
	}
}

func NewResetSpotCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "reset-spot",
		Short:   "Forget the recorded charging spot",
		GroupID: gAdvanced,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.ResetChargingSpot()
			if err != nil {
				return fmt.Errorf("failed to reset charging spot: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Info("successfully reset charging spot")

			return nil
		},
	}
}

func NewPatrolCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "patrol",
		Short:   "Inspect or control the patrol schedule",
		GroupID: gAdvanced,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show the next scheduled patrol",
			RunE: func(cmd *cobra.Command, _ []string) error {
				ps, err := apiClient.GetPatrol()
				if err != nil {
					return fmt.Errorf("failed to get patrol status: %v", err)
				}

				if ps.NextRun.IsZero() {
					cmd.Println("No patrol scheduled.")
					return nil
				}
				cmd.Printf("Next patrol: %s\n", ps.NextRun.Local().Format("2006-01-02 15:04:05"))
				return nil
			},
		},
		&cobra.Command{
			Use:   "skip",
			Short: "Skip the next scheduled patrol",
			RunE: func(_ *cobra.Command, _ []string) error {
				ret, err := apiClient.SkipPatrol()
				if err != nil {
					return fmt.Errorf("failed to skip patrol: %v", err)
				}
				if ret != "" {
					logrus.Infof("daemon responded: %s", ret)
				}
				logrus.Info("successfully skipped next patrol")
				return nil
			},
		},
	)

	return cmd
}
