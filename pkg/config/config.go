package config

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Config is the runtime configuration of the perch daemon. Thresholds and
// intervals are read by every poll cycle, so implementations must be safe
// for concurrent readers and writers.
type Config interface {
	WarningThreshold() int
	CriticalThreshold() int
	ChargingThreshold() int
	CheckInterval() time.Duration

	MarkerDictionary() int
	MarkerSize() float64
	SearchTimeout() time.Duration
	ApproachDistance() int

	PatrolSchedule() string
	AllowNonRootAccess() bool

	// Apply merges only the provided fields of a partial config. It is
	// the single write path: partial documents from the API or the
	// config file are validated as a whole before anything is committed.
	Apply(*RawFileConfig) error

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error

	LogrusFields() logrus.Fields
}
