package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/eaglewings/perch/pkg/utils/ptr"
)

var defaultFileConfig = &RawFileConfig{
	WarningThreshold:     ptr.To(20),
	CriticalThreshold:    ptr.To(10),
	ChargingThreshold:    ptr.To(5),
	CheckIntervalSeconds: ptr.To(5.0),
	// DICT_4X4_50. Small dictionaries are cheaper to detect and 50 ids
	// are plenty for charging pads.
	MarkerDictionary:     ptr.To(0),
	MarkerSizeMeters:     ptr.To(0.05),
	SearchTimeoutSeconds: ptr.To(30.0),
	ApproachDistanceCm:   ptr.To(30),
	PatrolSchedule:       ptr.To(""),
	AllowNonRootAccess:   ptr.To(false),
}

var _ Config = &File{}

// File is a Config backed by a JSON file on disk.
type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = defaultFileConfig
	}

	return &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}
}

// RawFileConfig is the on-disk and over-the-wire shape of the config.
// Every field is a pointer so a partial document only touches the fields
// it names; absent fields fall back to defaults.
type RawFileConfig struct {
	WarningThreshold     *int     `json:"warningThreshold,omitempty"`
	CriticalThreshold    *int     `json:"criticalThreshold,omitempty"`
	ChargingThreshold    *int     `json:"chargingThreshold,omitempty"`
	CheckIntervalSeconds *float64 `json:"checkIntervalSeconds,omitempty"`
	MarkerDictionary     *int     `json:"markerDictionary,omitempty"`
	MarkerSizeMeters     *float64 `json:"markerSizeMeters,omitempty"`
	SearchTimeoutSeconds *float64 `json:"searchTimeoutSeconds,omitempty"`
	ApproachDistanceCm   *int     `json:"approachDistanceCm,omitempty"`
	PatrolSchedule       *string  `json:"patrolSchedule,omitempty"`
	AllowNonRootAccess   *bool    `json:"allowNonRootAccess,omitempty"`
}

// Validate checks the threshold ordering invariant. The three thresholds
// must satisfy 0 <= charging < critical < warning <= 100 so that
// classification is well defined.
func (c *RawFileConfig) Validate() error {
	warning, critical, charging := 0, 0, 0
	if c.WarningThreshold != nil {
		warning = *c.WarningThreshold
	} else {
		warning = *defaultFileConfig.WarningThreshold
	}
	if c.CriticalThreshold != nil {
		critical = *c.CriticalThreshold
	} else {
		critical = *defaultFileConfig.CriticalThreshold
	}
	if c.ChargingThreshold != nil {
		charging = *c.ChargingThreshold
	} else {
		charging = *defaultFileConfig.ChargingThreshold
	}

	if charging < 0 {
		return pkgerrors.Errorf("charging threshold must not be negative, got %d", charging)
	}
	if charging >= critical {
		return pkgerrors.Errorf("charging threshold (%d) must be below critical threshold (%d)", charging, critical)
	}
	if critical >= warning {
		return pkgerrors.Errorf("critical threshold (%d) must be below warning threshold (%d)", critical, warning)
	}
	if warning > 100 {
		return pkgerrors.Errorf("warning threshold must not exceed 100, got %d", warning)
	}

	if c.CheckIntervalSeconds != nil && *c.CheckIntervalSeconds <= 0 {
		return pkgerrors.Errorf("check interval must be positive, got %v", *c.CheckIntervalSeconds)
	}
	if c.SearchTimeoutSeconds != nil && *c.SearchTimeoutSeconds <= 0 {
		return pkgerrors.Errorf("search timeout must be positive, got %v", *c.SearchTimeoutSeconds)
	}
	if c.ApproachDistanceCm != nil && *c.ApproachDistanceCm <= 0 {
		return pkgerrors.Errorf("approach distance must be positive, got %d", *c.ApproachDistanceCm)
	}

	return nil
}

func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	return &RawFileConfig{
		WarningThreshold:     ptr.To(c.WarningThreshold()),
		CriticalThreshold:    ptr.To(c.CriticalThreshold()),
		ChargingThreshold:    ptr.To(c.ChargingThreshold()),
		CheckIntervalSeconds: ptr.To(c.CheckInterval().Seconds()),
		MarkerDictionary:     ptr.To(c.MarkerDictionary()),
		MarkerSizeMeters:     ptr.To(c.MarkerSize()),
		SearchTimeoutSeconds: ptr.To(c.SearchTimeout().Seconds()),
		ApproachDistanceCm:   ptr.To(c.ApproachDistance()),
		PatrolSchedule:       ptr.To(c.PatrolSchedule()),
		AllowNonRootAccess:   ptr.To(c.AllowNonRootAccess()),
	}, nil
}

func (f *File) intField(get func(c *RawFileConfig) *int, def *int) int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if v := get(f.c); v != nil {
		return *v
	}
	return *def
}

func (f *File) WarningThreshold() int {
	if f.c == nil {
		panic("config is nil")
	}
	return f.intField(func(c *RawFileConfig) *int { return c.WarningThreshold }, defaultFileConfig.WarningThreshold)
}

func (f *File) CriticalThreshold() int {
	if f.c == nil {
		panic("config is nil")
	}
	return f.intField(func(c *RawFileConfig) *int { return c.CriticalThreshold }, defaultFileConfig.CriticalThreshold)
}

func (f *File) ChargingThreshold() int {
	if f.c == nil {
		panic("config is nil")
	}
	return f.intField(func(c *RawFileConfig) *int { return c.ChargingThreshold }, defaultFileConfig.ChargingThreshold)
}

func (f *File) MarkerDictionary() int {
	if f.c == nil {
		panic("config is nil")
	}
	return f.intField(func(c *RawFileConfig) *int { return c.MarkerDictionary }, defaultFileConfig.MarkerDictionary)
}

func (f *File) ApproachDistance() int {
	if f.c == nil {
		panic("config is nil")
	}
	return f.intField(func(c *RawFileConfig) *int { return c.ApproachDistanceCm }, defaultFileConfig.ApproachDistanceCm)
}

func (f *File) CheckInterval() time.Duration {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	secs := *defaultFileConfig.CheckIntervalSeconds
	if f.c.CheckIntervalSeconds != nil {
		secs = *f.c.CheckIntervalSeconds
	}

	return time.Duration(secs * float64(time.Second))
}

func (f *File) SearchTimeout() time.Duration {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	secs := *defaultFileConfig.SearchTimeoutSeconds
	if f.c.SearchTimeoutSeconds != nil {
		secs = *f.c.SearchTimeoutSeconds
	}

	return time.Duration(secs * float64(time.Second))
}

func (f *File) MarkerSize() float64 {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.MarkerSizeMeters != nil {
		return *f.c.MarkerSizeMeters
	}
	return *defaultFileConfig.MarkerSizeMeters
}

func (f *File) PatrolSchedule() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.PatrolSchedule != nil {
		return *f.c.PatrolSchedule
	}
	return *defaultFileConfig.PatrolSchedule
}

func (f *File) AllowNonRootAccess() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.AllowNonRootAccess != nil {
		return *f.c.AllowNonRootAccess
	}
	return *defaultFileConfig.AllowNonRootAccess
}

// Apply merges the provided fields of the partial config into f, leaving
// absent fields untouched. The merged result is validated before any
// field is written, so a bad partial cannot leave f half-updated.
func (f *File) Apply(partial *RawFileConfig) error {
	if partial == nil {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	merged := *f.c
	if partial.WarningThreshold != nil {
		merged.WarningThreshold = partial.WarningThreshold
	}
	if partial.CriticalThreshold != nil {
		merged.CriticalThreshold = partial.CriticalThreshold
	}
	if partial.ChargingThreshold != nil {
		merged.ChargingThreshold = partial.ChargingThreshold
	}
	if partial.CheckIntervalSeconds != nil {
		merged.CheckIntervalSeconds = partial.CheckIntervalSeconds
	}
	if partial.MarkerDictionary != nil {
		merged.MarkerDictionary = partial.MarkerDictionary
	}
	if partial.MarkerSizeMeters != nil {
		merged.MarkerSizeMeters = partial.MarkerSizeMeters
	}
	if partial.SearchTimeoutSeconds != nil {
		merged.SearchTimeoutSeconds = partial.SearchTimeoutSeconds
	}
	if partial.ApproachDistanceCm != nil {
		merged.ApproachDistanceCm = partial.ApproachDistanceCm
	}
	if partial.PatrolSchedule != nil {
		merged.PatrolSchedule = partial.PatrolSchedule
	}
	if partial.AllowNonRootAccess != nil {
		merged.AllowNonRootAccess = partial.AllowNonRootAccess
	}

	if err := merged.Validate(); err != nil {
		return err
	}

	f.c = &merged
	return nil
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, start from the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		// An empty file is the empty config, not an error.
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if err := conf.Validate(); err != nil {
		return pkgerrors.Wrapf(err, "invalid config in file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"warningThreshold":  f.WarningThreshold(),
		"criticalThreshold": f.CriticalThreshold(),
		"chargingThreshold": f.ChargingThreshold(),
		"checkInterval":     f.CheckInterval().String(),
		"searchTimeout":     f.SearchTimeout().String(),
		"approachDistance":  f.ApproachDistance(),
		"patrolSchedule":    f.PatrolSchedule(),
	}
}
