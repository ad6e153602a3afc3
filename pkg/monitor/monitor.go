// Package monitor owns the battery poll loop and the shared status
// store. One background goroutine polls the vehicle battery, classifies
// it against the configured thresholds and reacts to transitions; all
// other callers read and mutate the shared state through the guarded
// accessors.
package monitor

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eaglewings/perch/pkg/config"
	"github.com/eaglewings/perch/pkg/drone"
	"github.com/eaglewings/perch/pkg/events"
	"github.com/eaglewings/perch/pkg/types"
	"github.com/eaglewings/perch/pkg/vision"
)

var (
	// joinTimeout bounds how long Stop waits for the poll goroutine.
	joinTimeout = 2 * time.Second
	// recoverDelay is the pause after a recovered cycle fault.
	recoverDelay = time.Second
)

// Callbacks are optional handlers invoked from monitor context. They are
// called outside the status guard and after the state has been updated,
// so a handler reading Status sees a value consistent with or newer than
// the one it was invoked with. Handlers must not block indefinitely.
type Callbacks struct {
	// BatteryChange fires once per status transition.
	BatteryChange func(level int, status types.BatteryStatus)
	// CriticalEntry fires when the status enters critical, before the
	// search protocol starts.
	CriticalEntry func(level int)
	// StatusEvent fires with a full snapshot after every transition.
	StatusEvent func(status types.Status)
}

// Monitor is the battery monitor plus the shared status store.
type Monitor struct {
	conf     config.Config
	drone    drone.Commander
	frames   drone.FrameSource
	detector vision.Detector
	hub      *events.Hub

	callbacks Callbacks

	mu                   sync.Mutex
	monitoring           bool
	lastBatteryLevel     int
	currentStatus        types.BatteryStatus
	chargingSpotFound    bool
	chargingSpotPosition *types.Point
	charging             bool

	stopCh chan struct{}
	doneCh chan struct{}

	// runSearch is swapped out in tests.
	runSearch func() bool
}

// New creates a monitor. frames and detector may be nil when the vehicle
// has no camera; the search protocol then fails fast.
func New(conf config.Config, cmd drone.Commander, frames drone.FrameSource, detector vision.Detector, hub *events.Hub) *Monitor {
	m := &Monitor{
		conf:             conf,
		drone:            cmd,
		frames:           frames,
		detector:         detector,
		hub:              hub,
		lastBatteryLevel: 100,
		currentStatus:    types.BatteryNormal,
	}
	m.runSearch = m.searchChargingSpot
	return m
}

// SetCallbacks installs the event handlers. Call once during setup,
// before Start.
func (m *Monitor) SetCallbacks(cb Callbacks) {
	m.callbacks = cb
	logrus.Debug("monitor callbacks configured")
}

// Start launches the poll loop. It returns false without side effects if
// monitoring is already running.
func (m *Monitor) Start() bool {
	m.mu.Lock()
	if m.monitoring {
		m.mu.Unlock()
		logrus.Warn("battery monitoring already running")
		return false
	}
	m.monitoring = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	stop, done := m.stopCh, m.doneCh
	m.mu.Unlock()

	go m.loop(stop, done)

	logrus.Info("battery monitoring started")
	return true
}

// Stop signals the poll loop and waits up to joinTimeout for it to
// finish. Safe to call when not running. A search in flight is not
// preempted: the loop exits after the current iteration completes.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return
	}
	m.monitoring = false
	stop, done := m.stopCh, m.doneCh
	m.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(joinTimeout):
		logrus.Warn("battery monitor did not stop within join timeout")
	}

	logrus.Info("battery monitoring stopped")
}

// Cleanup stops monitoring. Idempotent.
func (m *Monitor) Cleanup() {
	m.Stop()
	logrus.Debug("monitor cleaned up")
}

func (m *Monitor) loop(stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		m.cycle()

		select {
		case <-stop:
			return
		case <-time.After(m.conf.CheckInterval()):
		}
	}
}

// cycle runs one poll iteration. Any fault is recovered here: the
// monitor must never die silently.
func (m *Monitor) cycle() {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("battery monitoring error: %v", r)
			time.Sleep(recoverDelay)
		}
	}()

	level, ok := m.readBatteryLevel()
	if !ok {
		return
	}
	m.processBatteryLevel(level)
}

// readBatteryLevel reads the battery once. Read failures are handled
// here, not retried by the executor: a skipped cycle beats a blocked
// poll loop.
func (m *Monitor) readBatteryLevel() (int, bool) {
	level, err := m.drone.BatteryPercentage()
	if err != nil {
		logrus.Warnf("battery read failed: %v", err)
		return 0, false
	}
	if level < 0 || level > 100 {
		logrus.Warnf("invalid battery level: %d", level)
		return 0, false
	}
	logrus.Debugf("battery level retrieved: %d%%", level)
	return level, true
}

// Classify maps a battery percentage onto a status, most severe first.
// The charging and critical thresholds both map to critical: the
// charging status is reserved for the external docked signal.
func Classify(level, warning, critical, charging int) types.BatteryStatus {
	switch {
	case level <= charging:
		return types.BatteryCritical
	case level <= critical:
		return types.BatteryCritical
	case level <= warning:
		return types.BatteryWarning
	default:
		return types.BatteryNormal
	}
}

func (m *Monitor) processBatteryLevel(level int) {
	newStatus := Classify(level, m.conf.WarningThreshold(), m.conf.CriticalThreshold(), m.conf.ChargingThreshold())

	m.mu.Lock()
	m.lastBatteryLevel = level
	if m.charging {
		// Docked: stay in charging until the external signal clears.
		m.mu.Unlock()
		return
	}
	old := m.currentStatus
	if newStatus == old {
		m.mu.Unlock()
		return
	}
	m.currentStatus = newStatus
	m.mu.Unlock()

	logrus.Infof("battery status changed: %s -> %s (%d%%)", old, newStatus, level)

	m.hub.Publish(events.BatteryTransition, events.BatteryTransitionEvent{
		From:  string(old),
		To:    string(newStatus),
		Level: level,
		Ts:    time.Now().Unix(),
	})

	m.invoke("battery", func() {
		if m.callbacks.BatteryChange != nil {
			m.callbacks.BatteryChange(level, newStatus)
		}
	})
	m.invoke("status", func() {
		if m.callbacks.StatusEvent != nil {
			m.callbacks.StatusEvent(m.Status())
		}
	})

	if newStatus == types.BatteryCritical {
		m.handleCriticalBattery(level)
	}
}

// handleCriticalBattery fires the critical-entry callback and runs the
// search protocol synchronously. The poll loop blocks on the search; it
// is not retried automatically on failure.
func (m *Monitor) handleCriticalBattery(level int) {
	logrus.Warn("critical battery detected, initiating charging protocol")

	m.hub.Publish(events.BatteryCritical, events.BatteryTransitionEvent{
		To:    string(types.BatteryCritical),
		Level: level,
		Ts:    time.Now().Unix(),
	})

	m.invoke("charging", func() {
		if m.callbacks.CriticalEntry != nil {
			m.callbacks.CriticalEntry(level)
		}
	})

	m.runSearch()
}

// invoke runs a callback and swallows (but logs) anything it panics
// with. A misbehaving callback must never destabilize the monitor loop.
func (m *Monitor) invoke(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("%s callback error: %v", name, r)
		}
	}()
	fn()
}
