package monitor

import (
	"github.com/sirupsen/logrus"

	"github.com/eaglewings/perch/pkg/types"
)

// Status returns a snapshot of the shared state plus the active
// thresholds. Thresholds are read from the config outside the status
// guard to keep the critical section to field reads.
func (m *Monitor) Status() types.Status {
	warning := m.conf.WarningThreshold()
	critical := m.conf.CriticalThreshold()
	charging := m.conf.ChargingThreshold()

	m.mu.Lock()
	defer m.mu.Unlock()

	var pos *types.Point
	if m.chargingSpotPosition != nil {
		p := *m.chargingSpotPosition
		pos = &p
	}

	return types.Status{
		Monitoring:           m.monitoring,
		BatteryLevel:         m.lastBatteryLevel,
		BatteryStatus:        m.currentStatus,
		ChargingSpotFound:    m.chargingSpotFound,
		ChargingSpotPosition: pos,
		WarningThreshold:     warning,
		CriticalThreshold:    critical,
		ChargingThreshold:    charging,
	}
}

// BatteryInfo returns the detailed battery view. It prefers a fresh
// read; when that fails it falls back to the last cached level, so the
// low/critical flags stay consistent with what the monitor last saw.
func (m *Monitor) BatteryInfo() types.BatteryInfo {
	level, ok := m.readBatteryLevel()

	m.mu.Lock()
	if !ok {
		level = m.lastBatteryLevel
	}
	status := m.currentStatus
	m.mu.Unlock()

	if !ok {
		logrus.Infof("using last known battery level: %d%%", level)
	}

	warning := m.conf.WarningThreshold()
	critical := m.conf.CriticalThreshold()
	charging := m.conf.ChargingThreshold()

	return types.BatteryInfo{
		CurrentLevel:      level,
		Status:            status,
		WarningThreshold:  warning,
		CriticalThreshold: critical,
		ChargingThreshold: charging,
		IsLow:             level <= warning,
		IsCritical:        level <= critical,
	}
}

// ResetChargingSpot clears the charging-spot fields. Call after takeoff:
// a detection from a previous flight is meaningless once airborne.
func (m *Monitor) ResetChargingSpot() {
	m.mu.Lock()
	m.chargingSpotFound = false
	m.chargingSpotPosition = nil
	m.mu.Unlock()

	logrus.Info("charging spot status reset")
}

// SetCharging applies the external docked signal. Docking moves the
// status to charging regardless of level; undocking reclassifies from
// the last cached level. Transitions fire the usual callbacks.
func (m *Monitor) SetCharging(docked bool) {
	newStatus := types.BatteryCharging
	if !docked {
		m.mu.Lock()
		level := m.lastBatteryLevel
		m.mu.Unlock()
		newStatus = Classify(level, m.conf.WarningThreshold(), m.conf.CriticalThreshold(), m.conf.ChargingThreshold())
	}

	m.mu.Lock()
	m.charging = docked
	old := m.currentStatus
	if newStatus == old {
		m.mu.Unlock()
		return
	}
	m.currentStatus = newStatus
	level := m.lastBatteryLevel
	m.mu.Unlock()

	logrus.Infof("battery status changed: %s -> %s (docked=%t)", old, newStatus, docked)

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
}
