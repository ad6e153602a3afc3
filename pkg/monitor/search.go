package monitor

import (
	"github.com/sirupsen/logrus"

	"github.com/eaglewings/perch/pkg/search"
	"github.com/eaglewings/perch/pkg/types"
	"github.com/eaglewings/perch/pkg/vision"
)

// ManualChargingSearch runs the search protocol outside the critical
// trigger, with identical semantics and return contract.
func (m *Monitor) ManualChargingSearch() bool {
	logrus.Info("manual charging spot search initiated")
	return m.runSearch()
}

// searchChargingSpot builds a protocol from the current config and runs
// it. Each invocation snapshots the search settings, so a config update
// applies to the next search, never a running one.
func (m *Monitor) searchChargingSpot() bool {
	p := &search.Protocol{
		Drone:            m.drone,
		Frames:           m.frames,
		Detector:         m.detector,
		Timeout:          m.conf.SearchTimeout(),
		ApproachDistance: m.conf.ApproachDistance(),
		OnDetected:       m.recordDetection,
		Hub:              m.hub,
	}
	return p.Run()
}

// recordDetection stores the charging-spot position under the guard.
func (m *Monitor) recordDetection(d vision.Detection) {
	m.mu.Lock()
	m.chargingSpotFound = true
	m.chargingSpotPosition = &types.Point{X: d.Center.X, Y: d.Center.Y}
	m.mu.Unlock()
}
