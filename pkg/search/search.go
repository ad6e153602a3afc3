// Package search implements the charging-spot search and approach
// protocol: rotate in place until a marker is detected, then make a
// single forward hop and verify the marker is still in view.
package search

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eaglewings/perch/pkg/drone"
	"github.com/eaglewings/perch/pkg/events"
	"github.com/eaglewings/perch/pkg/exec"
	"github.com/eaglewings/perch/pkg/vision"
)

// Timing of the scan loop. Overridable per Protocol for tests.
const (
	defaultFrameWait   = 100 * time.Millisecond
	defaultScanPause   = time.Second
	defaultSettleDelay = 2 * time.Second
	scanRotationDeg    = 30
)

// Protocol is one search invocation. Configuration is immutable once Run
// is called; build a fresh Protocol per invocation.
type Protocol struct {
	Drone    drone.Commander
	Frames   drone.FrameSource
	Detector vision.Detector

	// Timeout bounds the whole search including approach attempts.
	Timeout time.Duration
	// ApproachDistance is the forward hop in cm once a marker is seen.
	ApproachDistance int

	// OnDetected is called for every confirmed detection so the caller
	// can record the charging-spot position. May be nil.
	OnDetected func(vision.Detection)

	// Hub receives search lifecycle events. May be nil.
	Hub *events.Hub

	// Overridable timing; zero values pick the defaults above.
	FrameWait   time.Duration
	ScanPause   time.Duration
	SettleDelay time.Duration
	Retries     int
	RetryDelay  time.Duration
}

func (p *Protocol) applyDefaults() {
	if p.FrameWait <= 0 {
		p.FrameWait = defaultFrameWait
	}
	if p.ScanPause <= 0 {
		p.ScanPause = defaultScanPause
	}
	if p.SettleDelay <= 0 {
		p.SettleDelay = defaultSettleDelay
	}
	if p.Retries <= 0 {
		p.Retries = exec.DefaultRetries
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = exec.DefaultDelay
	}
}

// Run executes the protocol and reports whether the vehicle reached the
// charging spot. It always returns within Timeout plus one settle delay,
// marker or not. A failed approach does not abort the search; scanning
// continues until the timeout elapses.
func (p *Protocol) Run() bool {
	p.applyDefaults()

	session := uuid.NewString()[:8]
	log := logrus.WithField("search", session)

	if p.Frames == nil || p.Detector == nil {
		log.Error("camera not available for charging spot search")
		return false
	}

	log.Info("starting charging spot search")

	// Best effort: the stream may already be on.
	if err := p.Drone.StreamOn(); err != nil {
		log.Warnf("failed to start video stream: %v", err)
	}

	p.Hub.Publish(events.SearchStarted, events.SearchEvent{
		Session: session,
		Ts:      time.Now().Unix(),
	})

	deadline := time.Now().Add(p.Timeout)
	for time.Now().Before(deadline) {
		frame, ok := p.Frames.LatestFrame()
		if !ok {
			// Still counts against the overall timeout.
			time.Sleep(p.FrameWait)
			continue
		}

		detections, err := p.Detector.Detect(frame)
		if err != nil {
			log.Errorf("marker detection failed: %v", err)
		}

		if len(detections) > 0 {
			first := detections[0]
			log.Infof("marker %d detected at (%.1f, %.1f), approaching charging spot", first.ID, first.Center.X, first.Center.Y)
			if p.OnDetected != nil {
				p.OnDetected(first)
			}
			p.Hub.Publish(events.SearchMarkerFound, events.SearchEvent{
				Session:  session,
				MarkerID: first.ID,
				Found:    true,
				Ts:       time.Now().Unix(),
			})

			if p.approach(log) {
				log.Info("successfully reached charging spot")
				p.Hub.Publish(events.SearchFinished, events.SearchEvent{
					Session:  session,
					MarkerID: first.ID,
					Found:    true,
					Ts:       time.Now().Unix(),
				})
				return true
			}
			log.Warn("failed to approach marker, continuing scan")
		}

		exec.Execute(func() error {
			return p.Drone.RotateClockwise(scanRotationDeg)
		}, p.Retries, p.RetryDelay, "rotate clockwise")

		time.Sleep(p.ScanPause)
	}

	log.Warn("charging spot not found within timeout")
	p.Hub.Publish(events.SearchFinished, events.SearchEvent{
		Session: session,
		Ts:      time.Now().Unix(),
	})
	return false
}

// approach makes the single forward hop and verifies the marker is still
// detected afterwards. There is no closed-loop correction: one hop is the
// entire approach.
func (p *Protocol) approach(log *logrus.Entry) bool {
	ok := exec.Execute(func() error {
		return p.Drone.MoveForward(p.ApproachDistance)
	}, p.Retries, p.RetryDelay, "move forward")
	if !ok {
		return false
	}

	// Allow time for the movement to settle before re-checking.
	time.Sleep(p.SettleDelay)

	frame, ok2 := p.Frames.LatestFrame()
	if !ok2 {
		log.Warn("no frame available after approach")
		return false
	}

	detections, err := p.Detector.Detect(frame)
	if err != nil {
		log.Errorf("marker re-detection failed: %v", err)
		return false
	}
	if len(detections) == 0 {
		return false
	}

	if p.OnDetected != nil {
		p.OnDetected(detections[0])
	}
	return true
}
