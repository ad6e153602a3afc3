// Package sim provides a simulated camera drone for development and soak
// testing. The vehicle sits on a virtual bench: rotating changes its
// heading, a single marker sits at a fixed bearing, and the battery
// either follows a linear drain model or mirrors the host machine's
// battery so the monitor can be exercised against a real, slowly
// draining source.
package sim

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/distatus/battery"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/eaglewings/perch/pkg/drone"
)

const (
	// fovDeg is the horizontal field of view of the simulated camera.
	fovDeg = 60
	// frameWidth is the virtual frame width used for marker centroids.
	frameWidth  = 960.0
	frameHeight = 720.0
)

var (
	_ drone.Commander   = &Drone{}
	_ drone.FrameSource = &Drone{}
)

// Drone is the simulated vehicle.
type Drone struct {
	mu             sync.Mutex
	connected      bool
	flying         bool
	streaming      bool
	level          float64
	drainPerSecond float64
	lastDrain      time.Time
	heading        int
	markerBearing  int
	markerID       int
	useHostBattery bool
}

// Option configures the simulated drone.
type Option func(*Drone)

// WithHostBattery makes BatteryPercentage report the host machine's
// battery instead of the drain model.
func WithHostBattery() Option {
	return func(d *Drone) { d.useHostBattery = true }
}

// WithDrainRate sets the battery drain in percent per second.
func WithDrainRate(perSecond float64) Option {
	return func(d *Drone) { d.drainPerSecond = perSecond }
}

// WithMarker places the charging-spot marker at the given bearing.
func WithMarker(bearingDeg, markerID int) Option {
	return func(d *Drone) {
		d.markerBearing = normalizeDeg(bearingDeg)
		d.markerID = markerID
	}
}

func New(opts ...Option) *Drone {
	d := &Drone{
		level:          100,
		drainPerSecond: 0.05,
		markerBearing:  90,
		markerID:       7,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Drone) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = true
	d.lastDrain = time.Now()
	logrus.Debug("sim drone connected")
	return nil
}

func (d *Drone) BatteryPercentage() (int, error) {
	if d.useHostBattery {
		return hostBatteryPercentage()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return 0, pkgerrors.New("not connected")
	}

	d.drainLocked()
	return int(math.Round(d.level)), nil
}

// drainLocked advances the drain model. Flying drains at the configured
// rate, idling at a tenth of it.
func (d *Drone) drainLocked() {
	now := time.Now()
	if d.lastDrain.IsZero() {
		d.lastDrain = now
		return
	}
	elapsed := now.Sub(d.lastDrain).Seconds()
	d.lastDrain = now

	rate := d.drainPerSecond
	if !d.flying {
		rate /= 10
	}
	d.level -= rate * elapsed
	if d.level < 0 {
		d.level = 0
	}
}

// SetBatteryLevel overrides the simulated level, for tests and demos.
func (d *Drone) SetBatteryLevel(level float64) {
	d.mu.Lock()
	d.level = level
	d.lastDrain = time.Now()
	d.mu.Unlock()
}

func (d *Drone) TakeOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return pkgerrors.New("not connected")
	}
	d.flying = true
	logrus.Debug("sim drone took off")
	return nil
}

func (d *Drone) Land() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return pkgerrors.New("not connected")
	}
	d.flying = false
	logrus.Debug("sim drone landed")
	return nil
}

func (d *Drone) MoveForward(distanceCm int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return pkgerrors.New("not connected")
	}
	logrus.Debugf("sim drone moved forward %dcm", distanceCm)
	return nil
}

func (d *Drone) RotateClockwise(degrees int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return pkgerrors.New("not connected")
	}
	d.heading = normalizeDeg(d.heading + degrees)
	logrus.Debugf("sim drone rotated to heading %d", d.heading)
	return nil
}

func (d *Drone) StreamOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return pkgerrors.New("not connected")
	}
	d.streaming = true
	return nil
}

func (d *Drone) StreamOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.streaming = false
	return nil
}

func (d *Drone) End() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flying = false
	d.streaming = false
	d.connected = false
	return nil
}

// LatestFrame returns a synthetic frame while streaming. The payload
// encodes the heading; only the paired sim Detector understands it.
func (d *Drone) LatestFrame() (drone.Frame, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.streaming {
		return nil, false
	}
	return drone.Frame(fmt.Sprintf("sim-frame heading=%d", d.heading)), true
}

// markerOffset returns the signed angular offset from the current
// heading to the marker, and whether the marker is inside the field of
// view.
func (d *Drone) markerOffset() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.streaming {
		return 0, false
	}

	diff := normalizeDeg(d.markerBearing - d.heading)
	if diff > 180 {
		diff -= 360
	}
	if diff < -fovDeg/2 || diff > fovDeg/2 {
		return 0, false
	}
	return diff, true
}

func normalizeDeg(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}

func hostBatteryPercentage() (int, error) {
	bats, err := battery.GetAll()
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to read host battery")
	}
	if len(bats) == 0 {
		return 0, pkgerrors.New("no host battery found")
	}

	b := bats[0]
	if b.Full <= 0 {
		return 0, pkgerrors.New("host battery reports no capacity")
	}
	return int(math.Round(b.Current / b.Full * 100)), nil
}
