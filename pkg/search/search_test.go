package search

import (
	"sync"
	"testing"
	"time"

	"github.com/eaglewings/perch/pkg/drone"
	"github.com/eaglewings/perch/pkg/events"
	"github.com/eaglewings/perch/pkg/types"
	"github.com/eaglewings/perch/pkg/vision"
)

// fakeVehicle records movement commands.
type fakeVehicle struct {
	mu       sync.Mutex
	rotates  int
	forwards int
	moveErr  error
}

func (v *fakeVehicle) Connect() error              { return nil }
func (v *fakeVehicle) BatteryPercentage() (int, error) { return 50, nil }
func (v *fakeVehicle) TakeOff() error              { return nil }
func (v *fakeVehicle) Land() error                 { return nil }
func (v *fakeVehicle) MoveForward(int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.forwards++
	return v.moveErr
}
func (v *fakeVehicle) RotateClockwise(int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rotates++
	return nil
}
func (v *fakeVehicle) StreamOn() error  { return nil }
func (v *fakeVehicle) StreamOff() error { return nil }
func (v *fakeVehicle) End() error       { return nil }

func (v *fakeVehicle) counts() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rotates, v.forwards
}

// fakeFrames serves a static frame, or none.
type fakeFrames struct {
	available bool
}

func (f *fakeFrames) LatestFrame() (drone.Frame, bool) {
	if !f.available {
		return nil, false
	}
	return drone.Frame("frame"), true
}

// scriptedDetector returns one scripted result per Detect call, then
// repeats the last one.
type scriptedDetector struct {
	mu      sync.Mutex
	results [][]vision.Detection
	calls   int
}

func (d *scriptedDetector) Detect([]byte) ([]vision.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	d.calls++
	if i >= len(d.results) {
		i = len(d.results) - 1
	}
	if i < 0 {
		return nil, nil
	}
	return d.results[i], nil
}

var marker = []vision.Detection{{ID: 7, Center: types.Point{X: 480, Y: 360}}}

func fastProtocol(v *fakeVehicle, frames drone.FrameSource, det vision.Detector) *Protocol {
	return &Protocol{
		Drone:            v,
		Frames:           frames,
		Detector:         det,
		Timeout:          200 * time.Millisecond,
		ApproachDistance: 30,
		FrameWait:        time.Millisecond,
		ScanPause:        time.Millisecond,
		SettleDelay:      time.Millisecond,
		Retries:          1,
		RetryDelay:       time.Millisecond,
	}
}

func TestRunFailsFastWithoutCamera(t *testing.T) {
	p := fastProtocol(&fakeVehicle{}, nil, nil)
	if p.Run() {
		t.Fatalf("expected failure without camera")
	}
}

func TestRunTimesOutWithoutFrames(t *testing.T) {
	v := &fakeVehicle{}
	p := fastProtocol(v, &fakeFrames{available: false}, &scriptedDetector{})

	start := time.Now()
	if p.Run() {
		t.Fatalf("expected failure with no frames")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("search did not respect timeout, took %v", elapsed)
	}

	rotates, _ := v.counts()
	if rotates != 0 {
		t.Fatalf("must not rotate without frames, got %d rotations", rotates)
	}
}

func TestRunScansUntilTimeout(t *testing.T) {
	v := &fakeVehicle{}
	det := &scriptedDetector{results: [][]vision.Detection{nil}}
	p := fastProtocol(v, &fakeFrames{available: true}, det)

	if p.Run() {
		t.Fatalf("expected failure when no marker is ever seen")
	}

	rotates, forwards := v.counts()
	if rotates == 0 {
		t.Fatalf("expected scan rotations")
	}
	if forwards != 0 {
		t.Fatalf("must not approach without a detection, got %d", forwards)
	}
}

func TestRunApproachesDetectedMarker(t *testing.T) {
	v := &fakeVehicle{}
	det := &scriptedDetector{results: [][]vision.Detection{marker}}
	p := fastProtocol(v, &fakeFrames{available: true}, det)

	var recorded []vision.Detection
	p.OnDetected = func(d vision.Detection) { recorded = append(recorded, d) }

	if !p.Run() {
		t.Fatalf("expected success when marker stays in view")
	}

	_, forwards := v.counts()
	if forwards != 1 {
		t.Fatalf("expected exactly one forward hop, got %d", forwards)
	}
	if len(recorded) < 2 {
		t.Fatalf("expected detections recorded before and after approach, got %d", len(recorded))
	}
	if recorded[0].ID != 7 {
		t.Fatalf("unexpected marker id %d", recorded[0].ID)
	}
}

func TestRunContinuesAfterFailedApproach(t *testing.T) {
	v := &fakeVehicle{}
	// Marker seen on the first scan, gone after the hop and forever after.
	det := &scriptedDetector{results: [][]vision.Detection{marker, nil}}
	p := fastProtocol(v, &fakeFrames{available: true}, det)

	if p.Run() {
		t.Fatalf("expected failure when marker vanishes after approach")
	}

	rotates, _ := v.counts()
	if rotates == 0 {
		t.Fatalf("expected scanning to continue after the failed approach")
	}
}

func TestRunFailsWhenMoveForwardFails(t *testing.T) {
	v := &fakeVehicle{moveErr: errForward}
	det := &scriptedDetector{results: [][]vision.Detection{marker}}
	p := fastProtocol(v, &fakeFrames{available: true}, det)

	if p.Run() {
		t.Fatalf("expected failure when the forward hop never succeeds")
	}
}

var errForward = &forwardError{}

type forwardError struct{}

func (*forwardError) Error() string { return "motor fault" }

func collectEvent(t *testing.T, sub chan events.Event) events.Event {
	t.Helper()
	select {
	case ev := <-sub:
		return ev
	case <-time.After(time.Second):
		t.Fatalf("no event received in time")
		return events.Event{}
	}
}

func TestRunPublishesLifecycleEvents(t *testing.T) {
	hub := events.NewHub()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	v := &fakeVehicle{}
	det := &scriptedDetector{results: [][]vision.Detection{marker}}
	p := fastProtocol(v, &fakeFrames{available: true}, det)
	p.Hub = hub

	if !p.Run() {
		t.Fatalf("expected success when marker stays in view")
	}

	started := collectEvent(t, sub)
	if started.Name != events.SearchStarted {
		t.Fatalf("first event = %s, want %s", started.Name, events.SearchStarted)
	}
	startPayload, err := events.DecodeAs[events.SearchEvent](started)
	if err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if startPayload.Session == "" {
		t.Fatalf("search events must carry a session id")
	}

	found := collectEvent(t, sub)
	if found.Name != events.SearchMarkerFound {
		t.Fatalf("second event = %s, want %s", found.Name, events.SearchMarkerFound)
	}
	foundPayload, err := events.DecodeAs[events.SearchEvent](found)
	if err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if foundPayload.Session != startPayload.Session {
		t.Fatalf("session id changed mid-search: %q vs %q", foundPayload.Session, startPayload.Session)
	}
	if foundPayload.MarkerID != 7 || !foundPayload.Found {
		t.Fatalf("unexpected marker-found payload: %+v", foundPayload)
	}

	finished := collectEvent(t, sub)
	if finished.Name != events.SearchFinished {
		t.Fatalf("third event = %s, want %s", finished.Name, events.SearchFinished)
	}
	finishedPayload, err := events.DecodeAs[events.SearchEvent](finished)
	if err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if finishedPayload.Session != startPayload.Session || !finishedPayload.Found {
		t.Fatalf("unexpected finished payload: %+v", finishedPayload)
	}
}

func TestRunPublishesFinishedOnTimeout(t *testing.T) {
	hub := events.NewHub()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	det := &scriptedDetector{results: [][]vision.Detection{nil}}
	p := fastProtocol(&fakeVehicle{}, &fakeFrames{available: true}, det)
	p.Hub = hub

	if p.Run() {
		t.Fatalf("expected failure when no marker is ever seen")
	}

	started := collectEvent(t, sub)
	if started.Name != events.SearchStarted {
		t.Fatalf("first event = %s, want %s", started.Name, events.SearchStarted)
	}

	finished := collectEvent(t, sub)
	if finished.Name != events.SearchFinished {
		t.Fatalf("second event = %s, want %s", finished.Name, events.SearchFinished)
	}
	payload, err := events.DecodeAs[events.SearchEvent](finished)
	if err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.Found {
		t.Fatalf("timed-out search must publish found=false")
	}
}
