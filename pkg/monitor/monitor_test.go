package monitor

import (
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/eaglewings/perch/pkg/config"
	"github.com/eaglewings/perch/pkg/events"
	"github.com/eaglewings/perch/pkg/types"
	"github.com/eaglewings/perch/pkg/utils/ptr"
	"github.com/eaglewings/perch/pkg/vision"
)

// fakeDrone is a Commander whose battery readings are scripted.
type fakeDrone struct {
	mu     sync.Mutex
	level  int
	err    error
	reads  int
	landed bool
}

func (d *fakeDrone) Connect() error { return nil }
func (d *fakeDrone) BatteryPercentage() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.err != nil {
		return 0, d.err
	}
	return d.level, nil
}
func (d *fakeDrone) setLevel(l int) {
	d.mu.Lock()
	d.level = l
	d.mu.Unlock()
}
func (d *fakeDrone) TakeOff() error { return nil }
func (d *fakeDrone) Land() error {
	d.mu.Lock()
	d.landed = true
	d.mu.Unlock()
	return nil
}
func (d *fakeDrone) MoveForward(int) error    { return nil }
func (d *fakeDrone) RotateClockwise(int) error { return nil }
func (d *fakeDrone) StreamOn() error          { return nil }
func (d *fakeDrone) StreamOff() error         { return nil }
func (d *fakeDrone) End() error               { return nil }

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.NewFileFromConfig(&config.RawFileConfig{
		WarningThreshold:     ptr.To(20),
		CriticalThreshold:    ptr.To(10),
		ChargingThreshold:    ptr.To(5),
		CheckIntervalSeconds: ptr.To(0.01),
	}, "")
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name  string
		level int
		want  types.BatteryStatus
	}{
		{"full", 100, types.BatteryNormal},
		{"above warning", 21, types.BatteryNormal},
		{"at warning", 20, types.BatteryWarning},
		{"between warning and critical", 15, types.BatteryWarning},
		{"at critical", 10, types.BatteryCritical},
		{"below critical", 7, types.BatteryCritical},
		{"at charging threshold", 5, types.BatteryCritical},
		{"empty", 0, types.BatteryCritical},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Classify(c.level, 20, 10, 5); got != c.want {
				t.Errorf("Classify(%d) = %s, want %s", c.level, got, c.want)
			}
		})
	}
}

func TestTransitionsAndCallbacks(t *testing.T) {
	d := &fakeDrone{level: 100}
	m := New(testConfig(t), d, nil, nil, events.NewHub())

	var transitions []types.BatteryStatus
	var criticalEntries, searches int
	m.SetCallbacks(Callbacks{
		BatteryChange: func(_ int, status types.BatteryStatus) {
			transitions = append(transitions, status)
		},
		CriticalEntry: func(int) { criticalEntries++ },
	})
	m.runSearch = func() bool {
		searches++
		return false
	}

	for _, level := range []int{25, 18, 9, 3} {
		m.processBatteryLevel(level)
	}

	want := []types.BatteryStatus{types.BatteryWarning, types.BatteryCritical}
	if len(transitions) != len(want) {
		t.Fatalf("got %d transitions %v, want %v", len(transitions), transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}

	if criticalEntries != 1 {
		t.Errorf("criticalEntries = %d, want 1", criticalEntries)
	}
	// 3% stayed critical: no second transition, no second search.
	if searches != 1 {
		t.Errorf("searches = %d, want 1", searches)
	}
}

func TestTransitionsPublishEvents(t *testing.T) {
	hub := events.NewHub()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	d := &fakeDrone{}
	m := New(testConfig(t), d, nil, nil, hub)
	m.runSearch = func() bool { return false }

	m.processBatteryLevel(18)
	m.processBatteryLevel(9)

	next := func() events.Event {
		t.Helper()
		select {
		case ev := <-sub:
			return ev
		case <-time.After(time.Second):
			t.Fatalf("no event received in time")
			return events.Event{}
		}
	}

	ev := next()
	if ev.Name != events.BatteryTransition {
		t.Fatalf("first event = %s, want %s", ev.Name, events.BatteryTransition)
	}
	payload, err := events.DecodeAs[events.BatteryTransitionEvent](ev)
	if err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.From != string(types.BatteryNormal) || payload.To != string(types.BatteryWarning) || payload.Level != 18 {
		t.Fatalf("unexpected warning transition payload: %+v", payload)
	}

	ev = next()
	if ev.Name != events.BatteryTransition {
		t.Fatalf("second event = %s, want %s", ev.Name, events.BatteryTransition)
	}
	payload, err = events.DecodeAs[events.BatteryTransitionEvent](ev)
	if err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.From != string(types.BatteryWarning) || payload.To != string(types.BatteryCritical) || payload.Level != 9 {
		t.Fatalf("unexpected critical transition payload: %+v", payload)
	}

	ev = next()
	if ev.Name != events.BatteryCritical {
		t.Fatalf("third event = %s, want %s", ev.Name, events.BatteryCritical)
	}
	payload, err = events.DecodeAs[events.BatteryTransitionEvent](ev)
	if err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.To != string(types.BatteryCritical) || payload.Level != 9 {
		t.Fatalf("unexpected critical alert payload: %+v", payload)
	}
}

func TestRecoveryClearsWarning(t *testing.T) {
	d := &fakeDrone{}
	m := New(testConfig(t), d, nil, nil, nil)

	m.processBatteryLevel(15)
	m.processBatteryLevel(50)

	if got := m.Status().BatteryStatus; got != types.BatteryNormal {
		t.Fatalf("status = %s, want normal", got)
	}
}

func TestStartIdempotent(t *testing.T) {
	d := &fakeDrone{level: 80}
	m := New(testConfig(t), d, nil, nil, nil)

	if !m.Start() {
		t.Fatalf("first Start should succeed")
	}
	defer m.Stop()

	if m.Start() {
		t.Fatalf("second Start should report already running")
	}
}

func TestStopWithoutStart(t *testing.T) {
	m := New(testConfig(t), &fakeDrone{}, nil, nil, nil)
	m.Stop() // must not panic or block
}

func TestLoopPollsBattery(t *testing.T) {
	d := &fakeDrone{level: 80}
	m := New(testConfig(t), d, nil, nil, nil)

	m.Start()
	defer m.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Status().BatteryLevel == 80 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("monitor never recorded a battery reading")
}

func TestLoopSurvivesReadErrors(t *testing.T) {
	d := &fakeDrone{err: pkgerrors.New("link down")}
	m := New(testConfig(t), d, nil, nil, nil)

	m.Start()
	defer m.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d.mu.Lock()
		reads := d.reads
		d.mu.Unlock()
		if reads >= 3 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("monitor stopped polling after read errors")
}

func TestThresholdChangeAppliesToNextCycle(t *testing.T) {
	conf := testConfig(t)
	d := &fakeDrone{}
	m := New(conf, d, nil, nil, nil)

	m.processBatteryLevel(25)
	if got := m.Status().BatteryStatus; got != types.BatteryNormal {
		t.Fatalf("status = %s, want normal at 25%%", got)
	}

	if err := conf.Apply(&config.RawFileConfig{WarningThreshold: ptr.To(30)}); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	m.processBatteryLevel(25)
	if got := m.Status().BatteryStatus; got != types.BatteryWarning {
		t.Fatalf("status = %s, want warning after raising threshold", got)
	}
}

func TestBatteryInfoFallsBackToCachedLevel(t *testing.T) {
	d := &fakeDrone{level: 42}
	m := New(testConfig(t), d, nil, nil, nil)

	m.processBatteryLevel(42)

	d.mu.Lock()
	d.err = pkgerrors.New("link down")
	d.mu.Unlock()

	info := m.BatteryInfo()
	if info.CurrentLevel != 42 {
		t.Fatalf("CurrentLevel = %d, want cached 42", info.CurrentLevel)
	}
	if info.IsLow || info.IsCritical {
		t.Fatalf("42%% should be neither low nor critical: %+v", info)
	}
}

func TestBatteryInfoFlags(t *testing.T) {
	d := &fakeDrone{level: 8}
	m := New(testConfig(t), d, nil, nil, nil)

	info := m.BatteryInfo()
	if !info.IsLow || !info.IsCritical {
		t.Fatalf("8%% should be low and critical: %+v", info)
	}
}

func TestSetChargingPinsStatus(t *testing.T) {
	d := &fakeDrone{}
	m := New(testConfig(t), d, nil, nil, nil)

	m.processBatteryLevel(50)
	m.SetCharging(true)

	if got := m.Status().BatteryStatus; got != types.BatteryCharging {
		t.Fatalf("status = %s, want charging", got)
	}

	// Threshold transitions are suppressed while docked.
	m.processBatteryLevel(8)
	if got := m.Status().BatteryStatus; got != types.BatteryCharging {
		t.Fatalf("status = %s, want charging while docked", got)
	}

	// Undocking reclassifies from the last cached level.
	m.SetCharging(false)
	if got := m.Status().BatteryStatus; got != types.BatteryCritical {
		t.Fatalf("status = %s, want critical after undocking at 8%%", got)
	}
}

func TestResetChargingSpot(t *testing.T) {
	m := New(testConfig(t), &fakeDrone{}, nil, nil, nil)

	m.recordDetection(vision.Detection{ID: 7, Center: types.Point{X: 480, Y: 360}})

	st := m.Status()
	if !st.ChargingSpotFound || st.ChargingSpotPosition == nil {
		t.Fatalf("expected charging spot recorded: %+v", st)
	}

	m.ResetChargingSpot()

	st = m.Status()
	if st.ChargingSpotFound || st.ChargingSpotPosition != nil {
		t.Fatalf("expected charging spot cleared: %+v", st)
	}
}

func TestStatusCopiesPosition(t *testing.T) {
	m := New(testConfig(t), &fakeDrone{}, nil, nil, nil)
	m.recordDetection(vision.Detection{ID: 7, Center: types.Point{X: 1, Y: 2}})

	st := m.Status()
	st.ChargingSpotPosition.X = 999

	if m.Status().ChargingSpotPosition.X != 1 {
		t.Fatalf("Status must return a copy of the position")
	}
}

func TestCallbackPanicDoesNotPropagate(t *testing.T) {
	m := New(testConfig(t), &fakeDrone{}, nil, nil, nil)
	m.SetCallbacks(Callbacks{
		BatteryChange: func(int, types.BatteryStatus) { panic("handler bug") },
	})

	m.processBatteryLevel(15) // must not panic
}
