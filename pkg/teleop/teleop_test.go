package teleop

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type fakeLeader struct {
	ids        []int
	angles     map[int]float64
	calibErr   error
	calibrated int
	torque     []bool
	closed     int
	closeErr   error
}

func (f *fakeLeader) ServoIDs() []int          { return f.ids }
func (f *fakeLeader) Angles() map[int]float64  { return f.angles }
func (f *fakeLeader) CalibrateHome() error     { f.calibrated++; return f.calibErr }
func (f *fakeLeader) SetTorque(on bool) error  { f.torque = append(f.torque, on); return nil }
func (f *fakeLeader) Close() error             { f.closed++; return f.closeErr }

type fakeFollower struct {
	connectErr error
	connected  int
	actions    [][NumAxes]float64
	sendErr    error
	closed     int
	closeErr   error
}

func (f *fakeFollower) Connect() error { f.connected++; return f.connectErr }
func (f *fakeFollower) SendAction(a [NumAxes]float64) error {
	f.actions = append(f.actions, a)
	return f.sendErr
}
func (f *fakeFollower) Close() error { f.closed++; return f.closeErr }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func sevenIDs() []int { return []int{1, 2, 3, 4, 5, 6, 7} }

func fullAngles() map[int]float64 {
	return map[int]float64{1: 10, 2: 20, 3: 30, 4: 40, 5: 50, 6: 60, 7: 45}
}

func allOnes() [NumAxes]float64 {
	var d [NumAxes]float64
	for i := range d {
		d[i] = 1
	}
	return d
}

func pairingConfig(leader *fakeLeader, follower *fakeFollower) PairingConfig {
	return PairingConfig{
		Side:            "left",
		OpenLeader:      func() (Leader, error) { return leader, nil },
		Follower:        follower,
		GripperOpenDeg:  0,
		GripperCloseDeg: 90,
		Directions:      allOnes(),
	}
}

func TestNewController_DiscardsFailedPairing(t *testing.T) {
	goodLeader := &fakeLeader{ids: sevenIDs(), angles: fullAngles()}
	goodFollower := &fakeFollower{}

	badFollower := &fakeFollower{connectErr: errors.New("port busy")}
	badLeader := &fakeLeader{ids: sevenIDs()}
	bad := pairingConfig(badLeader, badFollower)
	bad.Side = "right"

	c, err := NewController(ControllerConfig{
		Pairings: []PairingConfig{pairingConfig(goodLeader, goodFollower), bad},
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if len(c.Pairings()) != 1 {
		t.Fatalf("got %d pairings, want 1", len(c.Pairings()))
	}
	if c.Pairings()[0].Side() != "left" {
		t.Errorf("surviving side = %q, want left", c.Pairings()[0].Side())
	}
	// A failed follower connect must still clean up the already-open leader.
	if badLeader.closed != 1 {
		t.Errorf("failed pairing's leader closed %d times, want 1", badLeader.closed)
	}
}

func TestNewController_AllFailed(t *testing.T) {
	follower := &fakeFollower{connectErr: errors.New("no device")}
	_, err := NewController(ControllerConfig{
		Pairings: []PairingConfig{pairingConfig(&fakeLeader{ids: sevenIDs()}, follower)},
		Logger:   quietLogger(),
	})
	if !errors.Is(err, ErrNoPairings) {
		t.Fatalf("err = %v, want ErrNoPairings", err)
	}
}

func TestNewController_LeaderOpenFails(t *testing.T) {
	follower := &fakeFollower{}
	cfg := PairingConfig{
		Side:       "left",
		OpenLeader: func() (Leader, error) { return nil, errors.New("serial open failed") },
		Follower:   follower,
		Directions: allOnes(),
	}
	_, err := NewController(ControllerConfig{Pairings: []PairingConfig{cfg}, Logger: quietLogger()})
	if !errors.Is(err, ErrNoPairings) {
		t.Fatalf("err = %v, want ErrNoPairings", err)
	}
	if follower.connected != 0 {
		t.Errorf("follower connected despite leader failure")
	}
}

func TestNewController_ReleasesLeaderTorque(t *testing.T) {
	leader := &fakeLeader{ids: sevenIDs(), angles: fullAngles()}
	c, err := NewController(ControllerConfig{
		Pairings: []PairingConfig{pairingConfig(leader, &fakeFollower{})},
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if len(leader.torque) != 1 || leader.torque[0] != false {
		t.Errorf("torque calls = %v, want single release", leader.torque)
	}
	if c.Pairings()[0].State() != StateConnected {
		t.Errorf("state = %v, want connected", c.Pairings()[0].State())
	}
}

func TestCalibrate_AbortsOnFirstFailure(t *testing.T) {
	good := &fakeLeader{ids: sevenIDs(), angles: fullAngles()}
	bad := &fakeLeader{ids: sevenIDs(), calibErr: errors.New("joint 3 unreadable")}
	badCfg := pairingConfig(bad, &fakeFollower{})
	badCfg.Side = "right"

	c, err := NewController(ControllerConfig{
		Pairings: []PairingConfig{pairingConfig(good, &fakeFollower{}), badCfg},
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if err := c.Calibrate(); err == nil {
		t.Fatal("Calibrate should fail when any leader fails")
	}
}

func TestStep_SkipsIncompleteSample(t *testing.T) {
	angles := fullAngles()
	delete(angles, 4)
	leader := &fakeLeader{ids: sevenIDs(), angles: angles}
	follower := &fakeFollower{}

	c, err := NewController(ControllerConfig{
		Pairings: []PairingConfig{pairingConfig(leader, follower)},
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	p := c.Pairings()[0]
	status := c.step(p)
	if !status.Skipped {
		t.Error("tick with a missing joint should be skipped")
	}
	if len(follower.actions) != 0 {
		t.Errorf("follower received %d actions, want 0", len(follower.actions))
	}
	if p.Skips() != 1 {
		t.Errorf("skips = %d, want 1", p.Skips())
	}
}

func TestStep_ActionValues(t *testing.T) {
	leader := &fakeLeader{ids: sevenIDs(), angles: fullAngles()}
	follower := &fakeFollower{}

	c, err := NewController(ControllerConfig{
		Pairings: []PairingConfig{pairingConfig(leader, follower)},
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	status := c.step(c.Pairings()[0])
	if status.Skipped {
		t.Fatal("complete sample should not be skipped")
	}
	if len(follower.actions) != 1 {
		t.Fatalf("follower received %d actions, want 1", len(follower.actions))
	}

	got := follower.actions[0]
	wantDeg := []float64{10, 20, 30, 40, 50, 60}
	for i, deg := range wantDeg {
		want := deg * math.Pi / 180
		if math.Abs(got[i]-want) > 1e-9 {
			t.Errorf("axis %d = %v, want %v rad", i, got[i], want)
		}
	}
	// Gripper at 45 deg in a 0..90 range maps to 0.5.
	if math.Abs(got[6]-0.5) > 1e-9 {
		t.Errorf("gripper = %v, want 0.5", got[6])
	}
}

func TestStep_DirectionMultipliers(t *testing.T) {
	leader := &fakeLeader{ids: sevenIDs(), angles: fullAngles()}
	follower := &fakeFollower{}
	cfg := pairingConfig(leader, follower)
	cfg.Directions = [NumAxes]float64{-1, 1, -1, 1, 1, 1, -1}

	c, err := NewController(ControllerConfig{
		Pairings: []PairingConfig{cfg},
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	c.step(c.Pairings()[0])
	got := follower.actions[0]
	if got[0] >= 0 {
		t.Errorf("axis 0 = %v, want negated", got[0])
	}
	if got[1] <= 0 {
		t.Errorf("axis 1 = %v, want positive", got[1])
	}
	if math.Abs(got[6]-(-0.5)) > 1e-9 {
		t.Errorf("gripper = %v, want -0.5", got[6])
	}
}

func TestStep_SendErrorDoesNotStopLoop(t *testing.T) {
	leader := &fakeLeader{ids: sevenIDs(), angles: fullAngles()}
	follower := &fakeFollower{sendErr: errors.New("write: broken pipe")}

	c, err := NewController(ControllerConfig{
		Pairings: []PairingConfig{pairingConfig(leader, follower)},
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	status := c.step(c.Pairings()[0])
	if status.Skipped {
		t.Error("send failure is not a skip")
	}
	// A second tick still dispatches.
	c.step(c.Pairings()[0])
	if len(follower.actions) != 2 {
		t.Errorf("follower received %d actions, want 2", len(follower.actions))
	}
}

func TestMapGripper(t *testing.T) {
	tests := []struct {
		name              string
		deg, open, close  float64
		want              float64
	}{
		{"fully open", 0, 0, 90, 0},
		{"fully closed", 90, 0, 90, 1},
		{"midpoint", 45, 0, 90, 0.5},
		{"clamped below", -10, 0, 90, 0},
		{"clamped above", 120, 0, 90, 1},
		{"inverted range", 30, 90, 0, 2.0 / 3.0},
		{"degenerate range", 45, 50, 50, 0},
		{"negative angles", -45, 0, -90, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapGripper(tt.deg, tt.open, tt.close)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("mapGripper(%v, %v, %v) = %v, want %v", tt.deg, tt.open, tt.close, got, tt.want)
			}
		})
	}
}

func TestRun_ShutdownClosesEverything(t *testing.T) {
	leader := &fakeLeader{ids: sevenIDs(), angles: fullAngles(), closeErr: errors.New("flaky close")}
	follower := &fakeFollower{}

	c, err := NewController(ControllerConfig{
		Pairings: []PairingConfig{pairingConfig(leader, follower)},
		Period:   time.Millisecond,
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if leader.closed != 1 {
		t.Errorf("leader closed %d times, want 1", leader.closed)
	}
	// A failing leader close never blocks the follower cleanup.
	if follower.closed != 1 {
		t.Errorf("follower closed %d times, want 1", follower.closed)
	}
	// Startup release plus shutdown release.
	if len(leader.torque) != 2 || leader.torque[1] != false {
		t.Errorf("torque calls = %v, want two releases", leader.torque)
	}
	if c.Pairings()[0].State() != StateStopped {
		t.Errorf("state = %v, want stopped", c.Pairings()[0].State())
	}
	if len(follower.actions) == 0 {
		t.Error("loop never dispatched an action")
	}
}

func TestSnapshots_DropOld(t *testing.T) {
	c := &Controller{stateCh: make(chan Snapshot, 1), log: quietLogger()}
	c.publish(Snapshot{TickDuration: time.Millisecond})
	c.publish(Snapshot{TickDuration: 2 * time.Millisecond})

	got := <-c.Snapshots()
	if got.TickDuration != 2*time.Millisecond {
		t.Errorf("got stale snapshot %v", got.TickDuration)
	}
}
