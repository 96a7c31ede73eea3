// Package teleop provides the fixed-rate teleoperation control loop
// pairing leader reads with follower writes for one or two arms.
package teleop

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// NumAxes is the width of a follower command vector: six rotational joints
// in radians plus one gripper ratio in [0, 1].
const NumAxes = 7

// DefaultPeriod is the target tick period: 50 Hz.
const DefaultPeriod = 20 * time.Millisecond

// gripperSpanEpsilon guards the gripper mapping: a configured open/close
// span narrower than this is misconfiguration, not a usable range.
const gripperSpanEpsilon = 0.1

// ErrNoPairings means no pairing survived startup; there is nothing to run.
var ErrNoPairings = errors.New("no active pairings")

// Leader is the leader-arm side of a pairing. Implemented by
// robot.LeaderArm.
type Leader interface {
	ServoIDs() []int
	Angles() map[int]float64
	CalibrateHome() error
	SetTorque(enable bool) error
	Close() error
}

// Follower is the follower-arm side of a pairing. Implemented by
// mkrobot.Robot.
type Follower interface {
	Connect() error
	SendAction(action [NumAxes]float64) error
	Close() error
}

// State is the lifecycle state of one pairing.
type State int

const (
	StateUninitialized State = iota
	StateConnected
	StateCalibrating
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnected:
		return "connected"
	case StateCalibrating:
		return "calibrating"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PairingConfig describes how to bring up one side.
type PairingConfig struct {
	// Side is the logical name, e.g. "left".
	Side string

	// OpenLeader opens the leader arm. Called once during startup.
	OpenLeader func() (Leader, error)

	// Follower is the unconnected follower client.
	Follower Follower

	// Gripper angle range on the leader, in degrees.
	GripperOpenDeg  float64
	GripperCloseDeg float64

	// Directions is a ±1 multiplier applied across the full output
	// vector.
	Directions [NumAxes]float64
}

// Pairing is one active leader/follower association.
type Pairing struct {
	side     string
	leader   Leader
	follower Follower
	ids      []int

	gripperOpen  float64
	gripperClose float64
	directions   [NumAxes]float64

	state State
	skips uint64
}

// Side returns the pairing's logical name.
func (p *Pairing) Side() string {
	return p.side
}

// State returns the pairing's lifecycle state.
func (p *Pairing) State() State {
	return p.state
}

// Skips returns how many ticks were skipped due to incomplete samples.
func (p *Pairing) Skips() uint64 {
	return p.skips
}

// SideStatus is the per-side outcome of one tick.
type SideStatus struct {
	Angles  map[int]float64
	Action  [NumAxes]float64
	Skipped bool
}

// Snapshot is published after every tick for status display.
type Snapshot struct {
	Time         time.Time
	TickDuration time.Duration
	Sides        map[string]SideStatus
}

// Controller drives all active pairings from a single loop, sequentially
// per tick. Each serial handle is owned by exactly one pairing and touched
// only from this loop, so no locking is involved.
type Controller struct {
	pairings []*Pairing
	period   time.Duration
	log      *logrus.Logger
	stateCh  chan Snapshot
}

// ControllerConfig holds configuration for NewController.
type ControllerConfig struct {
	Pairings []PairingConfig

	// Period is the target tick period. Default 20ms (50 Hz).
	Period time.Duration

	Logger *logrus.Logger
}

// NewController connects every configured pairing. A pairing whose leader
// or follower fails to open is discarded permanently, without retry, and
// the remaining pairings proceed; only zero survivors is fatal.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	c := &Controller{
		period:  cfg.Period,
		log:     cfg.Logger,
		stateCh: make(chan Snapshot, 1),
	}

	for _, pc := range cfg.Pairings {
		pairing, err := connect(pc)
		if err != nil {
			cfg.Logger.WithError(err).WithField("side", pc.Side).Error("pairing discarded")
			continue
		}

		// The leader must be backdrivable before the operator poses it.
		if err := pairing.leader.SetTorque(false); err != nil {
			cfg.Logger.WithError(err).WithField("side", pc.Side).Warn("leader torque release failed")
		}

		cfg.Logger.WithField("side", pc.Side).Info("pairing connected")
		c.pairings = append(c.pairings, pairing)
	}

	if len(c.pairings) == 0 {
		return nil, ErrNoPairings
	}
	return c, nil
}

func connect(pc PairingConfig) (*Pairing, error) {
	leader, err := pc.OpenLeader()
	if err != nil {
		return nil, err
	}

	ids := leader.ServoIDs()
	if len(ids) != NumAxes {
		leader.Close()
		return nil, errors.New("leader must expose six joints and a gripper")
	}

	if err := pc.Follower.Connect(); err != nil {
		leader.Close()
		pc.Follower.Close()
		return nil, err
	}

	return &Pairing{
		side:         pc.Side,
		leader:       leader,
		follower:     pc.Follower,
		ids:          ids,
		gripperOpen:  pc.GripperOpenDeg,
		gripperClose: pc.GripperCloseDeg,
		directions:   pc.Directions,
		state:        StateConnected,
	}, nil
}

// Pairings returns the active pairings.
func (c *Controller) Pairings() []*Pairing {
	return c.pairings
}

// Period returns the target tick period.
func (c *Controller) Period() time.Duration {
	return c.period
}

// Snapshots returns a channel carrying one Snapshot per tick. Stale
// snapshots are dropped when the consumer lags.
func (c *Controller) Snapshots() <-chan Snapshot {
	return c.stateCh
}

// Calibrate records the current pose of every leader as its zero pose.
// The loop may only start once every active pairing calibrated; a single
// failure aborts the whole gate so no arm runs against a stale home.
func (c *Controller) Calibrate() error {
	for _, p := range c.pairings {
		p.state = StateCalibrating
	}
	for _, p := range c.pairings {
		if err := p.leader.CalibrateHome(); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the control loop until ctx is cancelled, then shuts every
// pairing down. Pacing is best-effort: the wall time of the full tick
// across all pairings is measured, the remainder of the period slept, and
// an overrun tick is followed immediately by the next with no catch-up.
func (c *Controller) Run(ctx context.Context) error {
	for _, p := range c.pairings {
		p.state = StateRunning
	}
	c.log.WithField("period", c.period).Info("teleoperation started")

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		default:
		}

		start := time.Now()

		sides := make(map[string]SideStatus, len(c.pairings))
		for _, p := range c.pairings {
			sides[p.side] = c.step(p)
		}

		elapsed := time.Since(start)
		c.publish(Snapshot{Time: start, TickDuration: elapsed, Sides: sides})

		if elapsed < c.period {
			time.Sleep(c.period - elapsed)
		}
	}
}

// step runs one tick for one pairing: sample, map, dispatch. A tick with
// any joint unavailable is skipped outright; the follower never receives a
// partial or stale vector.
func (c *Controller) step(p *Pairing) SideStatus {
	angles := p.leader.Angles()
	if len(angles) != len(p.ids) {
		p.skips++
		c.log.WithFields(logrus.Fields{
			"side": p.side,
			"got":  len(angles),
			"want": len(p.ids),
		}).Debug("incomplete sample, tick skipped")
		return SideStatus{Angles: angles, Skipped: true}
	}

	action := p.buildAction(angles)
	if err := p.follower.SendAction(action); err != nil {
		c.log.WithError(err).WithField("side", p.side).Warn("follower dispatch failed")
	}

	return SideStatus{Angles: angles, Action: action}
}

// buildAction maps a full angle sample to the follower command vector:
// the six rotational joints in radians, the gripper as a [0, 1] ratio,
// then the per-axis direction multipliers across the whole vector.
func (p *Pairing) buildAction(angles map[int]float64) [NumAxes]float64 {
	var action [NumAxes]float64
	for i, id := range p.ids[:NumAxes-1] {
		action[i] = angles[id] * math.Pi / 180
	}
	action[NumAxes-1] = mapGripper(angles[p.ids[NumAxes-1]], p.gripperOpen, p.gripperClose)

	for i := range action {
		action[i] *= p.directions[i]
	}
	return action
}

// mapGripper converts the leader gripper angle to the follower's [0, 1]
// close ratio. The linear map works for either mounting orientation
// (open may be greater or smaller than close). A near-zero span is
// misconfiguration and forces ratio 0 instead of dividing by it.
func mapGripper(deg, open, close float64) float64 {
	span := close - open
	if math.Abs(span) < gripperSpanEpsilon {
		return 0
	}
	ratio := (deg - open) / span
	return math.Min(math.Max(ratio, 0), 1)
}

// shutdown stops every pairing independently: torque released, transports
// closed. A cleanup failure on one pairing never blocks the rest.
func (c *Controller) shutdown() {
	for _, p := range c.pairings {
		if err := p.leader.SetTorque(false); err != nil {
			c.log.WithError(err).WithField("side", p.side).Warn("torque release failed during shutdown")
		}
		if err := p.leader.Close(); err != nil {
			c.log.WithError(err).WithField("side", p.side).Warn("leader close failed")
		}
		if err := p.follower.Close(); err != nil {
			c.log.WithError(err).WithField("side", p.side).Warn("follower close failed")
		}
		p.state = StateStopped
	}
	c.log.Info("teleoperation stopped")
}

func (c *Controller) publish(s Snapshot) {
	select {
	case c.stateCh <- s:
	default:
		// Drop the stale snapshot, keep the fresh one.
		select {
		case <-c.stateCh:
		default:
		}
		c.stateCh <- s
	}
}
