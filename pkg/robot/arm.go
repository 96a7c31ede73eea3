package robot

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mkygogo/leader-arm-st3215/pkg/sts"
)

// Errors reported by the arm layer.
var (
	// ErrCalibrationAborted means a home calibration pass saw at least one
	// unreadable servo and left the stored offsets untouched.
	ErrCalibrationAborted = errors.New("calibration aborted, prior offsets kept")
	// ErrInvalidConfig means a rejected calibration or id setting.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Delay between per-servo torque commands so none are dropped on the
// half-duplex bus.
const torqueSettle = 5 * time.Millisecond

// LeaderArm is a torque-released arm the operator moves by hand. It owns
// one bus client and one calibration store; a failed position read degrades
// to the unavailable sentinel rather than an error, so a noisy bus never
// breaks the read path.
type LeaderArm struct {
	client *sts.Client
	ids    []int
	cal    *Calibration
	log    *logrus.Logger
}

// ArmConfig holds configuration for opening a leader arm.
type ArmConfig struct {
	// Port is the serial port path. Ignored if Transport is set.
	Port string

	// Transport overrides the serial connection, for tests.
	Transport sts.Transport

	// BaudRate defaults to 1000000.
	BaudRate int

	// Timeout bounds each servo exchange. Default 50ms.
	Timeout time.Duration

	// ServoIDs lists the joint servos in order. Defaults to ids 1-7.
	ServoIDs []int

	// CalibrationPath is the JSON file holding this arm's offsets and
	// directions. Required: each arm needs its own file.
	CalibrationPath string

	Logger *logrus.Logger
}

// NewLeaderArm opens the bus and loads calibration state.
func NewLeaderArm(cfg ArmConfig) (*LeaderArm, error) {
	if cfg.CalibrationPath == "" {
		return nil, fmt.Errorf("%w: calibration path is required", ErrInvalidConfig)
	}
	if len(cfg.ServoIDs) == 0 {
		cfg.ServoIDs = ServoIDs()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	client, err := sts.NewClient(sts.ClientConfig{
		Transport: cfg.Transport,
		Port:      cfg.Port,
		BaudRate:  cfg.BaudRate,
		Timeout:   cfg.Timeout,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open leader arm: %w", err)
	}

	return &LeaderArm{
		client: client,
		ids:    cfg.ServoIDs,
		cal:    LoadCalibration(cfg.CalibrationPath, cfg.ServoIDs, cfg.Logger),
		log:    cfg.Logger,
	}, nil
}

// Close closes the arm's bus connection.
func (a *LeaderArm) Close() error {
	return a.client.Close()
}

// Client exposes the underlying bus client for diagnostics tools.
func (a *LeaderArm) Client() *sts.Client {
	return a.client
}

// Calibration returns the arm's calibration store.
func (a *LeaderArm) Calibration() *Calibration {
	return a.cal
}

// ServoIDs returns the configured joint servo ids in order.
func (a *LeaderArm) ServoIDs() []int {
	return a.ids
}

// SetTorque switches torque for every joint servo. Off means the operator
// can backdrive the arm; on locks the current pose.
func (a *LeaderArm) SetTorque(enable bool) error {
	var firstErr error
	for _, id := range a.ids {
		if err := a.client.EnableTorque(id, enable); err != nil && firstErr == nil {
			firstErr = err
		}
		time.Sleep(torqueSettle)
	}
	return firstErr
}

// RawPositions reads the raw encoder count of every joint servo. A servo
// that fails to answer maps to PositionUnavailable; callers must treat that
// as "sample unknown", never as zero.
func (a *LeaderArm) RawPositions() map[int]int {
	positions := make(map[int]int, len(a.ids))
	for _, id := range a.ids {
		pos, err := a.client.ReadPosition(id)
		if err != nil {
			positions[id] = PositionUnavailable
			continue
		}
		positions[id] = pos
	}
	return positions
}

// Angles reads and converts the calibrated angle of every joint servo, in
// degrees. Joints whose reads failed are omitted from the map, so a full
// sample has exactly len(ServoIDs()) entries.
func (a *LeaderArm) Angles() map[int]float64 {
	angles := make(map[int]float64, len(a.ids))
	for id, raw := range a.RawPositions() {
		if deg, ok := a.cal.Angle(id, raw); ok {
			angles[id] = deg
		}
	}
	return angles
}

// CalibrateHome records the current pose as the zero pose: every joint's
// present raw position becomes its home offset, persisted synchronously.
// If any servo is unreadable the pass aborts without touching stored
// offsets, so a transient dropout can never record a spurious home.
func (a *LeaderArm) CalibrateHome() error {
	positions := a.RawPositions()
	for id, raw := range positions {
		if raw == PositionUnavailable {
			return fmt.Errorf("%w: servo %d not responding", ErrCalibrationAborted, id)
		}
	}

	if err := a.cal.SetOffsets(positions); err != nil {
		return err
	}

	a.log.WithField("offsets", positions).Info("home pose calibrated")
	return nil
}

// SetDirection records a joint's direction multiplier (+1 or -1) and
// persists it.
func (a *LeaderArm) SetDirection(id, direction int) error {
	return a.cal.SetDirection(id, direction)
}
