// Package mkrobot is a serial client for the MKRobot follower arm.
//
// The follower consumes command vectors of seven floats: six joint targets
// in radians and a gripper ratio in [0, 1]. Commands are fire-and-forget;
// the robot sends no acknowledgement and none is awaited.
package mkrobot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// ErrNotConnected means SendAction was called before a successful Connect.
var ErrNotConnected = errors.New("mkrobot: not connected")

// NumAxes is the width of a command vector: six joints plus the gripper.
const NumAxes = 7

// Robot drives one MKRobot follower arm over a serial link.
type Robot struct {
	port string
	baud int
	conn io.ReadWriteCloser
	log  *logrus.Logger
}

// Config holds configuration for a follower connection.
type Config struct {
	// Port is the serial port path.
	Port string

	// BaudRate defaults to 115200.
	BaudRate int

	// Conn overrides the serial connection, for tests.
	Conn io.ReadWriteCloser

	Logger *logrus.Logger
}

// New creates an unconnected follower client.
func New(cfg Config) *Robot {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Robot{
		port: cfg.Port,
		baud: cfg.BaudRate,
		conn: cfg.Conn,
		log:  cfg.Logger,
	}
}

// command is one newline-delimited JSON frame on the wire.
type command struct {
	Cmd    string    `json:"cmd"`
	Joints []float64 `json:"joints,omitempty"`
}

// Connect opens the serial link and announces the controller. It fails
// loudly: any open error is returned as-is so a pairing can be discarded
// at startup instead of limping along half-connected.
func (r *Robot) Connect() error {
	if r.conn == nil {
		port, err := serial.Open(r.port, &serial.Mode{BaudRate: r.baud})
		if err != nil {
			return fmt.Errorf("connect follower on %s: %w", r.port, err)
		}
		r.conn = port
	}

	if err := r.writeCommand(command{Cmd: "connect"}); err != nil {
		return fmt.Errorf("announce to follower: %w", err)
	}

	// Give the firmware a moment before the first action frame.
	time.Sleep(100 * time.Millisecond)

	r.log.WithField("port", r.port).Info("follower connected")
	return nil
}

// SendAction dispatches one command vector. No acknowledgement is awaited.
func (r *Robot) SendAction(action [NumAxes]float64) error {
	if r.conn == nil {
		return ErrNotConnected
	}
	return r.writeCommand(command{Cmd: "action", Joints: action[:]})
}

// Close releases the serial link. Safe to call after a partial connect or
// more than once.
func (r *Robot) Close() error {
	if r.conn == nil {
		return nil
	}
	conn := r.conn
	r.conn = nil
	return conn.Close()
}

func (r *Robot) writeCommand(cmd command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if _, err := r.conn.Write(data); err != nil {
		return fmt.Errorf("write to follower: %w", err)
	}
	return nil
}
