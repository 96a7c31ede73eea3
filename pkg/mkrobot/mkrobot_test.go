package mkrobot

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type fakeConn struct {
	bytes.Buffer
	closed int
}

func (f *fakeConn) Close() error {
	f.closed++
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestRobot_SendAction(t *testing.T) {
	conn := &fakeConn{}
	robot := New(Config{Conn: conn, Logger: quietLogger()})

	if err := robot.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	conn.Reset()

	action := [NumAxes]float64{0.1, -0.2, 0.3, 0, 1.5, -1.5, 0.75}
	if err := robot.SendAction(action); err != nil {
		t.Fatalf("SendAction failed: %v", err)
	}

	line := conn.String()
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("frame not newline-terminated: %q", line)
	}

	var cmd struct {
		Cmd    string    `json:"cmd"`
		Joints []float64 `json:"joints"`
	}
	if err := json.Unmarshal([]byte(line), &cmd); err != nil {
		t.Fatalf("frame not valid JSON: %v", err)
	}
	if cmd.Cmd != "action" {
		t.Errorf("cmd: got %q, want action", cmd.Cmd)
	}
	if len(cmd.Joints) != NumAxes {
		t.Fatalf("joints: got %d values, want %d", len(cmd.Joints), NumAxes)
	}
	for i, v := range action {
		if cmd.Joints[i] != v {
			t.Errorf("joint %d: got %v, want %v", i, cmd.Joints[i], v)
		}
	}
}

func TestRobot_SendAction_BeforeConnect(t *testing.T) {
	robot := New(Config{Logger: quietLogger()})

	err := robot.SendAction([NumAxes]float64{})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestRobot_Close_AfterPartialConnect(t *testing.T) {
	robot := New(Config{Logger: quietLogger()})

	// Never connected: Close must be a safe no-op, repeatedly.
	if err := robot.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := robot.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	conn := &fakeConn{}
	robot = New(Config{Conn: conn, Logger: quietLogger()})
	if err := robot.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	robot.Close()
	robot.Close()
	if conn.closed != 1 {
		t.Errorf("underlying conn closed %d times, want 1", conn.closed)
	}
}
