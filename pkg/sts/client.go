package sts

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// Settle delay between the EEPROM writes of an id change.
	eepromSettle = 10 * time.Millisecond

	lockOpen   byte = 0
	lockClosed byte = 1
)

// Client is a register-level client for STS3215 servos on one bus.
//
// A Client is exclusively owned by one arm instance and driven from one
// goroutine; it performs no internal locking. Read operations block the
// caller up to the configured timeout.
type Client struct {
	transport Transport
	timeout   time.Duration
	log       *logrus.Logger
	closed    bool
}

// ClientConfig holds configuration for creating a new Client.
type ClientConfig struct {
	// Transport is the underlying communication transport.
	// If nil, Port must be specified to open a serial connection.
	Transport Transport

	// Port is the serial port path (e.g. "/dev/ttyACM0").
	// Ignored if Transport is provided.
	Port string

	// BaudRate is the communication speed. Default is 1000000.
	BaudRate int

	// Timeout bounds the wait for a response. Default is 50ms.
	Timeout time.Duration

	// Logger receives servo status-flag warnings. Defaults to the
	// standard logger.
	Logger *logrus.Logger
}

// NewClient creates a new bus client with the given configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 50 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	transport := cfg.Transport
	if transport == nil {
		if cfg.Port == "" {
			return nil, errors.New("either Transport or Port must be specified")
		}
		var err error
		transport, err = OpenSerial(SerialConfig{
			Port:     cfg.Port,
			BaudRate: cfg.BaudRate,
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
	}

	return &Client{
		transport: transport,
		timeout:   cfg.Timeout,
		log:       cfg.Logger,
	}, nil
}

// Close closes the client and its transport.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.transport.Close()
}

// Ping reports whether a servo answers at the given id.
func (c *Client) Ping(id int) bool {
	if err := validateID(id); err != nil {
		return false
	}
	if err := c.send(PingPacket(byte(id))); err != nil {
		return false
	}
	_, err := c.readResponse(byte(id))
	return err == nil
}

// ReadRegister reads length bytes starting at address.
func (c *Client) ReadRegister(id int, address byte, length int) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	if err := c.send(ReadPacket(byte(id), address, byte(length))); err != nil {
		return nil, &ServoError{ID: id, Op: "read", Err: err}
	}

	resp, err := c.readResponse(byte(id))
	if err != nil {
		return nil, &ServoError{ID: id, Op: "read", Err: err}
	}
	if len(resp.Params) != length {
		return nil, &ServoError{ID: id, Op: "read", Err: fmt.Errorf("%w: got %d of %d param bytes", ErrTruncated, len(resp.Params), length)}
	}

	return resp.Params, nil
}

// ReadPosition reads the present position as a raw count in [0, 4095].
func (c *Client) ReadPosition(id int) (int, error) {
	data, err := c.ReadRegister(id, RegPresentPosition, 2)
	if err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint16(data)), nil
}

// Feedback is one combined position/speed/load sample.
type Feedback struct {
	Position int // raw count in [0, 4095]
	Speed    int // signed, steps per second
	Load     int // signed, per mille of stall torque
}

// ReadFeedback reads position, speed and load in a single exchange.
// Speed and load arrive as unsigned 16-bit values and are converted to
// two's-complement.
func (c *Client) ReadFeedback(id int) (Feedback, error) {
	data, err := c.ReadRegister(id, RegPresentPosition, 6)
	if err != nil {
		return Feedback{}, err
	}
	return Feedback{
		Position: int(binary.LittleEndian.Uint16(data[0:2])),
		Speed:    signed16(int(binary.LittleEndian.Uint16(data[2:4]))),
		Load:     signed16(int(binary.LittleEndian.Uint16(data[4:6]))),
	}, nil
}

// ReadVoltage reads the supply voltage in tenths of a volt.
func (c *Client) ReadVoltage(id int) (int, error) {
	data, err := c.ReadRegister(id, RegPresentVoltage, 1)
	if err != nil {
		return 0, err
	}
	return int(data[0]), nil
}

// ReadTemperature reads the servo temperature in degrees Celsius.
func (c *Client) ReadTemperature(id int) (int, error) {
	data, err := c.ReadRegister(id, RegPresentTemp, 1)
	if err != nil {
		return 0, err
	}
	return int(data[0]), nil
}

// EnableTorque switches torque on or off. With torque off the servo is
// backdrivable and only reports position.
func (c *Client) EnableTorque(id int, enable bool) error {
	if err := validateID(id); err != nil {
		return err
	}

	var val byte
	if enable {
		val = 1
	}
	if err := c.send(WritePacket(byte(id), RegTorqueEnable, []byte{val})); err != nil {
		return &ServoError{ID: id, Op: "torque", Err: err}
	}
	return nil
}

// WriteGoalPosition commands the servo to move to position at the given
// speed and acceleration. Position is clamped to [0, 4095]; speed 0 means
// maximum speed, acceleration 0 means maximum acceleration.
func (c *Client) WriteGoalPosition(id, position, speed, acceleration int) error {
	if err := validateID(id); err != nil {
		return err
	}

	position = min(max(position, 0), MaxPosition)

	if acceleration != 0 {
		if err := c.send(WritePacket(byte(id), RegAcceleration, []byte{byte(acceleration)})); err != nil {
			return &ServoError{ID: id, Op: "goal", Err: err}
		}
	}

	// Goal position and goal speed are adjacent registers, written in one go.
	data := make([]byte, 4)
	binary.LittleEndian.PutUint16(data[0:2], uint16(position))
	binary.LittleEndian.PutUint16(data[2:4], uint16(speed))

	if err := c.send(WritePacket(byte(id), RegGoalPosition, data)); err != nil {
		return &ServoError{ID: id, Op: "goal", Err: err}
	}
	return nil
}

// ChangeID reprograms a servo's bus id: unlock EEPROM, write the new id,
// lock EEPROM, with a short settle delay between writes.
//
// The sequence is not atomic. A mid-sequence failure leaves the id and lock
// state indeterminate; callers must Ping the new id afterwards to confirm
// the outcome rather than trust a nil return.
func (c *Client) ChangeID(oldID, newID int) error {
	if err := validateID(oldID); err != nil {
		return err
	}
	if err := validateID(newID); err != nil {
		return err
	}
	if oldID == newID {
		return fmt.Errorf("%w: old and new id are both %d", ErrInvalidID, oldID)
	}

	if err := c.send(WritePacket(byte(oldID), RegLock, []byte{lockOpen})); err != nil {
		return &ServoError{ID: oldID, Op: "unlock", Err: err}
	}
	time.Sleep(eepromSettle)

	if err := c.send(WritePacket(byte(oldID), RegID, []byte{byte(newID)})); err != nil {
		return &ServoError{ID: oldID, Op: "write id", Err: err}
	}
	time.Sleep(eepromSettle)

	if err := c.send(WritePacket(byte(newID), RegLock, []byte{lockClosed})); err != nil {
		return &ServoError{ID: newID, Op: "lock", Err: err}
	}
	time.Sleep(eepromSettle)

	return nil
}

// Scan pings every id in [startID, endID] and returns the ids that answered.
func (c *Client) Scan(ctx context.Context, startID, endID int) ([]int, error) {
	if startID < 0 || endID > MaxServoID || startID > endID {
		return nil, fmt.Errorf("%w: scan range %d to %d", ErrInvalidID, startID, endID)
	}

	var found []int
	for id := startID; id <= endID; id++ {
		select {
		case <-ctx.Done():
			return found, ctx.Err()
		default:
		}
		if c.Ping(id) {
			found = append(found, id)
		}
	}
	return found, nil
}

func validateID(id int) error {
	if id < 0 || id > MaxServoID {
		return fmt.Errorf("%w: %d (valid range 0-%d)", ErrInvalidID, id, MaxServoID)
	}
	return nil
}

// send transmits one instruction packet. Pending input is discarded first
// so a response left over from an earlier exchange is never mistaken for
// the next one. Writes to a closed transport fail with ErrPortClosed and
// are not retried.
func (c *Client) send(packet []byte) error {
	if c.closed {
		return ErrPortClosed
	}

	c.transport.Flush()

	n, err := c.transport.Write(packet)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPortClosed, err)
	}
	if n != len(packet) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrPortClosed, n, len(packet))
	}
	return nil
}

// readResponse receives one status packet addressed from expectID.
//
// The stream is scanned byte by byte for two consecutive sync bytes; any
// other byte resets the match, which re-synchronizes after line noise or a
// misaligned read. The whole scan is bounded by the client timeout measured
// from scan start.
func (c *Client) readResponse(expectID byte) (Response, error) {
	deadline := time.Now().Add(c.timeout)

	if err := c.syncHeader(deadline); err != nil {
		return Response{}, err
	}

	meta := make([]byte, 2) // id, length
	if err := c.readFull(meta, deadline); err != nil {
		return Response{}, fmt.Errorf("%w: reading id and length", ErrTruncated)
	}
	id, length := meta[0], int(meta[1])
	if length < 2 {
		return Response{}, fmt.Errorf("%w: length byte %d", ErrTruncated, length)
	}

	// length counts the remaining body: error + params + checksum.
	body := make([]byte, length)
	if err := c.readFull(body, deadline); err != nil {
		return Response{}, fmt.Errorf("%w: reading %d body bytes", ErrTruncated, length)
	}

	if id != expectID {
		return Response{}, fmt.Errorf("%w: expected %d, got %d", ErrIDMismatch, expectID, id)
	}

	resp := Response{
		ID:     id,
		Status: StatusError(body[0]),
		Params: body[1 : length-1],
	}

	sum := []byte{id, byte(length)}
	sum = append(sum, body[:length-1]...)
	resp.ChecksumOK = Checksum(sum) == body[length-1]

	// The status byte is informational: some firmware sets benign flags
	// during normal operation, so it never invalidates the payload.
	if resp.Status.HasError() {
		c.log.WithFields(logrus.Fields{
			"servo":  id,
			"status": resp.Status.String(),
		}).Warn("servo reported status flags")
	}

	return resp, nil
}

// syncHeader consumes the stream until two consecutive sync bytes are seen.
func (c *Client) syncHeader(deadline time.Time) error {
	var buf [1]byte
	matched := 0

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrTimeout
		}
		c.transport.SetReadTimeout(remaining)

		n, err := c.transport.Read(buf[:])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		if n == 0 {
			continue
		}

		if buf[0] == syncByte {
			matched++
		} else {
			matched = 0
		}
		if matched == 2 {
			return nil
		}
	}
}

// readFull fills p from the transport, bounded by the deadline.
func (c *Client) readFull(p []byte, deadline time.Time) error {
	total := 0
	for total < len(p) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrTruncated
		}
		c.transport.SetReadTimeout(remaining)

		n, err := c.transport.Read(p[total:])
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		total += n
	}
	return nil
}
