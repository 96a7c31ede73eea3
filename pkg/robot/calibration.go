package robot

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"
)

// Calibration defaults: an uncalibrated joint treats mid-range as home and
// rotates in the positive direction.
const (
	DefaultOffset    = 2048
	DefaultDirection = 1
)

const degreesPerStep = 360.0 / 4096.0

// PositionUnavailable marks a raw position sample that could not be read.
// It is a sentinel, never a value: angle math refuses it instead of
// treating it as zero.
const PositionUnavailable = -1

// Calibration holds per-servo home offsets and direction multipliers for
// one leader arm, persisted as JSON at an explicit caller-supplied path.
// Each arm instance owns exactly one calibration file; two arms must never
// share a path.
type Calibration struct {
	path       string
	offsets    map[int]int
	directions map[int]int
	log        *logrus.Logger
}

// calibrationFile is the persisted schema. JSON object keys are strings,
// so the integer servo ids arrive quoted; encoding/json converts them for
// integer-keyed maps.
type calibrationFile struct {
	HomeOffsets map[int]int `json:"home_offsets"`
	Directions  map[int]int `json:"directions"`
}

// LoadCalibration builds the calibration state for the given servo ids,
// overlaying any persisted values from path. Every configured id gets
// defaults first, so a missing or unparsable file never fails construction:
// a parse error is logged and the defaults stand, with no partial merge of
// corrupt data.
func LoadCalibration(path string, ids []int, log *logrus.Logger) *Calibration {
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &Calibration{
		path:       path,
		offsets:    make(map[int]int, len(ids)),
		directions: make(map[int]int, len(ids)),
		log:        log,
	}
	for _, id := range ids {
		c.offsets[id] = DefaultOffset
		c.directions[id] = DefaultDirection
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).WithField("path", path).Warn("calibration file unreadable, using defaults")
		}
		return c
	}

	var file calibrationFile
	if err := json.Unmarshal(data, &file); err != nil {
		log.WithError(err).WithField("path", path).Warn("calibration file unparsable, using defaults")
		return c
	}

	for id, offset := range file.HomeOffsets {
		c.offsets[id] = offset
	}
	for id, dir := range file.Directions {
		c.directions[id] = dir
	}

	return c
}

// Path returns the file this calibration persists to.
func (c *Calibration) Path() string {
	return c.path
}

// Offset returns the home offset for a servo, defaulting to mid-range.
func (c *Calibration) Offset(id int) int {
	if offset, ok := c.offsets[id]; ok {
		return offset
	}
	return DefaultOffset
}

// Direction returns the direction multiplier for a servo.
func (c *Calibration) Direction(id int) int {
	if dir, ok := c.directions[id]; ok {
		return dir
	}
	return DefaultDirection
}

// Angle converts a raw encoder count to a calibrated angle in degrees,
// rounded to two decimal places. It returns false for the unavailable
// sentinel: a failed read is "sample unknown", not zero degrees.
//
// The encoder is circular with a period of 4096 counts per 360°, so the
// raw delta is first normalized onto the shortest signed arc from home:
// a delta beyond ±2048 means the joint crossed the zero count, not that
// it swept more than half a revolution.
func (c *Calibration) Angle(id, raw int) (float64, bool) {
	if raw < 0 {
		return 0, false
	}

	delta := raw - c.Offset(id)
	if delta > 2048 {
		delta -= 4096
	} else if delta < -2048 {
		delta += 4096
	}

	deg := float64(delta) * degreesPerStep * float64(c.Direction(id))
	return math.Round(deg*100) / 100, true
}

// SetOffsets replaces the home offsets and persists. Used by the home
// calibration pass once a full set of valid readings is in hand.
func (c *Calibration) SetOffsets(offsets map[int]int) error {
	for id, offset := range offsets {
		c.offsets[id] = offset
	}
	return c.save()
}

// SetDirection records the direction multiplier for one servo and
// persists. Only +1 and -1 are accepted; anything else is rejected
// without mutation.
func (c *Calibration) SetDirection(id, direction int) error {
	if direction != 1 && direction != -1 {
		return fmt.Errorf("%w: direction must be 1 or -1, got %d", ErrInvalidConfig, direction)
	}
	c.directions[id] = direction
	return c.save()
}

func (c *Calibration) save() error {
	data, err := json.MarshalIndent(calibrationFile{
		HomeOffsets: c.offsets,
		Directions:  c.directions,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("save calibration: %w", err)
	}
	return nil
}
