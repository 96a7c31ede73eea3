package sts

// STS3215 memory map. EEPROM registers persist across power cycles and are
// guarded by RegLock; RAM registers are volatile.
const (
	// EEPROM
	RegID       byte = 5
	RegBaudRate byte = 6

	// RAM
	RegTorqueEnable byte = 40
	RegAcceleration byte = 41
	RegGoalPosition byte = 42 // u16 LE, immediately followed by goal speed
	RegLock         byte = 55

	// Feedback (read-only)
	RegPresentPosition byte = 56 // u16 LE
	RegPresentSpeed    byte = 58 // i16, unsigned wire value
	RegPresentLoad     byte = 60 // i16, unsigned wire value
	RegPresentVoltage  byte = 62 // tenths of a volt
	RegPresentTemp     byte = 63 // degrees Celsius
)

// signed16 recovers a two's-complement value from the unsigned wire
// representation used by the speed and load registers.
func signed16(v int) int {
	if v > 32767 {
		return v - 65536
	}
	return v
}
