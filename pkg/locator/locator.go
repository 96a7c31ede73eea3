// Package locator resolves logical arm roles to physical serial ports.
//
// Devices are matched by USB serial number first and by USB location string
// second, so setups with duplicate (or absent) serial numbers can still pin
// an arm to a physical port.
package locator

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// PortInfo describes one enumerated serial device. SerialNumber and
// Location are optional; either may be empty depending on the adapter.
type PortInfo struct {
	Device       string // e.g. /dev/ttyACM0
	SerialNumber string
	Location     string // USB topology string, e.g. "1-1.3:1.0"
}

// Enumerator lists the currently attached serial devices. Tests inject a
// fixed list instead of querying hardware.
type Enumerator interface {
	Ports() ([]PortInfo, error)
}

// Resolve maps each role to the device path matching its identifier.
//
// A role resolves to the first enumerated device whose serial number
// exactly equals the identifier; failing that, to the first device whose
// location string contains the identifier as a substring. An exact serial
// match always beats a location match. Ties among equally qualifying
// devices go to enumeration order: first wins. That is a documented,
// deterministic policy, not best-matching; choose identifiers that
// disambiguate.
//
// Unresolved roles map to the empty string, and the returned ok flag is
// false if any role is unresolved.
func Resolve(enum Enumerator, targets map[string]string, log *logrus.Logger) (map[string]string, bool) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	ports, err := enum.Ports()
	if err != nil {
		log.WithError(err).Error("port enumeration failed")
		ports = nil
	}

	resolved := make(map[string]string, len(targets))
	ok := true

	for role, identifier := range targets {
		device := match(ports, identifier)
		resolved[role] = device

		if device == "" {
			ok = false
			log.WithFields(logrus.Fields{
				"role":       role,
				"identifier": identifier,
			}).Error("device not found")
			continue
		}

		log.WithFields(logrus.Fields{
			"role":       role,
			"identifier": identifier,
			"device":     device,
		}).Info("device resolved")
	}

	return resolved, ok
}

func match(ports []PortInfo, identifier string) string {
	if identifier == "" {
		return ""
	}

	for _, p := range ports {
		if p.SerialNumber != "" && p.SerialNumber == identifier {
			return p.Device
		}
	}
	for _, p := range ports {
		if p.Location != "" && strings.Contains(p.Location, identifier) {
			return p.Device
		}
	}
	return ""
}
