package locator

import (
	"fmt"
	"path/filepath"
	"regexp"

	"go.bug.st/serial/enumerator"
)

// USBEnumerator lists attached USB serial adapters via the OS.
type USBEnumerator struct{}

// usbInterfacePattern matches a sysfs USB interface directory name such as
// "1-1.3:1.0" (bus-port chain, configuration, interface).
var usbInterfacePattern = regexp.MustCompile(`^\d+-\d+(\.\d+)*:\d+\.\d+$`)

// Ports returns the attached serial devices with their USB serial numbers
// and, on Linux, their physical USB location strings.
func (USBEnumerator) Ports() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if !d.IsUSB {
			continue
		}
		ports = append(ports, PortInfo{
			Device:       d.Name,
			SerialNumber: d.SerialNumber,
			Location:     usbLocation(d.Name),
		})
	}
	return ports, nil
}

// usbLocation derives the USB topology string for a tty device from sysfs.
// Returns "" when it cannot be determined (non-Linux, pseudo terminals).
func usbLocation(device string) string {
	base := filepath.Base(device)

	resolved, err := filepath.EvalSymlinks(filepath.Join("/sys/class/tty", base, "device"))
	if err != nil {
		return ""
	}

	// The resolved path ends in or passes through the USB interface
	// directory; scan from the device end upwards.
	for dir := resolved; dir != "/" && dir != "."; dir = filepath.Dir(dir) {
		if name := filepath.Base(dir); usbInterfacePattern.MatchString(name) {
			return name
		}
	}
	return ""
}
