package transport

import (
	"errors"
	"fmt"
	"strings"

	"receipt-print/internal/printer"
)

// Common errors
var (
	ErrNoDevicesFound     = errors.New("no paired Bluetooth devices found")
	ErrNoMatchingDevice   = errors.New("no device matched the printer filters")
	ErrRFCOMMFailed       = errors.New("failed to establish RFCOMM connection")
	ErrPrivilegeRequired  = errors.New("root privileges required for RFCOMM")
	ErrConnectionCanceled = errors.New("connection canceled")
	ErrNotSupported       = errors.New("operation not supported on this platform")
	ErrForeignHandle      = errors.New("handle was not issued by this transport")
)

// BluetoothDevice represents a paired Bluetooth device
type BluetoothDevice struct {
	Name string
	MAC  string // MAC address on Linux, or COM port on Windows
}

// parseBluetoothctlDevices parses `bluetoothctl devices` output.
// Lines look like "Device XX:XX:XX:XX:XX:XX DeviceName".
func parseBluetoothctlDevices(out string) []BluetoothDevice {
	var devices []BluetoothDevice
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Device ") {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(line, "Device "), " ", 2)
		if len(parts) == 2 {
			devices = append(devices, BluetoothDevice{
				MAC:  parts[0],
				Name: strings.TrimSpace(parts[1]),
			})
		}
	}
	return devices
}

// selectDevice picks the device with the given MAC, or when mac is empty the
// first device whose name satisfies a filter. Classic devices carry no GATT
// services, so service-only filters never match here.
func selectDevice(devices []BluetoothDevice, mac string, filters []printer.Filter) (BluetoothDevice, error) {
	if len(devices) == 0 {
		return BluetoothDevice{}, ErrNoDevicesFound
	}
	if mac != "" {
		for _, d := range devices {
			if strings.EqualFold(d.MAC, mac) {
				return d, nil
			}
		}
		return BluetoothDevice{}, fmt.Errorf("%w: %s is not paired", ErrNoMatchingDevice, mac)
	}
	for _, d := range devices {
		if printer.MatchAny(filters, d.Name, nil) {
			return d, nil
		}
	}
	return BluetoothDevice{}, fmt.Errorf("%w among %d paired device(s)", ErrNoMatchingDevice, len(devices))
}
