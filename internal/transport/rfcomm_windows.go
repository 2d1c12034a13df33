//go:build windows

package transport

import (
	"context"
	"fmt"
	"strings"

	"go.bug.st/serial"
	"golang.org/x/sys/windows/registry"
)

const serialCommKey = `HARDWARE\DEVICEMAP\SERIALCOMM`

// RFCOMMConnection is a compatibility type for Windows.
// Paired SPP devices get COM ports from the OS, so there is nothing to manage.
type RFCOMMConnection struct {
	DevicePath string
	MAC        string
}

func sppSupported() bool { return true }

// ListPairedBluetoothDevices returns Bluetooth COM ports on Windows.
// MAC holds the COM port, which is what EstablishRFCOMM expects.
func ListPairedBluetoothDevices() ([]BluetoothDevice, error) {
	var devices []BluetoothDevice

	btPorts, err := getBluetoothCOMPorts()
	if err == nil {
		for name, port := range btPorts {
			devices = append(devices, BluetoothDevice{Name: name, MAC: port})
		}
	}

	// No BT-specific ports found: offer every COM port
	if len(devices) == 0 {
		ports, _ := ListSerialPorts()
		for _, port := range ports {
			devices = append(devices, BluetoothDevice{Name: port, MAC: port})
		}
	}

	return devices, nil
}

// getBluetoothCOMPorts reads Bluetooth COM port mappings from the registry
func getBluetoothCOMPorts() (map[string]string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, serialCommKey, registry.READ)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	names, err := key.ReadValueNames(-1)
	if err != nil {
		return nil, err
	}

	ports := make(map[string]string)
	for _, name := range names {
		val, _, err := key.GetStringValue(name)
		if err != nil {
			continue
		}
		lower := strings.ToLower(name)
		if strings.Contains(lower, "bth") || strings.Contains(lower, "bluetooth") {
			ports[name] = val
		}
	}

	return ports, nil
}

// CheckRFCOMMInstalled always returns nil on Windows (not needed)
func CheckRFCOMMInstalled() error {
	return nil
}

// CheckPrivilegeHelper always returns "windows" on Windows (no elevation needed for COM)
func CheckPrivilegeHelper() string {
	return "windows"
}

// EstablishRFCOMM resolves the COM port path; mac is the COM port name
func EstablishRFCOMM(_ context.Context, mac string, _ int, statusCallback func(string)) (*RFCOMMConnection, error) {
	if statusCallback != nil {
		statusCallback(fmt.Sprintf("Using port %s...", mac))
	}

	if !strings.HasPrefix(strings.ToUpper(mac), "COM") {
		return nil, fmt.Errorf("%w: invalid COM port: %s", ErrRFCOMMFailed, mac)
	}

	comPath := mac
	// COM10 and up need the device namespace prefix
	if len(mac) > 4 {
		comPath = `\\.\` + mac
	}

	if statusCallback != nil {
		statusCallback(fmt.Sprintf("Ready: %s", mac))
	}
	return &RFCOMMConnection{DevicePath: comPath, MAC: mac}, nil
}

// Close is a no-op on Windows (COM ports don't need special cleanup)
func (c *RFCOMMConnection) Close() error {
	return nil
}

// IsDeviceReady checks if the COM port is still registered
func (c *RFCOMMConnection) IsDeviceReady() bool {
	if c == nil || c.DevicePath == "" {
		return false
	}
	return portPresent(c.MAC)
}

func portPresent(port string) bool {
	port = strings.TrimPrefix(port, `\\.\`)
	ports, err := ListSerialPorts()
	if err != nil {
		// can't tell without opening the port
		return true
	}
	for _, p := range ports {
		if strings.EqualFold(p, port) {
			return true
		}
	}
	return false
}

// GetExistingRFCOMMConnections returns available COM ports on Windows
func GetExistingRFCOMMConnections() ([]string, error) {
	return ListSerialPorts()
}

// ListSerialPorts enumerates available COM ports on Windows
func ListSerialPorts() ([]string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, serialCommKey, registry.READ)
	if err != nil {
		return serial.GetPortsList()
	}
	defer key.Close()

	names, err := key.ReadValueNames(-1)
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, name := range names {
		if val, _, err := key.GetStringValue(name); err == nil {
			ports = append(ports, val)
		}
	}
	return ports, nil
}
