//go:build !linux && !windows

package transport

import (
	"context"
	"os"

	"go.bug.st/serial"
)

// RFCOMMConnection is unused here; ports must be configured directly
type RFCOMMConnection struct {
	DevicePath string
	MAC        string
}

func sppSupported() bool { return false }

func ListPairedBluetoothDevices() ([]BluetoothDevice, error) {
	return nil, ErrNotSupported
}

func EstablishRFCOMM(context.Context, string, int, func(string)) (*RFCOMMConnection, error) {
	return nil, ErrNotSupported
}

func (c *RFCOMMConnection) Close() error { return nil }

func (c *RFCOMMConnection) IsDeviceReady() bool {
	return c != nil && portPresent(c.DevicePath)
}

func portPresent(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ListSerialPorts returns the serial ports the system reports
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
