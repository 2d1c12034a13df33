//go:build linux

package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	maxRFCOMMDevices = 10
	bindTimeout      = 15 * time.Second
	pollInterval     = 500 * time.Millisecond
)

// RFCOMMConnection manages an RFCOMM connection process (Linux-specific)
type RFCOMMConnection struct {
	DevicePath string
	MAC        string
	helper     string
	cmd        *exec.Cmd
	cancel     context.CancelFunc
	mu         sync.Mutex
}

// sppSupported reports whether the BlueZ tools needed to bind a port exist
func sppSupported() bool {
	if _, err := exec.LookPath("bluetoothctl"); err != nil {
		return false
	}
	return CheckRFCOMMInstalled() == nil
}

// ListPairedBluetoothDevices returns all paired Bluetooth devices
func ListPairedBluetoothDevices() ([]BluetoothDevice, error) {
	out, err := exec.Command("bluetoothctl", "devices", "Paired").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list paired devices: %w", err)
	}
	return parseBluetoothctlDevices(string(out)), nil
}

// FindAvailableRFCOMMDevice finds an unused /dev/rfcommN device number
func FindAvailableRFCOMMDevice() (string, int, error) {
	for i := 0; i < maxRFCOMMDevices; i++ {
		devPath := fmt.Sprintf("/dev/rfcomm%d", i)
		out, _ := exec.Command("rfcomm", "show", devPath).Output()
		if len(out) == 0 || strings.Contains(string(out), "No such device") {
			return devPath, i, nil
		}
	}
	return "", -1, fmt.Errorf("no available RFCOMM device slots")
}

// CheckRFCOMMInstalled verifies rfcomm binary is available
func CheckRFCOMMInstalled() error {
	if _, err := exec.LookPath("rfcomm"); err != nil {
		return fmt.Errorf("rfcomm not found - install with: sudo apt install bluez")
	}
	return nil
}

// CheckPrivilegeHelper checks which privilege escalation method is available.
// pkexec is preferred because it can prompt from a desktop session.
func CheckPrivilegeHelper() string {
	if _, err := exec.LookPath("pkexec"); err == nil {
		return "pkexec"
	}
	if _, err := exec.LookPath("sudo"); err == nil {
		return "sudo"
	}
	return ""
}

func privileged(ctx context.Context, helper string, args ...string) *exec.Cmd {
	if helper == "pkexec" {
		return exec.CommandContext(ctx, "pkexec", append([]string{"rfcomm"}, args...)...)
	}
	return exec.CommandContext(ctx, "sudo", append([]string{"-n", "rfcomm"}, args...)...)
}

// EstablishRFCOMM binds mac to a free /dev/rfcommN by running rfcomm connect
// in the background. It returns once the device node appears. ctx bounds the
// wait only; the binding lives until Close.
func EstablishRFCOMM(ctx context.Context, mac string, channel int, statusCallback func(string)) (*RFCOMMConnection, error) {
	if err := CheckRFCOMMInstalled(); err != nil {
		return nil, err
	}

	devPath, _, err := FindAvailableRFCOMMDevice()
	if err != nil {
		return nil, err
	}

	helper := CheckPrivilegeHelper()
	if helper == "" {
		return nil, ErrPrivilegeRequired
	}

	procCtx, cancel := context.WithCancel(context.Background())
	conn := &RFCOMMConnection{
		DevicePath: devPath,
		MAC:        mac,
		helper:     helper,
		cancel:     cancel,
	}

	cmd := privileged(procCtx, helper, "connect", devPath, mac, strconv.Itoa(channel))
	conn.cmd = cmd

	stderr, _ := cmd.StderrPipe()
	stdout, _ := cmd.StdoutPipe()

	report := func(s string) {
		if statusCallback != nil {
			statusCallback(s)
		}
	}
	report(fmt.Sprintf("Connecting to %s...", mac))

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: failed to start rfcomm: %v", ErrRFCOMMFailed, err)
	}

	for _, r := range []io.Reader{stdout, stderr} {
		go func(r io.Reader) {
			scanner := bufio.NewScanner(r)
			for scanner.Scan() {
				report(scanner.Text())
			}
		}(r)
	}

	deadline := time.NewTimer(bindTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return nil, fmt.Errorf("%w: %v", ErrConnectionCanceled, ctx.Err())
		case <-deadline.C:
			conn.Close()
			return nil, fmt.Errorf("%w: timeout waiting for %s to appear", ErrRFCOMMFailed, devPath)
		case <-ticker.C:
			if _, err := os.Stat(devPath); err == nil {
				// the node shows up slightly before the link accepts data
				time.Sleep(pollInterval)
				report(fmt.Sprintf("Connected: %s", devPath))
				return conn, nil
			}
		}
	}
}

// Close terminates the RFCOMM connection
func (c *RFCOMMConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	if c.DevicePath != "" && c.helper != "" {
		// best effort; the node usually disappears with the process anyway
		_ = privileged(context.Background(), c.helper, "release", c.DevicePath).Run()
	}

	if c.cmd != nil && c.cmd.Process != nil {
		c.cmd.Process.Kill()
		c.cmd.Wait()
	}

	return nil
}

// IsDeviceReady checks if the RFCOMM device is still available
func (c *RFCOMMConnection) IsDeviceReady() bool {
	if c == nil || c.DevicePath == "" {
		return false
	}
	return portPresent(c.DevicePath)
}

func portPresent(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// GetExistingRFCOMMConnections returns currently active RFCOMM connections
func GetExistingRFCOMMConnections() ([]string, error) {
	out, err := exec.Command("rfcomm", "-a").Output()
	if err != nil {
		// rfcomm -a fails when nothing is bound; look for the nodes directly
		var devices []string
		for i := 0; i < maxRFCOMMDevices; i++ {
			devPath := fmt.Sprintf("/dev/rfcomm%d", i)
			if portPresent(devPath) {
				devices = append(devices, devPath)
			}
		}
		return devices, nil
	}
	return parseRFCOMMList(string(out)), nil
}

// parseRFCOMMList parses `rfcomm -a` lines such as
// "rfcomm0: 00:11:22:33:44:55 channel 1 connected [tty-attached]"
func parseRFCOMMList(out string) []string {
	var devices []string
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "rfcomm") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) > 0 {
			devName := strings.TrimSuffix(parts[0], ":")
			devices = append(devices, filepath.Join("/dev", devName))
		}
	}
	return devices
}

// ListSerialPorts returns bound RFCOMM nodes followed by every other serial
// port the system reports
func ListSerialPorts() ([]string, error) {
	ports, _ := GetExistingRFCOMMConnections()

	others, err := serial.GetPortsList()
	if err != nil {
		return ports, nil
	}
	seen := make(map[string]bool, len(ports))
	for _, p := range ports {
		seen[p] = true
	}
	for _, p := range others {
		if !seen[p] {
			seen[p] = true
			ports = append(ports, p)
		}
	}
	return ports, nil
}
