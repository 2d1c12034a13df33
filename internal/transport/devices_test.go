package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receipt-print/internal/printer"
)

const bluetoothctlOutput = `Device 66:22:B1:3C:8E:01 PT-210
Device 00:1B:10:73:AD:5F JBL Flip 5
[CHG] Controller 5C:F3:70:8B:1D:2E Discovering: yes
Device DC:0D:30:9A:14:77 XP-58IIH

Device AA:BB:CC:DD:EE:FF
`

func TestParseBluetoothctlDevices(t *testing.T) {
	got := parseBluetoothctlDevices(bluetoothctlOutput)
	assert.Equal(t, []BluetoothDevice{
		{MAC: "66:22:B1:3C:8E:01", Name: "PT-210"},
		{MAC: "00:1B:10:73:AD:5F", Name: "JBL Flip 5"},
		{MAC: "DC:0D:30:9A:14:77", Name: "XP-58IIH"},
	}, got)

	assert.Empty(t, parseBluetoothctlDevices(""))
}

func TestSelectDevice(t *testing.T) {
	devices := parseBluetoothctlDevices(bluetoothctlOutput)
	filters := printer.DefaultFilters()

	d, err := selectDevice(devices, "", filters)
	require.NoError(t, err)
	assert.Equal(t, "PT-210", d.Name)

	d, err = selectDevice(devices, "dc:0d:30:9a:14:77", filters)
	require.NoError(t, err)
	assert.Equal(t, "XP-58IIH", d.Name)

	_, err = selectDevice(devices, "11:22:33:44:55:66", filters)
	assert.ErrorIs(t, err, ErrNoMatchingDevice)

	_, err = selectDevice(devices[1:2], "", filters)
	assert.ErrorIs(t, err, ErrNoMatchingDevice)

	_, err = selectDevice(nil, "", filters)
	assert.ErrorIs(t, err, ErrNoDevicesFound)

	// only service filters: a classic device cannot satisfy them
	_, err = selectDevice(devices, "", filters[:1])
	assert.ErrorIs(t, err, ErrNoMatchingDevice)
}
