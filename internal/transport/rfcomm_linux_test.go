//go:build linux

package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRFCOMMList(t *testing.T) {
	out := "rfcomm0: 66:22:B1:3C:8E:01 channel 1 connected [tty-attached]\n" +
		"rfcomm3: DC:0D:30:9A:14:77 channel 2 closed\n" +
		"\n"
	assert.Equal(t, []string{"/dev/rfcomm0", "/dev/rfcomm3"}, parseRFCOMMList(out))
	assert.Empty(t, parseRFCOMMList(""))
}

func TestRFCOMMConnectionNotReady(t *testing.T) {
	var c *RFCOMMConnection
	assert.False(t, c.IsDeviceReady())
	assert.False(t, (&RFCOMMConnection{}).IsDeviceReady())
	assert.False(t, (&RFCOMMConnection{DevicePath: "/dev/rfcomm-missing"}).IsDeviceReady())
}
