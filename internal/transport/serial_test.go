package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"receipt-print/internal/config"
	"receipt-print/internal/printer"
)

// shortPort accepts at most max bytes per Write, like a busy UART
type shortPort struct {
	buf    bytes.Buffer
	max    int
	closed bool
	err    error
}

func (p *shortPort) Write(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	if len(b) > p.max {
		b = b[:p.max]
	}
	return p.buf.Write(b)
}

func (p *shortPort) Close() error {
	p.closed = true
	return nil
}

func newTestSerial(t *testing.T) (*Serial, *shortPort, *serial.Mode) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rfcomm0")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	cfg := config.Defaults().Serial
	cfg.Port = path

	port := &shortPort{max: 3}
	var gotMode serial.Mode
	s := NewSerial(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.open = func(p string, mode *serial.Mode) (io.WriteCloser, error) {
		assert.Equal(t, path, p)
		gotMode = *mode
		return port, nil
	}
	return s, port, &gotMode
}

func openSerialChannel(t *testing.T, s *Serial) (printer.Session, printer.Characteristic) {
	t.Helper()
	ctx := context.Background()

	dev, err := s.RequestDevice(ctx, printer.DefaultFilters())
	require.NoError(t, err)
	sess, err := s.OpenSession(ctx, dev)
	require.NoError(t, err)
	svc, err := s.GetService(ctx, sess, printer.ServiceUUID)
	require.NoError(t, err)
	ch, err := s.GetCharacteristic(ctx, svc, printer.CharacteristicUUID)
	require.NoError(t, err)
	return sess, ch
}

func TestSerialDirectPort(t *testing.T) {
	s, port, mode := newTestSerial(t)
	assert.True(t, s.Supported())

	sess, ch := openSerialChannel(t, s)
	assert.Equal(t, 115200, mode.BaudRate)
	assert.Equal(t, s.cfg.Port, sess.Device().Name())
	assert.Equal(t, printer.CharacteristicUUID, ch.UUID())

	require.NoError(t, s.Write(context.Background(), ch, []byte("Cola\n")))
	assert.Equal(t, "Cola\n", port.buf.String())

	if runtime.GOOS != "windows" {
		assert.True(t, s.IsSessionLive(sess))
	}

	require.NoError(t, s.CloseSession(sess))
	assert.True(t, port.closed)
	assert.False(t, s.IsSessionLive(sess))
	assert.Error(t, s.Write(context.Background(), ch, []byte("x")))

	// closing twice is harmless
	assert.NoError(t, s.CloseSession(sess))
}

func TestSerialPortVanishes(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("COM port presence comes from the registry")
	}
	s, _, _ := newTestSerial(t)
	sess, _ := openSerialChannel(t, s)

	require.NoError(t, os.Remove(s.cfg.Port))
	assert.False(t, s.IsSessionLive(sess))
}

func TestSerialClosedAfterPortVanishes(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("COM port presence comes from the registry")
	}
	s, port, _ := newTestSerial(t)
	c := printer.New(s)
	require.True(t, c.Connect(context.Background()))

	require.NoError(t, os.Remove(s.cfg.Port))
	assert.False(t, c.IsConnected())

	c.Disconnect()
	assert.True(t, port.closed, "a dropped port must still be closed")
}

func TestSerialWriteError(t *testing.T) {
	s, port, _ := newTestSerial(t)
	_, ch := openSerialChannel(t, s)

	port.err = errors.New("input/output error")
	err := s.Write(context.Background(), ch, []byte{0x1B, 0x40})
	assert.ErrorIs(t, err, port.err)
}

func TestSerialWriteCanceled(t *testing.T) {
	s, port, _ := newTestSerial(t)
	_, ch := openSerialChannel(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Write(ctx, ch, []byte("x")), context.Canceled)
	assert.Zero(t, port.buf.Len())
}

func TestSerialOpenFailure(t *testing.T) {
	s, _, _ := newTestSerial(t)
	s.open = func(string, *serial.Mode) (io.WriteCloser, error) {
		return nil, errors.New("permission denied")
	}

	dev, err := s.RequestDevice(context.Background(), nil)
	require.NoError(t, err)
	_, err = s.OpenSession(context.Background(), dev)
	assert.ErrorContains(t, err, "permission denied")
}

type otherHandle struct{}

func (otherHandle) Name() string           { return "" }
func (otherHandle) Device() printer.Device { return otherHandle{} }

func TestSerialRejectsForeignHandles(t *testing.T) {
	s, _, _ := newTestSerial(t)
	ctx := context.Background()

	_, err := s.OpenSession(ctx, otherHandle{})
	assert.ErrorIs(t, err, ErrForeignHandle)
	_, err = s.GetService(ctx, otherHandle{}, printer.ServiceUUID)
	assert.ErrorIs(t, err, ErrForeignHandle)
	assert.False(t, s.IsSessionLive(otherHandle{}))
	assert.ErrorIs(t, s.CloseSession(otherHandle{}), ErrForeignHandle)
}
