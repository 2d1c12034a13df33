package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.bug.st/serial"

	"receipt-print/internal/config"
	"receipt-print/internal/printer"
)

// Serial reaches the printer over classic Bluetooth SPP. The paired device is
// bound to a serial port (an RFCOMM node on Linux, a COM port on Windows)
// which is then written as a plain byte stream.
type Serial struct {
	cfg    config.SerialConfig
	logger *slog.Logger

	// open is replaced in tests
	open func(path string, mode *serial.Mode) (io.WriteCloser, error)
}

// NewSerial creates the SPP transport
func NewSerial(cfg config.SerialConfig, logger *slog.Logger) *Serial {
	return &Serial{
		cfg:    cfg,
		logger: logger.With("transport", "serial"),
		open:   openPort,
	}
}

func openPort(path string, mode *serial.Mode) (io.WriteCloser, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(3 * time.Second); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

type serialDevice struct {
	name string
	mac  string
	port string // set when the port is opened directly
}

func (d *serialDevice) Name() string { return d.name }

type serialSession struct {
	dev  *serialDevice
	path string
	bind *RFCOMMConnection

	mu     sync.Mutex
	port   io.WriteCloser
	closed bool
}

func (s *serialSession) Device() printer.Device { return s.dev }

// A serial stream has a single endpoint, so the service and characteristic
// are handles that only carry the requested identifier.
type serialService struct {
	sess *serialSession
	id   uuid.UUID
}

func (s *serialService) UUID() uuid.UUID { return s.id }

type serialEndpoint struct {
	sess *serialSession
	id   uuid.UUID
}

func (e *serialEndpoint) UUID() uuid.UUID { return e.id }

// Supported reports whether a port is configured or the host can bind paired
// devices to serial ports
func (s *Serial) Supported() bool {
	return s.cfg.Port != "" || sppSupported()
}

// RequestDevice returns the configured port, or picks a paired device
func (s *Serial) RequestDevice(_ context.Context, filters []printer.Filter) (printer.Device, error) {
	if s.cfg.Port != "" {
		return &serialDevice{name: s.cfg.Port, port: s.cfg.Port}, nil
	}

	devices, err := ListPairedBluetoothDevices()
	if err != nil {
		return nil, err
	}
	d, err := selectDevice(devices, s.cfg.Device, filters)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("selected paired device", "name", d.Name, "mac", d.MAC)
	return &serialDevice{name: d.Name, mac: d.MAC}, nil
}

// OpenSession binds the device to a port if needed and opens it
func (s *Serial) OpenSession(ctx context.Context, dev printer.Device) (printer.Session, error) {
	sd, ok := dev.(*serialDevice)
	if !ok {
		return nil, fmt.Errorf("%w: device %T", ErrForeignHandle, dev)
	}

	sess := &serialSession{dev: sd, path: sd.port}
	if sess.path == "" {
		bind, err := EstablishRFCOMM(ctx, sd.mac, s.cfg.Channel, func(status string) {
			s.logger.Debug("rfcomm", "status", status)
		})
		if err != nil {
			return nil, err
		}
		sess.bind = bind
		sess.path = bind.DevicePath
	}

	mode := &serial.Mode{
		BaudRate: s.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := s.open(sess.path, mode)
	if err != nil {
		if sess.bind != nil {
			sess.bind.Close()
		}
		return nil, fmt.Errorf("failed to open port %s: %w", sess.path, err)
	}
	sess.port = port

	s.logger.Info("serial session opened", "device", sd.name, "port", sess.path)
	return sess, nil
}

func (s *Serial) GetService(_ context.Context, sess printer.Session, id uuid.UUID) (printer.Service, error) {
	ss, ok := sess.(*serialSession)
	if !ok {
		return nil, fmt.Errorf("%w: session %T", ErrForeignHandle, sess)
	}
	return &serialService{sess: ss, id: id}, nil
}

func (s *Serial) GetCharacteristic(_ context.Context, svc printer.Service, id uuid.UUID) (printer.Characteristic, error) {
	ss, ok := svc.(*serialService)
	if !ok {
		return nil, fmt.Errorf("%w: service %T", ErrForeignHandle, svc)
	}
	return &serialEndpoint{sess: ss.sess, id: id}, nil
}

// Write sends p in full to the port
func (s *Serial) Write(ctx context.Context, ch printer.Characteristic, p []byte) error {
	ep, ok := ch.(*serialEndpoint)
	if !ok {
		return fmt.Errorf("%w: characteristic %T", ErrForeignHandle, ch)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sess := ep.sess
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return fmt.Errorf("port %s is closed", sess.path)
	}

	for len(p) > 0 {
		n, err := sess.port.Write(p)
		if err != nil {
			return fmt.Errorf("write failed: %w", err)
		}
		p = p[n:]
	}
	return nil
}

// IsSessionLive reports whether the session is open and its port still exists
func (s *Serial) IsSessionLive(sess printer.Session) bool {
	ss, ok := sess.(*serialSession)
	if !ok {
		return false
	}
	ss.mu.Lock()
	closed := ss.closed
	ss.mu.Unlock()
	if closed {
		return false
	}
	if ss.bind != nil {
		return ss.bind.IsDeviceReady()
	}
	return portPresent(ss.path)
}

// CloseSession closes the port and releases any RFCOMM binding
func (s *Serial) CloseSession(sess printer.Session) error {
	ss, ok := sess.(*serialSession)
	if !ok {
		return fmt.Errorf("%w: session %T", ErrForeignHandle, sess)
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.closed {
		return nil
	}
	ss.closed = true

	var err error
	if ss.port != nil {
		err = ss.port.Close()
	}
	if ss.bind != nil {
		if berr := ss.bind.Close(); err == nil {
			err = berr
		}
	}
	return err
}
