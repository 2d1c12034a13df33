package printer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/text/encoding"

	"receipt-print/internal/escpos"
)

// Client drives one ESC/POS printer over a Transport. It holds at most one
// device/session/characteristic triple; Connect replaces it.
//
// Print operations issue their writes one at a time but are not serialized
// against each other: callers must not run two prints concurrently.
type Client struct {
	transport Transport
	filters   []Filter
	encoding  encoding.Encoding
	codeTable []byte
	header    []byte
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	device  Device
	session Session
	channel Characteristic
	lastErr error
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger used for diagnostics
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithFilters replaces the discovery filters
func WithFilters(filters []Filter) Option {
	return func(c *Client) { c.filters = filters }
}

// WithEncoding sets the text encoding, nil for UTF-8
func WithEncoding(enc encoding.Encoding) Option {
	return func(c *Client) { c.encoding = enc }
}

// WithCodeTable selects ESC t table n right after each receipt's init
// command, since ESC @ resets the printer to table 0. Pair it with the
// matching WithEncoding.
func WithCodeTable(n byte) Option {
	return func(c *Client) { c.codeTable = escpos.SelectCodeTable(n) }
}

// WithHeaderGraphic sets a raster command printed above the business name
func WithHeaderGraphic(cmd []byte) Option {
	return func(c *Client) { c.header = cmd }
}

// WithClock overrides the time source for receipt date and time lines
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a printer client. It does not connect.
func New(t Transport, opts ...Option) *Client {
	c := &Client{
		transport: t,
		filters:   DefaultFilters(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsBluetoothSupported reports whether the host has a usable wireless stack
func (c *Client) IsBluetoothSupported() bool {
	return c.transport != nil && c.transport.Supported()
}

// IsConnected reports whether a device is held and its link is live
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	dev, sess := c.device, c.session
	c.mu.Unlock()
	return dev != nil && sess != nil && c.transport.IsSessionLive(sess)
}

// DeviceName returns the name of the held device; ok is false if none
func (c *Client) DeviceName() (name string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return "", false
	}
	return c.device.Name(), true
}

// LastError returns the cause of the most recent failed operation,
// or nil if the most recent operation succeeded
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Connect discovers a printer, opens a session and resolves the write
// characteristic. On any failure no handle is kept and false is returned.
func (c *Client) Connect(ctx context.Context) bool {
	err := c.connect(ctx)
	c.record(err)
	if err != nil {
		return false
	}
	name, _ := c.DeviceName()
	c.logger.Info("connected to printer", "device", name)
	return true
}

func (c *Client) connect(ctx context.Context) error {
	const op = "connect"

	if !c.IsBluetoothSupported() {
		return newError(op, CapabilityUnavailable, nil)
	}

	c.release()

	dev, err := c.transport.RequestDevice(ctx, c.filters)
	if err != nil {
		return newError(op, DiscoveryFailed, err)
	}

	sess, err := c.transport.OpenSession(ctx, dev)
	if err != nil {
		return newError(op, SessionFailed, err)
	}

	svc, err := c.transport.GetService(ctx, sess, ServiceUUID)
	if err != nil {
		c.closeSession(sess)
		return newError(op, SessionFailed, fmt.Errorf("primary service %s: %w", ServiceUUID, err))
	}

	ch, err := c.transport.GetCharacteristic(ctx, svc, CharacteristicUUID)
	if err != nil {
		c.closeSession(sess)
		return newError(op, SessionFailed, fmt.Errorf("characteristic %s: %w", CharacteristicUUID, err))
	}

	c.mu.Lock()
	c.device, c.session, c.channel = dev, sess, ch
	c.mu.Unlock()
	return nil
}

// Disconnect closes the session and forgets the device. A session whose
// link already dropped is still closed so the transport can free it.
// Teardown errors are logged, never returned.
func (c *Client) Disconnect() {
	c.mu.Lock()
	dev, sess := c.device, c.session
	c.device, c.session, c.channel = nil, nil, nil
	c.mu.Unlock()

	if dev == nil || sess == nil {
		return
	}
	live := c.transport.IsSessionLive(sess)
	if err := c.transport.CloseSession(sess); err != nil {
		if live {
			c.logger.Warn("error disconnecting from printer", "device", dev.Name(), "err", err)
			return
		}
		c.logger.Debug("closing dropped printer session", "device", dev.Name(), "err", err)
	}
	if live {
		c.logger.Info("disconnected from printer", "device", dev.Name())
	}
}

// release drops any handle still held from an earlier Connect
func (c *Client) release() {
	c.mu.Lock()
	sess := c.session
	c.device, c.session, c.channel = nil, nil, nil
	c.mu.Unlock()

	if sess != nil {
		c.closeSession(sess)
	}
}

func (c *Client) closeSession(sess Session) {
	if err := c.transport.CloseSession(sess); err != nil {
		c.logger.Warn("error closing printer session", "err", err)
	}
}

// SendRawData writes p to the printer without waiting for acknowledgment
func (c *Client) SendRawData(ctx context.Context, p []byte) bool {
	err := c.sendRaw(ctx, "send raw data", p)
	c.record(err)
	return err == nil
}

// SendText encodes text with the configured encoding and writes it
func (c *Client) SendText(ctx context.Context, text string) bool {
	err := c.sendText(ctx, text)
	c.record(err)
	return err == nil
}

// SendCommands writes a sequence of ESC/POS control bytes
func (c *Client) SendCommands(ctx context.Context, cmds ...byte) bool {
	err := c.sendRaw(ctx, "send commands", cmds)
	c.record(err)
	return err == nil
}

func (c *Client) sendRaw(ctx context.Context, op string, p []byte) error {
	c.mu.Lock()
	sess, ch := c.session, c.channel
	c.mu.Unlock()

	if ch == nil || sess == nil {
		return newError(op, NotConnected, nil)
	}
	if !c.transport.IsSessionLive(sess) {
		c.forget(sess)
		return newError(op, NotConnected, fmt.Errorf("link lost"))
	}
	if err := c.transport.Write(ctx, ch, p); err != nil {
		return newError(op, TransmissionFailed, err)
	}
	return nil
}

func (c *Client) sendText(ctx context.Context, text string) error {
	const op = "send text"
	data, err := escpos.EncodeText(c.encoding, text)
	if err != nil {
		return newError(op, TransmissionFailed, err)
	}
	return c.sendRaw(ctx, op, data)
}

// forget clears the held handles if they still belong to sess and closes
// the dead session
func (c *Client) forget(sess Session) {
	c.mu.Lock()
	held := c.session == sess
	if held {
		c.device, c.session, c.channel = nil, nil, nil
	}
	c.mu.Unlock()

	if held {
		c.closeSession(sess)
	}
}

func (c *Client) setLastErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// record stores err as the last error and logs it
func (c *Client) record(err error) {
	c.setLastErr(err)
	if err == nil {
		return
	}
	if pe, ok := err.(*Error); ok {
		c.logger.Error("printer operation failed", "op", pe.Op, "kind", pe.Kind.String(), "err", pe.Err)
		return
	}
	c.logger.Error("printer operation failed", "err", err)
}
