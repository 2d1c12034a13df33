package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"tinygo.org/x/bluetooth"

	"receipt-print/internal/config"
	"receipt-print/internal/printer"
)

// DefaultChunkSize fits the 23-byte default ATT MTU minus its 3-byte header
const DefaultChunkSize = 20

const stopScanRetry = 100 * time.Millisecond

var errScanTimeout = errors.New("scan timed out")

// BLE reaches the printer through GATT write-without-response on the host's
// default Bluetooth adapter.
type BLE struct {
	adapter *bluetooth.Adapter
	cfg     config.BLEConfig
	limiter *rate.Limiter
	logger  *slog.Logger
	enabled bool

	mu        sync.Mutex
	connected map[string]bool
}

// NewBLE enables the default adapter. A host without a usable adapter still
// gets a transport; it reports Supported() == false.
func NewBLE(cfg config.BLEConfig, logger *slog.Logger) *BLE {
	b := &BLE{
		adapter:   bluetooth.DefaultAdapter,
		cfg:       cfg,
		logger:    logger.With("transport", "ble"),
		connected: make(map[string]bool),
	}
	if b.cfg.ChunkSize <= 0 {
		b.cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.WriteInterval > 0 {
		b.limiter = rate.NewLimiter(rate.Every(cfg.WriteInterval), 1)
	}

	b.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		b.mu.Lock()
		defer b.mu.Unlock()
		addr := device.Address.String()
		if _, tracked := b.connected[addr]; tracked {
			b.connected[addr] = connected
		}
	})

	if err := b.adapter.Enable(); err != nil {
		b.logger.Warn("bluetooth adapter unavailable", "err", err)
		return b
	}
	b.enabled = true
	return b
}

type bleDevice struct {
	name    string
	address bluetooth.Address
}

func (d *bleDevice) Name() string { return d.name }

type bleSession struct {
	dev    *bleDevice
	device bluetooth.Device
}

func (s *bleSession) Device() printer.Device { return s.dev }

type bleService struct {
	svc bluetooth.DeviceService
	id  uuid.UUID
}

func (s *bleService) UUID() uuid.UUID { return s.id }

type bleCharacteristic struct {
	ch bluetooth.DeviceCharacteristic
	id uuid.UUID
}

func (c *bleCharacteristic) UUID() uuid.UUID { return c.id }

// toBLE converts between the two UUID representations through their
// canonical text form
func toBLE(id uuid.UUID) (bluetooth.UUID, error) {
	return bluetooth.ParseUUID(id.String())
}

// Supported reports whether the adapter enabled
func (b *BLE) Supported() bool {
	return b.enabled
}

// RequestDevice scans until the first advertisement matching any filter.
// The scan ends on a match, when ctx is done, or after the configured timeout.
func (b *BLE) RequestDevice(ctx context.Context, filters []printer.Filter) (printer.Device, error) {
	if b.cfg.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.ScanTimeout)
		defer cancel()
	}

	// a scan started after cancellation would have nothing to stop it
	if err := ctx.Err(); err != nil {
		return nil, scanAborted(err)
	}

	found := make(chan bluetooth.ScanResult, 1)
	done := make(chan error, 1)

	b.logger.Debug("scanning", "filters", len(filters), "timeout", b.cfg.ScanTimeout)
	go func() {
		done <- b.adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
			if ctx.Err() != nil {
				a.StopScan()
				return
			}
			hasService := func(id uuid.UUID) bool {
				u, err := toBLE(id)
				return err == nil && r.HasServiceUUID(u)
			}
			if !printer.MatchAny(filters, r.LocalName(), hasService) {
				return
			}
			select {
			case found <- r:
			default:
			}
			a.StopScan()
		})
	}()

	var scanErr error
	select {
	case scanErr = <-done:
	case <-ctx.Done():
		scanErr = b.stopScan(done)
	}

	select {
	case r := <-found:
		b.logger.Debug("found printer", "name", r.LocalName(), "address", r.Address.String(), "rssi", r.RSSI)
		return &bleDevice{name: r.LocalName(), address: r.Address}, nil
	default:
	}

	if scanErr != nil {
		return nil, fmt.Errorf("scan: %w", scanErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, scanAborted(err)
	}
	return nil, ErrNoMatchingDevice
}

// stopScan keeps asking the adapter to stop until Scan returns. The scan
// goroutine may not have started scanning when the first request lands.
func (b *BLE) stopScan(done <-chan error) error {
	ticker := time.NewTicker(stopScanRetry)
	defer ticker.Stop()
	for {
		b.adapter.StopScan()
		select {
		case err := <-done:
			return err
		case <-ticker.C:
		}
	}
}

func scanAborted(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrNoMatchingDevice, errScanTimeout)
	}
	return fmt.Errorf("%w: %w", ErrConnectionCanceled, err)
}

// OpenSession establishes the GATT connection
func (b *BLE) OpenSession(_ context.Context, dev printer.Device) (printer.Session, error) {
	bd, ok := dev.(*bleDevice)
	if !ok {
		return nil, fmt.Errorf("%w: device %T", ErrForeignHandle, dev)
	}

	device, err := b.adapter.Connect(bd.address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("gatt connect %s: %w", bd.address.String(), err)
	}

	b.mu.Lock()
	b.connected[bd.address.String()] = true
	b.mu.Unlock()

	b.logger.Info("gatt session opened", "device", bd.name, "address", bd.address.String())
	return &bleSession{dev: bd, device: device}, nil
}

func (b *BLE) GetService(_ context.Context, sess printer.Session, id uuid.UUID) (printer.Service, error) {
	bs, ok := sess.(*bleSession)
	if !ok {
		return nil, fmt.Errorf("%w: session %T", ErrForeignHandle, sess)
	}
	u, err := toBLE(id)
	if err != nil {
		return nil, err
	}

	services, err := bs.device.DiscoverServices([]bluetooth.UUID{u})
	if err != nil {
		return nil, err
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("service %s not found", id)
	}
	return &bleService{svc: services[0], id: id}, nil
}

func (b *BLE) GetCharacteristic(_ context.Context, svc printer.Service, id uuid.UUID) (printer.Characteristic, error) {
	bs, ok := svc.(*bleService)
	if !ok {
		return nil, fmt.Errorf("%w: service %T", ErrForeignHandle, svc)
	}
	u, err := toBLE(id)
	if err != nil {
		return nil, err
	}

	chars, err := bs.svc.DiscoverCharacteristics([]bluetooth.UUID{u})
	if err != nil {
		return nil, err
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("characteristic %s not found", id)
	}
	return &bleCharacteristic{ch: chars[0], id: id}, nil
}

// Write sends p as a series of write-without-response packets
func (b *BLE) Write(ctx context.Context, ch printer.Characteristic, p []byte) error {
	bc, ok := ch.(*bleCharacteristic)
	if !ok {
		return fmt.Errorf("%w: characteristic %T", ErrForeignHandle, ch)
	}

	for i, chunk := range splitChunks(p, b.cfg.ChunkSize) {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := bc.ch.WriteWithoutResponse(chunk); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	return nil
}

// IsSessionLive reports the link state last seen by the connect handler
func (b *BLE) IsSessionLive(sess printer.Session) bool {
	bs, ok := sess.(*bleSession)
	if !ok {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected[bs.dev.address.String()]
}

func (b *BLE) CloseSession(sess printer.Session) error {
	bs, ok := sess.(*bleSession)
	if !ok {
		return fmt.Errorf("%w: session %T", ErrForeignHandle, sess)
	}

	b.mu.Lock()
	delete(b.connected, bs.dev.address.String())
	b.mu.Unlock()

	return bs.device.Disconnect()
}

// splitChunks slices p into pieces of at most size bytes without copying
func splitChunks(p []byte, size int) [][]byte {
	if len(p) == 0 {
		return nil
	}
	if size <= 0 || len(p) <= size {
		return [][]byte{p}
	}
	chunks := make([][]byte, 0, (len(p)+size-1)/size)
	for len(p) > size {
		chunks = append(chunks, p[:size:size])
		p = p[size:]
	}
	return append(chunks, p)
}
