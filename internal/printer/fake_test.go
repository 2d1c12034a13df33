package printer

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// fakeTransport records every write and can be told to fail at any stage.
type fakeTransport struct {
	mu sync.Mutex

	supported  bool
	deviceName string

	requestErr error
	openErr    error
	serviceErr error
	charErr    error
	closeErr   error
	// failWriteAt makes the n-th write (1-based) fail; 0 never fails
	failWriteAt int

	requests int
	opened   []*fakeSession
	closed   []*fakeSession
	writes   [][]byte
	filters  []Filter
}

type fakeDevice struct{ name string }

func (d *fakeDevice) Name() string { return d.name }

type fakeSession struct {
	dev  *fakeDevice
	live bool
}

func (s *fakeSession) Device() Device { return s.dev }

type fakeHandle struct{ id uuid.UUID }

func (h *fakeHandle) UUID() uuid.UUID { return h.id }

var errFakeWrite = errors.New("gatt write rejected")

func newFakeTransport() *fakeTransport {
	return &fakeTransport{supported: true, deviceName: "PT-210"}
}

func (f *fakeTransport) Supported() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.supported
}

func (f *fakeTransport) RequestDevice(_ context.Context, filters []Filter) (Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	f.filters = filters
	if f.requestErr != nil {
		return nil, f.requestErr
	}
	return &fakeDevice{name: f.deviceName}, nil
}

func (f *fakeTransport) OpenSession(_ context.Context, dev Device) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	s := &fakeSession{dev: dev.(*fakeDevice), live: true}
	f.opened = append(f.opened, s)
	return s, nil
}

func (f *fakeTransport) GetService(_ context.Context, _ Session, id uuid.UUID) (Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.serviceErr != nil {
		return nil, f.serviceErr
	}
	return &fakeHandle{id: id}, nil
}

func (f *fakeTransport) GetCharacteristic(_ context.Context, _ Service, id uuid.UUID) (Characteristic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.charErr != nil {
		return nil, f.charErr
	}
	return &fakeHandle{id: id}, nil
}

func (f *fakeTransport) Write(_ context.Context, _ Characteristic, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWriteAt > 0 && len(f.writes)+1 == f.failWriteAt {
		f.failWriteAt = 0
		return errFakeWrite
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	return nil
}

func (f *fakeTransport) IsSessionLive(s Session) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	fs, ok := s.(*fakeSession)
	return ok && fs.live
}

func (f *fakeTransport) CloseSession(s Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fs := s.(*fakeSession)
	f.closed = append(f.closed, fs)
	if f.closeErr != nil {
		return f.closeErr
	}
	fs.live = false
	return nil
}

// dropLink simulates the printer going out of range
func (f *fakeTransport) dropLink() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.opened {
		s.live = false
	}
}

func (f *fakeTransport) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.writes))
	copy(out, f.writes)
	return out
}

// textWrites returns the writes that do not start with a control byte
func (f *fakeTransport) textWrites() []string {
	var out []string
	for _, w := range f.written() {
		if len(w) > 0 && w[0] != 0x1B && w[0] != 0x1D {
			out = append(out, string(w))
		}
	}
	return out
}
