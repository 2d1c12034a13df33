package printer

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Well-known identifiers of generic ESC/POS BLE printers
var (
	bluetoothBase = uuid.MustParse("00000000-0000-1000-8000-00805f9b34fb")

	ServiceUUID        = uuid.MustParse("000018f0-0000-1000-8000-00805f9b34fb")
	CharacteristicUUID = ShortUUID(0x2af0)
)

// DefaultNamePrefixes are advertised-name prefixes of common printer vendors
var DefaultNamePrefixes = []string{"PT-", "MTP-", "TM-", "XP-"}

// ShortUUID expands a 16-bit Bluetooth SIG identifier to its 128-bit form
func ShortUUID(short uint16) uuid.UUID {
	u := bluetoothBase
	u[2] = byte(short >> 8)
	u[3] = byte(short)
	return u
}

// Device is a discovered peripheral
type Device interface {
	Name() string
}

// Session is an open link to a Device
type Session interface {
	Device() Device
}

// Service is a primary service found on a Session
type Service interface {
	UUID() uuid.UUID
}

// Characteristic is a writable endpoint of a Service
type Characteristic interface {
	UUID() uuid.UUID
}

// Transport abstracts the wireless stack the printer is reached through.
// Implementations live in internal/transport.
type Transport interface {
	// Supported reports whether the host exposes the stack at all
	Supported() bool
	// RequestDevice selects exactly one device matching any of filters
	RequestDevice(ctx context.Context, filters []Filter) (Device, error)
	OpenSession(ctx context.Context, dev Device) (Session, error)
	GetService(ctx context.Context, s Session, id uuid.UUID) (Service, error)
	GetCharacteristic(ctx context.Context, svc Service, id uuid.UUID) (Characteristic, error)
	// Write submits p without waiting for an acknowledgment
	Write(ctx context.Context, ch Characteristic, p []byte) error
	IsSessionLive(s Session) bool
	CloseSession(s Session) error
}

// Filter selects devices during discovery. Every condition set on a filter
// must hold for it to match; an empty filter matches nothing.
type Filter struct {
	Services   []uuid.UUID
	NamePrefix string
}

// Match reports whether an advertisement satisfies f
func (f Filter) Match(name string, hasService func(uuid.UUID) bool) bool {
	if len(f.Services) == 0 && f.NamePrefix == "" {
		return false
	}
	if f.NamePrefix != "" && !strings.HasPrefix(name, f.NamePrefix) {
		return false
	}
	for _, id := range f.Services {
		if hasService == nil || !hasService(id) {
			return false
		}
	}
	return true
}

// MatchAny reports whether any filter matches
func MatchAny(filters []Filter, name string, hasService func(uuid.UUID) bool) bool {
	for _, f := range filters {
		if f.Match(name, hasService) {
			return true
		}
	}
	return false
}

// DefaultFilters returns the printer service filter followed by one
// name-prefix filter per prefix. With no prefixes the vendor defaults are used.
func DefaultFilters(prefixes ...string) []Filter {
	if len(prefixes) == 0 {
		prefixes = DefaultNamePrefixes
	}
	filters := []Filter{{Services: []uuid.UUID{ServiceUUID}}}
	for _, p := range prefixes {
		filters = append(filters, Filter{NamePrefix: p})
	}
	return filters
}
