package printer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestShortUUID(t *testing.T) {
	assert.Equal(t, ServiceUUID, ShortUUID(0x18f0))
	assert.Equal(t, "00002af0-0000-1000-8000-00805f9b34fb", CharacteristicUUID.String())
}

func TestFilterMatch(t *testing.T) {
	hasPrinterService := func(id uuid.UUID) bool { return id == ServiceUUID }
	noServices := func(uuid.UUID) bool { return false }

	tests := []struct {
		name   string
		filter Filter
		dev    string
		svc    func(uuid.UUID) bool
		want   bool
	}{
		{"empty filter", Filter{}, "PT-210", hasPrinterService, false},
		{"prefix hit", Filter{NamePrefix: "PT-"}, "PT-210", noServices, true},
		{"prefix miss", Filter{NamePrefix: "PT-"}, "MPT-2", noServices, false},
		{"service hit", Filter{Services: []uuid.UUID{ServiceUUID}}, "", hasPrinterService, true},
		{"service miss", Filter{Services: []uuid.UUID{ServiceUUID}}, "PT-210", noServices, false},
		{"nil service lookup", Filter{Services: []uuid.UUID{ServiceUUID}}, "PT-210", nil, false},
		{"both required", Filter{Services: []uuid.UUID{ServiceUUID}, NamePrefix: "XP-"}, "PT-210", hasPrinterService, false},
		{"both hold", Filter{Services: []uuid.UUID{ServiceUUID}, NamePrefix: "XP-"}, "XP-58", hasPrinterService, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(tt.dev, tt.svc))
		})
	}
}

func TestDefaultFilters(t *testing.T) {
	filters := DefaultFilters()
	assert.Len(t, filters, 1+len(DefaultNamePrefixes))
	assert.Equal(t, []uuid.UUID{ServiceUUID}, filters[0].Services)

	noServices := func(uuid.UUID) bool { return false }
	for _, name := range []string{"PT-210", "MTP-II", "TM-m30", "XP-58IIH"} {
		assert.True(t, MatchAny(filters, name, noServices), name)
	}
	assert.False(t, MatchAny(filters, "JBL Flip", noServices))
	assert.True(t, MatchAny(filters, "Unnamed", func(id uuid.UUID) bool { return id == ServiceUUID }))

	custom := DefaultFilters("GP-")
	assert.Len(t, custom, 2)
	assert.True(t, MatchAny(custom, "GP-5890", noServices))
	assert.False(t, MatchAny(custom, "PT-210", noServices))
}
