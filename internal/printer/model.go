package printer

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Amount is an optional number. The zero value is unset.
type Amount struct {
	value float64
	set   bool
}

// NewAmount returns a set Amount
func NewAmount(v float64) Amount {
	return Amount{value: v, set: true}
}

// Value returns the number and whether it is set
func (a Amount) Value() (float64, bool) {
	return a.value, a.set
}

// IsSet reports whether the amount holds a number
func (a Amount) IsSet() bool {
	return a.set
}

// Format renders the amount with exactly two decimals, "0.00" when unset
func (a Amount) Format() string {
	if !a.set {
		return "0.00"
	}
	return formatFixed2(a.value)
}

// UnmarshalJSON accepts numbers and numeric strings. null and any other
// value leave the amount unset rather than failing the whole record.
func (a *Amount) UnmarshalJSON(b []byte) error {
	*a = Amount{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*a = NewAmount(v)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.set {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(a.value, 'f', -1, 64)), nil
}

// formatFixed2 rounds half away from zero to two decimals
func formatFixed2(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', 2, 64)
}

// Item is one receipt line
type Item struct {
	Name     string `json:"name"`
	Quantity Amount `json:"quantity"`
	Price    Amount `json:"price"`
}

// quantityText renders the quantity as a plain number, "1" when unset
func (it Item) quantityText() string {
	q, ok := it.Quantity.Value()
	if !ok {
		return "1"
	}
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// lineTotal is price times quantity, unset unless both are set. The "1"
// shown for a missing quantity is display only and does not price the line.
func (it Item) lineTotal() Amount {
	p, okP := it.Price.Value()
	q, okQ := it.Quantity.Value()
	if !okP || !okQ {
		return Amount{}
	}
	return NewAmount(p * q)
}

// Transaction is a completed sale or purchase handed over for printing.
// OrderNumber and Supplier are only used by purchase receipts.
type Transaction struct {
	ReceiptNumber  string `json:"receiptNumber,omitempty"`
	OrderNumber    string `json:"orderNumber,omitempty"`
	Supplier       string `json:"supplier,omitempty"`
	Items          []Item `json:"items"`
	Subtotal       Amount `json:"subtotal"`
	Tax            Amount `json:"tax"`
	Discount       Amount `json:"discount"`
	Total          Amount `json:"total"`
	AmountReceived Amount `json:"amountReceived"`
	Change         Amount `json:"change"`
}

// amountTendered renders AmountReceived, falling back to the formatted Total
func (t Transaction) amountTendered() string {
	if t.AmountReceived.IsSet() {
		return t.AmountReceived.Format()
	}
	return t.Total.Format()
}

// BusinessInfo is printed centered at the top of every receipt
type BusinessInfo struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}
