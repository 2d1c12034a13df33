package escpos

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// codePages maps configuration names to character encodings.
// A nil encoding means UTF-8 passthrough.
var codePages = map[string]encoding.Encoding{
	"utf-8":       nil,
	"utf8":        nil,
	"cp437":       charmap.CodePage437,
	"cp850":       charmap.CodePage850,
	"cp858":       charmap.CodePage858,
	"cp1252":      charmap.Windows1252,
	"iso-8859-1":  charmap.ISO8859_1,
	"iso-8859-15": charmap.ISO8859_15,
}

// LookupEncoding returns the encoding registered under name.
// The empty name selects UTF-8.
func LookupEncoding(name string) (encoding.Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, nil
	}
	enc, ok := codePages[key]
	if !ok {
		return nil, fmt.Errorf("unknown text encoding %q", name)
	}
	return enc, nil
}

// EncodeText converts s into printer bytes using enc.
// Runes the code page cannot represent are reported as an error.
func EncodeText(enc encoding.Encoding, s string) ([]byte, error) {
	if enc == nil {
		return []byte(s), nil
	}
	out, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode text: %w", err)
	}
	return out, nil
}

// codeTables holds the ESC t numbers of the code pages most Epson-compatible
// firmware agrees on
var codeTables = map[string]byte{
	"cp437":  0,
	"cp850":  2,
	"cp1252": 16,
	"cp858":  19,
}

// CodeTable returns the ESC t table for an encoding name. ok is false for
// UTF-8 and for code pages without a common table number.
func CodeTable(name string) (n byte, ok bool) {
	n, ok = codeTables[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}
