package escpos

import (
	"bytes"
	"strings"
)

// Control bytes
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
	LF  byte = 0x0A
)

// Alignment is the ESC a justification argument
type Alignment byte

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// LineWidth is the number of Font A columns on 58mm paper
const LineWidth = 32

// Separator is a full-width dashed rule followed by a newline
var Separator = strings.Repeat("-", LineWidth) + "\n"

// Initialize resets the printer (ESC @)
func Initialize() []byte {
	return []byte{ESC, 0x40}
}

// Align sets text justification (ESC a n)
func Align(a Alignment) []byte {
	return []byte{ESC, 0x61, byte(a)}
}

// FeedLines prints the buffer and feeds n lines (ESC d n)
func FeedLines(n byte) []byte {
	return []byte{ESC, 0x64, n}
}

// PartialCut cuts the paper leaving one point uncut (ESC i)
func PartialCut() []byte {
	return []byte{ESC, 0x69}
}

// SelectCodeTable selects a character code table (ESC t n)
func SelectCodeTable(n byte) []byte {
	return []byte{ESC, 0x74, n}
}

// Command builds a multi-part ESC/POS sequence
type Command struct {
	buf bytes.Buffer
}

func New() *Command {
	return &Command{}
}

// Init appends ESC @
func (c *Command) Init() *Command {
	c.buf.Write(Initialize())
	return c
}

// Align appends a justification change
func (c *Command) Align(a Alignment) *Command {
	c.buf.Write(Align(a))
	return c
}

// CodeTable appends ESC t n
func (c *Command) CodeTable(n byte) *Command {
	c.buf.Write(SelectCodeTable(n))
	return c
}

// Text appends raw text bytes
func (c *Command) Text(s string) *Command {
	c.buf.WriteString(s)
	return c
}

// Line appends text followed by LF
func (c *Command) Line(s string) *Command {
	c.buf.WriteString(s)
	c.buf.WriteByte(LF)
	return c
}

// Feed appends ESC d n
func (c *Command) Feed(n byte) *Command {
	c.buf.Write(FeedLines(n))
	return c
}

// Cut appends a partial cut
func (c *Command) Cut() *Command {
	c.buf.Write(PartialCut())
	return c
}

// Raster appends a GS v 0 raster bit image in normal density.
// widthBytes: bytes per row (dots / 8)
// height: rows in dots
// data: MSB-first 1-bit rows, 1 = black
func (c *Command) Raster(widthBytes, height int, data []byte) *Command {
	c.buf.Write([]byte{
		GS, 0x76, 0x30, 0x00,
		byte(widthBytes), byte(widthBytes >> 8),
		byte(height), byte(height >> 8),
	})
	c.buf.Write(data)
	return c
}

// Bytes returns the raw command bytes to send to the printer
func (c *Command) Bytes() []byte {
	return bytes.Clone(c.buf.Bytes())
}

// Len reports the number of buffered bytes
func (c *Command) Len() int {
	return c.buf.Len()
}
