package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receipt-print/internal/config"
	"receipt-print/internal/escpos"
	"receipt-print/internal/transport"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var rasterHeader = []byte{0x1D, 0x76, 0x30, 0x00}

func TestNewTransport(t *testing.T) {
	cfg := config.Defaults()
	cfg.Transport = config.TransportSerial

	tr, err := newTransport(cfg, discard)
	require.NoError(t, err)
	assert.IsType(t, &transport.Serial{}, tr)

	cfg.Transport = "usb"
	_, err = newTransport(cfg, discard)
	assert.Error(t, err)
}

func TestClientOptions(t *testing.T) {
	cfg := config.Defaults()
	opts, err := clientOptions(cfg, discard)
	require.NoError(t, err)
	assert.Len(t, opts, 3)

	cfg.Printer.BannerText = "ACME"
	opts, err = clientOptions(cfg, discard)
	require.NoError(t, err)
	assert.Len(t, opts, 4)

	cfg.Printer.Encoding = "cp858"
	opts, err = clientOptions(cfg, discard)
	require.NoError(t, err)
	assert.Len(t, opts, 5, "code table selection joins the encoding")

	cfg.Printer.Encoding = "ebcdic"
	_, err = clientOptions(cfg, discard)
	assert.Error(t, err)
}

func TestFallbackOptions(t *testing.T) {
	cfg := config.Defaults()
	cfg.Printer.LogoPath = filepath.Join(t.TempDir(), "missing.png")

	_, err := clientOptions(cfg, discard)
	require.Error(t, err)
	assert.Len(t, fallbackOptions(cfg, discard), 2)
}

func TestHeaderGraphicNone(t *testing.T) {
	got, err := headerGraphic(config.Defaults().Printer)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHeaderGraphicBanner(t *testing.T) {
	pc := config.Defaults().Printer
	pc.BannerText = "Acme Store"

	got, err := headerGraphic(pc)
	require.NoError(t, err)
	require.Greater(t, len(got), 8)
	assert.Equal(t, rasterHeader, got[:4])
	assert.Equal(t, byte(pc.PaperWidthDots/8), got[4])
}

func TestHeaderGraphicLogoAndBanner(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 16))
	for x := 0; x < 64; x++ {
		img.SetGray(x, 8, color.Gray{})
	}
	path := filepath.Join(t.TempDir(), "logo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	pc := config.Defaults().Printer
	pc.LogoPath = path
	pc.BannerText = "Acme"

	got, err := headerGraphic(pc)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(got, rasterHeader))

	// the logo is never upscaled: 64 dots wide, 16 rows
	assert.Equal(t, []byte{8, 0, 16, 0}, got[4:8])
}

func TestHeaderGraphicMissingLogo(t *testing.T) {
	pc := config.Defaults().Printer
	pc.LogoPath = filepath.Join(t.TempDir(), "missing.png")

	_, err := headerGraphic(pc)
	assert.ErrorContains(t, err, "logo")
}

func TestTestPage(t *testing.T) {
	page := testPage("PT-210", "cp858")
	assert.True(t, bytes.HasPrefix(page, append(escpos.Initialize(), escpos.SelectCodeTable(19)...)))
	assert.Contains(t, string(page), "PT-210\n")
	assert.True(t, bytes.HasSuffix(page, escpos.PartialCut()))

	utf := testPage("PT-210", "utf-8")
	assert.False(t, bytes.Contains(utf, []byte{0x1B, 0x74}))
}

func TestLoadTransaction(t *testing.T) {
	tx, err := loadTransaction(strings.NewReader(`{
		"receiptNumber": "R-1",
		"items": [{"name": "Cola", "quantity": 2, "price": 1.5}],
		"total": 3.24
	}`))
	require.NoError(t, err)
	assert.Equal(t, "R-1", tx.ReceiptNumber)
	assert.Equal(t, "1 item(s), total 3.24", summarize(tx))

	_, err = loadTransaction(strings.NewReader("{"))
	assert.Error(t, err)
}
