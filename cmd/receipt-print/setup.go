package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"receipt-print/internal/config"
	"receipt-print/internal/escpos"
	"receipt-print/internal/imaging"
	"receipt-print/internal/printer"
	"receipt-print/internal/transport"
)

// newTransport builds the transport selected by cfg.Transport
func newTransport(cfg *config.Config, logger *slog.Logger) (printer.Transport, error) {
	switch cfg.Transport {
	case config.TransportBLE:
		return transport.NewBLE(cfg.BLE, logger), nil
	case config.TransportSerial:
		return transport.NewSerial(cfg.Serial, logger), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// clientOptions translates the printer section of cfg into client options
func clientOptions(cfg *config.Config, logger *slog.Logger) ([]printer.Option, error) {
	enc, err := escpos.LookupEncoding(cfg.Printer.Encoding)
	if err != nil {
		return nil, err
	}

	header, err := headerGraphic(cfg.Printer)
	if err != nil {
		return nil, err
	}

	opts := []printer.Option{
		printer.WithLogger(logger),
		printer.WithEncoding(enc),
		printer.WithFilters(printer.DefaultFilters(cfg.Printer.NamePrefixes...)),
	}
	if n, ok := escpos.CodeTable(cfg.Printer.Encoding); ok {
		opts = append(opts, printer.WithCodeTable(n))
	}
	if len(header) > 0 {
		opts = append(opts, printer.WithHeaderGraphic(header))
	}
	return opts, nil
}

// fallbackOptions keeps discovery narrowed to the configured printers when
// the header graphic cannot be built
func fallbackOptions(cfg *config.Config, logger *slog.Logger) []printer.Option {
	return []printer.Option{
		printer.WithLogger(logger),
		printer.WithFilters(printer.DefaultFilters(cfg.Printer.NamePrefixes...)),
	}
}

// headerGraphic rasterizes the configured logo and banner into a single
// GS v 0 command. It returns nil when neither is configured.
func headerGraphic(pc config.PrinterConfig) ([]byte, error) {
	cmd := escpos.New()

	if pc.LogoPath != "" {
		img, err := imaging.LoadImage(pc.LogoPath)
		if err != nil {
			return nil, fmt.Errorf("logo: %w", err)
		}
		bm := imaging.ToMonochrome(img, pc.PaperWidthDots, imaging.DefaultThreshold)
		cmd.Raster(bm.WidthBytes, bm.Height, bm.Data)
	}

	if pc.BannerText != "" {
		img, err := imaging.RenderBanner(pc.BannerText, pc.PaperWidthDots, pc.BannerFontSize)
		if err != nil {
			return nil, fmt.Errorf("banner: %w", err)
		}
		bm := imaging.ToMonochrome(img, pc.PaperWidthDots, imaging.DefaultThreshold)
		cmd.Raster(bm.WidthBytes, bm.Height, bm.Data)
	}

	if cmd.Len() == 0 {
		return nil, nil
	}
	return cmd.Bytes(), nil
}

// testPage is a short self-test slip that names the device and code page
func testPage(deviceName, encoding string) []byte {
	cmd := escpos.New().Init()
	if n, ok := escpos.CodeTable(encoding); ok {
		cmd.CodeTable(n)
	}
	return cmd.
		Align(escpos.AlignCenter).
		Line("PRINTER TEST").
		Line(deviceName).
		Text(escpos.Separator).
		Align(escpos.AlignLeft).
		Line("Encoding: " + encoding).
		Line("0123456789 ABCDEFGHIJ abcdefghij").
		Feed(2).
		Cut().
		Bytes()
}

// loadTransaction decodes a transaction JSON document
func loadTransaction(r io.Reader) (printer.Transaction, error) {
	var tx printer.Transaction
	if err := json.NewDecoder(r).Decode(&tx); err != nil {
		return printer.Transaction{}, fmt.Errorf("decode transaction: %w", err)
	}
	return tx, nil
}

// summarize describes a loaded transaction for the status line
func summarize(tx printer.Transaction) string {
	return fmt.Sprintf("%d item(s), total %s", len(tx.Items), tx.Total.Format())
}
