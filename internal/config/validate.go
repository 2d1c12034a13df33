package config

import (
	"errors"
	"fmt"
	"strings"

	"receipt-print/internal/escpos"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks cfg for values no transport can work with.
func Validate(cfg *Config) error {
	var problems []string

	switch cfg.Transport {
	case TransportBLE, TransportSerial:
	default:
		problems = append(problems, fmt.Sprintf("transport %q (want %q or %q)", cfg.Transport, TransportBLE, TransportSerial))
	}

	if cfg.Printer.PaperWidthDots <= 0 || cfg.Printer.PaperWidthDots%8 != 0 {
		problems = append(problems, fmt.Sprintf("printer.paper_width_dots %d must be a positive multiple of 8", cfg.Printer.PaperWidthDots))
	}
	if _, err := escpos.LookupEncoding(cfg.Printer.Encoding); err != nil {
		problems = append(problems, "printer.encoding: "+err.Error())
	}
	if cfg.Printer.BannerText != "" && cfg.Printer.BannerFontSize <= 0 {
		problems = append(problems, "printer.banner_font_size must be positive")
	}
	for _, p := range cfg.Printer.NamePrefixes {
		if p == "" {
			problems = append(problems, "printer.name_prefixes contains an empty prefix")
			break
		}
	}

	if cfg.BLE.ScanTimeout < 0 {
		problems = append(problems, "ble.scan_timeout must not be negative")
	}
	if cfg.BLE.ChunkSize <= 0 {
		problems = append(problems, "ble.chunk_size must be positive")
	}
	if cfg.BLE.WriteInterval < 0 {
		problems = append(problems, "ble.write_interval must not be negative")
	}

	if cfg.Serial.Channel < 1 || cfg.Serial.Channel > 30 {
		problems = append(problems, fmt.Sprintf("serial.channel %d out of range 1-30", cfg.Serial.Channel))
	}
	if cfg.Serial.BaudRate <= 0 {
		problems = append(problems, "serial.baud_rate must be positive")
	}

	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("logger.format %q (want text or json)", cfg.Logger.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
