package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport kinds
const (
	TransportBLE    = "ble"
	TransportSerial = "serial"
)

// Config is the top-level application configuration.
type Config struct {
	Transport string         `yaml:"transport"`
	Business  BusinessConfig `yaml:"business"`
	Printer   PrinterConfig  `yaml:"printer"`
	BLE       BLEConfig      `yaml:"ble"`
	Serial    SerialConfig   `yaml:"serial"`
	Logger    LoggerConfig   `yaml:"logger"`
}

// BusinessConfig prefills the receipt header.
type BusinessConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Phone   string `yaml:"phone"`
}

// PrinterConfig holds settings shared by every transport.
type PrinterConfig struct {
	NamePrefixes   []string `yaml:"name_prefixes"`
	Encoding       string   `yaml:"encoding"`         // utf-8, cp437, cp850, ...
	PaperWidthDots int      `yaml:"paper_width_dots"` // 384 for 58mm, 576 for 80mm
	LogoPath       string   `yaml:"logo_path"`
	BannerText     string   `yaml:"banner_text"`
	BannerFontSize float64  `yaml:"banner_font_size"`
}

// BLEConfig holds Bluetooth Low Energy transport settings.
type BLEConfig struct {
	ScanTimeout   time.Duration `yaml:"scan_timeout"`
	ChunkSize     int           `yaml:"chunk_size"`     // bytes per write-without-response
	WriteInterval time.Duration `yaml:"write_interval"` // pause between chunks, 0 = unpaced
}

// SerialConfig holds classic Bluetooth (SPP over RFCOMM) settings.
type SerialConfig struct {
	Port     string `yaml:"port"`   // open this port directly, skipping discovery
	Device   string `yaml:"device"` // preferred paired device MAC (COM port on Windows)
	Channel  int    `yaml:"channel"`
	BaudRate int    `yaml:"baud_rate"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	Output string `yaml:"output"` // stderr, stdout, or a file path
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Transport: TransportBLE,
		Printer: PrinterConfig{
			NamePrefixes:   []string{"PT-", "MTP-", "TM-", "XP-"},
			Encoding:       "utf-8",
			PaperWidthDots: 384,
			BannerFontSize: 24,
		},
		BLE: BLEConfig{
			ScanTimeout: 15 * time.Second,
			ChunkSize:   20,
		},
		Serial: SerialConfig{
			Channel:  1,
			BaudRate: 115200,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads a YAML config file and applies env var overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies RECEIPTPRINT_* environment variables on top of cfg.
func ApplyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("RECEIPTPRINT_TRANSPORT"); v != "" {
		cfg.Transport = strings.ToLower(v)
	}
	if v := os.Getenv("RECEIPTPRINT_BUSINESS_NAME"); v != "" {
		cfg.Business.Name = v
	}
	if v := os.Getenv("RECEIPTPRINT_PRINTER_ENCODING"); v != "" {
		cfg.Printer.Encoding = v
	}
	if v := os.Getenv("RECEIPTPRINT_PRINTER_NAME_PREFIXES"); v != "" {
		cfg.Printer.NamePrefixes = splitList(v)
	}
	if v := os.Getenv("RECEIPTPRINT_BLE_SCAN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RECEIPTPRINT_BLE_SCAN_TIMEOUT: %w", err)
		}
		cfg.BLE.ScanTimeout = d
	}
	if v := os.Getenv("RECEIPTPRINT_SERIAL_PORT"); v != "" {
		cfg.Serial.Port = v
	}
	if v := os.Getenv("RECEIPTPRINT_SERIAL_DEVICE"); v != "" {
		cfg.Serial.Device = v
	}
	if v := os.Getenv("RECEIPTPRINT_SERIAL_BAUD_RATE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RECEIPTPRINT_SERIAL_BAUD_RATE: %w", err)
		}
		cfg.Serial.BaudRate = n
	}
	if v := os.Getenv("RECEIPTPRINT_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("RECEIPTPRINT_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
