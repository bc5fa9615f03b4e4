package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"tagscribe/controller"
	"tagscribe/eventpipe"
	"tagscribe/indicator"
	"tagscribe/mqtt"
	"tagscribe/panel"
	"tagscribe/scanner"
	"tagscribe/server"
	"tagscribe/video"
)

// Config is the main configuration structure for tagscribe.
type Config struct {
	// Barcode decoder
	Scanner scanner.Config `yaml:"scanner"`

	// Tag reader
	NFC NFCConfig `yaml:"nfc"`

	// Status lights
	Indicator indicator.Config `yaml:"indicator"`

	// Framebuffer screen
	Video video.Config `yaml:"video"`

	// Rotary knob and buttons
	Panel panel.Config `yaml:"panel"`

	// MQTT connection settings
	MQTT mqtt.Config `yaml:"mqtt"`

	// Operator command pipe
	EventPipe eventpipe.Config `yaml:"event_pipe"`

	// HTTP/websocket control panel
	Server server.Config `yaml:"server"`

	// General settings
	ClientID  string `yaml:"client_id"`
	Language  string `yaml:"language"`
	ListFile  string `yaml:"list_file"`
	StartMode string `yaml:"start_mode"`
	SuccessMS int    `yaml:"success_ms"`
	RestartMS int    `yaml:"restart_ms"`
}

// NFCConfig selects the tag reader backend.
type NFCConfig struct {
	Type   string `yaml:"type"`    // "pcsc", "libnfc", "virtual" or "none"
	Device string `yaml:"device"`  // PC/SC reader name fragment or libnfc connstring
	PollMS int    `yaml:"poll_ms"` // libnfc polling interval
}

// loadConfig reads path. An empty path yields the defaults.
func loadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.ClientID == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "tagscribe"
		}
		c.ClientID = host
	}
	if c.Language == "" {
		c.Language = "ru"
	}
	if c.SuccessMS <= 0 {
		c.SuccessMS = int(controller.DefaultSuccessDuration / time.Millisecond)
	}
	if c.RestartMS <= 0 {
		c.RestartMS = int(controller.DefaultRestartDelay / time.Millisecond)
	}
	if c.Server.Name == "" {
		c.Server.Name = c.ClientID
	}
	if _, err := c.startMode(); err != nil {
		return err
	}
	switch c.NFC.Type {
	case "", "none", "pcsc", "libnfc", "virtual":
	default:
		return fmt.Errorf("unknown nfc type %q", c.NFC.Type)
	}
	return nil
}

func (c *Config) startMode() (controller.Mode, error) {
	if c.StartMode == "" {
		return controller.ScannerMode, nil
	}
	m, err := controller.ParseMode(c.StartMode)
	if err != nil {
		return 0, fmt.Errorf("start_mode: %w", err)
	}
	return m, nil
}

func (c *Config) options() controller.Options {
	mode, _ := c.startMode()
	return controller.Options{
		SuccessDuration: time.Duration(c.SuccessMS) * time.Millisecond,
		RestartDelay:    time.Duration(c.RestartMS) * time.Millisecond,
		StartMode:       mode,
	}
}
