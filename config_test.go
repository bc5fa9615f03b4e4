package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tagscribe/controller"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tagscribe.yml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ClientID == "" || cfg.Server.Name != cfg.ClientID {
		t.Errorf("client id %q, server name %q", cfg.ClientID, cfg.Server.Name)
	}
	if cfg.Language != "ru" {
		t.Errorf("language = %q", cfg.Language)
	}
	opts := cfg.options()
	if opts.SuccessDuration != time.Second || opts.RestartDelay != 2*time.Second {
		t.Errorf("options = %+v", opts)
	}
	if opts.StartMode != controller.ScannerMode {
		t.Errorf("start mode = %v", opts.StartMode)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
client_id: bench-1
language: en
start_mode: list
list_file: /srv/items.csv
success_ms: 500
scanner:
  type: serial
  device: /dev/ttyACM0
  baud: 9600
nfc:
  type: pcsc
  device: ACR122
mqtt:
  host: broker.local
server:
  listen: ":8080"
  mdns: true
panel:
  clk_pin: 17
  dt_pin: 27
  buttons:
    mode: 22
    flip: 23
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ClientID != "bench-1" || cfg.Language != "en" || cfg.ListFile != "/srv/items.csv" {
		t.Errorf("general = %+v", cfg)
	}
	if cfg.Scanner.Type != "serial" || cfg.Scanner.Baud != 9600 {
		t.Errorf("scanner = %+v", cfg.Scanner)
	}
	if cfg.NFC.Type != "pcsc" || cfg.NFC.Device != "ACR122" {
		t.Errorf("nfc = %+v", cfg.NFC)
	}
	if cfg.Server.Name != "bench-1" || !cfg.Server.MDNS {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Panel.Buttons["flip"] != 23 || !cfg.Panel.Configured() {
		t.Errorf("panel = %+v", cfg.Panel)
	}
	opts := cfg.options()
	if opts.StartMode != controller.ListMode || opts.SuccessDuration != 500*time.Millisecond {
		t.Errorf("options = %+v", opts)
	}
	if opts.RestartDelay != controller.DefaultRestartDelay {
		t.Errorf("restart delay = %v", opts.RestartDelay)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	for name, body := range map[string]string{
		"bad mode": "start_mode: keypad\n",
		"bad nfc":  "nfc:\n  type: bluetooth\n",
		"bad yaml": "client_id: [\n",
	} {
		if _, err := loadConfig(writeConfig(t, body)); err == nil {
			t.Errorf("%s: loadConfig succeeded", name)
		}
	}
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("missing file: loadConfig succeeded")
	}
}
