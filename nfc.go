package main

import (
	"log"
	"time"

	"tagscribe/tagio"
	"tagscribe/tagio/libnfc"
	"tagscribe/tagio/pcsc"
)

// newTagSource builds the configured reader backend. The virtual source is
// always returned so operator "tag" commands work; when no hardware reader
// is configured it is also the active source.
func newTagSource(cfg NFCConfig) (tagio.Source, *tagio.VirtualSource) {
	virtual := tagio.NewVirtualSource()

	switch cfg.Type {
	case "pcsc":
		log.Printf("NFC: PC/SC reader %q", cfg.Device)
		return pcsc.New(cfg.Device), virtual
	case "libnfc":
		log.Printf("NFC: libnfc device %q", cfg.Device)
		return libnfc.New(cfg.Device, time.Duration(cfg.PollMS)*time.Millisecond), virtual
	case "virtual":
		log.Println("NFC: virtual tags only")
	default:
		log.Println("NFC: no reader configured, virtual tags only")
	}
	return nil, virtual
}
