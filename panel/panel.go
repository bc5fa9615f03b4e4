//go:build linux

package panel

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const (
	debounceRotary = 250 * time.Microsecond
	debounceButton = 2 * time.Millisecond
)

// Panel handles the rotary encoder and push buttons.
type Panel struct {
	mu       sync.Mutex
	q        quadrature
	clk      int // CLK line offset
	lines    []*gpiocdev.Line
	handlers Handlers
	buttons  map[int]string
}

// New requests the configured lines.
// Returns nil if no line is configured.
func New(cfg Config, handlers Handlers) (*Panel, error) {
	if !cfg.Configured() {
		return nil, nil
	}
	if cfg.Chip == "" {
		cfg.Chip = "gpiochip0"
	}

	p := &Panel{handlers: handlers, buttons: map[int]string{}, clk: cfg.CLKPin}

	if cfg.CLKPin != 0 || cfg.DTPin != 0 {
		for _, pin := range []int{cfg.DTPin, cfg.CLKPin} {
			if _, err := p.request(cfg.Chip, pin, gpiocdev.WithBothEdges,
				gpiocdev.WithDebounce(debounceRotary), gpiocdev.WithEventHandler(p.handleEncoder)); err != nil {
				p.Release()
				return nil, err
			}
		}
	}

	if cfg.ButtonPin > 0 {
		if _, err := p.request(cfg.Chip, cfg.ButtonPin, gpiocdev.WithFallingEdge,
			gpiocdev.WithDebounce(debounceButton), gpiocdev.WithEventHandler(p.handlePress)); err != nil {
			p.Release()
			return nil, err
		}
	}

	for cmd, pin := range cfg.Buttons {
		p.buttons[pin] = cmd
		if _, err := p.request(cfg.Chip, pin, gpiocdev.WithFallingEdge,
			gpiocdev.WithDebounce(debounceButton), gpiocdev.WithEventHandler(p.handleButton)); err != nil {
			p.Release()
			return nil, err
		}
	}

	return p, nil
}

func (p *Panel) request(chip string, offset int, opts ...gpiocdev.LineReqOption) (*gpiocdev.Line, error) {
	opts = append([]gpiocdev.LineReqOption{gpiocdev.WithPullUp}, opts...)
	l, err := gpiocdev.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request %s line %d: %w", chip, offset, err)
	}
	p.lines = append(p.lines, l)
	return l, nil
}

func (p *Panel) handleEncoder(evt gpiocdev.LineEvent) {
	level := 0
	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		level = 1
	case gpiocdev.LineEventFallingEdge:
	default:
		return
	}

	p.mu.Lock()
	step := p.q.edge(evt.Offset == p.clk, level)
	p.mu.Unlock()

	if step != 0 && p.handlers.OnTurn != nil {
		p.handlers.OnTurn(step)
	}
}

func (p *Panel) handlePress(evt gpiocdev.LineEvent) {
	if p.handlers.OnPress != nil {
		p.handlers.OnPress()
	}
}

func (p *Panel) handleButton(evt gpiocdev.LineEvent) {
	cmd, ok := p.buttons[evt.Offset]
	if !ok {
		return
	}
	log.Printf("Panel: button %q", cmd)
	if p.handlers.OnButton != nil {
		p.handlers.OnButton(cmd)
	}
}

// Release releases GPIO resources.
func (p *Panel) Release() error {
	for _, l := range p.lines {
		l.Close()
	}
	p.lines = nil
	return nil
}
