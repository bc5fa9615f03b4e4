package indicator

import (
	"fmt"

	"github.com/hjkoskel/govattu"
)

// GPIO implements Indicator using discrete GPIO LED pins.
type GPIO struct {
	hw        govattu.Vattu
	greenPin  *uint8
	yellowPin *uint8
	redPin    *uint8
	lost      bool
}

// NewGPIO creates a new GPIO-based indicator.
func NewGPIO(greenPin, yellowPin, redPin *uint8) (*GPIO, error) {
	hw, err := govattu.Open()
	if err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}

	g := &GPIO{
		hw:        hw,
		greenPin:  greenPin,
		yellowPin: yellowPin,
		redPin:    redPin,
	}
	for _, pin := range []*uint8{greenPin, yellowPin, redPin} {
		if pin != nil {
			hw.PinMode(*pin, govattu.ALToutput)
			hw.PinClear(*pin)
		}
	}
	return g, nil
}

// Idle implements Indicator.Idle.
func (g *GPIO) Idle() {
	if g.lost {
		g.show(g.yellowPin, g.redPin)
		return
	}
	g.show()
}

func (g *GPIO) Scanning() { g.show(g.yellowPin) }
func (g *GPIO) Waiting()  { g.show(g.greenPin, g.yellowPin) }
func (g *GPIO) Writing()  { g.show(g.yellowPin) }
func (g *GPIO) Success()  { g.show(g.greenPin) }
func (g *GPIO) Failure()  { g.show(g.redPin) }

// ConnectionLost implements Indicator.ConnectionLost.
func (g *GPIO) ConnectionLost() {
	g.lost = true
	g.show(g.yellowPin, g.redPin)
}

// SetConnected implements Indicator.SetConnected.
func (g *GPIO) SetConnected() {
	g.lost = false
}

// Shutdown implements Indicator.Shutdown.
func (g *GPIO) Shutdown() {
	g.show()
}

// Release implements Indicator.Release.
func (g *GPIO) Release() error {
	g.show()
	return g.hw.Close()
}

// show lights exactly the given pins.
func (g *GPIO) show(on ...*uint8) {
	for _, pin := range []*uint8{g.greenPin, g.yellowPin, g.redPin} {
		if pin != nil {
			g.hw.PinClear(*pin)
		}
	}
	for _, pin := range on {
		if pin != nil {
			g.hw.PinSet(*pin)
		}
	}
}
