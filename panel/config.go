package panel

// Config holds the GPIO lines of the operator panel.
type Config struct {
	Chip      string `yaml:"chip"`
	CLKPin    int    `yaml:"clk_pin"`
	DTPin     int    `yaml:"dt_pin"`
	ButtonPin int    `yaml:"button_pin"` // encoder push

	// Buttons maps a command line (e.g. "mode", "scan toggle", "flip") to
	// the line offset of a push button.
	Buttons map[string]int `yaml:"buttons"`
}

// Configured reports whether any line is set.
func (c Config) Configured() bool {
	return c.CLKPin != 0 || c.DTPin != 0 || c.ButtonPin != 0 || len(c.Buttons) > 0
}

// Handlers holds callback functions for panel events. They run on the
// gpiocdev event goroutine.
type Handlers struct {
	OnTurn   func(delta int) // +1 (CW) or -1 (CCW)
	OnPress  func()
	OnButton func(command string)
}
