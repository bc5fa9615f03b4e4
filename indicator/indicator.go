package indicator

// Indicator is the interface for status indicator implementations (LEDs, neopixels, etc).
type Indicator interface {
	// Idle: nothing armed.
	Idle()

	// Scanning: the barcode scanner is armed.
	Scanning()

	// Waiting: a value is pending and a tag should be presented.
	Waiting()

	// Writing: a tag write is in progress.
	Writing()

	// Success: the last write succeeded.
	Success()

	// Failure: the last write failed.
	Failure()

	// ConnectionLost: the broker connection dropped. The next Idle shows
	// the lost state until SetConnected.
	ConnectionLost()

	// SetConnected restores the normal idle pattern.
	SetConnected()

	// Shutdown sets the indicator to shutdown state.
	Shutdown()

	// Release releases any hardware resources.
	Release() error
}

// Config holds configuration for indicator implementations.
type Config struct {
	// GPIO LED pins (nil = not configured)
	GreenPin  *uint8 `yaml:"green_pin"`
	YellowPin *uint8 `yaml:"yellow_pin"`
	RedPin    *uint8 `yaml:"red_pin"`

	// Neopixel pipe path (empty = not configured)
	NeopixelPipe string `yaml:"neopixel_pipe"`
}

// New creates an Indicator based on the provided configuration.
// Returns a Multi indicator if both GPIO and Neopixel are configured.
func New(cfg Config) (Indicator, error) {
	var indicators []Indicator

	if cfg.GreenPin != nil || cfg.YellowPin != nil || cfg.RedPin != nil {
		gpio, err := NewGPIO(cfg.GreenPin, cfg.YellowPin, cfg.RedPin)
		if err != nil {
			return nil, err
		}
		indicators = append(indicators, gpio)
	}

	if cfg.NeopixelPipe != "" {
		neo, err := NewNeopixel(cfg.NeopixelPipe)
		if err != nil {
			return nil, err
		}
		indicators = append(indicators, neo)
	}

	return Combine(indicators...), nil
}

// Combine returns a single indicator driving all of inds.
func Combine(inds ...Indicator) Indicator {
	switch len(inds) {
	case 0:
		return &Noop{}
	case 1:
		return inds[0]
	}
	return &Multi{indicators: inds}
}
