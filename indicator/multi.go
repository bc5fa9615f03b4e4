package indicator

// Multi combines multiple Indicator implementations.
type Multi struct {
	indicators []Indicator
}

func (m *Multi) each(fn func(Indicator)) {
	for _, ind := range m.indicators {
		fn(ind)
	}
}

func (m *Multi) Idle()           { m.each(Indicator.Idle) }
func (m *Multi) Scanning()       { m.each(Indicator.Scanning) }
func (m *Multi) Waiting()        { m.each(Indicator.Waiting) }
func (m *Multi) Writing()        { m.each(Indicator.Writing) }
func (m *Multi) Success()        { m.each(Indicator.Success) }
func (m *Multi) Failure()        { m.each(Indicator.Failure) }
func (m *Multi) ConnectionLost() { m.each(Indicator.ConnectionLost) }
func (m *Multi) SetConnected()   { m.each(Indicator.SetConnected) }
func (m *Multi) Shutdown()       { m.each(Indicator.Shutdown) }

// Release implements Indicator.Release. All indicators are released; the
// last error is returned.
func (m *Multi) Release() error {
	var lastErr error
	for _, ind := range m.indicators {
		if err := ind.Release(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
