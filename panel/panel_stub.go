//go:build !linux

package panel

import "errors"

var ErrNotSupported = errors.New("panel GPIO not supported on this platform")

// Panel is a stub for non-linux platforms.
type Panel struct{}

// New returns an error on non-linux platforms when lines are configured.
func New(cfg Config, handlers Handlers) (*Panel, error) {
	if !cfg.Configured() {
		return nil, nil
	}
	return nil, ErrNotSupported
}

func (p *Panel) Release() error { return nil }
