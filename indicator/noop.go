package indicator

// Noop implements Indicator but does nothing.
// Used when no indicators are configured.
type Noop struct{}

func (n *Noop) Idle()           {}
func (n *Noop) Scanning()       {}
func (n *Noop) Waiting()        {}
func (n *Noop) Writing()        {}
func (n *Noop) Success()        {}
func (n *Noop) Failure()        {}
func (n *Noop) ConnectionLost() {}
func (n *Noop) SetConnected()   {}
func (n *Noop) Shutdown()       {}
func (n *Noop) Release() error  { return nil }
