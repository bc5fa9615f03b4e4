// Package controller sequences scans, list traversal and tag writes.
//
// Every method must be called from the event loop goroutine. Hardware
// callbacks post onto the loop; timed follow-ups are scheduled through the
// Scheduler, which runs them on the loop as well.
package controller

import (
	"log"
	"time"

	"github.com/google/uuid"

	"tagscribe/itemlist"
	"tagscribe/loop"
	"tagscribe/tagio"
)

// ScanSource arms and disarms the barcode decoder.
type ScanSource interface {
	StartScan() error
	StopScan() error
}

// TagWriter writes a value to a discovered tag.
type TagWriter interface {
	Write(tag tagio.Tag, text string) error
}

// Scheduler runs deferred functions on the event loop.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) loop.TimerID
	Cancel(id loop.TimerID) bool
}

// Options tunes the timed follow-ups.
type Options struct {
	SuccessDuration time.Duration // how long the success indicator stays up
	RestartDelay    time.Duration // delay before scanning restarts after a write
	StartMode       Mode
	Now             func() time.Time
}

// Defaults for Options fields left zero.
const (
	DefaultSuccessDuration = time.Second
	DefaultRestartDelay    = 2 * time.Second
)

// Controller owns the mode/phase state machine.
type Controller struct {
	scan   ScanSource
	writer TagWriter
	sched  Scheduler
	opts   Options

	mode     Mode
	phase    Phase
	lastScan string
	status   string
	success  bool
	fault    bool
	flipped  bool
	list     itemlist.List

	hideTimer    loop.TimerID
	restartTimer loop.TimerID

	published    State
	hasPublished bool
	stateSubs    []func(State)
	writeSubs    []func(WriteEvent)
}

// New creates a controller in Idle phase.
func New(scan ScanSource, writer TagWriter, sched Scheduler, opts Options) *Controller {
	if opts.SuccessDuration <= 0 {
		opts.SuccessDuration = DefaultSuccessDuration
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		scan:   scan,
		writer: writer,
		sched:  sched,
		opts:   opts,
		mode:   opts.StartMode,
		status: StatusReady,
	}
}

// OnState registers fn to receive every changed snapshot. fn runs on the
// loop and must not block.
func (c *Controller) OnState(fn func(State)) {
	c.stateSubs = append(c.stateSubs, fn)
}

// OnWrite registers fn to receive every write attempt.
func (c *Controller) OnWrite(fn func(WriteEvent)) {
	c.writeSubs = append(c.writeSubs, fn)
}

// State returns the current snapshot.
func (c *Controller) State() State {
	s := State{
		Mode:         c.mode,
		Phase:        c.phase,
		LastScan:     c.lastScan,
		Status:       c.status,
		Success:      c.success,
		Fault:        c.fault,
		ListActive:   c.list.Active(),
		ListLen:      c.list.Len(),
		ListPosition: c.list.Position(),
		ListItem:     c.list.At(),
		Flipped:      c.flipped,
	}
	return s
}

// Publish sends the current snapshot to subscribers if it changed.
func (c *Controller) Publish() {
	s := c.State()
	if c.hasPublished && s == c.published {
		return
	}
	c.published = s
	c.hasPublished = true
	for _, fn := range c.stateSubs {
		fn(s)
	}
}

// ToggleMode switches between scanner and list mode.
func (c *Controller) ToggleMode() {
	if c.mode == ScannerMode {
		c.SetMode(ListMode)
	} else {
		c.SetMode(ScannerMode)
	}
}

// SetMode selects the source the next tag consults. Phase and list state
// are left alone.
func (c *Controller) SetMode(m Mode) {
	if c.mode != m {
		log.Printf("Controller: mode %s -> %s", c.mode, m)
	}
	c.mode = m
	c.Publish()
}

// StartScan arms the decoder.
func (c *Controller) StartScan() {
	c.cancel(&c.restartTimer)
	c.phase = Scanning
	c.status = StatusScanning
	c.fault = false
	if err := c.scan.StartScan(); err != nil {
		log.Printf("Controller: start scan: %v", err)
		c.phase = Idle
		c.status = StatusScannerError
	}
	c.Publish()
}

// StopScan disarms the decoder and returns to Idle.
func (c *Controller) StopScan() {
	c.cancel(&c.restartTimer)
	if err := c.scan.StopScan(); err != nil {
		log.Printf("Controller: stop scan: %v", err)
	}
	c.phase = Idle
	c.status = StatusReady
	c.Publish()
}

// HandleDecode receives a decoder result. Decodes that arrive when no scan
// is armed are stale and dropped.
func (c *Controller) HandleDecode(value string, ok bool) {
	if !ok || value == "" {
		return
	}
	if c.phase != Scanning {
		log.Printf("Controller: decode %q ignored in phase %s", value, c.phase)
		return
	}
	if c.mode != ScannerMode {
		log.Printf("Controller: decode %q ignored in %s mode", value, c.mode)
		c.phase = Idle
		c.Publish()
		return
	}

	c.lastScan = value
	c.phase = AwaitingTag
	c.status = StatusPresentTag
	c.Publish()
}

func (c *Controller) pending() (string, bool) {
	switch c.mode {
	case ScannerMode:
		if c.phase == AwaitingTag && c.lastScan != "" {
			return c.lastScan, true
		}
	case ListMode:
		if v, ok := c.list.Current(); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// HandleTag writes the pending value to tag. Without a pending value the
// tag is ignored.
func (c *Controller) HandleTag(tag tagio.Tag) {
	value, ok := c.pending()
	if !ok {
		log.Printf("Controller: tag %s ignored, nothing pending", tag.UID())
		return
	}

	prev := c.phase
	if prev == Writing {
		// A scanner write still waiting for its restart; this write supersedes it
		c.cancel(&c.restartTimer)
		prev = Idle
	}
	mode := c.mode
	c.phase = Writing
	c.status = StatusWriting
	c.success = false
	c.fault = false
	c.Publish()

	err := c.writer.Write(tag, value)

	evt := WriteEvent{
		ID:      uuid.NewString(),
		Mode:    mode,
		Value:   value,
		TagUID:  tag.UID(),
		TagType: tag.Type(),
		Result:  "ok",
		At:      c.opts.Now(),
	}
	if err != nil {
		log.Printf("Controller: write %q to tag %s: %v", value, tag.UID(), err)
		code := tagio.CodeOf(err)
		if code == 0 {
			code = tagio.CodeWriteFailed
		}
		evt.Result = code.String()
		evt.Error = err.Error()
		c.writeFailed(prev, code)
	} else {
		log.Printf("Controller: wrote %q to tag %s (%s)", value, tag.UID(), tag.Type())
		c.writeSucceeded(prev)
	}

	c.Publish()
	for _, fn := range c.writeSubs {
		fn(evt)
	}
}

func (c *Controller) writeSucceeded(prev Phase) {
	c.status = StatusWritten
	c.success = true
	c.cancel(&c.hideTimer)
	c.hideTimer = c.sched.AfterFunc(c.opts.SuccessDuration, c.hideSuccess)

	switch c.mode {
	case ScannerMode:
		c.cancel(&c.restartTimer)
		c.restartTimer = c.sched.AfterFunc(c.opts.RestartDelay, c.restartScan)
	case ListMode:
		c.phase = prev
		if !c.list.Active() {
			return
		}
		if c.list.Advance() {
			c.status = statusPresentFor(c.list.At())
		} else {
			c.status = StatusListComplete
			log.Printf("Controller: list complete (%d items)", c.list.Len())
		}
	}
}

func (c *Controller) writeFailed(prev Phase, code tagio.ErrorCode) {
	c.fault = true
	c.cancel(&c.hideTimer)
	switch code {
	case tagio.CodeUnsupported:
		c.status = StatusUnsupported
	case tagio.CodeCapacityExceeded:
		c.status = StatusTooLong
	default:
		c.status = StatusWriteError
	}
	if c.mode == ScannerMode {
		c.phase = AwaitingTag
	} else {
		c.phase = prev
	}
}

func (c *Controller) hideSuccess() {
	c.hideTimer = 0
	c.success = false
	c.Publish()
}

func (c *Controller) restartScan() {
	c.restartTimer = 0
	if c.mode != ScannerMode || c.phase != Writing {
		return
	}
	c.StartScan()
}

func (c *Controller) cancel(id *loop.TimerID) {
	if *id != 0 {
		c.sched.Cancel(*id)
		*id = 0
	}
}

// LoadList replaces the list. Traversal stops until StartList.
func (c *Controller) LoadList(items []string) {
	c.list.Replace(items)
	if len(items) == 0 {
		c.status = StatusListEmpty
	} else {
		c.status = statusLoaded(len(items))
	}
	log.Printf("Controller: loaded list of %d items", len(items))
	c.Publish()
}

// LoadListError reports a list that could not be read.
func (c *Controller) LoadListError(err error) {
	log.Printf("Controller: load list: %v", err)
	c.status = StatusListReadError
	c.Publish()
}

// StartList begins traversal at the first item.
func (c *Controller) StartList() {
	if err := c.list.Start(); err != nil {
		c.status = StatusNoList
		c.Publish()
		return
	}
	c.fault = false
	c.status = statusPresentFor(c.list.At())
	c.Publish()
}

// StopList ends traversal.
func (c *Controller) StopList() {
	c.list.Stop()
	c.status = StatusReady
	c.Publish()
}

// Seek moves the traversal position by delta in list mode.
func (c *Controller) Seek(delta int) {
	if c.mode != ListMode || c.phase == Writing || !c.list.Active() {
		return
	}
	if c.list.Seek(delta) {
		c.status = statusPresentFor(c.list.At())
		c.Publish()
	}
}

// ToggleOrientation flips the display orientation.
func (c *Controller) ToggleOrientation() {
	c.flipped = !c.flipped
	c.Publish()
}
