package scanner

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"
)

// ErrClosed is returned by StartScan after Close.
var ErrClosed = errors.New("scanner closed")

// Trigger arms a Decoder for one decode at a time. After a decode it
// disarms itself and invokes the callback; StartScan must be called again
// for the next barcode.
//
// A nil Decoder is allowed: the trigger can still be armed and fed with
// Inject.
type Trigger struct {
	dec Decoder

	mu     sync.Mutex
	cb     func(value string, ok bool)
	armed  bool
	closed bool
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{} // closed when the current reader goroutine exits
}

// NewTrigger wraps dec.
func NewTrigger(dec Decoder) *Trigger {
	return &Trigger{dec: dec}
}

// SetDecodeCallback sets the function receiving decodes. It is called from
// the reader goroutine or from Inject.
func (t *Trigger) SetDecodeCallback(cb func(value string, ok bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cb = cb
}

// StartScan arms the trigger. Starting an armed trigger is a no-op.
func (t *Trigger) StartScan() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.armed {
		return nil
	}

	t.armed = true
	t.gen++
	if t.dec == nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	prev := t.done
	done := make(chan struct{})
	t.done = done
	go t.read(ctx, t.gen, prev, done)
	return nil
}

// StopScan disarms the trigger.
func (t *Trigger) StopScan() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disarmLocked()
	return nil
}

func (t *Trigger) disarmLocked() {
	t.armed = false
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Scanning reports whether the trigger is armed.
func (t *Trigger) Scanning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

// Inject delivers value as if decoded. It returns false when the trigger
// is not armed.
func (t *Trigger) Inject(value string) bool {
	t.mu.Lock()
	gen := t.gen
	t.mu.Unlock()
	return t.deliver(gen, value)
}

func (t *Trigger) deliver(gen uint64, value string) bool {
	t.mu.Lock()
	if !t.armed || gen != t.gen {
		t.mu.Unlock()
		return false
	}
	t.disarmLocked()
	cb := t.cb
	t.mu.Unlock()

	if cb != nil {
		cb(value, true)
	}
	return true
}

func (t *Trigger) read(ctx context.Context, gen uint64, prev, done chan struct{}) {
	defer close(done)

	// one Read at a time on the device; the previous reader has been
	// cancelled and returns promptly
	if prev != nil {
		<-prev
	}
	if ctx.Err() != nil {
		return
	}
	if f, ok := t.dec.(flusher); ok {
		f.Flush()
	}

	for {
		value, err := t.dec.Read(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("Scanner: read: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		log.Printf("Scanner: decoded %q", value)
		t.deliver(gen, value)
		return
	}
}

// Close disarms the trigger, waits for the reader and closes the decoder.
func (t *Trigger) Close() error {
	t.mu.Lock()
	t.closed = true
	t.disarmLocked()
	done := t.done
	t.mu.Unlock()

	if done != nil {
		<-done
	}
	if t.dec == nil {
		return nil
	}
	return t.dec.Close()
}
