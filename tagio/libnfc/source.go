// Package libnfc discovers tags through libnfc and libfreefare, for PN532
// and similar readers that are not driven through PC/SC.
package libnfc

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/clausecker/freefare"
	"github.com/clausecker/nfc/v2"

	"tagscribe/tagio"
)

// DefaultPoll is the target polling interval.
const DefaultPoll = 250 * time.Millisecond

// Source implements tagio.Source on a libnfc device.
type Source struct {
	conn string // libnfc connection string; empty picks the first device
	poll time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a disabled source.
func New(conn string, poll time.Duration) *Source {
	if poll <= 0 {
		poll = DefaultPoll
	}
	return &Source{conn: conn, poll: poll}
}

// Enable implements tagio.Source.
func (s *Source) Enable(cb func(tagio.Tag)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, cb, s.done)
	return nil
}

// Disable implements tagio.Source. It waits for the current poll to end.
func (s *Source) Disable() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Close implements tagio.Source.
func (s *Source) Close() error {
	return s.Disable()
}

func (s *Source) run(ctx context.Context, cb func(tagio.Tag), done chan struct{}) {
	defer close(done)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	backoff.RetryNotify(func() error {
		return s.session(ctx, cb, b)
	}, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		log.Printf("libnfc: %v (retry in %s)", err, d.Round(time.Millisecond))
	})
}

func (s *Source) session(ctx context.Context, cb func(tagio.Tag), b backoff.BackOff) error {
	if ctx.Err() != nil {
		return nil
	}
	dev, err := nfc.Open(s.conn)
	if err != nil {
		return fmt.Errorf("open %q: %w", s.conn, err)
	}
	defer dev.Close()
	if err := dev.InitiatorInit(); err != nil {
		return fmt.Errorf("initiator init: %w", err)
	}
	log.Printf("libnfc: opened %s", dev.String())
	b.Reset()

	var seen presence
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		tags, err := freefare.GetTags(dev)
		if err != nil {
			return fmt.Errorf("get tags: %w", err)
		}
		var uids []string
		for _, t := range tags {
			uids = append(uids, strings.ToUpper(t.UID()))
		}
		for _, i := range seen.update(uids) {
			tag := adapt(tags[i], uids[i])
			log.Printf("libnfc: tag %s (%s) presented", tag.UID(), tag.Type())
			cb(tag)
		}
	}
}

// adapt turns a freefare tag into a tagio.Tag. Only the Ultralight family
// is Type 2; Classic and DESFire are reported as unsupported.
func adapt(t freefare.Tag, uid string) tagio.Tag {
	switch ft := t.(type) {
	case freefare.UltralightTag:
		return classify(uid, ft.Type() == freefare.UltralightC, &ultralight{tag: ft})
	case freefare.ClassicTag:
		return tagio.Unsupported(uid, "MIFARE Classic")
	case freefare.DESFireTag:
		return tagio.Unsupported(uid, "MIFARE DESFire")
	}
	return tagio.Unsupported(uid, "ISO 14443-A")
}

// classify sizes an Ultralight family tag and probes its container.
func classify(uid string, ultralightC bool, t tagio.PageTransport) tagio.Tag {
	chip := tagio.UltralightC
	if !ultralightC {
		if err := t.Connect(); err != nil {
			log.Printf("libnfc: connect %s: %v", uid, err)
			return tagio.Unsupported(uid, tagio.Ultralight.Name)
		}
		// NTAG21x chips enumerate as plain Ultralight
		chip = tagio.DetectChip(t)
		t.Disconnect()
	}
	tag, err := tagio.ProbeType2(uid, t, chip)
	if err != nil {
		log.Printf("libnfc: probe %s: %v", uid, err)
		return tagio.Unsupported(uid, chip.Name)
	}
	return tag
}

// ultralight adapts freefare.UltralightTag to tagio.PageTransport.
type ultralight struct {
	tag freefare.UltralightTag
}

func (u *ultralight) Connect() error    { return u.tag.Connect() }
func (u *ultralight) Disconnect() error { return u.tag.Disconnect() }

func (u *ultralight) ReadPage(page byte) ([4]byte, error) {
	return u.tag.ReadPage(page)
}

func (u *ultralight) WritePage(page byte, data [4]byte) error {
	return u.tag.WritePage(page, data)
}

// presence tracks the UIDs in the field between polls.
type presence struct {
	last map[string]bool
}

// update records the current UIDs and returns the indexes of those that
// were not present on the previous poll.
func (p *presence) update(uids []string) []int {
	now := make(map[string]bool, len(uids))
	var fresh []int
	for i, uid := range uids {
		if now[uid] {
			continue
		}
		now[uid] = true
		if !p.last[uid] {
			fresh = append(fresh, i)
		}
	}
	p.last = now
	return fresh
}
