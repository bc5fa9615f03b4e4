// Package pcsc discovers tags on PC/SC readers such as the ACR122U.
package pcsc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/ebfe/scard"

	"tagscribe/tagio"
)

const statusTimeout = 500 * time.Millisecond

// Source implements tagio.Source for a PC/SC reader.
type Source struct {
	reader string // substring of the reader name; empty picks the first

	mu     sync.Mutex
	sc     *scard.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a disabled source.
func New(reader string) *Source {
	return &Source{reader: reader}
}

// scardCard closes by disconnecting and leaving the card powered.
type scardCard struct {
	*scard.Card
}

func (c scardCard) Close() error {
	return c.Disconnect(scard.LeaveCard)
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

// Disable implements tagio.Source. A blocked status wait is cancelled.
func (s *Source) Disable() error {
	s.mu.Lock()
	cancel, done, sc := s.cancel, s.done, s.sc
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if sc != nil {
		sc.Cancel()
	}
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
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		return s.session(ctx, cb, b)
	}, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		log.Printf("PC/SC: %v (retry in %s)", err, d.Round(time.Millisecond))
	})
	if err != nil && ctx.Err() == nil {
		log.Printf("PC/SC: giving up: %v", err)
	}
}

// session runs until ctx is cancelled (nil) or the reader fails (error).
func (s *Source) session(ctx context.Context, cb func(tagio.Tag), b backoff.BackOff) error {
	if ctx.Err() != nil {
		return nil
	}
	sc, err := scard.EstablishContext()
	if err != nil {
		return fmt.Errorf("establish context: %w", err)
	}
	s.setContext(sc)
	defer func() {
		s.setContext(nil)
		sc.Release()
	}()

	readers, err := sc.ListReaders()
	if err != nil {
		return fmt.Errorf("list readers: %w", err)
	}
	reader, ok := pickReader(readers, s.reader)
	if !ok {
		return fmt.Errorf("no reader matching %q among %q", s.reader, readers)
	}
	log.Printf("PC/SC: using reader %s", reader)
	b.Reset()

	states := []scard.ReaderState{{Reader: reader, CurrentState: scard.StateUnaware}}
	present := false
	for {
		if ctx.Err() != nil {
			return nil
		}
		err := sc.GetStatusChange(states, statusTimeout)
		if err != nil {
			if errors.Is(err, scard.ErrTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("status change on %s: %w", reader, err)
		}

		ev := states[0].EventState
		states[0].CurrentState = ev
		now := ev&scard.StatePresent != 0 && ev&scard.StateMute == 0
		if now && !present {
			s.handleCard(sc, reader, cb)
		}
		present = now
	}
}

func (s *Source) setContext(sc *scard.Context) {
	s.mu.Lock()
	s.sc = sc
	s.mu.Unlock()
}

func (s *Source) handleCard(sc *scard.Context, reader string, cb func(tagio.Tag)) {
	dial := func() (card, error) {
		c, err := sc.Connect(reader, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
		if err != nil {
			return nil, err
		}
		return scardCard{c}, nil
	}

	tag, err := identify(dial)
	if err != nil {
		log.Printf("PC/SC: identify card: %v", err)
		return
	}
	log.Printf("PC/SC: tag %s (%s) presented", tag.UID(), tag.Type())
	cb(tag)
}

func pickReader(readers []string, want string) (string, bool) {
	for _, r := range readers {
		if want == "" || strings.Contains(strings.ToLower(r), strings.ToLower(want)) {
			return r, true
		}
	}
	return "", false
}
