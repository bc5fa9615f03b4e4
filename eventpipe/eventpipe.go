package eventpipe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"tagscribe/command"
)

// Config holds configuration for the event pipe.
type Config struct {
	Path string `yaml:"path"` // Path to named pipe (e.g., "/tmp/tagscribe-commands")
}

// retryDelay is the pause after a failed open.
var retryDelay = time.Second

// Handler is called for every command read from the pipe.
type Handler func(command.Command)

// EventPipe listens for operator commands on a named pipe.
type EventPipe struct {
	path    string
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	opens   atomic.Int64
}

// New creates a new EventPipe. Returns nil if path is empty.
func New(cfg Config, handler Handler) (*EventPipe, error) {
	if cfg.Path == "" {
		return nil, nil
	}

	// Remove a stale pipe from a previous run
	os.Remove(cfg.Path)

	if err := syscall.Mkfifo(cfg.Path, 0666); err != nil {
		return nil, fmt.Errorf("create named pipe %s: %w", cfg.Path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &EventPipe{
		path:    cfg.Path,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins listening for commands on the pipe.
// This should be called as a goroutine.
func (ep *EventPipe) Start() {
	log.Printf("Event pipe listening on %s", ep.path)

	for {
		if ep.ctx.Err() != nil {
			return
		}

		// Blocks until a writer connects
		ep.opens.Add(1)
		file, err := os.OpenFile(ep.path, os.O_RDONLY, 0)
		if err != nil {
			if ep.ctx.Err() != nil {
				return
			}
			log.Printf("Event pipe open error: %v", err)
			select {
			case <-ep.ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}

		ep.read(file)
		file.Close()
		// Writer closed the pipe, loop back to wait for next writer
	}
}

func (ep *EventPipe) read(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ep.ctx.Err() != nil {
			return
		}

		cmd, err := command.Parse(scanner.Text())
		if errors.Is(err, command.ErrEmpty) {
			continue
		}
		if err != nil {
			log.Printf("Event pipe parse error: %v", err)
			continue
		}

		if ep.handler != nil {
			ep.handler(cmd)
		}
	}
}

// Close stops the event pipe listener and removes the pipe.
func (ep *EventPipe) Close() error {
	ep.cancel()
	// Unblock a pending open in Start
	if f, err := os.OpenFile(ep.path, os.O_WRONLY|syscall.O_NONBLOCK, 0); err == nil {
		f.Close()
	}
	return os.Remove(ep.path)
}
