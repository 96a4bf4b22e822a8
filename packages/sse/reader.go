// Package sse reads Server-Sent Events from a response body.
package sse

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

// ErrStopped is returned by Read when the stop function asked it to quit.
var ErrStopped = errors.New("event stream stopped")

const maxLineSize = 1 << 20

// Event represents a single SSE event.
type Event struct {
	ID    string
	Type  string
	Data  string
	Retry int
}

// Handler is a callback for handling SSE events.
type Handler func(event Event)

type config struct {
	stop      func() bool
	maxEvents int
}

// Option is a functional option for Read.
type Option func(*config)

// WithStop makes Read poll fn before every line and return ErrStopped once
// it reports true.
func WithStop(fn func() bool) Option {
	return func(c *config) {
		c.stop = fn
	}
}

// WithMaxEvents ends the read cleanly after n dispatched events.
func WithMaxEvents(n int) Option {
	return func(c *config) {
		c.maxEvents = n
	}
}

// Read parses events from r and calls handler for each one until r ends.
// It returns the number of events dispatched. A clean end of stream returns
// a nil error.
func Read(r io.Reader, handler Handler, opts ...Option) (int, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var current Event
	var dataLines []string
	hasData := false
	count := 0

	dispatch := func() bool {
		if hasData {
			current.Data = strings.Join(dataLines, "\n")
			if handler != nil {
				handler(current)
			}
			count++
		}
		// id persists across events per the SSE processing model
		current = Event{ID: current.ID}
		dataLines = nil
		hasData = false
		return cfg.maxEvents > 0 && count >= cfg.maxEvents
	}

	for scanner.Scan() {
		if cfg.stop != nil && cfg.stop() {
			return count, ErrStopped
		}

		line := strings.TrimSuffix(scanner.Text(), "\r")

		// Empty line signals end of event
		if line == "" {
			if dispatch() {
				return count, nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "event":
			current.Type = value
		case "data":
			dataLines = append(dataLines, value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				current.ID = value
			}
		case "retry":
			if n, err := strconv.Atoi(value); err == nil {
				current.Retry = n
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return count, err
	}

	// Handle an event that was not terminated by a blank line
	dispatch()
	return count, nil
}
