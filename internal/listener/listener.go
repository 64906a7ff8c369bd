// Package listener decodes messages arriving on an input port and forwards
// the resulting events to a consumer.
package listener

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/leandrodaf/nanoctl/internal/codec"
	"github.com/leandrodaf/nanoctl/sdk/contracts"
	gomidi "gitlab.com/gomidi/midi/v2"
)

// DefaultBuffer is the capacity of the channel between the backend callback
// and the consumer goroutine.
const DefaultBuffer = 128

// Stats counts messages seen by a Listener.
type Stats struct {
	Received uint64 // Raw messages delivered by the backend.
	Decoded  uint64 // Messages decoded into events.
	Rejected uint64 // Messages that failed to decode.
	Dropped  uint64 // Events discarded because the buffer was full or no consumer was set.
}

// Option configures a Listener.
type Option func(*Listener)

// WithBuffer sets the event channel capacity.
func WithBuffer(n int) Option {
	return func(l *Listener) {
		if n > 0 {
			l.buffer = n
		}
	}
}

// WithDebug logs every raw message at debug level.
func WithDebug(enabled bool) Option {
	return func(l *Listener) {
		l.debug = enabled
	}
}

// WithErrorHandler receives every decode error in addition to the log.
// It runs on the backend's goroutine and must not block.
func WithErrorHandler(fn func(error)) Option {
	return func(l *Listener) {
		l.onError = fn
	}
}

type received struct {
	event contracts.ControllerEvent
	delta float64
}

// Listener decodes raw messages on the backend's goroutine and hands the
// events to the consumer from its own goroutine, one at a time and in
// delivery order. A message that fails to decode is logged and skipped.
type Listener struct {
	logger   contracts.Logger
	consumer contracts.EventConsumer
	buffer   int
	debug    bool
	onError  func(error)

	events chan received

	nReceived atomic.Uint64
	nDecoded  atomic.Uint64
	nRejected atomic.Uint64
	nDropped  atomic.Uint64
}

// New creates a Listener. A nil consumer drops every event.
func New(logger contracts.Logger, consumer contracts.EventConsumer, opts ...Option) *Listener {
	l := &Listener{
		logger:   logger,
		consumer: consumer,
		buffer:   DefaultBuffer,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.events = make(chan received, l.buffer)
	return l
}

// Listen registers on port and dispatches events until ctx is canceled.
// It returns nil on cancellation and a *contracts.PortError if the port
// refuses the callback.
func (l *Listener) Listen(ctx context.Context, port contracts.InPort) error {
	stop, err := port.Listen(l.receive)
	if err != nil {
		return &contracts.PortError{Op: "listen", Direction: contracts.Input, Index: -1, Name: port.Name(), Err: err}
	}
	defer stop()

	l.logger.Info("Listening for MIDI input", l.logger.Field().String("port", port.Name()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-l.events:
			l.dispatch(r)
		}
	}
}

// Stats returns a snapshot of the message counters.
func (l *Listener) Stats() Stats {
	return Stats{
		Received: l.nReceived.Load(),
		Decoded:  l.nDecoded.Load(),
		Rejected: l.nRejected.Load(),
		Dropped:  l.nDropped.Load(),
	}
}

// receive runs on the backend's goroutine.
func (l *Listener) receive(data []byte, delta float64) {
	l.nReceived.Add(1)
	if l.debug {
		l.logger.Debug("Rx message",
			l.logger.Field().String("frame", formatFrame(data)),
			l.logger.Field().String("delta", fmt.Sprintf("%0.3f", delta)),
			l.logger.Field().String("message", describe(data)))
	}

	ev, err := codec.Decode(data)
	if err != nil {
		l.nRejected.Add(1)
		l.reportDecodeError(err, data)
		return
	}
	l.nDecoded.Add(1)

	select {
	case l.events <- received{event: ev, delta: delta}:
	default:
		l.nDropped.Add(1)
		l.logger.Warn("Event buffer full; dropping MIDI event", l.logger.Field().String("event", ev.String()))
	}
}

func (l *Listener) dispatch(r received) {
	if l.consumer == nil {
		l.nDropped.Add(1)
		return
	}
	defer func() {
		if p := recover(); p != nil {
			l.logger.Error("Event consumer panicked",
				l.logger.Field().String("event", r.event.String()),
				l.logger.Field().String("panic", fmt.Sprint(p)))
		}
	}()
	l.consumer(r.event, r.delta)
}

func (l *Listener) reportDecodeError(err error, data []byte) {
	kind := err.Error()
	var de *contracts.DecodeError
	if errors.As(err, &de) {
		kind = de.Kind.Error()
	}
	l.logger.Warn("Discarding undecodable MIDI message",
		l.logger.Field().String("kind", kind),
		l.logger.Field().String("frame", formatFrame(data)))
	if l.onError != nil {
		l.onError(err)
	}
}

// describe renders complete three-byte messages the way gomidi prints them.
func describe(data []byte) string {
	if len(data) != contracts.FrameSize {
		return fmt.Sprintf("%d-byte message", len(data))
	}
	return gomidi.Message(data).String()
}

func formatFrame(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("0x%02X", b)
	}
	return strings.Join(parts, ", ")
}
