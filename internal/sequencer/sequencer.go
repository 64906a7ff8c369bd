// Package sequencer writes LED commands to a controller's output port.
//
// All writes go through a single Sequencer so that output ports, which are
// not safe for concurrent use, only ever see one writer.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/nanoctl/internal/codec"
	"github.com/leandrodaf/nanoctl/sdk/contracts"
)

// ErrInvalidPattern is returned for patterns that cannot be sent.
var ErrInvalidPattern = errors.New("invalid pattern")

// Sequencer serializes writes to one output port.
type Sequencer struct {
	port   contracts.OutPort
	logger contracts.Logger

	mu   sync.Mutex
	sent atomic.Uint64
}

// New creates a Sequencer writing to port.
func New(port contracts.OutPort, logger contracts.Logger) *Sequencer {
	return &Sequencer{port: port, logger: logger}
}

// Send writes one frame. The three bytes are handed to the port in a single
// call; concurrent callers are serialized.
func (s *Sequencer) Send(frame contracts.Frame) error {
	s.mu.Lock()
	err := s.port.Send(frame.Bytes())
	s.mu.Unlock()

	if err != nil {
		return &contracts.SendError{Frame: frame, Err: err}
	}
	s.sent.Add(1)
	return nil
}

// Sent returns the number of frames written successfully.
func (s *Sequencer) Sent() uint64 {
	return s.sent.Load()
}

// SetLED turns the LED of a controller on or off.
func (s *Sequencer) SetLED(channel uint8, controller byte, on bool) error {
	value := contracts.ValueRelease
	if on {
		value = contracts.ValuePress
	}
	frame, err := codec.NewFrame(channel, controller, value)
	if err != nil {
		return err
	}
	return s.Send(frame)
}

// ClearLEDs sends the release value to every controller of the pattern,
// without delays.
func (s *Sequencer) ClearLEDs(p contracts.Pattern) error {
	if err := Validate(p); err != nil {
		return err
	}
	for ch := int(p.ChannelLow); ch < int(p.ChannelHigh); ch++ {
		for cc := int(p.Low); cc < int(p.High); cc++ {
			frame, err := codec.NewFrame(uint8(ch), byte(cc), p.Release)
			if err != nil {
				return err
			}
			if err := s.Send(frame); err != nil {
				return err
			}
		}
	}
	return nil
}

// RunPattern sends the press/release sweep described by p.
//
// For each channel in [ChannelLow, ChannelHigh) and each controller in
// [Low, High), in ascending order, it sends the press frame, waits Delay,
// sends the release frame and waits Delay again. The context is checked
// before every send and during every wait, so cancellation takes effect
// within one Delay. On cancellation the context's error is returned; a
// failed write is returned as *contracts.SendError and ends the sweep.
func (s *Sequencer) RunPattern(ctx context.Context, p contracts.Pattern) error {
	if err := Validate(p); err != nil {
		return err
	}

	for ch := int(p.ChannelLow); ch < int(p.ChannelHigh); ch++ {
		for cc := int(p.Low); cc < int(p.High); cc++ {
			for _, value := range [2]byte{p.Press, p.Release} {
				if err := ctx.Err(); err != nil {
					return err
				}
				frame, err := codec.NewFrame(uint8(ch), byte(cc), value)
				if err != nil {
					return err
				}
				if err := s.Send(frame); err != nil {
					return err
				}
				if err := sleep(ctx, p.Delay); err != nil {
					return err
				}
			}
		}
	}
	s.logger.Debug("LED pattern complete",
		s.logger.Field().Uint8("low", p.Low),
		s.logger.Field().Uint8("high", p.High))
	return nil
}

// Validate checks that every frame of p is representable on the wire.
func Validate(p contracts.Pattern) error {
	switch {
	case p.Low >= p.High:
		return fmt.Errorf("%w: empty controller range [0x%02X, 0x%02X)", ErrInvalidPattern, p.Low, p.High)
	case p.High > contracts.DataMask+1:
		return fmt.Errorf("%w: controller range ends above 0x80", ErrInvalidPattern)
	case p.ChannelLow >= p.ChannelHigh:
		return fmt.Errorf("%w: empty channel range [%d, %d)", ErrInvalidPattern, p.ChannelLow, p.ChannelHigh)
	case p.ChannelHigh > 16:
		return fmt.Errorf("%w: channel range ends above 16", ErrInvalidPattern)
	case p.Press > contracts.DataMask || p.Release > contracts.DataMask:
		return fmt.Errorf("%w: press/release values must be 0-127", ErrInvalidPattern)
	case p.Delay < 0:
		return fmt.Errorf("%w: negative delay", ErrInvalidPattern)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Task is a pattern running in its own goroutine.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start runs RunPattern in a new goroutine. The task stops when it
// completes, when ctx is canceled or when Cancel is called. Failures are not
// logged here; the caller reads them from Wait.
func (s *Sequencer) Start(ctx context.Context, p contracts.Pattern) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer cancel()
		t.err = s.RunPattern(ctx, p)
	}()
	return t
}

// Cancel requests the task to stop. It does not wait.
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed when the task has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task exits and returns its result.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}
