// Package loop runs a control surface: it opens the ports, listens for
// input and drives the LED pattern until told to stop.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/nanoctl/internal/listener"
	"github.com/leandrodaf/nanoctl/internal/ports"
	"github.com/leandrodaf/nanoctl/internal/sequencer"
	"github.com/leandrodaf/nanoctl/sdk/contracts"
	"go.uber.org/multierr"
)

// State is the lifecycle stage of a Loop.
type State int32

const (
	Idle State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrAlreadyStarted is returned by Run on a Loop that has been run before.
var ErrAlreadyStarted = errors.New("control loop already started")

var errListenerStopped = errors.New("listener stopped unexpectedly")

// DefaultIdleInterval is used when Config.IdleInterval is not positive.
const DefaultIdleInterval = time.Second

// Config holds the loop settings.
type Config struct {
	DebugLogging     bool
	RunPattern       bool
	IdleInterval     time.Duration
	Pattern          contracts.Pattern
	RetryOnSendError bool
	EventBuffer      int

	InputIndex        int // -1 applies the default port policy.
	OutputIndex       int // -1 applies the default port policy.
	VirtualInputName  string
	VirtualOutputName string
}

// ConfigFromOptions extracts the loop settings from driver options.
func ConfigFromOptions(opts contracts.ControllerOptions) Config {
	return Config{
		DebugLogging:      opts.DebugLogging,
		RunPattern:        opts.RunPattern,
		IdleInterval:      opts.IdleInterval,
		Pattern:           opts.Pattern,
		RetryOnSendError:  opts.RetryOnSendError,
		EventBuffer:       opts.EventBuffer,
		InputIndex:        opts.InputIndex,
		OutputIndex:       opts.OutputIndex,
		VirtualInputName:  opts.VirtualInputName,
		VirtualOutputName: opts.VirtualOutputName,
	}
}

// Loop ties together the port manager, the listener and the sequencer.
type Loop struct {
	ports    *ports.Manager
	cfg      Config
	logger   contracts.Logger
	consumer contracts.EventConsumer

	state    atomic.Int32
	patterns atomic.Uint64
	listener atomic.Pointer[listener.Listener]
}

// New creates a Loop. When consumer is nil, events are logged at info level.
func New(manager *ports.Manager, cfg Config, logger contracts.Logger, consumer contracts.EventConsumer) *Loop {
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = DefaultIdleInterval
	}
	l := &Loop{ports: manager, cfg: cfg, logger: logger, consumer: consumer}
	if l.consumer == nil {
		l.consumer = l.logEvent
	}
	return l
}

// State returns the current lifecycle stage.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Patterns returns the number of LED patterns completed.
func (l *Loop) Patterns() uint64 {
	return l.patterns.Load()
}

// Stats returns the listener counters, or zero before the ports are open.
func (l *Loop) Stats() listener.Stats {
	if ls := l.listener.Load(); ls != nil {
		return ls.Stats()
	}
	return listener.Stats{}
}

// Run opens the ports and runs until ctx is canceled or a fatal error
// occurs. Cancellation is a normal stop and returns nil. Every port is
// released before Run returns.
func (l *Loop) Run(ctx context.Context) (err error) {
	if !l.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return ErrAlreadyStarted
	}
	defer func() {
		if cerr := l.ports.Close(); cerr != nil {
			err = multierr.Append(err, cerr)
		}
		l.state.Store(int32(Stopped))
		l.logger.Info("Bye!")
	}()

	if l.cfg.DebugLogging {
		l.ports.LogPorts()
	}

	in, err := l.openInput()
	if err != nil {
		l.logger.Error("Failed to open MIDI input", l.logger.Field().Error("error", err))
		return err
	}
	out, err := l.openOutput()
	if err != nil {
		l.logger.Error("Failed to open MIDI output", l.logger.Field().Error("error", err))
		return err
	}

	ls := listener.New(l.logger, l.consumer,
		listener.WithBuffer(l.cfg.EventBuffer),
		listener.WithDebug(l.cfg.DebugLogging))
	l.listener.Store(ls)
	seq := sequencer.New(out, l.logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var listenErr error
	listenExited := make(chan struct{})
	go func() {
		defer close(listenExited)
		listenErr = ls.Listen(runCtx, in)
	}()

	l.logger.Info("Type <ctrl>-C to exit.")
	err = l.run(runCtx, seq, listenExited)

	l.state.Store(int32(Stopping))
	cancel()
	<-listenExited
	if err == errListenerStopped && listenErr != nil {
		err = listenErr
	}

	if l.cfg.RunPattern {
		if cerr := seq.ClearLEDs(l.cfg.Pattern); cerr != nil {
			l.logger.Warn("Failed to clear LEDs", l.logger.Field().Error("error", cerr))
		}
	}
	return err
}

// run is the Running state. It returns nil when ctx is canceled.
func (l *Loop) run(ctx context.Context, seq *sequencer.Sequencer, listenExited <-chan struct{}) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		if !l.cfg.RunPattern {
			if err := l.idle(ctx, listenExited); err != nil {
				return err
			}
			continue
		}

		task := seq.Start(ctx, l.cfg.Pattern)
		select {
		case <-task.Done():
		case <-listenExited:
			task.Cancel()
			_ = task.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return errListenerStopped
		}

		err := task.Wait()
		switch {
		case err == nil:
			l.patterns.Add(1)
		case ctx.Err() != nil:
			return nil
		case l.cfg.RetryOnSendError && isSendError(err):
			l.logger.Warn("LED pattern interrupted; retrying", l.logger.Field().Error("error", err))
			if err := l.idle(ctx, listenExited); err != nil {
				return err
			}
		default:
			return err
		}
	}
}

// idle waits one IdleInterval.
func (l *Loop) idle(ctx context.Context, listenExited <-chan struct{}) error {
	t := time.NewTimer(l.cfg.IdleInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil
	case <-listenExited:
		if ctx.Err() != nil {
			return nil
		}
		return errListenerStopped
	case <-t.C:
		return nil
	}
}

func (l *Loop) openInput() (contracts.InPort, error) {
	if l.cfg.InputIndex >= 0 {
		return l.ports.OpenInput(l.cfg.InputIndex)
	}
	return l.ports.OpenDefaultInput(l.cfg.VirtualInputName)
}

func (l *Loop) openOutput() (contracts.OutPort, error) {
	if l.cfg.OutputIndex >= 0 {
		return l.ports.OpenOutput(l.cfg.OutputIndex)
	}
	return l.ports.OpenDefaultOutput(l.cfg.VirtualOutputName)
}

func (l *Loop) logEvent(ev contracts.ControllerEvent, delta float64) {
	l.logger.Info("MIDI event",
		l.logger.Field().String("event", ev.String()),
		l.logger.Field().String("delta", fmt.Sprintf("%0.3f", delta)))
}

func isSendError(err error) bool {
	var se *contracts.SendError
	return errors.As(err, &se)
}
