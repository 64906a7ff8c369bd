// Package rtmidi adapts the gomidi rtmidi driver to contracts.Backend. It is
// the default backend on Linux (ALSA) and works on every platform rtmidi
// supports, including virtual ports where the OS provides them.
package rtmidi

import (
	"fmt"
	"sync"

	"github.com/leandrodaf/nanoctl/internal/midi/timing"
	"github.com/leandrodaf/nanoctl/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Name identifies this backend in configuration.
const Name = "rtmidi"

// Backend wraps an rtmididrv.Driver.
type Backend struct {
	logger contracts.Logger

	mu     sync.Mutex
	drv    *rtmididrv.Driver
	closed bool
}

// New initializes the rtmidi driver.
func New(logger contracts.Logger) (*Backend, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("%w: rtmididrv: %v", contracts.ErrBackendUnavailable, err)
	}
	logger.Debug("rtmidi driver initialized", logger.Field().String("driver", drv.String()))
	return &Backend{logger: logger, drv: drv}, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return Name }

// Ports lists input or output port names in driver order.
func (b *Backend) Ports(dir contracts.Direction) ([]string, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if dir == contracts.Output {
		outs, err := b.drv.Outs()
		if err != nil {
			return nil, err
		}
		names := make([]string, len(outs))
		for i, out := range outs {
			names[i] = out.String()
		}
		return names, nil
	}
	ins, err := b.drv.Ins()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names, nil
}

// OpenIn opens the input port at index.
func (b *Backend) OpenIn(index int) (contracts.InPort, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	ins, err := b.drv.Ins()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(ins) {
		return nil, contracts.ErrIndexOutOfRange
	}
	in := ins[index]
	if err := in.Open(); err != nil {
		return nil, err
	}
	return newInPort(in, b.logger), nil
}

// OpenOut opens the output port at index.
func (b *Backend) OpenOut(index int) (contracts.OutPort, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	outs, err := b.drv.Outs()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(outs) {
		return nil, contracts.ErrIndexOutOfRange
	}
	out := outs[index]
	if err := out.Open(); err != nil {
		return nil, err
	}
	return &outPort{out: out}, nil
}

// OpenVirtualIn creates a virtual input that other applications can write to.
func (b *Backend) OpenVirtualIn(name string) (contracts.InPort, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	in, err := b.drv.OpenVirtualIn(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrVirtualPortsUnsupported, err)
	}
	return newInPort(in, b.logger), nil
}

// OpenVirtualOut creates a virtual output that other applications can read.
func (b *Backend) OpenVirtualOut(name string) (contracts.OutPort, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	out, err := b.drv.OpenVirtualOut(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrVirtualPortsUnsupported, err)
	}
	return &outPort{out: out}, nil
}

// Close shuts down the driver. Ports must be closed first.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.drv.Close()
}

func (b *Backend) check() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return contracts.ErrPortClosed
	}
	return nil
}

type inPort struct {
	in     drivers.In
	logger contracts.Logger
	delta  *timing.Delta
}

func newInPort(in drivers.In, logger contracts.Logger) *inPort {
	return &inPort{in: in, logger: logger, delta: timing.NewDelta()}
}

func (p *inPort) Name() string { return p.in.String() }

// Listen registers receive with the driver. Only channel messages are
// requested; SysEx, time code and active sensing are filtered by rtmidi.
func (p *inPort) Listen(receive contracts.ReceiveFunc) (func(), error) {
	return p.in.Listen(func(msg []byte, milliseconds int32) {
		receive(msg, p.delta.Millis(int64(milliseconds)))
	}, drivers.ListenConfig{
		OnErr: func(err error) {
			p.logger.Warn("rtmidi input error",
				p.logger.Field().String("port", p.in.String()),
				p.logger.Field().Error("error", err))
		},
	})
}

func (p *inPort) Close() error { return p.in.Close() }

type outPort struct {
	out drivers.Out
}

func (p *outPort) Name() string { return p.out.String() }

func (p *outPort) Send(data []byte) error { return p.out.Send(data) }

func (p *outPort) Close() error { return p.out.Close() }
