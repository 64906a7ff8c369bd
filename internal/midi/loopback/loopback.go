// Package loopback implements an in-memory MIDI backend. Messages sent to an
// output are recorded and, when echo is enabled, delivered to the open input
// port of the same name. It stands in for hardware during dry runs and tests.
package loopback

import (
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/nanoctl/internal/midi/timing"
	"github.com/leandrodaf/nanoctl/sdk/contracts"
	"go.uber.org/multierr"
)

// Name identifies this backend in configuration.
const Name = "loopback"

// Option configures a Backend.
type Option func(*Backend)

// WithPorts sets the names of the enumerated input and output ports.
func WithPorts(ins, outs []string) Option {
	return func(b *Backend) {
		b.inNames = append([]string(nil), ins...)
		b.outNames = append([]string(nil), outs...)
	}
}

// WithoutVirtualPorts makes virtual port creation fail with
// contracts.ErrVirtualPortsUnsupported.
func WithoutVirtualPorts() Option {
	return func(b *Backend) {
		b.virtual = false
	}
}

// WithEcho delivers every sent message to the open input of the same name.
func WithEcho() Option {
	return func(b *Backend) {
		b.echo = true
	}
}

// Backend is an in-memory contracts.Backend.
type Backend struct {
	mu       sync.Mutex
	inNames  []string
	outNames []string
	virtual  bool
	echo     bool
	closed   bool
	ins      []*InPort
	outs     []*OutPort
}

// New creates a loopback backend. Without options it has no enumerated ports
// and supports virtual ports.
func New(opts ...Option) *Backend {
	b := &Backend{virtual: true}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return Name }

// Ports returns the configured port names.
func (b *Backend) Ports(dir contracts.Direction) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, contracts.ErrPortClosed
	}
	if dir == contracts.Output {
		return append([]string(nil), b.outNames...), nil
	}
	return append([]string(nil), b.inNames...), nil
}

// OpenIn opens an enumerated input port.
func (b *Backend) OpenIn(index int) (contracts.InPort, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.inNames) {
		return nil, fmt.Errorf("%w: %d", contracts.ErrIndexOutOfRange, index)
	}
	return b.addIn(b.inNames[index]), nil
}

// OpenOut opens an enumerated output port.
func (b *Backend) OpenOut(index int) (contracts.OutPort, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.outNames) {
		return nil, fmt.Errorf("%w: %d", contracts.ErrIndexOutOfRange, index)
	}
	return b.addOut(b.outNames[index]), nil
}

// OpenVirtualIn creates a virtual input port.
func (b *Backend) OpenVirtualIn(name string) (contracts.InPort, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.virtual {
		return nil, contracts.ErrVirtualPortsUnsupported
	}
	return b.addIn(name), nil
}

// OpenVirtualOut creates a virtual output port.
func (b *Backend) OpenVirtualOut(name string) (contracts.OutPort, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.virtual {
		return nil, contracts.ErrVirtualPortsUnsupported
	}
	return b.addOut(name), nil
}

// Close closes every port opened through the backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	ins, outs := b.ins, b.outs
	b.closed = true
	b.mu.Unlock()

	var err error
	for _, p := range ins {
		err = multierr.Append(err, p.Close())
	}
	for _, p := range outs {
		err = multierr.Append(err, p.Close())
	}
	return err
}

// Inputs returns the input ports opened so far.
func (b *Backend) Inputs() []*InPort {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*InPort(nil), b.ins...)
}

// Outputs returns the output ports opened so far.
func (b *Backend) Outputs() []*OutPort {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*OutPort(nil), b.outs...)
}

func (b *Backend) addIn(name string) *InPort {
	p := &InPort{name: name, delta: timing.NewDelta()}
	b.ins = append(b.ins, p)
	return p
}

func (b *Backend) addOut(name string) *OutPort {
	p := &OutPort{name: name, backend: b}
	b.outs = append(b.outs, p)
	return p
}

func (b *Backend) deliver(name string, data []byte) {
	b.mu.Lock()
	if !b.echo {
		b.mu.Unlock()
		return
	}
	var targets []*InPort
	for _, p := range b.ins {
		if p.name == name {
			targets = append(targets, p)
		}
	}
	b.mu.Unlock()

	for _, p := range targets {
		p.Inject(data)
	}
}

// InPort is a loopback input port.
type InPort struct {
	name    string
	delta   *timing.Delta
	mu      sync.Mutex
	receive contracts.ReceiveFunc
	closed  bool
}

// Name returns the port name.
func (p *InPort) Name() string { return p.name }

// Listen registers the receive callback, replacing any previous one.
func (p *InPort) Listen(receive contracts.ReceiveFunc) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, contracts.ErrPortClosed
	}
	p.receive = receive
	return func() {
		p.mu.Lock()
		p.receive = nil
		p.mu.Unlock()
	}, nil
}

// Inject delivers a message as if it arrived from hardware, timestamped with
// the local clock. It reports whether a callback received it.
func (p *InPort) Inject(data []byte) bool {
	return p.InjectWithDelta(data, p.delta.Now())
}

// InjectWithDelta delivers a message with an explicit delta time.
func (p *InPort) InjectWithDelta(data []byte, delta float64) bool {
	p.mu.Lock()
	receive := p.receive
	closed := p.closed
	p.mu.Unlock()

	if closed || receive == nil {
		return false
	}
	receive(append([]byte(nil), data...), delta)
	return true
}

// Listening reports whether a receive callback is registered.
func (p *InPort) Listening() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.receive != nil && !p.closed
}

// Closed reports whether Close has been called.
func (p *InPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close stops delivery.
func (p *InPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.receive = nil
	return nil
}

// Sent is a message recorded by an OutPort.
type Sent struct {
	Data []byte
	At   time.Time
}

// OutPort is a loopback output port.
type OutPort struct {
	name    string
	backend *Backend

	mu        sync.Mutex
	sent      []Sent
	closed    bool
	failAfter int
	failErr   error
	onSend    func(data []byte)
}

// Name returns the port name.
func (p *OutPort) Name() string { return p.name }

// Send records the message and echoes it if enabled.
func (p *OutPort) Send(data []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return contracts.ErrPortClosed
	}
	if p.failErr != nil && len(p.sent) >= p.failAfter {
		err := p.failErr
		p.mu.Unlock()
		return err
	}
	msg := append([]byte(nil), data...)
	p.sent = append(p.sent, Sent{Data: msg, At: time.Now()})
	onSend := p.onSend
	p.mu.Unlock()

	if onSend != nil {
		onSend(msg)
	}
	p.backend.deliver(p.name, msg)
	return nil
}

// FailAfter makes every send after the first n fail with err.
func (p *OutPort) FailAfter(n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failAfter = n
	p.failErr = err
}

// OnSend registers a hook invoked after each successful send.
func (p *OutPort) OnSend(fn func(data []byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSend = fn
}

// Sent returns the messages written so far.
func (p *OutPort) Sent() []Sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sent(nil), p.sent...)
}

// Closed reports whether Close has been called.
func (p *OutPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close rejects further sends.
func (p *OutPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
