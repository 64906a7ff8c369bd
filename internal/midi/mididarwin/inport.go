package mididarwin

import (
	"sync"

	"github.com/leandrodaf/nanoctl/internal/midi/timing"
	"github.com/leandrodaf/nanoctl/sdk/contracts"
)

// portConnection is the handle returned by InputPort.Connect.
type portConnection interface {
	Disconnect()
}

// inPort forwards packets to the registered callback. CoreMIDI invokes the
// read proc on its own thread while the port is connected; Listen only swaps
// the callback under mu.
type inPort struct {
	name  string
	delta *timing.Delta
	conn  portConnection
	// dispose unpublishes a virtual destination.
	dispose func()

	mu      sync.Mutex
	receive contracts.ReceiveFunc
	closed  bool
}

func newInPort(name string) *inPort {
	return &inPort{name: name, delta: timing.NewDelta()}
}

func (p *inPort) Name() string { return p.name }

func (p *inPort) Listen(receive contracts.ReceiveFunc) (func(), error) {
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

func (p *inPort) deliver(data []byte) {
	p.mu.Lock()
	receive := p.receive
	p.mu.Unlock()
	if receive == nil {
		return
	}
	delta := p.delta.Now()
	for i, msg := range splitPacket(data) {
		if i > 0 {
			delta = 0
		}
		receive(msg, delta)
	}
}

func (p *inPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.receive = nil
	if p.conn != nil {
		p.conn.Disconnect()
	}
	if p.dispose != nil {
		p.dispose()
	}
	return nil
}
