//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/nanoctl/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// Error definitions for CoreMIDI port handling.
var (
	ErrCreateInputPort  = errors.New("error creating input port")
	ErrCreateOutputPort = errors.New("error creating output port")
	ErrConnectSource    = errors.New("error connecting to MIDI source")
)

// Backend drives MIDI through CoreMIDI on macOS. Sources are enumerated as
// inputs and destinations as outputs.
type Backend struct {
	logger contracts.Logger
	client coremidi.Client
	mu     sync.Mutex
	closed bool
}

// New creates a CoreMIDI client registered under clientName.
func New(logger contracts.Logger, clientName string) (contracts.Backend, error) {
	client, err := coremidi.NewClient(clientName)
	if err != nil {
		return nil, fmt.Errorf("%w: coremidi: %v", contracts.ErrBackendUnavailable, err)
	}
	logger.Debug("CoreMIDI client created", logger.Field().String("client", clientName))
	return &Backend{logger: logger, client: client}, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return Name }

// Ports lists source names for Input and destination names for Output.
func (b *Backend) Ports(dir contracts.Direction) ([]string, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if dir == contracts.Output {
		destinations, err := coremidi.AllDestinations()
		if err != nil {
			return nil, fmt.Errorf("error listing MIDI destinations: %w", err)
		}
		names := make([]string, len(destinations))
		for i, d := range destinations {
			names[i] = d.Name()
		}
		return names, nil
	}
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	return names, nil
}

// OpenIn connects a new input port to the source at index. Delivery starts
// once Listen registers a callback.
func (b *Backend) OpenIn(index int) (contracts.InPort, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error retrieving MIDI sources: %w", err)
	}
	if index < 0 || index >= len(sources) {
		return nil, contracts.ErrIndexOutOfRange
	}
	source := sources[index]

	in := newInPort(source.Name())
	port, err := coremidi.NewInputPort(b.client, "nanoctl input", func(_ coremidi.Source, packet coremidi.Packet) {
		in.deliver(packet.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateInputPort, err)
	}
	conn, err := port.Connect(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectSource, err)
	}
	in.conn = conn
	return in, nil
}

// OpenOut creates an output port addressed at the destination at index.
func (b *Backend) OpenOut(index int) (contracts.OutPort, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error retrieving MIDI destinations: %w", err)
	}
	if index < 0 || index >= len(destinations) {
		return nil, contracts.ErrIndexOutOfRange
	}
	port, err := coremidi.NewOutputPort(b.client, "nanoctl output")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateOutputPort, err)
	}
	dest := destinations[index]
	return &outPort{
		name: dest.Name(),
		send: func(p coremidi.Packet) error { return p.Send(&port, &dest) },
	}, nil
}

// OpenVirtualIn publishes a virtual destination other applications can write to.
func (b *Backend) OpenVirtualIn(name string) (contracts.InPort, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	in := newInPort(name)
	dest, err := coremidi.NewDestination(b.client, name, func(packet coremidi.Packet) {
		in.deliver(packet.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrVirtualPortsUnsupported, err)
	}
	in.dispose = dest.Dispose
	return in, nil
}

// OpenVirtualOut publishes a virtual source other applications can read.
func (b *Backend) OpenVirtualOut(name string) (contracts.OutPort, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	source, err := coremidi.NewSource(b.client, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrVirtualPortsUnsupported, err)
	}
	return &outPort{
		name: name,
		send: func(p coremidi.Packet) error { return p.Received(&source) },
	}, nil
}

// Close marks the backend closed. CoreMIDI releases the client when the
// process exits.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *Backend) check() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return contracts.ErrPortClosed
	}
	return nil
}

type outPort struct {
	name string
	send func(coremidi.Packet) error

	mu     sync.Mutex
	closed bool
}

func (p *outPort) Name() string { return p.name }

func (p *outPort) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return contracts.ErrPortClosed
	}
	return p.send(coremidi.NewPacket(data, 0))
}

func (p *outPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
