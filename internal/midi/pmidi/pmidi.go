//go:build portmidi
// +build portmidi

package pmidi

import (
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/nanoctl/internal/midi/timing"
	"github.com/leandrodaf/nanoctl/sdk/contracts"
	"github.com/rakyll/portmidi"
)

// Backend drives MIDI through PortMidi streams.
type Backend struct {
	logger contracts.Logger
	mu     sync.Mutex
	closed bool
}

// New initializes PortMidi. Close terminates it.
func New(logger contracts.Logger) (contracts.Backend, error) {
	if err := portmidi.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: portmidi: %v", contracts.ErrBackendUnavailable, err)
	}
	logger.Debug("PortMidi initialized", logger.Field().Int("devices", portmidi.CountDevices()))
	return &Backend{logger: logger}, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return Name }

func devices(dir contracts.Direction) (names []string, available []bool) {
	n := portmidi.CountDevices()
	available = make([]bool, n)
	for i := 0; i < n; i++ {
		info := portmidi.Info(portmidi.DeviceID(i))
		if info == nil {
			continue
		}
		ok := info.IsInputAvailable
		if dir == contracts.Output {
			ok = info.IsOutputAvailable
		}
		if ok {
			available[i] = true
			names = append(names, info.Name)
		}
	}
	return names, available
}

// Ports lists devices that offer dir, in device id order.
func (b *Backend) Ports(dir contracts.Direction) ([]string, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	names, _ := devices(dir)
	return names, nil
}

// OpenIn opens an input stream on the index-th input device.
func (b *Backend) OpenIn(index int) (contracts.InPort, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	names, available := devices(contracts.Input)
	id, ok := portIndex(available, index)
	if !ok {
		return nil, contracts.ErrIndexOutOfRange
	}
	stream, err := portmidi.NewInputStream(portmidi.DeviceID(id), MaxEventsPerPoll)
	if err != nil {
		return nil, err
	}
	return &inPort{name: names[index], stream: stream, logger: b.logger, delta: timing.NewDelta()}, nil
}

// OpenOut opens an output stream on the index-th output device.
func (b *Backend) OpenOut(index int) (contracts.OutPort, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	names, available := devices(contracts.Output)
	id, ok := portIndex(available, index)
	if !ok {
		return nil, contracts.ErrIndexOutOfRange
	}
	stream, err := portmidi.NewOutputStream(portmidi.DeviceID(id), MaxEventsPerPoll, 0)
	if err != nil {
		return nil, err
	}
	return &outPort{name: names[index], stream: stream}, nil
}

// OpenVirtualIn is not supported by PortMidi.
func (b *Backend) OpenVirtualIn(string) (contracts.InPort, error) {
	return nil, contracts.ErrVirtualPortsUnsupported
}

// OpenVirtualOut is not supported by PortMidi.
func (b *Backend) OpenVirtualOut(string) (contracts.OutPort, error) {
	return nil, contracts.ErrVirtualPortsUnsupported
}

// Close terminates PortMidi.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return portmidi.Terminate()
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
	name   string
	stream *portmidi.Stream
	logger contracts.Logger
	delta  *timing.Delta

	mu   sync.Mutex
	stop func()
}

func (p *inPort) Name() string { return p.name }

// Listen starts a goroutine that polls the stream and hands every event to
// receive. The returned stop blocks until the goroutine has exited.
func (p *inPort) Listen(receive contracts.ReceiveFunc) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return nil, contracts.ErrPortClosed
	}
	if p.stop != nil {
		return nil, fmt.Errorf("portmidi input %q is already listening", p.name)
	}
	quit, done := make(chan struct{}), make(chan struct{})
	go p.poll(p.stream, receive, quit, done)

	var once sync.Once
	p.stop = func() {
		once.Do(func() {
			close(quit)
			<-done
		})
	}
	return p.stop, nil
}

func (p *inPort) poll(stream *portmidi.Stream, receive contracts.ReceiveFunc, quit, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(PollingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
		}
		events, err := stream.Read(MaxEventsPerPoll)
		if err != nil {
			p.logger.Error("PortMidi read failed", p.logger.Field().String("port", p.name), p.logger.Field().Error("error", err))
			return
		}
		for _, evt := range events {
			data := []byte{byte(evt.Status), byte(evt.Data1), byte(evt.Data2)}
			receive(data, p.delta.Millis(int64(evt.Timestamp)))
		}
	}
}

func (p *inPort) Close() error {
	p.mu.Lock()
	stop, stream := p.stop, p.stream
	p.stream = nil
	p.mu.Unlock()

	if stop != nil {
		stop()
	}
	if stream == nil {
		return nil
	}
	return stream.Close()
}

type outPort struct {
	name string

	mu     sync.Mutex
	stream *portmidi.Stream
}

func (p *outPort) Name() string { return p.name }

// Send writes a short message. PortMidi short messages carry at most three bytes.
func (p *outPort) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return contracts.ErrPortClosed
	}
	if len(data) == 0 || len(data) > 3 {
		return fmt.Errorf("portmidi short message must be 1 to 3 bytes, got %d", len(data))
	}
	var d [3]int64
	for i, v := range data {
		d[i] = int64(v)
	}
	return p.stream.WriteShort(d[0], d[1], d[2])
}

func (p *outPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return nil
	}
	err := p.stream.Close()
	p.stream = nil
	return err
}
