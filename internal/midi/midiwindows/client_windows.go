//go:build windows
// +build windows

package midiwindows

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/leandrodaf/nanoctl/internal/midi/timing"
	"github.com/leandrodaf/nanoctl/sdk/contracts"
	"golang.org/x/sys/windows"
)

// Type definitions for MIDI handles
type (
	HMIDIIN  windows.Handle
	HMIDIOUT windows.Handle
)

// Constants for callback flags
const (
	CALLBACK_NULL     = 0x00000000 // No callback
	CALLBACK_FUNCTION = 0x00030000 // Indicates that the callback is a function
)

// Constants for MIDI message types
const (
	MIM_OPEN      = 0x3C1 // MIDI device opened
	MIM_CLOSE     = 0x3C2 // MIDI device closed
	MIM_DATA      = 0x3C3 // MIDI data received
	MIM_ERROR     = 0x3C5 // MIDI error
	MIM_LONGERROR = 0x3C6 // Long MIDI error
	MIM_MOREDATA  = 0x3CC // More MIDI data available
)

// Struct representing MIDI input device capabilities
type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

// Struct representing MIDI output device capabilities
type midiOutCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	wTechnology    uint16
	wVoices        uint16
	wNotes         uint16
	wChannelMask   uint16
	dwSupport      uint32
}

// Load the winmm.dll library and required functions
var (
	winmm                 = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs  = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps  = winmm.NewProc("midiInGetDevCapsW")
	procMidiInOpen        = winmm.NewProc("midiInOpen")
	procMidiInStart       = winmm.NewProc("midiInStart")
	procMidiInStop        = winmm.NewProc("midiInStop")
	procMidiInClose       = winmm.NewProc("midiInClose")
	procMidiOutGetNumDevs = winmm.NewProc("midiOutGetNumDevs")
	procMidiOutGetDevCaps = winmm.NewProc("midiOutGetDevCapsW")
	procMidiOutOpen       = winmm.NewProc("midiOutOpen")
	procMidiOutShortMsg   = winmm.NewProc("midiOutShortMsg")
	procMidiOutReset      = winmm.NewProc("midiOutReset")
	procMidiOutClose      = winmm.NewProc("midiOutClose")
)

// The callback trampoline is created once; windows.NewCallback slots are a
// finite process-wide resource. Open inputs are looked up by instance id.
var (
	inCallback = windows.NewCallback(midiInCallback)
	inputs     sync.Map // uintptr -> *inPort
	nextInput  atomic.Uintptr
)

// Backend drives MIDI through winmm.dll.
type Backend struct {
	logger contracts.Logger
	mu     sync.Mutex
	closed bool
}

// New loads winmm.dll and returns the Windows backend.
func New(logger contracts.Logger) (contracts.Backend, error) {
	if err := winmm.Load(); err != nil {
		return nil, fmt.Errorf("%w: winmm: %v", contracts.ErrBackendUnavailable, err)
	}
	logger.Debug("winmm backend loaded")
	return &Backend{logger: logger}, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return Name }

// Ports lists device names in device-id order.
func (b *Backend) Ports(dir contracts.Direction) ([]string, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if dir == contracts.Output {
		return outputNames(b.logger), nil
	}
	return inputNames(b.logger), nil
}

func inputNames(logger contracts.Logger) []string {
	r0, _, _ := procMidiInGetNumDevs.Call()
	names := make([]string, uint32(r0))
	for i := range names {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(uintptr(i), uintptr(unsafe.Pointer(&caps)), unsafe.Sizeof(caps))
		if r1 != 0 {
			logger.Warn("Failed to get information for MIDI input device", logger.Field().Int("device", i))
			names[i] = fmt.Sprintf("MIDI input %d", i)
			continue
		}
		names[i] = windows.UTF16ToString(caps.szPname[:])
	}
	return names
}

func outputNames(logger contracts.Logger) []string {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	names := make([]string, uint32(r0))
	for i := range names {
		var caps midiOutCaps
		r1, _, _ := procMidiOutGetDevCaps.Call(uintptr(i), uintptr(unsafe.Pointer(&caps)), unsafe.Sizeof(caps))
		if r1 != 0 {
			logger.Warn("Failed to get information for MIDI output device", logger.Field().Int("device", i))
			names[i] = fmt.Sprintf("MIDI output %d", i)
			continue
		}
		names[i] = windows.UTF16ToString(caps.szPname[:])
	}
	return names
}

// OpenIn opens the input device at index. Capture starts on Listen.
func (b *Backend) OpenIn(index int) (contracts.InPort, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	names := inputNames(b.logger)
	if index < 0 || index >= len(names) {
		return nil, contracts.ErrIndexOutOfRange
	}

	p := &inPort{name: names[index], logger: b.logger, delta: timing.NewDelta(), id: nextInput.Add(1)}
	inputs.Store(p.id, p)
	r1, _, err := procMidiInOpen.Call(
		uintptr(unsafe.Pointer(&p.handle)),
		uintptr(index),
		inCallback,
		p.id,
		uintptr(CALLBACK_FUNCTION),
	)
	if r1 != 0 {
		inputs.Delete(p.id)
		return nil, fmt.Errorf("failed to open MIDI input %d: %v", index, err)
	}
	return p, nil
}

// OpenOut opens the output device at index.
func (b *Backend) OpenOut(index int) (contracts.OutPort, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	names := outputNames(b.logger)
	if index < 0 || index >= len(names) {
		return nil, contracts.ErrIndexOutOfRange
	}

	p := &outPort{name: names[index]}
	r1, _, err := procMidiOutOpen.Call(
		uintptr(unsafe.Pointer(&p.handle)),
		uintptr(index),
		0,
		0,
		uintptr(CALLBACK_NULL),
	)
	if r1 != 0 {
		return nil, fmt.Errorf("failed to open MIDI output %d: %v", index, err)
	}
	return p, nil
}

// OpenVirtualIn is not supported by winmm.
func (b *Backend) OpenVirtualIn(string) (contracts.InPort, error) {
	return nil, contracts.ErrVirtualPortsUnsupported
}

// OpenVirtualOut is not supported by winmm.
func (b *Backend) OpenVirtualOut(string) (contracts.OutPort, error) {
	return nil, contracts.ErrVirtualPortsUnsupported
}

// Close marks the backend closed.
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

type inPort struct {
	name   string
	logger contracts.Logger
	delta  *timing.Delta
	id     uintptr
	handle HMIDIIN

	mu      sync.Mutex
	receive contracts.ReceiveFunc
	started bool
	closed  bool
}

func (p *inPort) Name() string { return p.name }

// Listen registers receive and starts capture.
func (p *inPort) Listen(receive contracts.ReceiveFunc) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, contracts.ErrPortClosed
	}
	p.receive = receive
	if !p.started {
		r1, _, err := procMidiInStart.Call(uintptr(p.handle))
		if r1 != 0 {
			p.receive = nil
			return nil, fmt.Errorf("failed to start MIDI capture: %v", err)
		}
		p.started = true
	}
	return p.stop, nil
}

// stop must not hold mu across midiInStop: the winmm thread may be blocked
// in the callback waiting for it.
func (p *inPort) stop() {
	p.mu.Lock()
	p.receive = nil
	started := p.started
	p.started = false
	p.mu.Unlock()

	if started {
		procMidiInStop.Call(uintptr(p.handle))
	}
}

// midiInCallback processes incoming MIDI messages on the winmm thread.
func midiInCallback(hMidiIn uintptr, wMsg uint32, dwInstance uintptr, dwParam1 uintptr, dwParam2 uintptr) uintptr {
	v, ok := inputs.Load(dwInstance)
	if !ok {
		return 0
	}
	p := v.(*inPort)

	switch wMsg {
	case MIM_OPEN, MIM_CLOSE:
	case MIM_DATA, MIM_MOREDATA:
		p.mu.Lock()
		receive := p.receive
		p.mu.Unlock()
		if receive != nil {
			receive(unpackShortMsg(dwParam1), p.delta.Millis(int64(dwParam2)))
		}
	case MIM_ERROR, MIM_LONGERROR:
		p.logger.Warn("MIDI input error", p.logger.Field().String("port", p.name), p.logger.Field().Int("msg", int(wMsg)))
	default:
		p.logger.Debug("Unknown MIDI input message", p.logger.Field().Int("msg", int(wMsg)))
	}
	return 0
}

// Close stops capture and releases the device.
func (p *inPort) Close() error {
	p.stop()

	p.mu.Lock()
	closed := p.closed
	p.closed = true
	p.mu.Unlock()
	if closed {
		return nil
	}

	inputs.Delete(p.id)
	r1, _, err := procMidiInClose.Call(uintptr(p.handle))
	if r1 != 0 {
		return fmt.Errorf("failed to close MIDI input: %v", err)
	}
	return nil
}

type outPort struct {
	name   string
	handle HMIDIOUT

	mu     sync.Mutex
	closed bool
}

func (p *outPort) Name() string { return p.name }

// Send writes one short message. Longer messages are not supported by the
// short-message API.
func (p *outPort) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return contracts.ErrPortClosed
	}
	if len(data) == 0 || len(data) > 3 {
		return fmt.Errorf("winmm short message must be 1 to 3 bytes, got %d", len(data))
	}
	r1, _, err := procMidiOutShortMsg.Call(uintptr(p.handle), uintptr(packShortMsg(data)))
	if r1 != 0 {
		return fmt.Errorf("midiOutShortMsg: %v", err)
	}
	return nil
}

// Close resets and releases the device.
func (p *outPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	procMidiOutReset.Call(uintptr(p.handle))
	r1, _, err := procMidiOutClose.Call(uintptr(p.handle))
	if r1 != 0 {
		return fmt.Errorf("failed to close MIDI output: %v", err)
	}
	return nil
}
