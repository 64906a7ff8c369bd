package midi

import (
	"errors"
	"fmt"
	"runtime"
	"sort"

	"github.com/leandrodaf/nanoctl/internal/midi/loopback"
	"github.com/leandrodaf/nanoctl/internal/midi/mididarwin"
	"github.com/leandrodaf/nanoctl/internal/midi/midiwindows"
	"github.com/leandrodaf/nanoctl/internal/midi/pmidi"
	"github.com/leandrodaf/nanoctl/internal/midi/rtmidi"
	"github.com/leandrodaf/nanoctl/sdk/contracts"
)

var (
	// ErrUnsupportedOS is returned when no backend is the default for the operating system.
	ErrUnsupportedOS = errors.New("unsupported operating system")
	// ErrUnknownBackend is returned for a backend name that is not registered.
	ErrUnknownBackend = errors.New("unknown MIDI backend")
)

// LoopbackPortName names the single input/output pair of the loopback
// backend. Pattern frames sent to it come back as input events.
const LoopbackPortName = "nanoKONTROL2 (loopback)"

// backendInitializers maps backend names to their constructors.
var backendInitializers = map[string]func(*contracts.ControllerOptions) (contracts.Backend, error){
	rtmidi.Name: func(o *contracts.ControllerOptions) (contracts.Backend, error) {
		return rtmidi.New(o.Logger)
	},
	mididarwin.Name: func(o *contracts.ControllerOptions) (contracts.Backend, error) {
		return mididarwin.New(o.Logger, o.ClientName)
	},
	midiwindows.Name: func(o *contracts.ControllerOptions) (contracts.Backend, error) {
		return midiwindows.New(o.Logger)
	},
	pmidi.Name: func(o *contracts.ControllerOptions) (contracts.Backend, error) {
		return pmidi.New(o.Logger)
	},
	loopback.Name: func(*contracts.ControllerOptions) (contracts.Backend, error) {
		ports := []string{LoopbackPortName}
		return loopback.New(loopback.WithPorts(ports, ports), loopback.WithEcho()), nil
	},
}

// defaultBackends maps GOOS values to the backend used when none is named.
var defaultBackends = map[string]string{
	"linux":   rtmidi.Name,
	"freebsd": rtmidi.Name,
	"darwin":  mididarwin.Name,
	"windows": midiwindows.Name,
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	names := make([]string, 0, len(backendInitializers))
	for name := range backendInitializers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultBackend returns the backend name used on goos.
func DefaultBackend(goos string) (string, error) {
	if name, ok := defaultBackends[goos]; ok {
		return name, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedOS, goos)
}

// NewBackend returns opts.Driver if set, otherwise constructs the backend
// named by opts.Backend, or the platform default when the name is empty.
func NewBackend(opts *contracts.ControllerOptions) (contracts.Backend, error) {
	if opts.Driver != nil {
		return opts.Driver, nil
	}
	name := opts.Backend
	if name == "" {
		var err error
		if name, err = DefaultBackend(runtime.GOOS); err != nil {
			return nil, err
		}
	}
	initializer, ok := backendInitializers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, Backends())
	}
	return initializer(opts)
}
