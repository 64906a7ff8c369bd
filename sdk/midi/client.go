// Package midi is the public entry point of the nanoKONTROL2 driver. It turns
// functional options into a running Controller on the selected MIDI backend.
package midi

import (
	"context"

	"github.com/leandrodaf/nanoctl/internal/listener"
	"github.com/leandrodaf/nanoctl/internal/loop"
	"github.com/leandrodaf/nanoctl/internal/ports"
	"github.com/leandrodaf/nanoctl/sdk/contracts"
)

// Controller drives one control surface on one backend.
type Controller struct {
	options contracts.ControllerOptions
	manager *ports.Manager
	loop    *loop.Loop
}

// NewController creates a Controller with the specified options.
// It applies default options and initializes the backend; ports are opened
// by Run.
//
// opts ...contracts.Option: A variadic list of option functions to customize the controller.
//
// Returns:
//   - *Controller: A controller ready to Run.
//   - error: An error, if the options are invalid or the backend cannot be initialized.
func NewController(opts ...contracts.Option) (*Controller, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	backend, err := NewBackend(&options)
	if err != nil {
		return nil, err
	}
	options.Logger.Debug("MIDI backend ready", options.Logger.Field().String("backend", backend.Name()))

	manager := ports.NewManager(backend, options.Logger)
	return &Controller{
		options: options,
		manager: manager,
		loop:    loop.New(manager, loop.ConfigFromOptions(options), options.Logger, options.Consumer),
	}, nil
}

// Run opens the ports and blocks until ctx is cancelled or a fatal error
// occurs. Ports and backend are released before Run returns. A Controller
// runs at most once.
func (c *Controller) Run(ctx context.Context) error {
	return c.loop.Run(ctx)
}

// Ports enumerates the backend's input and output ports.
func (c *Controller) Ports() ([]contracts.PortInfo, error) {
	return c.manager.Ports()
}

// BackendName returns the name of the backend in use.
func (c *Controller) BackendName() string {
	return c.manager.Backend()
}

// Logger returns the logger the controller writes to.
func (c *Controller) Logger() contracts.Logger {
	return c.options.Logger
}

// Patterns returns the number of completed LED patterns.
func (c *Controller) Patterns() uint64 {
	return c.loop.Patterns()
}

// Stats returns the input listener counters.
func (c *Controller) Stats() listener.Stats {
	return c.loop.Stats()
}

// Close releases the ports and backend of a Controller that was never run,
// or that is still running. It is safe to call after Run has returned.
func (c *Controller) Close() error {
	return c.manager.Close()
}
