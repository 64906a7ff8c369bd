package midi

import (
	"errors"
	"fmt"

	"github.com/leandrodaf/nanoctl/internal/logger"
	"github.com/leandrodaf/nanoctl/internal/loop"
	"github.com/leandrodaf/nanoctl/internal/sequencer"
	"github.com/leandrodaf/nanoctl/sdk/contracts"
)

// Default values applied before any option.
const (
	DefaultClientName        = "nanoctl"
	DefaultVirtualInputName  = "nanoctl virtual input"
	DefaultVirtualOutputName = "nanoctl virtual output"
	DefaultEventBuffer       = 128
)

// ErrInvalidOptions is returned by NewController when the options are
// inconsistent. Pattern errors also match sequencer.ErrInvalidPattern.
var ErrInvalidOptions = errors.New("invalid controller options")

// defaultOptions returns the options a controller runs with when no option
// overrides them.
func defaultOptions() contracts.ControllerOptions {
	return contracts.ControllerOptions{
		LogLevel:          contracts.InfoLevel,
		ClientName:        DefaultClientName,
		RunPattern:        true,
		IdleInterval:      loop.DefaultIdleInterval,
		Pattern:           contracts.DefaultPattern(),
		EventBuffer:       DefaultEventBuffer,
		InputIndex:        -1,
		OutputIndex:       -1,
		VirtualInputName:  DefaultVirtualInputName,
		VirtualOutputName: DefaultVirtualOutputName,
	}
}

// applyDefaultOptions builds ControllerOptions from the defaults and opts,
// then configures the logger.
//
// opts ...contracts.Option: A variadic list of option functions that can modify ControllerOptions.
//
// Returns:
//   - contracts.ControllerOptions: The finalized options with defaults applied.
//   - error: An error if the resulting options are inconsistent.
func applyDefaultOptions(opts ...contracts.Option) (contracts.ControllerOptions, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.DebugLogging && options.LogLevel == contracts.InfoLevel {
		options.LogLevel = contracts.DebugLevel
	}
	options.Logger.SetLevel(options.LogLevel)
	if options.LogFilePath != "" {
		options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
	}

	if options.EventBuffer <= 0 {
		return options, fmt.Errorf("%w: event buffer must be positive, got %d", ErrInvalidOptions, options.EventBuffer)
	}
	if options.IdleInterval <= 0 {
		return options, fmt.Errorf("%w: idle interval must be positive, got %s", ErrInvalidOptions, options.IdleInterval)
	}
	if options.RunPattern {
		if err := sequencer.Validate(options.Pattern); err != nil {
			return options, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
		}
		if options.Pattern.Delay <= 0 {
			return options, fmt.Errorf("%w: %w: pattern delay must be positive, got %s",
				ErrInvalidOptions, sequencer.ErrInvalidPattern, options.Pattern.Delay)
		}
	}
	return options, nil
}
