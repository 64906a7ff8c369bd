package contracts

import "time"

// Pattern describes the LED press/release sweep sent to the controller.
//
// Controllers are visited in the half-open range [Low, High) and channels in
// [ChannelLow, ChannelHigh). Every controller receives Press, then Release,
// each followed by Delay.
type Pattern struct {
	Low         byte
	High        byte
	ChannelLow  uint8
	ChannelHigh uint8
	Press       byte
	Release     byte
	Delay       time.Duration
}

// DefaultPattern sweeps the six LEDs 0x29..0x2E on channel 0.
func DefaultPattern() Pattern {
	return Pattern{
		Low:         0x29,
		High:        0x2F,
		ChannelLow:  0,
		ChannelHigh: 1,
		Press:       ValuePress,
		Release:     ValueRelease,
		Delay:       100 * time.Millisecond,
	}
}

// ControllerOptions defines the configuration of a control-surface driver.
type ControllerOptions struct {
	Logger      Logger   // Logger for events and errors.
	LogLevel    LogLevel // Level of logging to use.
	LogFilePath string   // File path for logging; empty logs to the console.

	Backend    string        // Backend name; empty selects the platform default.
	Driver     Backend       // Backend instance; takes precedence over Backend.
	ClientName string        // Client name registered with the OS MIDI service.
	Consumer   EventConsumer // Receives decoded events; nil logs them.

	DebugLogging     bool          // Log every received frame and every enumerated port.
	RunPattern       bool          // Repeat the LED pattern while running; otherwise idle.
	IdleInterval     time.Duration // Wait between idle iterations.
	Pattern          Pattern       // LED pattern parameters.
	RetryOnSendError bool          // Keep running after a failed pattern send.
	EventBuffer      int           // Capacity of the listener's event channel.

	InputIndex        int    // Input port to open; -1 applies the default policy.
	OutputIndex       int    // Output port to open; -1 applies the default policy.
	VirtualInputName  string // Name of the virtual input created when no ports exist.
	VirtualOutputName string // Name of the virtual output created when no ports exist.
}

// Option is a function that modifies ControllerOptions.
type Option func(*ControllerOptions)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(opts *ControllerOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ControllerOptions) {
		opts.LogLevel = level
	}
}

// WithLogFilePath directs log output to a file.
func WithLogFilePath(path string) Option {
	return func(opts *ControllerOptions) {
		opts.LogFilePath = path
	}
}

// WithBackend selects a MIDI backend by name.
func WithBackend(name string) Option {
	return func(opts *ControllerOptions) {
		opts.Backend = name
	}
}

// WithDriver supplies an already constructed backend.
func WithDriver(b Backend) Option {
	return func(opts *ControllerOptions) {
		opts.Driver = b
	}
}

// WithClientName sets the client name registered with CoreMIDI.
func WithClientName(name string) Option {
	return func(opts *ControllerOptions) {
		opts.ClientName = name
	}
}

// WithEventConsumer sets the function receiving decoded events.
func WithEventConsumer(consumer EventConsumer) Option {
	return func(opts *ControllerOptions) {
		opts.Consumer = consumer
	}
}

// WithDebugLogging enables debug output of frames and ports.
func WithDebugLogging(enabled bool) Option {
	return func(opts *ControllerOptions) {
		opts.DebugLogging = enabled
	}
}

// WithRunPattern chooses between repeating the LED pattern and idling.
func WithRunPattern(enabled bool) Option {
	return func(opts *ControllerOptions) {
		opts.RunPattern = enabled
	}
}

// WithIdleInterval sets the idle wait between loop iterations.
func WithIdleInterval(d time.Duration) Option {
	return func(opts *ControllerOptions) {
		opts.IdleInterval = d
	}
}

// WithPattern sets the LED pattern.
func WithPattern(p Pattern) Option {
	return func(opts *ControllerOptions) {
		opts.Pattern = p
	}
}

// WithRetryOnSendError keeps the loop running after a failed pattern.
func WithRetryOnSendError(retry bool) Option {
	return func(opts *ControllerOptions) {
		opts.RetryOnSendError = retry
	}
}

// WithEventBuffer sets the capacity of the listener's event channel.
func WithEventBuffer(n int) Option {
	return func(opts *ControllerOptions) {
		opts.EventBuffer = n
	}
}

// WithInputIndex opens the given input port instead of applying the default policy.
func WithInputIndex(index int) Option {
	return func(opts *ControllerOptions) {
		opts.InputIndex = index
	}
}

// WithOutputIndex opens the given output port instead of applying the default policy.
func WithOutputIndex(index int) Option {
	return func(opts *ControllerOptions) {
		opts.OutputIndex = index
	}
}

// WithVirtualPortNames sets the names used when virtual ports are created.
func WithVirtualPortNames(input, output string) Option {
	return func(opts *ControllerOptions) {
		opts.VirtualInputName = input
		opts.VirtualOutputName = output
	}
}
