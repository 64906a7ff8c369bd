// Package config loads the optional JSON configuration file. Only keys
// present in the file override the built-in defaults.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/leandrodaf/nanoctl/sdk/contracts"
)

// ErrInvalidConfig is returned when a configuration value is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// Duration is a time.Duration written as a Go duration string ("100ms").
type Duration time.Duration

// UnmarshalJSON parses a duration string.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"100ms\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Pattern overrides fields of the default LED pattern.
type Pattern struct {
	Low      *int      `json:"low,omitempty"`
	High     *int      `json:"high,omitempty"`
	Channel  *int      `json:"channel,omitempty"`
	Channels *int      `json:"channels,omitempty"` // number of channels swept from Channel
	Press    *int      `json:"press,omitempty"`
	Release  *int      `json:"release,omitempty"`
	Delay    *Duration `json:"delay,omitempty"`
}

// File is the on-disk configuration.
type File struct {
	Backend          *string   `json:"backend,omitempty"`
	Debug            *bool     `json:"debug,omitempty"`
	RunPattern       *bool     `json:"run_pattern,omitempty"`
	IdleInterval     *Duration `json:"idle_interval,omitempty"`
	Pattern          *Pattern  `json:"pattern,omitempty"`
	VirtualInput     *string   `json:"virtual_input,omitempty"`
	VirtualOutput    *string   `json:"virtual_output,omitempty"`
	InputIndex       *int      `json:"input_index,omitempty"`
	OutputIndex      *int      `json:"output_index,omitempty"`
	LogFile          *string   `json:"log_file,omitempty"`
	RetryOnSendError *bool     `json:"retry_on_send_error,omitempty"`
	EventBuffer      *int      `json:"event_buffer,omitempty"`
}

// Load reads and validates the file at path. An empty path yields an empty
// File, which leaves every default in place.
func Load(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a JSON configuration. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks every value present in the file.
func (f *File) Validate() error {
	if f.IdleInterval != nil && *f.IdleInterval <= 0 {
		return fmt.Errorf("%w: idle_interval must be positive", ErrInvalidConfig)
	}
	if f.InputIndex != nil && *f.InputIndex < -1 {
		return fmt.Errorf("%w: input_index must be -1 or a port index", ErrInvalidConfig)
	}
	if f.OutputIndex != nil && *f.OutputIndex < -1 {
		return fmt.Errorf("%w: output_index must be -1 or a port index", ErrInvalidConfig)
	}
	if f.EventBuffer != nil && *f.EventBuffer <= 0 {
		return fmt.Errorf("%w: event_buffer must be positive", ErrInvalidConfig)
	}
	if f.Pattern == nil {
		return nil
	}
	p := f.Pattern
	for _, v := range []struct {
		name string
		val  *int
		max  int
	}{
		{"pattern.low", p.Low, 0x7F},
		{"pattern.high", p.High, 0x80},
		{"pattern.channel", p.Channel, 15},
		{"pattern.channels", p.Channels, 16},
		{"pattern.press", p.Press, 0x7F},
		{"pattern.release", p.Release, 0x7F},
	} {
		if v.val != nil && (*v.val < 0 || *v.val > v.max) {
			return fmt.Errorf("%w: %s must be 0-%d, got %d", ErrInvalidConfig, v.name, v.max, *v.val)
		}
	}
	if p.Delay != nil && *p.Delay <= 0 {
		return fmt.Errorf("%w: pattern.delay must be positive", ErrInvalidConfig)
	}
	pattern := f.pattern()
	if pattern.Low >= pattern.High {
		return fmt.Errorf("%w: pattern.low must be below pattern.high", ErrInvalidConfig)
	}
	if pattern.ChannelLow >= pattern.ChannelHigh || pattern.ChannelHigh > 16 {
		return fmt.Errorf("%w: pattern channels exceed 0-15", ErrInvalidConfig)
	}
	return nil
}

// pattern merges the file's pattern keys over contracts.DefaultPattern.
func (f *File) pattern() contracts.Pattern {
	out := contracts.DefaultPattern()
	p := f.Pattern
	if p == nil {
		return out
	}
	if p.Low != nil {
		out.Low = byte(*p.Low)
	}
	if p.High != nil {
		out.High = byte(*p.High)
	}
	channels := int(out.ChannelHigh - out.ChannelLow)
	if p.Channels != nil {
		channels = *p.Channels
	}
	if p.Channel != nil {
		out.ChannelLow = uint8(*p.Channel)
	}
	out.ChannelHigh = out.ChannelLow + uint8(channels)
	if p.Press != nil {
		out.Press = byte(*p.Press)
	}
	if p.Release != nil {
		out.Release = byte(*p.Release)
	}
	if p.Delay != nil {
		out.Delay = time.Duration(*p.Delay)
	}
	return out
}

// Options converts the keys present in the file into controller options.
func (f *File) Options() []contracts.Option {
	var opts []contracts.Option
	if f.Backend != nil {
		opts = append(opts, contracts.WithBackend(*f.Backend))
	}
	if f.Debug != nil {
		opts = append(opts, contracts.WithDebugLogging(*f.Debug))
		if *f.Debug {
			opts = append(opts, contracts.WithLogLevel(contracts.DebugLevel))
		}
	}
	if f.RunPattern != nil {
		opts = append(opts, contracts.WithRunPattern(*f.RunPattern))
	}
	if f.IdleInterval != nil {
		opts = append(opts, contracts.WithIdleInterval(time.Duration(*f.IdleInterval)))
	}
	if f.Pattern != nil {
		opts = append(opts, contracts.WithPattern(f.pattern()))
	}
	if f.VirtualInput != nil || f.VirtualOutput != nil {
		opts = append(opts, func(o *contracts.ControllerOptions) {
			if f.VirtualInput != nil {
				o.VirtualInputName = *f.VirtualInput
			}
			if f.VirtualOutput != nil {
				o.VirtualOutputName = *f.VirtualOutput
			}
		})
	}
	if f.InputIndex != nil {
		opts = append(opts, contracts.WithInputIndex(*f.InputIndex))
	}
	if f.OutputIndex != nil {
		opts = append(opts, contracts.WithOutputIndex(*f.OutputIndex))
	}
	if f.LogFile != nil {
		opts = append(opts, contracts.WithLogFilePath(*f.LogFile))
	}
	if f.RetryOnSendError != nil {
		opts = append(opts, contracts.WithRetryOnSendError(*f.RetryOnSendError))
	}
	if f.EventBuffer != nil {
		opts = append(opts, contracts.WithEventBuffer(*f.EventBuffer))
	}
	return opts
}
