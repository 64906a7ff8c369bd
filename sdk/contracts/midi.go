package contracts

import "fmt"

// MIDI status and data constants for Control Change traffic.
const (
	StatusControlChange byte = 0xB0 // High nibble of a Control Change status byte.
	StatusTypeMask      byte = 0xF0 // Mask selecting the message type from a status byte.
	ChannelMask         byte = 0x0F // Mask selecting the channel from a status byte.
	DataMask            byte = 0x7F // Largest legal value of a data byte.

	ValuePress   byte = 0x7F // Button pressed / control at maximum.
	ValueRelease byte = 0x00 // Button released / control at minimum.

	FrameSize = 3 // Length in bytes of a Control Change message.
)

// Frame is a raw Control Change message as it travels on the wire.
type Frame struct {
	Status     byte // 0xB0 | channel.
	Controller byte // Controller number (0-127).
	Value      byte // Data value (0-127).
}

// Channel returns the MIDI channel (0-15) encoded in the status byte.
func (f Frame) Channel() uint8 {
	return f.Status & ChannelMask
}

// Bytes returns the three wire bytes of the frame.
func (f Frame) Bytes() []byte {
	return []byte{f.Status, f.Controller, f.Value}
}

// String formats the frame the way received messages are printed in debug output.
func (f Frame) String() string {
	return fmt.Sprintf("0x%02X, 0x%02X, 0x%02X", f.Status, f.Controller, f.Value)
}

// EventKind identifies which physical control produced an event.
type EventKind uint8

const (
	// Slider is one of the eight faders.
	Slider EventKind = iota + 1
	// Knob is one of the eight rotary encoders.
	Knob
	// Button is one of the S, M or R buttons.
	Button
)

func (k EventKind) String() string {
	switch k {
	case Slider:
		return "slider"
	case Knob:
		return "knob"
	case Button:
		return "button"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ButtonGroup identifies a row of buttons.
type ButtonGroup uint8

const (
	// GroupS is the solo row.
	GroupS ButtonGroup = iota + 1
	// GroupM is the mute row.
	GroupM
	// GroupR is the record row.
	GroupR
)

func (g ButtonGroup) String() string {
	switch g {
	case GroupS:
		return "S"
	case GroupM:
		return "M"
	case GroupR:
		return "R"
	default:
		return fmt.Sprintf("group(%d)", uint8(g))
	}
}

// ControllerEvent is a decoded Control Change message.
//
// Value is meaningful for sliders and knobs; Group and Pressed are meaningful
// for buttons. Index is always in the range 0-7.
type ControllerEvent struct {
	Kind    EventKind
	Channel uint8
	Index   uint8
	Value   uint8
	Group   ButtonGroup
	Pressed bool
}

func (e ControllerEvent) String() string {
	switch e.Kind {
	case Button:
		state := "released"
		if e.Pressed {
			state = "pressed"
		}
		return fmt.Sprintf("button %s%d %s (ch %d)", e.Group, e.Index, state, e.Channel)
	default:
		return fmt.Sprintf("%s %d = %d (ch %d)", e.Kind, e.Index, e.Value, e.Channel)
	}
}

// EventConsumer receives decoded events together with the delta time, in
// seconds, since the previous message on the same port.
type EventConsumer func(event ControllerEvent, delta float64)
