// Package codec converts between raw Control Change frames and typed
// controller events.
//
// Controller numbers are laid out in blocks of sixteen; the high nibble
// selects the control type and the low three bits the index within it:
//
//	0x00-0x07  slider 0-7
//	0x10-0x17  knob 0-7
//	0x20-0x27  button S 0-7
//	0x30-0x37  button M 0-7
//	0x40-0x47  button R 0-7
//
// The upper halves of the S and M blocks (0x28-0x2F, 0x38-0x3F) carry the
// transport and marker buttons and decode as S and M buttons with the same
// index arithmetic; Encode always produces the lower half. The upper halves
// of the slider and knob blocks are unmapped.
package codec

import (
	"errors"
	"fmt"

	"github.com/leandrodaf/nanoctl/sdk/contracts"
)

const (
	blockSlider  = 0x0
	blockKnob    = 0x1
	blockButtonS = 0x2
	blockButtonM = 0x3
	blockButtonR = 0x4

	maxController = 0x47
	maxIndex      = 7
	maxChannel    = 15
)

// ErrInvalidEvent is returned by Encode and NewFrame for values that have no
// wire representation.
var ErrInvalidEvent = errors.New("invalid controller event")

// Decode turns a raw message into a ControllerEvent. Failures are returned as
// *contracts.DecodeError. Decode never panics, whatever the input.
func Decode(data []byte) (contracts.ControllerEvent, error) {
	if len(data) != contracts.FrameSize {
		return contracts.ControllerEvent{}, decodeError(contracts.ErrShortFrame, data)
	}
	status, controller, value := data[0], data[1], data[2]

	if status&contracts.StatusTypeMask != contracts.StatusControlChange {
		return contracts.ControllerEvent{}, decodeError(contracts.ErrNotControlChange, data)
	}
	if controller > maxController {
		return contracts.ControllerEvent{}, decodeError(contracts.ErrControllerOutOfRange, data)
	}
	if value > contracts.DataMask {
		return contracts.ControllerEvent{}, decodeError(contracts.ErrDataByteOutOfRange, data)
	}

	block := controller >> 4
	if (block == blockSlider || block == blockKnob) && controller&0x0F > maxIndex {
		return contracts.ControllerEvent{}, decodeError(contracts.ErrUnmapped, data)
	}

	ev := contracts.ControllerEvent{
		Channel: status & contracts.ChannelMask,
		Index:   controller & maxIndex,
	}
	switch block {
	case blockSlider:
		ev.Kind = contracts.Slider
		ev.Value = value
		return ev, nil
	case blockKnob:
		ev.Kind = contracts.Knob
		ev.Value = value
		return ev, nil
	case blockButtonS:
		ev.Group = contracts.GroupS
	case blockButtonM:
		ev.Group = contracts.GroupM
	case blockButtonR:
		ev.Group = contracts.GroupR
	}

	switch value {
	case contracts.ValuePress:
		ev.Pressed = true
	case contracts.ValueRelease:
	default:
		return contracts.ControllerEvent{}, decodeError(contracts.ErrInvalidButtonValue, data)
	}
	ev.Kind = contracts.Button
	ev.Value = value
	return ev, nil
}

// Encode is the inverse of Decode. For buttons the frame value is derived
// from Pressed; Value is ignored.
func Encode(ev contracts.ControllerEvent) (contracts.Frame, error) {
	if ev.Index > maxIndex {
		return contracts.Frame{}, fmt.Errorf("%w: index %d", ErrInvalidEvent, ev.Index)
	}

	controller, err := Controller(ev.Kind, ev.Group, ev.Index)
	if err != nil {
		return contracts.Frame{}, err
	}

	value := ev.Value
	if ev.Kind == contracts.Button {
		value = contracts.ValueRelease
		if ev.Pressed {
			value = contracts.ValuePress
		}
	}
	return NewFrame(ev.Channel, controller, value)
}

// Controller returns the controller number of a control. Group is only
// consulted for buttons.
func Controller(kind contracts.EventKind, group contracts.ButtonGroup, index uint8) (byte, error) {
	if index > maxIndex {
		return 0, fmt.Errorf("%w: index %d", ErrInvalidEvent, index)
	}

	var block byte
	switch kind {
	case contracts.Slider:
		block = blockSlider
	case contracts.Knob:
		block = blockKnob
	case contracts.Button:
		switch group {
		case contracts.GroupS:
			block = blockButtonS
		case contracts.GroupM:
			block = blockButtonM
		case contracts.GroupR:
			block = blockButtonR
		default:
			return 0, fmt.Errorf("%w: button group %s", ErrInvalidEvent, group)
		}
	default:
		return 0, fmt.Errorf("%w: kind %s", ErrInvalidEvent, kind)
	}
	return block<<4 | index, nil
}

// NewFrame builds a Control Change frame without consulting the controller
// table, so that LED commands can address any controller number.
func NewFrame(channel uint8, controller, value byte) (contracts.Frame, error) {
	switch {
	case channel > maxChannel:
		return contracts.Frame{}, fmt.Errorf("%w: channel %d", ErrInvalidEvent, channel)
	case controller > contracts.DataMask:
		return contracts.Frame{}, fmt.Errorf("%w: controller 0x%02X", ErrInvalidEvent, controller)
	case value > contracts.DataMask:
		return contracts.Frame{}, fmt.Errorf("%w: value 0x%02X", ErrInvalidEvent, value)
	}
	return contracts.Frame{
		Status:     contracts.StatusControlChange | channel,
		Controller: controller,
		Value:      value,
	}, nil
}

func decodeError(kind error, data []byte) error {
	return &contracts.DecodeError{Kind: kind, Data: append([]byte(nil), data...)}
}
