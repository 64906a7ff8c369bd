package contracts

import (
	"errors"
	"fmt"
)

// Decode error kinds. A DecodeError wraps exactly one of these.
var (
	ErrShortFrame           = errors.New("unexpected message length")
	ErrNotControlChange     = errors.New("not a control change message")
	ErrControllerOutOfRange = errors.New("controller number out of range")
	ErrUnmapped             = errors.New("controller number not mapped")
	ErrInvalidButtonValue   = errors.New("invalid button value")
	ErrDataByteOutOfRange   = errors.New("data byte out of range")
)

// Port error kinds. A PortError wraps one of these or a backend error.
var (
	ErrIndexOutOfRange         = errors.New("port index out of range")
	ErrVirtualPortsUnsupported = errors.New("virtual ports are not supported by this backend")
	ErrNoPorts                 = errors.New("no MIDI ports found")
	ErrBackendUnavailable      = errors.New("MIDI backend is not available on this platform")
	ErrPortClosed              = errors.New("port is closed")
)

// DecodeError reports a frame that could not be decoded into a ControllerEvent.
type DecodeError struct {
	Kind error  // One of the decode error kinds.
	Data []byte // The offending message.
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode % X: %v", e.Data, e.Kind)
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

// PortError reports a failure to enumerate, open or create a port.
type PortError struct {
	Op        string    // "list", "open", "open virtual" or "close".
	Direction Direction // Port direction.
	Index     int       // Requested index, -1 when not applicable.
	Name      string    // Requested virtual port name, if any.
	Err       error
}

func (e *PortError) Error() string {
	switch {
	case e.Name != "":
		return fmt.Sprintf("%s %s port %q: %v", e.Op, e.Direction, e.Name, e.Err)
	case e.Index >= 0:
		return fmt.Sprintf("%s %s port %d: %v", e.Op, e.Direction, e.Index, e.Err)
	default:
		return fmt.Sprintf("%s %s ports: %v", e.Op, e.Direction, e.Err)
	}
}

func (e *PortError) Unwrap() error {
	return e.Err
}

// SendError reports a failed write of a frame to an output port.
type SendError struct {
	Frame Frame
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send [%s]: %v", e.Frame, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
