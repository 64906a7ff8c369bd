package contracts

// Direction selects the input or output side of a MIDI backend.
type Direction int

const (
	// Input ports deliver messages from the controller.
	Input Direction = iota
	// Output ports carry messages to the controller.
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// ReceiveFunc is invoked by a backend for every raw message arriving on an
// input port. The delta is the time in seconds since the previous message.
// Backends call it from their own goroutine or OS thread, in delivery order.
type ReceiveFunc func(data []byte, delta float64)

// InPort is an open input endpoint.
type InPort interface {
	Name() string                                        // Port name as enumerated by the backend.
	Listen(receive ReceiveFunc) (stop func(), err error) // Registers the receive callback.
	Close() error                                        // Releases the endpoint.
}

// OutPort is an open output endpoint. Implementations are not required to be
// safe for concurrent use; callers serialize Send.
type OutPort interface {
	Name() string           // Port name as enumerated by the backend.
	Send(data []byte) error // Writes one complete message.
	Close() error           // Releases the endpoint.
}

// Backend is the narrow interface to an OS-level MIDI implementation.
type Backend interface {
	Name() string                                // Backend identifier, e.g. "rtmidi".
	Ports(dir Direction) ([]string, error)       // Enumerates port names in backend order.
	OpenIn(index int) (InPort, error)            // Opens an enumerated input port.
	OpenOut(index int) (OutPort, error)          // Opens an enumerated output port.
	OpenVirtualIn(name string) (InPort, error)   // Creates a software-only input port.
	OpenVirtualOut(name string) (OutPort, error) // Creates a software-only output port.
	Close() error                                // Releases the backend itself.
}
