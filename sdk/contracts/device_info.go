package contracts

// PortInfo describes an enumerated MIDI port.
type PortInfo struct {
	Index     int       // Position in the backend enumeration; the index space of Open.
	Name      string    // Port name.
	Direction Direction // Input or output.
}
