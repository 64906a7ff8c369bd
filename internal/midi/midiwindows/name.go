// Package midiwindows implements contracts.Backend on the Windows multimedia
// API (winmm.dll). Windows has no virtual MIDI ports, so OpenVirtualIn and
// OpenVirtualOut always fail with contracts.ErrVirtualPortsUnsupported.
package midiwindows

// Name identifies this backend in configuration.
const Name = "winmm"

// unpackShortMsg splits a winmm short message into its status and data bytes.
func unpackShortMsg(msg uintptr) []byte {
	return []byte{byte(msg), byte(msg >> 8), byte(msg >> 16)}
}

// packShortMsg packs up to three bytes into a winmm short message.
func packShortMsg(data []byte) uint32 {
	var msg uint32
	for i := 0; i < len(data) && i < 3; i++ {
		msg |= uint32(data[i]) << (8 * i)
	}
	return msg
}
