// Package mididarwin implements contracts.Backend on top of CoreMIDI. On
// other platforms New reports contracts.ErrBackendUnavailable.
package mididarwin

// Name identifies this backend in configuration.
const Name = "coremidi"
