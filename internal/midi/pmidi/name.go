// Package pmidi implements contracts.Backend on PortMidi. PortMidi needs cgo
// and libportmidi, so the real backend is only built with the portmidi build
// tag; without it New reports contracts.ErrBackendUnavailable.
package pmidi

import "time"

// Name identifies this backend in configuration.
const Name = "portmidi"

const (
	// MaxEventsPerPoll bounds a single stream read.
	MaxEventsPerPoll = 64
	// PollingPeriod is the pause between input polls. PortMidi offers no
	// blocking read.
	PollingPeriod = 2 * time.Millisecond
)

// portIndex maps a per-direction port index onto PortMidi's shared device
// id space, given which device ids offer that direction.
func portIndex(available []bool, index int) (int, bool) {
	for id, ok := range available {
		if !ok {
			continue
		}
		if index == 0 {
			return id, true
		}
		index--
	}
	return 0, false
}
