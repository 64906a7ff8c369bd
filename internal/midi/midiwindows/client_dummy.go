//go:build !windows
// +build !windows

package midiwindows

import (
	"fmt"

	"github.com/leandrodaf/nanoctl/sdk/contracts"
)

// New reports that the Windows multimedia API is not available on this platform.
func New(logger contracts.Logger) (contracts.Backend, error) {
	logger.Debug("winmm backend requested on non-Windows system")
	return nil, fmt.Errorf("%w: %s requires Windows", contracts.ErrBackendUnavailable, Name)
}
