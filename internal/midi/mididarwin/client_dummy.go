//go:build !darwin
// +build !darwin

package mididarwin

import (
	"fmt"

	"github.com/leandrodaf/nanoctl/sdk/contracts"
)

// New reports that CoreMIDI is not available on this platform.
func New(logger contracts.Logger, clientName string) (contracts.Backend, error) {
	logger.Debug("CoreMIDI backend requested on non-macOS system", logger.Field().String("client", clientName))
	return nil, fmt.Errorf("%w: %s requires macOS", contracts.ErrBackendUnavailable, Name)
}
