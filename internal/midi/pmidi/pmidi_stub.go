//go:build !portmidi
// +build !portmidi

package pmidi

import (
	"fmt"

	"github.com/leandrodaf/nanoctl/sdk/contracts"
)

// New reports that this binary was built without PortMidi support.
func New(logger contracts.Logger) (contracts.Backend, error) {
	logger.Debug("PortMidi backend requested in a build without the portmidi tag")
	return nil, fmt.Errorf("%w: %s requires the portmidi build tag", contracts.ErrBackendUnavailable, Name)
}
