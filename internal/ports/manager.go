// Package ports enumerates MIDI ports, opens them and owns their lifetime.
package ports

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/leandrodaf/nanoctl/sdk/contracts"
	"go.uber.org/multierr"
)

var errManagerClosed = errors.New("port manager is closed")

// Manager opens ports on a backend and closes all of them on Close.
// It is safe for concurrent use.
type Manager struct {
	backend contracts.Backend
	logger  contracts.Logger

	mu     sync.Mutex
	owned  []io.Closer
	closed bool
}

// NewManager creates a Manager over backend.
func NewManager(backend contracts.Backend, logger contracts.Logger) *Manager {
	return &Manager{backend: backend, logger: logger}
}

// Backend returns the name of the underlying backend.
func (m *Manager) Backend() string {
	return m.backend.Name()
}

// ListInputPorts returns input port names in backend order.
func (m *Manager) ListInputPorts() ([]string, error) {
	return m.list(contracts.Input)
}

// ListOutputPorts returns output port names in backend order.
func (m *Manager) ListOutputPorts() ([]string, error) {
	return m.list(contracts.Output)
}

// Ports returns every enumerated port, inputs first.
func (m *Manager) Ports() ([]contracts.PortInfo, error) {
	var infos []contracts.PortInfo
	for _, dir := range []contracts.Direction{contracts.Input, contracts.Output} {
		names, err := m.list(dir)
		if err != nil {
			return nil, err
		}
		for i, name := range names {
			infos = append(infos, contracts.PortInfo{Index: i, Name: name, Direction: dir})
		}
	}
	return infos, nil
}

// LogPorts writes every enumerated port to the debug log.
func (m *Manager) LogPorts() {
	infos, err := m.Ports()
	if err != nil {
		m.logger.Warn("Failed to enumerate MIDI ports", m.logger.Field().Error("error", err))
		return
	}
	for _, info := range infos {
		m.logger.Debug("MIDI port",
			m.logger.Field().String("direction", info.Direction.String()),
			m.logger.Field().Int("index", info.Index),
			m.logger.Field().String("name", info.Name))
	}
}

// OpenInput opens the input port at index.
func (m *Manager) OpenInput(index int) (contracts.InPort, error) {
	if err := m.checkIndex(contracts.Input, index); err != nil {
		return nil, err
	}
	port, err := m.backend.OpenIn(index)
	if err != nil {
		return nil, &contracts.PortError{Op: "open", Direction: contracts.Input, Index: index, Err: err}
	}
	if err := m.own(port); err != nil {
		return nil, err
	}
	m.logger.Info("MIDI input opened",
		m.logger.Field().Int("index", index),
		m.logger.Field().String("name", port.Name()))
	return port, nil
}

// OpenOutput opens the output port at index.
func (m *Manager) OpenOutput(index int) (contracts.OutPort, error) {
	if err := m.checkIndex(contracts.Output, index); err != nil {
		return nil, err
	}
	port, err := m.backend.OpenOut(index)
	if err != nil {
		return nil, &contracts.PortError{Op: "open", Direction: contracts.Output, Index: index, Err: err}
	}
	if err := m.own(port); err != nil {
		return nil, err
	}
	m.logger.Info("MIDI output opened",
		m.logger.Field().Int("index", index),
		m.logger.Field().String("name", port.Name()))
	return port, nil
}

// OpenVirtualInput creates a virtual input port. Backends without virtual
// port support fail with contracts.ErrVirtualPortsUnsupported.
func (m *Manager) OpenVirtualInput(name string) (contracts.InPort, error) {
	port, err := m.backend.OpenVirtualIn(name)
	if err != nil {
		return nil, &contracts.PortError{Op: "open virtual", Direction: contracts.Input, Index: -1, Name: name, Err: err}
	}
	if err := m.own(port); err != nil {
		return nil, err
	}
	m.logger.Info("Virtual MIDI input created", m.logger.Field().String("name", name))
	return port, nil
}

// OpenVirtualOutput creates a virtual output port.
func (m *Manager) OpenVirtualOutput(name string) (contracts.OutPort, error) {
	port, err := m.backend.OpenVirtualOut(name)
	if err != nil {
		return nil, &contracts.PortError{Op: "open virtual", Direction: contracts.Output, Index: -1, Name: name, Err: err}
	}
	if err := m.own(port); err != nil {
		return nil, err
	}
	m.logger.Info("Virtual MIDI output created", m.logger.Field().String("name", name))
	return port, nil
}

// OpenDefaultInput opens input 0 if any input port exists and otherwise
// creates a virtual input named virtualName. If that fails too the error
// matches both contracts.ErrNoPorts and the backend's error.
func (m *Manager) OpenDefaultInput(virtualName string) (contracts.InPort, error) {
	names, err := m.list(contracts.Input)
	if err != nil {
		return nil, err
	}
	if len(names) > 0 {
		return m.OpenInput(0)
	}
	m.logger.Warn("No MIDI input ports found; creating a virtual port")
	port, err := m.OpenVirtualInput(virtualName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contracts.ErrNoPorts, err)
	}
	return port, nil
}

// OpenDefaultOutput opens output 0 if any output port exists and otherwise
// creates a virtual output named virtualName.
func (m *Manager) OpenDefaultOutput(virtualName string) (contracts.OutPort, error) {
	names, err := m.list(contracts.Output)
	if err != nil {
		return nil, err
	}
	if len(names) > 0 {
		return m.OpenOutput(0)
	}
	m.logger.Warn("No MIDI output ports found; creating a virtual port")
	port, err := m.OpenVirtualOutput(virtualName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contracts.ErrNoPorts, err)
	}
	return port, nil
}

// Close closes every port opened through the Manager, then the backend.
// Subsequent calls return nil.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	owned := m.owned
	m.owned = nil
	m.mu.Unlock()

	var err error
	for i := len(owned) - 1; i >= 0; i-- {
		err = multierr.Append(err, owned[i].Close())
	}
	err = multierr.Append(err, m.backend.Close())
	if err != nil {
		return &contracts.PortError{Op: "close", Index: -1, Err: err}
	}
	m.logger.Info("MIDI ports released", m.logger.Field().Int("count", len(owned)))
	return nil
}

func (m *Manager) list(dir contracts.Direction) ([]string, error) {
	names, err := m.backend.Ports(dir)
	if err != nil {
		return nil, &contracts.PortError{Op: "list", Direction: dir, Index: -1, Err: err}
	}
	return names, nil
}

func (m *Manager) checkIndex(dir contracts.Direction, index int) error {
	names, err := m.list(dir)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(names) {
		return &contracts.PortError{
			Op:        "open",
			Direction: dir,
			Index:     index,
			Err:       fmt.Errorf("%w: %d ports available", contracts.ErrIndexOutOfRange, len(names)),
		}
	}
	return nil
}

func (m *Manager) own(port io.Closer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		_ = port.Close()
		return &contracts.PortError{Op: "open", Index: -1, Err: errManagerClosed}
	}
	m.owned = append(m.owned, port)
	return nil
}
