package drivemux

import (
	"bytes"
	"strings"
	"sync"
)

// MockPort implements DrivePorter, capturing written commands for
// inspection in tests.
type MockPort struct {
	mu sync.Mutex

	buf bytes.Buffer

	// WriteError is returned by the next Write call if set.
	WriteError error

	// CloseCalls counts Close invocations.
	CloseCalls int
}

func NewMockPort() *MockPort {
	return &MockPort{}
}

func (p *MockPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}
	return p.buf.Write(b)
}

func (p *MockPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCalls++
	return nil
}

// Lines returns the complete lines written so far.
func (p *MockPort) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := strings.TrimSuffix(p.buf.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// MockPortFactory returns a fixed port, or an error, from Open.
type MockPortFactory struct {
	Port *MockPort
	Err  error
}

func (f *MockPortFactory) Open(path string, mode *PortMode) (DrivePorter, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Port, nil
}
