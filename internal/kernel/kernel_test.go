package kernel

import (
	"sync"
	"testing"
	"time"

	"automon/internal/transport"
)

// scriptedLink answers each Write with the next canned response in
// sequence; good enough to drive Connect's init + capability query.
type scriptedLink struct {
	mu        sync.Mutex
	responses []string
	written   []string
}

func (l *scriptedLink) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.written = append(l.written, string(p))
	return len(p), nil
}

func (l *scriptedLink) Read(buf []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.responses) == 0 {
		time.Sleep(5 * time.Millisecond)
		return 0, nil
	}
	next := l.responses[0]
	l.responses = l.responses[1:]
	n := copy(buf, next)
	return n, nil
}

func (l *scriptedLink) Close() error { return nil }

// connectedKernel wires a Kernel against a scripted link whose
// capability bitmap (BE 1F B8 10) marks 010C/010D supported and 011F
// unsupported, verified against the bit layout in sensor/sensor_test.go.
func connectedKernel(t *testing.T) *Kernel {
	t.Helper()
	link := &scriptedLink{responses: []string{
		"ATZ>", "OK>", "OK>", "41 00 80 00 00 01 >", // init sequence
		"41 00 BE 1F B8 10 >", // capability query inside Connect
	}}

	k := New(nil)
	tr := transport.Wrap(link)
	if err := k.connectTransport(tr); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	return k
}

func TestActivateRejectsUnsupportedPID(t *testing.T) {
	k := connectedKernel(t)
	if err := k.Activate("011F"); err == nil {
		t.Fatalf("expected ErrUnsupported for 011F")
	}
	if err := k.Activate("010C"); err != nil {
		t.Fatalf("unexpected error activating supported sensor: %v", err)
	}
}

func TestAddRuleRequiresActiveSensor(t *testing.T) {
	k := connectedKernel(t)
	if err := k.AddRule("high-rpm", "s010C > 3000"); err == nil {
		t.Fatalf("expected rule activation to fail before 010C is active")
	}
	if err := k.Activate("010C"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := k.AddRule("high-rpm", "s010C > 3000"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := k.AddRule("high-rpm", "s010C > 4000"); err == nil {
		t.Fatalf("expected duplicate rule name to be rejected")
	}
}

func TestDisconnectIsSafeWithoutConnect(t *testing.T) {
	k := New(nil)
	if err := k.Disconnect(); err != nil {
		t.Fatalf("unexpected error disconnecting unconnected kernel: %v", err)
	}
}

func TestOperationsRequireConnection(t *testing.T) {
	k := New(nil)
	if err := k.Activate("010C"); err == nil {
		t.Fatalf("expected ErrNotConnected")
	}
	if _, err := k.VIN(); err == nil {
		t.Fatalf("expected ErrNotConnected")
	}
}
