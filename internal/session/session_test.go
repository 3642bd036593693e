package session

import (
	"strings"
	"sync"
	"testing"
	"time"

	"automon/internal/transport"
)

// scriptedLink answers each Write with the next canned response in
// sequence, regardless of what was written; good enough to drive the
// init sequence and introspection commands in order.
type scriptedLink struct {
	mu        sync.Mutex
	responses []string
	written   []string
}

func (l *scriptedLink) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.written = append(l.written, strings.TrimSuffix(string(p), "\r"))
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

func newTestSession(t *testing.T, responses []string) (*Session, *scriptedLink) {
	t.Helper()
	link := &scriptedLink{responses: responses}
	tr := transport.Wrap(link)
	s, err := New(tr)
	if err != nil {
		t.Fatalf("unexpected init error: %v", err)
	}
	return s, link
}

func TestConnectSucceeds(t *testing.T) {
	s, link := newTestSession(t, []string{
		"ATZ>", "OK>", "OK>", "41 00 >",
	})
	if s.State() != Ready {
		t.Fatalf("expected Ready, got %s", s.State())
	}
	if len(link.written) != 4 {
		t.Fatalf("expected 4 init commands written, got %d", len(link.written))
	}
}

func TestConnectFailsOnUnableToConnect(t *testing.T) {
	link := &scriptedLink{responses: []string{
		"ATZ>", "OK>", "OK>", "UNABLE TO CONNECT>",
	}}
	tr := transport.Wrap(link)
	s, err := New(tr)
	if err == nil {
		t.Fatalf("expected bus init error")
	}
	if s.State() != Failed {
		t.Fatalf("expected Failed, got %s", s.State())
	}
}

func TestStartStopPolling(t *testing.T) {
	s, _ := newTestSession(t, []string{"ATZ>", "OK>", "OK>", "41 00 >"})

	if err := s.StartPolling(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != Polling {
		t.Fatalf("expected Polling, got %s", s.State())
	}
	if err := s.StartPolling(); err == nil {
		t.Fatalf("expected error starting polling twice")
	}
	if err := s.StopPolling(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != Ready {
		t.Fatalf("expected Ready, got %s", s.State())
	}
}

func TestVoltageMemoized(t *testing.T) {
	s, link := newTestSession(t, []string{"ATZ>", "OK>", "OK>", "41 00 >", "12.3V>"})

	v1, err := s.Voltage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v1 != "12.3V" {
		t.Fatalf("got %q", v1)
	}

	v2, err := s.Voltage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v2 != v1 {
		t.Fatalf("expected memoized value, got %q vs %q", v2, v1)
	}
	// Only one ATRV write should have reached the link.
	count := 0
	for _, w := range link.written {
		if w == "ATRV" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected ATRV sent once, sent %d times", count)
	}
}

func TestCloseReturnsToIdle(t *testing.T) {
	s, _ := newTestSession(t, []string{"ATZ>", "OK>", "OK>", "41 00 >"})
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != Idle {
		t.Fatalf("expected Idle, got %s", s.State())
	}
}
