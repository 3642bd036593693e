// Package session negotiates an ELM327-class adapter into a state where
// sensor PIDs can be queried (§4.2): reset, disable echo, enable adaptive
// timing, wake the OBD bus, and memoise the introspection commands whose
// answers never change for the life of a connection.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"automon/internal/protocol"
	"automon/internal/transport"
)

// State is a position in the session state machine:
// Idle -> Connecting -> Ready -> Polling -> Ready -> Idle, with Failed as
// a terminal-until-reset state reachable from Connecting.
type State int

const (
	Idle State = iota
	Connecting
	Ready
	Polling
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Polling:
		return "polling"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Errors raised while bringing up or querying the adapter.
var (
	ErrBusInit             = errors.New("session: bus initialisation failed")
	ErrAdapterUnresponsive = errors.New("session: adapter unresponsive")
	ErrNotReady            = errors.New("session: not in Ready state")
	ErrWrongState          = errors.New("session: invalid state transition")
)

const (
	initTimeout     = 5 * time.Second
	introTimeout    = 5 * time.Second
	initStepPause   = time.Second
	obdStandardCARB = 1
)

// obdStandardNames maps the byte returned by 011C to its human label.
var obdStandardNames = map[int]string{
	1: "OBD-II (CARB)",
	2: "OBD (EPA)",
	3: "OBD and OBD-II",
	4: "OBD-I",
	5: "none",
	6: "EOBD",
}

// Session owns the Transport for the duration of a connection and tracks
// the introspection values that only need to be fetched once.
type Session struct {
	mu    sync.Mutex
	tr    *transport.Transport
	state State

	voltage  string
	version  string
	protocol string
	standard string
	vin      string
}

// New wraps an already-open Transport in a fresh Session, in the Idle
// state, and runs the initialisation sequence immediately, matching the
// Idle -> Connecting -> {Ready,Failed} transition in §4.2.
func New(tr *transport.Transport) (*Session, error) {
	s := &Session{tr: tr, state: Idle}
	if err := s.connect(); err != nil {
		return s, err
	}
	return s, nil
}

// State reports the session's current position in the state machine.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// connect runs the four-step init sequence (§4.2) and transitions to
// Ready on success or Failed on any step error.
func (s *Session) connect() error {
	s.mu.Lock()
	s.state = Connecting
	s.mu.Unlock()

	steps := []string{"ATZ", "ATE0", "ATAT2"}
	for _, cmd := range steps {
		if _, err := s.raw(cmd, initTimeout); err != nil {
			s.fail()
			return fmt.Errorf("%w: %s: %v", ErrBusInit, cmd, err)
		}
		time.Sleep(initStepPause)
	}

	resp, err := s.raw("0100", initTimeout)
	if err != nil {
		s.fail()
		return fmt.Errorf("%w: 0100: %v", ErrBusInit, err)
	}
	if strings.Contains(strings.ToUpper(resp), "UNABLE TO CONNECT") ||
		strings.Contains(strings.ReplaceAll(strings.ToUpper(resp), " ", ""), "UNABLETOCONNECT") {
		s.fail()
		return fmt.Errorf("%w: 0100: adapter could not connect to the bus", ErrBusInit)
	}

	s.mu.Lock()
	s.state = Ready
	s.mu.Unlock()
	return nil
}

func (s *Session) fail() {
	s.mu.Lock()
	s.state = Failed
	s.mu.Unlock()
}

// raw sends text and returns the response verbatim, prompt included. It
// does not take the state lock; callers that need state consistency must
// hold it.
func (s *Session) raw(text string, timeout time.Duration) (string, error) {
	return s.tr.SendAndRead(text, timeout)
}

// SendAndRead issues an arbitrary command through the session's
// Transport. Used by DTCService and the Poller, both of which require
// the caller to have already arranged exclusive access to the Transport
// (the Kernel's single-tenant invariant, §4.7) — Session itself does not
// arbitrate between polling and introspection callers.
func (s *Session) SendAndRead(text string, timeout time.Duration) (string, error) {
	return s.raw(text, timeout)
}

// StartPolling transitions Ready -> Polling, handing the Transport to the
// Poller. Returns ErrNotReady from any other state.
func (s *Session) StartPolling() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready {
		return fmt.Errorf("%w: StartPolling requires Ready, was %s", ErrNotReady, s.state)
	}
	s.state = Polling
	return nil
}

// StopPolling transitions Polling -> Ready, returning the Transport.
func (s *Session) StopPolling() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Polling {
		return fmt.Errorf("%w: StopPolling requires Polling, was %s", ErrWrongState, s.state)
	}
	s.state = Ready
	return nil
}

// Close drops the Transport and moves to Idle from any state.
func (s *Session) Close() error {
	s.mu.Lock()
	s.state = Idle
	s.mu.Unlock()
	return s.tr.Close()
}

// Voltage returns ATRV, memoised after first success.
func (s *Session) Voltage() (string, error) {
	return s.memoize(&s.voltage, "ATRV")
}

// AdapterVersion returns ATI, memoised after first success.
func (s *Session) AdapterVersion() (string, error) {
	return s.memoize(&s.version, "ATI")
}

// Protocol returns ATDP, memoised after first success.
func (s *Session) Protocol() (string, error) {
	return s.memoize(&s.protocol, "ATDP")
}

// memoize runs cmd through the Transport the first time it's asked for
// and caches the cleaned response thereafter.
func (s *Session) memoize(cache *string, cmd string) (string, error) {
	s.mu.Lock()
	if *cache != "" {
		v := *cache
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	resp, err := s.raw(cmd, introTimeout)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrAdapterUnresponsive, cmd, err)
	}
	clean := protocol.Clean(resp)
	clean = strings.TrimSuffix(clean, ">")

	s.mu.Lock()
	*cache = clean
	s.mu.Unlock()
	return clean, nil
}

// Standard decodes 011C (the OBD standard byte), memoised after first
// success.
func (s *Session) Standard() (string, error) {
	s.mu.Lock()
	if s.standard != "" {
		v := s.standard
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	resp, err := s.raw("011C", introTimeout)
	if err != nil {
		return "", fmt.Errorf("%w: 011C: %v", ErrAdapterUnresponsive, err)
	}
	bytes, err := protocol.Bytes(resp)
	if err != nil {
		return "", fmt.Errorf("%w: 011C: %v", ErrAdapterUnresponsive, err)
	}
	data := protocol.SkipEcho(bytes)
	if len(data) < 1 {
		return "", fmt.Errorf("%w: 011C: short response", ErrAdapterUnresponsive)
	}
	name, ok := obdStandardNames[data[0]]
	if !ok {
		name = "unknown"
	}

	s.mu.Lock()
	s.standard = name
	s.mu.Unlock()
	return name, nil
}

// VIN queries 0902 (5 lines, each selecting an ASCII triple) and
// memoises the assembled 17-character VIN after first success.
func (s *Session) VIN() (string, error) {
	s.mu.Lock()
	if s.vin != "" {
		v := s.vin
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	resp, err := s.raw("0902", introTimeout)
	if err != nil {
		return "", fmt.Errorf("%w: 0902: %v", ErrAdapterUnresponsive, err)
	}
	bytes, err := protocol.Bytes(resp)
	if err != nil {
		return "", fmt.Errorf("%w: 0902: %v", ErrAdapterUnresponsive, err)
	}
	data := protocol.SkipEcho(bytes)

	// Each line contributes an order byte followed by up to 3 ASCII
	// bytes; lines are reassembled in order-byte sequence regardless of
	// arrival order, then concatenated and trimmed to 17 characters.
	lines := map[int][]byte{}
	for i := 0; i+1 < len(data); i += 4 {
		order := data[i]
		chunk := data[i+1:]
		if len(chunk) > 3 {
			chunk = chunk[:3]
		}
		b := make([]byte, 0, 3)
		for _, c := range chunk {
			if c != 0 {
				b = append(b, byte(c))
			}
		}
		lines[order] = b
	}

	var vin strings.Builder
	for i := 0; i < len(lines); i++ {
		vin.Write(lines[i])
	}
	result := vin.String()
	if len(result) > 17 {
		result = result[:17]
	}
	if result == "" {
		return "", fmt.Errorf("%w: 0902: no VIN data", ErrAdapterUnresponsive)
	}

	s.mu.Lock()
	s.vin = result
	s.mu.Unlock()
	return result, nil
}
