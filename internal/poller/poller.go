// Package poller implements the round-robin scheduler of §4.4: a
// single-worker task that drives the active sensor set over the
// Transport under per-sensor frequency dividers, decoding results and
// fanning them out via the Sensor's own event handlers.
package poller

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"automon/internal/sensor"
)

// Transport is the minimal surface the Poller needs; *session.Session
// satisfies it, handing the underlying link over for the duration of a
// polling session per §4.2's Ready -> Polling transition.
type Transport interface {
	SendAndRead(text string, timeout time.Duration) (string, error)
}

// ErrIOClosed signals the underlying link has gone away; unlike a
// timeout, this is fatal to the polling session (§4.4).
var ErrIOClosed = errors.New("poller: transport closed")

const pollTimeout = 2500 * time.Millisecond

// ErrorHandler is notified of per-iteration timeout/decode failures,
// which are surfaced as telemetry but do not stop the Poller (§4.4, §7).
type ErrorHandler func(pid string, err error)

// Poller owns the active sensor set and drives it round-robin.
type Poller struct {
	mu      sync.Mutex
	active  []*sensor.Sensor
	counter map[string]int

	tr       Transport
	onError  ErrorHandler
	stop     chan struct{}
	stopped  chan struct{}
	running  bool
}

// New constructs a Poller bound to tr. The active sensor set starts
// empty; callers add sensors with Add before calling Run.
func New(tr Transport, onError ErrorHandler) *Poller {
	if onError == nil {
		onError = func(string, error) {}
	}
	return &Poller{
		tr:      tr,
		onError: onError,
		counter: map[string]int{},
	}
}

// Add appends s to the active set in insertion order. Unsupported
// sensors must never be added (§4.3/§8 invariant 6) — callers are
// expected to have checked s.Supported() already; Add itself just
// refuses silently-wrong dividers.
func (p *Poller) Add(s *sensor.Sensor) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.FrequencyDivider < 1 {
		return fmt.Errorf("poller: %s has invalid frequency divider %d", s.PID, s.FrequencyDivider)
	}
	for _, existing := range p.active {
		if existing.PID == s.PID {
			return nil
		}
	}
	p.active = append(p.active, s)
	p.counter[s.PID] = s.FrequencyDivider // due immediately on first rotation
	return nil
}

// Remove drops a sensor from the active set.
func (p *Poller) Remove(pid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.active {
		if s.PID == pid {
			p.active = append(p.active[:i], p.active[i+1:]...)
			delete(p.counter, pid)
			return
		}
	}
}

// ActivePIDs returns the PIDs currently in the active set, for the
// RuleEngine's activation check (§4.5).
func (p *Poller) ActivePIDs() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]bool, len(p.active))
	for _, s := range p.active {
		out[s.PID] = true
	}
	return out
}

// Run drives the round-robin loop until Stop is called or the active
// set is empty at the start of an iteration. It is meant to run in its
// own goroutine; Stop blocks until it returns.
func (p *Poller) Run() error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller: already running")
	}
	p.running = true
	p.stop = make(chan struct{})
	p.stopped = make(chan struct{})
	p.mu.Unlock()

	defer close(p.stopped)

	index := 0
	for {
		select {
		case <-p.stop:
			return nil
		default:
		}

		p.mu.Lock()
		if len(p.active) == 0 {
			p.mu.Unlock()
			return nil
		}
		if index >= len(p.active) {
			index = 0
		}
		s := p.active[index]
		index = (index + 1) % len(p.active)

		due := p.counter[s.PID] >= s.FrequencyDivider
		if due {
			p.counter[s.PID] = 1
		} else {
			p.counter[s.PID]++
		}
		p.mu.Unlock()

		if !due {
			continue
		}

		cmd := s.PID
		if s.ExpectedBytes > 0 {
			cmd = s.PID + " " + strconv.Itoa(s.ExpectedBytes)
		}

		raw, err := p.tr.SendAndRead(cmd, pollTimeout)
		if err != nil {
			if errors.Is(err, ErrIOClosed) {
				return err
			}
			p.onError(s.PID, err)
			continue
		}

		if err := s.Service(raw); err != nil {
			p.onError(s.PID, err)
		}
	}
}

// Stop requests the worker to exit at its next opportunity and blocks
// until it has (§5: worst-case latency is one Transport call).
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	stop := p.stop
	stopped := p.stopped
	p.mu.Unlock()

	close(stop)
	<-stopped

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}
