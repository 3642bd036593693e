// Package sensor implements the PID decode model and the capability
// bitmap query described in §4.3: a pure decode formula per PID, range
// checking with rising/falling edge out-of-range notification, and
// change detection gated on raw-response equality.
package sensor

import (
	"fmt"
	"sync"
	"time"

	"automon/internal/protocol"
)

// Unit is one of the fixed unit symbols a Sensor may report values in.
type Unit string

const (
	UnitMPH     Unit = "mph"
	UnitKPH     Unit = "km/h"
	UnitRPM     Unit = "rpm"
	UnitDegC    Unit = "deg-C"
	UnitPercent Unit = "%"
	UnitKPA     Unit = "kPa"
	UnitVolts   Unit = "V"
	UnitSeconds Unit = "s"
	UnitMinutes Unit = "min"
	UnitGramsPS Unit = "g/s"
	UnitNA      Unit = "n/a"
)

// DecodeFunc is a pure function from the post-echo-skip byte vector to a
// value in the sensor's declared Unit.
type DecodeFunc func(bytes []int) (float64, error)

// ValueHandler is notified on value-changed events.
type ValueHandler func(pid string, value float64)

// RangeHandler is notified on out-of-range transitions.
type RangeHandler func(pid string, message string)

// Sensor is a typed PID descriptor: decode formula, unit, range,
// scheduling divider, and the running state a Poller mutates on each
// service (§3).
type Sensor struct {
	mu sync.Mutex

	PID             string
	Name            string
	Unit            Unit
	ExpectedBytes   int
	Min             float64
	Max             float64
	FrequencyDivider int

	supported     bool
	lastValue     *float64
	lastRaw       []int
	changeCount   int
	wasOutOfRange bool
	lastServiced  time.Time
	avgRefreshRate float64

	decode DecodeFunc

	valueHandlers []ValueHandler
	rangeHandlers []RangeHandler
}

// New constructs a Sensor with FrequencyDivider defaulted to 1 (serviced
// every rotation) and Supported initially false; CapabilityMap is the
// only component permitted to flip Supported (§3 invariant).
func New(pid, name string, unit Unit, expectedBytes int, min, max float64, decode DecodeFunc) *Sensor {
	return &Sensor{
		PID:              pid,
		Name:             name,
		Unit:             unit,
		ExpectedBytes:    expectedBytes,
		Min:              min,
		Max:              max,
		FrequencyDivider: 1,
		decode:           decode,
	}
}

// Supported reports whether CapabilityMap has marked this PID present on
// the connected ECU.
func (s *Sensor) Supported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supported
}

// SetSupported is called exclusively by CapabilityMap.
func (s *Sensor) SetSupported(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supported = v
}

// LastValue returns the most recently decoded value, if any has been
// recorded yet.
func (s *Sensor) LastValue() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastValue == nil {
		return 0, false
	}
	return *s.lastValue, true
}

// ChangeCount returns the monotonically non-decreasing update counter.
func (s *Sensor) ChangeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changeCount
}

// AvgRefreshRate returns the exponentially-smoothed service rate in Hz.
func (s *Sensor) AvgRefreshRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avgRefreshRate
}

// OnValueChanged registers a handler invoked on every value-changed
// event (first update, or any subsequent raw-response change).
func (s *Sensor) OnValueChanged(h ValueHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valueHandlers = append(s.valueHandlers, h)
}

// OnOutOfRange registers a handler invoked on the rising edge of
// value < Min || value > Max.
func (s *Sensor) OnOutOfRange(h RangeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rangeHandlers = append(s.rangeHandlers, h)
}

// Service decodes a raw adapter response, updates refresh-rate tracking,
// range state, and change state, and fires the handlers registered
// above. It is called by the Poller once per rotation the sensor is due.
func (s *Sensor) Service(raw string) error {
	now := time.Now()
	bytes, err := protocol.Bytes(raw)
	if err != nil {
		return err
	}
	data := protocol.SkipEcho(bytes)

	s.mu.Lock()
	if !s.lastServiced.IsZero() {
		delta := now.Sub(s.lastServiced).Seconds()
		if delta > 0 {
			inst := 1 / delta
			if s.avgRefreshRate == 0 {
				s.avgRefreshRate = inst
			} else {
				s.avgRefreshRate = (inst + s.avgRefreshRate) / 2
			}
		}
	}
	s.lastServiced = now
	s.mu.Unlock()

	value, err := s.decode(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	firstUpdate := s.lastValue == nil
	rawChanged := !rawEqual(s.lastRaw, data)
	outOfRange := value < s.Min || value > s.Max
	risingEdge := outOfRange && !s.wasOutOfRange
	fallingEdge := !outOfRange && s.wasOutOfRange
	s.wasOutOfRange = outOfRange

	shouldEmitValue := firstUpdate || rawChanged
	if shouldEmitValue && !outOfRange {
		v := value
		s.lastValue = &v
		s.lastRaw = data
		s.changeCount++
	} else if shouldEmitValue {
		s.lastRaw = data
	}

	valueHandlers := append([]ValueHandler(nil), s.valueHandlers...)
	rangeHandlers := append([]RangeHandler(nil), s.rangeHandlers...)
	s.mu.Unlock()

	if shouldEmitValue && !outOfRange {
		for _, h := range valueHandlers {
			h(s.PID, value)
		}
	}
	if risingEdge {
		msg := fmt.Sprintf("%s out of range: %v not in [%v,%v]", s.PID, value, s.Min, s.Max)
		for _, h := range rangeHandlers {
			h(s.PID, msg)
		}
	}
	_ = fallingEdge // cleared silently, no event per §4.3

	return nil
}

func rawEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
