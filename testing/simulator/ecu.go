// Package simulator implements a byte-exact ELM327-plus-ECU simulator
// (§4.1, §4.2): it understands the AT-command init sequence and the
// mode 01/03/04/09 requests a real AdapterSession and Kernel issue,
// replying with CR/`>`-terminated responses built from the same
// encode/decode contract as internal/sensor and internal/dtc. Good
// enough to drive integration tests over a loopback TCP or serial
// link without real hardware.
package simulator

import (
	"fmt"
	"sync"
)

// ECU holds the simulated vehicle state an Adapter reports when
// queried: live sensor values by canonical PID, PID support, and the
// DTC/MIL state mode 03/04 operate on.
type ECU struct {
	mu sync.RWMutex

	VIN          string
	ProtocolName string // ATDP response
	Voltage      string // ATRV response, e.g. "14.2V"

	supported map[string]bool    // canonical PID -> supported
	values    map[string]float64 // canonical PID -> live decoded value

	milOn bool
	dtcs  []string // e.g. "P0133"
}

// NewECU returns an ECU with all ten canonical PIDs supported and
// populated with plausible idle values.
func NewECU(vin string) *ECU {
	e := &ECU{
		VIN:          vin,
		ProtocolName: "AUTO, ISO 15765-4 (CAN 11/500)",
		Voltage:      "14.2V",
		supported:    make(map[string]bool),
		values:       make(map[string]float64),
	}
	for _, pid := range []string{"0105", "010A", "010C", "010D", "0110", "0111", "011F", "012C", "012F", "0114"} {
		e.supported[pid] = true
	}
	e.values["0105"] = 85  // coolant temp, degC
	e.values["010A"] = 300 // fuel pressure, kPa
	e.values["010C"] = 800 // RPM, idle
	e.values["010D"] = 0   // speed, kph
	e.values["0110"] = 2.5 // MAF, g/s
	e.values["0111"] = 12  // throttle pos, %
	e.values["011F"] = 120 // run time, s
	e.values["012C"] = 0   // commanded EGR, %
	e.values["012F"] = 60  // fuel level, %
	e.values["0114"] = 0.45
	return e
}

// SetValue updates the live value reported for pid.
func (e *ECU) SetValue(pid string, value float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.values[pid] = value
}

// SetSupported marks pid as supported or not for the capability query.
func (e *ECU) SetSupported(pid string, supported bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.supported[pid] = supported
}

// RaiseDTC appends code to the stored trouble codes and sets the MIL.
func (e *ECU) RaiseDTC(code string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dtcs = append(e.dtcs, code)
	e.milOn = true
}

// ClearDTCs empties the stored trouble codes and clears the MIL,
// simulating a mode 04 reset.
func (e *ECU) ClearDTCs() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dtcs = nil
	e.milOn = false
}

func (e *ECU) snapshot() (values map[string]float64, supported map[string]bool, milOn bool, dtcs []string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	values = make(map[string]float64, len(e.values))
	for k, v := range e.values {
		values[k] = v
	}
	supported = make(map[string]bool, len(e.supported))
	for k, v := range e.supported {
		supported[k] = v
	}
	return values, supported, e.milOn, append([]string(nil), e.dtcs...)
}

// encodePID renders the stored value for pid into the byte vector a
// real ECU's mode 01 response would carry, inverting the decode
// formulas in internal/sensor's catalog.
func encodePID(pid string, value float64) ([]int, error) {
	switch pid {
	case "0105":
		return []int{clampByte(value + 40)}, nil
	case "010A":
		return []int{clampByte(value / 3)}, nil
	case "010C":
		v := int(value*4 + 0.5)
		return []int{(v >> 8) & 0xFF, v & 0xFF}, nil
	case "010D":
		return []int{clampByte(value)}, nil
	case "0110":
		v := int(value*100 + 0.5)
		return []int{(v >> 8) & 0xFF, v & 0xFF}, nil
	case "0111":
		return []int{clampByte(value * 255 / 100)}, nil
	case "011F":
		v := int(value + 0.5)
		return []int{(v >> 8) & 0xFF, v & 0xFF}, nil
	case "012C":
		return []int{clampByte(value * 255 / 100)}, nil
	case "012F":
		return []int{clampByte(value * 255 / 100)}, nil
	case "0114":
		return []int{clampByte(value / 0.005), 0}, nil
	default:
		return nil, fmt.Errorf("simulator: no encoder for PID %s", pid)
	}
}

func clampByte(v float64) int {
	i := int(v + 0.5)
	if i < 0 {
		return 0
	}
	if i > 0xFF {
		return 0xFF
	}
	return i
}
