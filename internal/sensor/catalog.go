package sensor

import "fmt"

// ErrShortResponse is returned by a decode formula when the byte vector
// is shorter than the formula requires.
type ErrShortResponse struct {
	PID      string
	Got      int
	Expected int
}

func (e ErrShortResponse) Error() string {
	return fmt.Sprintf("sensor %s: expected at least %d bytes, got %d", e.PID, e.Expected, e.Got)
}

func need(pid string, bytes []int, n int) error {
	if len(bytes) < n {
		return ErrShortResponse{PID: pid, Got: len(bytes), Expected: n}
	}
	return nil
}

// NewCatalog builds the ten canonical sensors required by §4.3, each
// with sane physical range bounds and its pure decode formula.
func NewCatalog() []*Sensor {
	return []*Sensor{
		New("0105", "Coolant temp", UnitDegC, 1, -40, 215, func(b []int) (float64, error) {
			if err := need("0105", b, 1); err != nil {
				return 0, err
			}
			return float64(b[0] - 40), nil
		}),
		New("010A", "Fuel pressure", UnitKPA, 1, 0, 765, func(b []int) (float64, error) {
			if err := need("010A", b, 1); err != nil {
				return 0, err
			}
			return float64(b[0] * 3), nil
		}),
		New("010C", "Engine RPM", UnitRPM, 2, 0, 16383, func(b []int) (float64, error) {
			if err := need("010C", b, 2); err != nil {
				return 0, err
			}
			return float64(b[0]*256+b[1]) / 4, nil
		}),
		New("010D", "Vehicle speed", UnitKPH, 1, 0, 255, func(b []int) (float64, error) {
			if err := need("010D", b, 1); err != nil {
				return 0, err
			}
			return float64(b[0]), nil
		}),
		New("0110", "MAF air-flow", UnitGramsPS, 2, 0, 655, func(b []int) (float64, error) {
			if err := need("0110", b, 2); err != nil {
				return 0, err
			}
			return float64(b[0]*256+b[1]) / 100, nil
		}),
		New("0111", "Throttle pos", UnitPercent, 1, 0, 100, func(b []int) (float64, error) {
			if err := need("0111", b, 1); err != nil {
				return 0, err
			}
			return float64(b[0]) * 100 / 255, nil
		}),
		New("011F", "Engine run-time", UnitSeconds, 2, 0, 65535, func(b []int) (float64, error) {
			if err := need("011F", b, 2); err != nil {
				return 0, err
			}
			return float64(b[0]*256 + b[1]), nil
		}),
		New("012C", "Commanded EGR", UnitPercent, 1, 0, 100, func(b []int) (float64, error) {
			if err := need("012C", b, 1); err != nil {
				return 0, err
			}
			return float64(b[0]) * 100 / 255, nil
		}),
		New("012F", "Fuel level", UnitPercent, 1, 0, 100, func(b []int) (float64, error) {
			if err := need("012F", b, 1); err != nil {
				return 0, err
			}
			return float64(b[0]) * 100 / 255, nil
		}),
		New("0114", "O2 bank1 sensor1 voltage", UnitVolts, 2, 0, 1.275, func(b []int) (float64, error) {
			if err := need("0114", b, 2); err != nil {
				return 0, err
			}
			return float64(b[0]) * 0.005, nil
		}),
	}
}
