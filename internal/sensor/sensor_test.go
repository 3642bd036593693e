package sensor

import (
	"testing"
	"time"
)

func findSensor(t *testing.T, catalog []*Sensor, pid string) *Sensor {
	t.Helper()
	for _, s := range catalog {
		if s.PID == pid {
			return s
		}
	}
	t.Fatalf("sensor %s not in catalog", pid)
	return nil
}

func TestDecodeEngineRPM(t *testing.T) {
	s := findSensor(t, NewCatalog(), "010C")
	if err := s.Service("41 0C 1A F8 >"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := s.LastValue()
	if !ok {
		t.Fatalf("expected a value")
	}
	if v != 1726 {
		t.Fatalf("got %v, want 1726", v)
	}
}

func TestDecodeVehicleSpeed(t *testing.T) {
	s := findSensor(t, NewCatalog(), "010D")
	if err := s.Service("41 0D 50 >"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := s.LastValue()
	if v != 80 {
		t.Fatalf("got %v, want 80", v)
	}
}

func TestDecodeCoolantTemp(t *testing.T) {
	s := findSensor(t, NewCatalog(), "0105")
	if err := s.Service("41 05 7B >"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := s.LastValue()
	if v != 83 {
		t.Fatalf("got %v, want 83", v)
	}
}

func TestValueChangedFiresOnFirstAndOnChange(t *testing.T) {
	s := findSensor(t, NewCatalog(), "010D")
	var fires int
	s.OnValueChanged(func(pid string, value float64) { fires++ })

	_ = s.Service("41 0D 50 >")
	_ = s.Service("41 0D 50 >") // identical raw, no new value-changed
	_ = s.Service("41 0D 60 >") // changed raw

	if fires != 2 {
		t.Fatalf("expected 2 value-changed events, got %d", fires)
	}
	if s.ChangeCount() != 2 {
		t.Fatalf("expected change count 2, got %d", s.ChangeCount())
	}
}

func TestOutOfRangeRisingAndFallingEdge(t *testing.T) {
	s := New("010D", "Vehicle speed", UnitKPH, 1, 0, 100, func(b []int) (float64, error) {
		return float64(b[0]), nil
	})
	var rangeEvents int
	s.OnOutOfRange(func(pid, msg string) { rangeEvents++ })

	_ = s.Service("41 0D 32 >")  // 50, in range
	_ = s.Service("41 0D FF >")  // 255, out of range: rising edge
	_ = s.Service("41 0D FE >")  // 254, still out of range: no new event
	_ = s.Service("41 0D 0A >")  // 10, back in range: falling edge, silent

	if rangeEvents != 1 {
		t.Fatalf("expected exactly 1 out-of-range event, got %d", rangeEvents)
	}
}

func TestCapabilityQueryMarksSupported(t *testing.T) {
	// 0100 response bytes (after mode/PID echo): BE 1F B8 10 ->
	// supports PID 0C (RPM) and 0D (speed) among others.
	link := &fakeCapTransport{resp: "41 00 BE 1F B8 10 >"}
	catalog := NewCatalog()

	if err := Query(link, time.Second, catalog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rpm := findSensor(t, catalog, "010C")
	if !rpm.Supported() {
		t.Fatalf("expected 010C to be supported")
	}
}

type fakeCapTransport struct {
	resp string
}

func (f *fakeCapTransport) SendAndRead(text string, timeout time.Duration) (string, error) {
	return f.resp, nil
}
