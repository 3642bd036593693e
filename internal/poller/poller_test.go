package poller

import (
	"sync"
	"testing"
	"time"

	"automon/internal/sensor"
)

type fakeTransport struct {
	mu    sync.Mutex
	count map[string]int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{count: map[string]int{}}
}

func (f *fakeTransport) SendAndRead(text string, timeout time.Duration) (string, error) {
	f.mu.Lock()
	f.count[text]++
	f.mu.Unlock()
	// text is the PID, possibly with an expected-bytes hint appended.
	switch {
	case len(text) >= 4 && text[:4] == "010C":
		return "41 0C 1A F8 >", nil
	case len(text) >= 4 && text[:4] == "010D":
		return "41 0D 50 >", nil
	}
	return "NODATA>", nil
}

func (f *fakeTransport) total(pid string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for text, n := range f.count {
		if len(text) >= 4 && text[:4] == pid {
			total += n
		}
	}
	return total
}

func TestPollerServicesSupportedSensors(t *testing.T) {
	tr := newFakeTransport()
	p := New(tr, nil)

	rpm := sensorFor(t, "010C")
	if err := p.Add(rpm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	go p.Run()
	time.Sleep(150 * time.Millisecond)
	p.Stop()

	if tr.total("010C") == 0 {
		t.Fatalf("expected at least one poll of 010C")
	}
	v, ok := rpm.LastValue()
	if !ok || v != 1726 {
		t.Fatalf("expected decoded RPM 1726, got %v (ok=%v)", v, ok)
	}
}

func TestPollerHonoursFrequencyDivider(t *testing.T) {
	tr := newFakeTransport()
	p := New(tr, nil)

	fast := sensorFor(t, "010C")
	slow := sensorFor(t, "010D")
	slow.FrequencyDivider = 5

	_ = p.Add(fast)
	_ = p.Add(slow)

	go p.Run()
	time.Sleep(300 * time.Millisecond)
	p.Stop()

	fastCount := tr.total("010C")
	slowCount := tr.total("010D")
	if fastCount == 0 {
		t.Fatalf("expected fast sensor to be polled")
	}
	if slowCount == 0 {
		t.Fatalf("expected slow sensor to be polled at least once")
	}
	if slowCount*2 > fastCount {
		t.Fatalf("expected slow sensor serviced far less often: fast=%d slow=%d", fastCount, slowCount)
	}
}

func TestStopIsIdempotentAndClearsSet(t *testing.T) {
	tr := newFakeTransport()
	p := New(tr, nil)
	_ = p.Add(sensorFor(t, "010C"))

	go p.Run()
	time.Sleep(50 * time.Millisecond)
	p.Stop()
	p.Stop() // must not block or panic

	p.Remove("010C")
	if len(p.ActivePIDs()) != 0 {
		t.Fatalf("expected empty active set after Remove")
	}
}

func sensorFor(t *testing.T, pid string) *sensor.Sensor {
	t.Helper()
	for _, s := range sensor.NewCatalog() {
		if s.PID == pid {
			return s
		}
	}
	t.Fatalf("no catalog sensor for %s", pid)
	return nil
}
