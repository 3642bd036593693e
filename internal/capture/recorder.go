package capture

import (
	"fmt"
	"sync"
	"time"

	"automon/internal/dtc"
	"automon/internal/kernel"
)

// Recorder accumulates TripFrames into a TripSession while running.
type Recorder struct {
	mu      sync.Mutex
	session *TripSession
	running bool
}

// NewRecorder creates a recorder for a not-yet-started trip on vin.
func NewRecorder(vin string) *Recorder {
	return &Recorder{session: NewTripSession(vin)}
}

// Start begins the recording session.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("capture: recorder already running")
	}
	r.running = true
	return nil
}

// Stop ends the recording session, saves it, and returns it.
func (r *Recorder) Stop() (*TripSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil, fmt.Errorf("capture: recorder is not running")
	}
	r.running = false
	if err := r.session.Save(); err != nil {
		return nil, err
	}
	return r.session, nil
}

// Record appends a frame to the current session.
func (r *Recorder) Record(frame TripFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return fmt.Errorf("capture: recorder is not running")
	}
	r.session.AddFrame(frame)
	return nil
}

// SetMetadata adds metadata to the session.
func (r *Recorder) SetMetadata(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.SetMetadata(key, value)
}

// IsRunning returns the current recording state.
func (r *Recorder) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Subscribe wires the recorder to a connected Kernel's value and rule
// event streams (§4.9). Errors from Record (recorder not yet started)
// are swallowed here: a subscriber must never block or panic the
// Poller goroutine that produced the event (§5).
func (r *Recorder) Subscribe(k *kernel.Kernel) {
	k.SubscribeValue(func(pid string, value float64) {
		_ = r.Record(TripFrame{Timestamp: time.Now(), Kind: KindSensor, PID: pid, Value: value})
	})
	k.SubscribeRule(func(name string) {
		_ = r.Record(TripFrame{Timestamp: time.Now(), Kind: KindRule, PID: name})
	})
}

// RecordDTCs appends a dtc-kind frame for the current DTC set. DTC
// enumeration is a polled Kernel operation rather than a continuous
// event stream (§4.7), so callers invoke this explicitly after a
// Kernel.DTCs() call instead of it firing from a subscription.
func (r *Recorder) RecordDTCs(codes []dtc.DTC) error {
	names := make([]string, 0, len(codes))
	for _, c := range codes {
		names = append(names, c.Code)
	}
	return r.Record(TripFrame{Timestamp: time.Now(), Kind: KindDTC, DTCs: names})
}
