// Package capture records the event stream a Kernel produces while
// polling into a replayable TripSession: one TripFrame per
// value-changed, rule-satisfied, or DTC-refresh event (§3, §4.9).
package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TripFrame is one event observed during a trip: a sensor value
// update, a rule reaching its satisfied edge, or a DTC-set refresh.
type TripFrame struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"` // "sensor", "rule", or "dtc"
	PID       string    `json:"pid,omitempty"`
	Value     float64   `json:"value,omitempty"`
	DTCs      []string  `json:"dtcs,omitempty"`
	Raw       string    `json:"raw,omitempty"` // diagnostic only
}

const (
	KindSensor = "sensor"
	KindRule   = "rule"
	KindDTC    = "dtc"
)

// TripSession is an ordered recording of TripFrames for one VIN,
// bracketed by Start/Stop.
type TripSession struct {
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	VIN       string            `json:"vin"`
	Frames    []TripFrame       `json:"frames"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	filePath  string
}

// NewTripSession creates a new, unsaved trip session for vin.
func NewTripSession(vin string) *TripSession {
	return &TripSession{
		StartTime: time.Now(),
		VIN:       vin,
		Frames:    make([]TripFrame, 0),
		Metadata:  make(map[string]string),
	}
}

// AddFrame appends frame to the session.
func (s *TripSession) AddFrame(frame TripFrame) {
	s.Frames = append(s.Frames, frame)
}

// SetMetadata adds or updates a metadata key.
func (s *TripSession) SetMetadata(key, value string) {
	s.Metadata[key] = value
}

// Save writes the session to disk as JSON, setting EndTime first.
func (s *TripSession) Save() error {
	if s.filePath == "" {
		timestamp := time.Now().Format("20060102_150405")
		s.filePath = filepath.Join("trips", fmt.Sprintf("trip_%s.json", timestamp))
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("capture: creating trip directory: %w", err)
	}

	s.EndTime = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("capture: marshalling trip session: %w", err)
	}

	if err := os.WriteFile(s.filePath, data, 0644); err != nil {
		return fmt.Errorf("capture: writing trip session: %w", err)
	}

	return nil
}

// LoadTripSession reads a trip session previously written by Save,
// used by the `automon replay`/`automon analyze` CLI commands.
func LoadTripSession(path string) (*TripSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("capture: reading trip session: %w", err)
	}
	var s TripSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("capture: parsing trip session: %w", err)
	}
	s.filePath = path
	return &s, nil
}
