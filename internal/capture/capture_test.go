package capture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"automon/internal/dtc"
)

func TestNewTripSession(t *testing.T) {
	session := NewTripSession("1HGCM82633A123456")

	if session.VIN != "1HGCM82633A123456" {
		t.Errorf("expected VIN to be set, got %s", session.VIN)
	}
	if session.StartTime.IsZero() {
		t.Error("expected start time to be set")
	}
	if len(session.Frames) != 0 {
		t.Error("expected empty frames slice")
	}
}

func TestAddFrame(t *testing.T) {
	session := NewTripSession("1HGCM82633A123456")
	frame := TripFrame{
		Timestamp: time.Now(),
		Kind:      KindSensor,
		PID:       "010C",
		Value:     1726,
	}

	session.AddFrame(frame)

	if len(session.Frames) != 1 {
		t.Fatal("expected one frame in session")
	}
	if session.Frames[0].Kind != KindSensor {
		t.Errorf("expected kind %s, got %s", KindSensor, session.Frames[0].Kind)
	}
}

func TestSaveAndLoadTripSession(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "capture_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	session := NewTripSession("1HGCM82633A123456")
	session.filePath = filepath.Join(tempDir, "test_trip.json")
	session.AddFrame(TripFrame{
		Timestamp: time.Now(),
		Kind:      KindSensor,
		PID:       "010D",
		Value:     80,
	})

	if err := session.Save(); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}

	loaded, err := LoadTripSession(session.filePath)
	if err != nil {
		t.Fatalf("failed to load session: %v", err)
	}
	if loaded.VIN != session.VIN {
		t.Errorf("expected VIN %s, got %s", session.VIN, loaded.VIN)
	}
	if len(loaded.Frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(loaded.Frames))
	}
}

func TestRecorderLifecycle(t *testing.T) {
	recorder := NewRecorder("1HGCM82633A123456")

	if err := recorder.Start(); err != nil {
		t.Fatalf("failed to start recorder: %v", err)
	}
	if !recorder.IsRunning() {
		t.Error("expected recorder to be running")
	}

	if err := recorder.Record(TripFrame{Timestamp: time.Now(), Kind: KindSensor, PID: "010C", Value: 1726}); err != nil {
		t.Errorf("failed to record frame: %v", err)
	}
	if err := recorder.RecordDTCs([]dtc.DTC{{Code: "P0133", Meaning: "O2 sensor slow response"}}); err != nil {
		t.Errorf("failed to record DTC frame: %v", err)
	}

	session, err := recorder.Stop()
	if err != nil {
		t.Errorf("failed to stop recorder: %v", err)
	}
	if recorder.IsRunning() {
		t.Error("expected recorder to be stopped")
	}
	if len(session.Frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(session.Frames))
	}
}

func TestRecordBeforeStartFails(t *testing.T) {
	recorder := NewRecorder("1HGCM82633A123456")
	if err := recorder.Record(TripFrame{Kind: KindSensor}); err == nil {
		t.Error("expected error recording before Start")
	}
}
