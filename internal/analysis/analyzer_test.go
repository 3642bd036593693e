package analysis

import (
	"math"
	"testing"
	"time"

	"automon/internal/capture"
)

func TestAnalyzer(t *testing.T) {
	now := time.Now()
	session := &capture.TripSession{
		StartTime: now,
		EndTime:   now.Add(10 * time.Second),
		VIN:       "1HGCM82633A123456",
		Frames: []capture.TripFrame{
			{Kind: capture.KindSensor, PID: pidRPM, Timestamp: now, Value: 800.0},
			{Kind: capture.KindSensor, PID: pidSpeed, Timestamp: now, Value: 0.0},
			{Kind: capture.KindSensor, PID: pidCoolantTemp, Timestamp: now, Value: 90.0},

			{Kind: capture.KindSensor, PID: pidRPM, Timestamp: now.Add(2 * time.Second), Value: 2500.0},
			{Kind: capture.KindSensor, PID: pidSpeed, Timestamp: now.Add(2 * time.Second), Value: 20.0},

			{Kind: capture.KindSensor, PID: pidRPM, Timestamp: now.Add(4 * time.Second), Value: 2000.0},
			{Kind: capture.KindSensor, PID: pidSpeed, Timestamp: now.Add(4 * time.Second), Value: 60.0},

			{Kind: capture.KindSensor, PID: pidRPM, Timestamp: now.Add(6 * time.Second), Value: 1500.0},
			{Kind: capture.KindSensor, PID: pidSpeed, Timestamp: now.Add(6 * time.Second), Value: 30.0},

			{Kind: capture.KindDTC, Timestamp: now.Add(8 * time.Second), DTCs: []string{"P0133"}},
		},
	}

	analyzer := NewAnalyzer(session, DefaultOptions())

	analysis, err := analyzer.Analyze()
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}

	if analysis.SessionInfo.Duration != 10*time.Second {
		t.Errorf("expected duration 10s, got %v", analysis.SessionInfo.Duration)
	}
	if analysis.SessionInfo.TotalFrames != 10 {
		t.Errorf("expected 10 frames, got %d", analysis.SessionInfo.TotalFrames)
	}

	if analysis.Performance.Speed.Max != 60.0 {
		t.Errorf("expected max speed 60.0, got %f", analysis.Performance.Speed.Max)
	}
	if analysis.Performance.RPM.Min != 800.0 {
		t.Errorf("expected min RPM 800.0, got %f", analysis.Performance.RPM.Min)
	}

	if analysis.DrivingBehavior.RapidAccel == 0 {
		t.Error("expected at least one rapid acceleration")
	}
	if analysis.DrivingBehavior.RapidDecel == 0 {
		t.Error("expected at least one rapid deceleration")
	}

	if analysis.Diagnostics.DTCCount != 1 {
		t.Errorf("expected 1 unique DTC, got %d", analysis.Diagnostics.DTCCount)
	}
}

func TestCalculateStats(t *testing.T) {
	values := []float64{1.0, 2.0, 3.0, 4.0, 5.0}
	stats := CalculateStats(values)

	expected := Stats{
		Min:    1.0,
		Max:    5.0,
		Mean:   3.0,
		StdDev: 1.5811388300841898,
	}

	if stats.Min != expected.Min {
		t.Errorf("expected min %f, got %f", expected.Min, stats.Min)
	}
	if stats.Max != expected.Max {
		t.Errorf("expected max %f, got %f", expected.Max, stats.Max)
	}
	if stats.Mean != expected.Mean {
		t.Errorf("expected mean %f, got %f", expected.Mean, stats.Mean)
	}
	if math.Abs(stats.StdDev-expected.StdDev) > 0.0001 {
		t.Errorf("expected stddev %f, got %f", expected.StdDev, stats.StdDev)
	}
}
