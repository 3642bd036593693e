package analysis

import (
	"fmt"
	"math"
	"time"

	"automon/internal/capture"
)

// PID keys the canonical sensors driving/performance analysis reads
// from TripFrame.PID (§4.3).
const (
	pidRPM         = "010C"
	pidSpeed       = "010D"
	pidCoolantTemp = "0105"
)

// Analyzer processes a TripSession to generate analysis results
type Analyzer struct {
	session  *capture.TripSession
	analysis *Analysis
	options  AnalyzerOptions
}

// AnalyzerOptions configures the analysis process
type AnalyzerOptions struct {
	RapidAccelThreshold float64       // km/h/s for rapid acceleration detection
	RapidDecelThreshold float64       // km/h/s for rapid deceleration detection
	IdleSpeedThreshold  float64       // km/h below which is considered idle
	CruiseThreshold     float64       // km/h/s variance for cruise detection
	MinPhaseTime        time.Duration // minimum duration for a driving phase
}

// DefaultOptions returns sensible default analyzer options
func DefaultOptions() AnalyzerOptions {
	return AnalyzerOptions{
		RapidAccelThreshold: 10.0, // 10 km/h per second
		RapidDecelThreshold: -8.0, // -8 km/h per second
		IdleSpeedThreshold:  3.0,  // 3 km/h
		CruiseThreshold:     2.0,  // 2 km/h/s variance
		MinPhaseTime:        3 * time.Second,
	}
}

// NewAnalyzer creates a new analyzer instance
func NewAnalyzer(session *capture.TripSession, options AnalyzerOptions) *Analyzer {
	return &Analyzer{
		session:  session,
		analysis: &Analysis{},
		options:  options,
	}
}

// Analyze processes the session and returns analysis results
func (a *Analyzer) Analyze() (*Analysis, error) {
	a.analysis = &Analysis{}
	if err := a.analyzeSessionInfo(); err != nil {
		return nil, fmt.Errorf("session info analysis failed: %w", err)
	}
	if err := a.analyzePerformance(); err != nil {
		return nil, fmt.Errorf("performance analysis failed: %w", err)
	}
	if err := a.analyzeDrivingBehavior(); err != nil {
		return nil, fmt.Errorf("driving behavior analysis failed: %w", err)
	}
	if err := a.analyzeDiagnostics(); err != nil {
		return nil, fmt.Errorf("diagnostics analysis failed: %w", err)
	}
	return a.analysis, nil
}

func (a *Analyzer) analyzeSessionInfo() error {
	a.analysis.SessionInfo.StartTime = a.session.StartTime
	a.analysis.SessionInfo.EndTime = a.session.EndTime
	a.analysis.SessionInfo.Duration = a.session.EndTime.Sub(a.session.StartTime)
	a.analysis.SessionInfo.VIN = a.session.VIN
	a.analysis.SessionInfo.TotalFrames = len(a.session.Frames)
	return nil
}

func (a *Analyzer) analyzePerformance() error {
	var rpmValues, speedValues, tempValues []float64

	for _, frame := range a.session.Frames {
		if frame.Kind != capture.KindSensor {
			continue
		}
		switch frame.PID {
		case pidRPM:
			rpmValues = append(rpmValues, frame.Value)
		case pidSpeed:
			speedValues = append(speedValues, frame.Value)
		case pidCoolantTemp:
			tempValues = append(tempValues, frame.Value)
		}
	}

	a.analysis.Performance.RPM = CalculateStats(rpmValues)
	a.analysis.Performance.Speed = CalculateStats(speedValues)
	a.analysis.Performance.CoolantTemp = CalculateStats(tempValues)

	duration := a.analysis.SessionInfo.Duration.Seconds()
	if duration > 0 {
		a.analysis.Performance.DataRate = float64(len(a.session.Frames)) / duration
	}

	return nil
}

// analyzeDrivingBehavior walks the speed-PID frame series in order,
// classifying each inter-sample interval into a driving phase and
// counting rapid accelerations/decelerations.
func (a *Analyzer) analyzeDrivingBehavior() error {
	var currentPhase *DrivingPhase
	var lastSpeed float64
	var lastTime time.Time

	for _, frame := range a.session.Frames {
		if frame.Kind != capture.KindSensor || frame.PID != pidSpeed {
			continue
		}
		speed := frame.Value

		if !lastTime.IsZero() {
			timeDiff := frame.Timestamp.Sub(lastTime).Seconds()
			if timeDiff > 0 {
				acceleration := (speed - lastSpeed) / timeDiff
				phaseType := a.detectPhaseType(speed, acceleration)

				if currentPhase == nil || currentPhase.Type != phaseType {
					if currentPhase != nil {
						currentPhase.EndTime = frame.Timestamp
						currentPhase.Duration = currentPhase.EndTime.Sub(currentPhase.StartTime)
						if currentPhase.Duration >= a.options.MinPhaseTime {
							a.analysis.DrivingBehavior.Phases = append(a.analysis.DrivingBehavior.Phases, *currentPhase)
						}
					}
					currentPhase = &DrivingPhase{
						Type:      phaseType,
						StartTime: frame.Timestamp,
						Stats:     make(map[string]float64),
					}
				}

				if acceleration >= a.options.RapidAccelThreshold {
					a.analysis.DrivingBehavior.RapidAccel++
				} else if acceleration <= a.options.RapidDecelThreshold {
					a.analysis.DrivingBehavior.RapidDecel++
				}
			}
		}

		lastSpeed = speed
		lastTime = frame.Timestamp
	}

	var idleTime time.Duration
	for _, phase := range a.analysis.DrivingBehavior.Phases {
		if phase.Type == "idle" {
			idleTime += phase.Duration
		}
	}

	totalDuration := a.analysis.SessionInfo.Duration
	if totalDuration > 0 {
		a.analysis.DrivingBehavior.IdleTime = float64(idleTime) / float64(totalDuration) * 100
	}

	return nil
}

func (a *Analyzer) detectPhaseType(speed, acceleration float64) string {
	if speed < a.options.IdleSpeedThreshold {
		return "idle"
	}
	if acceleration >= a.options.RapidAccelThreshold {
		return "acceleration"
	}
	if acceleration <= a.options.RapidDecelThreshold {
		return "deceleration"
	}
	if math.Abs(acceleration) < a.options.CruiseThreshold {
		return "cruise"
	}
	return "unknown"
}

func (a *Analyzer) analyzeDiagnostics() error {
	dtcs := make(map[string]struct{})

	for _, frame := range a.session.Frames {
		if frame.Kind != capture.KindDTC {
			continue
		}
		for _, code := range frame.DTCs {
			dtcs[code] = struct{}{}
		}
	}

	a.analysis.Diagnostics.DTCCount = len(dtcs)
	for code := range dtcs {
		a.analysis.Diagnostics.UniqueDTCs = append(a.analysis.Diagnostics.UniqueDTCs, code)
	}

	return nil
}
