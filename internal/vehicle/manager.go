package vehicle

import (
	"fmt"
	"sync"
	"time"

	"automon/internal/analysis"
	"automon/internal/kernel"
)

// Manager tracks discovered vehicles by VIN, per-make/model Profiles,
// and raises Alerts when live sensor values cross profile thresholds
// (§4.8). It never touches the Transport directly: live values reach
// it only through a Kernel subscription.
type Manager struct {
	vehicles  map[string]*Vehicle
	profiles  map[string]*Profile
	activeVIN string
	mu        sync.RWMutex
}

// NewManager creates a new vehicle manager instance
func NewManager() *Manager {
	return &Manager{
		vehicles: make(map[string]*Vehicle),
		profiles: make(map[string]*Profile),
	}
}

// RegisterVehicle adds a new vehicle to the manager
func (m *Manager) RegisterVehicle(vin, make, model string, year int) (*Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.vehicles[vin]; exists {
		return nil, fmt.Errorf("vehicle with VIN %s already registered", vin)
	}

	v := &Vehicle{
		VIN:   vin,
		Make:  make,
		Model: model,
		Year:  year,
		Capabilities: Capabilities{
			SupportedPIDs: make(map[string]bool),
		},
		LastUpdated: time.Now(),
	}

	m.vehicles[vin] = v
	return v, nil
}

// GetVehicle retrieves a vehicle by VIN
func (m *Manager) GetVehicle(vin string) (*Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, exists := m.vehicles[vin]
	if !exists {
		return nil, fmt.Errorf("vehicle with VIN %s not found", vin)
	}
	return v, nil
}

// ListVehicles returns every registered vehicle.
func (m *Manager) ListVehicles() []*Vehicle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Vehicle, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		out = append(out, v)
	}
	return out
}

// UpdateVehicleState replaces the vehicle's state wholesale.
func (m *Manager) UpdateVehicleState(vin string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, exists := m.vehicles[vin]
	if !exists {
		return fmt.Errorf("vehicle with VIN %s not found", vin)
	}

	v.State = state
	v.LastUpdated = time.Now()
	return nil
}

// RegisterProfile adds or updates a vehicle profile
func (m *Manager) RegisterProfile(make, model string, profile Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%s-%s", make, model)
	m.profiles[key] = &profile
}

// GetProfile retrieves a vehicle profile by make and model
func (m *Manager) GetProfile(make, model string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := fmt.Sprintf("%s-%s", make, model)
	profile, exists := m.profiles[key]
	if !exists {
		return nil, fmt.Errorf("profile for %s %s not found", make, model)
	}
	return profile, nil
}

// Subscribe wires the manager to a connected Kernel's value-changed
// stream so vin's live State stays current (§4.8). DTCs arrive
// separately via RecordDTCs, since DTC enumeration is a polled Kernel
// operation rather than a continuous event (§4.7).
func (m *Manager) Subscribe(k *kernel.Kernel, vin string) {
	m.mu.Lock()
	m.activeVIN = vin
	m.mu.Unlock()
	k.SubscribeValue(m.handleValue)
}

func (m *Manager) handleValue(pid string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, exists := m.vehicles[m.activeVIN]
	if !exists {
		return
	}
	setValueForPID(&v.State, pid, value)
	now := time.Now()
	v.State.LastUpdated = now
	v.LastUpdated = now
}

// RecordDTCs updates the active vehicle's DTC set.
func (m *Manager) RecordDTCs(codes []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, exists := m.vehicles[m.activeVIN]
	if !exists {
		return
	}
	v.State.DTCs = codes
}

// setValueForPID writes a decoded sensor value into the matching
// State field by canonical PID (§4.3).
func setValueForPID(state *State, pid string, value float64) {
	switch pid {
	case "0105":
		state.CoolantTemp = value
	case "010A":
		state.FuelPressure = value
	case "010C":
		state.RPM = value
	case "010D":
		state.Speed = value
	case "0110":
		state.MAF = value
	case "0111":
		state.ThrottlePos = value
	case "011F":
		state.RunTime = value
	case "012C":
		state.CommandedEGR = value
	case "012F":
		state.FuelLevel = value
	case "0114":
		state.O2Voltage = value
	}
}

// getValueForPID is the read-side counterpart used by custom
// threshold evaluation.
func getValueForPID(state State, pid string) (float64, bool) {
	switch pid {
	case "0105":
		return state.CoolantTemp, true
	case "010A":
		return state.FuelPressure, true
	case "010C":
		return state.RPM, true
	case "010D":
		return state.Speed, true
	case "0110":
		return state.MAF, true
	case "0111":
		return state.ThrottlePos, true
	case "011F":
		return state.RunTime, true
	case "012C":
		return state.CommandedEGR, true
	case "012F":
		return state.FuelLevel, true
	case "0114":
		return state.O2Voltage, true
	default:
		return 0, false
	}
}

const defaultCoolantTempMax = 105 // degrees Celsius

// DetectAnomalies checks vehicle state against its profile and
// returns Alerts. A pure read-and-compare operation over cached
// values: it never touches the Transport (§4.8).
func (m *Manager) DetectAnomalies(vin string) ([]Alert, error) {
	v, err := m.GetVehicle(vin)
	if err != nil {
		return nil, err
	}

	profile, err := m.GetProfile(v.Make, v.Model)
	if err != nil {
		return nil, err
	}

	var alerts []Alert
	now := time.Now()

	if v.State.RPM > profile.RedlineRPM {
		alerts = append(alerts, Alert{
			Type:      "RPM",
			Severity:  "critical",
			Message:   fmt.Sprintf("Engine RPM exceeds redline (%.0f > %.0f)", v.State.RPM, profile.RedlineRPM),
			Timestamp: now,
			Value:     v.State.RPM,
			Threshold: profile.RedlineRPM,
			PIDs:      []string{"010C"},
		})
	}

	coolantMax := profile.CoolantTempMax
	if coolantMax == 0 {
		coolantMax = defaultCoolantTempMax
	}
	if v.State.CoolantTemp > coolantMax {
		alerts = append(alerts, Alert{
			Type:      "Temperature",
			Severity:  "warning",
			Message:   fmt.Sprintf("Engine temperature too high: %.1f°C", v.State.CoolantTemp),
			Timestamp: now,
			Value:     v.State.CoolantTemp,
			Threshold: coolantMax,
			PIDs:      []string{"0105"},
		})
	}

	for pid, threshold := range profile.CustomThresholds {
		if value, ok := getValueForPID(v.State, pid); ok {
			if value > threshold {
				alerts = append(alerts, Alert{
					Type:      "Custom",
					Severity:  "warning",
					Message:   fmt.Sprintf("Custom threshold exceeded for %s: %.1f > %.1f", pid, value, threshold),
					Timestamp: now,
					Value:     value,
					Threshold: threshold,
					PIDs:      []string{pid},
				})
			}
		}
	}

	return alerts, nil
}

// AnalyzePerformance turns a completed TripAnalyzer pass into a
// vehicle PerformanceReport (§4.9).
func (m *Manager) AnalyzePerformance(analyzer *analysis.Analyzer) (*PerformanceReport, error) {
	results, err := analyzer.Analyze()
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	report := &PerformanceReport{
		Timestamp: time.Now(),
		Duration:  results.SessionInfo.Duration,
		Stats: PerformanceStats{
			AverageSpeed:    results.Performance.Speed.Mean,
			MaxSpeed:        results.Performance.Speed.Max,
			AverageRPM:      results.Performance.RPM.Mean,
			MaxRPM:          results.Performance.RPM.Max,
			IdleTimePercent: results.DrivingBehavior.IdleTime,
			RapidAccels:     results.DrivingBehavior.RapidAccel,
			RapidDecels:     results.DrivingBehavior.RapidDecel,
		},
		Alerts: make([]Alert, 0),
	}

	if results.Performance.Speed.Mean > 0 {
		report.Stats.EfficiencyScore = calculateEfficiencyScore(results)
	}

	return report, nil
}

// calculateEfficiencyScore generates a 0-100 score based on various metrics
func calculateEfficiencyScore(results *analysis.Analysis) float64 {
	score := 100.0

	if results.DrivingBehavior.IdleTime > 20 {
		score -= (results.DrivingBehavior.IdleTime - 20) * 0.5
	}

	score -= float64(results.DrivingBehavior.RapidAccel) * 2
	score -= float64(results.DrivingBehavior.RapidDecel) * 2

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return score
}
