package vehicle

import "time"

// Vehicle represents a connected vehicle with its capabilities and state
type Vehicle struct {
	VIN          string
	Make         string
	Model        string
	Year         int
	Capabilities Capabilities
	State        State
	LastUpdated  time.Time
}

// Capabilities represents what the vehicle can report, keyed by the
// canonical 4-hex-character PID (§4.3).
type Capabilities struct {
	SupportedPIDs   map[string]bool
	ProtocolVersion string
	RealTimePIDs    []string
}

// State is the latest known value of each canonical sensor (§4.3),
// kept current by VehicleManager's subscription to the Kernel's
// value-changed events (§4.8).
type State struct {
	CoolantTemp  float64
	FuelPressure float64
	RPM          float64
	Speed        float64
	MAF          float64
	ThrottlePos  float64
	RunTime      float64
	CommandedEGR float64
	FuelLevel    float64
	O2Voltage    float64
	DTCs         []string
	LastUpdated  time.Time
}

// Profile represents vehicle-specific configurations and thresholds
type Profile struct {
	MaxRPM           float64
	RedlineRPM       float64
	IdleRPM          float64
	OptimalShiftRPM  float64
	FuelType         string
	TransmissionType string
	GearRatios       []float64
	WeightKg         float64
	EngineSize       float64 // in liters
	CoolantTempMax   float64
	// CustomThresholds maps a canonical PID (e.g. "010C") to the value
	// above which DetectAnomalies raises an Alert.
	CustomThresholds map[string]float64
}

// Alert represents a vehicle alert condition
type Alert struct {
	Type      string
	Severity  string // "info", "warning", "critical"
	Message   string
	Timestamp time.Time
	Value     float64
	Threshold float64
	PIDs      []string // canonical PIDs that triggered the alert
}
