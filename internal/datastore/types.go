package datastore

import (
	"time"

	"automon/internal/vehicle"
)

// Store is the persistence interface the Kernel's event consumers write
// through: Vehicles/Profiles/PerformanceReports/ServiceRecords/Alerts in
// a relational backend, raw telemetry in a time-series backend (§4.10).
type Store interface {
	// Vehicle management
	SaveVehicle(v *vehicle.Vehicle) error
	GetVehicle(vin string) (*vehicle.Vehicle, error)
	ListVehicles() ([]*vehicle.Vehicle, error)
	DeleteVehicle(vin string) error

	// Profile management
	SaveProfile(make, model string, profile *vehicle.Profile) error
	GetProfile(make, model string) (*vehicle.Profile, error)
	ListProfiles() (map[string]*vehicle.Profile, error)

	// Telemetry storage
	SaveTelemetry(vin string, data *TelemetryData) error
	GetTelemetry(vin string, start, end time.Time) ([]*TelemetryData, error)
	GetLatestTelemetry(vin string) (*TelemetryData, error)

	// Performance metrics
	SavePerformanceReport(vin string, report *vehicle.PerformanceReport) error
	GetPerformanceReports(vin string, start, end time.Time) ([]*vehicle.PerformanceReport, error)

	// Maintenance records
	SaveServiceRecord(vin string, record *vehicle.ServiceRecord) error
	GetServiceHistory(vin string) ([]*vehicle.ServiceRecord, error)

	// Alert history
	SaveAlert(vin string, alert *vehicle.Alert) error
	GetAlerts(vin string, start, end time.Time) ([]*vehicle.Alert, error)

	// Database management
	Close() error
}

// TelemetryData is a point-in-time snapshot of the ten canonical PIDs
// (§4.3) for the given VIN; `automon serve` writes one to the
// time-series backend on every Kernel value-changed event.
type TelemetryData struct {
	Timestamp    time.Time `json:"timestamp"`
	VIN          string    `json:"vin"`
	CoolantTemp  float64   `json:"coolant_temp"`
	FuelPressure float64   `json:"fuel_pressure"`
	RPM          float64   `json:"rpm"`
	Speed        float64   `json:"speed"`
	MAF          float64   `json:"maf"`
	ThrottlePos  float64   `json:"throttle_position"`
	RunTime      float64   `json:"run_time"`
	CommandedEGR float64   `json:"commanded_egr"`
	FuelLevel    float64   `json:"fuel_level"`
	O2Voltage    float64   `json:"o2_voltage"`
	DTCs         []string  `json:"dtcs"`
}
