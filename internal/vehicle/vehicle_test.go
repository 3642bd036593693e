package vehicle

import (
	"testing"
)

func TestVehicleManager(t *testing.T) {
	manager := NewManager()

	vin := "1HGCM82633A123456"
	v, err := manager.RegisterVehicle(vin, "Honda", "Accord", 2023)
	if err != nil {
		t.Fatalf("Failed to register vehicle: %v", err)
	}
	if v.VIN != vin {
		t.Errorf("Expected VIN %s, got %s", vin, v.VIN)
	}

	_, err = manager.RegisterVehicle(vin, "Honda", "Accord", 2023)
	if err == nil {
		t.Error("Expected error on duplicate registration")
	}

	v2, err := manager.GetVehicle(vin)
	if err != nil {
		t.Fatalf("Failed to get vehicle: %v", err)
	}
	if v2.VIN != vin {
		t.Errorf("Expected VIN %s, got %s", vin, v2.VIN)
	}

	state := State{
		Speed:       60.0,
		RPM:         2500.0,
		ThrottlePos: 25.0,
		CoolantTemp: 85.0,
	}
	if err := manager.UpdateVehicleState(vin, state); err != nil {
		t.Fatalf("Failed to update state: %v", err)
	}

	v3, _ := manager.GetVehicle(vin)
	if v3.State.Speed != state.Speed {
		t.Errorf("Expected speed %.1f, got %.1f", state.Speed, v3.State.Speed)
	}

	profile := Profile{
		MaxRPM:           6500,
		RedlineRPM:       6000,
		IdleRPM:          800,
		OptimalShiftRPM:  2500,
		FuelType:         "gasoline",
		TransmissionType: "automatic",
		GearRatios:       []float64{2.995, 1.759, 1.171, 0.870, 0.707},
		WeightKg:         1500,
		EngineSize:       2.0,
		CustomThresholds: map[string]float64{
			"0105": 100.0, // coolant temp threshold
		},
	}
	manager.RegisterProfile("Honda", "Accord", profile)

	p, err := manager.GetProfile("Honda", "Accord")
	if err != nil {
		t.Fatalf("Failed to get profile: %v", err)
	}
	if p.MaxRPM != profile.MaxRPM {
		t.Errorf("Expected MaxRPM %.1f, got %.1f", profile.MaxRPM, p.MaxRPM)
	}

	state.RPM = 6200 // Above redline
	if err := manager.UpdateVehicleState(vin, state); err != nil {
		t.Fatalf("Failed to update state: %v", err)
	}

	alerts, err := manager.DetectAnomalies(vin)
	if err != nil {
		t.Fatalf("Failed to detect anomalies: %v", err)
	}
	if len(alerts) == 0 {
		t.Error("Expected at least one alert for high RPM")
	}

	found := false
	for _, alert := range alerts {
		if alert.Type == "RPM" && alert.Severity == "critical" {
			found = true
			break
		}
	}
	if !found {
		t.Error("Expected critical RPM alert")
	}
}

func TestSubscribeUpdatesActiveVehicleState(t *testing.T) {
	manager := NewManager()
	vin := "1HGCM82633A123456"
	if _, err := manager.RegisterVehicle(vin, "Honda", "Accord", 2023); err != nil {
		t.Fatalf("failed to register vehicle: %v", err)
	}

	manager.activeVIN = vin
	manager.handleValue("010C", 3200)
	manager.handleValue("010D", 55)

	v, err := manager.GetVehicle(vin)
	if err != nil {
		t.Fatalf("failed to get vehicle: %v", err)
	}
	if v.State.RPM != 3200 {
		t.Errorf("expected RPM 3200, got %f", v.State.RPM)
	}
	if v.State.Speed != 55 {
		t.Errorf("expected speed 55, got %f", v.State.Speed)
	}
}

func TestServiceSchedule(t *testing.T) {
	schedule := DefaultServiceSchedule()
	if len(schedule.Items) == 0 {
		t.Error("Expected default service schedule to have items")
	}

	var oilChange *ServiceItem
	for i := range schedule.Items {
		if schedule.Items[i].Name == "Oil Change" {
			oilChange = &schedule.Items[i]
			break
		}
	}

	if oilChange == nil {
		t.Fatal("Expected to find oil change service")
	}

	if oilChange.IntervalMiles != 5000 {
		t.Errorf("Expected oil change interval of 5000 miles, got %.1f", oilChange.IntervalMiles)
	}

	if oilChange.Priority != "required" {
		t.Errorf("Expected oil change priority 'required', got '%s'", oilChange.Priority)
	}
}
