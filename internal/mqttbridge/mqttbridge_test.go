package mqttbridge

import "testing"

func TestTopicNames(t *testing.T) {
	vin := "1HGCM82633A004352"

	if got, want := sensorTopic(vin, "010C"), "automon/1HGCM82633A004352/sensor/010C"; got != want {
		t.Errorf("sensorTopic: got %q, want %q", got, want)
	}
	if got, want := ruleTopic(vin, "high_rpm"), "automon/1HGCM82633A004352/rule/high_rpm"; got != want {
		t.Errorf("ruleTopic: got %q, want %q", got, want)
	}
	if got, want := dtcTopic(vin), "automon/1HGCM82633A004352/dtc"; got != want {
		t.Errorf("dtcTopic: got %q, want %q", got, want)
	}
}
