package rule

import "testing"

func TestParseRejectsParentheses(t *testing.T) {
	if _, err := Parse("r", "(s010C > 3000)"); err == nil {
		t.Fatalf("expected parse error for parentheses")
	}
}

func TestParseExtractsSensorRefs(t *testing.T) {
	r, err := Parse("high-rpm", "s010C > 3000 && s010D > 130")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pids := map[string]bool{}
	for _, p := range r.SensorPIDs() {
		pids[p] = true
	}
	if !pids["010C"] || !pids["010D"] {
		t.Fatalf("expected both PIDs referenced, got %v", pids)
	}
}

func TestActivateRequiresAllSensorsActive(t *testing.T) {
	r, err := Parse("r", "s010C > 3000 && s010D > 130")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Activate(map[string]bool{"010C": true}); err == nil {
		t.Fatalf("expected ErrMissingSensor")
	}
	if err := r.Activate(map[string]bool{"010C": true, "010D": true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRisingEdgeOnlyAfterAllSensorsUpdated(t *testing.T) {
	r, err := Parse("high-rpm", "s010C > 3000 && s010D > 130")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Activate(map[string]bool{"010C": true, "010D": true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rising := r.Update("010C", 3200); rising {
		t.Fatalf("should not fire before all sensors have updated")
	}
	if rising := r.Update("010D", 140); !rising {
		t.Fatalf("expected rising edge once both sensors satisfy the expression")
	}
	if rising := r.Update("010D", 141); rising {
		t.Fatalf("expected no further event on identical satisfaction")
	}
	if rising := r.Update("010D", 120); rising {
		t.Fatalf("falling edge must not fire rule-satisfied")
	}
	if r.Satisfied() {
		t.Fatalf("expected satisfied to clear on falling edge")
	}
	if rising := r.Update("010D", 140); !rising {
		t.Fatalf("expected a second rising edge after falling back in range")
	}
}

func TestLeftToRightEvaluationNoPrecedence(t *testing.T) {
	// false && true || true evaluated strictly left-to-right:
	// (false && true) = false; false || true = true.
	r, err := Parse("r", "s010C > 9000 && s010D > 0 || s010D > 0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Activate(map[string]bool{"010C": true, "010D": true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Update("010C", 100)
	rising := r.Update("010D", 50)
	if !rising {
		t.Fatalf("expected rule to evaluate true via left-to-right short circuit")
	}
}

func TestDeactivateClearsUpdateTracking(t *testing.T) {
	r, err := Parse("r", "s010C > 3000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Activate(map[string]bool{"010C": true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Update("010C", 5000)
	r.Deactivate()
	if r.Active() {
		t.Fatalf("expected inactive after Deactivate")
	}
	if rising := r.Update("010C", 6000); rising {
		t.Fatalf("inactive rule must not fire")
	}
}

func TestRenderReplacesSensorRefsAndConjunctions(t *testing.T) {
	r, err := Parse("r", "s010C > 3000 && s010D > 130")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := r.Render(map[string]string{"010C": "Engine RPM", "010D": "Vehicle speed"})
	want := "Engine RPM > 3000 AND Vehicle speed > 130"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
