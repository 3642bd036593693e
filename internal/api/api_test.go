package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"automon/internal/dtc"
	"automon/internal/kernel"
	"automon/internal/vehicle"
)

func newTestServer() *Server {
	k := kernel.New(dtc.Dictionary{})
	manager := vehicle.NewManager()
	return NewServer(k, manager)
}

func TestHandleSensorsListsCatalog(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/sensors", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var sensors []sensorInfo
	if err := json.NewDecoder(rec.Body).Decode(&sensors); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sensors) == 0 {
		t.Error("expected a non-empty sensor catalog")
	}
}

func TestHandleVehiclesEmptyByDefault(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/vehicles", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var vehicles []*vehicle.Vehicle
	if err := json.NewDecoder(rec.Body).Decode(&vehicles); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(vehicles) != 0 {
		t.Errorf("expected no registered vehicles, got %d", len(vehicles))
	}
}

func TestHandleRulesAddListDelete(t *testing.T) {
	s := newTestServer()
	router := s.Router()

	addBody := strings.NewReader(`{"name":"high_rpm","expr":"s010C > 4000"}`)
	req := httptest.NewRequest(http.MethodPost, "/rules", addBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating rule, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/rules", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing rules, got %d", rec.Code)
	}
	var rules []map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&rules); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rules) != 1 || rules[0]["name"] != "high_rpm" {
		t.Fatalf("expected one rule named high_rpm, got %v", rules)
	}

	req = httptest.NewRequest(http.MethodDelete, "/rules/high_rpm", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 deleting rule, got %d", rec.Code)
	}
}

func TestHandleDTCsWithoutConnectionFails(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/dtcs", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 when not connected, got %d", rec.Code)
	}
}
