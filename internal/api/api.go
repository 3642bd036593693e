// Package api exposes the Kernel over HTTP and a websocket broadcast
// (§4.12): the direct descendant of the teacher's wsHandler /
// broadcastTelemetry, generalized from hard-coded RPM/Speed/Temp/DTC
// fields to whichever sensors are currently active.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"automon/internal/kernel"
	"automon/internal/vehicle"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// event is the JSON shape broadcast to every websocket client: Kind
// names which of PID/Value, Rule, or DTCs is populated, mirroring the
// three Kernel event kinds.
type event struct {
	Kind   string   `json:"kind"` // "sensor", "rule", or "dtc"
	PID    string   `json:"pid,omitempty"`
	Value  float64  `json:"value,omitempty"`
	Rule   string   `json:"rule,omitempty"`
	DTCs   []string `json:"dtcs,omitempty"`
}

// Server wires a Kernel and VehicleManager to an HTTP router and
// broadcasts their events to connected websocket clients.
type Server struct {
	k       *kernel.Kernel
	manager *vehicle.Manager

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewServer builds a Server and subscribes it to k's value and rule
// events. Call Router to obtain the mux.Router to serve.
func NewServer(k *kernel.Kernel, manager *vehicle.Manager) *Server {
	s := &Server{
		k:       k,
		manager: manager,
		clients: make(map[*websocket.Conn]bool),
	}
	k.SubscribeValue(func(pid string, value float64) {
		s.broadcast(event{Kind: "sensor", PID: pid, Value: value})
	})
	k.SubscribeRule(func(name string) {
		s.broadcast(event{Kind: "rule", Rule: name})
	})
	return s
}

// BroadcastDTCs pushes the current DTC set to every websocket client.
// DTC enumeration is a polled Kernel operation, not a subscribable
// event stream, so callers push a refresh explicitly after Kernel.DTCs.
func (s *Server) BroadcastDTCs(codes []string) {
	s.broadcast(event{Kind: "dtc", DTCs: codes})
}

func (s *Server) broadcast(e event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Printf("api: marshal event: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("api: websocket write: %v", err)
			c.Close()
			delete(s.clients, c)
		}
	}
}

// Router builds the mux.Router serving §4.12's endpoints.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWS)
	r.HandleFunc("/vehicles", s.handleVehicles).Methods(http.MethodGet)
	r.HandleFunc("/sensors", s.handleSensors).Methods(http.MethodGet)
	r.HandleFunc("/sensors/{pid}/activate", s.handleActivate).Methods(http.MethodPost)
	r.HandleFunc("/sensors/{pid}/deactivate", s.handleDeactivate).Methods(http.MethodPost)
	r.HandleFunc("/dtcs", s.handleDTCs).Methods(http.MethodGet)
	r.HandleFunc("/dtcs/reset", s.handleDTCReset).Methods(http.MethodPost)
	r.HandleFunc("/rules", s.handleRulesGet).Methods(http.MethodGet)
	r.HandleFunc("/rules", s.handleRulesPost).Methods(http.MethodPost)
	r.HandleFunc("/rules/{name}", s.handleRuleDelete).Methods(http.MethodDelete)
	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("api: websocket upgrade: %v", err)
		return
	}
	s.mu.Lock()
	s.clients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, ws)
		s.mu.Unlock()
		ws.Close()
	}()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.ListVehicles())
}

type sensorInfo struct {
	PID       string  `json:"pid"`
	Name      string  `json:"name"`
	Supported bool    `json:"supported"`
	Unit      string  `json:"unit"`
}

func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	sensors := s.k.Sensors()
	out := make([]sensorInfo, 0, len(sensors))
	for _, sn := range sensors {
		out = append(out, sensorInfo{PID: sn.PID, Name: sn.Name, Supported: sn.Supported(), Unit: string(sn.Unit)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	pid := mux.Vars(r)["pid"]
	if err := s.k.Activate(pid); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	pid := mux.Vars(r)["pid"]
	if err := s.k.Deactivate(pid); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDTCs(w http.ResponseWriter, r *http.Request) {
	codes, err := s.k.DTCs()
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, codes)
}

func (s *Server) handleDTCReset(w http.ResponseWriter, r *http.Request) {
	if err := s.k.ResetCodes(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRulesGet(w http.ResponseWriter, r *http.Request) {
	rules := s.k.Rules()
	type ruleInfo struct {
		Name      string `json:"name"`
		Source    string `json:"source"`
		Active    bool   `json:"active"`
		Satisfied bool   `json:"satisfied"`
	}
	out := make([]ruleInfo, 0, len(rules))
	for _, rl := range rules {
		out = append(out, ruleInfo{Name: rl.Name, Source: rl.Source, Active: rl.Active(), Satisfied: rl.Satisfied()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRulesPost(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
		Expr string `json:"expr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.k.AddRule(body.Name, body.Expr); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleRuleDelete(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.k.RemoveRule(name); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
