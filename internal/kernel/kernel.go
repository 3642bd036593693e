// Package kernel implements the top-level facade of §4.7: it owns the
// Transport, AdapterSession, Sensor registry, DTCService and active
// Rules, and enforces that only one of {introspection, DTC operations,
// polling} uses the Transport at any moment.
package kernel

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"automon/internal/dtc"
	"automon/internal/poller"
	"automon/internal/rule"
	"automon/internal/sensor"
	"automon/internal/session"
	"automon/internal/transport"
)

// Errors raised by Kernel operations (§7 KernelError kinds).
var (
	ErrNotConnected  = errors.New("kernel: not connected")
	ErrBusy          = errors.New("kernel: transport busy")
	ErrUnsupported   = errors.New("kernel: sensor not supported by this ECU")
	ErrUnknownPID    = errors.New("kernel: unknown PID")
	ErrRuleNotActive = errors.New("kernel: rule not active")
	ErrAlreadyExists = errors.New("kernel: rule name already exists")
)

const introspectionTimeout = 5 * time.Second

// ValueHandler, RuleHandler and ErrorHandler are the three event kinds
// external subscribers may wire up (§4.7 subscribe_*).
type ValueHandler func(pid string, value float64)
type RuleHandler func(ruleName string)
type ErrorHandler func(err error)

// Kernel is the single point of entry into the protocol/dispatch core.
// Its mutex enforces the single-tenant Transport invariant: connect,
// introspection, DTC operations, and start/stop-polling all take it for
// the duration of the Transport call they make, so two operations can
// never race for the link.
type Kernel struct {
	mu sync.Mutex

	dict dtc.Dictionary

	sess    *session.Session
	catalog map[string]*sensor.Sensor
	dtcSvc  *dtc.Service
	pollr   *poller.Poller
	rules   map[string]*rule.Rule

	valueHandlers []ValueHandler
	ruleHandlers  []RuleHandler
	errorHandlers []ErrorHandler

	polling bool
}

// New constructs an unconnected Kernel with the canonical sensor
// catalog and an empty rule set. dict is the DTC dictionary (may be nil).
func New(dict dtc.Dictionary) *Kernel {
	catalog := map[string]*sensor.Sensor{}
	for _, s := range sensor.NewCatalog() {
		catalog[s.PID] = s
	}
	k := &Kernel{
		dict:    dict,
		catalog: catalog,
		rules:   map[string]*rule.Rule{},
	}
	// Each Sensor's dispatch handler is wired exactly once, here, rather
	// than in Activate: Sensor has no unsubscribe, so an Activate that
	// ran on every (re)activation would append a duplicate handler on
	// each activate/deactivate/activate cycle and double-fire every
	// subsequent decode. The handler only ever runs when the Poller
	// actually services the sensor, which Activate/Deactivate already
	// gate via pollr.Add/Remove, so wiring it once up front is equivalent
	// and leak-free.
	for _, s := range catalog {
		s.OnValueChanged(func(pid string, value float64) {
			k.dispatchValue(pid, value)
			k.updateRules(pid, value)
		})
	}
	return k
}

// Connect opens the Transport per cfg, negotiates the AdapterSession,
// queries PID support, and wires the Poller. On any failure the Kernel
// remains disconnected.
func (k *Kernel) Connect(cfg transport.Config) error {
	tr, err := transport.New(cfg)
	if err != nil {
		return fmt.Errorf("kernel: connect: %w", err)
	}
	return k.connectTransport(tr)
}

// connectTransport runs the AdapterSession negotiation and capability
// query over an already-open Transport. Split out from Connect so test
// harnesses can wire a fake Link without going through transport.Open's
// real serial/tcp dispatch.
func (k *Kernel) connectTransport(tr *transport.Transport) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.sess != nil {
		return fmt.Errorf("kernel: already connected")
	}

	sess, err := session.New(tr)
	if err != nil {
		_ = tr.Close()
		return fmt.Errorf("kernel: connect: %w", err)
	}

	all := make([]*sensor.Sensor, 0, len(k.catalog))
	for _, s := range k.catalog {
		all = append(all, s)
	}
	if err := sensor.Query(sess, introspectionTimeout, all); err != nil {
		_ = sess.Close()
		return fmt.Errorf("kernel: connect: capability query: %w", err)
	}

	k.sess = sess
	k.dtcSvc = dtc.New(sess, k.dict)
	k.pollr = poller.New(sess, k.dispatchErrorPID)
	return nil
}

// Disconnect stops polling if active, drops the Transport, and returns
// the Kernel to a disconnected state. Safe to call from any state.
func (k *Kernel) Disconnect() error {
	k.mu.Lock()
	pollr := k.pollr
	sess := k.sess
	polling := k.polling
	k.mu.Unlock()

	if polling && pollr != nil {
		pollr.Stop()
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.polling = false
	k.sess = nil
	k.dtcSvc = nil
	k.pollr = nil
	for _, r := range k.rules {
		r.Deactivate()
	}
	if sess != nil {
		return sess.Close()
	}
	return nil
}

// requireConnected must be called with k.mu held.
func (k *Kernel) requireConnected() error {
	if k.sess == nil {
		return ErrNotConnected
	}
	return nil
}

// Sensors returns the full catalog, supported or not.
func (k *Kernel) Sensors() []*sensor.Sensor {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]*sensor.Sensor, 0, len(k.catalog))
	for _, s := range k.catalog {
		out = append(out, s)
	}
	return out
}

// Sensor looks up a single PID.
func (k *Kernel) Sensor(pid string) (*sensor.Sensor, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s, ok := k.catalog[pid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPID, pid)
	}
	return s, nil
}

// SetFrequency sets a sensor's polling divider (§3: positive integer k).
func (k *Kernel) SetFrequency(pid string, divider int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	s, ok := k.catalog[pid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPID, pid)
	}
	if divider < 1 {
		return fmt.Errorf("kernel: frequency divider must be >= 1")
	}
	s.FrequencyDivider = divider
	return nil
}

// Activate adds pid to the active sensor set. Unsupported PIDs are
// rejected (§4.7, §8 invariant 6).
func (k *Kernel) Activate(pid string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.requireConnected(); err != nil {
		return err
	}
	s, ok := k.catalog[pid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPID, pid)
	}
	if !s.Supported() {
		return fmt.Errorf("%w: %s", ErrUnsupported, pid)
	}
	return k.pollr.Add(s)
}

// Deactivate removes pid from the active set and auto-deactivates any
// rule that referenced it, per §7's "fatal to the rule" policy.
func (k *Kernel) Deactivate(pid string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.requireConnected(); err != nil {
		return err
	}
	k.pollr.Remove(pid)
	for _, r := range k.rules {
		for _, p := range r.SensorPIDs() {
			if p == pid && r.Active() {
				r.Deactivate()
			}
		}
	}
	return nil
}

// StartPolling transitions the session to Polling and launches the
// Poller's worker goroutine. Returns ErrBusy if another operation
// currently holds the Transport (i.e. the session isn't Ready).
func (k *Kernel) StartPolling() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.requireConnected(); err != nil {
		return err
	}
	if err := k.sess.StartPolling(); err != nil {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	k.polling = true
	go func() {
		if err := k.pollr.Run(); err != nil {
			k.dispatchError(err)
		}
	}()
	return nil
}

// StopPolling stops the Poller and returns the Transport to Ready.
func (k *Kernel) StopPolling() error {
	k.mu.Lock()
	if err := k.requireConnected(); err != nil {
		k.mu.Unlock()
		return err
	}
	pollr := k.pollr
	k.mu.Unlock()

	pollr.Stop()

	k.mu.Lock()
	defer k.mu.Unlock()
	k.polling = false
	return k.sess.StopPolling()
}

// introspect runs fn while holding the Kernel lock, requiring the
// session be connected and not currently polling.
func (k *Kernel) introspect(fn func() (string, error)) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.requireConnected(); err != nil {
		return "", err
	}
	if k.polling {
		return "", fmt.Errorf("%w: introspection requires polling to be stopped", ErrBusy)
	}
	return fn()
}

func (k *Kernel) VIN() (string, error)             { return k.introspect(k.sess.VIN) }
func (k *Kernel) Protocol() (string, error)        { return k.introspect(k.sess.Protocol) }
func (k *Kernel) Standard() (string, error)        { return k.introspect(k.sess.Standard) }
func (k *Kernel) AdapterVersion() (string, error)  { return k.introspect(k.sess.AdapterVersion) }
func (k *Kernel) Voltage() (string, error)         { return k.introspect(k.sess.Voltage) }

// DTCs enumerates stored diagnostic trouble codes.
func (k *Kernel) DTCs() ([]dtc.DTC, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.requireConnected(); err != nil {
		return nil, err
	}
	if k.polling {
		return nil, fmt.Errorf("%w: DTC operations require polling to be stopped", ErrBusy)
	}
	return k.dtcSvc.Codes()
}

// MILOn and DTCCount report the mode 01 PID 01 status.
func (k *Kernel) MILOn() (bool, error) {
	st, err := k.dtcStatus()
	return st.MILOn, err
}

func (k *Kernel) DTCCount() (int, error) {
	st, err := k.dtcStatus()
	return st.Count, err
}

func (k *Kernel) dtcStatus() (dtc.Status, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.requireConnected(); err != nil {
		return dtc.Status{}, err
	}
	if k.polling {
		return dtc.Status{}, fmt.Errorf("%w: DTC operations require polling to be stopped", ErrBusy)
	}
	return k.dtcSvc.Status()
}

// ResetCodes clears stored DTCs and the MIL.
func (k *Kernel) ResetCodes() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.requireConnected(); err != nil {
		return err
	}
	if k.polling {
		return fmt.Errorf("%w: DTC operations require polling to be stopped", ErrBusy)
	}
	return k.dtcSvc.Reset()
}

// AddRule parses, validates, and activates a new rule. While connected
// it must reference only PIDs currently in the active sensor set; while
// disconnected the rule is stored inactive without that check.
func (k *Kernel) AddRule(name, text string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, exists := k.rules[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}
	r, err := rule.Parse(name, text)
	if err != nil {
		return err
	}
	if k.pollr != nil {
		if err := r.Activate(k.pollr.ActivePIDs()); err != nil {
			return err
		}
	}
	k.rules[name] = r
	return nil
}

// RemoveRule deactivates and drops a rule.
func (k *Kernel) RemoveRule(name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	r, ok := k.rules[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotActive, name)
	}
	r.Deactivate()
	delete(k.rules, name)
	return nil
}

// Rules returns the current rule set.
func (k *Kernel) Rules() []*rule.Rule {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]*rule.Rule, 0, len(k.rules))
	for _, r := range k.rules {
		out = append(out, r)
	}
	return out
}

// updateRules feeds a sensor update to every active rule referencing it
// and dispatches rule-satisfied on the rising edge.
func (k *Kernel) updateRules(pid string, value float64) {
	k.mu.Lock()
	rules := make([]*rule.Rule, 0, len(k.rules))
	for _, r := range k.rules {
		rules = append(rules, r)
	}
	k.mu.Unlock()

	for _, r := range rules {
		if r.Update(pid, value) {
			k.dispatchRule(r.Name)
		}
	}
}

// SubscribeValue, SubscribeRule and SubscribeError wire up the three
// event kinds of §4.7. Handlers are invoked synchronously from whichever
// goroutine produced the event (the Poller, for value/rule events).
func (k *Kernel) SubscribeValue(h ValueHandler) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.valueHandlers = append(k.valueHandlers, h)
}

func (k *Kernel) SubscribeRule(h RuleHandler) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.ruleHandlers = append(k.ruleHandlers, h)
}

func (k *Kernel) SubscribeError(h ErrorHandler) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.errorHandlers = append(k.errorHandlers, h)
}

func (k *Kernel) dispatchValue(pid string, value float64) {
	k.mu.Lock()
	handlers := append([]ValueHandler(nil), k.valueHandlers...)
	k.mu.Unlock()
	for _, h := range handlers {
		h(pid, value)
	}
}

func (k *Kernel) dispatchRule(name string) {
	k.mu.Lock()
	handlers := append([]RuleHandler(nil), k.ruleHandlers...)
	k.mu.Unlock()
	for _, h := range handlers {
		h(name)
	}
}

func (k *Kernel) dispatchError(err error) {
	k.mu.Lock()
	handlers := append([]ErrorHandler(nil), k.errorHandlers...)
	k.mu.Unlock()
	for _, h := range handlers {
		h(err)
	}
}

// dispatchErrorPID adapts the Poller's per-PID error callback to the
// Kernel's plain ErrorHandler, matching §7's "logged as telemetry"
// treatment for per-iteration Poller failures.
func (k *Kernel) dispatchErrorPID(pid string, err error) {
	k.dispatchError(fmt.Errorf("%s: %w", pid, err))
}
