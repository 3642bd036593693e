// Package mqttbridge publishes Kernel events to an MQTT broker (§4.11):
// sensor value-changed under automon/<vin>/sensor/<pid>, rule-satisfied
// under automon/<vin>/rule/<name>, and the current DTC set under
// automon/<vin>/dtc. Publishing is QoS 0 fire-and-forget so a slow or
// disconnected broker never blocks the Poller that produced the event.
package mqttbridge

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"automon/internal/kernel"
)

// Config parameterises the broker connection.
type Config struct {
	Broker   string
	ClientID string
}

// Bridge holds a connected paho client and the VIN namespace its topics
// publish under.
type Bridge struct {
	client mqtt.Client
	vin    string
}

// Connect dials cfg.Broker and returns a Bridge ready to Subscribe to a
// Kernel's events.
func Connect(cfg Config, vin string) (*Bridge, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("mqttbridge: connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqttbridge: connect: %w", token.Error())
	}
	return &Bridge{client: client, vin: vin}, nil
}

// Disconnect closes the broker connection.
func (b *Bridge) Disconnect() {
	b.client.Disconnect(250)
}

// Subscribe wires the Bridge to k's value-changed and rule-satisfied
// event streams. Each handler runs on the Poller's goroutine but only
// hands the publish off to paho's own internal write queue, so it never
// blocks dispatch (§5).
func (b *Bridge) Subscribe(k *kernel.Kernel) {
	k.SubscribeValue(b.publishValue)
	k.SubscribeRule(b.publishRule)
}

func (b *Bridge) publishValue(pid string, value float64) {
	b.client.Publish(sensorTopic(b.vin, pid), 0, true, fmt.Sprintf("%v", value))
}

func (b *Bridge) publishRule(name string) {
	b.client.Publish(ruleTopic(b.vin, name), 0, false, "satisfied")
}

func sensorTopic(vin, pid string) string { return fmt.Sprintf("automon/%s/sensor/%s", vin, pid) }
func ruleTopic(vin, name string) string  { return fmt.Sprintf("automon/%s/rule/%s", vin, name) }
func dtcTopic(vin string) string         { return fmt.Sprintf("automon/%s/dtc", vin) }

// PublishDTCs publishes the current DTC set. DTC enumeration is a
// polled Kernel operation (Kernel.DTCs), not a continuous event stream,
// so callers push a refresh explicitly rather than the Bridge
// subscribing to one.
func (b *Bridge) PublishDTCs(codes []string) error {
	payload, err := json.Marshal(codes)
	if err != nil {
		return fmt.Errorf("mqttbridge: marshal dtcs: %w", err)
	}
	token := b.client.Publish(dtcTopic(b.vin), 0, true, payload)
	token.Wait()
	return token.Error()
}
