package downlink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"orbitcam/internal/models"
)

type mqttClient interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes observations under <topic>/<outcome>.
type MQTTPublisher struct {
	client  mqttClient
	topic   string
	qos     byte
	timeout time.Duration

	mu        sync.Mutex
	published uint64
	errors    uint64
}

// ConnectMQTT dials broker (host:port or a full URL) and waits for the
// first connection.
func ConnectMQTT(broker, clientID, topic string) (*MQTTPublisher, error) {
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	return newMQTTPublisher(client, topic), nil
}

func newMQTTPublisher(client mqttClient, topic string) *MQTTPublisher {
	return &MQTTPublisher{
		client:  client,
		topic:   strings.TrimSuffix(topic, "/"),
		qos:     1,
		timeout: 2 * time.Second,
	}
}

func (p *MQTTPublisher) Publish(ctx context.Context, obs models.Observation) error {
	if !p.client.IsConnected() {
		p.failed()
		return errors.New("mqtt not connected")
	}

	payload, err := encode(obs)
	if err != nil {
		p.failed()
		return err
	}

	token := p.client.Publish(p.topic+"/"+obs.Outcome, p.qos, false, payload)
	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		p.failed()
		return fmt.Errorf("mqtt publish timeout")
	}
	if err := token.Error(); err != nil {
		p.failed()
		return fmt.Errorf("mqtt publish failed: %w", err)
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()
	return nil
}

// Counts returns published and failed message counts.
func (p *MQTTPublisher) Counts() (published, failed uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.errors
}

func (p *MQTTPublisher) failed() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
