package events

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/estpark/parking-lot/internal/models"
)

// Publisher broadcasts spot state changes so lot displays and other clients
// can re-render without polling. Publishing is best-effort: a failed publish
// is logged and never blocks or rolls back the state change.
type Publisher interface {
	SpotChanged(spotID string, record *models.OccupancyRecord)
	Close()
}

// SpotEvent is the wire payload published on spot state changes. A nil record
// means the spot became free.
type SpotEvent struct {
	SpotID    string                  `json:"spot_id"`
	Record    *models.OccupancyRecord `json:"record,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

// NoopPublisher discards all events. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) SpotChanged(string, *models.OccupancyRecord) {}
func (NoopPublisher) Close()                                      {}

// MQTTPublisher publishes spot events to an MQTT broker, one topic per spot.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
}

// NewMQTTPublisher connects to the broker and returns a publisher. Topic
// prefix defaults to "parking/spots".
func NewMQTTPublisher(brokerURL, clientID, prefix string) (*MQTTPublisher, error) {
	if prefix == "" {
		prefix = "parking/spots"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout for %s", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}
	return &MQTTPublisher{client: client, prefix: prefix}, nil
}

// SpotChanged publishes the new state of a spot as a retained message so late
// subscribers see the current lot state immediately.
func (p *MQTTPublisher) SpotChanged(spotID string, record *models.OccupancyRecord) {
	event := SpotEvent{SpotID: spotID, Record: record, Timestamp: time.Now()}
	payload, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).WithField("spot_id", spotID).Error("Failed to marshal spot event")
		return
	}

	topic := p.prefix + "/" + spotID
	token := p.client.Publish(topic, 1, true, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.WithError(err).WithField("topic", topic).Error("Failed to publish spot event")
		}
	}()
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
