package viewer

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/imu_visualiser/internal/orientation"
)

// MQTTPublisher republishes rendered orientations to an MQTT broker, one
// retained topic per IMU, so dashboards and other subscribers always see
// the current state on connect.
type MQTTPublisher struct {
	client      mqtt.Client
	topicPrefix string
}

// NewMQTTPublisher connects to the broker. The topic for IMU n is
// "<prefix>/<n>/orientation".
func NewMQTTPublisher(broker, clientID, topicPrefix string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	log.Printf("connected to MQTT broker at %s", broker)

	return &MQTTPublisher{client: client, topicPrefix: topicPrefix}, nil
}

func (p *MQTTPublisher) Disconnect() {
	p.client.Disconnect(250)
}

// Viewer returns the consumer for one source id backed by this publisher.
func (p *MQTTPublisher) Viewer(id uint8) Viewer {
	return &mqttViewer{
		pub:   p,
		id:    id,
		topic: fmt.Sprintf("%s/%d/orientation", p.topicPrefix, id),
	}
}

type mqttViewer struct {
	pub   *MQTTPublisher
	id    uint8
	topic string

	mu   sync.Mutex
	quat mgl64.Quat
	have bool
}

func (v *mqttViewer) SetOrientation(q mgl64.Quat) {
	v.mu.Lock()
	v.quat = q
	v.have = true
	v.mu.Unlock()
}

func (v *mqttViewer) Render() error {
	v.mu.Lock()
	q, have := v.quat, v.have
	v.mu.Unlock()
	if !have {
		return nil
	}

	p := orientation.PoseFromQuat(q)
	payload, err := json.Marshal(Update{
		ID: v.id, W: q.W, X: q.X(), Y: q.Y(), Z: q.Z(),
		Roll: p.Roll, Pitch: p.Pitch, Yaw: p.Yaw,
	})
	if err != nil {
		return err
	}

	if token := v.pub.client.Publish(v.topic, 0, true, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT publish error (%s): %w", v.topic, token.Error())
	}
	return nil
}
