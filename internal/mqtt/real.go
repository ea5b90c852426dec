package mqtt

import (
	"time"

	"codeberg.org/mutker/drowsyctl/internal/capture"
	"codeberg.org/mutker/drowsyctl/internal/errors"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second

	statusOnline  = "online"
	statusOffline = "offline"
)

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
	topics Topics
}

// NewRealPublisher creates a publisher connected to broker. The status topic
// carries a retained online marker and an offline last will.
func NewRealPublisher(broker, clientID, prefix string) (*RealPublisher, error) {
	errFactory := errors.New()
	topics := TopicsFor(prefix)

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(topics.Status, statusOffline, 1, true)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errFactory.WithData(errors.ErrUnavailable, struct {
			Phase  string
			Broker string
		}{"connect_timeout", broker})
	}
	if err := token.Error(); err != nil {
		return nil, errFactory.Wrap(errors.ErrUnavailable, err)
	}

	p := &RealPublisher{client: client, topics: topics}
	if err := p.publish(topics.Status, 1, true, []byte(statusOnline)); err != nil {
		return nil, err
	}

	return p, nil
}

// PublishAlert sends an alert with QoS 1 so it is not lost on a flaky link.
func (p *RealPublisher) PublishAlert(alert capture.Alert) error {
	payload, err := FormatAlertPayload(alert)
	if err != nil {
		return errors.New().Wrap(errors.ErrInternal, err)
	}
	return p.publish(p.topics.Alerts, 1, false, payload)
}

// PublishSession sends a session event; the latest one is retained.
func (p *RealPublisher) PublishSession(event capture.SessionEvent) error {
	payload, err := FormatSessionPayload(event)
	if err != nil {
		return errors.New().Wrap(errors.ErrInternal, err)
	}
	return p.publish(p.topics.Session, 0, true, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	errFactory := errors.New()

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errFactory.WithData(errors.ErrTimeout, struct {
			Phase string
			Topic string
		}{"publish", topic})
	}
	if err := token.Error(); err != nil {
		return errFactory.Wrap(errors.ErrUnavailable, err)
	}

	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close marks the service offline and disconnects from the broker.
func (p *RealPublisher) Close() error {
	_ = p.publish(p.topics.Status, 1, true, []byte(statusOffline))
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
