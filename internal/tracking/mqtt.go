package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"ebus_manager/internal/apperr"
)

// DevicePayload is the JSON a GPS unit publishes.
type DevicePayload struct {
	DeviceID  string     `json:"device_id"`
	BusID     uint       `json:"bus_id"`
	ShiftID   *uint      `json:"shift_id"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Speed     float64    `json:"speed"`
	Heading   float64    `json:"heading"`
	Accuracy  float64    `json:"accuracy"`
	Timestamp *time.Time `json:"timestamp"`
}

// DeviceListener feeds GPS units publishing over MQTT into the tracker.
// The device id is taken from the payload or, failing that, the last topic level.
type DeviceListener struct {
	tracker        *Tracker
	topic          string
	opts           *mqtt.ClientOptions
	client         mqtt.Client
	connectTimeout time.Duration
}

func NewDeviceListener(broker, clientID, topic string, t *Tracker) *DeviceListener {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logrus.WithError(err).Warn("MQTT connection lost")
		})
	return &DeviceListener{tracker: t, topic: topic, opts: opts, connectTimeout: 15 * time.Second}
}

// Start connects and subscribes. Messages are handled until Stop.
func (l *DeviceListener) Start(ctx context.Context) error {
	l.opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(l.topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			if err := l.Handle(ctx, msg.Topic(), msg.Payload()); err != nil {
				logrus.WithError(err).WithField("topic", msg.Topic()).Warn("GPS device message rejected")
			}
		})
		if token.WaitTimeout(10*time.Second) && token.Error() != nil {
			logrus.WithError(token.Error()).WithField("topic", l.topic).Error("MQTT subscribe failed")
			return
		}
		logrus.WithField("topic", l.topic).Info("Subscribed to GPS device topic")
	})

	l.client = mqtt.NewClient(l.opts)
	token := l.client.Connect()
	if !token.WaitTimeout(l.connectTimeout) {
		// stops the background connect retries
		l.client.Disconnect(0)
		return fmt.Errorf("mqtt connect: timed out after %s", l.connectTimeout)
	}
	if err := token.Error(); err != nil {
		l.client.Disconnect(0)
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (l *DeviceListener) Stop() {
	if l.client != nil && l.client.IsConnected() {
		l.client.Disconnect(250)
	}
}

// Handle decodes one device message and ingests it.
func (l *DeviceListener) Handle(ctx context.Context, topic string, payload []byte) error {
	var p DevicePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return apperr.Validation("invalid device payload: %v", err)
	}
	if p.DeviceID == "" {
		if i := strings.LastIndex(topic, "/"); i >= 0 {
			p.DeviceID = topic[i+1:]
		}
	}
	if p.BusID == 0 {
		if p.DeviceID == "" {
			return apperr.Validation("device payload names neither bus nor device")
		}
		bus, err := l.tracker.repo.FindBusByDevice(ctx, p.DeviceID)
		if err != nil {
			return err
		}
		p.BusID = bus.ID
	}

	r := PositionReport{
		BusID:     p.BusID,
		ShiftID:   p.ShiftID,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Speed:     p.Speed,
		Heading:   p.Heading,
		Accuracy:  p.Accuracy,
	}
	if p.Timestamp != nil {
		r.Timestamp = *p.Timestamp
	}
	return l.tracker.Ingest(ctx, r)
}
