// Package notify persists admin notifications and pushes them to student
// devices through Firebase Cloud Messaging.
package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
)

// BroadcastTopic is the FCM topic every app install subscribes to.
const BroadcastTopic = "all_users"

// FCM caps a multicast at 500 tokens.
const multicastLimit = 500

type Pusher interface {
	SendToTopic(ctx context.Context, topic, title, body string, data map[string]string) error
	// SendMulticast returns how many devices accepted the message.
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (int, error)
}

type FCMPusher struct {
	client *messaging.Client
}

func NewFCMPusher(ctx context.Context, app *firebase.App) (*FCMPusher, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return &FCMPusher{client: client}, nil
}

func (p *FCMPusher) SendToTopic(ctx context.Context, topic, title, body string, data map[string]string) error {
	id, err := p.client.Send(ctx, &messaging.Message{
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
		Topic:        topic,
		Android:      androidConfig(),
		APNS:         apnsConfig(),
	})
	if err != nil {
		return fmt.Errorf("fcm send to topic %s: %w", topic, err)
	}
	logrus.WithFields(logrus.Fields{"topic": topic, "message_id": id}).Info("Push sent to topic")
	return nil
}

func (p *FCMPusher) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (int, error) {
	sent := 0
	for start := 0; start < len(tokens); start += multicastLimit {
		end := min(start+multicastLimit, len(tokens))
		resp, err := p.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       tokens[start:end],
			Notification: &messaging.Notification{Title: title, Body: body},
			Data:         data,
			Android:      androidConfig(),
			APNS:         apnsConfig(),
		})
		if err != nil {
			return sent, fmt.Errorf("fcm multicast: %w", err)
		}
		sent += resp.SuccessCount
		if resp.FailureCount > 0 {
			logrus.WithField("failed", resp.FailureCount).Warn("Some push tokens were rejected")
		}
	}
	return sent, nil
}

func androidConfig() *messaging.AndroidConfig {
	return &messaging.AndroidConfig{
		Priority: "high",
		Notification: &messaging.AndroidNotification{
			Sound:     "default",
			ChannelID: "ebus_channel",
		},
	}
}

func apnsConfig() *messaging.APNSConfig {
	return &messaging.APNSConfig{
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{Sound: "default", Badge: intPtr(1)},
		},
	}
}

func intPtr(v int) *int { return &v }

// LogPusher stands in for FCM when Firebase is not configured.
type LogPusher struct{}

func (LogPusher) SendToTopic(_ context.Context, topic, title, _ string, _ map[string]string) error {
	logrus.WithFields(logrus.Fields{"topic": topic, "title": title}).Info("Push skipped: FCM not configured")
	return nil
}

func (LogPusher) SendMulticast(_ context.Context, tokens []string, title, _ string, _ map[string]string) (int, error) {
	logrus.WithFields(logrus.Fields{"devices": len(tokens), "title": title}).Info("Push skipped: FCM not configured")
	return 0, nil
}
