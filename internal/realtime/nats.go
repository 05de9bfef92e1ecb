package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATSSink publishes every write on subject "ebus.<key with dots>".
// Removals are published as a JSON null.
type NATSSink struct {
	nc *nats.Conn
}

func NewNATSSink(url string) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("ebus-manager"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logrus.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logrus.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logrus.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	return &NATSSink{nc: nc}, nil
}

// Subject maps a realtime key to its NATS subject.
func Subject(key string) string {
	tokens := strings.Split(strings.Trim(key, "/"), "/")
	for i, t := range tokens {
		tokens[i] = subjectToken(t)
	}
	return "ebus." + strings.Join(tokens, ".")
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}

func (n *NATSSink) Set(_ context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return n.nc.Publish(Subject(key), b)
}

func (n *NATSSink) Remove(_ context.Context, key string) error {
	return n.nc.Publish(Subject(key), []byte("null"))
}

func (n *NATSSink) Close() {
	if n.nc != nil {
		_ = n.nc.Drain()
	}
}
