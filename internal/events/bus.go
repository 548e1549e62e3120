// Package events publishes payment events to NATS.
package events

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Subjects published by the payment service
const (
	SubjectEntitlementUnlocked = "payments.entitlement.unlocked"
	SubjectCallbackUnresolved  = "payments.callback.unresolved"
)

// Bus publishes raw messages on a subject
type Bus interface {
	Publish(subject string, data []byte) error
}

// NatsBus is a Bus backed by a NATS connection
type NatsBus struct {
	nc *nats.Conn
}

// Connect dials NATS. An empty url yields a Noop bus so the service runs without a broker.
func Connect(url string) (Bus, func(), error) {
	if url == "" {
		logrus.Info("NATS_URL not set, events are not published")
		return Noop{}, func() {}, nil
	}
	nc, err := nats.Connect(url,
		nats.Name("elimu-payments"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logrus.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logrus.WithField("url", c.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, err
	}
	return NewNatsBus(nc), func() { _ = nc.Drain() }, nil
}

// NewNatsBus wraps an open connection
func NewNatsBus(nc *nats.Conn) *NatsBus {
	return &NatsBus{nc: nc}
}

func (b *NatsBus) Publish(subject string, data []byte) error {
	return b.nc.Publish(subject, data)
}

// Noop drops every message
type Noop struct{}

func (Noop) Publish(string, []byte) error { return nil }
