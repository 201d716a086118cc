// Package publisher fans journey changes out to NATS subscribers.
package publisher

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// SubjectPrefix prefixes every journey subject.
const SubjectPrefix = "itera.journey."

type NATSPublisher struct {
	nc      *nats.Conn
	metrics PublisherMetrics
	logger  *slog.Logger
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url string, m PublisherMetrics, logger *slog.Logger) (*NATSPublisher, error) {
	logger = logger.With("component", "nats")
	nc, err := nats.Connect(url,
		nats.Name("itera"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, metrics: m, logger: logger}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// Subject returns the subject a change kind is published on.
func Subject(kind string) string {
	return SubjectPrefix + subjectToken(kind)
}

// Publish sends msg on the subject of its kind.
func (p *NATSPublisher) Publish(msg JourneyMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	subject := Subject(msg.Kind)
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err != nil {
		p.logger.Warn("nats publish failed", "subject", subject, "error", err)
		return err
	}
	p.logger.Debug("nats publish", "subject", subject, "version", msg.Version)
	return nil
}
