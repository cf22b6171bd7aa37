package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/david/eu-grants-monitor/internal/models"
	"github.com/david/eu-grants-monitor/internal/resilience"
)

const alertEvent = "grant.alert"

// publisher is the part of *nats.Conn the publisher uses.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes one JSON event per alert on a subject.
type NATSPublisher struct {
	conn    publisher
	close   func()
	subject string
	deps    Deps
}

type alertMessage struct {
	Event string       `json:"event"`
	Alert models.Alert `json:"alert"`
}

func NewNATSPublisher(url, subject string, deps Deps) (*NATSPublisher, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("eu-grants-monitor"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected: %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	p := newNATSPublisher(conn, subject, deps)
	p.close = conn.Close
	return p, nil
}

func newNATSPublisher(conn publisher, subject string, deps Deps) *NATSPublisher {
	if subject == "" {
		subject = "grants.alerts"
	}
	return &NATSPublisher{conn: conn, close: func() {}, subject: subject, deps: deps.withDefaults()}
}

func (p *NATSPublisher) Name() string { return "nats" }

func (p *NATSPublisher) Close() { p.close() }

func (p *NATSPublisher) Notify(ctx context.Context, alerts []models.Alert) error {
	var errs []error
	for _, a := range alerts {
		data, err := json.Marshal(alertMessage{Event: alertEvent, Alert: a})
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal alert %s: %w", a.ID, err))
			continue
		}
		err = p.deps.run(ctx, "nats.publish", func(context.Context) error {
			if err := p.conn.Publish(p.subject, data); err != nil {
				return fmt.Errorf("nats publish: %w", err)
			}
			return nil
		}, classifyNATSError)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func classifyNATSError(err error) resilience.Classification {
	if err == nil {
		return resilience.Classification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Classification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) {
		return resilience.Classification{Retryable: true, RecordFailure: true}
	}
	return resilience.Classification{Retryable: false, RecordFailure: true}
}
