package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const sourceService = "minigames"

// Envelope wraps every published payload.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     Type            `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// Conn is the slice of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes JSON envelopes on the event type's subject.
type NATSPublisher struct {
	conn Conn
	now  func() time.Time
}

// NewNATSPublisher wraps an open connection.
func NewNATSPublisher(conn Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn, now: func() time.Time { return time.Now().UTC() }}
}

// ConnectNATS dials servers with reconnect handling and logging.
func ConnectNATS(servers string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(sourceService),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Error("NATS disconnected with error")
			} else {
				log.Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(servers, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.WithField("servers", servers).Info("Connected to NATS")
	return nc, nil
}

// Publish serializes event into an envelope and sends it.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := Envelope{
		EventID:       uuid.New().String(),
		EventType:     event.Type(),
		Timestamp:     p.now(),
		SourceService: sourceService,
		Payload:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	subject := string(event.Type())
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Published event")
	return nil
}

// Close drains the underlying connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
