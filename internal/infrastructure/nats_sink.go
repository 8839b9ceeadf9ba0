package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
)

// DefaultNATSSubject is where detection events are published
const DefaultNATSSubject = "ransomtrap.events"

// NATSSink publishes detection events to a NATS subject
type NATSSink struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSSink connects to natsURL. The connection keeps retrying in the background
// so a broker outage at startup does not block protection.
func NewNATSSink(natsURL, subject string, logger zerolog.Logger) (*NATSSink, error) {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	logger = logger.With().Str("component", "nats").Logger()

	conn, err := nats.Connect(natsURL,
		nats.Name("ransomtrap"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("reconnected to NATS")
		}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info().Str("url", natsURL).Str("subject", subject).Msg("event publisher connected to NATS")

	return &NATSSink{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}, nil
}

// Write publishes the event as JSON on the subject
func (s *NATSSink) Write(_ context.Context, event domain.DetectionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(s.subject)
	msg.Data = data
	msg.Header.Set("Event-Kind", string(event.Kind))
	msg.Header.Set(nats.MsgIdHdr, event.ID)

	if err := s.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", s.subject, err)
	}

	s.logger.Debug().Str("id", event.ID).Str("subject", s.subject).Msg("published event")
	return nil
}

// Close drains pending publishes and closes the connection
func (s *NATSSink) Close() error {
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return err
	}
	return nil
}
