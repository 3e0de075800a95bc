package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
)

// publisher is the subset of *nats.Conn used by NATSSink.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink forwards events to a NATS server so other processes can consume
// them. Channel "room:42" with prefix "coworking" maps to subject
// "coworking.room.42".
type NATSSink struct {
	conn   publisher
	prefix string
	close  func() error
}

// DialNATS connects to url and returns a sink publishing under prefix.
func DialNATS(url, prefix string, logger *slog.Logger) (*NATSSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "notify.nats")

	nc, err := nats.Connect(url,
		nats.Name("coworking-booking"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	sink := NewNATSSink(nc, prefix)
	sink.close = nc.Drain
	return sink, nil
}

// NewNATSSink wraps an existing publisher.
func NewNATSSink(conn publisher, prefix string) *NATSSink {
	return &NATSSink{conn: conn, prefix: strings.Trim(prefix, ".")}
}

// Subject returns the NATS subject for channel.
func (s *NATSSink) Subject(channel string) string {
	subject := strings.ReplaceAll(channel, ":", ".")
	if s.prefix == "" {
		return subject
	}
	return s.prefix + "." + subject
}

// Publish encodes event as JSON and publishes it.
func (s *NATSSink) Publish(ctx context.Context, channel string, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := s.conn.Publish(s.Subject(channel), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Close drains the connection when the sink owns it.
func (s *NATSSink) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
