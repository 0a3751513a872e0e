package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// publisher abstracts the NATS connection methods we use.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes events as JSON to "<prefix>.<kind>".
type NATS struct {
	conn   publisher
	prefix string
}

// NewNATS returns a notifier publishing on conn.
func NewNATS(conn publisher, subjectPrefix string) *NATS {
	return &NATS{conn: conn, prefix: strings.TrimSuffix(subjectPrefix, ".")}
}

// ConnectNATS dials a NATS server.
func ConnectNATS(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url, nats.Name("qc"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("notify: connect nats %s: %w", url, err)
	}
	return conn, nil
}

// Subject returns the subject an event is published on.
func (n *NATS) Subject(evt Event) string {
	if n.prefix == "" {
		return evt.Kind
	}
	return n.prefix + "." + evt.Kind
}

// Notify implements Notifier.
func (n *NATS) Notify(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %w", evt.Kind, err)
	}
	if err := n.conn.Publish(n.Subject(evt), data); err != nil {
		return fmt.Errorf("notify: publish %s: %w", n.Subject(evt), err)
	}
	return nil
}
