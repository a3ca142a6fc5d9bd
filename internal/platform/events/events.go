// Package events connects to NATS and publishes committed progress
// snapshots for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"watch-progress/internal/progress"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "progress.committed"

// Options configures the NATS connection behaviour.
// Zero values fall back to built-in defaults.
type Options struct {
	URL           string
	MaxReconnects int           // default 5
	ReconnectWait time.Duration // default 2s
}

// Connect establishes a NATS connection with the configured retry policy.
// It fails fast so the caller can decide to run without publishing.
func Connect(opts Options) (*nats.Conn, error) {
	if opts.URL == "" {
		opts.URL = nats.DefaultURL
	}
	if opts.MaxReconnects == 0 {
		opts.MaxReconnects = 5
	}
	if opts.ReconnectWait == 0 {
		opts.ReconnectWait = 2 * time.Second
	}

	nc, err := nats.Connect(opts.URL,
		nats.Name("watch-progress"),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.RetryOnFailedConnect(false),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s (max_reconnects=%d, wait=%s): %w",
			opts.URL, opts.MaxReconnects, opts.ReconnectWait, err)
	}
	return nc, nil
}

// Publisher implements progress.Publisher on top of a NATS connection.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher returns a Publisher sending to subject (DefaultSubject if empty).
func NewPublisher(nc *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, subject: subject}
}

// PublishProgress implements progress.Publisher.
func (p *Publisher) PublishProgress(ctx context.Context, ev progress.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := newMessage(p.subject, ev)
	if err != nil {
		return err
	}
	return p.nc.PublishMsg(msg)
}

// newMessage encodes ev as JSON. The event id doubles as the JetStream
// de-duplication id.
func newMessage(subject string, ev progress.Event) (*nats.Msg, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode progress event: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, ev.EventID)
	msg.Header.Set("Video-Id", string(ev.VideoID))
	return msg, nil
}
