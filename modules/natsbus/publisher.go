package natsbus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is the minimal event-publishing seam.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	Close() error
}

// Connector opens a Publisher against url.
type Connector func(ctx context.Context, url string) (Publisher, error)

type natsPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher connects to url, or nats.DefaultURL when url is empty.
// The connect timeout follows ctx's deadline when it has one.
func NewNATSPublisher(ctx context.Context, url string) (Publisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	opts := []nats.Option{nats.Name("packhost")}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	// TODO(security): accept credentials and TLS settings from the package scope.
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &natsPublisher{nc: nc}, nil
}

func (p *natsPublisher) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.nc.Publish(subject, payload)
}

func (p *natsPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}
