// Package natsbus exposes a NATS publisher to other packages as "natsbus".
//
// Scope keys:
//
//	url             server URL, nats.DefaultURL by default
//	subject_prefix  prepended to every subject with a "." separator
//	connect_timeout bound on the initial connect, e.g. "2s"
package natsbus

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/bayleafwalker/packhost/config"
	"github.com/bayleafwalker/packhost/injector"
)

const EntryPoint = "natsbus"

var ErrNotConnected = errors.New("natsbus: not connected")

// Bus is the package's export. It is usable once the package is ready.
type Bus struct {
	mu     sync.RWMutex
	pub    Publisher
	prefix string
}

func (b *Bus) Subject(s string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.prefix == "" {
		return s
	}
	return b.prefix + "." + s
}

func (b *Bus) Publish(ctx context.Context, subject string, payload []byte) error {
	b.mu.RLock()
	pub := b.pub
	b.mu.RUnlock()
	if pub == nil {
		return ErrNotConnected
	}
	return pub.Publish(ctx, b.Subject(subject), payload)
}

// Close releases the underlying connection. It is safe to call more than once.
func (b *Bus) Close() error {
	b.mu.Lock()
	pub := b.pub
	b.pub = nil
	b.mu.Unlock()
	if pub == nil {
		return nil
	}
	return pub.Close()
}

// NewFactory returns a package factory that connects with connect during
// initialization.
func NewFactory(connect Connector) injector.Factory {
	return injector.FactoryOf(func(pkg *injector.Package, _ injector.Args) (any, error) {
		b := &Bus{}
		pkg.OnInit(func(ctx context.Context, scope *config.Scope) error {
			if d := scope.GetDuration("connect_timeout"); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
			pub, err := connect(ctx, scope.GetString("url"))
			if err != nil {
				return err
			}
			b.mu.Lock()
			b.pub = pub
			b.prefix = strings.Trim(scope.GetString("subject_prefix"), ".")
			b.mu.Unlock()
			return nil
		})
		return b, nil
	})
}

var Factory = NewFactory(NewNATSPublisher)
