// Package nats is the NATS JetStream publisher side of the connection
// pool & executor component (C1), implementing hooks.NATSPublisher.
// Grounded on github.com/nats-io/nats.go (already a teacher-pack
// dependency via sekia-ai-sekia's internal/natsserver) and
// original_source/src/modules/hook for per-hook connection/auth shape.
package nats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/model"
)

// ConfigResolver resolves a hook's NATS connection parameters, including
// decrypting any stored password/token.
type ConfigResolver interface {
	ResolveNATSAuth(cfg *model.NATSHookConfig) (username, password, token string, err error)
}

// Publisher lazily dials and caches one *nats.Conn per distinct
// host:port+namespace combination, since several hooks may share the same
// NATS cluster.
type Publisher struct {
	resolver ConfigResolver

	mu    sync.Mutex
	conns map[string]*nats.Conn
}

func NewPublisher(resolver ConfigResolver) *Publisher {
	return &Publisher{resolver: resolver, conns: make(map[string]*nats.Conn)}
}

// Publish implements hooks.NATSPublisher: dial (or reuse) the connection
// described by cfg and publish to subject via JetStream.
func (p *Publisher) Publish(ctx context.Context, cfg *model.NATSHookConfig, subject string, headers map[string]string, payload []byte) error {
	conn, err := p.connFor(cfg)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(subject)
	msg.Data = payload
	for k, v := range headers {
		msg.Header.Set(k, v)
	}
	// JetStream dedup window keys off Nats-Msg-Id; a fresh uuid per publish
	// call means retries of the same hook task (see internal/hooks.task
	// retry policy) are deliberately NOT deduped at this layer, since a
	// retry is a distinct delivery attempt.
	msg.Header.Set("Nats-Msg-Id", uuid.NewString())
	js, err := conn.JetStream()
	if err != nil {
		return apperr.Wrap(err, apperr.NatsConnectionFailed, "failed to acquire jetstream context")
	}
	if _, err := js.PublishMsg(msg, nats.AckWait(10*time.Second)); err != nil {
		return apperr.Wrap(err, apperr.NatsRequestFailed, "jetstream publish failed")
	}
	return nil
}

func (p *Publisher) connFor(cfg *model.NATSHookConfig) (*nats.Conn, error) {
	key := fmt.Sprintf("%s:%d:%s", cfg.Host, cfg.Port, cfg.Namespace)

	p.mu.Lock()
	if c, ok := p.conns[key]; ok && c.IsConnected() {
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	opts := []nats.Option{nats.Timeout(10 * time.Second), nats.MaxReconnects(5)}
	switch cfg.Auth {
	case model.NATSAuthUserPass:
		username, password, _, err := p.resolver.ResolveNATSAuth(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, nats.UserInfo(username, password))
	case model.NATSAuthToken:
		_, _, token, err := p.resolver.ResolveNATSAuth(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, nats.Token(token))
	}

	url := fmt.Sprintf("nats://%s:%d", cfg.Host, cfg.Port)
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.NatsConnectionFailed, "failed to connect to nats")
	}

	if js, err := conn.JetStream(); err == nil {
		_, _ = js.AddStream(&nats.StreamConfig{Name: cfg.Stream, Subjects: []string{cfg.Namespace + ".>"}})
	}

	p.mu.Lock()
	p.conns[key] = conn
	p.mu.Unlock()
	return conn, nil
}

// Close drains every cached connection. The daemon's shutdown path does not
// call it.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.conns {
		_ = c.Drain()
	}
}
