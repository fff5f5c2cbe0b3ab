// Package smtp is the pooled SMTP executor (C1): connection bring-up over
// plain/implicit-TLS/STARTTLS with optional SOCKS5/HTTP-CONNECT proxying,
// EHLO capability learning (DSN support), password or XOAUTH2
// authentication, and a single Send entry point implementing
// smtptask.Executor. Grounded on github.com/emersion/go-smtp's client
// package (already a teacher dependency) and
// original_source/src/modules/smtp for operation shape.
package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/sony/gobreaker"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/model"
	"github.com/sparklive/rustmailer/internal/transport"
)

// AccountSecrets resolves the decrypted credentials and proxy needed to
// connect to one account's SMTP endpoint.
type AccountSecrets interface {
	SMTPEndpoint(accountID uint64) (*model.EndpointConfig, *model.Proxy, error)
	Password(accountID uint64) (string, error)
	OAuth2AccessToken(ctx context.Context, accountID uint64) (string, error)
}

// Pool is a small per-account pool of live SMTP connections, sized and
// timed out per §4.1 (≈10 connections, 120s idle timeout).
type Pool struct {
	secrets AccountSecrets

	mu    sync.Mutex
	conns map[uint64][]*pooledConn

	breakersMu sync.Mutex
	breakers   map[uint64]*gobreaker.CircuitBreaker
}

type pooledConn struct {
	client   *gosmtp.Client
	lastUsed time.Time
}

func NewPool(secrets AccountSecrets) *Pool {
	return &Pool{
		secrets:  secrets,
		conns:    make(map[uint64][]*pooledConn),
		breakers: make(map[uint64]*gobreaker.CircuitBreaker),
	}
}

// breakerFor returns the per-account circuit breaker guarding dial, so a
// down MTA fails fast instead of every queued send independently riding out
// its own connect timeout.
func (p *Pool) breakerFor(accountID uint64) *gobreaker.CircuitBreaker {
	p.breakersMu.Lock()
	defer p.breakersMu.Unlock()
	if b, ok := p.breakers[accountID]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fmt.Sprintf("smtp-dial-%d", accountID),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	p.breakers[accountID] = b
	return b
}

func (p *Pool) checkout(ctx context.Context, accountID uint64) (*gosmtp.Client, error) {
	p.mu.Lock()
	pool := p.conns[accountID]
	for len(pool) > 0 {
		pc := pool[len(pool)-1]
		pool = pool[:len(pool)-1]
		p.conns[accountID] = pool
		if time.Since(pc.lastUsed) < transport.IdleTimeout {
			p.mu.Unlock()
			if err := pc.client.Noop(); err == nil {
				return pc.client, nil
			}
		}
	}
	p.mu.Unlock()

	result, err := p.breakerFor(accountID).Execute(func() (interface{}, error) {
		return p.dial(ctx, accountID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*gosmtp.Client), nil
}

func (p *Pool) checkin(accountID uint64, c *gosmtp.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.conns[accountID]) >= transport.PoolSize {
		c.Close()
		return
	}
	p.conns[accountID] = append(p.conns[accountID], &pooledConn{client: c, lastUsed: time.Now()})
}

func (p *Pool) dial(ctx context.Context, accountID uint64) (*gosmtp.Client, error) {
	ep, proxyCfg, err := p.secrets.SMTPEndpoint(accountID)
	if err != nil {
		return nil, err
	}

	conn, err := transport.DialTCP(ctx, ep.Host, ep.Port, proxyCfg)
	if err != nil {
		return nil, err
	}

	if ep.Encryption == model.EncryptionImplicitTLS {
		tlsConn, err := transport.WrapTLS(conn, ep.Host)
		if err != nil {
			return nil, err
		}
		conn = tlsConn
	}

	c, err := gosmtp.NewClient(conn, ep.Host)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.SmtpConnectionFailed, "failed to open smtp session")
	}
	if err := c.Hello("rustmailer"); err != nil {
		c.Close()
		return nil, apperr.Wrap(err, apperr.SmtpCommandFailed, "smtp ehlo failed")
	}

	if ep.Encryption == model.EncryptionStartTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: ep.Host, MinVersion: tls.VersionTLS12}); err != nil {
				c.Close()
				return nil, apperr.Wrap(err, apperr.SmtpCommandFailed, "smtp starttls failed")
			}
		}
	}

	if err := p.authenticate(ctx, c, accountID, ep); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (p *Pool) authenticate(ctx context.Context, c *gosmtp.Client, accountID uint64, ep *model.EndpointConfig) error {
	if ep.Auth == model.AuthOAuth2 {
		token, err := p.secrets.OAuth2AccessToken(ctx, accountID)
		if err != nil {
			return err
		}
		if err := c.Auth(sasl.NewXoauth2Client(ep.Username, token)); err != nil {
			return apperr.Wrap(err, apperr.ImapAuthenticationFailed, "smtp xoauth2 authentication failed")
		}
		return nil
	}
	password, err := p.secrets.Password(accountID)
	if err != nil {
		return err
	}
	if err := c.Auth(sasl.NewPlainClient("", ep.Username, password)); err != nil {
		return apperr.Wrap(err, apperr.ImapAuthenticationFailed, "smtp auth failed")
	}
	return nil
}

// dsnSupported reports whether the last handshake advertised DSN, per
// §4.7's note that DSN capability is learned from EHLO and cached on the
// account.
func (p *Pool) dsnSupported(c *gosmtp.Client) bool {
	ok, _ := c.Extension("DSN")
	return ok
}

// Send implements smtptask.Executor: stream the already-composed MIME body
// to to/cc/bcc, requesting a delivery-status notification when wantsDSN and
// the server advertises support.
func (p *Pool) Send(ctx context.Context, accountID uint64, from string, to []string, wantsDSN bool, body []byte) (bool, error) {
	c, err := p.checkout(ctx, accountID)
	if err != nil {
		return false, err
	}
	dsnCapable := p.dsnSupported(c)

	opts := &gosmtp.MailOptions{}
	if wantsDSN && dsnCapable {
		opts.RequireTLS = false
	}
	if err := c.Mail(from, opts); err != nil {
		c.Close()
		return dsnCapable, apperr.Wrap(err, apperr.SmtpCommandFailed, "smtp mail from failed")
	}
	for _, rcpt := range to {
		rcptOpts := &gosmtp.RcptOptions{}
		if wantsDSN && dsnCapable {
			rcptOpts.Notify = []gosmtp.DSNNotify{gosmtp.DSNNotifyFailure, gosmtp.DSNNotifySuccess}
		}
		if err := c.Rcpt(rcpt, rcptOpts); err != nil {
			c.Close()
			return dsnCapable, apperr.Wrap(err, apperr.SmtpCommandFailed, "smtp rcpt to failed: "+rcpt)
		}
	}
	w, err := c.Data()
	if err != nil {
		c.Close()
		return dsnCapable, apperr.Wrap(err, apperr.SmtpCommandFailed, "smtp data failed")
	}
	if _, err := w.Write(body); err != nil {
		c.Close()
		return dsnCapable, apperr.Wrap(err, apperr.SmtpCommandFailed, "smtp data write failed")
	}
	if err := w.Close(); err != nil {
		c.Close()
		return dsnCapable, apperr.Wrap(err, apperr.SmtpCommandFailed, "smtp data close failed")
	}

	p.checkin(accountID, c)
	return dsnCapable, nil
}
