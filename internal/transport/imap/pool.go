// Package imap is the pooled IMAP executor (C1): connection bring-up over
// plain/TLS/STARTTLS with optional SOCKS5/HTTP-CONNECT proxying, password or
// XOAUTH2 authentication, and the handful of operations RustMailer's own
// components need (fetch a body part, mark \Answered, append to Sent).
// Bulk synchronization itself is out of scope (spec.md §1); this package
// only exposes what the send pipeline needs. Grounded on
// github.com/emersion/go-imap's client package (already a teacher
// dependency) and original_source/src/modules/imap for operation shape.
package imap

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	goimap "github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/sony/gobreaker"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/model"
	"github.com/sparklive/rustmailer/internal/store"
	"github.com/sparklive/rustmailer/internal/transport"
)

// AccountSecrets resolves the decrypted credentials and proxy needed to
// connect to one account's IMAP endpoint.
type AccountSecrets interface {
	IMAPEndpoint(accountID uint64) (*model.EndpointConfig, *model.Proxy, error)
	Password(accountID uint64) (string, error)
	OAuth2AccessToken(ctx context.Context, accountID uint64) (string, error)
}

// Pool is a small per-account pool of live IMAP connections, sized and
// timed out per §4.1 (≈10 connections, 120s idle timeout), with a NOOP
// validating each idle connection on checkout.
type Pool struct {
	secrets AccountSecrets
	meta    *store.MetaStore

	mu    sync.Mutex
	conns map[uint64][]*pooledConn

	breakersMu sync.Mutex
	breakers   map[uint64]*gobreaker.CircuitBreaker
}

type pooledConn struct {
	client   *imapclient.Client
	lastUsed time.Time
}

func NewPool(secrets AccountSecrets, meta *store.MetaStore) *Pool {
	return &Pool{
		secrets:  secrets,
		meta:     meta,
		conns:    make(map[uint64][]*pooledConn),
		breakers: make(map[uint64]*gobreaker.CircuitBreaker),
	}
}

// breakerFor returns the per-account circuit breaker guarding dial, so a
// down IMAP host fails fast for the rest of a flush window instead of every
// caller independently hitting its own connect timeout.
func (p *Pool) breakerFor(accountID uint64) *gobreaker.CircuitBreaker {
	p.breakersMu.Lock()
	defer p.breakersMu.Unlock()
	if b, ok := p.breakers[accountID]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fmt.Sprintf("imap-dial-%d", accountID),
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

func (p *Pool) checkout(ctx context.Context, accountID uint64) (*imapclient.Client, error) {
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
	return result.(*imapclient.Client), nil
}

func (p *Pool) checkin(accountID uint64, c *imapclient.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.conns[accountID]) >= transport.PoolSize {
		c.Logout()
		return
	}
	p.conns[accountID] = append(p.conns[accountID], &pooledConn{client: c, lastUsed: time.Now()})
}

func (p *Pool) dial(ctx context.Context, accountID uint64) (*imapclient.Client, error) {
	ep, proxyCfg, err := p.secrets.IMAPEndpoint(accountID)
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

	c, err := imapclient.New(conn)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ImapCommandFailed, "failed to open imap session")
	}

	if ep.Encryption == model.EncryptionStartTLS {
		if err := c.StartTLS(tlsConfig(ep.Host)); err != nil {
			return nil, apperr.Wrap(err, apperr.ImapCommandFailed, "starttls failed")
		}
	}

	if err := p.authenticate(ctx, c, accountID, ep); err != nil {
		c.Logout()
		return nil, err
	}
	return c, nil
}

func (p *Pool) authenticate(ctx context.Context, c *imapclient.Client, accountID uint64, ep *model.EndpointConfig) error {
	if ep.Auth == model.AuthOAuth2 {
		token, err := p.secrets.OAuth2AccessToken(ctx, accountID)
		if err != nil {
			return err
		}
		// user=<addr>\x01auth=Bearer <tok>\x01\x01, per §4.1.
		client := sasl.NewXoauth2Client(ep.Username, token)
		if err := c.Authenticate(client); err != nil {
			return apperr.Wrap(err, apperr.ImapAuthenticationFailed, "xoauth2 authentication failed")
		}
		return nil
	}
	password, err := p.secrets.Password(accountID)
	if err != nil {
		return err
	}
	if err := c.Login(ep.Username, password); err != nil {
		return apperr.Wrap(err, apperr.ImapAuthenticationFailed, "imap login failed")
	}
	return nil
}

// tlsConfig builds the *tls.Config go-imap's StartTLS takes.
func tlsConfig(host string) *tls.Config {
	return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
}

// FetchPart implements compose.PartFetcher: fetch one body part of an
// already-synced message by mailbox name + UID + IMAP body section id.
func (p *Pool) FetchPart(ctx context.Context, accountID, mailboxID uint64, uid, partID string) ([]byte, string, error) {
	mb, err := p.meta.GetMailbox(mailboxID)
	if err != nil {
		return nil, "", err
	}
	c, err := p.checkout(ctx, accountID)
	if err != nil {
		return nil, "", err
	}
	defer p.checkin(accountID, c)

	if _, err := c.Select(mb.Name, true); err != nil {
		return nil, "", apperr.Wrap(err, apperr.ImapCommandFailed, "imap select failed")
	}

	seqSet := new(goimap.SeqSet)
	n, err := parseUID(uid)
	if err != nil {
		return nil, "", err
	}
	seqSet.AddNum(n)

	section := &goimap.BodySectionName{}
	for _, s := range strings.Split(partID, ".") {
		if s == "" {
			continue
		}
		part, err := strconv.Atoi(s)
		if err != nil {
			return nil, "", apperr.Wrap(err, apperr.InvalidParameter, "invalid imap body part id")
		}
		section.Path = append(section.Path, part)
	}
	messages := make(chan *goimap.Message, 1)
	done := make(chan error, 1)
	go func() { done <- c.UidFetch(seqSet, []goimap.FetchItem{section.FetchItem()}, messages) }()

	var body []byte
	for msg := range messages {
		r := msg.GetBody(section)
		if r != nil {
			buf := make([]byte, 0, 4096)
			tmp := make([]byte, 4096)
			for {
				n, rerr := r.Read(tmp)
				buf = append(buf, tmp[:n]...)
				if rerr != nil {
					break
				}
			}
			body = buf
		}
	}
	if err := <-done; err != nil {
		return nil, "", apperr.Wrap(err, apperr.ImapCommandFailed, "imap fetch failed")
	}
	return body, "application/octet-stream", nil
}

// MarkAnswered implements smtptask.MailboxFlagger.
func (p *Pool) MarkAnswered(ctx context.Context, accountID, mailboxID uint64, uid string) error {
	mb, err := p.meta.GetMailbox(mailboxID)
	if err != nil {
		return err
	}
	c, err := p.checkout(ctx, accountID)
	if err != nil {
		return err
	}
	defer p.checkin(accountID, c)

	if _, err := c.Select(mb.Name, false); err != nil {
		return apperr.Wrap(err, apperr.ImapCommandFailed, "imap select failed")
	}
	seqSet := new(goimap.SeqSet)
	n, err := parseUID(uid)
	if err != nil {
		return err
	}
	seqSet.AddNum(n)
	item := goimap.FormatFlagsOp(goimap.AddFlags, true)
	flags := []interface{}{goimap.AnsweredFlag}
	if err := c.UidStore(seqSet, item, flags, nil); err != nil {
		return apperr.Wrap(err, apperr.ImapCommandFailed, "imap store \\Answered failed")
	}
	return nil
}

// AppendToSent implements smtptask.MailboxFlagger.
func (p *Pool) AppendToSent(ctx context.Context, accountID uint64, body []byte) error {
	c, err := p.checkout(ctx, accountID)
	if err != nil {
		return err
	}
	defer p.checkin(accountID, c)

	if err := c.Append("Sent", []string{goimap.SeenFlag}, time.Now(), bytes.NewReader(body)); err != nil {
		return apperr.Wrap(err, apperr.ImapCommandFailed, "imap append to sent failed")
	}
	return nil
}

func parseUID(uid string) (uint32, error) {
	var n uint32
	if _, err := fmt.Sscanf(uid, "%d", &n); err != nil {
		return 0, apperr.Wrap(err, apperr.InvalidParameter, "invalid imap uid")
	}
	return n, nil
}
