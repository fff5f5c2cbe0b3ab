// Package transport holds the connection pools & executors component (C1):
// pooled IMAP and SMTP clients, the Gmail API executor, NATS JetStream
// pooling, and the shared SOCKS5/HTTP-CONNECT proxy dialer every pool bring-up
// goes through. Grounded on the teacher's pkg/gmail/client.go and
// pkg/outlook/client.go for the OAuth2-backed client pattern, generalized to
// a parallel IMAP/SMTP pool per original_source/src/modules/{imap,smtp}.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/model"
)

const (
	ConnectTimeout = 60 * time.Second
	PoolSize       = 10
	IdleTimeout    = 120 * time.Second
)

// DialTCP opens a TCP connection to host:port, optionally bridged through a
// SOCKS5 or HTTP CONNECT proxy, with TCP_NODELAY set on direct connections.
func DialTCP(ctx context.Context, host string, port int, via *model.Proxy) (net.Conn, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	if via == nil {
		d := net.Dialer{Timeout: ConnectTimeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.ConnectionTimeout, "tcp dial failed")
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		return conn, nil
	}

	switch via.Scheme() {
	case model.ProxySOCKS5:
		dialer, err := proxy.SOCKS5("tcp", via.HostPort(), nil, &net.Dialer{Timeout: ConnectTimeout})
		if err != nil {
			return nil, apperr.Wrap(err, apperr.NetworkError, "failed to build socks5 dialer")
		}
		if ctxDialer, ok := dialer.(proxy.ContextDialer); ok {
			conn, err := ctxDialer.DialContext(ctx, "tcp", addr)
			if err != nil {
				return nil, apperr.Wrap(err, apperr.ConnectionTimeout, "socks5 dial failed")
			}
			return conn, nil
		}
		conn, err := dialer.Dial("tcp", addr)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.ConnectionTimeout, "socks5 dial failed")
		}
		return conn, nil
	default:
		return dialHTTPConnect(ctx, via.HostPort(), addr)
	}
}

func dialHTTPConnect(ctx context.Context, proxyAddr, targetAddr string) (net.Conn, error) {
	d := net.Dialer{Timeout: ConnectTimeout}
	conn, err := d.DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ConnectionTimeout, "http proxy dial failed")
	}
	req := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", targetAddr, targetAddr)
	if _, err := conn.Write([]byte(req)); err != nil {
		conn.Close()
		return nil, apperr.Wrap(err, apperr.NetworkError, "failed to send http connect request")
	}
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		conn.Close()
		return nil, apperr.Wrap(err, apperr.NetworkError, "failed to read http connect response")
	}
	status := string(buf[:n])
	if len(status) < 12 || status[9:12] != "200" {
		conn.Close()
		return nil, apperr.New(apperr.NetworkError, "http proxy refused connect: "+status)
	}
	return conn, nil
}

// WrapTLS performs the implicit-TLS handshake over conn.
func WrapTLS(conn net.Conn, serverName string) (*tls.Conn, error) {
	tlsConn := tls.Client(conn, &tls.Config{ServerName: serverName, MinVersion: tls.VersionTLS12})
	if err := tlsConn.Handshake(); err != nil {
		return nil, apperr.Wrap(err, apperr.ConnectionTimeout, "tls handshake failed")
	}
	return tlsConn, nil
}

// ParseProxyURL is a small validation helper for a proxy URL; nothing in
// the daemon calls it when accounts or hooks are saved.
func ParseProxyURL(raw string) error {
	_, err := url.Parse(raw)
	if err != nil {
		return apperr.Wrap(err, apperr.InvalidParameter, "invalid proxy url")
	}
	return nil
}
