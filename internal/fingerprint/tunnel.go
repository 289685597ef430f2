package fingerprint

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// connectTimeout bounds the CONNECT exchange when the dial context
// carries no deadline of its own.
const connectTimeout = 10 * time.Second

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// tunnel opens a CONNECT tunnel to addr through proxyURL and returns the
// raw connection, ready for a TLS handshake with the target.
func tunnel(ctx context.Context, dial dialFunc, proxyURL *url.URL, addr string) (net.Conn, error) {
	if proxyURL.Scheme != "http" && proxyURL.Scheme != "https" {
		return nil, fmt.Errorf("fingerprint: %s proxy %s cannot tunnel a fingerprinted handshake", proxyURL.Scheme, proxyURL.Redacted())
	}

	conn, err := dial(ctx, "tcp", proxyAddr(proxyURL))
	if err != nil {
		return nil, fmt.Errorf("fingerprint: dial proxy %s: %w", proxyURL.Redacted(), err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(connectTimeout)
	}
	_ = conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })

	fail := func(err error) (net.Conn, error) {
		stop()
		_ = conn.Close()
		return nil, err
	}

	if proxyURL.Scheme == "https" {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: proxyURL.Hostname()})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return fail(fmt.Errorf("fingerprint: tls to proxy %s: %w", proxyURL.Redacted(), err))
		}
		conn = tlsConn
	}

	connectReq := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if u := proxyURL.User; u != nil {
		pass, _ := u.Password()
		creds := base64.StdEncoding.EncodeToString([]byte(u.Username() + ":" + pass))
		connectReq.Header.Set("Proxy-Authorization", "Basic "+creds)
	}
	if err := connectReq.Write(conn); err != nil {
		return fail(fmt.Errorf("fingerprint: CONNECT via %s: %w", proxyURL.Redacted(), err))
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), connectReq)
	if err != nil {
		return fail(fmt.Errorf("fingerprint: CONNECT via %s: %w", proxyURL.Redacted(), err))
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return fail(fmt.Errorf("fingerprint: proxy %s refused CONNECT to %s: %s", proxyURL.Redacted(), addr, resp.Status))
	}

	if !stop() {
		_ = conn.Close()
		return nil, ctx.Err()
	}
	_ = conn.SetDeadline(time.Time{})
	return conn, nil
}

func proxyAddr(u *url.URL) string {
	if port := u.Port(); port != "" {
		return u.Host
	}
	if u.Scheme == "https" {
		return net.JoinHostPort(u.Hostname(), "443")
	}
	return net.JoinHostPort(u.Hostname(), "80")
}
