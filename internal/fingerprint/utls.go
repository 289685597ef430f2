package fingerprint

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	utls "github.com/refraction-networking/utls"
)

// Profile names a TLS ClientHello to present to search engines.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // crypto/tls, no parroting
	ProfileRandom  Profile = "random" // randomized ClientHello without ALPN
)

// Profiles lists every supported profile.
func Profiles() []Profile {
	return []Profile{ProfileChrome, ProfileFirefox, ProfileSafari, ProfileGo, ProfileRandom}
}

// ParseProfile maps a config string onto a Profile. Empty means chrome.
func ParseProfile(s string) (Profile, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ProfileChrome, nil
	}
	for _, p := range Profiles() {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("fingerprint: unknown profile %q", s)
}

// ProxyFunc picks the proxy for a request, as http.Transport.Proxy does.
type ProxyFunc func(*http.Request) (*url.URL, error)

// Transport returns a round tripper presenting the given profile's
// ClientHello. ProfileGo yields a plain clone of http.DefaultTransport.
// Parroted hellos are pinned to http/1.1 in ALPN since the returned
// transport does not speak h2 over a custom TLS dialer. HTTPS requests
// routed through an http(s) proxy are tunnelled with CONNECT and the
// parroted handshake runs inside the tunnel.
func Transport(p Profile, proxyFunc ProxyFunc) (http.RoundTripper, error) {
	return newTransport(p, proxyFunc, nil)
}

func newTransport(p Profile, proxyFunc ProxyFunc, tlsConfig *utls.Config) (http.RoundTripper, error) {
	if p == ProfileGo {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if proxyFunc != nil {
			transport.Proxy = proxyFunc
		}
		return transport, nil
	}

	newConn, err := clientFactory(p)
	if err != nil {
		return nil, err
	}
	return &router{
		profile:    p,
		proxyFunc:  proxyFunc,
		newConn:    newConn,
		tlsConfig:  tlsConfig,
		transports: make(map[string]*http.Transport),
	}, nil
}

// router sends each request through a transport bound to the proxy picked
// for it, so a tunnel opened through one proxy never carries requests
// meant for another.
type router struct {
	profile   Profile
	proxyFunc ProxyFunc
	newConn   connFactory
	tlsConfig *utls.Config

	mu         sync.Mutex
	transports map[string]*http.Transport
}

func (r *router) RoundTrip(req *http.Request) (*http.Response, error) {
	var proxyURL *url.URL
	if r.proxyFunc != nil {
		u, err := r.proxyFunc(req)
		if err != nil {
			if req.Body != nil {
				_ = req.Body.Close()
			}
			return nil, fmt.Errorf("fingerprint: pick proxy: %w", err)
		}
		proxyURL = u
	}
	return r.transportFor(proxyURL).RoundTrip(req)
}

// CloseIdleConnections lets http.Client.CloseIdleConnections reach every
// per-proxy transport.
func (r *router) CloseIdleConnections() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.transports {
		t.CloseIdleConnections()
	}
}

func (r *router) transportFor(proxyURL *url.URL) *http.Transport {
	key := ""
	if proxyURL != nil {
		key = proxyURL.String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.transports[key]; ok {
		return t
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = nil
	if proxyURL != nil {
		// Plain http goes through the proxy the usual way; https is
		// tunnelled by DialTLSContext below.
		t.Proxy = func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" {
				return nil, nil
			}
			return proxyURL, nil
		}
	}

	dial := t.DialContext
	t.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		var (
			conn net.Conn
			err  error
		)
		if proxyURL != nil {
			conn, err = tunnel(ctx, dial, proxyURL, addr)
		} else {
			conn, err = dial(ctx, network, addr)
		}
		if err != nil {
			return nil, err
		}
		return r.handshake(ctx, conn, addr)
	}

	r.transports[key] = t
	return t
}

func (r *router) handshake(ctx context.Context, conn net.Conn, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	cfg := &utls.Config{ServerName: host}
	if r.tlsConfig != nil {
		cfg = r.tlsConfig.Clone()
		cfg.ServerName = host
	}

	uConn, err := r.newConn(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := uConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("fingerprint: %s handshake with %s: %w", r.profile, host, err)
	}
	return uConn, nil
}

type connFactory func(net.Conn, *utls.Config) (*utls.UConn, error)

func clientFactory(p Profile) (connFactory, error) {
	var id utls.ClientHelloID
	switch p {
	case ProfileChrome:
		id = utls.HelloChrome_Auto
	case ProfileFirefox:
		id = utls.HelloFirefox_Auto
	case ProfileSafari:
		id = utls.HelloIOS_Auto
	case ProfileRandom:
		return func(c net.Conn, cfg *utls.Config) (*utls.UConn, error) {
			return utls.UClient(c, cfg, utls.HelloRandomizedNoALPN), nil
		}, nil
	default:
		return nil, fmt.Errorf("fingerprint: unknown profile %q", p)
	}

	if _, err := utls.UTLSIdToSpec(id); err != nil {
		return nil, fmt.Errorf("fingerprint: %s spec: %w", p, err)
	}

	return func(c net.Conn, cfg *utls.Config) (*utls.UConn, error) {
		// ApplyPreset takes ownership of the extensions, so each
		// connection gets its own copy of the spec.
		spec, err := utls.UTLSIdToSpec(id)
		if err != nil {
			return nil, fmt.Errorf("fingerprint: %s spec: %w", p, err)
		}
		pinHTTP1(&spec)
		uConn := utls.UClient(c, cfg, utls.HelloCustom)
		if err := uConn.ApplyPreset(&spec); err != nil {
			return nil, fmt.Errorf("fingerprint: %s preset: %w", p, err)
		}
		return uConn, nil
	}, nil
}

func pinHTTP1(spec *utls.ClientHelloSpec) {
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
}
