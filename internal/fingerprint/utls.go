package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Profile names the TLS ClientHello the fetcher presents.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // crypto/tls, no mimicry
	ProfileRandom  Profile = "random" // randomized uTLS hello
)

var helloIDs = map[Profile]utls.ClientHelloID{
	ProfileChrome:  utls.HelloChrome_Auto,
	ProfileFirefox: utls.HelloFirefox_Auto,
	ProfileSafari:  utls.HelloIOS_Auto,
	ProfileRandom:  utls.HelloRandomizedALPN,
}

// ParseProfile accepts a profile name case-insensitively.
func ParseProfile(name string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(name)))
	if p == ProfileGo {
		return p, nil
	}
	if _, ok := helloIDs[p]; !ok {
		return "", fmt.Errorf("unknown tls profile %q", name)
	}
	return p, nil
}

// Transport returns an http.RoundTripper presenting the TLS fingerprint of p.
// ProfileGo yields a plain clone of http.DefaultTransport. The other profiles
// dial TLS through utls.UClient and speak HTTP/2 or HTTP/1.1, whichever the
// server selects via ALPN. proxyFunc, when non-nil, becomes the transport's Proxy.
func Transport(p Profile, proxyFunc func(*http.Request) (*url.URL, error)) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyFunc != nil {
		transport.Proxy = proxyFunc
	}
	if p == ProfileGo {
		return transport, nil
	}

	helloID, ok := helloIDs[p]
	if !ok {
		return nil, fmt.Errorf("unknown tls profile %q", p)
	}

	rt := &utlsTransport{
		helloID: helloID,
		dial:    transport.DialContext,
		h1:      transport,
		protos:  make(map[string]string),
		pending: make(map[string][]net.Conn),
	}
	transport.DialTLSContext = rt.dialTLS
	rt.h2 = &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return rt.dialTLS(ctx, network, addr)
		},
	}
	return rt, nil
}

// utlsTransport routes each HTTPS request to an HTTP/1.1 or HTTP/2 transport
// according to the protocol the host negotiated on its first handshake.
// Connections from that handshake are parked in pending until a transport
// dials the same address.
type utlsTransport struct {
	helloID utls.ClientHelloID
	dial    func(ctx context.Context, network, addr string) (net.Conn, error)
	h1      *http.Transport
	h2      *http2.Transport

	mu      sync.Mutex
	protos  map[string]string
	pending map[string][]net.Conn
}

func (t *utlsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}
	// Proxied requests tunnel through CONNECT and never reach dialTLS.
	if t.h1.Proxy != nil {
		if u, err := t.h1.Proxy(req); err != nil || u != nil {
			return t.h1.RoundTrip(req)
		}
	}

	proto, err := t.protocol(req.Context(), hostPort(req.URL))
	if err != nil {
		return nil, err
	}
	if proto == http2.NextProtoTLS {
		return t.h2.RoundTrip(req)
	}
	return t.h1.RoundTrip(req)
}

// CloseIdleConnections closes idle connections on both transports and any
// parked handshakes.
func (t *utlsTransport) CloseIdleConnections() {
	t.h1.CloseIdleConnections()
	t.h2.CloseIdleConnections()

	t.mu.Lock()
	defer t.mu.Unlock()
	for addr, conns := range t.pending {
		for _, c := range conns {
			_ = c.Close()
		}
		delete(t.pending, addr)
	}
}

func (t *utlsTransport) protocol(ctx context.Context, addr string) (string, error) {
	t.mu.Lock()
	proto, ok := t.protos[addr]
	t.mu.Unlock()
	if ok {
		return proto, nil
	}

	conn, err := t.handshake(ctx, "tcp", addr)
	if err != nil {
		return "", err
	}
	proto = conn.ConnectionState().NegotiatedProtocol

	t.mu.Lock()
	defer t.mu.Unlock()
	if known, ok := t.protos[addr]; ok {
		_ = conn.Close()
		return known, nil
	}
	t.protos[addr] = proto
	t.pending[addr] = append(t.pending[addr], conn)
	return proto, nil
}

func (t *utlsTransport) dialTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	t.mu.Lock()
	if conns := t.pending[addr]; len(conns) > 0 {
		conn := conns[0]
		if len(conns) == 1 {
			delete(t.pending, addr)
		} else {
			t.pending[addr] = conns[1:]
		}
		t.mu.Unlock()
		return conn, nil
	}
	t.mu.Unlock()
	return t.handshake(ctx, network, addr)
}

func (t *utlsTransport) handshake(ctx context.Context, network, addr string) (*utls.UConn, error) {
	tcpConn, err := t.dial(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	cfg := &utls.Config{ServerName: host}
	if tc := t.h1.TLSClientConfig; tc != nil {
		cfg.RootCAs = tc.RootCAs
		cfg.InsecureSkipVerify = tc.InsecureSkipVerify
	}

	uConn := utls.UClient(tcpConn, cfg, t.helloID)
	if err := uConn.HandshakeContext(ctx); err != nil {
		_ = tcpConn.Close()
		return nil, fmt.Errorf("utls handshake with %s: %w", host, err)
	}
	return uConn, nil
}

func hostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	return net.JoinHostPort(u.Hostname(), "443")
}
