// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package websocket dials XMPP-over-WebSocket endpoints (RFC 7395) and
// pumps frames between the connection and a session engine.
package websocket // import "github.com/iquercorb/xows-sub001/websocket"

import (
	"context"
	"crypto/tls"
	"net"
	"strings"
	"sync"

	"golang.org/x/net/websocket"

	xows "github.com/iquercorb/xows-sub001"
)

// NS is the stream framing namespace used by the subprotocol.
const NS = "urn:ietf:params:xml:ns:xmpp-framing"

// Protocol is the WebSocket subprotocol name registered for XMPP.
const Protocol = "xmpp"

// Dialer connects to XMPP-over-WebSocket endpoints.
type Dialer struct {
	// Origin is the origin header sent during the handshake. Empty
	// derives it from the endpoint URL.
	Origin string

	// TLSConfig is the TLS configuration used for wss endpoints. A nil
	// config uses the defaults.
	TLSConfig *tls.Config

	// Dialer is the underlying network dialer.
	Dialer net.Dialer
}

// originFor derives a handshake origin from a WebSocket endpoint URL.
func originFor(url string) string {
	return "http" + strings.TrimPrefix(url, "ws")
}

// Dial performs the WebSocket handshake against the endpoint URL.
func (d *Dialer) Dial(ctx context.Context, url string) (*Conn, error) {
	origin := d.Origin
	if origin == "" {
		origin = originFor(url)
	}
	cfg, err := websocket.NewConfig(url, origin)
	if err != nil {
		return nil, err
	}
	cfg.Protocol = []string{Protocol}
	cfg.TlsConfig = d.TLSConfig

	raw, err := d.dialConn(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ws, err := websocket.NewClient(cfg, raw)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return &Conn{ws: ws}, nil
}

func (d *Dialer) dialConn(ctx context.Context, cfg *websocket.Config) (net.Conn, error) {
	addr := cfg.Location.Host
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	} else if cfg.Location.Scheme == "wss" {
		addr = net.JoinHostPort(addr, "443")
	} else {
		addr = net.JoinHostPort(addr, "80")
	}

	raw, err := d.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if cfg.Location.Scheme != "wss" {
		return raw, nil
	}

	tc := d.TLSConfig
	if tc == nil {
		tc = &tls.Config{}
	}
	if tc.ServerName == "" {
		tc = tc.Clone()
		tc.ServerName = host
	}
	conn := tls.Client(raw, tc)
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, err
	}
	return conn, nil
}

// Conn is an established WebSocket connection implementing the session
// Socket interface. Each Send transmits one text frame carrying a complete
// XML document.
type Conn struct {
	ws   *websocket.Conn
	once sync.Once
}

// Send implements xows.Socket.
func (c *Conn) Send(data string) error {
	return websocket.Message.Send(c.ws, data)
}

// Close implements xows.Socket. The underlying protocol implementation
// does not expose application close codes, so the arguments are advisory.
func (c *Conn) Close(code int, text string) {
	c.once.Do(func() { c.ws.Close() })
}

// Serve attaches the connection to the session, announces it open, and
// pumps inbound frames until the connection dies. It blocks until then and
// returns the read error that ended the stream.
func (c *Conn) Serve(s *xows.Session) error {
	s.Attach(c)
	s.Open()
	for {
		var frame string
		if err := websocket.Message.Receive(c.ws, &frame); err != nil {
			c.Close(0, "")
			s.Closed(1006, err.Error())
			return err
		}
		s.Recv(frame)
	}
}
