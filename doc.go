// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package xows implements the session layer of an XMPP client speaking the
// WebSocket subprotocol defined in RFC 7395.
//
// The engine is transport agnostic: it consumes and produces complete XML
// frames through the Socket interface and drives stream negotiation (SASL
// authentication, resource binding), stream management with resumption
// (XEP-0198), request/response correlation for IQ stanzas, and message
// archive queries (XEP-0313) on top of it. Inbound stanzas are parsed into
// typed events delivered through the Handlers callback set.
//
// A Session is created once with NewSession and then attached to one socket
// at a time. The transport calls Open when the socket connects, Recv for
// every inbound frame, and Closed when the socket goes away. After an
// abnormal disconnection CanResume reports whether the negotiated stream can
// be picked up again on a fresh socket.
package xows // import "github.com/iquercorb/xows-sub001"
