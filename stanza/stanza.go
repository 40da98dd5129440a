// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package stanza contains wire types for the three XMPP stanza kinds and
// the payload extensions understood by the engine.
//
// Outbound stanzas are built with the Wrap methods and marshaled token by
// token; inbound stanzas are unmarshaled from complete frames with
// encoding/xml, which is safe under RFC 7395 framing where every WebSocket
// message carries exactly one XML document.
package stanza // import "github.com/iquercorb/xows-sub001/stanza"

import (
	"encoding/xml"

	"github.com/iquercorb/xows-sub001/ns"
)

// Is tests whether name is a valid stanza based on name and space.
func Is(name xml.Name) bool {
	return (name.Local == "iq" || name.Local == "message" || name.Local == "presence") &&
		(name.Space == ns.Client || name.Space == "")
}

// Empty marks the presence of a child element that carries no data of its
// own, such as a chat state notification or a receipt request.
type Empty struct{}
