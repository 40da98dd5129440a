// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package ns provides namespace constants used throughout the engine.
package ns // import "github.com/iquercorb/xows-sub001/ns"

// Stream level namespaces.
const (
	Client  = "jabber:client"
	Framing = "urn:ietf:params:xml:ns:xmpp-framing"
	Stream  = "http://etherx.jabber.org/streams"
	SASL    = "urn:ietf:params:xml:ns:xmpp-sasl"
	Bind    = "urn:ietf:params:xml:ns:xmpp-bind"
	Stanza  = "urn:ietf:params:xml:ns:xmpp-stanzas"
	SM      = "urn:xmpp:sm:3"
	XML     = "http://www.w3.org/XML/1998/namespace"
)

// Stanza payload namespaces.
const (
	Roster      = "jabber:iq:roster"
	Register    = "jabber:iq:register"
	Version     = "jabber:iq:version"
	DataForms   = "jabber:x:data"
	OOB         = "jabber:x:oob"
	Delay       = "urn:xmpp:delay"
	LegacyDelay = "jabber:x:delay"
	MAM         = "urn:xmpp:mam:2"
	RSM         = "http://jabber.org/protocol/rsm"
	Forward     = "urn:xmpp:forward:0"
	Carbons     = "urn:xmpp:carbons:2"
	ChatStates  = "http://jabber.org/protocol/chatstates"
	Receipts    = "urn:xmpp:receipts"
	Correct     = "urn:xmpp:message-correct:0"
	Retract     = "urn:xmpp:message-retract:1"
	Reply       = "urn:xmpp:reply:0"
	SID         = "urn:xmpp:sid:0"
	OccupantID  = "urn:xmpp:occupant-id:0"
	Ping        = "urn:xmpp:ping"
	Time        = "urn:xmpp:time"
	DiscoInfo   = "http://jabber.org/protocol/disco#info"
	MUC         = "http://jabber.org/protocol/muc"
	MUCUser     = "http://jabber.org/protocol/muc#user"
	PubSubEvent = "http://jabber.org/protocol/pubsub#event"
)
