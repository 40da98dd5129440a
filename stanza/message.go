// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza

import (
	"encoding/xml"
	"time"

	"mellium.im/xmlstream"

	"github.com/iquercorb/xows-sub001/jid"
)

// MessageType is the type of a message stanza.
// It should normally be one of the constants defined in this package.
type MessageType string

const (
	// NormalMessage is a standalone message sent outside the context of a
	// one-to-one conversation or group chat. This is the default type.
	NormalMessage MessageType = "normal"

	// ChatMessage represents a message sent in the context of a one-to-one
	// chat session.
	ChatMessage MessageType = "chat"

	// GroupChatMessage is sent in the context of a multi-user chat
	// environment.
	GroupChatMessage MessageType = "groupchat"

	// HeadlineMessage provides an alert, a notification, or other transient
	// information to which no reply is expected.
	HeadlineMessage MessageType = "headline"

	// ErrorMessage is generated by an entity that experiences an error when
	// processing a message received from another entity.
	ErrorMessage MessageType = "error"
)

// Message is an XMPP message stanza together with every payload extension
// the engine understands. Extension pointers are nil when the corresponding
// child element was not present.
type Message struct {
	XMLName xml.Name    `xml:"message"`
	ID      string      `xml:"id,attr,omitempty"`
	To      jid.JID     `xml:"to,attr,omitempty"`
	From    jid.JID     `xml:"from,attr,omitempty"`
	Lang    string      `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Type    MessageType `xml:"type,attr,omitempty"`

	Body    string `xml:"body,omitempty"`
	Subject string `xml:"subject,omitempty"`
	Thread  string `xml:"thread,omitempty"`

	Delay       *Delay       `xml:"urn:xmpp:delay delay"`
	LegacyDelay *LegacyDelay `xml:"jabber:x:delay x"`
	OOB         *OOB         `xml:"jabber:x:oob x"`

	Active    *Empty `xml:"http://jabber.org/protocol/chatstates active"`
	Composing *Empty `xml:"http://jabber.org/protocol/chatstates composing"`
	Paused    *Empty `xml:"http://jabber.org/protocol/chatstates paused"`
	Inactive  *Empty `xml:"http://jabber.org/protocol/chatstates inactive"`
	GoneState *Empty `xml:"http://jabber.org/protocol/chatstates gone"`

	ReceiptReq *Empty   `xml:"urn:xmpp:receipts request"`
	Received   *Receipt `xml:"urn:xmpp:receipts received"`
	Replace    *Replace `xml:"urn:xmpp:message-correct:0 replace"`
	Retract    *Retract `xml:"urn:xmpp:message-retract:1 retract"`
	Reply      *Reply   `xml:"urn:xmpp:reply:0 reply"`

	OriginID   *OriginID   `xml:"urn:xmpp:sid:0 origin-id"`
	StanzaIDs  []StanzaID  `xml:"urn:xmpp:sid:0 stanza-id"`
	OccupantID *OccupantID `xml:"urn:xmpp:occupant-id:0 occupant-id"`

	Result     *ArchiveResult `xml:"urn:xmpp:mam:2 result"`
	CarbonSent *Carbon        `xml:"urn:xmpp:carbons:2 sent"`
	CarbonRecv *Carbon        `xml:"urn:xmpp:carbons:2 received"`
	Event      *PubsubEvent   `xml:"http://jabber.org/protocol/pubsub#event event"`

	Error *Error `xml:"error"`
}

// OOB is an out of band data reference (XEP-0066), most commonly an HTTP
// upload URI.
type OOB struct {
	URL  string `xml:"url"`
	Desc string `xml:"desc,omitempty"`
}

// Receipt acknowledges delivery of the message with the given id (XEP-0184).
type Receipt struct {
	ID string `xml:"id,attr"`
}

// Replace marks the message as a correction of a previously sent message
// (XEP-0308).
type Replace struct {
	ID string `xml:"id,attr"`
}

// Retract asks recipients to remove a previously sent message (XEP-0424).
type Retract struct {
	ID string `xml:"id,attr"`
}

// Reply references the message being replied to (XEP-0461).
type Reply struct {
	To jid.JID `xml:"to,attr"`
	ID string  `xml:"id,attr"`
}

// OriginID is a client assigned stable identifier (XEP-0359).
type OriginID struct {
	ID string `xml:"id,attr"`
}

// StanzaID is a stable identifier assigned by the entity named in the by
// attribute (XEP-0359).
type StanzaID struct {
	ID string  `xml:"id,attr"`
	By jid.JID `xml:"by,attr"`
}

// OccupantID is an anonymous but stable identifier for a MUC occupant
// (XEP-0421).
type OccupantID struct {
	ID string `xml:"id,attr"`
}

// ArchiveResult is a single archived message streamed in response to a MAM
// query (XEP-0313).
type ArchiveResult struct {
	QueryID   string     `xml:"queryid,attr"`
	ID        string     `xml:"id,attr"`
	Forwarded *Forwarded `xml:"urn:xmpp:forward:0 forwarded"`
}

// Carbon is a copy of a message sent or received by another of the user's
// clients (XEP-0280).
type Carbon struct {
	Forwarded *Forwarded `xml:"urn:xmpp:forward:0 forwarded"`
}

// Forwarded wraps a stanza that is being relayed on behalf of another
// entity (XEP-0297).
type Forwarded struct {
	Delay   *Delay   `xml:"urn:xmpp:delay delay"`
	Message *Message `xml:"message"`
}

// PubsubEvent is a publish-subscribe notification (XEP-0060). The item
// payloads are retained unparsed; interpretation is service specific.
type PubsubEvent struct {
	Items PubsubItems `xml:"items"`
}

// PubsubItems is the items node of a pubsub notification.
type PubsubItems struct {
	Node  string       `xml:"node,attr"`
	Items []PubsubItem `xml:"item"`
}

// PubsubItem is a single published item with its payload kept as raw XML.
type PubsubItem struct {
	ID    string `xml:"id,attr"`
	Inner string `xml:",innerxml"`
}

// ChatState is the conversation state communicated by a message (XEP-0085).
type ChatState uint8

// The five chat states plus the zero value for messages carrying none.
const (
	StateNone ChatState = iota
	StateActive
	StateComposing
	StatePaused
	StateInactive
	StateGone
)

// State returns the chat state communicated by the message, or StateNone.
func (m *Message) State() ChatState {
	switch {
	case m.Active != nil:
		return StateActive
	case m.Composing != nil:
		return StateComposing
	case m.Paused != nil:
		return StatePaused
	case m.Inactive != nil:
		return StateInactive
	case m.GoneState != nil:
		return StateGone
	}
	return StateNone
}

// ExtKind identifies the dominant payload extension of a message so that
// dispatch can happen on one resolved tag rather than repeated namespace
// comparisons.
type ExtKind uint8

// Extension kinds in dispatch priority order.
const (
	ExtNone ExtKind = iota
	ExtArchive
	ExtCarbon
	ExtPubsub
	ExtReceipt
	ExtRetract
	ExtChatState
	ExtBody
)

// Kind resolves the message's extension kind once. Messages carrying a body
// (or a correction or reply, which imply one) report ExtBody even when a
// chat state rides along.
func (m *Message) Kind() ExtKind {
	switch {
	case m.Result != nil:
		return ExtArchive
	case m.CarbonSent != nil || m.CarbonRecv != nil:
		return ExtCarbon
	case m.Event != nil:
		return ExtPubsub
	case m.Received != nil:
		return ExtReceipt
	case m.Retract != nil:
		return ExtRetract
	case m.Body != "" || m.Replace != nil:
		return ExtBody
	case m.State() != StateNone:
		return ExtChatState
	}
	return ExtNone
}

// Timestamp returns the delay stamp carried by the message, or fallback when
// there is none. Live messages default to the time of processing while
// archived messages always carry their original stamp.
func (m *Message) Timestamp(fallback time.Time) time.Time {
	if m.Delay != nil {
		return m.Delay.Stamp
	}
	if m.LegacyDelay != nil {
		if t := m.LegacyDelay.Time(); !t.IsZero() {
			return t
		}
	}
	return fallback
}

// StanzaID returns the first stanza-id assigned by the given archive, or the
// first stanza-id of any origin when by is the zero JID.
func (m *Message) StanzaID(by jid.JID) string {
	for _, sid := range m.StanzaIDs {
		if by.IsZero() || sid.By.Equal(by) {
			return sid.ID
		}
	}
	return ""
}

// Wrap wraps the payload in a message element ready for transmission.
func (m Message) Wrap(payload xml.TokenReader) xml.TokenReader {
	start := xml.StartElement{Name: xml.Name{Local: "message"}}
	if m.ID != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "id"}, Value: m.ID})
	}
	if !m.To.IsZero() {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "to"}, Value: m.To.String()})
	}
	if !m.From.IsZero() {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "from"}, Value: m.From.String()})
	}
	if m.Type != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "type"}, Value: string(m.Type)})
	}
	if m.Body != "" {
		body := xmlstream.Wrap(
			xmlstream.Token(xml.CharData(m.Body)),
			xml.StartElement{Name: xml.Name{Local: "body"}},
		)
		if payload == nil {
			payload = body
		} else {
			payload = xmlstream.MultiReader(body, payload)
		}
	}
	return xmlstream.Wrap(payload, start)
}
