// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza

import (
	"encoding/xml"
	"strconv"

	"mellium.im/xmlstream"

	"github.com/iquercorb/xows-sub001/jid"
)

// PresenceType is the type of a presence stanza.
// It should normally be one of the constants defined in this package.
type PresenceType string

const (
	// AvailablePresence is a special case that signals that the entity is
	// available for communication; it is communicated by the absence of a
	// type attribute.
	AvailablePresence PresenceType = ""

	// UnavailablePresence signals that the entity is no longer available for
	// communication.
	UnavailablePresence PresenceType = "unavailable"

	// SubscribePresence is a request to subscribe to another entity's
	// presence.
	SubscribePresence PresenceType = "subscribe"

	// SubscribedPresence indicates that a subscription request has been
	// approved.
	SubscribedPresence PresenceType = "subscribed"

	// UnsubscribePresence unsubscribes from another entity's presence.
	UnsubscribePresence PresenceType = "unsubscribe"

	// UnsubscribedPresence denies a subscription request or cancels an
	// existing subscription.
	UnsubscribedPresence PresenceType = "unsubscribed"

	// ProbePresence is a server generated request for an entity's current
	// presence.
	ProbePresence PresenceType = "probe"

	// ErrorPresence indicates that an error occurred while processing a
	// previously sent presence.
	ErrorPresence PresenceType = "error"
)

// Presence is an XMPP presence stanza together with the extensions the
// engine understands.
type Presence struct {
	XMLName xml.Name     `xml:"presence"`
	ID      string       `xml:"id,attr,omitempty"`
	To      jid.JID      `xml:"to,attr,omitempty"`
	From    jid.JID      `xml:"from,attr,omitempty"`
	Lang    string       `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Type    PresenceType `xml:"type,attr,omitempty"`

	Show     string `xml:"show,omitempty"`
	Status   string `xml:"status,omitempty"`
	Priority int8   `xml:"priority,omitempty"`
	Nick     string `xml:"http://jabber.org/protocol/nick nick,omitempty"`

	Delay      *Delay       `xml:"urn:xmpp:delay delay"`
	MUCUser    *MUCUser     `xml:"http://jabber.org/protocol/muc#user x"`
	OccupantID *OccupantID  `xml:"urn:xmpp:occupant-id:0 occupant-id"`
	VCardPhoto *VCardUpdate `xml:"vcard-temp:x:update x"`
	Error      *Error       `xml:"error"`
}

// VCardUpdate advertises the SHA-1 hash of the entity's current avatar
// (XEP-0153). The engine treats the hash as opaque.
type VCardUpdate struct {
	Photo string `xml:"photo"`
}

// MUCUser is the multi-user chat occupant extension carried by presence
// from a room (XEP-0045 §7).
type MUCUser struct {
	Items  []MUCItem   `xml:"item"`
	Status []MUCStatus `xml:"status"`
}

// MUCItem describes a room occupant.
type MUCItem struct {
	Affiliation string  `xml:"affiliation,attr"`
	Role        string  `xml:"role,attr"`
	JID         jid.JID `xml:"jid,attr"`
	Nick        string  `xml:"nick,attr"`
}

// MUCStatus is a numeric status code qualifying occupant presence.
type MUCStatus struct {
	Code int `xml:"code,attr"`
}

// MUC status codes the engine inspects.
const (
	MUCStatusSelf   = 110 // presence refers to the receiving occupant
	MUCStatusKicked = 333 // occupant removed because of a technical problem
)

// SelfStatus reports whether the occupant presence refers to the receiving
// user itself (status code 110).
func (x *MUCUser) SelfStatus() bool {
	for _, st := range x.Status {
		if st.Code == MUCStatusSelf {
			return true
		}
	}
	return false
}

// Wrap wraps the payload in a presence element ready for transmission. The
// show, status, and priority children are emitted before the payload.
func (p Presence) Wrap(payload xml.TokenReader) xml.TokenReader {
	start := xml.StartElement{Name: xml.Name{Local: "presence"}}
	if p.ID != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "id"}, Value: p.ID})
	}
	if !p.To.IsZero() {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "to"}, Value: p.To.String()})
	}
	if !p.From.IsZero() {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "from"}, Value: p.From.String()})
	}
	if p.Type != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "type"}, Value: string(p.Type)})
	}

	var inner []xml.TokenReader
	if p.Show != "" {
		inner = append(inner, xmlstream.Wrap(
			xmlstream.Token(xml.CharData(p.Show)),
			xml.StartElement{Name: xml.Name{Local: "show"}},
		))
	}
	if p.Status != "" {
		inner = append(inner, xmlstream.Wrap(
			xmlstream.Token(xml.CharData(p.Status)),
			xml.StartElement{Name: xml.Name{Local: "status"}},
		))
	}
	if p.Priority != 0 {
		inner = append(inner, xmlstream.Wrap(
			xmlstream.Token(xml.CharData(strconv.Itoa(int(p.Priority)))),
			xml.StartElement{Name: xml.Name{Local: "priority"}},
		))
	}
	if payload != nil {
		inner = append(inner, payload)
	}
	return xmlstream.Wrap(xmlstream.MultiReader(inner...), start)
}
