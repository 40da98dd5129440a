// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xows

import (
	"fmt"
	"time"

	"github.com/iquercorb/xows-sub001/jid"
	"github.com/iquercorb/xows-sub001/stanza"
)

// FailCode classifies a session failure. The codes are distinct bits so
// that callers tracking multiple failures can accumulate them in a mask.
type FailCode uint16

const (
	// FailureGeneric covers stream level errors, malformed frames, and
	// negotiation problems that do not fit a more specific code.
	FailureGeneric FailCode = 0x040

	// FailureAuth indicates that SASL authentication was refused.
	FailureAuth FailCode = 0x080

	// FailureRegister indicates that in-band account registration failed.
	FailureRegister FailCode = 0x100

	// FailureHangup indicates that the server or network dropped an
	// established session.
	FailureHangup FailCode = 0x200
)

// String implements fmt.Stringer.
func (c FailCode) String() string {
	switch c {
	case FailureGeneric:
		return "failure"
	case FailureAuth:
		return "authentication"
	case FailureRegister:
		return "registration"
	case FailureHangup:
		return "hangup"
	}
	return fmt.Sprintf("failcode(%#x)", uint16(c))
}

// StoredAuth is the saved credential material that allows a session to
// authenticate again without prompting, most notably when resuming a
// dropped stream on a new socket.
type StoredAuth struct {
	Mechanism string
	Username  string
	Password  string
}

// BindResult is the address assigned by the server during resource binding.
type BindResult struct {
	Full     jid.JID
	Bare     jid.JID
	Node     string
	Resource string
}

// Message is the normalized record built from an inbound message stanza,
// either live or played back from an archive.
type Message struct {
	// ID is the stanza id chosen by the sender. OriginID and StanzaID are
	// the stable identifiers of XEP-0359 when present.
	ID       string
	OriginID string
	StanzaID string

	// OccupantID identifies the sending occupant in anonymous rooms.
	OccupantID string

	From jid.JID
	To   jid.JID
	Type stanza.MessageType

	Body string
	// URL is an out of band data reference, usually an HTTP upload.
	URL string

	// Time is the delay stamp when the message was delayed or archived,
	// otherwise the local time of processing.
	Time time.Time

	// ReplaceID marks the message as a correction of an earlier one.
	ReplaceID string
	// ReplyID and ReplyTo reference the message being replied to.
	ReplyID string
	ReplyTo jid.JID

	// ReceiptReq reports whether the sender asked for a delivery receipt.
	ReceiptReq bool
	// ReceiptID, RetractID, and State carry the payloads of bodyless
	// records played back from an archive.
	ReceiptID string
	RetractID string
	State     stanza.ChatState

	// CarbonSent marks a copy of a message sent by another of the user's
	// clients.
	CarbonSent bool

	// Archived marks a record streamed in response to an archive query;
	// Page is then the archive page identifier it was delivered under.
	Archived bool
	Page     string
}

// ChatStateEvent is a standalone chat state notification.
type ChatStateEvent struct {
	From       jid.JID
	Type       stanza.MessageType
	State      stanza.ChatState
	OccupantID string
}

// ReceiptEvent acknowledges delivery of a previously sent message.
type ReceiptEvent struct {
	From jid.JID
	ID   string
}

// RetractEvent asks for removal of a previously received message.
type RetractEvent struct {
	From       jid.JID
	ID         string
	OccupantID string
}

// PresenceEvent is the availability of a contact resource.
type PresenceEvent struct {
	From     jid.JID
	Type     stanza.PresenceType
	Show     string
	Status   string
	Priority int8
	Nick     string
	Time     time.Time

	// AvatarHash is the advertised SHA-1 of the contact's avatar, empty
	// when the presence carried no vcard update.
	AvatarHash string
}

// OccupantEvent is the presence of a chat room occupant.
type OccupantEvent struct {
	// Room is the occupant address, room@service/nick.
	Room jid.JID
	Type stanza.PresenceType

	Nick        string
	Affiliation string
	Role        string
	// RealJID is the occupant's real address in non-anonymous rooms.
	RealJID    jid.JID
	OccupantID string

	Show   string
	Status string

	// Self marks the presence as referring to the receiving user.
	Self bool
	// Kicked marks a removal from the room.
	Kicked bool
}

// PubsubNotice is a publish-subscribe notification.
type PubsubNotice struct {
	From  jid.JID
	Node  string
	Items []stanza.PubsubItem
}

// RosterItem is a contact list entry.
type RosterItem struct {
	JID          jid.JID
	Name         string
	Subscription string
	// Ask reports a pending outbound subscription request.
	Ask    bool
	Groups []string
}

// Handlers is the set of callbacks through which the session delivers
// events. Every field is optional; events without a handler are dropped.
//
// Handlers run on the goroutine that fed the triggering frame to the
// session, after the session lock has been released, so they may call back
// into the Session freely.
type Handlers struct {
	// SessionReady fires once the stream is established and bound, or
	// resumed after a network failure.
	SessionReady func(bind BindResult, resumed bool)

	// SessionClosed fires whenever the session goes down, cleanly or not.
	SessionClosed func(code FailCode, text string)

	Message   func(m Message)
	ChatState func(ev ChatStateEvent)
	Receipt   func(ev ReceiptEvent)
	Retract   func(ev RetractEvent)

	Presence  func(ev PresenceEvent)
	Occupant  func(ev OccupantEvent)
	Subscribe func(from jid.JID, nick string)

	RosterPush func(item RosterItem, ver string)
	Pubsub     func(ev PubsubNotice)

	// Command receives set queries with no built-in responder, such as
	// Jingle signaling. The engine acknowledges them with an empty
	// result; the handler owns any follow-up exchange. When nil such
	// queries are refused with service-unavailable.
	Command func(iq stanza.IQ)

	// StanzaError receives error stanzas that could not be correlated to
	// an outstanding request.
	StanzaError func(from jid.JID, e stanza.Error)

	// SaveAuth receives credential material worth persisting for silent
	// re-authentication. Only fired when Config.SaveAuth is set.
	SaveAuth func(auth StoredAuth)
}
