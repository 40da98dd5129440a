// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xows

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"mellium.im/xmlstream"

	"github.com/iquercorb/xows-sub001/internal/attr"
	"github.com/iquercorb/xows-sub001/jid"
	"github.com/iquercorb/xows-sub001/ns"
	"github.com/iquercorb/xows-sub001/stanza"
)

const closeFrame = "<close xmlns='" + ns.Framing + "'/>"

func openFrame(host string) string {
	return fmt.Sprintf("<open xmlns='%s' to='%s' version='1.0'/>", ns.Framing, host)
}

func serialize(r xml.TokenReader) (string, error) {
	var buf strings.Builder
	e := xml.NewEncoder(&buf)
	if _, err := xmlstream.Copy(e, r); err != nil {
		return "", err
	}
	if err := e.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func joinReaders(a, b xml.TokenReader) xml.TokenReader {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return xmlstream.MultiReader(a, b)
}

// transmitLocked writes one frame to the socket. Countable marks stanzas
// subject to stream management accounting; negotiation and management
// frames are not.
func (s *Session) transmitLocked(data string, countable bool) {
	if s.sock == nil || !s.sockOpen {
		s.log.Warn("transmit on closed socket dropped")
		return
	}
	if err := s.sock.Send(data); err != nil {
		s.log.Error("socket send failed", "err", err)
		return
	}
	if countable {
		s.smSentLocked()
	}
}

// sendStanzaLocked transmits the stanza produced by wrap, or stamps and
// queues it when no session is live. Wrap receives the extra payload to
// splice in, which is the delay stamp on the queued path and nil otherwise.
func (s *Session) sendStanzaLocked(wrap func(extra xml.TokenReader) xml.TokenReader) {
	if s.sessOK && s.sockOpen {
		data, err := serialize(wrap(nil))
		if err != nil {
			s.log.Error("stanza encoding failed", "err", err)
			return
		}
		s.transmitLocked(data, true)
		return
	}
	d := stanza.Delay{Stamp: time.Now()}
	data, err := serialize(wrap(d.TokenReader()))
	if err != nil {
		s.log.Error("stanza encoding failed", "err", err)
		return
	}
	s.queue = append(s.queue, data)
	s.log.Debug("stanza queued for next session", "queued", len(s.queue))
}

// flushLocked transmits queued stanzas in the order they were submitted.
func (s *Session) flushLocked() {
	for _, data := range s.queue {
		s.transmitLocked(data, true)
	}
	s.queue = nil
}

// queryLocked transmits an IQ immediately, bypassing the offline queue. It
// is used for negotiation and for queries made on a live session. The
// continuation runs with the session lock held.
func (s *Session) queryLocked(iq stanza.IQ, payload xml.TokenReader, fn func(stanza.IQ)) string {
	if iq.ID == "" {
		iq.ID = attr.RandomID()
	}
	if fn != nil {
		s.pending[iq.ID] = pendingQuery{fn: fn}
	}
	data, err := serialize(iq.Wrap(payload))
	if err != nil {
		delete(s.pending, iq.ID)
		s.log.Error("query encoding failed", "err", err)
		return ""
	}
	s.transmitLocked(data, true)
	return iq.ID
}

// SendIQ transmits an IQ stanza, assigning an id when the caller did not
// set one. The callback, if any, receives the matching result or error
// exactly once. The stanza is queued when no session is live.
func (s *Session) SendIQ(iq stanza.IQ, payload xml.TokenReader, cb func(stanza.IQ)) string {
	var id string
	s.dispatch(func() {
		if iq.ID == "" {
			iq.ID = attr.RandomID()
		}
		id = iq.ID
		if cb != nil {
			s.pending[iq.ID] = pendingQuery{fn: cb, user: true}
		}
		s.sendStanzaLocked(func(extra xml.TokenReader) xml.TokenReader {
			return iq.Wrap(joinReaders(payload, extra))
		})
	})
	return id
}

// SendMessage transmits a message stanza with an optional extension
// payload, assigning an id when the caller did not set one. The stanza is
// queued with a delay stamp when no session is live.
func (s *Session) SendMessage(msg stanza.Message, payload xml.TokenReader) string {
	var id string
	s.dispatch(func() {
		if msg.ID == "" {
			msg.ID = attr.RandomID()
		}
		id = msg.ID
		s.sendStanzaLocked(func(extra xml.TokenReader) xml.TokenReader {
			return msg.Wrap(joinReaders(payload, extra))
		})
	})
	return id
}

// SendPresence transmits a presence stanza with an optional extension
// payload. The stanza is queued with a delay stamp when no session is live.
func (s *Session) SendPresence(p stanza.Presence, payload xml.TokenReader) {
	s.dispatch(func() {
		s.sendStanzaLocked(func(extra xml.TokenReader) xml.TokenReader {
			return p.Wrap(joinReaders(payload, extra))
		})
	})
}

// SendChat sends a chat message carrying a delivery receipt request and
// returns the assigned stanza id.
func (s *Session) SendChat(to jid.JID, body string) string {
	msg := stanza.Message{To: to, Type: stanza.ChatMessage, Body: body}
	payload := xmlstream.Wrap(nil, xml.StartElement{
		Name: xml.Name{Space: ns.Receipts, Local: "request"},
	})
	return s.SendMessage(msg, payload)
}

func chatStateName(state stanza.ChatState) string {
	switch state {
	case stanza.StateActive:
		return "active"
	case stanza.StateComposing:
		return "composing"
	case stanza.StatePaused:
		return "paused"
	case stanza.StateInactive:
		return "inactive"
	case stanza.StateGone:
		return "gone"
	}
	return ""
}

// SendChatState notifies the peer of the local conversation state.
func (s *Session) SendChatState(to jid.JID, typ stanza.MessageType, state stanza.ChatState) {
	name := chatStateName(state)
	if name == "" {
		return
	}
	payload := xmlstream.Wrap(nil, xml.StartElement{
		Name: xml.Name{Space: ns.ChatStates, Local: name},
	})
	s.SendMessage(stanza.Message{To: to, Type: typ}, payload)
}

// SendReceipt acknowledges delivery of the message with the given id.
func (s *Session) SendReceipt(to jid.JID, id string) {
	payload := xmlstream.Wrap(nil, xml.StartElement{
		Name: xml.Name{Space: ns.Receipts, Local: "received"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "id"}, Value: id}},
	})
	s.SendMessage(stanza.Message{To: to, Type: stanza.ChatMessage}, payload)
}

// SendRetract asks recipients to remove a previously sent message.
func (s *Session) SendRetract(to jid.JID, typ stanza.MessageType, id string) string {
	payload := xmlstream.Wrap(nil, xml.StartElement{
		Name: xml.Name{Space: ns.Retract, Local: "retract"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "id"}, Value: id}},
	})
	return s.SendMessage(stanza.Message{To: to, Type: typ}, payload)
}

// SendCorrection replaces the body of a previously sent message.
func (s *Session) SendCorrection(to jid.JID, typ stanza.MessageType, replaceID, body string) string {
	payload := xmlstream.Wrap(nil, xml.StartElement{
		Name: xml.Name{Space: ns.Correct, Local: "replace"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "id"}, Value: replaceID}},
	})
	return s.SendMessage(stanza.Message{To: to, Type: typ, Body: body}, payload)
}
