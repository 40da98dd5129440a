// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xows

import (
	"encoding/xml"
	"time"

	"github.com/iquercorb/xows-sub001/jid"
	"github.com/iquercorb/xows-sub001/stanza"
)

func (s *Session) handleMessageLocked(data string) {
	var msg stanza.Message
	if err := xml.Unmarshal([]byte(data), &msg); err != nil {
		s.log.Warn("malformed message dropped", "err", err)
		return
	}
	s.processMessageLocked(&msg, false, false)
}

// processMessageLocked dispatches a message stanza on its dominant payload
// extension. Unwrapped marks messages extracted from a carbon copy, which
// must not recurse into archive or carbon handling again.
func (s *Session) processMessageLocked(msg *stanza.Message, carbonSent, unwrapped bool) {
	switch msg.Kind() {
	case stanza.ExtArchive:
		if unwrapped {
			return
		}
		s.archiveResultLocked(msg)
	case stanza.ExtCarbon:
		if unwrapped {
			s.log.Warn("nested carbon copy dropped")
			return
		}
		s.unwrapCarbonLocked(msg)
	case stanza.ExtPubsub:
		if s.h.Pubsub == nil {
			return
		}
		ev := PubsubNotice{
			From:  msg.From,
			Node:  msg.Event.Items.Node,
			Items: msg.Event.Items.Items,
		}
		s.emit(func() { s.h.Pubsub(ev) })
	case stanza.ExtReceipt:
		if s.h.Receipt == nil {
			return
		}
		ev := ReceiptEvent{From: msg.From, ID: msg.Received.ID}
		s.emit(func() { s.h.Receipt(ev) })
	case stanza.ExtRetract:
		if s.h.Retract == nil {
			return
		}
		ev := RetractEvent{From: msg.From, ID: msg.Retract.ID, OccupantID: occupantID(msg)}
		s.emit(func() { s.h.Retract(ev) })
	case stanza.ExtChatState:
		if s.h.ChatState == nil {
			return
		}
		ev := ChatStateEvent{
			From:       msg.From,
			Type:       msg.Type,
			State:      msg.State(),
			OccupantID: occupantID(msg),
		}
		s.emit(func() { s.h.ChatState(ev) })
	case stanza.ExtBody:
		rec := s.recordLocked(msg, carbonSent, false, "")
		if s.h.Message != nil {
			s.emit(func() { s.h.Message(rec) })
		}
	default:
		if msg.Type == stanza.ErrorMessage && msg.Error != nil {
			s.stanzaErrorLocked(msg.From, *msg.Error)
		}
	}
}

// unwrapCarbonLocked extracts the forwarded message from a carbon copy.
// Carbons are only trusted from the user's own account (XEP-0280 §11).
func (s *Session) unwrapCarbonLocked(msg *stanza.Message) {
	if !msg.From.IsZero() && !msg.From.Equal(s.bind.Bare) {
		s.log.Warn("carbon copy from foreign sender dropped", "from", msg.From.String())
		return
	}
	fwd := msg.CarbonRecv
	sent := false
	if msg.CarbonSent != nil {
		fwd = msg.CarbonSent
		sent = true
	}
	if fwd.Forwarded == nil || fwd.Forwarded.Message == nil {
		s.log.Warn("carbon copy without forwarded message dropped")
		return
	}
	inner := fwd.Forwarded.Message
	if inner.Delay == nil {
		inner.Delay = fwd.Forwarded.Delay
	}
	s.processMessageLocked(inner, sent, true)
}

func occupantID(msg *stanza.Message) string {
	if msg.OccupantID == nil {
		return ""
	}
	return msg.OccupantID.ID
}

// recordLocked builds the normalized record for an inbound message.
func (s *Session) recordLocked(msg *stanza.Message, carbonSent, archived bool, page string) Message {
	rec := Message{
		ID:         msg.ID,
		From:       msg.From,
		To:         msg.To,
		Type:       msg.Type,
		Body:       msg.Body,
		Time:       msg.Timestamp(time.Now()),
		OccupantID: occupantID(msg),
		ReceiptReq: msg.ReceiptReq != nil,
		State:      msg.State(),
		CarbonSent: carbonSent,
		Archived:   archived,
		Page:       page,
	}
	if msg.OriginID != nil {
		rec.OriginID = msg.OriginID.ID
	}
	rec.StanzaID = msg.StanzaID(s.bind.Bare)
	if rec.StanzaID == "" {
		rec.StanzaID = msg.StanzaID(jid.JID{})
	}
	if msg.OOB != nil {
		rec.URL = msg.OOB.URL
	}
	if msg.Replace != nil {
		rec.ReplaceID = msg.Replace.ID
	}
	if msg.Retract != nil {
		rec.RetractID = msg.Retract.ID
	}
	if msg.Received != nil {
		rec.ReceiptID = msg.Received.ID
	}
	if msg.Reply != nil {
		rec.ReplyID = msg.Reply.ID
		rec.ReplyTo = msg.Reply.To
	}
	return rec
}
