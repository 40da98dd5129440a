// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xows

import (
	"encoding/xml"
	"time"

	"mellium.im/xmlstream"

	"github.com/iquercorb/xows-sub001/jid"
	"github.com/iquercorb/xows-sub001/ns"
	"github.com/iquercorb/xows-sub001/stanza"
)

func (s *Session) handlePresenceLocked(data string) {
	var p stanza.Presence
	if err := xml.Unmarshal([]byte(data), &p); err != nil {
		s.log.Warn("malformed presence dropped", "err", err)
		return
	}
	if p.Type == stanza.ErrorPresence {
		if p.Error != nil {
			s.stanzaErrorLocked(p.From, *p.Error)
		}
		return
	}
	if p.MUCUser != nil {
		s.occupantLocked(&p)
		return
	}
	switch p.Type {
	case stanza.SubscribePresence:
		if s.h.Subscribe == nil {
			return
		}
		from, nick := p.From, p.Nick
		s.emit(func() { s.h.Subscribe(from, nick) })
	case stanza.ProbePresence:
		// The server answers probes on our behalf.
	default:
		if s.h.Presence == nil {
			return
		}
		ev := PresenceEvent{
			From:     p.From,
			Type:     p.Type,
			Show:     p.Show,
			Status:   p.Status,
			Priority: p.Priority,
			Nick:     p.Nick,
			Time:     time.Now(),
		}
		if p.Delay != nil {
			ev.Time = p.Delay.Stamp
		}
		if p.VCardPhoto != nil {
			ev.AvatarHash = p.VCardPhoto.Photo
		}
		s.emit(func() { s.h.Presence(ev) })
	}
}

func (s *Session) occupantLocked(p *stanza.Presence) {
	if s.h.Occupant == nil {
		return
	}
	ev := OccupantEvent{
		Room:   p.From,
		Type:   p.Type,
		Nick:   p.From.Resourcepart(),
		Show:   p.Show,
		Status: p.Status,
		Self:   p.MUCUser.SelfStatus(),
	}
	if len(p.MUCUser.Items) > 0 {
		item := p.MUCUser.Items[0]
		ev.Affiliation = item.Affiliation
		ev.Role = item.Role
		ev.RealJID = item.JID
		if item.Nick != "" {
			ev.Nick = item.Nick
		}
	}
	for _, st := range p.MUCUser.Status {
		if st.Code == stanza.MUCStatusKicked {
			ev.Kicked = true
		}
	}
	if p.OccupantID != nil {
		ev.OccupantID = p.OccupantID.ID
	}
	s.emit(func() { s.h.Occupant(ev) })
}

// SendAvailable broadcasts the user's availability.
func (s *Session) SendAvailable(show, status string, priority int8) {
	s.SendPresence(stanza.Presence{Show: show, Status: status, Priority: priority}, nil)
}

// Subscribe requests a presence subscription to the given contact.
func (s *Session) Subscribe(to jid.JID) {
	s.SendPresence(stanza.Presence{To: to, Type: stanza.SubscribePresence}, nil)
}

// Subscribed approves a pending subscription request from the contact.
func (s *Session) Subscribed(to jid.JID) {
	s.SendPresence(stanza.Presence{To: to, Type: stanza.SubscribedPresence}, nil)
}

// Unsubscribed denies a subscription request or revokes an existing one.
func (s *Session) Unsubscribed(to jid.JID) {
	s.SendPresence(stanza.Presence{To: to, Type: stanza.UnsubscribedPresence}, nil)
}

// JoinRoom enters a chat room under the given nickname.
func (s *Session) JoinRoom(room jid.JID, nick string) error {
	to, err := room.WithResource(nick)
	if err != nil {
		return err
	}
	payload := xmlstream.Wrap(nil, xml.StartElement{
		Name: xml.Name{Space: ns.MUC, Local: "x"},
	})
	s.SendPresence(stanza.Presence{To: to}, payload)
	return nil
}

// LeaveRoom exits a chat room.
func (s *Session) LeaveRoom(room jid.JID, nick string) error {
	to, err := room.WithResource(nick)
	if err != nil {
		return err
	}
	s.SendPresence(stanza.Presence{To: to, Type: stanza.UnavailablePresence}, nil)
	return nil
}
