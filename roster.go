// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xows

import (
	"encoding/xml"

	"mellium.im/xmlstream"

	"github.com/iquercorb/xows-sub001/jid"
	"github.com/iquercorb/xows-sub001/ns"
	"github.com/iquercorb/xows-sub001/stanza"
)

type rosterItem struct {
	JID          jid.JID  `xml:"jid,attr"`
	Name         string   `xml:"name,attr"`
	Subscription string   `xml:"subscription,attr"`
	Ask          string   `xml:"ask,attr"`
	Groups       []string `xml:"group"`
}

type rosterQuery struct {
	XMLName xml.Name     `xml:"jabber:iq:roster query"`
	Ver     string       `xml:"ver,attr,omitempty"`
	Items   []rosterItem `xml:"item"`
}

func (it rosterItem) event() RosterItem {
	return RosterItem{
		JID:          it.JID,
		Name:         it.Name,
		Subscription: it.Subscription,
		Ask:          it.Ask == "subscribe",
		Groups:       it.Groups,
	}
}

// FetchRoster requests the contact list. The callback receives the items
// and roster version, or the stanza error returned by the server.
func (s *Session) FetchRoster(cb func(items []RosterItem, ver string, err *stanza.Error)) {
	s.dispatch(func() {
		payload := xmlstream.Wrap(nil, xml.StartElement{
			Name: xml.Name{Space: ns.Roster, Local: "query"},
		})
		s.queryLocked(stanza.IQ{Type: stanza.GetIQ}, payload, func(iq stanza.IQ) {
			if cb == nil {
				return
			}
			if iq.Type != stanza.ResultIQ {
				e := iq.Error
				if e == nil {
					e = &stanza.Error{Condition: stanza.UndefinedCondition}
				}
				s.emit(func() { cb(nil, "", e) })
				return
			}
			var q rosterQuery
			if err := xml.Unmarshal([]byte(iq.Inner), &q); err != nil {
				s.log.Warn("malformed roster result", "err", err)
				s.emit(func() {
					cb(nil, "", &stanza.Error{Condition: stanza.BadRequest, Text: err.Error()})
				})
				return
			}
			items := make([]RosterItem, 0, len(q.Items))
			for _, it := range q.Items {
				items = append(items, it.event())
			}
			ver := q.Ver
			s.emit(func() { cb(items, ver, nil) })
		})
	})
}

func rosterSetPayload(item RosterItem, remove bool) xml.TokenReader {
	start := xml.StartElement{
		Name: xml.Name{Local: "item"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "jid"}, Value: item.JID.String()}},
	}
	if remove {
		start.Attr = append(start.Attr, xml.Attr{
			Name: xml.Name{Local: "subscription"}, Value: "remove",
		})
	} else if item.Name != "" {
		start.Attr = append(start.Attr, xml.Attr{
			Name: xml.Name{Local: "name"}, Value: item.Name,
		})
	}
	var groups []xml.TokenReader
	if !remove {
		for _, g := range item.Groups {
			groups = append(groups, wrapText("group", g))
		}
	}
	return xmlstream.Wrap(
		xmlstream.Wrap(xmlstream.MultiReader(groups...), start),
		xml.StartElement{Name: xml.Name{Space: ns.Roster, Local: "query"}},
	)
}

func (s *Session) rosterSet(item RosterItem, remove bool, cb func(err *stanza.Error)) {
	s.dispatch(func() {
		s.queryLocked(stanza.IQ{Type: stanza.SetIQ}, rosterSetPayload(item, remove), func(iq stanza.IQ) {
			if cb == nil {
				return
			}
			var e *stanza.Error
			if iq.Type != stanza.ResultIQ {
				e = iq.Error
				if e == nil {
					e = &stanza.Error{Condition: stanza.UndefinedCondition}
				}
			}
			err := e
			s.emit(func() { cb(err) })
		})
	})
}

// UpdateRoster adds or updates a contact list entry.
func (s *Session) UpdateRoster(item RosterItem, cb func(err *stanza.Error)) {
	s.rosterSet(item, false, cb)
}

// RemoveContact deletes a contact list entry, cancelling any subscription.
func (s *Session) RemoveContact(contact jid.JID, cb func(err *stanza.Error)) {
	s.rosterSet(RosterItem{JID: contact}, true, cb)
}

// rosterPushLocked handles a server initiated roster update. Pushes not
// originating from the user's own account are ignored (RFC 6121 §2.1.6).
func (s *Session) rosterPushLocked(iq stanza.IQ) {
	from := iq.From
	if !from.IsZero() && !from.Equal(s.bind.Bare) && !from.Equal(s.bind.Bare.Domain()) {
		s.log.Warn("roster push from foreign sender dropped", "from", from.String())
		return
	}
	var q rosterQuery
	if err := xml.Unmarshal([]byte(iq.Inner), &q); err != nil {
		s.log.Warn("malformed roster push dropped", "err", err)
		return
	}
	if s.h.RosterPush != nil {
		for _, it := range q.Items {
			ev, ver := it.event(), q.Ver
			s.emit(func() { s.h.RosterPush(ev, ver) })
		}
	}
	s.replyResultLocked(iq)
}
