// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xows

import (
	"testing"
	"time"

	"github.com/iquercorb/xows-sub001/stanza"
)

func TestLiveMessageEvent(t *testing.T) {
	s, _, rec := newEstablished(t)

	s.Recv(`<message from='juliet@example.org/balcony' to='user@example.org/web' id='m1' type='chat'>` +
		`<body>wherefore art thou</body>` +
		`<origin-id xmlns='urn:xmpp:sid:0' id='o1'/>` +
		`<stanza-id xmlns='urn:xmpp:sid:0' id='sid1' by='user@example.org'/>` +
		`<request xmlns='urn:xmpp:receipts'/>` +
		`<active xmlns='http://jabber.org/protocol/chatstates'/>` +
		`<x xmlns='jabber:x:oob'><url>https://example.org/up/f.png</url></x>` +
		`</message>`)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.msgs) != 1 {
		t.Fatalf("message events: %d, want 1", len(rec.msgs))
	}
	m := rec.msgs[0]
	if m.ID != "m1" || m.Body != "wherefore art thou" || m.Type != stanza.ChatMessage {
		t.Errorf("wrong message: %+v", m)
	}
	if m.OriginID != "o1" || m.StanzaID != "sid1" {
		t.Errorf("wrong stable ids: origin=%q stanza=%q", m.OriginID, m.StanzaID)
	}
	if !m.ReceiptReq || m.URL != "https://example.org/up/f.png" {
		t.Errorf("wrong extensions: %+v", m)
	}
	if m.Archived || m.CarbonSent {
		t.Errorf("live message mislabeled: %+v", m)
	}
	if time.Since(m.Time) > time.Minute {
		t.Errorf("live message not stamped with processing time: %v", m.Time)
	}
	// A message with a body never fires a separate chat state event.
	if len(rec.states) != 0 {
		t.Errorf("body message fired chat state events: %+v", rec.states)
	}
}

func TestDelayedMessageTimestamp(t *testing.T) {
	s, _, rec := newEstablished(t)

	s.Recv(`<message from='juliet@example.org/balcony' type='chat'>` +
		`<body>offline</body>` +
		`<delay xmlns='urn:xmpp:delay' stamp='2024-03-01T08:30:00Z'/>` +
		`</message>`)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	if len(rec.msgs) != 1 || !rec.msgs[0].Time.Equal(want) {
		t.Fatalf("delay stamp not honored: %+v", rec.msgs)
	}
}

func TestChatStateReceiptRetract(t *testing.T) {
	s, _, rec := newEstablished(t)

	s.Recv(`<message from='juliet@example.org/balcony' type='chat'>` +
		`<composing xmlns='http://jabber.org/protocol/chatstates'/></message>`)
	s.Recv(`<message from='juliet@example.org/balcony' type='chat'>` +
		`<received xmlns='urn:xmpp:receipts' id='m1'/></message>`)
	s.Recv(`<message from='juliet@example.org/balcony' type='chat'>` +
		`<retract xmlns='urn:xmpp:message-retract:1' id='o1'/></message>`)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.states) != 1 || rec.states[0].State != stanza.StateComposing {
		t.Errorf("wrong chat state events: %+v", rec.states)
	}
	if len(rec.receipts) != 1 || rec.receipts[0].ID != "m1" {
		t.Errorf("wrong receipt events: %+v", rec.receipts)
	}
	if len(rec.retracts) != 1 || rec.retracts[0].ID != "o1" {
		t.Errorf("wrong retract events: %+v", rec.retracts)
	}
	if len(rec.msgs) != 0 {
		t.Errorf("bodyless notifications produced message events: %+v", rec.msgs)
	}
}

func TestCarbonUnwrap(t *testing.T) {
	s, _, rec := newEstablished(t)

	// A received carbon from our own account is unwrapped.
	s.Recv(`<message from='user@example.org' to='user@example.org/web' type='chat'>` +
		`<received xmlns='urn:xmpp:carbons:2'><forwarded xmlns='urn:xmpp:forward:0'>` +
		`<message xmlns='jabber:client' from='juliet@example.org/balcony' to='user@example.org/tablet' type='chat'>` +
		`<body>for the other device</body></message>` +
		`</forwarded></received></message>`)

	// A sent carbon marks the copy accordingly.
	s.Recv(`<message from='user@example.org' to='user@example.org/web' type='chat'>` +
		`<sent xmlns='urn:xmpp:carbons:2'><forwarded xmlns='urn:xmpp:forward:0'>` +
		`<message xmlns='jabber:client' from='user@example.org/tablet' to='juliet@example.org' type='chat'>` +
		`<body>sent elsewhere</body></message>` +
		`</forwarded></sent></message>`)

	// Carbons from anyone else are forgeries and must be dropped.
	s.Recv(`<message from='mallory@evil.example' to='user@example.org/web' type='chat'>` +
		`<received xmlns='urn:xmpp:carbons:2'><forwarded xmlns='urn:xmpp:forward:0'>` +
		`<message xmlns='jabber:client' from='mallory@evil.example' type='chat'>` +
		`<body>spoofed</body></message>` +
		`</forwarded></received></message>`)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.msgs) != 2 {
		t.Fatalf("carbon events: %d, want 2: %+v", len(rec.msgs), rec.msgs)
	}
	if rec.msgs[0].From.String() != "juliet@example.org/balcony" || rec.msgs[0].CarbonSent {
		t.Errorf("wrong received carbon: %+v", rec.msgs[0])
	}
	if rec.msgs[1].Body != "sent elsewhere" || !rec.msgs[1].CarbonSent {
		t.Errorf("wrong sent carbon: %+v", rec.msgs[1])
	}
}

func TestPresenceEvent(t *testing.T) {
	s, _, rec := newEstablished(t)

	s.Recv(`<presence from='juliet@example.org/balcony'>` +
		`<show>away</show><status>stargazing</status><priority>5</priority>` +
		`<x xmlns='vcard-temp:x:update'><photo>a1b2c3</photo></x>` +
		`</presence>`)
	s.Recv(`<presence from='nurse@example.org' type='subscribe'>` +
		`<nick xmlns='http://jabber.org/protocol/nick'>Nurse</nick></presence>`)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.pres) != 1 {
		t.Fatalf("presence events: %d, want 1", len(rec.pres))
	}
	p := rec.pres[0]
	if p.Show != "away" || p.Status != "stargazing" || p.Priority != 5 {
		t.Errorf("wrong presence: %+v", p)
	}
	if p.AvatarHash != "a1b2c3" {
		t.Errorf("avatar hash not extracted: %+v", p)
	}
	if len(rec.subs) != 1 || rec.subs[0].String() != "nurse@example.org" {
		t.Errorf("subscription request not reported: %+v", rec.subs)
	}
}

func TestOccupantEvent(t *testing.T) {
	s, _, rec := newEstablished(t)

	s.Recv(`<presence from='chamber@rooms.example.org/Romeo'>` +
		`<x xmlns='http://jabber.org/protocol/muc#user'>` +
		`<item affiliation='member' role='participant' jid='user@example.org/web'/>` +
		`<status code='110'/></x>` +
		`<occupant-id xmlns='urn:xmpp:occupant-id:0' id='occ-1'/>` +
		`</presence>`)
	s.Recv(`<presence from='chamber@rooms.example.org/Tybalt' type='unavailable'>` +
		`<x xmlns='http://jabber.org/protocol/muc#user'>` +
		`<item affiliation='none' role='none'/>` +
		`<status code='333'/></x>` +
		`</presence>`)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.occs) != 2 {
		t.Fatalf("occupant events: %d, want 2", len(rec.occs))
	}
	self := rec.occs[0]
	if !self.Self || self.Nick != "Romeo" || self.Affiliation != "member" || self.OccupantID != "occ-1" {
		t.Errorf("wrong self occupant: %+v", self)
	}
	if self.RealJID.String() != "user@example.org/web" {
		t.Errorf("real address not extracted: %+v", self)
	}
	gone := rec.occs[1]
	if !gone.Kicked || gone.Type != stanza.UnavailablePresence || gone.Nick != "Tybalt" {
		t.Errorf("wrong kicked occupant: %+v", gone)
	}
}

func TestPubsubNotice(t *testing.T) {
	s, _, _ := newEstablished(t)
	var notices []PubsubNotice
	s.h.Pubsub = func(ev PubsubNotice) { notices = append(notices, ev) }

	s.Recv(`<message from='juliet@example.org' type='headline'>` +
		`<event xmlns='http://jabber.org/protocol/pubsub#event'>` +
		`<items node='urn:xmpp:avatar:metadata'>` +
		`<item id='i1'><metadata xmlns='urn:xmpp:avatar:metadata'/></item>` +
		`</items></event></message>`)

	if len(notices) != 1 {
		t.Fatalf("pubsub events: %d, want 1", len(notices))
	}
	if notices[0].Node != "urn:xmpp:avatar:metadata" || len(notices[0].Items) != 1 || notices[0].Items[0].ID != "i1" {
		t.Errorf("wrong pubsub notice: %+v", notices[0])
	}
}
