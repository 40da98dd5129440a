// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza_test

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"testing"
	"time"

	"mellium.im/xmlstream"

	"github.com/iquercorb/xows-sub001/stanza"
)

func marshalReader(t *testing.T, r xml.TokenReader) string {
	t.Helper()
	var buf bytes.Buffer
	e := xml.NewEncoder(&buf)
	if _, err := xmlstream.Copy(e, r); err != nil {
		t.Fatalf("error encoding: %v", err)
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("error flushing: %v", err)
	}
	return buf.String()
}

func TestIQWrap(t *testing.T) {
	iq := stanza.IQ{ID: "a1", Type: stanza.GetIQ}
	out := marshalReader(t, iq.Wrap(xmlstream.Wrap(nil, xml.StartElement{
		Name: xml.Name{Space: "urn:xmpp:ping", Local: "ping"},
	})))
	const want = `<iq id="a1" type="get"><ping xmlns="urn:xmpp:ping"></ping></iq>`
	if out != want {
		t.Errorf("wrong encoding:\nwant=%s\n got=%s", want, out)
	}
}

func TestMessageUnmarshalExtensions(t *testing.T) {
	const data = `<message xmlns='jabber:client' from='juliet@example.org/balcony' type='chat' id='m1'>` +
		`<body>I take thee at thy word</body>` +
		`<active xmlns='http://jabber.org/protocol/chatstates'/>` +
		`<request xmlns='urn:xmpp:receipts'/>` +
		`<replace xmlns='urn:xmpp:message-correct:0' id='m0'/>` +
		`<origin-id xmlns='urn:xmpp:sid:0' id='o1'/>` +
		`<stanza-id xmlns='urn:xmpp:sid:0' id='s1' by='example.org'/>` +
		`<delay xmlns='urn:xmpp:delay' stamp='2024-04-01T12:00:00Z'/>` +
		`</message>`
	var msg stanza.Message
	if err := xml.Unmarshal([]byte(data), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Body != "I take thee at thy word" {
		t.Errorf("wrong body: %q", msg.Body)
	}
	if msg.Kind() != stanza.ExtBody {
		t.Errorf("wrong kind: %v", msg.Kind())
	}
	if msg.State() != stanza.StateActive {
		t.Errorf("wrong chat state: %v", msg.State())
	}
	if msg.ReceiptReq == nil {
		t.Error("missing receipt request")
	}
	if msg.Replace == nil || msg.Replace.ID != "m0" {
		t.Errorf("wrong replace: %+v", msg.Replace)
	}
	if msg.OriginID == nil || msg.OriginID.ID != "o1" {
		t.Errorf("wrong origin-id: %+v", msg.OriginID)
	}
	if got := msg.StanzaID(msg.From.Domain()); got != "s1" {
		t.Errorf("wrong stanza-id: %q", got)
	}
	want := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	if !msg.Timestamp(time.Now()).Equal(want) {
		t.Errorf("wrong timestamp: %v", msg.Timestamp(time.Now()))
	}
}

func TestMessageKind(t *testing.T) {
	cases := [...]struct {
		data string
		want stanza.ExtKind
	}{
		0: {`<message><body>hi</body></message>`, stanza.ExtBody},
		1: {`<message><composing xmlns='http://jabber.org/protocol/chatstates'/></message>`, stanza.ExtChatState},
		2: {`<message><received xmlns='urn:xmpp:receipts' id='m1'/></message>`, stanza.ExtReceipt},
		3: {`<message><retract xmlns='urn:xmpp:message-retract:1' id='m1'/></message>`, stanza.ExtRetract},
		4: {`<message><result xmlns='urn:xmpp:mam:2' queryid='q' id='p1'/></message>`, stanza.ExtArchive},
		5: {`<message><sent xmlns='urn:xmpp:carbons:2'/></message>`, stanza.ExtCarbon},
		6: {`<message><event xmlns='http://jabber.org/protocol/pubsub#event'/></message>`, stanza.ExtPubsub},
		7: {`<message/>`, stanza.ExtNone},
	}
	for i, tc := range cases {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			var msg stanza.Message
			if err := xml.Unmarshal([]byte(tc.data), &msg); err != nil {
				t.Fatal(err)
			}
			if got := msg.Kind(); got != tc.want {
				t.Errorf("wrong kind: want=%d, got=%d", tc.want, got)
			}
		})
	}
}

func TestErrorRoundTrip(t *testing.T) {
	e := stanza.Error{
		Type:      stanza.Cancel,
		Condition: stanza.ItemNotFound,
		Text:      "no such archive",
	}
	out := marshalReader(t, e.TokenReader())
	var decoded stanza.Error
	if err := xml.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Condition != stanza.ItemNotFound {
		t.Errorf("wrong condition: %q", decoded.Condition)
	}
	if decoded.Type != stanza.Cancel {
		t.Errorf("wrong type: %q", decoded.Type)
	}
	if decoded.Text != "no such archive" {
		t.Errorf("wrong text: %q", decoded.Text)
	}
}

func TestErrorUnmarshalWire(t *testing.T) {
	const data = `<error type='auth' code='401'>` +
		`<not-authorized xmlns='urn:ietf:params:xml:ns:xmpp-stanzas'/>` +
		`<text xmlns='urn:ietf:params:xml:ns:xmpp-stanzas'>bad password</text>` +
		`</error>`
	var decoded stanza.Error
	if err := xml.Unmarshal([]byte(data), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Condition != stanza.NotAuthorized {
		t.Errorf("wrong condition: %q", decoded.Condition)
	}
	if decoded.Code != 401 {
		t.Errorf("wrong code: %d", decoded.Code)
	}
	if decoded.Error() != "not-authorized: bad password" {
		t.Errorf("wrong error string: %q", decoded.Error())
	}
}

func TestForwardedMessage(t *testing.T) {
	const data = `<message from='romeo@example.org'>` +
		`<result xmlns='urn:xmpp:mam:2' queryid='q7' id='page9'>` +
		`<forwarded xmlns='urn:xmpp:forward:0'>` +
		`<delay xmlns='urn:xmpp:delay' stamp='2023-11-05T09:30:00Z'/>` +
		`<message xmlns='jabber:client' from='juliet@example.org/balcony' type='chat'><body>archived</body></message>` +
		`</forwarded></result></message>`
	var msg stanza.Message
	if err := xml.Unmarshal([]byte(data), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Result == nil || msg.Result.QueryID != "q7" || msg.Result.ID != "page9" {
		t.Fatalf("wrong result attrs: %+v", msg.Result)
	}
	fwd := msg.Result.Forwarded
	if fwd == nil || fwd.Message == nil {
		t.Fatal("missing forwarded message")
	}
	if fwd.Message.Body != "archived" {
		t.Errorf("wrong forwarded body: %q", fwd.Message.Body)
	}
	if fwd.Delay == nil || fwd.Delay.Stamp.IsZero() {
		t.Error("missing forwarded delay stamp")
	}
}

func TestPresenceUnmarshalMUC(t *testing.T) {
	const data = `<presence from='room@muc.example.org/Nurse' xmlns='jabber:client'>` +
		`<x xmlns='http://jabber.org/protocol/muc#user'>` +
		`<item affiliation='member' role='participant' jid='nurse@example.org/pda'/>` +
		`<status code='110'/>` +
		`</x></presence>`
	var p stanza.Presence
	if err := xml.Unmarshal([]byte(data), &p); err != nil {
		t.Fatal(err)
	}
	if p.MUCUser == nil {
		t.Fatal("missing MUC user extension")
	}
	if !p.MUCUser.SelfStatus() {
		t.Error("expected self status code 110")
	}
	if len(p.MUCUser.Items) != 1 || p.MUCUser.Items[0].Role != "participant" {
		t.Errorf("wrong items: %+v", p.MUCUser.Items)
	}
}

func TestPresenceWrap(t *testing.T) {
	p := stanza.Presence{Show: "away", Status: "gone fishing", Priority: 5}
	out := marshalReader(t, p.Wrap(nil))
	const want = `<presence><show>away</show><status>gone fishing</status><priority>5</priority></presence>`
	if out != want {
		t.Errorf("wrong encoding:\nwant=%s\n got=%s", want, out)
	}
}
