// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xows

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/iquercorb/xows-sub001/jid"
)

func chatFrame(i int) string {
	return fmt.Sprintf(
		`<message from='juliet@example.org/balcony' to='user@example.org/web' type='chat'><body>m%d</body></message>`, i)
}

func TestAckThreshold(t *testing.T) {
	s, sock, _ := newEstablished(t)
	s.Recv(smEnabled)

	for i := 0; i < smAckAfter-1; i++ {
		s.Recv(chatFrame(i))
	}
	if n := sock.count("<a xmlns="); n != 0 {
		t.Fatalf("acknowledged %d times before the threshold", n)
	}
	s.Recv(chatFrame(smAckAfter - 1))
	if n := sock.count("<a xmlns='urn:xmpp:sm:3' h='10'/>"); n != 1 {
		t.Fatalf("want exactly one <a h='10'/>, sent: %q", sock.Sent())
	}

	if handled, resumeID := s.SMState(); handled != 10 || resumeID != "prev1" {
		t.Errorf("wrong management state: handled=%d previd=%q", handled, resumeID)
	}

	// An explicit request is answered immediately.
	s.Recv(`<r xmlns='urn:xmpp:sm:3'/>`)
	if n := sock.count("<a xmlns='urn:xmpp:sm:3' h='10'/>"); n != 2 {
		t.Errorf("request not answered: %q", sock.Sent())
	}
}

func TestAckIdleTimer(t *testing.T) {
	rec := &recorder{}
	s := NewSession(testConfig(), rec.handlers())
	s.sm.ackIdle = 10 * time.Millisecond
	sock := &fakeSocket{}
	establish(t, s, sock)
	s.Recv(smEnabled)

	for i := 0; i < 3; i++ {
		s.Recv(chatFrame(i))
	}
	if n := sock.count("<a xmlns="); n != 0 {
		t.Fatal("acknowledged before the idle window expired")
	}
	waitUntil(t, func() bool {
		return sock.count("<a xmlns='urn:xmpp:sm:3' h='3'/>") == 1
	})
}

func TestRequestThreshold(t *testing.T) {
	s, sock, _ := newEstablished(t)
	s.Recv(smEnabled)

	to := jid.MustParse("juliet@example.org")
	for i := 0; i < smAckAfter; i++ {
		s.SendChat(to, fmt.Sprintf("out%d", i))
	}
	if n := sock.count("<r xmlns='urn:xmpp:sm:3'/>"); n != 1 {
		t.Fatalf("want exactly one <r/>, sent: %q", sock.Sent())
	}

	s.Recv(`<a xmlns='urn:xmpp:sm:3' h='10'/>`)
	s.mu.Lock()
	acked := s.sm.acked
	s.mu.Unlock()
	if acked != 10 {
		t.Errorf("acknowledgement not recorded: %d", acked)
	}
}

func TestManagementFramesNotCounted(t *testing.T) {
	s, _, _ := newEstablished(t)
	s.Recv(smEnabled)

	s.Recv(`<a xmlns='urn:xmpp:sm:3' h='0'/>`)
	s.Recv(`<r xmlns='urn:xmpp:sm:3'/>`)
	s.Recv(chatFrame(0))
	if handled, _ := s.SMState(); handled != 1 {
		t.Errorf("management frames were counted: handled=%d", handled)
	}
}

func TestResume(t *testing.T) {
	s, _, rec := newEstablished(t)
	s.Recv(smEnabled)
	for i := 0; i < 3; i++ {
		s.Recv(chatFrame(i))
	}

	s.Closed(1006, "network lost")
	rec.mu.Lock()
	if len(rec.closed) != 1 || rec.closed[0] != FailureHangup {
		rec.mu.Unlock()
		t.Fatalf("expected one hangup failure, got %v", rec.closed)
	}
	rec.mu.Unlock()
	if !s.CanResume() {
		t.Fatal("session not resumable after hangup")
	}

	// Traffic submitted while offline is queued for the resumed stream.
	s.SendChat(jid.MustParse("juliet@example.org"), "while away")

	sock2 := &fakeSocket{}
	s.Attach(sock2)
	s.Open()
	authenticate(t, s)
	s.Recv(bindFeatures)

	if sock2.count("<resume xmlns='urn:xmpp:sm:3' previd='prev1' h='3'/>") != 1 {
		t.Fatalf("resume not attempted: %q", sock2.Sent())
	}
	s.Recv(`<resumed xmlns='urn:xmpp:sm:3' previd='prev1' h='0'/>`)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.ready) != 2 || !rec.resumed[1] {
		t.Fatalf("resumed session not reported: ready=%d", len(rec.ready))
	}
	if got := rec.ready[1].Full.String(); got != "user@example.org/web" {
		t.Errorf("bound address lost across resumption: %s", got)
	}
	if sock2.count("while away") != 1 {
		t.Errorf("offline queue not flushed after resumption: %q", sock2.Sent())
	}
}

func TestResumeFallbackToBind(t *testing.T) {
	s, _, rec := newEstablished(t)
	s.Recv(smEnabled)
	s.Closed(1006, "network lost")

	sock2 := &fakeSocket{}
	s.Attach(sock2)
	s.Open()
	authenticate(t, s)
	s.Recv(bindFeatures)
	if sock2.count("<resume ") != 1 {
		t.Fatalf("resume not attempted: %q", sock2.Sent())
	}

	s.Recv(`<failed xmlns='urn:xmpp:sm:3'><item-not-found xmlns='urn:ietf:params:xml:ns:xmpp-stanzas'/></failed>`)
	found := false
	for _, frame := range sock2.Sent() {
		if strings.Contains(frame, "urn:ietf:params:xml:ns:xmpp-bind") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no bind after refused resumption: %q", sock2.Sent())
	}
	id := lastIQID(t, sock2)
	s.Recv(`<iq id='` + id + `' type='result'>` +
		`<bind xmlns='urn:ietf:params:xml:ns:xmpp-bind'><jid>user@example.org/web2</jid></bind></iq>`)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.ready) != 2 || rec.resumed[1] {
		t.Fatalf("fresh bind not reported: ready=%v resumed=%v", len(rec.ready), rec.resumed)
	}
	if got := rec.ready[1].Resource; got != "web2" {
		t.Errorf("wrong rebound resource: %s", got)
	}
	if handled, _ := s.SMState(); handled != 0 {
		t.Errorf("counters survived refused resumption: %d", handled)
	}
}
