// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xows

import (
	"encoding/xml"

	"mellium.im/xmlstream"

	"github.com/iquercorb/xows-sub001/ns"
	"github.com/iquercorb/xows-sub001/stanza"
)

// startRegisterLocked begins in-band account creation (XEP-0077) on a
// stream that advertised the registration feature. On success the session
// proceeds to authenticate with the freshly created credentials.
func (s *Session) startRegisterLocked() {
	s.state = stateRegistering
	payload := xmlstream.Wrap(nil, xml.StartElement{
		Name: xml.Name{Space: ns.Register, Local: "query"},
	})
	s.queryLocked(stanza.IQ{Type: stanza.GetIQ}, payload, s.registerFieldsLocked)
}

func (s *Session) registerFieldsLocked(iq stanza.IQ) {
	if iq.Type != stanza.ResultIQ {
		s.scheduleFailureLocked(FailureRegister, registerErrText(iq.Error))
		return
	}
	var fields struct {
		Registered *stanza.Empty `xml:"registered"`
	}
	if err := xml.Unmarshal([]byte(iq.Inner), &fields); err == nil && fields.Registered != nil {
		s.log.Info("account already registered", "username", s.cfg.Origin.Localpart())
		s.cfg.Register = false
		s.startSASLLocked()
		return
	}

	// Plain username and password registration; data form driven flows
	// are left to the server's fallback fields.
	inner := xmlstream.MultiReader(
		wrapText("username", s.cfg.Origin.Localpart()),
		wrapText("password", s.password),
	)
	payload := xmlstream.Wrap(inner, xml.StartElement{
		Name: xml.Name{Space: ns.Register, Local: "query"},
	})
	s.queryLocked(stanza.IQ{Type: stanza.SetIQ}, payload, s.registerResultLocked)
}

func (s *Session) registerResultLocked(iq stanza.IQ) {
	if iq.Type != stanza.ResultIQ {
		text := registerErrText(iq.Error)
		if iq.Error != nil && iq.Error.Condition == stanza.Conflict {
			text = "username already exists"
		}
		s.scheduleFailureLocked(FailureRegister, text)
		return
	}
	s.log.Info("account registered", "username", s.cfg.Origin.Localpart())
	s.cfg.Register = false
	s.startSASLLocked()
}

func registerErrText(e *stanza.Error) string {
	switch {
	case e == nil:
		return "registration refused"
	case e.Condition == stanza.NotAcceptable:
		return "username contains invalid characters"
	}
	return "registration refused: " + e.Error()
}
