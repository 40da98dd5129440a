// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xows

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"mellium.im/sasl"

	"github.com/iquercorb/xows-sub001/ns"
)

// startSASLLocked selects the first configured mechanism also offered by
// the server and transmits the initial authentication request.
func (s *Session) startSASLLocked() {
	var mech sasl.Mechanism
outer:
	for _, m := range s.cfg.Mechanisms {
		for _, offered := range s.offered {
			if offered == m.Name {
				mech = m
				break outer
			}
		}
	}
	if mech.Name == "" {
		s.failureLocked(FailureAuth, "no mutually supported authentication mechanism")
		return
	}

	// The live password is consumed here; silent re-authentication, for
	// instance when resuming a dropped stream, runs on the saved copy.
	username := s.cfg.Origin.Localpart()
	password := s.password
	s.password = ""
	if password == "" {
		saved := s.authSaved
		if saved == nil || saved.Mechanism != mech.Name {
			s.failureLocked(FailureAuth, "no stored credentials for "+mech.Name)
			return
		}
		username, password = saved.Username, saved.Password
	}
	s.pendSave = &StoredAuth{Mechanism: mech.Name, Username: username, Password: password}
	s.authMech = mech.Name

	creds := sasl.Credentials(func() ([]byte, []byte, []byte) {
		return []byte(username), []byte(password), nil
	})
	s.neg = sasl.NewClient(mech, creds, sasl.RemoteMechanisms(s.offered...))

	more, resp, err := s.neg.Step(nil)
	if err != nil {
		s.failureLocked(FailureAuth, "authentication failed: "+err.Error())
		return
	}
	s.negMore = more

	// RFC 6120 §6.4.2: an intentionally empty initial response is "=".
	payload := "="
	if len(resp) > 0 {
		payload = base64.StdEncoding.EncodeToString(resp)
	}
	s.state = stateAuthenticating
	s.log.Debug("authenticating", "mechanism", mech.Name)
	s.transmitLocked(fmt.Sprintf("<auth xmlns='%s' mechanism='%s'>%s</auth>",
		ns.SASL, mech.Name, payload), false)
}

func saslPayload(data string) ([]byte, error) {
	var text struct {
		Data string `xml:",chardata"`
	}
	if err := xml.Unmarshal([]byte(data), &text); err != nil {
		return nil, err
	}
	raw := strings.TrimSpace(text.Data)
	if raw == "" || raw == "=" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(raw)
}

func (s *Session) handleSASLLocked(start xml.StartElement, data string) {
	if s.state != stateAuthenticating || s.neg == nil {
		s.log.Warn("unexpected authentication element dropped", "name", start.Name.Local)
		return
	}
	switch start.Name.Local {
	case "challenge":
		s.saslChallengeLocked(data)
	case "success":
		s.saslSuccessLocked(data)
	case "failure":
		s.saslFailureLocked(data)
	default:
		s.log.Debug("unhandled authentication element dropped", "name", start.Name.Local)
	}
}

func (s *Session) saslChallengeLocked(data string) {
	challenge, err := saslPayload(data)
	if err != nil {
		s.failureLocked(FailureAuth, "malformed authentication challenge: "+err.Error())
		return
	}
	more, resp, err := s.neg.Step(challenge)
	if err != nil {
		s.failureLocked(FailureAuth, "authentication failed: "+err.Error())
		return
	}
	s.negMore = more
	s.transmitLocked(fmt.Sprintf("<response xmlns='%s'>%s</response>",
		ns.SASL, base64.StdEncoding.EncodeToString(resp)), false)
}

func (s *Session) saslSuccessLocked(data string) {
	payload, err := saslPayload(data)
	if err != nil {
		s.failureLocked(FailureAuth, "malformed authentication success: "+err.Error())
		return
	}
	if s.negMore {
		// SCRAM carries the server signature in the success payload;
		// the final step verifies it.
		if _, _, err := s.neg.Step(payload); err != nil {
			s.failureLocked(FailureAuth, "server signature verification failed")
			return
		}
	}
	s.neg = nil
	s.negMore = false
	s.authSaved = s.pendSave
	s.pendSave = nil
	if s.cfg.SaveAuth && s.h.SaveAuth != nil && s.authSaved != nil {
		saved := *s.authSaved
		s.emit(func() { s.h.SaveAuth(saved) })
	}
	s.log.Info("authenticated", "mechanism", s.authMech)

	// Restart the stream on the same socket; the server answers with a
	// fresh open and the post-authentication features.
	s.state = stateNegotiating
	s.transmitLocked(openFrame(s.cfg.Origin.Domainpart()), false)
}

func (s *Session) saslFailureLocked(data string) {
	var failure struct {
		Condition struct {
			XMLName xml.Name
		} `xml:",any"`
		Text string `xml:"text"`
	}
	cond := ""
	if err := xml.Unmarshal([]byte(data), &failure); err == nil {
		cond = failure.Condition.XMLName.Local
	}
	s.neg = nil
	s.negMore = false
	s.pendSave = nil

	var text string
	switch cond {
	case "", "not-authorized":
		text = "invalid username or password"
	default:
		text = "authentication refused: " + cond
	}
	if failure.Text != "" {
		text += ": " + failure.Text
	}
	s.scheduleFailureLocked(FailureAuth, text)
}
