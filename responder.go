// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xows

import (
	"encoding/xml"
	"fmt"
	"time"

	"mellium.im/xmlstream"

	"github.com/iquercorb/xows-sub001/ns"
	"github.com/iquercorb/xows-sub001/stanza"
)

func (s *Session) handleIQLocked(data string) {
	var iq stanza.IQ
	if err := xml.Unmarshal([]byte(data), &iq); err != nil {
		s.log.Warn("malformed iq dropped", "err", err)
		return
	}
	switch iq.Type {
	case stanza.ResultIQ, stanza.ErrorIQ:
		q, ok := s.pending[iq.ID]
		if !ok {
			if iq.Type == stanza.ErrorIQ && iq.Error != nil {
				s.stanzaErrorLocked(iq.From, *iq.Error)
				return
			}
			s.log.Debug("reply to unknown query dropped", "id", iq.ID)
			return
		}
		delete(s.pending, iq.ID)
		if q.user {
			fn, res := q.fn, iq
			s.emit(func() { fn(res) })
			return
		}
		q.fn(iq)
	case stanza.GetIQ:
		s.respondGetLocked(iq)
	case stanza.SetIQ:
		s.respondSetLocked(iq)
	}
}

// payloadName returns the name of the first payload element of an IQ.
func payloadName(inner string) xml.Name {
	start, err := frameRoot(inner)
	if err != nil {
		return xml.Name{}
	}
	return start.Name
}

func (s *Session) respondGetLocked(iq stanza.IQ) {
	switch payloadName(iq.Inner).Space {
	case ns.Ping:
		s.replyResultLocked(iq)
	case ns.Time:
		s.replyLocked(iq.Result(), timePayload(time.Now()))
	case ns.Version:
		s.replyLocked(iq.Result(), s.versionPayload())
	case ns.DiscoInfo:
		s.replyLocked(iq.Result(), s.discoPayload())
	default:
		s.replyErrorLocked(iq, stanza.Error{
			Type:      stanza.Cancel,
			Condition: stanza.ServiceUnavailable,
		})
	}
}

func (s *Session) respondSetLocked(iq stanza.IQ) {
	switch payloadName(iq.Inner).Space {
	case ns.Roster:
		s.rosterPushLocked(iq)
	default:
		if s.h.Command != nil {
			s.replyResultLocked(iq)
			fn, q := s.h.Command, iq
			s.emit(func() { fn(q) })
			return
		}
		s.replyErrorLocked(iq, stanza.Error{
			Type:      stanza.Cancel,
			Condition: stanza.ServiceUnavailable,
		})
	}
}

func (s *Session) replyLocked(reply stanza.IQ, payload xml.TokenReader) {
	data, err := serialize(reply.Wrap(payload))
	if err != nil {
		s.log.Error("reply encoding failed", "err", err)
		return
	}
	s.transmitLocked(data, true)
}

func (s *Session) replyResultLocked(iq stanza.IQ) {
	s.replyLocked(iq.Result(), nil)
}

func (s *Session) replyErrorLocked(iq stanza.IQ, e stanza.Error) {
	reply, payload := iq.ErrorReply(e)
	s.replyLocked(reply, payload)
}

func wrapText(local, data string) xml.TokenReader {
	return xmlstream.Wrap(
		xmlstream.Token(xml.CharData(data)),
		xml.StartElement{Name: xml.Name{Local: local}},
	)
}

func timePayload(now time.Time) xml.TokenReader {
	_, off := now.Zone()
	sign := "+"
	if off < 0 {
		sign = "-"
		off = -off
	}
	tzo := fmt.Sprintf("%s%02d:%02d", sign, off/3600, (off%3600)/60)
	return xmlstream.Wrap(
		xmlstream.MultiReader(
			wrapText("tzo", tzo),
			wrapText("utc", now.UTC().Format(time.RFC3339)),
		),
		xml.StartElement{Name: xml.Name{Space: ns.Time, Local: "time"}},
	)
}

func (s *Session) versionPayload() xml.TokenReader {
	return xmlstream.Wrap(
		xmlstream.MultiReader(
			wrapText("name", s.cfg.Name),
			wrapText("version", s.cfg.Version),
		),
		xml.StartElement{Name: xml.Name{Space: ns.Version, Local: "query"}},
	)
}

// clientFeatures is advertised in service discovery replies.
var clientFeatures = []string{
	ns.DiscoInfo,
	ns.Ping,
	ns.Time,
	ns.Version,
	ns.ChatStates,
	ns.Receipts,
	ns.Correct,
	ns.Carbons,
}

func (s *Session) discoPayload() xml.TokenReader {
	identity := xmlstream.Wrap(nil, xml.StartElement{
		Name: xml.Name{Local: "identity"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "category"}, Value: "client"},
			{Name: xml.Name{Local: "type"}, Value: "web"},
			{Name: xml.Name{Local: "name"}, Value: s.cfg.Name},
		},
	})
	readers := []xml.TokenReader{identity}
	for _, feature := range clientFeatures {
		readers = append(readers, xmlstream.Wrap(nil, xml.StartElement{
			Name: xml.Name{Local: "feature"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "var"}, Value: feature}},
		}))
	}
	return xmlstream.Wrap(
		xmlstream.MultiReader(readers...),
		xml.StartElement{Name: xml.Name{Space: ns.DiscoInfo, Local: "query"}},
	)
}
