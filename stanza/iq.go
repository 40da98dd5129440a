// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza

import (
	"encoding/xml"

	"mellium.im/xmlstream"

	"github.com/iquercorb/xows-sub001/jid"
)

// IQ ("Information Query") is used as a general request response mechanism.
// IQ's are one-to-one, provide get and set semantics, and always require a
// response in the form of a result or an error.
type IQ struct {
	XMLName xml.Name `xml:"iq"`
	ID      string   `xml:"id,attr"`
	To      jid.JID  `xml:"to,attr,omitempty"`
	From    jid.JID  `xml:"from,attr,omitempty"`
	Lang    string   `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Type    IQType   `xml:"type,attr"`
	Inner   string   `xml:",innerxml"`
	Error   *Error   `xml:"error"`
}

// IQType is the type of an IQ stanza.
// It should normally be one of the constants defined in this package.
type IQType string

const (
	// GetIQ is used to query another entity for information.
	GetIQ IQType = "get"

	// SetIQ is used to provide data to another entity, set new values, and
	// replace existing values.
	SetIQ IQType = "set"

	// ResultIQ is sent in response to a successful get or set IQ.
	ResultIQ IQType = "result"

	// ErrorIQ is sent to report that an error occurred during the delivery or
	// processing of a get or set IQ.
	ErrorIQ IQType = "error"
)

// Wrap wraps the payload in a stanza element ready for transmission.
// A nil payload results in an empty IQ.
func (iq IQ) Wrap(payload xml.TokenReader) xml.TokenReader {
	start := xml.StartElement{Name: xml.Name{Local: "iq"}}
	if iq.ID != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "id"}, Value: iq.ID})
	}
	if !iq.To.IsZero() {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "to"}, Value: iq.To.String()})
	}
	if !iq.From.IsZero() {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "from"}, Value: iq.From.String()})
	}
	if iq.Type != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "type"}, Value: string(iq.Type)})
	}
	return xmlstream.Wrap(payload, start)
}

// Result returns an IQ of type result addressed to the sender of iq, used
// when replying to an incoming get or set.
func (iq IQ) Result() IQ {
	return IQ{
		ID:   iq.ID,
		To:   iq.From,
		Type: ResultIQ,
	}
}

// ErrorReply returns an IQ of type error addressed to the sender of iq and
// carrying the provided stanza error.
func (iq IQ) ErrorReply(e Error) (IQ, xml.TokenReader) {
	reply := IQ{
		ID:   iq.ID,
		To:   iq.From,
		Type: ErrorIQ,
	}
	return reply, e.TokenReader()
}
