// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza

import (
	"encoding/xml"
	"time"

	"mellium.im/xmlstream"

	"github.com/iquercorb/xows-sub001/jid"
	"github.com/iquercorb/xows-sub001/ns"
)

// legacyStampFormat is the pre-RFC timestamp format used by the obsolete
// jabber:x:delay extension.
const legacyStampFormat = "20060102T15:04:05"

// Delay indicates that a stanza has been delivered with a delay, either
// because it was stored offline or because it was played back from an
// archive.
type Delay struct {
	XMLName xml.Name  `xml:"urn:xmpp:delay delay"`
	From    jid.JID   `xml:"from,attr,omitempty"`
	Stamp   time.Time `xml:"-"`
	Reason  string    `xml:",chardata"`
}

// TokenReader implements xmlstream.Marshaler.
func (d Delay) TokenReader() xml.TokenReader {
	start := xml.StartElement{
		Name: xml.Name{Space: ns.Delay, Local: "delay"},
		Attr: []xml.Attr{{
			Name:  xml.Name{Local: "stamp"},
			Value: d.Stamp.UTC().Format(time.RFC3339),
		}},
	}
	if !d.From.IsZero() {
		start.Attr = append(start.Attr, xml.Attr{
			Name:  xml.Name{Local: "from"},
			Value: d.From.String(),
		})
	}
	if d.Reason != "" {
		return xmlstream.Wrap(xmlstream.Token(xml.CharData(d.Reason)), start)
	}
	return xmlstream.Wrap(nil, start)
}

// WriteXML implements xmlstream.WriterTo.
func (d Delay) WriteXML(w xmlstream.TokenWriter) (int, error) {
	return xmlstream.Copy(w, d.TokenReader())
}

// MarshalXML implements xml.Marshaler.
func (d Delay) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	_, err := d.WriteXML(e)
	return err
}

// UnmarshalXML implements xml.Unmarshaler.
func (d *Delay) UnmarshalXML(decoder *xml.Decoder, start xml.StartElement) error {
	decoded := struct {
		From   jid.JID `xml:"from,attr"`
		Stamp  string  `xml:"stamp,attr"`
		Reason string  `xml:",chardata"`
	}{}
	if err := decoder.DecodeElement(&decoded, &start); err != nil {
		return err
	}
	d.XMLName = start.Name
	d.From = decoded.From
	d.Reason = decoded.Reason
	stamp, err := time.Parse(time.RFC3339, decoded.Stamp)
	if err != nil {
		// Some archives still stamp with the obsolete jabber:x:delay format.
		stamp, err = time.Parse(legacyStampFormat, decoded.Stamp)
		if err != nil {
			return err
		}
	}
	d.Stamp = stamp
	return nil
}

// LegacyDelay is the obsolete jabber:x:delay form of Delay, still emitted
// by some MUC services for discussion history.
type LegacyDelay struct {
	XMLName xml.Name `xml:"jabber:x:delay x"`
	From    jid.JID  `xml:"from,attr"`
	Stamp   string   `xml:"stamp,attr"`
}

// Time parses the legacy timestamp, returning the zero time if it is
// malformed.
func (d LegacyDelay) Time() time.Time {
	stamp, err := time.Parse(legacyStampFormat, d.Stamp)
	if err != nil {
		return time.Time{}
	}
	return stamp
}
