// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package history implements the message archive management query format
// and the page window arithmetic used to reassemble streamed results.
package history // import "github.com/iquercorb/xows-sub001/history"

import (
	"encoding/xml"
	"time"

	"mellium.im/xmlstream"

	"github.com/iquercorb/xows-sub001/form"
	"github.com/iquercorb/xows-sub001/jid"
	"github.com/iquercorb/xows-sub001/ns"
	"github.com/iquercorb/xows-sub001/paging"
)

// NS is the message archive management namespace.
const NS = ns.MAM

// Query is a request to an archive for a page of history.
type Query struct {
	// QueryID is the opaque identifier that streamed results are matched
	// against. It is distinct from the id of the IQ carrying the query.
	QueryID string

	// Filters. A zero With or Start/End leaves the corresponding filter
	// field out of the submitted form.
	With  jid.JID
	Start time.Time
	End   time.Time

	// Max bounds the page size.
	Max uint64

	// Last requests the page ending at Before (or the most recent page when
	// Before is empty) instead of paging forward. Queries without a Start
	// boundary normally set it.
	Last   bool
	Before string
}

// TokenReader implements xmlstream.Marshaler.
func (q *Query) TokenReader() xml.TokenReader {
	var fields []form.Field
	if !q.With.IsZero() {
		fields = append(fields, form.Text("with", q.With.String()))
	}
	if !q.Start.IsZero() {
		fields = append(fields, form.Text("start", q.Start.UTC().Format(time.RFC3339)))
	}
	if !q.End.IsZero() {
		fields = append(fields, form.Text("end", q.End.UTC().Format(time.RFC3339)))
	}
	filter := form.Submit(NS, fields...)

	var set xml.TokenReader
	if q.Last {
		set = (&paging.RequestPrev{Max: q.Max, Before: q.Before}).TokenReader()
	} else {
		set = (&paging.RequestNext{Max: q.Max}).TokenReader()
	}

	return xmlstream.Wrap(
		xmlstream.MultiReader(filter.TokenReader(), set),
		xml.StartElement{
			Name: xml.Name{Space: NS, Local: "query"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "queryid"}, Value: q.QueryID}},
		},
	)
}

// WriteXML implements xmlstream.WriterTo.
func (q *Query) WriteXML(w xmlstream.TokenWriter) (int, error) {
	return xmlstream.Copy(w, q.TokenReader())
}

// MarshalXML implements xml.Marshaler.
func (q *Query) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	_, err := q.WriteXML(e)
	return err
}

// Fin is the terminating payload of an archive query, carried by the result
// IQ.
type Fin struct {
	XMLName  xml.Name   `xml:"urn:xmpp:mam:2 fin"`
	Complete bool       `xml:"complete,attr"`
	Set      paging.Set `xml:"http://jabber.org/protocol/rsm set"`
}

// Count returns the total count advertised by the result set, or zero when
// the archive did not report one.
func (f *Fin) Count() uint64 {
	if f.Set.Count == nil {
		return 0
	}
	return *f.Set.Count
}

// Window locates the contiguous run of pages delimited by the first and
// last RSM markers, returning the index of the first matching page and the
// index one past the last. Records outside the window belong to other
// (stale or interleaved) pages and are not part of the result.
//
// The boolean is false when either marker cannot be found, which indicates
// an inconsistent archive.
func Window(pages []string, first, last string) (lo, hi int, ok bool) {
	lo = -1
	for i, p := range pages {
		if p == first {
			lo = i
			break
		}
	}
	if lo < 0 {
		return 0, 0, false
	}
	for i := lo; i < len(pages); i++ {
		if pages[i] == last {
			return lo, i + 1, true
		}
	}
	return 0, 0, false
}
