// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xows

import (
	"encoding/xml"

	"github.com/iquercorb/xows-sub001/history"
	"github.com/iquercorb/xows-sub001/internal/attr"
	"github.com/iquercorb/xows-sub001/jid"
	"github.com/iquercorb/xows-sub001/stanza"
)

// ArchiveFunc receives the outcome of an archive query: the spliced page of
// records, the total count advertised by the archive, and whether the query
// reached the end of the result set.
type ArchiveFunc func(to, with jid.JID, records []Message, count uint64, complete bool, err *stanza.Error)

// archiveParams ties the IQ carrying an archive query back to the streamed
// results accumulated under the query identifier.
type archiveParams struct {
	to      jid.JID
	with    jid.JID
	queryID string
	cb      ArchiveFunc
}

// QueryArchive asks the archive at to for a page of history and returns the
// query identifier. Results stream in as individual messages and are
// delivered together through cb once the archive reports the page is done.
func (s *Session) QueryArchive(to jid.JID, q history.Query, cb ArchiveFunc) string {
	var qid string
	s.dispatch(func() {
		if q.QueryID == "" {
			q.QueryID = attr.RandomLen(10)
		}
		qid = q.QueryID
		s.archives[q.QueryID] = []Message{}

		iq := stanza.IQ{ID: attr.RandomID(), To: to, Type: stanza.SetIQ}
		s.archIQ[iq.ID] = archiveParams{to: to, with: q.With, queryID: q.QueryID, cb: cb}
		s.queryLocked(iq, q.TokenReader(), s.archiveFinLocked)
	})
	return qid
}

// archiveResultLocked ingests one streamed result into its accumulator.
// Bodyless records (receipts, chat states, retractions) are kept: the page
// window arithmetic needs every page the archive delivered.
func (s *Session) archiveResultLocked(msg *stanza.Message) {
	res := msg.Result
	records, ok := s.archives[res.QueryID]
	if !ok {
		s.log.Debug("archive result for unknown query dropped", "queryid", res.QueryID)
		return
	}
	fwd := res.Forwarded
	if fwd == nil || fwd.Message == nil {
		s.log.Warn("archive result without forwarded message dropped", "queryid", res.QueryID)
		return
	}
	inner := fwd.Message
	if inner.Delay == nil {
		inner.Delay = fwd.Delay
	}
	s.archives[res.QueryID] = append(records, s.recordLocked(inner, false, true, res.ID))
}

// archiveFinLocked finalizes a query when its result IQ arrives, splicing
// the accumulated records down to the page delimited by the fin markers.
func (s *Session) archiveFinLocked(iq stanza.IQ) {
	p, ok := s.archIQ[iq.ID]
	if !ok {
		s.log.Debug("archive fin for unknown query dropped", "id", iq.ID)
		return
	}
	delete(s.archIQ, iq.ID)
	records := s.archives[p.queryID]
	delete(s.archives, p.queryID)

	if iq.Type != stanza.ResultIQ {
		e := iq.Error
		if e == nil {
			e = &stanza.Error{Condition: stanza.UndefinedCondition}
		}
		if p.cb == nil {
			s.stanzaErrorLocked(iq.From, *e)
			return
		}
		s.emitArchiveLocked(p, nil, 0, false, e)
		return
	}

	var fin history.Fin
	if err := xml.Unmarshal([]byte(iq.Inner), &fin); err != nil {
		if p.cb != nil {
			s.emitArchiveLocked(p, nil, 0, false,
				&stanza.Error{Condition: stanza.BadRequest, Text: err.Error()})
		}
		return
	}
	if p.cb == nil {
		return
	}
	count, complete := fin.Count(), fin.Complete

	if fin.Set.First.ID == "" {
		// The archive had nothing for this query.
		s.emitArchiveLocked(p, []Message{}, count, complete, nil)
		return
	}

	pages := make([]string, len(records))
	for i := range records {
		pages[i] = records[i].Page
	}
	lo, hi, ok := history.Window(pages, fin.Set.First.ID, fin.Set.Last)
	if !ok {
		s.log.Warn("archive page markers not found", "queryid", p.queryID,
			"first", fin.Set.First.ID, "last", fin.Set.Last)
		s.emitArchiveLocked(p, nil, count, complete,
			&stanza.Error{Condition: stanza.ItemNotFound, Text: "page markers not found"})
		return
	}
	s.emitArchiveLocked(p, records[lo:hi], count, complete, nil)
}

func (s *Session) emitArchiveLocked(p archiveParams, records []Message, count uint64, complete bool, err *stanza.Error) {
	cb, to, with := p.cb, p.to, p.with
	s.emit(func() { cb(to, with, records, count, complete, err) })
}
