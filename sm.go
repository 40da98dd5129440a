// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xows

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/iquercorb/xows-sub001/internal/attr"
	"github.com/iquercorb/xows-sub001/ns"
)

const (
	// smAckAfter is the number of unacknowledged stanzas that triggers an
	// immediate acknowledgement or request.
	smAckAfter = 10

	// smAckIdle is how long unacknowledged stanzas may sit before an
	// acknowledgement or request goes out anyway.
	smAckIdle = 60 * time.Second
)

// smState is the stream management bookkeeping (XEP-0198). Counters only
// cover iq, message, and presence stanzas; management elements and
// negotiation traffic are not counted.
type smState struct {
	enabled   bool
	resumeID  string
	maxResume time.Duration

	// handled is the monotonic count of stanzas received and processed
	// since the stream was enabled, reported in outbound <a/> elements.
	handled uint32
	// sent counts stanzas transmitted; acked is the highest sent count
	// the server has acknowledged.
	sent  uint32
	acked uint32

	recvUnacked uint32
	sentUnacked uint32

	// ackIdle and reqIdle exist so tests can shorten the idle windows.
	ackIdle  time.Duration
	reqIdle  time.Duration
	ackTimer *time.Timer
	reqTimer *time.Timer
}

func (s *Session) smResetLocked() {
	if s.sm.ackTimer != nil {
		s.sm.ackTimer.Stop()
	}
	if s.sm.reqTimer != nil {
		s.sm.reqTimer.Stop()
	}
	ackIdle, reqIdle := s.sm.ackIdle, s.sm.reqIdle
	s.sm = smState{ackIdle: ackIdle, reqIdle: reqIdle}
}

func (s *Session) smEnableLocked() {
	s.transmitLocked(fmt.Sprintf("<enable xmlns='%s' resume='true'/>", ns.SM), false)
}

func (s *Session) sendResumeLocked() {
	s.state = stateResuming
	s.transmitLocked(fmt.Sprintf("<resume xmlns='%s' previd='%s' h='%d'/>",
		ns.SM, s.sm.resumeID, s.sm.handled), false)
}

func (s *Session) handleSMLocked(start xml.StartElement) {
	switch start.Name.Local {
	case "a":
		h, err := strconv.ParseUint(attr.Get(start.Attr, "h"), 10, 32)
		if err != nil {
			s.log.Warn("acknowledgement without usable count dropped")
			return
		}
		s.smAckedLocked(uint32(h))
	case "r":
		s.smSendAckLocked()
	case "enabled":
		s.smEnabledLocked(start)
	case "resumed":
		s.smResumedLocked(start)
	case "failed":
		s.smFailedLocked()
	default:
		s.log.Debug("unhandled management element dropped", "name", start.Name.Local)
	}
}

func (s *Session) smEnabledLocked(start xml.StartElement) {
	s.sm.enabled = true
	switch attr.Get(start.Attr, "resume") {
	case "true", "1":
		s.sm.resumeID = attr.Get(start.Attr, "id")
	}
	if m := attr.Get(start.Attr, "max"); m != "" {
		if sec, err := strconv.ParseUint(m, 10, 32); err == nil {
			s.sm.maxResume = time.Duration(sec) * time.Second
		}
	}
	s.log.Info("stream management enabled",
		"resumable", s.sm.resumeID != "", "max", s.sm.maxResume)
}

func (s *Session) smResumedLocked(start xml.StartElement) {
	if s.state != stateResuming {
		s.log.Warn("unsolicited resumption confirmation dropped")
		return
	}
	if h, err := strconv.ParseUint(attr.Get(start.Attr, "h"), 10, 32); err == nil {
		s.smAckedLocked(uint32(h))
	}
	s.sm.enabled = true
	s.log.Info("stream resumed", "previd", s.sm.resumeID, "handled", s.sm.handled)
	s.sessionReadyLocked(true)
}

func (s *Session) smFailedLocked() {
	if s.state == stateResuming {
		// The server forgot the previous stream; fall back to a fresh
		// bind on the already authenticated stream.
		s.log.Warn("stream resumption refused, binding a new resource")
		s.smResetLocked()
		s.resumable = false
		s.sendBindLocked()
		return
	}
	s.log.Warn("stream management refused")
	s.smResetLocked()
	s.smAvail = false
}

// smRecvLocked accounts for one received stanza and acknowledges the
// backlog once it reaches smAckAfter, or after the idle window.
func (s *Session) smRecvLocked() {
	if !s.sm.enabled {
		return
	}
	s.sm.handled++
	s.sm.recvUnacked++
	if s.sm.recvUnacked >= smAckAfter {
		s.smSendAckLocked()
		return
	}
	s.smScheduleAckLocked()
}

// smSentLocked accounts for one transmitted stanza and requests an
// acknowledgement once the backlog reaches smAckAfter, or after the idle
// window.
func (s *Session) smSentLocked() {
	if !s.sm.enabled {
		return
	}
	s.sm.sent++
	s.sm.sentUnacked++
	if s.sm.sentUnacked >= smAckAfter {
		s.smSendReqLocked()
		return
	}
	s.smScheduleReqLocked()
}

func (s *Session) smSendAckLocked() {
	if !s.sm.enabled {
		return
	}
	s.transmitLocked(fmt.Sprintf("<a xmlns='%s' h='%d'/>", ns.SM, s.sm.handled), false)
	s.sm.recvUnacked = 0
	if s.sm.ackTimer != nil {
		s.sm.ackTimer.Stop()
		s.sm.ackTimer = nil
	}
}

func (s *Session) smSendReqLocked() {
	if !s.sm.enabled {
		return
	}
	s.transmitLocked(fmt.Sprintf("<r xmlns='%s'/>", ns.SM), false)
	s.sm.sentUnacked = 0
	if s.sm.reqTimer != nil {
		s.sm.reqTimer.Stop()
		s.sm.reqTimer = nil
	}
}

func (s *Session) smAckedLocked(h uint32) {
	s.sm.acked = h
	s.sm.sentUnacked = 0
	if s.sm.reqTimer != nil {
		s.sm.reqTimer.Stop()
		s.sm.reqTimer = nil
	}
}

func (s *Session) smScheduleAckLocked() {
	if s.sm.ackTimer != nil {
		return
	}
	gen := s.gen
	s.sm.ackTimer = time.AfterFunc(s.sm.ackIdle, func() {
		s.dispatch(func() {
			if s.gen != gen {
				return
			}
			s.sm.ackTimer = nil
			if s.sm.recvUnacked > 0 {
				s.smSendAckLocked()
			}
		})
	})
}

func (s *Session) smScheduleReqLocked() {
	if s.sm.reqTimer != nil {
		return
	}
	gen := s.gen
	s.sm.reqTimer = time.AfterFunc(s.sm.reqIdle, func() {
		s.dispatch(func() {
			if s.gen != gen {
				return
			}
			s.sm.reqTimer = nil
			if s.sm.sentUnacked > 0 {
				s.smSendReqLocked()
			}
		})
	})
}
