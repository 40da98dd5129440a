// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xows

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"mellium.im/sasl"
	"mellium.im/xmlstream"

	"github.com/iquercorb/xows-sub001/internal/attr"
	"github.com/iquercorb/xows-sub001/jid"
	"github.com/iquercorb/xows-sub001/ns"
	"github.com/iquercorb/xows-sub001/stanza"
)

// Socket is the transport the session speaks through. Implementations must
// deliver each outbound string as a single frame carrying one complete XML
// document, per RFC 7395 §3.3.
type Socket interface {
	Send(data string) error
	Close(code int, text string)
}

// Config is the immutable session configuration.
type Config struct {
	// Origin is the bare address to authenticate as.
	Origin jid.JID

	// Password is the credential used for the first authentication. The
	// session consumes it when the initial SASL response is generated and
	// never retains it afterwards.
	Password string

	// Resource is the requested resource identifier. Empty lets the
	// server assign one.
	Resource string

	// Register requests in-band account creation before authenticating.
	Register bool

	// Mechanisms is the SASL mechanism preference order. Empty selects
	// SCRAM-SHA-256, SCRAM-SHA-1, then PLAIN.
	Mechanisms []sasl.Mechanism

	// StoredAuth provides previously saved credentials for silent
	// authentication when Password is empty.
	StoredAuth *StoredAuth

	// SaveAuth enables the Handlers.SaveAuth callback after a successful
	// authentication.
	SaveAuth bool

	// FailureDelay postpones the SessionClosed callback for
	// authentication and registration refusals. Zero reports immediately.
	FailureDelay time.Duration

	// Name and Version identify the client in version and discovery
	// replies.
	Name    string
	Version string

	Logger *slog.Logger
}

type streamState uint8

const (
	stateDisconnected streamState = iota
	stateConnecting
	stateNegotiating
	stateRegistering
	stateAuthenticating
	stateBinding
	stateResuming
	stateBound
)

func (st streamState) String() string {
	switch st {
	case stateDisconnected:
		return "disconnected"
	case stateConnecting:
		return "connecting"
	case stateNegotiating:
		return "negotiating"
	case stateRegistering:
		return "registering"
	case stateAuthenticating:
		return "authenticating"
	case stateBinding:
		return "binding"
	case stateResuming:
		return "resuming"
	case stateBound:
		return "bound"
	}
	return "invalid"
}

type pendingQuery struct {
	fn func(stanza.IQ)
	// user marks callbacks supplied by the API consumer, which run after
	// the session lock is released. Internal continuations run inline.
	user bool
}

// Session drives one XMPP stream over a WebSocket style transport. All
// methods are safe for concurrent use.
type Session struct {
	cfg Config
	h   Handlers
	log *slog.Logger

	mu    sync.Mutex
	calls []func()
	// gen invalidates timer callbacks scheduled before a reset.
	gen uint64

	sock     Socket
	sockOpen bool

	state     streamState
	sessOK    bool
	resumable bool
	bind      BindResult

	password  string
	authSaved *StoredAuth
	pendSave  *StoredAuth
	authMech  string
	offered   []string
	neg       *sasl.Negotiator
	negMore   bool
	failTimer *time.Timer

	smAvail bool
	sm      smState

	pending map[string]pendingQuery
	queue   []string

	archives map[string][]Message
	archIQ   map[string]archiveParams
}

// NewSession creates a session from the configuration. The session is inert
// until a socket is attached.
func NewSession(cfg Config, h Handlers) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if len(cfg.Mechanisms) == 0 {
		cfg.Mechanisms = []sasl.Mechanism{sasl.ScramSha256, sasl.ScramSha1, sasl.Plain}
	}
	if cfg.Name == "" {
		cfg.Name = "xows"
	}
	if cfg.Version == "" {
		cfg.Version = "0.1"
	}
	s := &Session{
		cfg:       cfg,
		h:         h,
		log:       cfg.Logger,
		password:  cfg.Password,
		authSaved: cfg.StoredAuth,
		pending:   make(map[string]pendingQuery),
		archives:  make(map[string][]Message),
		archIQ:    make(map[string]archiveParams),
	}
	s.sm.ackIdle = smAckIdle
	s.sm.reqIdle = smAckIdle
	return s
}

// dispatch runs f under the session lock, then delivers the callbacks f
// queued once the lock is released.
func (s *Session) dispatch(f func()) {
	s.mu.Lock()
	f()
	calls := s.calls
	s.calls = nil
	s.mu.Unlock()
	for _, c := range calls {
		c()
	}
}

// emit queues a callback for delivery after the lock is released. Must be
// called with the lock held.
func (s *Session) emit(f func()) {
	if f != nil {
		s.calls = append(s.calls, f)
	}
}

// Attach binds the session to a freshly created transport socket. It must
// be called before the socket reports it is open.
func (s *Session) Attach(sock Socket) {
	s.dispatch(func() {
		s.sock = sock
		s.sockOpen = false
		s.state = stateConnecting
	})
}

// Open must be called by the transport once the socket is connected. It
// starts stream negotiation.
func (s *Session) Open() {
	s.dispatch(func() {
		if s.sock == nil {
			return
		}
		s.sockOpen = true
		s.state = stateNegotiating
		s.transmitLocked(openFrame(s.cfg.Origin.Domainpart()), false)
	})
}

// Recv must be called by the transport for every inbound frame.
func (s *Session) Recv(data string) {
	s.dispatch(func() { s.recvLocked(data) })
}

// Closed must be called by the transport when the socket closes, with the
// close code and reason when one was received.
func (s *Session) Closed(code int, text string) {
	s.dispatch(func() {
		s.sockOpen = false
		s.sock = nil
		if s.state == stateDisconnected && !s.resumable {
			return
		}
		if text == "" {
			text = fmt.Sprintf("connection closed (%d)", code)
		}
		if code != 0 && s.sessOK {
			s.failureLocked(FailureHangup, text)
			return
		}
		s.failureLocked(FailureGeneric, text)
	})
}

// Disconnect cleanly terminates the session. It announces unavailability,
// sends the stream close frame, and resets all protocol state without
// waiting for the server to acknowledge.
func (s *Session) Disconnect() {
	s.dispatch(func() {
		if s.sockOpen {
			if s.sessOK {
				s.transmitLocked("<presence type='unavailable'/>", true)
			}
			s.closeStreamLocked()
		}
		s.resetLocked(false)
	})
}

// CanResume reports whether a dropped stream can be resumed by attaching a
// new socket and opening it.
func (s *Session) CanResume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumable
}

// Bind returns the address assigned during resource binding, or the zero
// value before the session is established.
func (s *Session) Bind() BindResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bind
}

// SMState returns the current stream management receive counter and resume
// identifier, for callers persisting resumption state.
func (s *Session) SMState() (handled uint32, resumeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sm.handled, s.sm.resumeID
}

// frameRoot returns the root start element of a frame without consuming
// the rest of the document.
func frameRoot(data string) (xml.StartElement, error) {
	d := xml.NewDecoder(strings.NewReader(data))
	for {
		tok, err := d.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

func (s *Session) recvLocked(data string) {
	if s.sock == nil || s.state == stateDisconnected {
		s.log.Debug("frame on dead session dropped")
		return
	}
	start, err := frameRoot(data)
	if err != nil {
		s.failureLocked(FailureGeneric, "malformed frame: "+err.Error())
		return
	}
	switch start.Name.Space {
	case ns.SM:
		s.handleSMLocked(start)
	case ns.Client, "":
		switch start.Name.Local {
		case "iq":
			s.smRecvLocked()
			s.handleIQLocked(data)
		case "message":
			s.smRecvLocked()
			s.handleMessageLocked(data)
		case "presence":
			s.smRecvLocked()
			s.handlePresenceLocked(data)
		default:
			s.log.Debug("unhandled stanza dropped", "name", start.Name.Local)
		}
	case ns.SASL:
		s.handleSASLLocked(start, data)
	case ns.Framing:
		switch start.Name.Local {
		case "open":
			s.handleOpenLocked(start)
		case "close":
			s.handleCloseLocked()
		}
	case ns.Stream:
		switch start.Name.Local {
		case "features":
			s.handleFeaturesLocked(data)
		case "error":
			s.handleStreamErrorLocked(data)
		}
	default:
		if start.Name.Local == "open" || start.Name.Local == "close" {
			s.failureLocked(FailureGeneric,
				"framing element in unexpected namespace "+start.Name.Space)
			return
		}
		s.log.Debug("unhandled frame dropped",
			"space", start.Name.Space, "local", start.Name.Local)
	}
}

func (s *Session) handleOpenLocked(start xml.StartElement) {
	version := attr.Get(start.Attr, "version")
	if !strings.HasPrefix(version, "1.") {
		s.failureLocked(FailureGeneric, fmt.Sprintf("unsupported stream version %q", version))
	}
}

func (s *Session) handleCloseLocked() {
	if s.sessOK {
		s.failureLocked(FailureHangup, "stream closed by server")
		return
	}
	// Acknowledgement of our own close, or a pre-session refusal.
	s.sockOpen = false
	if s.sock != nil {
		s.sock.Close(1000, "")
	}
}

func (s *Session) handleStreamErrorLocked(data string) {
	var e struct {
		Condition struct {
			XMLName xml.Name
		} `xml:",any"`
		Text string `xml:"urn:ietf:params:xml:ns:xmpp-streams text"`
	}
	text := "stream error"
	if err := xml.Unmarshal([]byte(data), &e); err == nil {
		if e.Condition.XMLName.Local != "" {
			text += ": " + e.Condition.XMLName.Local
		}
		if e.Text != "" {
			text += ": " + e.Text
		}
	}
	s.failureLocked(FailureGeneric, text)
}

func (s *Session) handleFeaturesLocked(data string) {
	var f struct {
		Mechanisms struct {
			List []string `xml:"mechanism"`
		} `xml:"urn:ietf:params:xml:ns:xmpp-sasl mechanisms"`
		Bind     *stanza.Empty `xml:"urn:ietf:params:xml:ns:xmpp-bind bind"`
		SM       *stanza.Empty `xml:"urn:xmpp:sm:3 sm"`
		Register *stanza.Empty `xml:"http://jabber.org/features/iq-register register"`
	}
	if err := xml.Unmarshal([]byte(data), &f); err != nil {
		s.failureLocked(FailureGeneric, "malformed stream features: "+err.Error())
		return
	}

	if len(f.Mechanisms.List) > 0 {
		s.offered = f.Mechanisms.List
		if s.cfg.Register {
			if f.Register == nil {
				s.failureLocked(FailureRegister, "in-band registration not offered")
				return
			}
			s.startRegisterLocked()
			return
		}
		s.startSASLLocked()
		return
	}

	// Post-authentication features.
	s.smAvail = f.SM != nil
	if s.resumable && s.sm.resumeID != "" {
		s.sendResumeLocked()
		return
	}
	s.sendBindLocked()
}

func (s *Session) sendBindLocked() {
	s.state = stateBinding
	var resource xml.TokenReader
	if s.cfg.Resource != "" {
		resource = xmlstream.Wrap(
			xmlstream.Token(xml.CharData(s.cfg.Resource)),
			xml.StartElement{Name: xml.Name{Local: "resource"}},
		)
	}
	payload := xmlstream.Wrap(resource, xml.StartElement{
		Name: xml.Name{Space: ns.Bind, Local: "bind"},
	})
	s.queryLocked(stanza.IQ{Type: stanza.SetIQ}, payload, s.bindResultLocked)
}

func (s *Session) bindResultLocked(iq stanza.IQ) {
	if iq.Type != stanza.ResultIQ {
		text := "resource binding refused"
		if iq.Error != nil {
			text += ": " + iq.Error.Error()
		}
		s.failureLocked(FailureGeneric, text)
		return
	}
	var res struct {
		JID string `xml:"jid"`
	}
	if err := xml.Unmarshal([]byte(iq.Inner), &res); err != nil || res.JID == "" {
		s.failureLocked(FailureGeneric, "resource binding returned no address")
		return
	}
	full, err := jid.Parse(res.JID)
	if err != nil {
		s.failureLocked(FailureGeneric, "resource binding returned a malformed address: "+err.Error())
		return
	}
	s.bind = BindResult{
		Full:     full,
		Bare:     full.Bare(),
		Node:     full.Localpart(),
		Resource: full.Resourcepart(),
	}
	s.log.Info("resource bound", "jid", full.String())
	s.sessionReadyLocked(false)
}

func (s *Session) sessionReadyLocked(resumed bool) {
	s.state = stateBound
	s.sessOK = true
	s.resumable = false
	if !resumed && s.smAvail {
		s.smEnableLocked()
	}
	if s.h.SessionReady != nil {
		bind := s.bind
		s.emit(func() { s.h.SessionReady(bind, resumed) })
	}
	s.flushLocked()
}

// failureLocked applies the central failure policy: an established session
// that negotiated resumption keeps its state for a resume attempt,
// anything else is torn down unless a resume attempt is already pending.
func (s *Session) failureLocked(code FailCode, text string) {
	s.log.Error("session failure", "code", code.String(), "text", text)
	switch {
	case s.sessOK && s.sm.resumeID != "":
		s.sessOK = false
		s.resumable = true
		s.state = stateDisconnected
	case s.resumable:
		s.state = stateDisconnected
	default:
		s.closeStreamLocked()
		s.resetLocked(false)
	}
	if s.h.SessionClosed != nil {
		s.emit(func() { s.h.SessionClosed(code, text) })
	}
}

// scheduleFailureLocked reports the failure after the configured delay.
func (s *Session) scheduleFailureLocked(code FailCode, text string) {
	delay := s.cfg.FailureDelay
	if delay <= 0 {
		s.failureLocked(code, text)
		return
	}
	gen := s.gen
	s.failTimer = time.AfterFunc(delay, func() {
		s.dispatch(func() {
			if s.gen != gen {
				return
			}
			s.failTimer = nil
			s.failureLocked(code, text)
		})
	})
}

func (s *Session) closeStreamLocked() {
	if s.sock != nil && s.sockOpen {
		if err := s.sock.Send(closeFrame); err != nil {
			s.log.Debug("close frame not sent", "err", err)
		}
		// Nothing may follow the close frame on this stream.
		s.sockOpen = false
	}
}

// resetLocked returns the session to its initial state. Outstanding user
// queries are answered with a synthetic error so callers are not left
// waiting; internal continuations are dropped.
func (s *Session) resetLocked(clearAuth bool) {
	s.gen++
	if s.failTimer != nil {
		s.failTimer.Stop()
		s.failTimer = nil
	}
	s.smResetLocked()

	for id, q := range s.pending {
		delete(s.pending, id)
		if !q.user {
			continue
		}
		fn := q.fn
		iq := stanza.IQ{ID: id, Type: stanza.ErrorIQ, Error: &stanza.Error{
			Type:      stanza.Cancel,
			Condition: stanza.RecipientUnavailable,
			Text:      "session reset",
		}}
		s.emit(func() { fn(iq) })
	}

	s.queue = nil
	s.archives = make(map[string][]Message)
	s.archIQ = make(map[string]archiveParams)
	s.bind = BindResult{}
	s.sessOK = false
	s.resumable = false
	s.smAvail = false
	s.neg = nil
	s.negMore = false
	s.pendSave = nil
	s.offered = nil
	s.state = stateDisconnected
	if clearAuth {
		s.password = ""
		s.authSaved = nil
	}
}

func (s *Session) stanzaErrorLocked(from jid.JID, e stanza.Error) {
	if s.h.StanzaError == nil {
		s.log.Warn("unhandled stanza error", "from", from.String(), "err", e.Error())
		return
	}
	s.emit(func() { s.h.StanzaError(from, e) })
}
