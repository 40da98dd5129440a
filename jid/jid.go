// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package jid implements the XMPP address format defined in RFC 7622.
package jid // import "github.com/iquercorb/xows-sub001/jid"

import (
	"encoding/xml"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/text/secure/precis"
)

// Errors returned by the jid package.
var (
	ErrInvalidUTF8   = errors.New("jid: address contains invalid UTF-8")
	ErrNoDomain      = errors.New("jid: address has no domainpart")
	ErrLongPart      = errors.New("jid: part exceeds 1023 bytes")
	ErrEmptyPart     = errors.New("jid: localpart or resourcepart is empty")
	ErrInvalidDomain = errors.New("jid: invalid domainpart")
)

// JID represents an XMPP address comprising a localpart, domainpart, and
// resourcepart, each stored in canonical form. The zero value is a valid
// (empty) JID.
type JID struct {
	local    string
	domain   string
	resource string
}

// Parse constructs a JID from its string representation.
func Parse(s string) (JID, error) {
	local, domain, resource, err := SplitString(s)
	if err != nil {
		return JID{}, err
	}
	return New(local, domain, resource)
}

// MustParse is like Parse but panics if the address cannot be parsed.
// It simplifies safe initialization of JIDs from known-good constant strings.
func MustParse(s string) JID {
	j, err := Parse(s)
	if err != nil {
		panic(`jid: Parse(` + strconv.Quote(s) + `): ` + err.Error())
	}
	return j
}

// New constructs a JID from its three parts, enforcing the RFC 7622
// preparation and enforcement rules on each.
func New(localpart, domainpart, resourcepart string) (JID, error) {
	if !utf8.ValidString(localpart) || !utf8.ValidString(resourcepart) {
		return JID{}, ErrInvalidUTF8
	}
	if domainpart == "" {
		return JID{}, ErrNoDomain
	}

	// Domainparts must not contain A-labels, convert them up front.
	domainpart, err := idna.ToUnicode(domainpart)
	if err != nil {
		return JID{}, err
	}
	if !utf8.ValidString(domainpart) {
		return JID{}, ErrInvalidUTF8
	}
	if strings.ContainsAny(domainpart, "\x00 ") {
		return JID{}, ErrInvalidDomain
	}

	if localpart != "" {
		localpart, err = precis.UsernameCaseMapped.String(localpart)
		if err != nil {
			return JID{}, err
		}
	}
	if resourcepart != "" {
		resourcepart, err = precis.OpaqueString.String(resourcepart)
		if err != nil {
			return JID{}, err
		}
	}
	for _, part := range []string{localpart, domainpart, resourcepart} {
		if len(part) > 1023 {
			return JID{}, ErrLongPart
		}
	}

	return JID{
		local:    localpart,
		domain:   strings.ToLower(domainpart),
		resource: resourcepart,
	}, nil
}

// SplitString splits an address into its localpart, domainpart, and
// resourcepart without performing any verification or canonicalization.
func SplitString(s string) (localpart, domainpart, resourcepart string, err error) {
	// Remove the resourcepart first so that "/" characters inside it do not
	// confuse the localpart split and so that "@" characters inside the
	// resourcepart are not mistaken for a localpart delimiter.
	if idx := strings.IndexByte(s, '/'); idx != -1 {
		resourcepart = s[idx+1:]
		s = s[:idx]
		if resourcepart == "" {
			return "", "", "", ErrEmptyPart
		}
	}

	if idx := strings.IndexByte(s, '@'); idx != -1 {
		localpart = s[:idx]
		s = s[idx+1:]
		if localpart == "" {
			return "", "", "", ErrEmptyPart
		}
	}

	if s == "" {
		return "", "", "", ErrNoDomain
	}
	return localpart, s, resourcepart, nil
}

// Localpart returns the localpart of the address (before the '@').
func (j JID) Localpart() string { return j.local }

// Domainpart returns the domainpart of the address.
func (j JID) Domainpart() string { return j.domain }

// Resourcepart returns the resourcepart of the address (after the '/').
func (j JID) Resourcepart() string { return j.resource }

// Bare returns a copy of the JID with no resourcepart.
func (j JID) Bare() JID {
	return JID{local: j.local, domain: j.domain}
}

// Domain returns a copy of the JID with no localpart or resourcepart.
func (j JID) Domain() JID {
	return JID{domain: j.domain}
}

// WithResource returns a copy of the JID with the provided resourcepart,
// which is verified before being applied.
func (j JID) WithResource(resourcepart string) (JID, error) {
	return New(j.local, j.domain, resourcepart)
}

// Equal reports whether the two addresses are identical part for part.
func (j JID) Equal(other JID) bool {
	return j.local == other.local && j.domain == other.domain && j.resource == other.resource
}

// IsZero reports whether the address is the empty JID.
func (j JID) IsZero() bool {
	return j.local == "" && j.domain == "" && j.resource == ""
}

// String returns the canonical string representation of the address.
func (j JID) String() string {
	var sb strings.Builder
	sb.Grow(len(j.local) + len(j.domain) + len(j.resource) + 2)
	if j.local != "" {
		sb.WriteString(j.local)
		sb.WriteByte('@')
	}
	sb.WriteString(j.domain)
	if j.resource != "" {
		sb.WriteByte('/')
		sb.WriteString(j.resource)
	}
	return sb.String()
}

// MarshalXMLAttr satisfies the xml.MarshalerAttr interface.
// Zero JIDs marshal to a zero attribute which encoding/xml omits.
func (j JID) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if j.IsZero() {
		return xml.Attr{}, nil
	}
	return xml.Attr{Name: name, Value: j.String()}, nil
}

// UnmarshalXMLAttr satisfies the xml.UnmarshalerAttr interface.
func (j *JID) UnmarshalXMLAttr(attr xml.Attr) error {
	if attr.Value == "" {
		*j = JID{}
		return nil
	}
	jid, err := Parse(attr.Value)
	if err != nil {
		return err
	}
	*j = jid
	return nil
}
