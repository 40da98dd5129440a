// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package form_test

import (
	"bytes"
	"encoding/xml"
	"testing"

	"github.com/iquercorb/xows-sub001/form"
)

func TestSubmitMarshal(t *testing.T) {
	d := form.Submit("urn:xmpp:mam:2",
		form.Text("with", "juliet@example.org"),
		form.Text("start", "2024-01-01T00:00:00Z"),
	)
	var buf bytes.Buffer
	e := xml.NewEncoder(&buf)
	if err := e.Encode(d); err != nil {
		t.Fatal(err)
	}
	const want = `<x xmlns="jabber:x:data" type="submit">` +
		`<field var="FORM_TYPE" type="hidden"><value>urn:xmpp:mam:2</value></field>` +
		`<field var="with"><value>juliet@example.org</value></field>` +
		`<field var="start"><value>2024-01-01T00:00:00Z</value></field>` +
		`</x>`
	if buf.String() != want {
		t.Errorf("wrong encoding:\nwant=%s\n got=%s", want, buf.String())
	}
}

func TestUnmarshalGet(t *testing.T) {
	const data = `<x xmlns='jabber:x:data' type='form'>` +
		`<field var='FORM_TYPE' type='hidden'><value>jabber:iq:register</value></field>` +
		`<field var='username' type='text-single'><required/></field>` +
		`<field var='password' type='text-private'/>` +
		`</x>`
	var d form.Data
	if err := xml.Unmarshal([]byte(data), &d); err != nil {
		t.Fatal(err)
	}
	if d.FormType() != "jabber:iq:register" {
		t.Errorf("wrong FORM_TYPE: %q", d.FormType())
	}
	if _, ok := d.Get("username"); !ok {
		t.Error("missing username field")
	}
	if _, ok := d.Get("nickname"); ok {
		t.Error("unexpected nickname field")
	}
}
