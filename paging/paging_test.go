// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package paging_test

import (
	"bytes"
	"encoding/xml"
	"testing"

	"github.com/iquercorb/xows-sub001/paging"
)

func encode(t *testing.T, v interface{}) string {
	t.Helper()
	var buf bytes.Buffer
	if err := xml.NewEncoder(&buf).Encode(v); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestRequestPrevEmptyBefore(t *testing.T) {
	got := encode(t, &paging.RequestPrev{Max: 40})
	const want = `<set xmlns="http://jabber.org/protocol/rsm"><before></before><max>40</max></set>`
	if got != want {
		t.Errorf("wrong encoding:\nwant=%s\n got=%s", want, got)
	}
}

func TestRequestPrevBoundary(t *testing.T) {
	got := encode(t, &paging.RequestPrev{Max: 20, Before: "page4"})
	const want = `<set xmlns="http://jabber.org/protocol/rsm"><before>page4</before><max>20</max></set>`
	if got != want {
		t.Errorf("wrong encoding:\nwant=%s\n got=%s", want, got)
	}
}

func TestRequestNext(t *testing.T) {
	got := encode(t, &paging.RequestNext{Max: 10, After: "page2"})
	const want = `<set xmlns="http://jabber.org/protocol/rsm"><max>10</max><after>page2</after></set>`
	if got != want {
		t.Errorf("wrong encoding:\nwant=%s\n got=%s", want, got)
	}
}

func TestSetUnmarshal(t *testing.T) {
	const data = `<set xmlns='http://jabber.org/protocol/rsm'>` +
		`<first index='0'>p1</first><last>p3</last><count>17</count></set>`
	var s paging.Set
	if err := xml.Unmarshal([]byte(data), &s); err != nil {
		t.Fatal(err)
	}
	if s.First.ID != "p1" || s.Last != "p3" {
		t.Errorf("wrong markers: first=%q last=%q", s.First.ID, s.Last)
	}
	if s.Count == nil || *s.Count != 17 {
		t.Errorf("wrong count: %v", s.Count)
	}
}
