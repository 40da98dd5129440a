// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package form implements the data forms format used to build MAM filters
// and registration submissions.
package form // import "github.com/iquercorb/xows-sub001/form"

import (
	"encoding/xml"

	"mellium.im/xmlstream"

	"github.com/iquercorb/xows-sub001/ns"
)

// NS is the data forms namespace.
const NS = ns.DataForms

// Form types defined by XEP-0004.
const (
	TypeForm   = "form"
	TypeSubmit = "submit"
	TypeCancel = "cancel"
	TypeResult = "result"
)

// Field is a single form field. Only the parts of the field model that
// queries and registration exercise are represented.
type Field struct {
	XMLName  xml.Name  `xml:"field"`
	Var      string    `xml:"var,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	Label    string    `xml:"label,attr,omitempty"`
	Values   []string  `xml:"value"`
	Required *struct{} `xml:"required"`
}

// Data is a data form.
type Data struct {
	XMLName      xml.Name `xml:"jabber:x:data x"`
	Type         string   `xml:"type,attr"`
	Title        string   `xml:"title,omitempty"`
	Instructions string   `xml:"instructions,omitempty"`
	Fields       []Field  `xml:"field"`
}

// Submit builds a submission form carrying the given FORM_TYPE and fields.
func Submit(formType string, fields ...Field) *Data {
	d := &Data{
		Type: TypeSubmit,
		Fields: []Field{{
			Var:    "FORM_TYPE",
			Type:   "hidden",
			Values: []string{formType},
		}},
	}
	d.Fields = append(d.Fields, fields...)
	return d
}

// Text returns a text field with a single value.
func Text(name, value string) Field {
	return Field{Var: name, Values: []string{value}}
}

// Get returns the first value of the field with the given var name and
// whether the field was present.
func (d *Data) Get(name string) (string, bool) {
	for _, f := range d.Fields {
		if f.Var != name {
			continue
		}
		if len(f.Values) == 0 {
			return "", true
		}
		return f.Values[0], true
	}
	return "", false
}

// FormType returns the FORM_TYPE value of the form, if any.
func (d *Data) FormType() string {
	v, _ := d.Get("FORM_TYPE")
	return v
}

// TokenReader implements xmlstream.Marshaler.
func (d *Data) TokenReader() xml.TokenReader {
	var fields []xml.TokenReader
	for _, f := range d.Fields {
		start := xml.StartElement{Name: xml.Name{Local: "field"}}
		if f.Var != "" {
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "var"}, Value: f.Var})
		}
		if f.Type != "" {
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "type"}, Value: f.Type})
		}
		var values []xml.TokenReader
		for _, v := range f.Values {
			values = append(values, xmlstream.Wrap(
				xmlstream.Token(xml.CharData(v)),
				xml.StartElement{Name: xml.Name{Local: "value"}},
			))
		}
		fields = append(fields, xmlstream.Wrap(xmlstream.MultiReader(values...), start))
	}
	return xmlstream.Wrap(
		xmlstream.MultiReader(fields...),
		xml.StartElement{
			Name: xml.Name{Space: NS, Local: "x"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "type"}, Value: d.Type}},
		},
	)
}

// WriteXML implements xmlstream.WriterTo.
func (d *Data) WriteXML(w xmlstream.TokenWriter) (int, error) {
	return xmlstream.Copy(w, d.TokenReader())
}

// MarshalXML implements xml.Marshaler.
func (d *Data) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	_, err := d.WriteXML(e)
	return err
}
