package rdf

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const xmlNS = "http://www.w3.org/XML/1998/namespace"

// rdfxmlDecoder reads RDF/XML. Each top-level node element is read whole
// and its triples are queued; the document is never held in memory.
type rdfxmlDecoder struct {
	dec      *xml.Decoder
	opts     Options
	scope    xmlScope
	bnodes   int
	pending  []Quad
	produced int64
	err      error
}

// xmlScope carries the inherited xml:base and xml:lang.
type xmlScope struct {
	base string
	lang string
}

func (s xmlScope) enter(attrs []xml.Attr) xmlScope {
	for _, a := range attrs {
		if a.Name.Space != xmlNS {
			continue
		}
		switch a.Name.Local {
		case "base":
			s.base = ResolveIRI(s.base, a.Value)
		case "lang":
			s.lang = a.Value
		}
	}
	return s
}

func (s xmlScope) resolve(ref string) IRI {
	return IRI{Value: ResolveIRI(s.base, ref)}
}

func (s xmlScope) literal(text string) Literal {
	if s.lang != "" {
		return NewLangLiteral(text, s.lang)
	}
	return Literal{Lexical: text}
}

func newRDFXMLDecoder(r io.Reader, opts Options) *rdfxmlDecoder {
	return &rdfxmlDecoder{
		dec:   xml.NewDecoder(r),
		opts:  opts,
		scope: xmlScope{base: opts.Base},
	}
}

func (d *rdfxmlDecoder) Next() (Quad, error) {
	for len(d.pending) == 0 {
		if d.err != nil {
			return Quad{}, d.err
		}
		if err := d.advance(); err != nil {
			d.pending = nil
			d.err = d.fail(err)
			return Quad{}, d.err
		}
	}
	q := d.pending[0]
	d.pending = d.pending[1:]
	d.produced++
	if d.opts.MaxQuads > 0 && d.produced > d.opts.MaxQuads {
		d.pending = nil
		d.err = ErrQuadLimitExceeded
		return Quad{}, d.err
	}
	return q, nil
}

func (d *rdfxmlDecoder) Close() error {
	return nil
}

func (d *rdfxmlDecoder) advance() error {
	if d.opts.Context != nil {
		if err := d.opts.Context.Err(); err != nil {
			return err
		}
	}
	tok, err := d.dec.Token()
	if err != nil {
		return err
	}
	switch t := tok.(type) {
	case xml.StartElement:
		if isRDF(t.Name, "RDF") {
			d.scope = d.scope.enter(t.Attr)
			return nil
		}
		_, err := d.nodeElement(t, d.scope)
		return err
	case xml.CharData:
		if len(bytes.TrimSpace(t)) > 0 {
			return errors.New("text outside of a node element")
		}
	}
	return nil
}

// fail adds the input position to parse errors.
func (d *rdfxmlDecoder) fail(err error) error {
	var perr *ParseError
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, ErrQuadLimitExceeded),
		errors.As(err, &perr),
		d.opts.Context != nil && d.opts.Context.Err() != nil:
		return err
	}
	line, column := d.dec.InputPos()
	return newParseError(FormatRDFXML, "", line, column, err)
}

// nodeElement reads a node element and its property elements, returning
// the node.
func (d *rdfxmlDecoder) nodeElement(start xml.StartElement, scope xmlScope) (Term, error) {
	scope = scope.enter(start.Attr)
	var subject Term
	switch {
	case rdfAttr(start.Attr, "about") != nil:
		subject = scope.resolve(rdfAttr(start.Attr, "about").Value)
	case rdfAttr(start.Attr, "ID") != nil:
		subject = scope.resolve("#" + rdfAttr(start.Attr, "ID").Value)
	case rdfAttr(start.Attr, "nodeID") != nil:
		subject = BlankNode{ID: blankLabel(rdfAttr(start.Attr, "nodeID").Value)}
	default:
		subject = d.newBlank()
	}
	if !isRDF(start.Name, "Description") {
		d.emit(subject, IRI{Value: RDFType}, IRI{Value: start.Name.Space + start.Name.Local})
	}
	d.propertyAttributes(subject, start.Attr, scope)
	if err := d.propertyElements(subject, scope); err != nil {
		return nil, err
	}
	return subject, nil
}

// propertyAttributes emits the triples abbreviated as attributes.
func (d *rdfxmlDecoder) propertyAttributes(subject Term, attrs []xml.Attr, scope xmlScope) {
	for _, a := range propertyAttrs(attrs) {
		if isRDF(a.Name, "type") {
			d.emit(subject, IRI{Value: RDFType}, scope.resolve(a.Value))
			continue
		}
		d.emit(subject, IRI{Value: a.Name.Space + a.Name.Local}, scope.literal(a.Value))
	}
}

func (d *rdfxmlDecoder) propertyElement(subject Term, start xml.StartElement, scope xmlScope, li *int) error {
	scope = scope.enter(start.Attr)
	p := IRI{Value: start.Name.Space + start.Name.Local}
	if isRDF(start.Name, "li") {
		*li++
		p = IRI{Value: NSRDF + "_" + strconv.Itoa(*li)}
	}
	emit := func(o Term) {
		d.emit(subject, p, o)
		if id := rdfAttr(start.Attr, "ID"); id != nil {
			d.reify(scope.resolve("#"+id.Value), subject, p, o)
		}
	}

	if parseType := rdfAttr(start.Attr, "parseType"); parseType != nil {
		switch parseType.Value {
		case "Resource":
			node := d.newBlank()
			emit(node)
			return d.propertyElements(node, scope)
		case "Collection":
			head, err := d.collection(scope)
			if err != nil {
				return err
			}
			emit(head)
			return nil
		default:
			text, err := d.innerXML()
			if err != nil {
				return err
			}
			emit(NewLiteral(text, RDFXMLLiteral))
			return nil
		}
	}

	var object Term
	if res := rdfAttr(start.Attr, "resource"); res != nil {
		object = scope.resolve(res.Value)
	} else if id := rdfAttr(start.Attr, "nodeID"); id != nil {
		object = BlankNode{ID: blankLabel(id.Value)}
	}
	if len(propertyAttrs(start.Attr)) > 0 {
		if object == nil {
			object = d.newBlank()
		}
		d.propertyAttributes(object, start.Attr, scope)
	}
	if object != nil {
		emit(object)
		return d.skipEmpty(start)
	}

	var text strings.Builder
	for {
		tok, err := d.dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.CharData:
			text.Write(t)
		case xml.StartElement:
			if strings.TrimSpace(text.String()) != "" {
				return fmt.Errorf("property element %s mixes text and elements", start.Name.Local)
			}
			node, err := d.nodeElement(t, scope)
			if err != nil {
				return err
			}
			emit(node)
			return d.skipEmpty(start)
		case xml.EndElement:
			if dt := rdfAttr(start.Attr, "datatype"); dt != nil {
				emit(NewLiteral(text.String(), scope.resolve(dt.Value).Value))
			} else {
				emit(scope.literal(text.String()))
			}
			return nil
		}
	}
}

// propertyElements reads the property elements of node up to the end of
// the enclosing element.
func (d *rdfxmlDecoder) propertyElements(node Term, scope xmlScope) error {
	li := 0
	for {
		tok, err := d.dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := d.propertyElement(node, t, scope, &li); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return errors.New("text between property elements")
			}
		}
	}
}

// collection reads the node elements of rdf:parseType="Collection" and
// links them into an RDF list.
func (d *rdfxmlDecoder) collection(scope xmlScope) (Term, error) {
	var items []Term
	for done := false; !done; {
		tok, err := d.dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node, err := d.nodeElement(t, scope)
			if err != nil {
				return nil, err
			}
			items = append(items, node)
		case xml.EndElement:
			done = true
		}
	}
	var rest Term = IRI{Value: RDFNil}
	for i := len(items) - 1; i >= 0; i-- {
		cell := d.newBlank()
		d.emit(cell, IRI{Value: RDFFirst}, items[i])
		d.emit(cell, IRI{Value: RDFRest}, rest)
		rest = cell
	}
	return rest, nil
}

// innerXML re-encodes the content of the current element for
// rdf:parseType="Literal".
func (d *rdfxmlDecoder) innerXML() (string, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	depth := 0
	for {
		tok, err := d.dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			t.Attr = withoutNamespaceDecls(t.Attr)
			tok = t
		case xml.EndElement:
			if depth == 0 {
				if err := enc.Flush(); err != nil {
					return "", err
				}
				return buf.String(), nil
			}
			depth--
		}
		if err := enc.EncodeToken(xml.CopyToken(tok)); err != nil {
			return "", err
		}
	}
}

// skipEmpty consumes the rest of a property element that must be empty.
func (d *rdfxmlDecoder) skipEmpty(start xml.StartElement) error {
	for {
		tok, err := d.dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return nil
		case xml.StartElement:
			return fmt.Errorf("property element %s must be empty", start.Name.Local)
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return fmt.Errorf("property element %s must be empty", start.Name.Local)
			}
		}
	}
}

func (d *rdfxmlDecoder) reify(statement IRI, s Term, p IRI, o Term) {
	d.emit(statement, IRI{Value: RDFType}, IRI{Value: NSRDF + "Statement"})
	d.emit(statement, IRI{Value: NSRDF + "subject"}, s)
	d.emit(statement, IRI{Value: NSRDF + "predicate"}, p)
	d.emit(statement, IRI{Value: NSRDF + "object"}, o)
}

func (d *rdfxmlDecoder) newBlank() BlankNode {
	d.bnodes++
	return BlankNode{ID: "genid" + strconv.Itoa(d.bnodes)}
}

func (d *rdfxmlDecoder) emit(s Term, p IRI, o Term) {
	d.pending = append(d.pending, Quad{S: s, P: p, O: o})
}

func isRDF(name xml.Name, local string) bool {
	return name.Space == NSRDF && name.Local == local
}

func rdfAttr(attrs []xml.Attr, local string) *xml.Attr {
	for i := range attrs {
		if isRDF(attrs[i].Name, local) {
			return &attrs[i]
		}
	}
	return nil
}

// propertyAttrs returns the attributes that state properties, dropping
// namespace declarations, xml: attributes and RDF syntax attributes.
func propertyAttrs(attrs []xml.Attr) []xml.Attr {
	var out []xml.Attr
	for _, a := range attrs {
		switch a.Name.Space {
		case "", "xmlns", xmlNS:
			continue
		case NSRDF:
			switch a.Name.Local {
			case "about", "ID", "nodeID", "resource", "parseType", "datatype", "bagID", "aboutEach", "aboutEachPrefix":
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

func withoutNamespaceDecls(attrs []xml.Attr) []xml.Attr {
	var out []xml.Attr
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || a.Name.Space == "" && a.Name.Local == "xmlns" {
			continue
		}
		out = append(out, a)
	}
	return out
}
