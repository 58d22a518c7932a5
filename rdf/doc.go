// Package rdf provides the RDF term model and the pluggable wire codecs used
// by the CSVW converters.
//
// Copyright 2026 Geoknoesis LLC (www.geoknoesis.com)
//
// The model is small: IRI, BlankNode and Literal terms combined into Quads.
// Quad.Key gives each statement a stable identity, which the quad stores use
// for indexing and reference counting.
//
// Codecs are streaming where the format allows it:
//   - NewReader decodes N-Triples, N-Quads, Turtle, TriG, RDF/XML and
//     JSON-LD (through json-gold).
//   - NewWriter encodes N-Triples, N-Quads, Turtle, TriG and JSON-LD.
//
// The Turtle, TriG and RDF/XML readers hold one statement (or one top-level
// node element) at a time. Anonymous blank nodes are labelled genidN; document
// labels that would clash are prefixed with "x".
//
// Example (decoding quads):
//
//	dec, err := rdf.NewReader(f, rdf.FormatNQuads)
//	if err != nil {
//	    // handle error
//	}
//	defer dec.Close()
//
//	for {
//	    quad, err := dec.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        // handle error
//	    }
//	    // process quad.S, quad.P, quad.O, quad.G
//	}
package rdf
