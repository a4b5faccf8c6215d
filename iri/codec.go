// Package iri maps full IRIs to compact prefix:local forms and back.
package iri

import (
	"strings"
)

// Standard namespace IRIs always present in a codec's table.
const (
	RDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFS = "http://www.w3.org/2000/01/rdf-schema#"
	XSD  = "http://www.w3.org/2001/XMLSchema#"
	OWL  = "http://www.w3.org/2002/07/owl#"
)

// Namespace binds a prefix to a namespace IRI.
type Namespace struct {
	Prefix string `json:"prefix" yaml:"prefix"`
	IRI    string `json:"namespace" yaml:"namespace"`
}

// DefaultNamespaces returns the built-in table in lookup order.
func DefaultNamespaces() []Namespace {
	return []Namespace{
		{Prefix: "rdf", IRI: RDF},
		{Prefix: "rdfs", IRI: RDFS},
		{Prefix: "xsd", IRI: XSD},
		{Prefix: "owl", IRI: OWL},
	}
}

// Codec compacts and expands IRIs using a fixed namespace table.
// A Codec is immutable once built and safe for concurrent use.
type Codec struct {
	namespaces []Namespace
	err        error
}

// NewCodec builds a codec from the default namespaces overlaid with overlay.
// An overlay entry whose prefix already exists replaces that entry's IRI in
// place; new prefixes are appended in overlay order.
func NewCodec(overlay []Namespace) *Codec {
	return &Codec{namespaces: merge(DefaultNamespaces(), overlay)}
}

// NewDegradedCodec builds a codec holding only the default namespaces and
// records why the overlay could not be obtained.
func NewDegradedCodec(cause error) *Codec {
	return &Codec{namespaces: DefaultNamespaces(), err: cause}
}

func merge(base, overlay []Namespace) []Namespace {
	out := make([]Namespace, len(base), len(base)+len(overlay))
	copy(out, base)

	index := make(map[string]int, len(out))
	for i, ns := range out {
		index[ns.Prefix] = i
	}
	for _, ns := range overlay {
		if i, ok := index[ns.Prefix]; ok {
			out[i].IRI = ns.IRI
			continue
		}
		index[ns.Prefix] = len(out)
		out = append(out, ns)
	}
	return out
}

// Expand turns a prefix:local short form into a full IRI. Input without a
// colon past the first character, or with an unknown prefix, is returned as is.
func (c *Codec) Expand(short string) string {
	i := strings.IndexByte(short, ':')
	if i <= 0 {
		return short
	}
	prefix := short[:i]
	for _, ns := range c.namespaces {
		if ns.Prefix == prefix {
			return ns.IRI + short[i+1:]
		}
	}
	return short
}

// Compact rewrites a full IRI as prefix:local using the first namespace in
// table order that is a string prefix of long. Unmatched input is returned as is.
func (c *Codec) Compact(long string) string {
	for _, ns := range c.namespaces {
		if strings.HasPrefix(long, ns.IRI) {
			return ns.Prefix + ":" + long[len(ns.IRI):]
		}
	}
	return long
}

// Namespaces returns a copy of the table in lookup order.
func (c *Codec) Namespaces() []Namespace {
	out := make([]Namespace, len(c.namespaces))
	copy(out, c.namespaces)
	return out
}

// Lookup returns the namespace IRI bound to prefix.
func (c *Codec) Lookup(prefix string) (string, bool) {
	for _, ns := range c.namespaces {
		if ns.Prefix == prefix {
			return ns.IRI, true
		}
	}
	return "", false
}

// Degraded reports whether the codec fell back to the default table.
func (c *Codec) Degraded() bool {
	return c.err != nil
}

// Err returns the cause recorded by NewDegradedCodec, or nil.
func (c *Codec) Err() error {
	return c.err
}

// Overlap names two table entries where the earlier entry's IRI is a string
// prefix of the later one's, or the reverse. Compact resolves such IRIs by
// table order, which may not pick the longest namespace.
type Overlap struct {
	First  Namespace
	Second Namespace
}

// Overlaps lists every pair of namespaces whose IRIs prefix one another.
func (c *Codec) Overlaps() []Overlap {
	var out []Overlap
	for i := 0; i < len(c.namespaces); i++ {
		for j := i + 1; j < len(c.namespaces); j++ {
			a, b := c.namespaces[i], c.namespaces[j]
			if strings.HasPrefix(a.IRI, b.IRI) || strings.HasPrefix(b.IRI, a.IRI) {
				out = append(out, Overlap{First: a, Second: b})
			}
		}
	}
	return out
}
