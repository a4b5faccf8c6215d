// Package export serializes traversal results from the triple store as RDF.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/c360studio/sparqlgate/iri"
	"github.com/c360studio/sparqlgate/sparql"
)

const rdfType = iri.RDF + "type"

// Statement is one triple with the graph it was found in.
// Graph is empty for the default graph.
type Statement struct {
	Subject   sparql.Value
	Predicate sparql.Value
	Object    sparql.Value
	Graph     string
}

// RowsToStatements converts rows projecting subject, predicate, object and
// context into statements. A context equal to the nil graph, or unbound, is
// the default graph.
func RowsToStatements(result *sparql.SelectResult) ([]Statement, error) {
	if result == nil {
		return nil, nil
	}

	out := make([]Statement, 0, result.Len())
	for i, row := range result.Results.Bindings {
		s, ok1 := row["subject"]
		p, ok2 := row["predicate"]
		o, ok3 := row["object"]
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("row %d: subject, predicate and object must be bound", i+1)
		}

		st := Statement{Subject: s, Predicate: p, Object: o}
		if g, ok := row["context"]; ok && g.Value != sparql.NilGraph {
			st.Graph = g.Value
		}
		out = append(out, st)
	}
	return out, nil
}

// WriteNQuads writes statements as N-Quads, one per line, in input order.
func WriteNQuads(w io.Writer, statements []Statement) error {
	var sb strings.Builder
	for _, st := range statements {
		sb.WriteString(formatTermNTriples(st.Subject))
		sb.WriteByte(' ')
		sb.WriteString(formatTermNTriples(st.Predicate))
		sb.WriteByte(' ')
		sb.WriteString(formatTermNTriples(st.Object))
		if st.Graph != "" {
			sb.WriteString(fmt.Sprintf(" <%s>", st.Graph))
		}
		sb.WriteString(" .\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteTurtle writes statements as Turtle. Graphs are merged and repeated
// triples written once. IRIs are compacted with codec; only the prefixes that
// appear in the body are declared. A nil codec writes full IRIs.
func WriteTurtle(w io.Writer, codec *iri.Codec, statements []Statement) error {
	tw := NewTurtleWriter(codec)

	type group struct {
		subject sparql.Value
		pairs   [][2]sparql.Value
	}
	var order []string
	groups := make(map[string]*group)
	seen := make(map[string]bool)

	for _, st := range statements {
		key := formatTermNTriples(st.Subject) + " " + formatTermNTriples(st.Predicate) + " " + formatTermNTriples(st.Object)
		if seen[key] {
			continue
		}
		seen[key] = true

		skey := formatTermNTriples(st.Subject)
		g, ok := groups[skey]
		if !ok {
			g = &group{subject: st.Subject}
			groups[skey] = g
			order = append(order, skey)
		}
		g.pairs = append(g.pairs, [2]sparql.Value{st.Predicate, st.Object})
	}

	for _, skey := range order {
		g := groups[skey]
		tw.WriteSubject(g.subject)
		for i, pair := range g.pairs {
			tw.WritePredicate(pair[0], pair[1], i == len(g.pairs)-1)
		}
		tw.WriteBlank()
	}

	_, err := io.WriteString(w, tw.String())
	return err
}

// TurtleWriter accumulates a Turtle document. Prefix declarations are
// emitted ahead of the body when String is called.
type TurtleWriter struct {
	codec *iri.Codec
	used  map[string]bool
	sb    strings.Builder
}

// NewTurtleWriter creates a writer compacting IRIs with codec.
func NewTurtleWriter(codec *iri.Codec) *TurtleWriter {
	return &TurtleWriter{
		codec: codec,
		used:  make(map[string]bool),
	}
}

// WriteSubject starts a new subject block.
func (w *TurtleWriter) WriteSubject(subject sparql.Value) {
	w.sb.WriteString(w.term(subject))
	w.sb.WriteString("\n")
}

// WritePredicate writes a predicate-object pair.
func (w *TurtleWriter) WritePredicate(predicate, object sparql.Value, last bool) {
	terminator := " ;"
	if last {
		terminator = " ."
	}
	p := "a"
	if !(predicate.IsIRI() && predicate.Value == rdfType) {
		p = w.term(predicate)
	}
	w.sb.WriteString(fmt.Sprintf("    %s %s%s\n", p, w.term(object), terminator))
}

// WriteBlank writes a blank line for readability.
func (w *TurtleWriter) WriteBlank() {
	w.sb.WriteString("\n")
}

// String returns the prefix declarations followed by the body.
func (w *TurtleWriter) String() string {
	var out strings.Builder
	if w.codec != nil {
		for _, ns := range w.codec.Namespaces() {
			if w.used[ns.Prefix] {
				out.WriteString(fmt.Sprintf("@prefix %s: <%s> .\n", ns.Prefix, ns.IRI))
			}
		}
	}
	if out.Len() > 0 {
		out.WriteString("\n")
	}
	out.WriteString(w.sb.String())
	return out.String()
}

func (w *TurtleWriter) term(v sparql.Value) string {
	switch {
	case v.IsIRI():
		return w.iriRef(v.Value)
	case v.IsBlank():
		return "_:" + v.Value
	default:
		lit := fmt.Sprintf("\"%s\"", escapeString(v.Value))
		if v.Lang != "" {
			return lit + "@" + v.Lang
		}
		if v.Datatype != "" {
			return lit + "^^" + w.iriRef(v.Datatype)
		}
		return lit
	}
}

// iriRef returns the prefixed name for full when the codec has one whose
// local part is a plain name, and <full> otherwise.
func (w *TurtleWriter) iriRef(full string) string {
	if w.codec != nil {
		short := w.codec.Compact(full)
		if short != full {
			prefix, local, _ := strings.Cut(short, ":")
			if plainLocalName(local) {
				w.used[prefix] = true
				return short
			}
		}
	}
	return fmt.Sprintf("<%s>", full)
}

// plainLocalName reports whether s can be written after a prefix without
// escaping.
func plainLocalName(s string) bool {
	if s == "" {
		return true
	}
	if strings.HasSuffix(s, ".") || strings.HasPrefix(s, "-") || strings.HasPrefix(s, ".") {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '-', r == '.':
		default:
			return false
		}
	}
	return true
}

// formatTermNTriples formats a term for N-Triples and N-Quads output.
func formatTermNTriples(v sparql.Value) string {
	switch {
	case v.IsIRI():
		return fmt.Sprintf("<%s>", v.Value)
	case v.IsBlank():
		return "_:" + v.Value
	default:
		lit := fmt.Sprintf("\"%s\"", escapeString(v.Value))
		if v.Lang != "" {
			return lit + "@" + v.Lang
		}
		if v.Datatype != "" {
			return fmt.Sprintf("%s^^<%s>", lit, v.Datatype)
		}
		return lit
	}
}

// escapeString escapes special characters in strings for RDF serialization.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}
