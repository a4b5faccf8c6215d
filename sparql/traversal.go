package sparql

import (
	"fmt"
	"strings"
)

// NilGraph is the RDF4J IRI standing for the default graph in GRAPH patterns.
const NilGraph = "http://rdf4j.org/schema/rdf4j#nil"

// Columns projected by every traversal query, in order.
var TraversalVars = []string{"subject", "predicate", "object", "context"}

// position selects which slot of a triple pattern the traversed IRI occupies.
type position int

const (
	asSubject position = iota
	asPredicate
	asObject
)

// branch renders one UNION arm. graph is either an IRI (rendered in angle
// brackets) or empty for the ?g variable.
func branch(sb *strings.Builder, graph, iri string, pos position) {
	g := "?g"
	if graph != "" {
		g = "<" + graph + ">"
	}

	var pattern, bind string
	switch pos {
	case asSubject:
		pattern = fmt.Sprintf("<%s> ?p ?o .", iri)
		bind = fmt.Sprintf("BIND(<%s> AS ?s)", iri)
	case asPredicate:
		pattern = fmt.Sprintf("?s <%s> ?o .", iri)
		bind = fmt.Sprintf("BIND(<%s> AS ?p)", iri)
	case asObject:
		pattern = fmt.Sprintf("?s ?p <%s> .", iri)
		bind = fmt.Sprintf("BIND(<%s> AS ?o)", iri)
	}

	fmt.Fprintf(sb, "\t{\n\t\tGRAPH %s {\n\t\t\t%s\n\t\t\t%s\n\t\t}\n\t}\n", g, pattern, bind)
}

// graphBranch renders the arm that reads the contents of the graph named iri.
func graphBranch(sb *strings.Builder, iri string) {
	fmt.Fprintf(sb, "\t{\n\t\tGRAPH <%s> {\n\t\t\t?s ?p ?o .\n\t\t\tBIND(<%s> AS ?g)\n\t\t}\n\t}\n", iri, iri)
}

func traversal(arms ...func(*strings.Builder)) string {
	var sb strings.Builder
	sb.WriteString("SELECT (?s AS ?subject) (?p AS ?predicate) (?o AS ?object) (?g AS ?context) WHERE {\n")
	for i, arm := range arms {
		if i > 0 {
			sb.WriteString("\tUNION\n")
		}
		arm(&sb)
	}
	sb.WriteString("}\n")
	return sb.String()
}

func arm(graph, iri string, pos position) func(*strings.Builder) {
	return func(sb *strings.Builder) { branch(sb, graph, iri, pos) }
}

// DescriptionQuery selects every triple with iri as subject, from the default
// graph and from every named graph.
//
// iri is substituted verbatim; it must not contain '>' or other characters
// that end an IRI reference (see ValidIRIRef).
func DescriptionQuery(iri string) string {
	return traversal(
		arm(NilGraph, iri, asSubject),
		arm("", iri, asSubject),
	)
}

// ReferencesQuery selects every triple with iri as object, from the default
// graph and from every named graph. The same precondition as DescriptionQuery
// applies to iri.
func ReferencesQuery(iri string) string {
	return traversal(
		arm(NilGraph, iri, asObject),
		arm("", iri, asObject),
	)
}

// MentionsQuery selects every triple mentioning iri in any position, in the
// default graph or a named graph, plus the contents of the graph named iri
// (with ?context bound to iri). The same precondition as DescriptionQuery
// applies to iri.
func MentionsQuery(iri string) string {
	return traversal(
		arm(NilGraph, iri, asSubject),
		arm(NilGraph, iri, asPredicate),
		arm(NilGraph, iri, asObject),
		arm("", iri, asSubject),
		arm("", iri, asPredicate),
		arm("", iri, asObject),
		func(sb *strings.Builder) { graphBranch(sb, iri) },
	)
}

// ValidIRIRef reports whether iri can be placed between angle brackets in
// query text without changing the query's structure.
func ValidIRIRef(iri string) bool {
	if iri == "" {
		return false
	}
	for _, r := range iri {
		if r <= 0x20 {
			return false
		}
		switch r {
		case '<', '>', '"', '{', '}', '|', '^', '`', '\\':
			return false
		}
	}
	return true
}
