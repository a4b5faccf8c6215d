// Package sparql holds the SPARQL JSON result model, typed value coercion,
// and the traversal queries used to explore a resource across graphs.
package sparql

// Term types reported in SPARQL JSON results.
const (
	TermIRI          = "uri"
	TermLiteral      = "literal"
	TermTypedLiteral = "typed-literal"
	TermBlankNode    = "bnode"
)

// Value is one RDF term as serialized in SPARQL JSON results.
type Value struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// IsIRI reports whether the value names a resource.
func (v Value) IsIRI() bool { return v.Type == TermIRI }

// IsBlank reports whether the value is a blank node.
func (v Value) IsBlank() bool { return v.Type == TermBlankNode }

// IsLiteral reports whether the value is a plain, language-tagged or typed literal.
func (v Value) IsLiteral() bool {
	return v.Type == TermLiteral || v.Type == TermTypedLiteral
}

// Binding maps projected variable names to values for one result row.
type Binding map[string]Value

// Head lists the projected variables in projection order.
type Head struct {
	Vars []string `json:"vars"`
}

// Results wraps the ordered binding rows.
type Results struct {
	Bindings []Binding `json:"bindings"`
}

// SelectResult is the tabular result of a SELECT query. Row order is the
// server's and is never re-sorted.
type SelectResult struct {
	Head    Head    `json:"head"`
	Results Results `json:"results"`
}

// Len returns the number of rows.
func (r *SelectResult) Len() int {
	return len(r.Results.Bindings)
}

// Column returns the values of one variable across all rows, in row order.
// Rows where the variable is unbound yield a zero Value.
func (r *SelectResult) Column(name string) []Value {
	out := make([]Value, len(r.Results.Bindings))
	for i, b := range r.Results.Bindings {
		out[i] = b[name]
	}
	return out
}

// AskResult is the boolean result of an ASK query.
type AskResult struct {
	Head    *Head `json:"head,omitempty"`
	Boolean bool  `json:"boolean"`
}

// UpdateResult reports the outcome of a SPARQL UPDATE.
type UpdateResult struct {
	Success bool `json:"success"`
}

// ContextDescription identifies one named graph.
type ContextDescription struct {
	IRI string `json:"iri"`
}

// RepositoryInfo describes one repository available on a server.
type RepositoryInfo struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URI      string `json:"uri,omitempty"`
	Readable bool   `json:"readable,omitempty"`
	Writable bool   `json:"writable,omitempty"`
}
