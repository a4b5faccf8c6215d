package export

import (
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"
)

// Format specifies an RDF serialization.
type Format string

const (
	// FormatTurtle produces Turtle (.ttl) output.
	FormatTurtle Format = "turtle"

	// FormatNTriples produces N-Triples (.nt) output.
	FormatNTriples Format = "ntriples"

	// FormatNQuads produces N-Quads (.nq) output.
	FormatNQuads Format = "nquads"

	// FormatTriG produces TriG (.trig) output.
	FormatTriG Format = "trig"

	// FormatJSONLD produces JSON-LD (.jsonld) output.
	FormatJSONLD Format = "jsonld"

	// FormatRDFXML produces RDF/XML (.rdf) output.
	FormatRDFXML Format = "rdfxml"
)

// FormatInfo provides metadata about an RDF format.
type FormatInfo struct {
	// Name is the format identifier.
	Name Format

	// MIMEType is the standard MIME type, used for Accept and Content-Type.
	MIMEType string

	// Extension is the file extension (with dot).
	Extension string

	// Description describes the format.
	Description string

	// Graphs reports whether the format can carry named graphs.
	Graphs bool
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatTurtle: {
		Name:        FormatTurtle,
		MIMEType:    "text/turtle",
		Extension:   ".ttl",
		Description: "Turtle - Terse RDF Triple Language",
	},
	FormatNTriples: {
		Name:        FormatNTriples,
		MIMEType:    "application/n-triples",
		Extension:   ".nt",
		Description: "N-Triples - Line-based RDF format",
	},
	FormatNQuads: {
		Name:        FormatNQuads,
		MIMEType:    "application/n-quads",
		Extension:   ".nq",
		Description: "N-Quads - N-Triples with a graph term",
		Graphs:      true,
	},
	FormatTriG: {
		Name:        FormatTriG,
		MIMEType:    "application/trig",
		Extension:   ".trig",
		Description: "TriG - Turtle with named graphs",
		Graphs:      true,
	},
	FormatJSONLD: {
		Name:        FormatJSONLD,
		MIMEType:    "application/ld+json",
		Extension:   ".jsonld",
		Description: "JSON-LD - JSON for Linked Data",
		Graphs:      true,
	},
	FormatRDFXML: {
		Name:        FormatRDFXML,
		MIMEType:    "application/rdf+xml",
		Extension:   ".rdf",
		Description: "RDF/XML",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// Formats returns all registered formats sorted by name.
func Formats() []FormatInfo {
	out := make([]FormatInfo, 0, len(FormatRegistry))
	for _, info := range FormatRegistry {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ParseFormat resolves a format name ("turtle") or MIME type
// ("text/turtle; charset=utf-8").
func ParseFormat(s string) (FormatInfo, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if info, ok := FormatRegistry[Format(s)]; ok {
		return info, nil
	}

	mediaType := s
	if mt, _, err := mime.ParseMediaType(s); err == nil {
		mediaType = mt
	}
	for _, info := range FormatRegistry {
		if info.MIMEType == mediaType {
			return info, nil
		}
	}
	return FormatInfo{}, fmt.Errorf("unsupported format: %s", s)
}

// FormatFromFilename picks the format for path by its extension.
func FormatFromFilename(path string) (FormatInfo, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return FormatInfo{}, fmt.Errorf("no file extension: %s", path)
	}
	for _, info := range FormatRegistry {
		if info.Extension == ext {
			return info, nil
		}
	}
	return FormatInfo{}, fmt.Errorf("unsupported file extension: %s", ext)
}
