package sparql

import (
	"strings"
	"unicode"
)

// QueryKind is the operation form of a SPARQL request.
type QueryKind string

const (
	KindSelect    QueryKind = "select"
	KindAsk       QueryKind = "ask"
	KindConstruct QueryKind = "construct"
	KindDescribe  QueryKind = "describe"
	KindUpdate    QueryKind = "update"
	KindUnknown   QueryKind = ""
)

var updateKeywords = map[string]bool{
	"insert": true,
	"delete": true,
	"load":   true,
	"clear":  true,
	"create": true,
	"drop":   true,
	"copy":   true,
	"move":   true,
	"add":    true,
	"with":   true,
}

// DetectKind classifies a request by its first keyword after the prologue
// (PREFIX and BASE declarations, comments). It does not validate the request.
func DetectKind(query string) QueryKind {
	s := query
	for {
		s = skipSpaceAndComments(s)
		word, rest := nextWord(s)
		switch strings.ToLower(word) {
		case "prefix":
			// PREFIX name: <iri>
			_, rest = nextWord(skipSpaceAndComments(rest))
			s = skipIRIRef(skipSpaceAndComments(rest))
			continue
		case "base":
			s = skipIRIRef(skipSpaceAndComments(rest))
			continue
		case "select":
			return KindSelect
		case "ask":
			return KindAsk
		case "construct":
			return KindConstruct
		case "describe":
			return KindDescribe
		}
		if updateKeywords[strings.ToLower(word)] {
			return KindUpdate
		}
		return KindUnknown
	}
}

func skipSpaceAndComments(s string) string {
	for {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		if !strings.HasPrefix(s, "#") {
			return s
		}
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			return ""
		}
	}
}

func nextWord(s string) (string, string) {
	end := strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '<' || r == '{' || r == '*' || r == '('
	})
	if end < 0 {
		return s, ""
	}
	return s[:end], s[end:]
}

func skipIRIRef(s string) string {
	if !strings.HasPrefix(s, "<") {
		return s
	}
	if i := strings.IndexByte(s, '>'); i >= 0 {
		return s[i+1:]
	}
	return ""
}
