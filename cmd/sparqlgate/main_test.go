package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/sparqlgate/config"
	"github.com/c360studio/sparqlgate/sparql"
)

// isolate points HOME and the working directory at temp dirs and clears the
// environment overrides, so no real configuration is read.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{config.EnvServerURL, config.EnvRepository, config.EnvUsername, config.EnvPassword, config.EnvNATSURL} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
	return home
}

// fakeServer is an RDF4J stand-in recording non-empty request bodies.
type fakeServer struct {
	*httptest.Server
	mux *http.ServeMux

	mu     sync.Mutex
	bodies []string
}

func newFakeServer(t *testing.T) *fakeServer {
	fs := &fakeServer{mux: http.NewServeMux()}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if len(body) > 0 {
			fs.mu.Lock()
			fs.bodies = append(fs.bodies, string(body))
			fs.mu.Unlock()
		}
		fs.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(fs.Close)

	fs.mux.HandleFunc("GET /repositories/test/namespaces", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sparql.SelectResult{
			Head: sparql.Head{Vars: []string{"prefix", "namespace"}},
			Results: sparql.Results{Bindings: []sparql.Binding{
				{"prefix": literal("ex"), "namespace": literal("http://example.org/")},
			}},
		})
	})
	return fs
}

func (fs *fakeServer) lastBody() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.bodies) == 0 {
		return ""
	}
	return fs.bodies[len(fs.bodies)-1]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func literal(v string) sparql.Value { return sparql.Value{Type: sparql.TermLiteral, Value: v} }

func uri(v string) sparql.Value { return sparql.Value{Type: sparql.TermIRI, Value: v} }

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sparqlgate version "+Version)
}

func TestSelect(t *testing.T) {
	isolate(t)
	fs := newFakeServer(t)
	var query atomic.Value
	fs.mux.HandleFunc("POST /repositories/test", func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.RawQuery)
		writeJSON(w, sparql.SelectResult{
			Head: sparql.Head{Vars: []string{"s", "n"}},
			Results: sparql.Results{Bindings: []sparql.Binding{
				{"s": uri("http://example.org/alice"), "n": {Type: sparql.TermLiteral, Value: "42", Datatype: sparql.XSDInteger}},
			}},
		})
	})

	out, err := execute(t, "--server", fs.URL, "--repo", "test", "select", "--compact", "--limit", "5", "SELECT ?s ?n WHERE { ?s ?p ?n }")
	require.NoError(t, err)
	assert.Equal(t, "limit=5", query.Load())
	assert.Equal(t, "SELECT ?s ?n WHERE { ?s ?p ?n }", fs.lastBody())
	assert.Contains(t, out, "ex:alice")
	assert.Contains(t, out, `"42"^^xsd:integer`)

	out, err = execute(t, "--server", fs.URL, "--repo", "test", "--json", "select", "--native", "SELECT ?s ?n {}")
	require.NoError(t, err)
	assert.Equal(t, "limit=2048", query.Load())
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "http://example.org/alice", rows[0]["s"])
	assert.Equal(t, float64(42), rows[0]["n"])
}

func TestSelectFromFile(t *testing.T) {
	isolate(t)
	fs := newFakeServer(t)
	fs.mux.HandleFunc("POST /repositories/test", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sparql.SelectResult{Head: sparql.Head{Vars: []string{"s"}}})
	})

	path := filepath.Join(t.TempDir(), "q.rq")
	require.NoError(t, os.WriteFile(path, []byte("SELECT ?s {}"), 0644))

	_, err := execute(t, "--server", fs.URL, "--repo", "test", "select", "-f", path)
	require.NoError(t, err)
	assert.Equal(t, "SELECT ?s {}", fs.lastBody())

	_, err = execute(t, "--server", fs.URL, "--repo", "test", "select", "-f", path, "SELECT 1")
	assert.Error(t, err, "argument and --file are exclusive")

	_, err = execute(t, "--server", fs.URL, "--repo", "test", "select", "--watch", "SELECT 1")
	assert.ErrorContains(t, err, "--watch needs --file")
}

func TestAskUpdateAndRun(t *testing.T) {
	isolate(t)
	fs := newFakeServer(t)
	fs.mux.HandleFunc("POST /repositories/test", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"boolean": true})
	})
	var updates atomic.Int32
	fs.mux.HandleFunc("POST /repositories/test/statements", func(w http.ResponseWriter, r *http.Request) {
		updates.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	out, err := execute(t, "--server", fs.URL, "--repo", "test", "ask", "ASK { ?s ?p ?o }")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = execute(t, "--server", fs.URL, "--repo", "test", "update", "INSERT DATA { <a> <b> <c> }")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
	assert.Equal(t, int32(1), updates.Load())

	out, err = execute(t, "--server", fs.URL, "--repo", "test", "run", "PREFIX ex: <http://example.org/>\nDELETE WHERE { ex:a ?p ?o }")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
	assert.Equal(t, int32(2), updates.Load())

	out, err = execute(t, "--server", fs.URL, "--repo", "test", "run", "# check\nASK {}")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	_, err = execute(t, "--server", fs.URL, "--repo", "test", "run", "EXPLAIN everything")
	assert.Error(t, err)
}

func TestConstruct(t *testing.T) {
	isolate(t)
	fs := newFakeServer(t)
	var accept atomic.Value
	fs.mux.HandleFunc("POST /repositories/test", func(w http.ResponseWriter, r *http.Request) {
		accept.Store(r.Header.Get("Accept"))
		_, _ = io.WriteString(w, "<a> <b> <c> .\n")
	})

	out, err := execute(t, "--server", fs.URL, "--repo", "test", "construct", "--format", "ntriples", "CONSTRUCT WHERE { ?s ?p ?o }")
	require.NoError(t, err)
	assert.Equal(t, "<a> <b> <c> .\n", out)
	assert.Equal(t, "application/n-triples", accept.Load())

	_, err = execute(t, "--server", fs.URL, "--repo", "test", "construct", "--format", "csv", "CONSTRUCT {}")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestTraversal(t *testing.T) {
	isolate(t)
	fs := newFakeServer(t)
	fs.mux.HandleFunc("POST /repositories/test", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sparql.SelectResult{
			Head: sparql.Head{Vars: sparql.TraversalVars},
			Results: sparql.Results{Bindings: []sparql.Binding{{
				"subject":   uri("http://example.org/alice"),
				"predicate": uri("http://example.org/knows"),
				"object":    uri("http://example.org/bob"),
				"context":   uri(sparql.NilGraph),
			}}},
		})
	})

	out, err := execute(t, "--server", fs.URL, "--repo", "test", "mentions", "ex:alice")
	require.NoError(t, err)
	assert.Equal(t, sparql.MentionsQuery("http://example.org/alice"), fs.lastBody(), "prefixed name is expanded")
	assert.Contains(t, out, "ex:knows")
	assert.Contains(t, out, "ex:bob")

	out, err = execute(t, "--server", fs.URL, "--repo", "test", "describe", "--format", "nquads", "http://example.org/alice")
	require.NoError(t, err)
	assert.Equal(t, sparql.DescriptionQuery("http://example.org/alice"), fs.lastBody())
	assert.Equal(t, "<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .\n", out)

	out, err = execute(t, "--server", fs.URL, "--repo", "test", "references", "--format", "turtle", "ex:bob")
	require.NoError(t, err)
	assert.Equal(t, sparql.ReferencesQuery("http://example.org/bob"), fs.lastBody())
	assert.Contains(t, out, "@prefix ex: <http://example.org/> .")
	assert.Contains(t, out, "ex:alice\n    ex:knows ex:bob .")
}

func TestTraversalRejectsUnsafeIRI(t *testing.T) {
	isolate(t)
	fs := newFakeServer(t)
	var queries atomic.Int32
	fs.mux.HandleFunc("POST /repositories/test", func(w http.ResponseWriter, r *http.Request) {
		queries.Add(1)
		writeJSON(w, sparql.SelectResult{Head: sparql.Head{Vars: sparql.TraversalVars}})
	})

	for _, cmd := range []string{"describe", "references", "mentions"} {
		for _, subject := range []string{
			"http://example.org/a> } DROP ALL { <x",
			"http://example.org/a b",
			"ex:\"quoted\"",
		} {
			_, err := execute(t, "--server", fs.URL, "--repo", "test", cmd, subject)
			assert.ErrorContains(t, err, "is not a valid IRI", "%s %q", cmd, subject)
		}
	}
	assert.Equal(t, int32(0), queries.Load(), "no query text was sent")
}

func TestContexts(t *testing.T) {
	isolate(t)
	fs := newFakeServer(t)
	fs.mux.HandleFunc("GET /repositories/test/contexts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sparql.SelectResult{
			Head: sparql.Head{Vars: []string{"contextID"}},
			Results: sparql.Results{Bindings: []sparql.Binding{
				{"contextID": uri("http://example.org/g1")},
			}},
		})
	})
	var lastContext atomic.Value
	fs.mux.HandleFunc("/repositories/test/statements", func(w http.ResponseWriter, r *http.Request) {
		lastContext.Store(r.Method + " " + r.URL.Query().Get("context"))
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, "<x> <y> <z> .\n")
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})

	out, err := execute(t, "--server", fs.URL, "--repo", "test", "contexts", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "http://example.org/g1")

	dir := t.TempDir()
	outFile := filepath.Join(dir, "g1.nt")
	_, err = execute(t, "--server", fs.URL, "--repo", "test", "contexts", "export", "-o", outFile, "ex:g1")
	require.NoError(t, err)
	assert.Equal(t, "GET <http://example.org/g1>", lastContext.Load())
	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, "<x> <y> <z> .\n", string(data))

	dataFile := filepath.Join(dir, "g2.ttl")
	require.NoError(t, os.WriteFile(dataFile, []byte("<a> <b> <c> ."), 0644))
	out, err = execute(t, "--server", fs.URL, "--repo", "test", "contexts", "replace", "ex:g2", dataFile)
	require.NoError(t, err)
	assert.Equal(t, "PUT <http://example.org/g2>", lastContext.Load())
	assert.Equal(t, "<a> <b> <c> .", fs.lastBody())
	assert.Contains(t, out, "replaced http://example.org/g2")

	out, err = execute(t, "--server", fs.URL, "--repo", "test", "contexts", "delete", "ex:g1")
	require.NoError(t, err)
	assert.Equal(t, "DELETE <http://example.org/g1>", lastContext.Load())
	assert.Contains(t, out, "deleted http://example.org/g1")
}

func TestReposAndNamespaces(t *testing.T) {
	isolate(t)
	fs := newFakeServer(t)
	fs.mux.HandleFunc("GET /repositories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sparql.SelectResult{
			Head: sparql.Head{Vars: []string{"id", "title", "readable", "writable"}},
			Results: sparql.Results{Bindings: []sparql.Binding{
				{"id": literal("test"), "title": literal("Test store"), "readable": literal("true"), "writable": literal("true")},
			}},
		})
	})

	out, err := execute(t, "--server", fs.URL, "--repo", "test", "repos")
	require.NoError(t, err)
	assert.Contains(t, out, "Test store")

	out, err = execute(t, "--server", fs.URL, "--repo", "test", "namespaces")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6, "header plus rdf, rdfs, xsd, owl, ex")
	assert.True(t, strings.HasPrefix(lines[5], "ex "))

	out, err = execute(t, "--server", fs.URL, "--repo", "test", "expand", "ex:alice", "rdf:type", "nope:x")
	require.NoError(t, err)
	assert.Equal(t, "http://example.org/alice\nhttp://www.w3.org/1999/02/22-rdf-syntax-ns#type\nnope:x\n", out)

	out, err = execute(t, "--server", fs.URL, "--repo", "test", "compact", "http://example.org/alice")
	require.NoError(t, err)
	assert.Equal(t, "ex:alice\n", out)
}

func TestNotAuthorized(t *testing.T) {
	isolate(t)
	fs := newFakeServer(t)
	fs.mux.HandleFunc("GET /repositories/test/contexts", func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, sparql.SelectResult{})
	})

	_, err := execute(t, "--server", fs.URL, "--repo", "test", "contexts", "list")
	assert.ErrorContains(t, err, "contexts: error 401")

	_, err = execute(t, "--server", fs.URL, "--repo", "test", "-u", "alice", "-p", "secret", "contexts", "list")
	assert.NoError(t, err)
}

func TestInvalidConfig(t *testing.T) {
	isolate(t)
	_, err := execute(t, "--server", "ftp://example.org", "repos")
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestConfigFile(t *testing.T) {
	isolate(t)
	fs := newFakeServer(t)
	fs.mux.HandleFunc("POST /repositories/books", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"boolean": false})
	})

	path := filepath.Join(t.TempDir(), "sparqlgate.yaml")
	content := "server:\n  url: " + fs.URL + "\n  repository: books\nqueries:\n  backend: memory\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	out, err := execute(t, "--config", path, "ask", "ASK {}")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)
}

func TestSavedQueries(t *testing.T) {
	home := isolate(t)

	_, err := execute(t, "saved", "save", "--title", "everything", "SELECT * { ?s ?p ?o }")
	require.NoError(t, err)
	_, err = execute(t, "saved", "save", "--title", "types", "SELECT ?t { ?s a ?t }")
	require.NoError(t, err)

	// The file backend keeps queries between runs.
	_, err = os.Stat(filepath.Join(home, config.UserConfigDir, "queries", "rdf4j-queries.json"))
	require.NoError(t, err)

	out, err := execute(t, "--json", "saved", "list")
	require.NoError(t, err)
	var queries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &queries))
	require.Len(t, queries, 2)
	assert.Equal(t, "everything", queries[0]["title"])
	assert.Equal(t, float64(2), queries[1]["id"])

	_, err = execute(t, "saved", "delete", "1")
	require.NoError(t, err)

	out, err = execute(t, "--json", "saved", "list")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &queries))
	require.Len(t, queries, 1)
	assert.Equal(t, "types", queries[0]["title"])
	assert.Equal(t, float64(1), queries[0]["id"])

	_, err = execute(t, "saved", "delete", "--key", queries[0]["key"].(string))
	require.NoError(t, err)
	out, err = execute(t, "saved", "list")
	require.NoError(t, err)
	assert.Equal(t, "ID  KEY  TITLE  QUERY\n", out)

	_, err = execute(t, "saved", "delete", "one")
	assert.Error(t, err)
}

func TestSavedImport(t *testing.T) {
	isolate(t)

	root := t.TempDir()
	files := map[string]string{
		"people/by-name.rq":         "SELECT ?p { ?p ?name ?n }",
		"people/deep/nested/all.rq": "SELECT * {}",
		"notes.txt":                 "not a query",
		"empty.rq":                  "  \n",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	_, err := execute(t, "saved", "import", filepath.Join(root, "**", "*.rq"))
	require.NoError(t, err)

	out, err := execute(t, "--json", "saved", "list")
	require.NoError(t, err)
	var queries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &queries))
	require.Len(t, queries, 2, "empty files and other extensions are skipped")

	titles := []string{queries[0]["title"].(string), queries[1]["title"].(string)}
	assert.Contains(t, titles, filepath.ToSlash(filepath.Join(root, "people", "by-name")))
	assert.Contains(t, titles, filepath.ToSlash(filepath.Join(root, "people", "deep", "nested", "all")))

	_, err = execute(t, "saved", "import", filepath.Join(root, "*.sparql"))
	assert.ErrorContains(t, err, "no files match")
}

func TestWatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.rq")
	require.NoError(t, os.WriteFile(path, []byte("SELECT 1"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, newLogger(io.Discard, "error"), path, func(context.Context) error {
			runs.Add(1)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("SELECT 2"), 0644))
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watchFile did not stop after cancel")
	}
}

func TestConfigInitAndShow(t *testing.T) {
	home := isolate(t)

	out, err := execute(t, "config", "init")
	require.NoError(t, err)
	userConfig := filepath.Join(home, config.UserConfigDir, config.UserConfigFile)
	assert.Equal(t, userConfig+"\n", out)

	out, err = execute(t, "--repo", "books", "-u", "alice", "-p", "secret", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# from "+userConfig)
	assert.Contains(t, out, "repository: books")
	assert.NotContains(t, out, "secret")
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "queries/people/by-name", titleFromPath("queries/./people/by-name.rq"))
	assert.Equal(t, "SELECT * ...", firstLine("\n  SELECT *\nWHERE { ?s ?p ?o }"))
	assert.Equal(t, "ASK {}", firstLine("ASK {}"))

	info, err := resolveFormat("", "")
	require.NoError(t, err)
	assert.Equal(t, "text/turtle", info.MIMEType)
	info, err = resolveFormat("", "graph.nq")
	require.NoError(t, err)
	assert.Equal(t, "application/n-quads", info.MIMEType)
	info, err = resolveFormat("jsonld", "graph.nq")
	require.NoError(t, err)
	assert.Equal(t, "application/ld+json", info.MIMEType)

	assert.Equal(t, "_:b0", formatValue(sparql.Value{Type: sparql.TermBlankNode, Value: "b0"}, nil))
	assert.Equal(t, `"chat"@fr`, formatValue(sparql.Value{Type: sparql.TermLiteral, Value: "chat", Lang: "fr"}, nil))
	assert.Equal(t, "plain", formatValue(sparql.Value{Type: sparql.TermLiteral, Value: "plain", Datatype: "http://www.w3.org/2001/XMLSchema#string"}, nil))
	assert.Equal(t, "http://example.org/x", formatValue(uri("http://example.org/x"), nil))
}
