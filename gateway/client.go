// Package gateway is a client for the RDF4J REST protocol: SPARQL queries and
// updates, named-graph management, repository and namespace listing, and
// saved queries.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/c360studio/sparqlgate/iri"
	"github.com/c360studio/sparqlgate/savedquery"
	"github.com/c360studio/sparqlgate/sparql"
)

// DefaultQueryLimit is the row limit sent with queries that set none.
// The server may enforce a lower ceiling of its own.
const DefaultQueryLimit = 2048

// Client talks to one RDF4J server. It is safe for concurrent use.
type Client struct {
	httpClient      *http.Client
	logger          *slog.Logger
	metrics         *Metrics
	maxResponseSize int64
	queryLimit      int
	queries         *savedquery.Store

	mu              sync.Mutex
	endpoint        Endpoint
	generation      uint64
	namespaces      cached[*sparql.SelectResult]
	codec           cached[*iri.Codec]
	onNotAuthorized func()
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records requests into m.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithMaxResponseSize caps buffered response bodies. A larger body fails
// with *ResponseTooLargeError. Values below 1 keep the default.
func WithMaxResponseSize(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxResponseSize = n
		}
	}
}

// WithDefaultLimit replaces DefaultQueryLimit for this client.
func WithDefaultLimit(n int) ClientOption {
	return func(c *Client) {
		c.queryLimit = n
	}
}

// WithQueryStore sets where saved queries persist.
func WithQueryStore(s *savedquery.Store) ClientOption {
	return func(c *Client) {
		c.queries = s
	}
}

// NewClient creates a client for endpoint.
func NewClient(endpoint Endpoint, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger:          slog.Default(),
		maxResponseSize: DefaultMaxResponseSize,
		queryLimit:      DefaultQueryLimit,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.queries == nil {
		c.queries = savedquery.NewStore(savedquery.NewMemoryKV())
	}

	return c
}

// Endpoint returns the endpoint calls currently target.
func (c *Client) Endpoint() Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// OnNotAuthorized registers fn to run whenever a response has status 401 or
// 403. A nil fn removes the callback.
func (c *Client) OnNotAuthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNotAuthorized = fn
}

func (c *Client) notAuthorized() {
	c.mu.Lock()
	fn := c.onNotAuthorized
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// snapshot returns the endpoint and its generation.
func (c *Client) snapshot() (Endpoint, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint, c.generation
}

// transition moves to a new endpoint and drops everything cached for the old one.
func (c *Client) transition(next func(Endpoint) Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoint = next(c.endpoint)
	c.generation++
	c.namespaces.Invalidate()
	c.codec.Invalidate()
}

// SetServerURL switches to another server. The codec is rebuilt lazily.
func (c *Client) SetServerURL(serverURL string) {
	c.transition(func(e Endpoint) Endpoint { return e.WithServerURL(serverURL) })
}

// SetRepository switches the active repository and rebuilds the codec.
// A failed namespace fetch leaves a degraded codec; see Codec.
func (c *Client) SetRepository(ctx context.Context, repo string) {
	c.transition(func(e Endpoint) Endpoint { return e.WithRepository(repo) })
	c.Codec(ctx)
}

// Login sets the Basic-auth credentials and rebuilds the codec. Empty values
// disable authentication.
func (c *Client) Login(ctx context.Context, username, password string) {
	c.transition(func(e Endpoint) Endpoint { return e.WithCredentials(username, password) })
	c.Codec(ctx)
}

// InvalidateNamespaces drops the cached namespaces and codec. Fetches already
// in flight complete but are not cached.
func (c *Client) InvalidateNamespaces() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.namespaces.Invalidate()
	c.codec.Invalidate()
}

// QueryOption adjusts one query request.
type QueryOption func(*queryOptions)

type queryOptions struct {
	limit int
}

// WithLimit sets the row limit sent to the server.
func WithLimit(n int) QueryOption {
	return func(o *queryOptions) {
		o.limit = n
	}
}

func (c *Client) queryRequest(op, query, accept string, opts []QueryOption) request {
	o := queryOptions{limit: c.queryLimit}
	for _, opt := range opts {
		opt(&o)
	}
	ep, _ := c.snapshot()
	return request{
		op:          op,
		method:      http.MethodPost,
		url:         ep.RepositoryURL() + "?limit=" + strconv.Itoa(o.limit),
		contentType: MediaSPARQLQuery,
		accept:      accept,
		body:        strings.NewReader(query),
		creds:       ep.Credentials,
	}
}

// Select runs a SELECT query.
func (c *Client) Select(ctx context.Context, query string, opts ...QueryOption) (*sparql.SelectResult, error) {
	var result sparql.SelectResult
	if err := c.doJSON(ctx, c.queryRequest("select", query, MediaJSON, opts), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Ask runs an ASK query.
func (c *Client) Ask(ctx context.Context, query string, opts ...QueryOption) (*sparql.AskResult, error) {
	var result sparql.AskResult
	if err := c.doJSON(ctx, c.queryRequest("ask", query, MediaJSON, opts), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Construct runs a CONSTRUCT (or DESCRIBE) query and returns the serialized
// graph in the accept media type.
func (c *Client) Construct(ctx context.Context, query, accept string, opts ...QueryOption) (string, error) {
	body, err := c.readBody(ctx, c.queryRequest("construct", query, accept, opts))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Update runs a SPARQL UPDATE against the statements resource.
func (c *Client) Update(ctx context.Context, update string) (*sparql.UpdateResult, error) {
	ep, _ := c.snapshot()
	resp, err := c.exchange(ctx, request{
		op:          "update",
		method:      http.MethodPost,
		url:         ep.RepositoryURL() + "/statements",
		contentType: MediaSPARQLUpdate,
		body:        strings.NewReader(update),
		creds:       ep.Credentials,
	})
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return &sparql.UpdateResult{Success: true}, nil
}

// SubjectDescription returns the triples with subjectIRI as subject across the
// default graph and all named graphs.
func (c *Client) SubjectDescription(ctx context.Context, subjectIRI string) (*sparql.SelectResult, error) {
	return c.Select(ctx, sparql.DescriptionQuery(subjectIRI))
}

// SubjectReferences returns the triples with subjectIRI as object across the
// default graph and all named graphs.
func (c *Client) SubjectReferences(ctx context.Context, subjectIRI string) (*sparql.SelectResult, error) {
	return c.Select(ctx, sparql.ReferencesQuery(subjectIRI))
}

// SubjectMentions returns every triple mentioning subjectIRI, plus the
// contents of the graph named subjectIRI.
func (c *Client) SubjectMentions(ctx context.Context, subjectIRI string) (*sparql.SelectResult, error) {
	return c.Select(ctx, sparql.MentionsQuery(subjectIRI))
}

// encodeComponent escapes s for use as one URL path segment.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// SubjectValue reads one property value through the subject resource path.
func (c *Client) SubjectValue(ctx context.Context, subjectIRI, propertyIRI string) (*sparql.Value, error) {
	ep, _ := c.snapshot()
	var v sparql.Value
	err := c.doJSON(ctx, request{
		op:     "subject_value",
		method: http.MethodGet,
		url:    ep.RepositoryURL() + "/subject/" + encodeComponent(subjectIRI) + "/" + encodeComponent(propertyIRI),
		creds:  ep.Credentials,
	}, &v)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Contexts lists the named graphs of the repository.
func (c *Client) Contexts(ctx context.Context) ([]sparql.ContextDescription, error) {
	ep, _ := c.snapshot()
	var result sparql.SelectResult
	err := c.doJSON(ctx, request{
		op:     "contexts",
		method: http.MethodGet,
		url:    ep.RepositoryURL() + "/contexts",
		creds:  ep.Credentials,
	}, &result)
	if err != nil {
		return nil, err
	}

	out := make([]sparql.ContextDescription, 0, len(result.Results.Bindings))
	for _, b := range result.Results.Bindings {
		out = append(out, sparql.ContextDescription{IRI: b["contextID"].Value})
	}
	return out, nil
}

// contextURL addresses the statements of one named graph.
func contextURL(ep Endpoint, contextIRI string) string {
	q := url.Values{"context": {"<" + contextIRI + ">"}}
	return ep.RepositoryURL() + "/statements?" + q.Encode()
}

// ExportContext streams the statements of one named graph, serialized as
// mime, into w and returns the number of bytes written.
func (c *Client) ExportContext(ctx context.Context, contextIRI, mime string, w io.Writer) (int64, error) {
	ep, _ := c.snapshot()
	resp, err := c.exchange(ctx, request{
		op:     "export_context",
		method: http.MethodGet,
		url:    contextURL(ep, contextIRI),
		accept: mime,
		creds:  ep.Credentials,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("export_context: copy body: %w", err)
	}
	return n, nil
}

// ReplaceContext replaces all statements of one named graph with data,
// serialized as mime.
func (c *Client) ReplaceContext(ctx context.Context, contextIRI, mime string, data io.Reader) error {
	ep, _ := c.snapshot()
	resp, err := c.exchange(ctx, request{
		op:          "replace_context",
		method:      http.MethodPut,
		url:         contextURL(ep, contextIRI),
		contentType: mime,
		body:        data,
		creds:       ep.Credentials,
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// DeleteContext removes all statements of one named graph. An empty response
// counts as success; a JSON response succeeds when its status is "ok".
func (c *Client) DeleteContext(ctx context.Context, contextIRI string) (bool, error) {
	ep, _ := c.snapshot()
	r := request{
		op:     "delete_context",
		method: http.MethodDelete,
		url:    contextURL(ep, contextIRI),
		creds:  ep.Credentials,
	}
	body, err := c.readBody(ctx, r)
	if err != nil {
		return false, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return true, nil
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return false, &DecodeError{Op: r.op, Err: err}
	}
	return status.Status == "ok", nil
}

// Repositories lists the repositories at the server root.
func (c *Client) Repositories(ctx context.Context) ([]sparql.RepositoryInfo, error) {
	ep, _ := c.snapshot()
	var result sparql.SelectResult
	err := c.doJSON(ctx, request{
		op:     "repositories",
		method: http.MethodGet,
		url:    ep.RepositoriesURL(),
		creds:  ep.Credentials,
	}, &result)
	if err != nil {
		return nil, err
	}

	out := make([]sparql.RepositoryInfo, 0, len(result.Results.Bindings))
	for _, b := range result.Results.Bindings {
		out = append(out, sparql.RepositoryInfo{
			ID:       b["id"].Value,
			Title:    b["title"].Value,
			URI:      b["uri"].Value,
			Readable: b["readable"].Value == "true",
			Writable: b["writable"].Value == "true",
		})
	}
	return out, nil
}

// Namespaces fetches the repository's namespace table.
func (c *Client) Namespaces(ctx context.Context) (*sparql.SelectResult, error) {
	ep, _ := c.snapshot()
	return c.fetchNamespaces(ctx, ep)
}

func (c *Client) fetchNamespaces(ctx context.Context, ep Endpoint) (*sparql.SelectResult, error) {
	var result sparql.SelectResult
	err := c.doJSON(ctx, request{
		op:     "namespaces",
		method: http.MethodGet,
		url:    ep.RepositoryURL() + "/namespaces",
		creds:  ep.Credentials,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// NamespacesCached returns the namespace table fetched once per endpoint.
// A fetch that completes after the endpoint changed is returned but not cached.
func (c *Client) NamespacesCached(ctx context.Context) (*sparql.SelectResult, error) {
	c.mu.Lock()
	ep, gen := c.endpoint, c.generation
	if v, ok := c.namespaces.get(gen); ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	result, err := c.fetchNamespaces(ctx, ep)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if gen == c.generation {
		c.namespaces.set(result, gen)
	}
	c.mu.Unlock()
	return result, nil
}

// NamespaceDefs returns the cached namespace table as prefix bindings in
// server order.
func (c *Client) NamespaceDefs(ctx context.Context) ([]iri.Namespace, error) {
	result, err := c.NamespacesCached(ctx)
	if err != nil {
		return nil, err
	}
	return namespaceDefs(result), nil
}

func namespaceDefs(result *sparql.SelectResult) []iri.Namespace {
	out := make([]iri.Namespace, 0, len(result.Results.Bindings))
	for _, b := range result.Results.Bindings {
		out = append(out, iri.Namespace{
			Prefix: b["prefix"].Value,
			IRI:    b["namespace"].Value,
		})
	}
	return out
}

// Codec returns the IRI codec for the current endpoint, building it on first
// use. When the namespace fetch fails the codec holds only the defaults and
// reports Degraded; it stays cached until the endpoint changes or
// InvalidateNamespaces is called.
func (c *Client) Codec(ctx context.Context) *iri.Codec {
	c.mu.Lock()
	gen := c.generation
	if v, ok := c.codec.get(gen); ok {
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()

	var codec *iri.Codec
	defs, err := c.NamespaceDefs(ctx)
	if err != nil {
		c.logger.Warn("Namespace fetch failed, using default prefixes",
			"repository", c.Endpoint().Repository,
			"error", err)
		codec = iri.NewDegradedCodec(err)
	} else {
		codec = iri.NewCodec(defs)
	}

	c.mu.Lock()
	if gen == c.generation {
		c.codec.set(codec, gen)
	}
	c.mu.Unlock()
	return codec
}

// SavedQueries lists saved queries with ids assigned by position, starting at 1.
func (c *Client) SavedQueries(ctx context.Context) ([]savedquery.Query, error) {
	return c.queries.List(ctx)
}

// SaveQuery appends q to the saved queries.
func (c *Client) SaveQuery(ctx context.Context, q savedquery.Query) (savedquery.Query, error) {
	return c.queries.Save(ctx, q)
}

// DeleteQuery removes the saved query at position id as returned by the last
// SavedQueries call. Remaining queries are renumbered.
func (c *Client) DeleteQuery(ctx context.Context, id int) error {
	return c.queries.Delete(ctx, id)
}

// DeleteQueryByKey removes the saved query with the given stable key.
func (c *Client) DeleteQueryByKey(ctx context.Context, key string) error {
	return c.queries.DeleteByKey(ctx, key)
}
