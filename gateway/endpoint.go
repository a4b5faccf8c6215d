package gateway

import "strings"

// Default endpoint values.
const (
	DefaultServerURL  = "http://localhost/rdf4j-server"
	DefaultRepository = "default"
)

// Credentials hold a Basic-auth login. They live only in memory.
type Credentials struct {
	Username string
	Password string
}

// Enabled reports whether both fields are set.
func (c Credentials) Enabled() bool {
	return c.Username != "" && c.Password != ""
}

// Endpoint identifies the server, repository and login every call targets.
// It is a value; changing any field yields a new Endpoint.
type Endpoint struct {
	ServerURL   string
	Repository  string
	Credentials Credentials
}

// DefaultEndpoint returns the endpoint used when none is configured.
func DefaultEndpoint() Endpoint {
	return Endpoint{ServerURL: DefaultServerURL, Repository: DefaultRepository}
}

// RepositoryURL is ServerURL + "/repositories/" + Repository.
func (e Endpoint) RepositoryURL() string {
	return e.ServerURL + "/repositories/" + e.Repository
}

// RepositoriesURL lists repositories at the server root.
func (e Endpoint) RepositoriesURL() string {
	return e.ServerURL + "/repositories"
}

// WithRepository returns a copy addressing repo.
func (e Endpoint) WithRepository(repo string) Endpoint {
	e.Repository = repo
	return e
}

// WithServerURL returns a copy addressing url. A trailing slash is dropped.
func (e Endpoint) WithServerURL(url string) Endpoint {
	e.ServerURL = strings.TrimSuffix(url, "/")
	return e
}

// WithCredentials returns a copy logged in as user. Empty values disable auth.
func (e Endpoint) WithCredentials(user, pass string) Endpoint {
	e.Credentials = Credentials{Username: user, Password: pass}
	return e
}
