package inspirehub

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is the backend address used during local development.
	DefaultBaseURL = "http://localhost:5000/api/"

	// AuthSchemeJWT is the Authorization scheme the InspireHub backend expects.
	AuthSchemeJWT = "JWT"
	// AuthSchemeBearer is accepted by backends running the newer auth middleware.
	AuthSchemeBearer = "Bearer"

	modulePath = "thde.io/inspirehub"
)

var (
	// ErrStatus is returned when the API returns an unexpected status code.
	ErrStatus = errors.New("unexpected status code")
	// ErrUnauthorized is returned when the API rejects the credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionEnded is returned when the session could not be renewed and was cleared.
	ErrSessionEnded = errors.New("session ended")
	// ErrNotAuthenticated is returned when an operation requires an active session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoRefreshToken is returned when no refresh token is available.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrRefreshRejected is returned when the backend refuses the refresh token.
	ErrRefreshRejected = errors.New("refresh token rejected")
)

// Client holds configuration needed to call the InspireHub API.
// Use [New] to create a new client.
type Client struct {
	baseURL *url.URL

	httpClient *http.Client
	userAgent  string
	authScheme string

	session *Session
	store   CredentialStore
	log     logrus.FieldLogger
}

// ClientOption configures a Client before use.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent sets a custom User-Agent header for API requests.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithAuthScheme sets the scheme used in the Authorization header.
func WithAuthScheme(scheme string) ClientOption {
	return func(c *Client) {
		c.authScheme = scheme
	}
}

// WithCredentialStore sets the durable store the session is mirrored into.
// Defaults to an in-memory store that does not survive restarts.
func WithCredentialStore(store CredentialStore) ClientOption {
	return func(c *Client) {
		c.store = store
	}
}

// WithLogger sets the logger used by the client and its session.
func WithLogger(log logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// New creates an InspireHub API client for the backend at baseURL.
// The session starts anonymous; call [Session.Restore] or [Client.Login].
func New(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		authScheme: AuthSchemeJWT,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.userAgent == "" {
		c.userAgent = userAgent()
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}

	c.session = newSession(c.store, refresherFunc(c.refreshAccessToken), c.log)

	return c, nil
}

// Session returns the session manager owning the client's credential.
func (c *Client) Session() *Session {
	return c.session
}

// BaseURL returns the resolved API base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// parseBaseURL makes sure relative paths resolve below the base path.
func parseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		raw = DefaultBaseURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	return u, nil
}

// version returns the module version of the inspirehub package.
// It returns "devel" if built without module version information.
func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "devel"
	}

	for _, dep := range info.Deps {
		if dep.Path == modulePath {
			if dep.Version == "(devel)" {
				return "devel"
			}

			return dep.Version
		}
	}

	if info.Main.Path == modulePath && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	return "devel"
}

// userAgent returns the default User-Agent string for this package.
func userAgent() string {
	return fmt.Sprintf("go-inspirehub/%s (%s; %s/%s)", version(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
