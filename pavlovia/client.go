// Package pavlovia implements a results session against the Pavlovia v2 sessions API.
//
// A session is opened once at startup, receives one upload of the exported table and is closed
// as completed:
//
//	client := pavlovia.New(pavlovia.WithLogger(logger))
//	if err := client.Open(ctx, pavlovia.Config{ProjectID: "507152", Participant: pid}); err != nil {
//	    // remote saving is unavailable, trialsink.Saver falls back to local delivery
//	}
//	saver := trialsink.NewSaver(log, local, trialsink.WithRemote(client))
package pavlovia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/trialsink"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const (
	// DefaultBaseURL is the Pavlovia v2 API root.
	DefaultBaseURL = "https://pavlovia.org/api/v2"

	// DefaultTimeout bounds every request made by the client.
	DefaultTimeout = 30 * time.Second
)

// State is the lifecycle state of a session.
type State int

const (
	StateInactive State = iota
	StateOpening
	StateActive
	StateClosed
)

// String returns the string representation of the state.
func (x State) String() string {
	switch x {
	case StateInactive:
		return "inactive"
	case StateOpening:
		return "opening"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(x))
	}
}

// Config identifies the experiment a session belongs to.
type Config struct {
	// ProjectID is the Pavlovia project ID. Required.
	ProjectID string
	// Participant is an optional identity hint sent when the session is created.
	Participant string
}

// HostCheck reports whether the process runs in the hosting environment.
type HostCheck func() bool

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the API root. Default: DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client. The client's own Timeout takes precedence over WithTimeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the request timeout. Zero disables it. Default: DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHostCheck sets the hosting environment check run by Open.
// Default: always hosted.
func WithHostCheck(check HostCheck) Option {
	return func(c *Client) {
		c.hostCheck = check
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTracerProvider instruments requests with the given TracerProvider.
// If not set, the global TracerProvider is used.
func WithTracerProvider(tp otelTrace.TracerProvider) Option {
	return func(c *Client) {
		c.tracerProvider = tp
	}
}

// Client manages a single results session. It implements trialsink.RemoteSession.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	timeout        time.Duration
	hostCheck      HostCheck
	logger         *slog.Logger
	tracerProvider otelTrace.TracerProvider

	mu        sync.Mutex
	state     State
	projectID string
	token     string
}

var _ trialsink.RemoteSession = (*Client)(nil)

// New creates a Client in the inactive state.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		timeout:   DefaultTimeout,
		hostCheck: func() bool { return true },
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		var transportOpts []otelhttp.Option
		if c.tracerProvider != nil {
			transportOpts = append(transportOpts, otelhttp.WithTracerProvider(c.tracerProvider))
		}
		c.httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport, transportOpts...),
			Timeout:   c.timeout,
		}
	}

	return c
}

// State returns the current state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active reports whether the session accepts uploads.
func (c *Client) Active() bool {
	return c.State() == StateActive
}

// Token returns the session token, or an empty string when no session has been opened.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Open creates a remote session. It returns trialsink.ErrNotHosted or
// trialsink.ErrNotConfigured without any request when the preconditions are not met, and
// leaves the client inactive on any network or protocol failure.
func (c *Client) Open(ctx context.Context, cfg Config) error {
	if !c.hostCheck() {
		c.logger.Info("not running on Pavlovia, server save disabled")
		return goerr.Wrap(trialsink.ErrNotHosted, "cannot open session")
	}
	if cfg.ProjectID == "" {
		c.logger.Error("no project ID configured, cannot open session")
		return goerr.Wrap(trialsink.ErrNotConfigured, "cannot open session")
	}

	c.mu.Lock()
	if c.state == StateOpening || c.state == StateActive {
		state := c.state
		c.mu.Unlock()
		return goerr.Wrap(trialsink.ErrSessionBusy, "cannot open session", goerr.V("state", state.String()))
	}
	c.state = StateOpening
	c.mu.Unlock()

	token, err := c.createSession(ctx, cfg)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateInactive
		c.projectID = ""
		c.token = ""
		c.logger.Error("failed to open session",
			slog.String("project_id", cfg.ProjectID),
			slog.Any("error", err),
		)
		return err
	}

	c.state = StateActive
	c.projectID = cfg.ProjectID
	c.token = token
	c.logger.Info("session opened",
		slog.String("project_id", cfg.ProjectID),
		slog.String("token", token),
	)
	return nil
}

type createSessionResponse struct {
	Token string `json:"token"`
}

func (c *Client) createSession(ctx context.Context, cfg Config) (string, error) {
	fields := map[string]string{}
	if cfg.Participant != "" {
		fields["participant"] = cfg.Participant
	}

	endpoint := c.sessionsURL(cfg.ProjectID)
	resp, err := c.do(ctx, http.MethodPost, endpoint, fields)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create session", goerr.V("url", endpoint))
	}
	defer resp.Body.Close()

	var body createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", goerr.Wrap(err, "failed to decode session response", goerr.V("url", endpoint))
	}
	if body.Token == "" {
		return "", goerr.New("session response has no token", goerr.V("url", endpoint))
	}

	return body.Token, nil
}

// Upload stores content under filename in the active session. It makes one attempt; a failure
// leaves the session active.
func (c *Client) Upload(ctx context.Context, filename, content string) error {
	projectID, token, ok := c.activeSession()
	if !ok {
		c.logger.Warn("session not active, cannot save data", slog.String("filename", filename))
		return goerr.Wrap(trialsink.ErrSessionInactive, "cannot upload", goerr.V("filename", filename))
	}

	endpoint := c.sessionURL(projectID, token) + "/results"
	resp, err := c.do(ctx, http.MethodPost, endpoint, map[string]string{
		"key":   filename,
		"value": content,
	})
	if err != nil {
		c.logger.Error("failed to save data", slog.String("filename", filename), slog.Any("error", err))
		return goerr.Wrap(err, "failed to upload result", goerr.V("filename", filename))
	}
	drain(resp)

	c.logger.Info("data saved", slog.String("filename", filename))
	return nil
}

// Close marks the session as completed. The client is closed as soon as Close is called on an
// active session; the result of the request is returned for logging only.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return goerr.Wrap(trialsink.ErrSessionInactive, "cannot close")
	}
	c.state = StateClosed
	projectID, token := c.projectID, c.token
	c.mu.Unlock()

	endpoint := c.sessionURL(projectID, token)
	resp, err := c.do(ctx, http.MethodDelete, endpoint, map[string]string{
		"isCompleted": "true",
	})
	if err != nil {
		c.logger.Warn("failed to close session", slog.Any("error", err))
		return goerr.Wrap(err, "failed to close session", goerr.V("url", endpoint))
	}
	drain(resp)

	c.logger.Info("session closed")
	return nil
}

func (c *Client) activeSession() (projectID, token string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return "", "", false
	}
	return c.projectID, c.token, true
}

func (c *Client) sessionsURL(projectID string) string {
	return c.baseURL + "/experiments/" + url.PathEscape(projectID) + "/sessions"
}

func (c *Client) sessionURL(projectID, token string) string {
	return c.sessionsURL(projectID) + "/" + url.PathEscape(token)
}

// do sends fields as a multipart form and returns the response when the status is 2xx. The
// caller owns the response body.
func (c *Client) do(ctx context.Context, method, endpoint string, fields map[string]string) (*http.Response, error) {
	body, contentType, err := encodeForm(fields)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send request")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp)
		return nil, goerr.New(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			goerr.V("status", resp.StatusCode),
		)
	}

	return resp, nil
}

func encodeForm(fields map[string]string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		if err := w.WriteField(name, fields[name]); err != nil {
			return nil, "", goerr.Wrap(err, "failed to write form field", goerr.V("field", name))
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", goerr.Wrap(err, "failed to close form")
	}
	return &buf, w.FormDataContentType(), nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
