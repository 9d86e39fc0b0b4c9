package tulip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a single request, including reading the body.
const DefaultTimeout = 30 * time.Second

// Credentials holds the ways a Client can authenticate. They are resolved
// once, in priority order: Auth, then APIKey+APISecret, then EnvAuth.
type Credentials struct {
	Auth      string // pre-encoded token, sent as-is
	APIKey    string
	APISecret string
	EnvAuth   string // TULIP_AUTH captured by the caller's config layer
}

// Token returns the value sent after "Basic " in the Authorization header.
func (c Credentials) Token() (string, error) {
	switch {
	case c.Auth != "":
		return c.Auth, nil
	case c.APIKey != "" && c.APISecret != "":
		return base64.StdEncoding.EncodeToString([]byte(c.APIKey + ":" + c.APISecret)), nil
	case c.EnvAuth != "":
		return c.EnvAuth, nil
	}
	return "", ErrNoCredentials
}

// Config configures a Client.
type Config struct {
	// Instance is the host name ("acme.tulip.co"), or the full base URL
	// ("http://localhost:8089") when UseFullURL is set.
	Instance   string
	UseFullURL bool

	Credentials Credentials

	// Concurrency caps requests in flight. Zero means DefaultConcurrency.
	Concurrency int

	// Timeout applies per request. Zero means DefaultTimeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. Zero disables it.
	RateLimit float64

	// HTTPClient replaces the client built from the settings above.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Requester is the transport contract used by tables, links and machines.
// *Client implements it.
type Requester interface {
	Request(ctx context.Context, method, path string, query url.Values, body, out any) error
	RequestExpectNothing(ctx context.Context, method, path string, query url.Values, body any) error
}

// Client performs authenticated requests against one instance.
type Client struct {
	baseURL    string
	authHeader string

	http      *http.Client
	transport *http.Transport // nil when HTTPClient was injected

	slots   *SlotLimiter
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient resolves credentials and builds the base URL. It fails with
// ErrNoCredentials when no credential source is set.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Instance) == "" {
		return nil, fmt.Errorf("instance is required")
	}

	token, err := cfg.Credentials.Token()
	if err != nil {
		return nil, err
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL:    BaseURL(cfg.Instance, cfg.UseFullURL),
		authHeader: "Basic " + token,
		slots:      NewSlotLimiter(concurrency, 0),
		logger:     logger,
	}

	if cfg.HTTPClient != nil {
		c.http = cfg.HTTPClient
	} else {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.MaxConnsPerHost = concurrency
		tr.MaxIdleConnsPerHost = concurrency
		c.transport = tr
		c.http = &http.Client{Transport: tr, Timeout: timeout}
	}

	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return c, nil
}

// BaseURL returns the API root for an instance, always ending in "/".
func BaseURL(instance string, useFullURL bool) string {
	if useFullURL {
		return strings.TrimRight(instance, "/") + "/api/v3/"
	}
	host := strings.TrimPrefix(instance, "http://")
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimRight(host, "/")
	return "https://" + host + "/api/v3/"
}

// BaseURL returns the API root this client sends requests to.
func (c *Client) BaseURL() string { return c.baseURL }

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Slots reports request slot usage.
func (c *Client) Slots() SlotStatus { return c.slots.Status() }

// Table returns a handle for the table with the given id.
func (c *Client) Table(id string) *Table {
	return &Table{api: c, id: id, logger: c.logger}
}

// TableLink returns a handle for the table link with the given id.
func (c *Client) TableLink(id string) *TableLink {
	return NewTableLink(c, id)
}

// Machine returns a handle for reporting attributes of one machine.
func (c *Client) Machine(id string) *Machine {
	return NewMachine(c, id)
}

// Drain waits for in-flight requests to finish.
func (c *Client) Drain(ctx context.Context) error {
	return c.slots.WaitForDrain(ctx)
}

// Close releases idle connections held by the client's own transport.
// Requests still in flight are not interrupted.
func (c *Client) Close() error {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	} else {
		c.http.CloseIdleConnections()
	}
	return nil
}

// Request sends a request and decodes the JSON response into out, which may
// be nil. body, when non-nil, is sent as JSON. Failures are *APIError values
// matched with errors.Is against ErrMalformedRequest, ErrNotFound, etc.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body, out any) error {
	respBody, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// RequestExpectNothing sends a request and discards the response body.
func (c *Client) RequestExpectNothing(ctx context.Context, method, path string, query url.Values, body any) error {
	_, err := c.do(ctx, method, path, query, body)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var reqBody []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reqBody = b
	}

	target := c.baseURL + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if err := c.slots.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire request slot: %w", err)
	}
	defer c.slots.Release()

	var reader io.Reader
	if reqBody != nil {
		reader = bytes.NewReader(reqBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	c.logger.Debug("api request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if kind := classifyStatus(resp.StatusCode); kind != nil {
		return nil, &APIError{
			Kind:         kind,
			Method:       method,
			URL:          target,
			StatusCode:   resp.StatusCode,
			RequestBody:  reqBody,
			ResponseBody: respBody,
		}
	}
	return respBody, nil
}
