// Package tsheets is a read-only client for the QuickBooks Time (TSheets)
// REST API. It pages through list endpoints, batches id filters, validates
// every record and converts it to the model types.
package tsheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://rest.tsheets.com/api/v1"

// MaxIDsPerRequest caps how many ids go into one ids= filter.
const MaxIDsPerRequest = 100

const (
	defaultPageLimit = 200
	maxPages         = 500
	maxErrorBody     = 500
)

// HTTPDoer defines the HTTP operations required by Client. The production
// doer is an oauth2 client that attaches and refreshes the bearer token.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the time-tracking API.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	pageLimit  int
	timeout    time.Duration
	logger     *zap.Logger
	validate   *validator.Validate
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithPageLimit sets the page size for list calls (1-200).
func WithPageLimit(limit int) Option {
	return func(c *Client) {
		if limit > 0 && limit <= defaultPageLimit {
			c.pageLimit = limit
		}
	}
}

// WithTimeout bounds each HTTP request. Zero leaves only the caller's context.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithLogger sets the logger for request and validation diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client that sends requests through httpClient.
func New(httpClient HTTPDoer, opts ...Option) *Client {
	client := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: httpClient,
		pageLimit:  defaultPageLimit,
		logger:     zap.NewNop(),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// APIError is a non-2xx response from the service.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API error (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
}

// RateLimited reports whether the service throttled the request.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Unauthorized reports whether the credentials were rejected.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// envelope is the common shape of list responses. Results and supplemental
// data are keyed by record kind, then by record id.
type envelope struct {
	Results          map[string]json.RawMessage `json:"results"`
	More             bool                       `json:"more"`
	SupplementalData map[string]json.RawMessage `json:"supplemental_data"`
}

// errorBody is the service's error payload.
type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// pageFunc receives one decoded page.
type pageFunc func(page *envelope) error

// list requests every page of endpoint with params and hands each to fn.
func (c *Client) list(ctx context.Context, endpoint string, params url.Values, fn pageFunc) error {
	for page := 1; ; page++ {
		query := cloneValues(params)
		query.Set("page", strconv.Itoa(page))
		query.Set("limit", strconv.Itoa(c.pageLimit))

		body, err := c.get(ctx, endpoint, query)
		if err != nil {
			return err
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("%s: decoding page %d: %w", endpoint, page, err)
		}
		if err := fn(&env); err != nil {
			return err
		}

		if !env.More {
			return nil
		}
		if page >= maxPages {
			c.logger.Warn("page limit reached", zap.String("endpoint", endpoint), zap.Int("pages", page))
			return nil
		}
	}
}

// get performs one authenticated GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL + "/" + endpoint
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", endpoint, err)
	}

	c.logger.Debug("api request",
		zap.String("endpoint", endpoint),
		zap.String("page", query.Get("page")),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(endpoint, resp.StatusCode, body)
	}
	return body, nil
}

// newAPIError extracts the service's message, falling back to a truncated body.
func newAPIError(endpoint string, status int, body []byte) *APIError {
	var parsed errorBody
	message := ""
	if err := json.Unmarshal(body, &parsed); err == nil {
		message = parsed.Error.Message
	}
	if message == "" {
		message = string(body)
		if len(message) > maxErrorBody {
			message = message[:maxErrorBody]
		}
	}
	return &APIError{Endpoint: endpoint, StatusCode: status, Message: message}
}

// cloneValues copies url.Values so pages do not share state.
func cloneValues(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for key, vals := range values {
		out[key] = append([]string(nil), vals...)
	}
	return out
}

// joinIDs renders ids as a comma-separated filter value.
func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

// chunkIDs splits ids into groups of at most size.
func chunkIDs(ids []int64, size int) [][]int64 {
	var chunks [][]int64
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
