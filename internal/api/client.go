// Package api is the client for the remote spreadsheet-to-XML conversion
// service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/nconklindev/sheet2xml/internal/logger"
	"github.com/nconklindev/sheet2xml/internal/metrics"
	"github.com/nconklindev/sheet2xml/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 30 * time.Second

	// LoginPath is where users are sent when the service rejects the token.
	LoginPath = "/login"

	// MaxResponseSize bounds downloads and error bodies.
	MaxResponseSize = 64 * 1024 * 1024

	// StatusHealthy is the status a working service reports.
	StatusHealthy = "healthy"
)

// UnauthorizedHandler is called after a 401 has cleared the stored token.
type UnauthorizedHandler func(loginPath string)

// Client talks to the conversion service. Credentials are only sent to
// the service's own origin.
type Client struct {
	baseURL        string
	origin         *url.URL
	timeout        time.Duration
	httpClient     *http.Client
	creds          CredentialStore
	onUnauthorized UnauthorizedHandler
	limiter        *rate.Limiter
	log            zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout. It is applied to a copy of the
// HTTP client, so a client passed to WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithCredentials sets the token store consulted on every request.
func WithCredentials(store CredentialStore) Option {
	return func(c *Client) { c.creds = store }
}

// WithUnauthorizedHandler sets the hook run on every 401.
func WithUnauthorizedHandler(h UnauthorizedHandler) Option {
	return func(c *Client) { c.onUnauthorized = h }
}

// WithRateLimit allows at most perMinute requests per minute. Zero disables
// throttling.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) { c.limiter = NewLimiter(perMinute) }
}

// NewLimiter returns a limiter allowing perMinute requests per minute with
// bursts of the same size, or nil when perMinute is not positive.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

// WithLimiter shares one limiter between clients, e.g. the per-request
// clients of the web front end.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger sets the logger requests are logged to.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		creds:      NewMemoryStore(""),
		log:        logger.Get(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 && c.httpClient.Timeout != c.timeout {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	c.origin, _ = url.Parse(c.baseURL)
	return c
}

// sameService reports whether u points at the service's own scheme and
// host.
func (c *Client) sameService(u *url.URL) bool {
	if c.origin == nil || u == nil {
		return false
	}
	return strings.EqualFold(u.Scheme, c.origin.Scheme) && strings.EqualFold(u.Host, c.origin.Host)
}

// BaseURL returns the service root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Credentials returns the token store.
func (c *Client) Credentials() CredentialStore { return c.creds }

// Convert uploads file with the header fields and returns the service's
// answer.
func (c *Client) Convert(ctx context.Context, file types.SelectedFile, fields []types.HeaderField) (*types.ConversionResponse, error) {
	body, contentType, err := conversionBody(file, fields)
	if err != nil {
		return nil, &Error{Message: MsgUnexpected, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convert", body)
	if err != nil {
		return nil, &Error{Message: MsgUnexpected, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	metrics.UploadBytes.Observe(float64(len(file.Content)))
	c.log.Info().Str("file", file.Name).Int64("size", file.Size).Int("fields", len(fields)).Msg("Submitting conversion")

	resp, err := c.do(req, "convert")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out types.ConversionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseSize)).Decode(&out); err != nil {
		return nil, &Error{Message: "Invalid response from server", StatusCode: resp.StatusCode, Err: err}
	}
	return &out, nil
}

func conversionBody(file types.SelectedFile, fields []types.HeaderField) (io.Reader, string, error) {
	if fields == nil {
		fields = []types.HeaderField{}
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return nil, "", fmt.Errorf("encode header fields: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     "file",
		"filename": file.Name,
	}))
	mediaType := file.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	h.Set("Content-Type", mediaType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("header_fields", string(encoded)); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// Download is a fetched document.
type Download struct {
	Name        string
	ContentType string
	Data        []byte
}

// FetchDownload retrieves the converted document with the given id.
func (c *Client) FetchDownload(ctx context.Context, id string) (*Download, error) {
	return c.fetch(ctx, c.baseURL+"/download/"+url.PathEscape(id), "download")
}

// FetchURL retrieves a download link as returned in a ConversionResponse.
// Absolute links are used as given; links starting with "/" are taken
// relative to the service root. Links to other hosts are fetched without
// credentials.
func (c *Client) FetchURL(ctx context.Context, rawURL string) (*Download, error) {
	target, err := c.ResolveURL(rawURL)
	if err != nil {
		return nil, &Error{Message: MsgUnexpected, Err: err}
	}
	return c.fetch(ctx, target, "download")
}

// ResolveURL makes a download link absolute against the service root.
func (c *Client) ResolveURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if !strings.HasPrefix(rawURL, "/") {
		rawURL = "/" + rawURL
	}
	return c.baseURL + rawURL, nil
}

func (c *Client) fetch(ctx context.Context, target, endpoint string) (*Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Message: MsgUnexpected, Err: err}
	}

	resp, err := c.do(req, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, &Error{Message: MsgRequestFailed, StatusCode: resp.StatusCode, Err: err}
	}

	return &Download{
		Name:        downloadName(resp, req.URL),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func downloadName(resp *http.Response, u *url.URL) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			return path.Base(params["filename"])
		}
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return "converted.xml"
	}
	return name
}

// HealthCheck reports whether the service answers {"status": "healthy"}.
// Any failure counts as unhealthy.
func (c *Client) HealthCheck(ctx context.Context) bool {
	h, err := c.Health(ctx)
	if err != nil {
		c.log.Debug().Err(err).Msg("Health check failed")
		return false
	}
	return h.Status == StatusHealthy
}

// Health returns the service's health document.
func (c *Client) Health(ctx context.Context) (*types.HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, &Error{Message: MsgUnexpected, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req, "health")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var h types.HealthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseSize)).Decode(&h); err != nil {
		return nil, &Error{Message: "Invalid response from server", StatusCode: resp.StatusCode, Err: err}
	}
	return &h, nil
}

// do sends req with a request id, plus the session token when req targets
// the service, and turns any non-2xx answer into *Error. A 401 from the
// service also clears the token and runs the unauthorized hook.
func (c *Client) do(req *http.Request, endpoint string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, &Error{Message: MsgRequestFailed, Err: err}
		}
	}

	trusted := c.sameService(req.URL)
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	if token := c.creds.Token(); token != "" && trusted {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	log := c.log.With().Str("request_id", requestID).Str("method", req.Method).Str("url", req.URL.String()).Logger()

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(endpoint, "error").Inc()
		log.Error().Err(err).Msg("Request failed")
		return nil, &Error{Message: MsgRequestFailed, Err: err}
	}
	metrics.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Debug().Int("status", resp.StatusCode).Msg("Request completed")
		return resp, nil
	}

	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	// A foreign host never saw the token, so its 401 says nothing about
	// the session.
	if resp.StatusCode == http.StatusUnauthorized && trusted {
		c.creds.Clear()
		metrics.SessionsExpired.Inc()
		log.Warn().Msg("Session rejected, token cleared")
		if c.onUnauthorized != nil {
			c.onUnauthorized(LoginPath)
		}
	}

	apiErr := &Error{
		Message:    errorMessage(body, MsgRequestFailed),
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
	}
	log.Error().Int("status", resp.StatusCode).Bytes("body", body).Msg("Backend error")
	return nil, apiErr
}

// IsUnauthorized reports whether err carries a 401 from the service.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}
