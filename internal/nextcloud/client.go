package nextcloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/metrics"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/retry"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/webhookutils"
)

const maxResponseBody = 32 << 20

// ErrUnexpectedStatus matches every *StatusError.
var ErrUnexpectedStatus = errors.New("unexpected status")

// StatusError is returned when Nextcloud answers with a status the operation does not accept.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, strings.TrimSpace(body))
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Retryable reports whether the status is worth retrying on an idempotent request.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Options configures a Client for one bot account.
type Options struct {
	BaseURL  string
	User     string
	Password string
	// Secret signs outbound Talk bot messages.
	Secret string

	Timeout    time.Duration
	RateLimit  float64
	RateBurst  int
	Retry      retry.RetryConfig
	HTTPClient *http.Client
}

// Client talks to the Talk, Deck, WebDAV and sharing APIs of one Nextcloud instance with
// one bot's credentials.
type Client struct {
	baseURL  string
	user     string
	password string
	secret   string

	http    *http.Client
	limiter *rate.Limiter
	retry   retry.RetryConfig
}

// New creates a client. Zero options fall back to a 60s timeout, 5 requests per second and
// the default retry policy for idempotent reads.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 5
	}
	if opts.Retry.Multiplier == 0 {
		opts.Retry = retry.DefaultRetryConfig()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		user:     opts.User,
		password: opts.Password,
		secret:   opts.Secret,
		http:     httpClient,
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		retry:    opts.Retry,
	}
}

// BaseURL returns the Nextcloud root URL without trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// User returns the Nextcloud account the client acts as.
func (c *Client) User() string { return c.user }

type call struct {
	op          string
	method      string
	url         string
	body        []byte
	contentType string
	headers     map[string]string
	basicAuth   bool
	accept      []int
	// idempotent calls are retried on transient failures.
	idempotent bool
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (c *Client) do(ctx context.Context, cl call) (*response, error) {
	start := time.Now()
	var resp *response
	attempt := func(ctx context.Context) error {
		r, err := c.roundTrip(ctx, cl)
		resp = r
		return err
	}

	var err error
	if cl.idempotent {
		res := retry.RetryWithBackoff(ctx, c.retry, cl.op, attempt)
		if !res.Success {
			err = res.LastError
		}
	} else {
		err = attempt(ctx)
	}
	metrics.ObserveExternal("nextcloud", cl.op, start, err)
	if err != nil {
		log.Debug().Err(err).Str("op", cl.op).Str("method", cl.method).Msg("Nextcloud call failed")
	}
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, cl call) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if cl.body != nil {
		body = bytes.NewReader(cl.body)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, cl.url, body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", cl.op, err)
	}
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	for k, v := range cl.headers {
		req.Header.Set(k, v)
	}
	if cl.basicAuth {
		req.SetBasicAuth(c.user, c.password)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cl.op, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", cl.op, err)
	}
	resp := &response{status: httpResp.StatusCode, header: httpResp.Header, body: data}

	for _, ok := range cl.accept {
		if resp.status == ok {
			return resp, nil
		}
	}
	return resp, &StatusError{Op: cl.op, StatusCode: resp.status, Body: string(data)}
}

var ocsHeaders = map[string]string{
	webhookutils.HeaderOCSRequest: "true",
	"Accept":                      "application/json",
}

// FileURL returns the WebDAV download URL of p in the bot's file tree.
func (c *Client) FileURL(p string) string { return c.davURL(p) }

// davURL returns the WebDAV URL of p in the bot's file tree, escaping each path segment.
func (c *Client) davURL(p string) string {
	return c.davRoot() + escapePath(p)
}

func (c *Client) davRoot() string {
	return c.baseURL + "/remote.php/dav/files/" + url.PathEscape(c.user)
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	out := strings.Join(segments, "/")
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	return out
}
