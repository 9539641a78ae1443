// Package transport is the only path to the remote storefront API. Every call
// returns an explicit Result instead of an error hierarchy, attaches the
// current bearer credential, and on a 401 performs at most one credential
// refresh followed by one replay of the original request.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-storefront-client/internal/auth"
	"github.com/tbourn/go-storefront-client/internal/domain"
	"github.com/tbourn/go-storefront-client/internal/observability"
)

const maxBodyBytes = 10 << 20

var errServerFailure = errors.New("server failure")

// Request describes one remote call. Path is relative to the base URL.
// Anonymous requests carry no bearer and never trigger a refresh.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      any
	Anonymous bool
}

// Options configures a Client.
type Options struct {
	BaseURL         string
	Timeout         time.Duration
	RateRPS         float64 // 0 disables limiting
	RateBurst       int
	BreakerFailures int
	BreakerTimeout  time.Duration
	// RoundTripper is the base HTTP transport; nil means http.DefaultTransport.
	RoundTripper http.RoundTripper
}

// Client is safe for concurrent use.
type Client struct {
	base    string
	timeout time.Duration
	http    *http.Client
	creds   *auth.Store
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[response]
	refresh singleflight.Group
	tracer  trace.Tracer
	log     zerolog.Logger

	hookMu        sync.RWMutex
	onAuthExpired func(context.Context)
}

type response struct {
	status int
	body   []byte
}

// New builds a client reading credentials from creds.
func New(opts Options, creds *auth.Store) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BreakerFailures < 1 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	base := opts.RoundTripper
	if base == nil {
		base = http.DefaultTransport
	}

	limit := rate.Inf
	if opts.RateRPS > 0 {
		limit = rate.Limit(opts.RateRPS)
	}
	burst := opts.RateBurst
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		http:    &http.Client{Transport: otelhttp.NewTransport(base)},
		creds:   creds,
		limiter: rate.NewLimiter(limit, burst),
		tracer:  observability.Tracer("transport/Client"),
		log:     log.With().Str("component", "transport").Logger(),
	}

	failures := uint32(opts.BreakerFailures)
	c.breaker = gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
		Name:    "storefront-api",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.BreakerState.Set(float64(to))
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return c
}

// SetOnAuthExpired installs the hook run after credentials are cleared.
func (c *Client) SetOnAuthExpired(fn func(context.Context)) {
	c.hookMu.Lock()
	c.onAuthExpired = fn
	c.hookMu.Unlock()
}

// Credentials exposes the credential store used for bearer headers.
func (c *Client) Credentials() *auth.Store { return c.creds }

// Do performs req and classifies the outcome.
func (c *Client) Do(ctx context.Context, req Request) Result {
	res := resourceOf(req.Path)
	ctx, span := c.tracer.Start(ctx, "transport.Do", trace.WithAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("storefront.resource", res),
	))
	start := time.Now()

	out := c.do(ctx, req)

	observability.TransportRequests.WithLabelValues(req.Method, res, out.Kind.String()).Inc()
	observability.TransportDuration.WithLabelValues(req.Method, res).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("storefront.outcome", out.Kind.String()), attribute.Int("http.status_code", out.Status))
	if out.Kind == Transport {
		c.log.Warn().Err(out.Err()).Str("method", req.Method).Str("path", req.Path).Msg("remote call failed")
	}
	observability.EndSpan(span, out.Err())
	return out
}

func (c *Client) do(ctx context.Context, req Request) Result {
	if req.Anonymous {
		out := c.roundTrip(ctx, req, "")
		if out.Status == http.StatusUnauthorized {
			out.Kind = Rejected
		}
		return out
	}

	pair, _ := c.creds.Load(ctx)
	out := c.roundTrip(ctx, req, pair.AccessToken)
	if out.Status != http.StatusUnauthorized {
		return out
	}

	// One refresh, then one replay. A replay answered with 401 ends the
	// session instead of refreshing again.
	refreshed := c.refreshOnce(ctx, pair)
	if refreshed.Kind != OK {
		return refreshed
	}
	pair, _ = c.creds.Load(ctx)
	out = c.roundTrip(ctx, req, pair.AccessToken)
	if out.Status == http.StatusUnauthorized {
		return c.expire(ctx)
	}
	return out
}

// refreshOnce exchanges the refresh token of used for a new pair. Concurrent
// callers holding the same stale token share one exchange; a caller whose
// token was already rotated by someone else skips straight to the replay.
func (c *Client) refreshOnce(ctx context.Context, used domain.CredentialPair) Result {
	if cur, ok := c.creds.Load(ctx); ok && used.AccessToken != "" && cur.AccessToken != used.AccessToken {
		return Result{Kind: OK}
	}
	if used.RefreshToken == "" {
		return c.expire(ctx)
	}

	v, _, _ := c.refresh.Do(used.RefreshToken, func() (any, error) {
		out := c.roundTrip(ctx, Request{
			Method:    http.MethodPost,
			Path:      "/auth/refresh",
			Body:      map[string]string{"refreshToken": used.RefreshToken},
			Anonymous: true,
		}, "")
		if out.Kind == OK {
			var ar domain.AuthResult
			if err := out.Decode(&ar); err != nil {
				out = Result{Kind: Transport, Status: out.Status, Cause: err}
			} else if _, err := c.creds.Rotate(ctx, ar.AccessToken, ar.RefreshToken); err != nil {
				out = Result{Kind: Transport, Cause: err}
			}
		}
		observability.TokenRefreshes.WithLabelValues(out.Kind.String()).Inc()
		return out, nil
	})
	out := v.(Result)

	switch out.Kind {
	case OK:
		c.log.Debug().Msg("credentials refreshed")
		return out
	case Transport:
		// The server was not reached; the session may still be valid.
		return out
	}
	return c.expire(ctx)
}

// expire clears every credential, runs the hook and reports AuthExpired.
func (c *Client) expire(ctx context.Context) Result {
	if err := c.creds.Clear(ctx); err != nil {
		c.log.Error().Err(err).Msg("clearing credentials failed")
	}
	c.hookMu.RLock()
	hook := c.onAuthExpired
	c.hookMu.RUnlock()
	if hook != nil {
		hook(ctx)
	}
	c.log.Info().Msg("authentication expired")
	return Result{Kind: AuthExpired, Status: http.StatusUnauthorized, Message: "authentication expired"}
}

// roundTrip performs one HTTP exchange under the rate limit, the breaker and
// the per-call timeout.
func (c *Client) roundTrip(ctx context.Context, req Request, token string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return Result{Kind: Transport, Cause: fmt.Errorf("rate limit: %w", err)}
	}

	httpReq, err := c.newRequest(ctx, req, token)
	if err != nil {
		return Result{Kind: Transport, Cause: err}
	}

	resp, err := c.breaker.Execute(func() (response, error) {
		r, err := c.http.Do(httpReq)
		if err != nil {
			return response{}, err
		}
		defer r.Body.Close()
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return response{}, err
		}
		out := response{status: r.StatusCode, body: body}
		if r.StatusCode >= 500 {
			return out, errServerFailure
		}
		return out, nil
	})
	if err != nil {
		return Result{Kind: Transport, Status: resp.status, Body: resp.body, Cause: err}
	}

	out := Result{Kind: classify(resp.status), Status: resp.status, Body: resp.body}
	if out.Kind != OK {
		out.Message = serverMessage(resp.body, resp.status)
	}
	return out
}

func (c *Client) newRequest(ctx context.Context, req Request, token string) (*http.Request, error) {
	u := c.base + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

// resourceOf returns the first path segment, a bounded metrics label.
func resourceOf(path string) string {
	p := strings.TrimPrefix(path, "/")
	if i := strings.IndexAny(p, "/?"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "root"
	}
	return p
}

// Call performs req and decodes a successful body into T. A body that does
// not decode or validate turns the result into a Transport failure.
func Call[T any](ctx context.Context, c *Client, req Request) (T, Result) {
	var v T
	res := c.Do(ctx, req)
	if res.Kind != OK {
		return v, res
	}
	if err := res.Decode(&v); err != nil {
		return v, Result{Kind: Transport, Status: res.Status, Body: res.Body, Cause: err}
	}
	return v, res
}
