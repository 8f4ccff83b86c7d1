// Package api is the typed client for the remote storefront REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBaseURL = "http://localhost:8080/api"

	maxResponseSize = 4 << 20 // 4MB
)

type response struct {
	status int
	body   []byte
}

type Client struct {
	baseURL string
	http    *http.Client
	creds   session.CredentialStore
	breaker *gobreaker.CircuitBreaker[*response]
	sfg     singleflight.Group // collapses identical concurrent GETs
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithBreakerSettings replaces the default circuit breaker. IsSuccessful is
// always set by the client.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(cl *Client) {
		st.IsSuccessful = isSuccessful
		cl.breaker = gobreaker.NewCircuitBreaker[*response](st)
	}
}

func NewClient(baseURL string, creds session.CredentialStore, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		creds: creds,
	}
	WithBreakerSettings(gobreaker.Settings{
		Name:        "storefront-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %s: %s -> %s \n", name, from, to)
		},
	})(c)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// isSuccessful keeps client errors out of the breaker's failure count.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code < http.StatusInternalServerError
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	token := c.token(ctx)
	v, err, _ := c.sfg.Do(token+" GET "+path, func() (interface{}, error) {
		return c.do(ctx, http.MethodGet, path, token, nil, nil)
	})
	if err != nil {
		return err
	}
	return decode(v.(*response), out)
}

func (c *Client) send(ctx context.Context, method, path string, header http.Header, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	resp, err := c.do(ctx, method, path, c.token(ctx), header, body)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func (c *Client) do(ctx context.Context, method, path, token string, header http.Header, body []byte) (*response, error) {
	resp, err := c.breaker.Execute(func() (*response, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		res, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer res.Body.Close()

		data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
		if err != nil {
			return nil, fmt.Errorf("read %s %s: %w", method, path, err)
		}
		if res.StatusCode >= 400 {
			return nil, newStatusError(res.StatusCode, data)
		}
		return &response{status: res.StatusCode, body: data}, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, err
}

// token reads the credential for every request; a missing one sends the
// request anonymously.
func (c *Client) token(ctx context.Context) string {
	if c.creds == nil {
		return ""
	}
	token, err := c.creds.Credential(ctx)
	if err != nil {
		if !errors.Is(err, session.ErrNoCredential) {
			log.Printf("credential read error: %v \n", err)
		}
		return ""
	}
	return token
}

func decode(resp *response, out interface{}) error {
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
