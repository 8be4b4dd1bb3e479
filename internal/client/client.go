package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
	"github.com/noah-isme/uni-portal/pkg/middleware/requestid"
)

const maxResponseBytes = 10 << 20

// Credentials supplies bearer tokens for the caller bound to a request context.
type Credentials interface {
	// AccessToken returns a token fit for use, refreshing ahead of expiry when needed.
	AccessToken(ctx context.Context) (string, error)
	// Refresh exchanges the refresh token after the backend rejected the token
	// rejected. Implementations skip the exchange when the current token has
	// already moved past rejected.
	Refresh(ctx context.Context, rejected string) (string, error)
}

// Observer receives per-call latency.
type Observer interface {
	ObserveBackendCall(endpoint string, status int, duration time.Duration)
}

type credentialsKey struct{}

// WithCredentials binds creds to ctx so authenticated calls can attach them.
func WithCredentials(ctx context.Context, creds Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

func credentialsFrom(ctx context.Context) Credentials {
	creds, _ := ctx.Value(credentialsKey{}).(Credentials)
	return creds
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithObserver reports call latency to o.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithValidator overrides the payload validator.
func WithValidator(v *validator.Validate) Option {
	return func(c *Client) {
		c.validate = v
	}
}

// Client talks to the university REST backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
	observer   Observer
	logger     *zap.Logger
}

// New creates a backend client rooted at baseURL.
func New(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		validate:   validator.New(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Pagination *pageInfo       `json:"pagination,omitempty"`
}

type pageInfo struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

type call struct {
	method   string
	path     string
	endpoint string
	query    url.Values
	body     interface{}
	auth     bool
}

func (c *Client) do(ctx context.Context, req call, out interface{}) (*pageInfo, error) {
	var creds Credentials
	token := ""
	if req.auth {
		creds = credentialsFrom(ctx)
		if creds == nil {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "no credentials bound to request")
		}
		var err error
		if token, err = creds.AccessToken(ctx); err != nil {
			return nil, err
		}
	}

	var payload []byte
	if req.body != nil {
		var err error
		if payload, err = json.Marshal(req.body); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode request")
		}
	}

	status, body, err := c.send(ctx, req, payload, token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && creds != nil {
		if token, err = creds.Refresh(ctx, token); err != nil {
			return nil, err
		}
		if status, body, err = c.send(ctx, req, payload, token); err != nil {
			return nil, err
		}
	}

	if status < 200 || status >= 300 {
		return nil, statusError(status, body)
	}
	return c.decode(body, out)
}

func (c *Client) send(ctx context.Context, req call, payload []byte, token string) (int, []byte, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, reader)
	if err != nil {
		return 0, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build backend request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		httpReq.Header.Set(requestid.HeaderKey, reqID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(req.endpoint, 0, time.Since(start))
		c.logger.Warn("backend request failed", zap.String("endpoint", req.endpoint), zap.Error(err))
		return 0, nil, appErrors.Wrap(err, appErrors.ErrBackendUnavailable.Code, appErrors.ErrBackendUnavailable.Status, appErrors.ErrBackendUnavailable.Message)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.observe(req.endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return 0, nil, appErrors.Wrap(err, appErrors.ErrBackendUnavailable.Code, appErrors.ErrBackendUnavailable.Status, "failed to read backend response")
	}
	return resp.StatusCode, body, nil
}

func (c *Client) observe(endpoint string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveBackendCall(endpoint, status, d)
	}
}

func (c *Client) decode(body []byte, out interface{}) (*pageInfo, error) {
	if out == nil {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, badPayload(err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, badPayload(errors.New("response has no data"))
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return nil, badPayload(err)
	}
	if err := c.validatePayload(out); err != nil {
		return nil, badPayload(err)
	}
	return env.Pagination, nil
}

// validatePayload checks struct tags on out, or on each element when out is a slice.
func (c *Client) validatePayload(out interface{}) error {
	v := reflect.ValueOf(out)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		return c.validate.Struct(v.Addr().Interface())
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			elem := v.Index(i)
			if elem.Kind() == reflect.Struct {
				if err := c.validate.Struct(elem.Addr().Interface()); err != nil {
					return fmt.Errorf("item %d: %w", i, err)
				}
			}
		}
	}
	return nil
}

func badPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrBadGatewayPayload.Code, appErrors.ErrBadGatewayPayload.Status, appErrors.ErrBadGatewayPayload.Message)
}

func statusError(status int, body []byte) error {
	var env envelope
	_ = json.Unmarshal(body, &env)
	msg := strings.TrimSpace(env.Message)

	switch status {
	case http.StatusNotFound:
		return appErrors.Clone(appErrors.ErrNotFound, msg)
	case http.StatusUnauthorized:
		return appErrors.Clone(appErrors.ErrUnauthorized, msg)
	case http.StatusForbidden:
		return appErrors.Clone(appErrors.ErrForbidden, msg)
	case http.StatusConflict:
		return appErrors.Clone(appErrors.ErrConflict, msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return appErrors.Clone(appErrors.ErrValidation, msg)
	default:
		return appErrors.Wrap(fmt.Errorf("backend responded %d", status), appErrors.ErrBackendUnavailable.Code, appErrors.ErrBackendUnavailable.Status, appErrors.ErrBackendUnavailable.Message)
	}
}
