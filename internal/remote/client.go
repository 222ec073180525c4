// Package remote talks to the storefront API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/utafrali/storefront-sync/pkg/errors"
	"github.com/utafrali/storefront-sync/pkg/httpclient"
	"github.com/utafrali/storefront-sync/pkg/logger"
	"github.com/utafrali/storefront-sync/pkg/middleware"
	"github.com/utafrali/storefront-sync/pkg/tracing"
)

const tracerName = "github.com/utafrali/storefront-sync/internal/remote"

// Request describes one call to the storefront API.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Client performs requests and decodes JSON answers into out.
type Client interface {
	Do(ctx context.Context, req Request, out any) error
}

type bearerKey struct{}

// WithBearer attaches the shopper's access token to outgoing calls made with ctx.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

// BearerFromContext returns the token set by WithBearer.
func BearerFromContext(ctx context.Context) string {
	if t, ok := ctx.Value(bearerKey{}).(string); ok {
		return t
	}
	return ""
}

// HTTPClient implements Client over a circuit-breaking HTTP client.
type HTTPClient struct {
	baseURL *url.URL
	http    *httpclient.CircuitBreakerClient
	service string
	logger  *slog.Logger
}

// NewHTTPClient creates a client for the API rooted at baseURL. service
// names the remote in errors and logs.
func NewHTTPClient(baseURL string, hc *httpclient.CircuitBreakerClient, service string, l *slog.Logger) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	return &HTTPClient{baseURL: u, http: hc, service: service, logger: l}, nil
}

func (c *HTTPClient) url(req Request) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}
	return u.String()
}

// Do sends req. Non-2xx answers come back as *apperrors.AppError carrying
// the remote status and code. A nil out discards the body.
func (c *HTTPClient) Do(ctx context.Context, req Request, out any) (err error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := tracing.Tracer(tracerName).Start(ctx, method+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(method),
			semconv.URLPath(req.Path),
			attribute.String("peer.service", c.service),
		),
	)
	defer func() { tracing.EndSpan(span, err) }()

	var body io.Reader = http.NoBody
	if req.Body != nil {
		data, mErr := json.Marshal(req.Body)
		if mErr != nil {
			return fmt.Errorf("marshal %s body: %w", req.Path, mErr)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.url(req), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := BearerFromContext(ctx); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		httpReq.Header.Set(middleware.CorrelationHeader, id)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.http.Do(ctx, httpReq)
	if err != nil {
		return c.transportError(ctx, method, req.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, c.service)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.Remote(c.service, http.StatusBadGateway, "REMOTE_DECODE_ERROR",
			fmt.Sprintf("decode %s response: %v", req.Path, err))
	}
	return nil
}

func (c *HTTPClient) transportError(ctx context.Context, method, path string, err error) error {
	translated := httpclient.TranslateError(err, c.service)
	var appErr *apperrors.AppError
	if errors.As(translated, &appErr) {
		return translated
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s %s: %w", method, path, ctxErr)
	}
	logger.WithContext(ctx, c.logger).WarnContext(ctx, "storefront api unreachable",
		slog.String("method", method),
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
	return apperrors.Remote(c.service, http.StatusBadGateway, "REMOTE_UNREACHABLE", err.Error())
}
