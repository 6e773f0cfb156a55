// Package supabase implements the persistence ports on top of the
// Supabase PostgREST API. Multi-row deletes go through Postgres RPC
// functions so they commit in a single transaction.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/infra/resilience"
	"github.com/boddenberg/portal-membros-go/internal/port"
)

var tracer = otel.Tracer("supabase")

var _ port.Store = (*Client)(nil)

// PostgREST Prefer header values.
const (
	preferRepresentation = "return=representation"
	preferUpsert         = "resolution=merge-duplicates,return=representation"
)

// Client wraps HTTP calls to the Supabase PostgREST API and implements port.Store.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client. All calls authenticate with the
// service role key, so row-level security is enforced by the services.
func NewClient(httpClient *http.Client, baseURL, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// statusError is a non-2xx PostgREST answer.
type statusError struct {
	Status int
	Code   string
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase returned status %d: %s", e.Status, e.Body)
}

// postgrestError is the JSON error body PostgREST returns.
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do executes one authenticated request against /rest/v1/<path>.
func (c *Client) do(ctx context.Context, method, path string, payload any, prefer string) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("apikey", c.serviceRoleKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		se := &statusError{Status: resp.StatusCode, Body: string(respBody)}
		var pe postgrestError
		if json.Unmarshal(respBody, &pe) == nil {
			se.Code = pe.Code
		}
		return nil, se
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return respBody, nil
}

// read performs an idempotent GET through the breaker with retries.
// 4xx answers are not retried.
func (c *Client) read(ctx context.Context, op, path string, out any) error {
	_, err := resilience.Execute(c.cb, func() (struct{}, error) {
		return struct{}{}, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.do(ctx, http.MethodGet, path, nil, "")
			if err != nil {
				if isClientError(err) {
					return resilience.Permanent(err)
				}
				return err
			}
			if err := json.Unmarshal(body, out); err != nil {
				return resilience.Permanent(fmt.Errorf("decode %s: %w", op, err))
			}
			return nil
		})
	})
	return c.mapError(op, err)
}

// write performs a single non-idempotent call through the breaker.
// out may be nil when the response body is not needed.
func (c *Client) write(ctx context.Context, op, method, path string, payload any, prefer string, out any) error {
	_, err := resilience.Execute(c.cb, func() (struct{}, error) {
		body, err := c.do(ctx, method, path, payload, prefer)
		if err != nil {
			if isClientError(err) {
				return struct{}{}, resilience.Permanent(err)
			}
			return struct{}{}, err
		}
		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				return struct{}{}, fmt.Errorf("decode %s: %w", op, err)
			}
		}
		return struct{}{}, nil
	})
	return c.mapError(op, err)
}

// rpc calls a Postgres function exposed under /rest/v1/rpc/<fn>.
func (c *Client) rpc(ctx context.Context, fn string, args map[string]any, out any) error {
	return c.write(ctx, "rpc."+fn, http.MethodPost, "rpc/"+fn, args, "", out)
}

// Ping checks that PostgREST answers.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	_, err := c.do(ctx, http.MethodGet, "profiles?select=id&limit=1", nil, "")
	return err
}

func isClientError(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.Status >= 400 && se.Status < 500
}

// mapError converts transport failures into domain errors.
func (c *Client) mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var circuit *domain.ErrCircuitOpen
	if errors.As(err, &circuit) {
		return err
	}

	var se *statusError
	if errors.As(err, &se) && (se.Status == http.StatusConflict || se.Code == uniqueViolation) {
		return &domain.ErrConflict{Message: "Registro já existe"}
	}

	return &domain.ErrStore{Op: op, Err: err}
}
