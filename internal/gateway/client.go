package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
)

// maxErrorBody caps how much of an error response is kept in HTTPError.
const maxErrorBody = 4 << 10

type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client. Its Jar is used as is.
	HTTPClient *http.Client
}

// Client is a typed wrapper over the bus booking backend REST API.
// It does not retry and does not cache.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	validate *validator.Validate
	sf       singleflight.Group
	logger   *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Client, error) {
	const op = "gateway.New"

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s: empty base url", op)
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		if cfg.Timeout <= 0 {
			cfg.Timeout = 10 * time.Second
		}

		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		}
	}

	return &Client{
		baseURL:  base,
		http:     httpClient,
		validate: validator.New(),
		logger:   logger,
	}, nil
}

// do sends a single request and returns the raw body of a 2xx response.
func (c *Client) do(
	ctx context.Context,
	op, method, path string,
	query url.Values,
	body any,
) ([]byte, error) {
	u := *c.baseURL
	u.Path = u.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("backend request failed",
			"op", op, "method", method, "path", path, "error", err)
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}

	c.logger.Debug("backend request",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"latency", time.Since(start),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return nil, &HTTPError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	return raw, nil
}

// getJSON issues a GET and decodes the response into T. Concurrent calls for
// the same resource share one in-flight request. The shared request is not
// tied to any one caller's context; each caller stops waiting when its own
// context is done.
func getJSON[T any](ctx context.Context, c *Client, op, path string, query url.Values) (T, error) {
	var zero T

	key := path
	if len(query) > 0 {
		key += "?" + query.Encode()
	}

	ch := c.sf.DoChan(key, func() (any, error) {
		raw, err := c.do(context.WithoutCancel(ctx), op, http.MethodGet, path, query, nil)
		if err != nil {
			return nil, err
		}
		return decode[T](c, op, raw)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, &NetworkError{Op: op, Err: ctx.Err()}
	case res = <-ch:
	}
	if res.Err != nil {
		return zero, res.Err
	}

	out, ok := res.Val.(T)
	if !ok {
		return zero, &DecodeError{Op: op, Err: errors.New("type assertion failed")}
	}

	return out, nil
}

func sendJSON[T any](ctx context.Context, c *Client, op, method, path string, body any) (T, error) {
	var zero T

	raw, err := c.do(ctx, op, method, path, nil, body)
	if err != nil {
		return zero, err
	}

	return decode[T](c, op, raw)
}

// decode fails closed: malformed JSON, an empty body or a value breaking its
// schema tags is a DecodeError.
func decode[T any](c *Client, op string, raw []byte) (T, error) {
	var out T

	if len(bytes.TrimSpace(raw)) == 0 {
		return out, &DecodeError{Op: op, Err: errors.New("empty body")}
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &DecodeError{Op: op, Err: err}
	}

	if err := c.check(reflect.ValueOf(out)); err != nil {
		return out, &DecodeError{Op: op, Err: err}
	}

	return out, nil
}

func (c *Client) check(v reflect.Value) error {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return errors.New("null body")
		}
		return c.check(v.Elem())
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			if err := c.check(v.Index(i)); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	case reflect.Struct:
		return c.validate.Struct(v.Interface())
	}
	return nil
}

// pathf escapes string arguments as path segments; other arguments keep
// their type so that %d verbs still apply.
func pathf(format string, args ...any) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		if v := reflect.ValueOf(a); v.Kind() == reflect.String {
			escaped[i] = url.PathEscape(v.String())
			continue
		}
		escaped[i] = a
	}
	return fmt.Sprintf(format, escaped...)
}
