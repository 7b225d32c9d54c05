package starknet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ssgreg/repeat"
	"golang.org/x/time/rate"
)

// Sentinel errors for client operations
var (
	ErrRequestFailed    = errors.New("rpc request failed")
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrDecodeFailed     = errors.New("decoding rpc response failed")
	ErrRPC              = errors.New("rpc error")
)

// Default client settings
const (
	DefaultMaxTries  = 3
	DefaultRateLimit = 20 // requests per second
	DefaultBurst     = 40

	retryBaseDelay = 200 * time.Millisecond
	retryMaxDelay  = 2 * time.Second
)

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("%d: %s: %s", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// Option configures the Client
type Option func(*Client)

// WithMaxTries sets how many times a transient failure is attempted.
func WithMaxTries(n uint64) Option {
	return func(c *Client) { c.maxTries = max(n, 1) }
}

// WithRateLimit throttles outgoing requests.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// Client is a Starknet JSON-RPC client
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	maxTries   uint64
	nextID     atomic.Uint64
}

// NewClient creates a JSON-RPC client for the node at baseURL
func NewClient(httpClient *http.Client, baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultBurst),
		maxTries:   DefaultMaxTries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      uint64 `json:"id"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// call performs one JSON-RPC method call, retrying transport failures and 5xx responses.
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %w", ErrRequestFailed, method, err)
	}

	var (
		raw     json.RawMessage
		lastErr error
	)
	err = repeat.Repeat(
		repeat.Fn(func() error {
			raw, lastErr = c.post(ctx, body)
			if lastErr == nil {
				return nil
			}
			if isTemporary(lastErr) && ctx.Err() == nil {
				return repeat.HintTemporary(lastErr)
			}
			return lastErr
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(int(c.maxTries)),
		repeat.WithDelay(
			(&repeat.FullJitterBackoffBuilder{BaseDelay: retryBaseDelay, MaxDelay: retryMaxDelay}).Set(),
			repeat.SetContext(ctx),
		),
	)
	if lastErr != nil {
		return fmt.Errorf("%s: %w", method, lastErr)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRequestFailed, method, err)
	}

	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecodeFailed, method, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, body []byte) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrRequestFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &statusError{code: resp.StatusCode}
	}

	var rpcResp response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%w: %w", ErrRPC, rpcResp.Error)
	}

	return rpcResp.Result, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("%s: %d", ErrUnexpectedStatus, e.code) }
func (e *statusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

func isTemporary(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError || se.code == http.StatusTooManyRequests
	}
	return errors.Is(err, ErrRequestFailed)
}
