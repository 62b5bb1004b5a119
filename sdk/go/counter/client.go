// Package counter is a Go client for the ChainCounter HTTP API.
package counter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
// Writes block until the transaction is mined, so it is longer than a plain
// read would need.
const DefaultHTTPTimeout = 2 * time.Minute

// Client wraps the HTTP interactions with the ChainCounter API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// State mirrors the session state served by the API.
type State struct {
	Connection    string          `json:"connection"`
	Busy          bool            `json:"busy"`
	Counter       *string         `json:"counter"`
	Owner         string          `json:"owner,omitempty"`
	WalletAddress string          `json:"wallet_address,omitempty"`
	LastTx        *Receipt        `json:"last_tx,omitempty"`
	Error         *OperationError `json:"error,omitempty"`
	Revision      uint64          `json:"revision"`
}

// CounterValue parses the counter. ok is false when no value has been read yet.
func (s State) CounterValue() (value *big.Int, ok bool) {
	if s.Counter == nil {
		return nil, false
	}
	return new(big.Int).SetString(*s.Counter, 10)
}

// Connected reports whether a wallet session is bound.
func (s State) Connected() bool {
	return s.Connection == "connected"
}

// Receipt summarises the last confirmed transaction.
type Receipt struct {
	Action  string `json:"action"`
	TxHash  string `json:"tx_hash"`
	Block   uint64 `json:"block"`
	GasUsed uint64 `json:"gas_used"`
}

// OperationError is the latest failure recorded in the state.
type OperationError struct {
	Code      string `json:"code"`
	Operation string `json:"operation"`
	Message   string `json:"message"`
}

// ChainSnapshot is the chain metadata served by /api/v1/chain.
type ChainSnapshot struct {
	Name        string `json:"name"`
	ChainID     string `json:"chain_id"`
	BlockNumber string `json:"block_number"`
	Notes       string `json:"notes,omitempty"`
}

// APIError represents a failed action. State carries the session state the
// server returned alongside the error, when there was one.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	State      *State `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("counter api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("counter api error (%d): %s", e.StatusCode, e.Message)
}

type envelope struct {
	State State     `json:"state"`
	Error *APIError `json:"error"`
}

// NewClient instantiates a client for the API at rawURL. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url scheme %q", parsed.Scheme)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient, dialer: websocket.DefaultDialer}, nil
}

// State fetches the current session state.
func (c *Client) State(ctx context.Context) (State, error) {
	var env envelope
	if err := c.do(ctx, http.MethodGet, "/api/v1/state", &env); err != nil {
		return State{}, err
	}
	return env.State, nil
}

// Connect asks the server to bind its wallet session.
func (c *Client) Connect(ctx context.Context) (State, error) {
	return c.action(ctx, "/api/v1/connect")
}

// Increment submits incrementCounter and returns the state after confirmation.
func (c *Client) Increment(ctx context.Context) (State, error) {
	return c.action(ctx, "/api/v1/counter/increment")
}

// Decrement submits decrementCounter and returns the state after confirmation.
func (c *Client) Decrement(ctx context.Context) (State, error) {
	return c.action(ctx, "/api/v1/counter/decrement")
}

// Reset submits resetCounter and returns the state after confirmation.
func (c *Client) Reset(ctx context.Context) (State, error) {
	return c.action(ctx, "/api/v1/counter/reset")
}

// Refresh re-reads the counter from the chain.
func (c *Client) Refresh(ctx context.Context) (State, error) {
	return c.action(ctx, "/api/v1/counter/refresh")
}

// Chain returns chain metadata.
func (c *Client) Chain(ctx context.Context) (ChainSnapshot, error) {
	var snapshot ChainSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/v1/chain", &snapshot); err != nil {
		return ChainSnapshot{}, err
	}
	return snapshot, nil
}

// Watch streams state snapshots to fn until ctx is done or the server closes
// the stream. Snapshots older than one already delivered are skipped.
func (c *Client) Watch(ctx context.Context, fn func(State)) error {
	wsURL := c.endpoint("/api/v1/ws")
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	conn, _, err := c.dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("dial state stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var (
		last uint64
		seen bool
	)
	for {
		var st State
		if err := conn.ReadJSON(&st); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read state stream: %w", err)
		}
		if seen && st.Revision < last {
			continue
		}
		last, seen = st.Revision, true
		fn(st)
	}
}

func (c *Client) action(ctx context.Context, endpoint string) (State, error) {
	var env envelope
	if err := c.do(ctx, http.MethodPost, endpoint, &env); err != nil {
		return State{}, err
	}
	return env.State, nil
}

func (c *Client) endpoint(endpoint string) *url.URL {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	return c.baseURL.ResolveReference(rel)
}

func (c *Client) do(ctx context.Context, method, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(endpoint).String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read error response: %w", err)
	}
	var env envelope
	if len(data) > 0 && json.Unmarshal(data, &env) == nil && env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		if env.State.Connection != "" {
			state := env.State
			apiErr.State = &state
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
