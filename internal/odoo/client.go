package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/timebot/core/errs"
	"github.com/m3rciful/timebot/core/logger"
)

// ClientOptions configure the JSON-RPC client.
type ClientOptions struct {
	URL      string
	DB       string
	Username string
	APIKey   string
	// Timeout bounds a single RPC; ignored when HTTPClient is set.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client speaks Odoo's JSON-RPC endpoint. It authenticates lazily on first use
// and is safe for concurrent use.
type Client struct {
	endpoint string
	db       string
	username string
	apiKey   string
	http     *http.Client

	mu  sync.Mutex
	uid int64

	seq atomic.Int64
}

// NewClient creates a Client. No request is made until the first call.
func NewClient(opts ClientOptions) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint: strings.TrimRight(opts.URL, "/") + "/jsonrpc",
		db:       opts.DB,
		username: opts.Username,
		apiKey:   opts.APIKey,
		http:     hc,
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	ID      int64     `json:"id"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Data.Message != "" {
		return fmt.Sprintf("odoo error %d: %s", e.Code, e.Data.Message)
	}
	return fmt.Sprintf("odoo error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, service, method string, args []any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		ID:      c.seq.Add(1),
		Params:  rpcParams{Service: service, Method: method, Args: args},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("odoo http status %d", resp.StatusCode)
	}
	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return nil, out.Error
	}
	return out.Result, nil
}

// UID returns the authenticated user id, logging in on first use.
func (c *Client) UID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uid != 0 {
		return c.uid, nil
	}
	start := time.Now()
	raw, err := c.call(ctx, "common", "authenticate", []any{c.db, c.username, c.apiKey, map[string]any{}})
	if err != nil {
		return 0, errs.External("odoo.authenticate", err)
	}
	var uid int64
	if err := json.Unmarshal(raw, &uid); err != nil || uid == 0 {
		// Odoo answers false on bad credentials.
		return 0, errs.External("odoo.authenticate", errors.New("authentication failed; check odoo username and api key"))
	}
	c.uid = uid
	logger.Info(ctx, logger.CompOdoo, "odoo.authenticate",
		slog.String("status", "ok"),
		slog.String("db", c.db),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return uid, nil
}

// ExecuteKW calls model.method through object.execute_kw and decodes the result into out.
func (c *Client) ExecuteKW(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error {
	op := "odoo." + model + "." + method
	uid, err := c.UID(ctx)
	if err != nil {
		return err
	}
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	start := time.Now()
	raw, err := c.call(ctx, "object", "execute_kw", []any{c.db, uid, c.apiKey, model, method, args, kwargs})
	took := logger.RoundMS(time.Since(start))
	if err != nil {
		logger.Warn(ctx, logger.CompOdoo, "odoo.call", append([]slog.Attr{
			slog.String("status", "fail"),
			slog.String("op", model+"."+method),
			slog.Duration("duration", took),
		}, logger.ErrAttrs(err)...)...)
		return errs.External(op, err)
	}
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, logger.CompOdoo, "odoo.call",
			slog.String("status", "ok"),
			slog.String("op", model+"."+method),
			slog.Duration("duration", took),
		)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errs.External(op, fmt.Errorf("decode result: %w", err))
	}
	return nil
}
