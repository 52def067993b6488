package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/GPTx-global/rngoracle/oracle/confirm"
	"github.com/GPTx-global/rngoracle/oracle/log"
	"github.com/GPTx-global/rngoracle/oracle/retry"
	"github.com/GPTx-global/rngoracle/oracle/types"
)

const sessionHeader = "X-Session-Id"

var _ Executor = (*Client)(nil)
var _ confirm.StatusChecker = (*Client)(nil)

// Client talks to the transaction execution service over HTTP/JSON.
// Every response has the shape {"data": {...}, "error": "..."}.
type Client struct {
	endpoint   string
	httpClient *http.Client
	readRetry  retry.Config

	sessionLock sync.RWMutex
	sessionID   string

	settings cmap.ConcurrentMap[string, any]
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		readRetry: retry.NetworkConfig(),
		settings:  cmap.New[any](),
	}
}

// Open hands the base parameters to the service and keeps the returned session.
func (c *Client) Open(ctx context.Context, params types.BaseParams) error {
	body, err := encode(map[string]any{
		"network":          int(params.Network),
		"blockfrostApiKey": params.BlockfrostAPIKey,
		"rngAPIURL":        params.RngAPIURL,
		"ogmiosURL":        params.OgmiosURL,
		"oracleCBOR":       params.OracleCBOR,
		"rngCBOR":          params.RngCBOR,
		"walletSeed":       params.WalletSeed,
		"rngOutputLen":     params.RngOutputLen,
	})
	if err != nil {
		return err
	}

	data, err := c.do(ctx, http.MethodPost, "/session", body)
	if err != nil {
		return types.ErrExecutorUnavailable.Wrapf("failed to open session: %v", err)
	}

	id := data.Get("sessionId").String()
	if id == "" {
		return types.ErrMissingPayload.Wrap("session id")
	}

	c.sessionLock.Lock()
	c.sessionID = id
	c.sessionLock.Unlock()

	c.settings.Set(KeyOutputLength, params.RngOutputLen)
	log.Debugf("executor session opened on %s network", params.Network.Name())

	return nil
}

func (c *Client) MintIdentity(ctx context.Context, name string) (types.MintResult, error) {
	body, err := encode(map[string]any{"name": name})
	if err != nil {
		return types.MintResult{}, err
	}

	data, err := c.do(ctx, http.MethodPost, "/oracle/mint", body)
	if err != nil {
		return types.MintResult{}, err
	}

	return types.MintResult{
		Unit:   data.Get("oracleDIDUnit").String(),
		TxHash: types.TxHash(data.Get("txHash").String()),
	}, nil
}

func (c *Client) InitializeGenerator(ctx context.Context) (types.InitResult, error) {
	body, err := encode(c.settings.Items())
	if err != nil {
		return types.InitResult{}, err
	}

	data, err := c.do(ctx, http.MethodPost, "/rng/init", body)
	if err != nil {
		return types.InitResult{}, err
	}

	return types.InitResult{TxHash: types.TxHash(data.Get("txHash").String())}, nil
}

func (c *Client) RegisterIdentity(ctx context.Context, initTx types.TxHash, unit string) (types.RegisterResult, error) {
	body, err := encode(map[string]any{
		"initRNGTx":     initTx.String(),
		"oracleDIDUnit": unit,
	})
	if err != nil {
		return types.RegisterResult{}, err
	}

	data, err := c.do(ctx, http.MethodPost, "/oracle/register", body)
	if err != nil {
		return types.RegisterResult{}, err
	}

	return types.RegisterResult{TxHash: types.TxHash(data.Get("txHash").String())}, nil
}

func (c *Client) UpdateIdentity(ctx context.Context, initTx types.TxHash, unit string, prevHead types.TxHash) (types.UpdateResult, error) {
	body, err := encode(map[string]any{
		"initRNGTx":              initTx.String(),
		"oracleDIDUnit":          unit,
		"currUpdatedOracleDIDTx": prevHead.String(),
	})
	if err != nil {
		return types.UpdateResult{}, err
	}

	data, err := c.do(ctx, http.MethodPost, "/oracle/update", body)
	if err != nil {
		return types.UpdateResult{}, err
	}

	return types.UpdateResult{TxHash: types.TxHash(data.Get("txHash").String())}, nil
}

// QueryIdentity is read-only, so transport failures are retried.
func (c *Client) QueryIdentity(ctx context.Context, head types.TxHash) (types.QueryResult, error) {
	var data gjson.Result
	err := retry.Do(ctx, c.readRetry, func() error {
		var err error
		data, err = c.do(ctx, http.MethodGet, "/oracle/query/"+url.PathEscape(head.String()), nil)
		return err
	}, retry.DefaultIsRetryable)
	if err != nil {
		return types.QueryResult{}, err
	}

	output := data.Get("rngOutput")
	if !output.Exists() || output.Type == gjson.Null {
		return types.QueryResult{}, types.ErrMissingPayload.Wrap("rngOutput")
	}

	return types.QueryResult{Output: output.String()}, nil
}

func (c *Client) Reconfigure(key, value string) error {
	switch key {
	case KeyOutputLength:
		n, err := cast.ToIntE(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			return types.ErrInvalidInput.Wrapf("%s must be a positive integer, got %q", key, value)
		}
		c.settings.Set(key, n)
	default:
		return types.ErrInvalidInput.Wrapf("unknown setting %q", key)
	}

	log.Debugf("executor setting %s = %s", key, value)

	return nil
}

// Setting returns the current value of a setting.
func (c *Client) Setting(key string) (any, bool) {
	return c.settings.Get(key)
}

// Status implements confirm.StatusChecker using the service's own view of
// the transaction, which unlike an indexer can report on-chain failure.
func (c *Client) Status(ctx context.Context, tx types.TxHash) (confirm.Status, error) {
	data, err := c.do(ctx, http.MethodGet, "/tx/"+url.PathEscape(tx.String())+"/status", nil)
	if err != nil {
		return confirm.Pending, err
	}

	switch status := data.Get("status").String(); status {
	case "confirmed":
		return confirm.Confirmed, nil
	case "pending":
		return confirm.Pending, nil
	case "failed":
		return confirm.Failed, nil
	default:
		return confirm.Pending, fmt.Errorf("unknown transaction status %q", status)
	}
}

// Check reports whether the service answers. It satisfies health.HealthCheck.
func (c *Client) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return types.ErrExecutorUnavailable.Wrap(err.Error())
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode != http.StatusOK {
		return types.ErrExecutorUnavailable.Wrapf("status %d", res.StatusCode)
	}

	return nil
}

func (c *Client) Name() string {
	return "executor"
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (gjson.Result, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "rngoracled/1.0")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.sessionLock.RLock()
	if c.sessionID != "" {
		req.Header.Set(sessionHeader, c.sessionID)
	}
	c.sessionLock.RUnlock()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read response body: %w", err)
	}

	return decode(path, res.StatusCode, raw)
}

func decode(path string, statusCode int, raw []byte) (gjson.Result, error) {
	parsed := gjson.ParseBytes(raw)

	if reason := parsed.Get("error"); reason.Exists() && reason.Type != gjson.Null && reason.String() != "" {
		return gjson.Result{}, fmt.Errorf("%s: %s", path, reason.String())
	}

	if statusCode < 200 || statusCode > 299 {
		return gjson.Result{}, fmt.Errorf("%s: unexpected status %d", path, statusCode)
	}

	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, types.ErrMissingPayload.Wrapf("%s: malformed response", path)
	}

	data := parsed.Get("data")
	if !data.Exists() || data.Type == gjson.Null {
		return gjson.Result{}, types.ErrMissingPayload.Wrap(path)
	}

	return data, nil
}

// encode builds a flat JSON object. Keys must not contain sjson path syntax.
func encode(fields map[string]any) ([]byte, error) {
	body := []byte(`{}`)
	for key, value := range fields {
		var err error
		body, err = sjson.SetBytes(body, key, value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", key, err)
		}
	}

	return body, nil
}
