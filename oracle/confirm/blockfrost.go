package confirm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GPTx-global/rngoracle/oracle/types"
	"github.com/tidwall/gjson"
)

// Blockfrost checks transaction status through the Blockfrost REST API.
// A transaction is only returned by /txs/{hash} once it is in a block, so
// Blockfrost never reports Failed; rejected queries surface as errors.
type Blockfrost struct {
	baseURL    string
	projectID  string
	httpClient *http.Client
}

func NewBlockfrost(baseURL, projectID string, timeout time.Duration) *Blockfrost {
	return &Blockfrost{
		baseURL:   strings.TrimRight(baseURL, "/"),
		projectID: projectID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (b *Blockfrost) Status(ctx context.Context, tx types.TxHash) (Status, error) {
	if tx.IsEmpty() {
		return Failed, types.ErrInvalidInput.Wrap("empty transaction hash")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/txs/%s", b.baseURL, tx), nil)
	if err != nil {
		return Pending, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("project_id", b.projectID)
	req.Header.Set("Accept", "application/json")

	res, err := b.httpClient.Do(req)
	if err != nil {
		return Pending, fmt.Errorf("failed to query transaction: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Pending, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case res.StatusCode == http.StatusOK:
		if hash := gjson.GetBytes(body, "hash").String(); hash != "" && hash != tx.String() {
			return Pending, fmt.Errorf("unexpected transaction %s in response", hash)
		}
		return Confirmed, nil
	case res.StatusCode == http.StatusNotFound:
		return Pending, nil
	case res.StatusCode >= 500, res.StatusCode == http.StatusTooManyRequests:
		return Pending, fmt.Errorf("blockfrost unavailable: status %d", res.StatusCode)
	default:
		return Pending, fmt.Errorf("blockfrost rejected query: status %d: %s",
			res.StatusCode, gjson.GetBytes(body, "message").String())
	}
}

// Check calls the Blockfrost health endpoint.
func (b *Blockfrost) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("project_id", b.projectID)

	res, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("blockfrost unreachable: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if res.StatusCode != http.StatusOK || !gjson.GetBytes(body, "is_healthy").Bool() {
		return fmt.Errorf("blockfrost unhealthy: status %d", res.StatusCode)
	}

	return nil
}
