package rollup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"texttools/common"
)

// ErrNoPendingInput is returned by Finish when the coordinator answered 202:
// the status was taken but there is no work item yet.
var ErrNoPendingInput = errors.New("no pending input")

const maxErrorBody = 512

// Client talks to the coordinator's rollup HTTP API.
type Client struct {
	BaseURL string

	// finishHTTP blocks until the coordinator hands out work, so it gets the
	// longer timeout.
	finishHTTP *http.Client
	submitHTTP *http.Client
}

// NewClient creates a client for baseURL with the given timeouts.
func NewClient(baseURL string, finishTimeout, submitTimeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		finishHTTP: &http.Client{Timeout: finishTimeout},
		submitHTTP: &http.Client{Timeout: submitTimeout},
	}
}

// Finish reports the verdict for the previous work item and returns the next one.
func (c *Client) Finish(ctx context.Context, status common.Status) (*common.RollupRequest, error) {
	resp, err := c.post(ctx, c.finishHTTP, "/finish", common.FinishRequest{Status: status})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		return nil, ErrNoPendingInput
	}

	var req common.RollupRequest
	if err := json.NewDecoder(resp.Body).Decode(&req); err != nil {
		return nil, &common.TransportError{
			Endpoint:   "/finish",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return &req, nil
}

// Notice hex-encodes obj and sends it as committed output.
func (c *Client) Notice(ctx context.Context, obj interface{}) error {
	return c.submit(ctx, "/notice", obj)
}

// Report hex-encodes obj and sends it as diagnostic output.
func (c *Client) Report(ctx context.Context, obj interface{}) error {
	return c.submit(ctx, "/report", obj)
}

func (c *Client) submit(ctx context.Context, endpoint string, obj interface{}) error {
	payload, err := common.EncodePayload(obj)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", endpoint, err)
	}

	resp, err := c.post(ctx, c.submitHTTP, endpoint, common.PayloadBody{Payload: payload})
	if err != nil {
		return err
	}
	// Acknowledgement body is not interpreted.
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// post sends body as JSON and turns connection failures and non-2xx
// answers into a *common.TransportError. On success the caller owns resp.Body.
func (c *Client) post(ctx context.Context, hc *http.Client, endpoint string, body interface{}) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, &common.TransportError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &common.TransportError{Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &common.TransportError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("body=%s", strings.TrimSpace(string(bodyBytes))),
		}
	}
	return resp, nil
}
