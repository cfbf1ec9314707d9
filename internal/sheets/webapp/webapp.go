// Package webapp talks to a spreadsheet-bound web app (an Apps Script
// deployment) that loads and saves the whole snapshot as JSON.
//
// Load is GET <url>?action=load answering the snapshot object; Save is
// POST <url> with {"action":"save","data":<snapshot>}, amounts as numbers.
package webapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"presupuesto/internal/core"
	ports "presupuesto/internal/sheets"
)

var _ ports.Store = (*Client)(nil)

// maxBody bounds how much of a response is read.
const maxBody = 32 << 20

type Client struct {
	endpoint string
	http     *http.Client
}

type saveRequest struct {
	Action string       `json:"action"`
	Data   wireSnapshot `json:"data"`
}

// New returns a client for the web app deployed at endpoint. A nil
// httpClient uses a pooled client with the given timeout.
func New(endpoint string, httpClient *http.Client, timeout time.Duration) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid web app url %q", endpoint)
	}
	if httpClient == nil {
		httpClient = newHTTPClient(timeout)
	}
	return &Client{endpoint: endpoint, http: httpClient}, nil
}

// newHTTPClient keeps a small pool of connections to the single web app host.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func (c *Client) Load(ctx context.Context) (core.Snapshot, error) {
	u, _ := url.Parse(c.endpoint)
	q := u.Query()
	q.Set("action", "load")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, "load")
	if err != nil {
		return core.Snapshot{}, err
	}

	var snap core.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return core.Snapshot{}, &core.TransportError{Op: "load", Err: fmt.Errorf("decode response: %w", err)}
	}
	return snap, nil
}

func (c *Client) Save(ctx context.Context, snap core.Snapshot) error {
	payload, err := json.Marshal(saveRequest{Action: "save", Data: toWire(snap)})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req, "save")
	return err
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &core.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &core.TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &core.TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}
	return body, nil
}
