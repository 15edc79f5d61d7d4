// Package remote is the HTTP JSON adapter for destination arrival-card APIs.
//
//	POST {base}/{destination}/session             -> {"token", "expiresIn"}
//	GET  {base}/{destination}/options/{category}  -> {"options": [{"value","label","id"}]}
//	POST {base}/{destination}/arrival-cards       -> {"confirmationId","artifactRef","qrCodeRef"}
//
// Failures come back as *StatusError carrying the HTTP status and the remote
// error code; transport failures are returned wrapped as they are.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	id "entrypass/pkg/domain"
)

const maxResponseBytes = 1 << 20

// Session is an established remote session.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Option is one entry of a remote dropdown list.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
	ID    string `json:"id"`
}

// Receipt is the remote acknowledgement of an accepted arrival card.
type Receipt struct {
	ConfirmationID string `json:"confirmationId"`
	ArtifactRef    string `json:"artifactRef"`
	QRCodeRef      string `json:"qrCodeRef,omitempty"`
}

// StatusError is a non-2xx answer. Message is the raw remote text and may
// carry personal data; sanitize before logging.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote status %d: %s", e.Status, e.Code)
	}
	return fmt.Sprintf("remote status %d", e.Status)
}

// Client talks to one arrival-card API base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithClock(now func() time.Time) ClientOption {
	return func(cl *Client) {
		cl.now = now
	}
}

func New(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// For scopes the client to one destination.
func (c *Client) For(destinationID id.DestinationID) *Endpoint {
	return &Endpoint{client: c, prefix: c.baseURL + "/" + url.PathEscape(string(destinationID))}
}

// Endpoint is a destination-scoped API. It satisfies the session and
// submission client interfaces.
type Endpoint struct {
	client *Client
	prefix string
}

func (e *Endpoint) OpenSession(ctx context.Context) (Session, error) {
	var resp struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expiresIn"`
	}
	if err := e.client.call(ctx, http.MethodPost, e.prefix+"/session", "", nil, &resp); err != nil {
		return Session{}, err
	}
	if resp.Token == "" {
		return Session{}, &StatusError{Status: http.StatusBadGateway, Code: "EMPTY_TOKEN"}
	}
	sess := Session{Token: resp.Token}
	if resp.ExpiresIn > 0 {
		sess.ExpiresAt = e.client.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return sess, nil
}

func (e *Endpoint) Options(ctx context.Context, token, category string) ([]Option, error) {
	var resp struct {
		Options []Option `json:"options"`
	}
	path := e.prefix + "/options/" + url.PathEscape(category)
	if err := e.client.call(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Options, nil
}

func (e *Endpoint) Submit(ctx context.Context, token string, body []byte) (*Receipt, error) {
	var receipt Receipt
	if err := e.client.call(ctx, http.MethodPost, e.prefix+"/arrival-cards", token, body, &receipt); err != nil {
		return nil, err
	}
	if receipt.ConfirmationID == "" {
		return nil, &StatusError{Status: http.StatusBadGateway, Code: "EMPTY_CONFIRMATION"}
	}
	return &receipt, nil
}

func (c *Client) call(ctx context.Context, method, endpoint, token string, body []byte, result any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Status: resp.StatusCode}
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &payload) == nil {
			se.Code = payload.Code
			se.Message = payload.Message
		} else {
			se.Message = string(raw)
		}
		return se
	}
	if result == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return &StatusError{Status: http.StatusBadGateway, Code: "MALFORMED_RESPONSE"}
	}
	return nil
}
