package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPDialer constructs clients that drive a sidecar automation service over
// JSON/HTTP. The sidecar owns the platform protocol; this process only holds
// session references.
type HTTPDialer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDialer constructs an HTTPDialer for the given endpoint.
func NewHTTPDialer(baseURL string) *HTTPDialer {
	return &HTTPDialer{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Dial implements Dialer.
func (d *HTTPDialer) Dial(creds Credentials) Client {
	return &httpClient{dialer: d, creds: creds}
}

type httpClient struct {
	dialer *HTTPDialer
	creds  Credentials
	ref    string // sidecar session reference, set by Connect
	closed bool
}

type connectResponse struct {
	Ref string `json:"ref"`
}

type verifyResponse struct {
	Status string `json:"status"` // "ok" or "second_factor_required"
}

type exportResponse struct {
	Session string `json:"session"`
}

type createResponse struct {
	OK          bool   `json:"ok"`
	RemoteID    int64  `json:"remote_id"`
	InviteLink  string `json:"invite_link"`
	MemberCount int    `json:"member_count"`
	Error       string `json:"error"`
}

func (c *httpClient) Connect(ctx context.Context) error {
	var resp connectResponse
	errPost := c.dialer.post(ctx, "/v1/sessions", map[string]string{
		"api_id":   c.creds.APIID,
		"api_hash": c.creds.APIHash,
		"phone":    c.creds.Phone,
		"session":  c.creds.Session,
	}, &resp)
	if errPost != nil {
		return errPost
	}
	if resp.Ref == "" {
		return fmt.Errorf("automation: connect returned no session reference")
	}
	c.ref = resp.Ref
	return nil
}

func (c *httpClient) RequestCode(ctx context.Context) error {
	return c.dialer.post(ctx, "/v1/sessions/"+c.ref+"/code", nil, nil)
}

func (c *httpClient) VerifyCode(ctx context.Context, code string) (VerifyOutcome, error) {
	var resp verifyResponse
	if errPost := c.dialer.post(ctx, "/v1/sessions/"+c.ref+"/verify", map[string]string{"code": code}, &resp); errPost != nil {
		return VerifyOK, errPost
	}
	if resp.Status == "second_factor_required" {
		return VerifySecondFactorRequired, nil
	}
	return VerifyOK, nil
}

func (c *httpClient) VerifySecondFactor(ctx context.Context, secret string) error {
	return c.dialer.post(ctx, "/v1/sessions/"+c.ref+"/password", map[string]string{"password": secret}, nil)
}

func (c *httpClient) ExportSession() (string, error) {
	var resp exportResponse
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if errPost := c.dialer.post(ctx, "/v1/sessions/"+c.ref+"/export", nil, &resp); errPost != nil {
		return "", errPost
	}
	if resp.Session == "" {
		return "", fmt.Errorf("automation: export returned empty session")
	}
	return resp.Session, nil
}

func (c *httpClient) CreateGroup(ctx context.Context, name string) CreateResult {
	var resp createResponse
	if errPost := c.dialer.post(ctx, "/v1/sessions/"+c.ref+"/groups", map[string]string{"name": name}, &resp); errPost != nil {
		return CreateResult{Failed: &Failed{Reason: errPost.Error()}}
	}
	if !resp.OK {
		reason := resp.Error
		if reason == "" {
			reason = "creation rejected"
		}
		return CreateResult{Failed: &Failed{Reason: reason}}
	}
	return CreateResult{Created: &Created{
		RemoteID:    resp.RemoteID,
		InviteLink:  resp.InviteLink,
		MemberCount: resp.MemberCount,
	}}
}

func (c *httpClient) Disconnect() {
	if c.closed || c.ref == "" {
		c.closed = true
		return
	}
	c.closed = true
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = c.dialer.post(ctx, "/v1/sessions/"+c.ref+"/disconnect", nil, nil)
}

// post sends a JSON request and decodes the JSON response into out, if given.
func (d *HTTPDialer) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	var payload []byte
	if body != nil {
		var errMarshal error
		payload, errMarshal = json.Marshal(body)
		if errMarshal != nil {
			return fmt.Errorf("automation: marshal request: %w", errMarshal)
		}
	}
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(payload))
	if errReq != nil {
		return fmt.Errorf("automation: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := d.client.Do(req)
	if errDo != nil {
		return fmt.Errorf("automation: %s: %w", path, errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("automation: %s: unexpected status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if errDecode := json.NewDecoder(resp.Body).Decode(out); errDecode != nil {
		return fmt.Errorf("automation: decode response: %w", errDecode)
	}
	return nil
}
