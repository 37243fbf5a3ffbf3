package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"
)

// LookupConfig configures the phone line-type lookup client.
type LookupConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	Timeout    time.Duration
}

// LookupResponse carries the vendor's line-type classification.
type LookupResponse struct {
	PhoneNumber string `json:"phone_number"`
	LineType    string `json:"line_type"`
}

// LookupClient queries the vendor's number intelligence endpoint. It is
// best effort: callers decide what a lookup failure means.
type LookupClient struct {
	config LookupConfig
	client *fasthttp.Client
	auth   string
}

func NewLookupClient(config LookupConfig) (*LookupClient, error) {
	if config.BaseURL == "" {
		return nil, errors.New("lookup base url is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 3 * time.Second
	}
	return &LookupClient{
		config: config,
		client: &fasthttp.Client{
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
		auth: basicAuth(config.AccountSID, config.AuthToken),
	}, nil
}

func (c *LookupClient) Lookup(ctx context.Context, phone string) (*LookupResponse, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + "/v2/PhoneNumbers/" + url.PathEscape(phone) + "?Fields=line_type_intelligence")
	req.Header.SetMethod("GET")
	req.Header.Set("Authorization", "Basic "+c.auth)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("lookup request failed: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("lookup returned status %d: %s", resp.StatusCode(), resp.Body())
	}

	var out LookupResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lookup response: %w", err)
	}
	return &out, nil
}
