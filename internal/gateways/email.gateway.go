package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/voxtour/ticket-gateway/pkg/logger"
)

// EmailConfig configures the transactional email vendor client.
type EmailConfig struct {
	BaseURL   string
	APIKey    string
	FromEmail string
	FromName  string
	Timeout   time.Duration
	MaxConns  int
}

// EmailAttachment references a hosted document the vendor fetches itself,
// so no storage credentials leave this service.
type EmailAttachment struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
}

type SendEmailRequest struct {
	To          string            `json:"to"`
	Subject     string            `json:"subject"`
	HTMLBody    string            `json:"html_body"`
	Attachments []EmailAttachment `json:"attachments,omitempty"`
}

type SendEmailResponse struct {
	MessageID    string `json:"message_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// EmailClient talks to the email vendor's JSON API.
type EmailClient struct {
	config EmailConfig
	client *fasthttp.Client
}

func NewEmailClient(config EmailConfig) (*EmailClient, error) {
	if config.BaseURL == "" {
		return nil, errors.New("email base url is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	c := &EmailClient{
		config: config,
		client: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}
	logger.Info("Email client initialized", "base_url", config.BaseURL, "from", config.FromEmail)
	return c, nil
}

func (c *EmailClient) Send(ctx context.Context, req *SendEmailRequest) (*SendEmailResponse, error) {
	payload := struct {
		*SendEmailRequest
		FromEmail string `json:"from_email"`
		FromName  string `json:"from_name"`
	}{req, c.config.FromEmail, c.config.FromName}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := c.doRequest(ctx, "POST", "/v3/mail/send", body)
	if err != nil {
		return nil, err
	}

	var resp SendEmailResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.ErrorMessage != "" {
		return &resp, fmt.Errorf("%w: %s", ErrVendorRejected, resp.ErrorMessage)
	}

	logger.Info("Email accepted by vendor", "message_id", resp.MessageID, "to", req.To)
	return &resp, nil
}

func (c *EmailClient) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode != fasthttp.StatusOK && statusCode != fasthttp.StatusAccepted {
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrVendorRejected, statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())
	return result, nil
}
