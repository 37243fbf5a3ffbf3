package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/voxtour/ticket-gateway/pkg/logger"
)

var (
	ErrVendorRejected = errors.New("vendor rejected the message")
)

// MessagingConfig configures the WhatsApp/SMS vendor client.
type MessagingConfig struct {
	BaseURL         string
	AccountSID      string
	AuthToken       string
	FromPhone       string // sms sender number
	FromWhatsApp    string // whatsapp-enabled sender number
	CallbackURL     string // where the vendor posts status updates
	Timeout         time.Duration
	MaxConns        int
	ReadBufferSize  int
	WriteBufferSize int
}

// SendMessageRequest is a single outbound WhatsApp or SMS submission.
type SendMessageRequest struct {
	To        string
	Body      string
	MediaURLs []string // ignored for plain sms
	WhatsApp  bool
}

// SendMessageResponse mirrors the vendor's acceptance response. Acceptance
// is not delivery: final status arrives later on the status callback.
type SendMessageResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    int    `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// MessagingClient talks to the WhatsApp/SMS vendor over its REST API.
type MessagingClient struct {
	config MessagingConfig
	client *fasthttp.Client
	auth   string
}

func NewMessagingClient(config MessagingConfig) (*MessagingClient, error) {
	if config.BaseURL == "" {
		return nil, errors.New("messaging base url is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	c := &MessagingClient{
		config: config,
		client: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			ReadBufferSize:      config.ReadBufferSize,
			WriteBufferSize:     config.WriteBufferSize,
		},
		auth: basicAuth(config.AccountSID, config.AuthToken),
	}
	logger.Info("Messaging client initialized", "base_url", config.BaseURL, "timeout", config.Timeout)
	return c, nil
}

// Send submits one message. The vendor answers synchronously with an
// acceptance status and an external id used to correlate async callbacks.
func (c *MessagingClient) Send(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	form := url.Values{}
	to := req.To
	from := c.config.FromPhone
	if req.WhatsApp {
		to = "whatsapp:" + req.To
		from = "whatsapp:" + c.config.FromWhatsApp
	}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", req.Body)
	for _, u := range req.MediaURLs {
		form.Add("MediaUrl", u)
	}
	if c.config.CallbackURL != "" {
		form.Set("StatusCallback", c.config.CallbackURL)
	}

	path := fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", c.config.AccountSID)
	body, err := c.doForm(ctx, "POST", path, form)
	if err != nil {
		return nil, err
	}

	var resp SendMessageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.ErrorMessage != "" {
		return &resp, fmt.Errorf("%w: %s", ErrVendorRejected, resp.ErrorMessage)
	}

	channel := "sms"
	if req.WhatsApp {
		channel = "whatsapp"
	}
	logger.Info("Message accepted by vendor", "sid", resp.SID, "status", resp.Status, "channel", channel)

	return &resp, nil
}

// doForm performs a form-encoded request with a bounded deadline.
func (c *MessagingClient) doForm(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+c.auth)
	req.SetBodyString(form.Encode())

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode != fasthttp.StatusOK && statusCode != fasthttp.StatusCreated && statusCode != fasthttp.StatusAccepted {
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrVendorRejected, statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())
	return result, nil
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}
