package mailgun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://api.mailgun.net"
	defaultTimeout = 10 * time.Second
)

type Config struct {
	APIKey  string
	Domain  string
	Sender  string
	BaseURL string
	Timeout time.Duration
}

type SendRequest struct {
	To      string
	Subject string
	HTML    string
}

type SendResult struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type Client struct {
	http *resty.Client
	cfg  Config
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetBasicAuth("api", cfg.APIKey)
	return &Client{http: http, cfg: cfg}
}

func (c *Client) IsConfigured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != "" && strings.TrimSpace(c.cfg.Domain) != ""
}

func (c *Client) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	var out SendResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"from":    c.cfg.Sender,
			"to":      req.To,
			"subject": req.Subject,
			"html":    req.HTML,
		}).
		SetResult(&out).
		Post("/v3/" + c.cfg.Domain + "/messages")
	if err != nil {
		return out, fmt.Errorf("mailgun send: %w", err)
	}
	if resp.IsError() {
		return out, fmt.Errorf("mailgun send: status %d", resp.StatusCode())
	}
	return out, nil
}
