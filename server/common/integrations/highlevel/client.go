package highlevel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://rest.gohighlevel.com"
	defaultTimeout = 10 * time.Second
)

type Config struct {
	APIKey     string
	LocationID string
	BaseURL    string
	Timeout    time.Duration
}

type Contact struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Name  string `json:"contactName"`
}

// Message is a raw CRM message. Type carries HighLevel's channel
// taxonomy (TYPE_SMS, TYPE_EMAIL, TYPE_WEBCHAT, ...).
type Message struct {
	ID        string    `json:"id"`
	Type      string    `json:"messageType"`
	Body      string    `json:"body"`
	Subject   string    `json:"subject"`
	Direction string    `json:"direction"`
	Status    string    `json:"status"`
	DateAdded time.Time `json:"dateAdded"`
}

type conversation struct {
	ID string `json:"id"`
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
		SetAuthToken(cfg.APIKey).
		SetHeader("Accept", "application/json")
	return &Client{http: http, cfg: cfg}
}

// IsConfigured reports whether CRM credentials are present. An
// unconfigured client is a legitimate deployment state, not an error.
func (c *Client) IsConfigured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != "" && strings.TrimSpace(c.cfg.LocationID) != ""
}

// GetContactByEmail looks a contact up by email. A missing contact
// returns (nil, nil).
func (c *Client) GetContactByEmail(ctx context.Context, email string) (*Contact, error) {
	var out struct {
		Contacts []Contact `json:"contacts"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("email", email).
		SetQueryParam("locationId", c.cfg.LocationID).
		SetResult(&out).
		Get("/v1/contacts/lookup")
	if err != nil {
		return nil, fmt.Errorf("highlevel contact lookup: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("highlevel contact lookup: status %d", resp.StatusCode())
	}
	if len(out.Contacts) == 0 {
		return nil, nil
	}
	return &out.Contacts[0], nil
}

// GetAllMessagesForContact collects up to limit messages across the
// contact's conversations, most recent conversations first.
func (c *Client) GetAllMessagesForContact(ctx context.Context, contactID string, limit int) ([]Message, error) {
	var convOut struct {
		Conversations []conversation `json:"conversations"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("contactId", contactID).
		SetQueryParam("locationId", c.cfg.LocationID).
		SetResult(&convOut).
		Get("/v1/conversations/search")
	if err != nil {
		return nil, fmt.Errorf("highlevel conversation search: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("highlevel conversation search: status %d", resp.StatusCode())
	}

	messages := make([]Message, 0, limit)
	for _, conv := range convOut.Conversations {
		if len(messages) >= limit {
			break
		}
		batch, err := c.conversationMessages(ctx, conv.ID, limit-len(messages))
		if err != nil {
			return nil, err
		}
		messages = append(messages, batch...)
	}
	return messages, nil
}

func (c *Client) conversationMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	var out struct {
		Messages struct {
			Messages []Message `json:"messages"`
		} `json:"messages"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		SetResult(&out).
		Get("/v1/conversations/" + conversationID + "/messages")
	if err != nil {
		return nil, fmt.Errorf("highlevel conversation messages: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("highlevel conversation messages: status %d", resp.StatusCode())
	}
	items := out.Messages.Messages
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
