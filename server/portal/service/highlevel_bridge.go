package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"pyrus_portal/server/common/integrations/highlevel"
	"pyrus_portal/server/common/log"
	"pyrus_portal/server/portal/domain"
)

const contactCacheTimeout = 5 * time.Second

type crmClient interface {
	IsConfigured() bool
	GetContactByEmail(ctx context.Context, email string) (*highlevel.Contact, error)
	GetAllMessagesForContact(ctx context.Context, contactID string, limit int) ([]highlevel.Message, error)
}

type contactIDCache interface {
	SetHighLevelContactID(ctx context.Context, clientID, contactID string) error
}

type alertSink interface {
	Report(alert domain.Alert)
}

// HighLevelBridge resolves a client's CRM contact and returns its
// message history normalized to the shared communication shape. It
// never returns an error: CRM failures degrade to an empty list and an
// alert, so the timeline always renders from first-party data.
type HighLevelBridge struct {
	crm     crmClient
	clients contactIDCache
	alerts  alertSink
	wg      sync.WaitGroup
}

func NewHighLevelBridge(crm crmClient, clients contactIDCache, alerts alertSink) *HighLevelBridge {
	return &HighLevelBridge{crm: crm, clients: clients, alerts: alerts}
}

func (b *HighLevelBridge) MessagesForClient(ctx context.Context, client domain.Client, limit int) []domain.CrmMessage {
	if !b.crm.IsConfigured() {
		return nil
	}

	contactID := b.resolveContactID(ctx, client)
	if contactID == "" {
		return nil
	}

	raw, err := b.crm.GetAllMessagesForContact(ctx, contactID, limit)
	if err != nil {
		b.reportCrmError(client, "failed to fetch HighLevel messages", err)
		return nil
	}

	messages := make([]domain.CrmMessage, 0, len(raw))
	for _, m := range raw {
		messages = append(messages, normalizeMessage(m))
	}
	return messages
}

// resolveContactID prefers the id cached on the client record and falls
// back to an email lookup. A discovered id is written back best-effort;
// the value is derived deterministically from the email, so concurrent
// overwrites are harmless.
func (b *HighLevelBridge) resolveContactID(ctx context.Context, client domain.Client) string {
	if client.HighLevelContactID != nil && strings.TrimSpace(*client.HighLevelContactID) != "" {
		return *client.HighLevelContactID
	}
	if strings.TrimSpace(client.ContactEmail) == "" {
		return ""
	}

	contact, err := b.crm.GetContactByEmail(ctx, client.ContactEmail)
	if err != nil {
		b.reportCrmError(client, "failed to look up HighLevel contact by email", err)
		return ""
	}
	if contact == nil {
		// No CRM presence for this client.
		return ""
	}

	b.wg.Add(1)
	go func(clientID, contactID string) {
		defer b.wg.Done()
		cacheCtx, cancel := context.WithTimeout(context.Background(), contactCacheTimeout)
		defer cancel()
		if err := b.clients.SetHighLevelContactID(cacheCtx, clientID, contactID); err != nil {
			log.Warnf("cache highlevel contact id client=%s: %v", clientID, err)
		}
	}(client.ID, contact.ID)

	return contact.ID
}

// Flush waits for pending contact-id write-backs; used in tests.
func (b *HighLevelBridge) Flush() {
	b.wg.Wait()
}

func (b *HighLevelBridge) reportCrmError(client domain.Client, message string, err error) {
	log.Errorf("%s client=%s: %v", message, client.ID, err)
	if b.alerts == nil {
		return
	}
	clientID := client.ID
	b.alerts.Report(domain.Alert{
		Severity: domain.AlertSeverityError,
		Category: "crm_error",
		Message:  message,
		Metadata: map[string]any{"error": err.Error(), "client_name": client.Name},
		Source:   "highlevel_bridge",
		ClientID: &clientID,
	})
}

// normalizeMessage maps HighLevel's channel taxonomy onto the portal's
// communication type vocabulary.
func normalizeMessage(m highlevel.Message) domain.CrmMessage {
	msgType := normalizeMessageType(m.Type)

	out := domain.CrmMessage{
		ExternalID: m.ID,
		Type:       msgType,
		Title:      titleForType(msgType),
		Direction:  normalizeDirection(m.Direction),
		Metadata:   map[string]any{"highlevel_message_id": m.ID, "highlevel_type": m.Type},
	}
	if m.Body != "" {
		body := m.Body
		out.Body = &body
	}
	if m.Subject != "" {
		subject := m.Subject
		out.Subject = &subject
	}
	if m.Status != "" {
		status := strings.ToLower(m.Status)
		out.Status = &status
	}
	if !m.DateAdded.IsZero() {
		sentAt := m.DateAdded
		out.SentAt = &sentAt
	}
	return out
}

func normalizeMessageType(raw string) string {
	switch raw {
	case "TYPE_SMS":
		return "sms"
	case "TYPE_EMAIL":
		return string(domain.CommTypeEmailHighLevel)
	case "TYPE_WEBCHAT":
		return "chat_widget"
	case "TYPE_LIVE_CHAT":
		return "chat_live"
	}
	normalized := strings.ToLower(strings.TrimPrefix(raw, "TYPE_"))
	if normalized == "" {
		return string(domain.CommTypeChat)
	}
	return normalized
}

func normalizeDirection(raw string) domain.MessageDirection {
	if strings.EqualFold(raw, string(domain.DirectionInbound)) {
		return domain.DirectionInbound
	}
	return domain.DirectionOutbound
}

func titleForType(msgType string) string {
	switch {
	case msgType == "sms":
		return "Text message"
	case strings.HasPrefix(msgType, "chat"):
		return "Chat message"
	case msgType == string(domain.CommTypeEmailHighLevel):
		return "Email"
	}
	return "CRM message"
}
