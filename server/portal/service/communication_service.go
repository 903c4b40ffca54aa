package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"pyrus_portal/server/portal/domain"
	"pyrus_portal/server/portal/repository"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrUnknownStatus  = errors.New("unknown communication status")
)

type communicationStore interface {
	ListByClient(ctx context.Context, clientID string, commType *string, limit, offset int) ([]domain.CommunicationRecord, error)
	Create(ctx context.Context, rec domain.CommunicationRecord) (domain.CommunicationRecord, error)
	UpdateStatus(ctx context.Context, communicationID string, status domain.CommunicationStatus) error
}

type clientStore interface {
	GetByID(ctx context.Context, clientID string) (domain.Client, error)
}

type messageBridge interface {
	MessagesForClient(ctx context.Context, client domain.Client, limit int) []domain.CrmMessage
}

type TimelineQuery struct {
	ClientID        string
	Type            *string
	IncludeExternal bool
	Limit           int
	Offset          int
}

// CommunicationService builds the client-facing communications
// timeline: first-party records merged with the client's CRM message
// history, newest first.
type CommunicationService struct {
	comms   communicationStore
	clients clientStore
	bridge  messageBridge
}

func NewCommunicationService(comms communicationStore, clients clientStore, bridge messageBridge) *CommunicationService {
	return &CommunicationService{comms: comms, clients: clients, bridge: bridge}
}

func (s *CommunicationService) Record(ctx context.Context, rec domain.CommunicationRecord) (domain.CommunicationRecord, error) {
	return s.comms.Create(ctx, rec)
}

// UpdateStatus advances a record's delivery status, typically from a
// provider webhook or an admin correction.
func (s *CommunicationService) UpdateStatus(ctx context.Context, communicationID string, status domain.CommunicationStatus) error {
	switch status {
	case domain.CommStatusSent, domain.CommStatusDelivered, domain.CommStatusOpened,
		domain.CommStatusClicked, domain.CommStatusFailed, domain.CommStatusBounced:
	default:
		return fmt.Errorf("%w %q", ErrUnknownStatus, status)
	}
	return s.comms.UpdateStatus(ctx, communicationID, status)
}

// ClientTimeline merges both sources, sorts by effective timestamp
// descending and truncates to the requested limit. A CRM failure
// degrades to a database-only timeline; a storage failure aborts.
func (s *CommunicationService) ClientTimeline(ctx context.Context, q TimelineQuery) ([]domain.MergedCommunication, error) {
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	// The record fetch and the client fetch are independent reads, so
	// they run concurrently. Over-fetch 2x to leave room for merge
	// truncation.
	type commsResult struct {
		items []domain.CommunicationRecord
		err   error
	}
	commsCh := make(chan commsResult, 1)
	go func() {
		items, err := s.comms.ListByClient(ctx, q.ClientID, q.Type, q.Limit*2, q.Offset)
		commsCh <- commsResult{items: items, err: err}
	}()

	client, clientErr := s.clients.GetByID(ctx, q.ClientID)
	res := <-commsCh

	if clientErr != nil {
		if errors.Is(clientErr, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("fetch client: %w", clientErr)
	}
	if res.err != nil {
		return nil, fmt.Errorf("fetch communications: %w", res.err)
	}

	merged := make([]domain.MergedCommunication, 0, len(res.items))
	for _, rec := range res.items {
		merged = append(merged, mergedFromRecord(rec))
	}

	if q.IncludeExternal {
		// Resolution and fetch are sequential: they need the client row.
		for _, msg := range s.bridge.MessagesForClient(ctx, client, q.Limit) {
			merged = append(merged, mergedFromCrm(client.ID, msg))
		}
	}

	// Stable: equal timestamps keep concatenation order (DB before CRM).
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].EffectiveTimestamp().After(merged[j].EffectiveTimestamp())
	})
	if len(merged) > q.Limit {
		merged = merged[:q.Limit]
	}

	if q.Type != nil {
		merged = applyTypeFilter(merged, *q.Type)
	}
	return merged, nil
}

// applyTypeFilter filters CRM-sourced items post-hoc. Database items
// pass through: they were already filtered at the query layer. An
// unrecognized filter value passes every CRM item through unchanged.
func applyTypeFilter(items []domain.MergedCommunication, filter string) []domain.MergedCommunication {
	out := items[:0]
	for _, item := range items {
		if item.Source == domain.SourceDatabase || crmTypeMatchesFilter(filter, item.Type) {
			out = append(out, item)
		}
	}
	return out
}

func crmTypeMatchesFilter(filter, crmType string) bool {
	switch filter {
	case "sms":
		return crmType == "sms"
	case "chat":
		return strings.HasPrefix(crmType, "chat")
	case string(domain.CommTypeEmailHighLevel):
		return crmType == string(domain.CommTypeEmailHighLevel)
	}
	return true
}

func mergedFromRecord(rec domain.CommunicationRecord) domain.MergedCommunication {
	return domain.MergedCommunication{
		ID:            rec.ID,
		ClientID:      rec.ClientID,
		Type:          string(rec.Type),
		Title:         rec.Title,
		Subject:       rec.Subject,
		Body:          rec.Body,
		Status:        rec.Status,
		Metadata:      rec.Metadata,
		HighlightType: rec.HighlightType,
		SentAt:        rec.SentAt,
		CreatedAt:     rec.CreatedAt,
		Source:        domain.SourceDatabase,
	}
}

func mergedFromCrm(clientID string, msg domain.CrmMessage) domain.MergedCommunication {
	direction := msg.Direction
	return domain.MergedCommunication{
		ID:            msg.ExternalID,
		ClientID:      clientID,
		Type:          msg.Type,
		Title:         msg.Title,
		Subject:       msg.Subject,
		Body:          msg.Body,
		Status:        msg.Status,
		Metadata:      msg.Metadata,
		HighlightType: msg.HighlightType,
		SentAt:        msg.SentAt,
		Source:        domain.SourceExternalCRM,
		Direction:     &direction,
	}
}
