package service

import (
	"context"
	"errors"
	"strings"

	"pyrus_portal/server/common/log"
	"pyrus_portal/server/portal/domain"
	"pyrus_portal/server/portal/repository"
)

const inviteTemplateName = "client_invite"

type clientRepository interface {
	Create(ctx context.Context, client domain.Client) (domain.Client, error)
	GetByID(ctx context.Context, clientID string) (domain.Client, error)
	List(ctx context.Context, limit, offset int) ([]domain.Client, error)
	Update(ctx context.Context, client domain.Client) error
}

type templateEmailSender interface {
	SendTemplate(ctx context.Context, req TemplateEmail) (domain.CommunicationRecord, error)
}

type ClientService struct {
	clients clientRepository
	emails  templateEmailSender
}

func NewClientService(clients clientRepository, emails templateEmailSender) *ClientService {
	return &ClientService{clients: clients, emails: emails}
}

// Create stores the client and sends the portal invite. The invite is
// best-effort: a delivery failure is already alerted and recorded by the
// email service and must not roll back the new client.
func (s *ClientService) Create(ctx context.Context, client domain.Client, createdBy string) (domain.Client, error) {
	if strings.TrimSpace(client.Name) == "" {
		return domain.Client{}, errors.New("client name is required")
	}
	created, err := s.clients.Create(ctx, client)
	if err != nil {
		return domain.Client{}, err
	}

	if strings.TrimSpace(created.ContactEmail) != "" {
		_, err := s.emails.SendTemplate(ctx, TemplateEmail{
			ClientID:     created.ID,
			Recipient:    created.ContactEmail,
			TemplateName: inviteTemplateName,
			Data:         map[string]any{"Name": created.Name},
			CommType:     domain.CommTypeInviteEmail,
			CreatedBy:    createdBy,
		})
		if err != nil {
			log.Warnf("send invite email client=%s: %v", created.ID, err)
		}
	}
	return created, nil
}

func (s *ClientService) Get(ctx context.Context, clientID string) (domain.Client, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if errors.Is(err, repository.ErrNotFound) {
		return client, ErrClientNotFound
	}
	return client, err
}

func (s *ClientService) List(ctx context.Context, limit, offset int) ([]domain.Client, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.clients.List(ctx, limit, offset)
}

func (s *ClientService) Update(ctx context.Context, client domain.Client) error {
	err := s.clients.Update(ctx, client)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrClientNotFound
	}
	return err
}
