package service

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"pyrus_portal/server/common/integrations/mailgun"
	"pyrus_portal/server/portal/domain"
)

type mailSender interface {
	IsConfigured() bool
	Send(ctx context.Context, req mailgun.SendRequest) (mailgun.SendResult, error)
}

type templateStore interface {
	GetByName(ctx context.Context, name string) (domain.EmailTemplate, error)
}

// EmailService renders a stored template and delivers it through
// Mailgun, persisting the send as a communication record either way so
// the timeline reflects failed sends too.
type EmailService struct {
	mail      mailSender
	templates templateStore
	comms     communicationStore
	alerts    alertSink
}

func NewEmailService(mail mailSender, templates templateStore, comms communicationStore, alerts alertSink) *EmailService {
	return &EmailService{mail: mail, templates: templates, comms: comms, alerts: alerts}
}

type TemplateEmail struct {
	ClientID     string
	Recipient    string
	TemplateName string
	Data         map[string]any
	CommType     domain.CommunicationType
	CreatedBy    string
}

func (s *EmailService) SendTemplate(ctx context.Context, req TemplateEmail) (domain.CommunicationRecord, error) {
	tmpl, err := s.templates.GetByName(ctx, req.TemplateName)
	if err != nil {
		return domain.CommunicationRecord{}, fmt.Errorf("load template %q: %w", req.TemplateName, err)
	}

	subject, err := renderTemplate(tmpl.Name+":subject", tmpl.Subject, req.Data)
	if err != nil {
		return domain.CommunicationRecord{}, err
	}
	body, err := renderTemplate(tmpl.Name+":body", tmpl.Body, req.Data)
	if err != nil {
		return domain.CommunicationRecord{}, err
	}

	now := time.Now()
	status := string(domain.CommStatusSent)
	rec := domain.CommunicationRecord{
		ClientID:       req.ClientID,
		Type:           req.CommType,
		Title:          tmpl.Name,
		Subject:        &subject,
		Body:           &body,
		Status:         &status,
		Metadata:       map[string]any{"template_id": tmpl.ID},
		RecipientEmail: &req.Recipient,
		SentAt:         &now,
		CreatedBy:      req.CreatedBy,
	}

	var sendErr error
	if s.mail.IsConfigured() {
		result, err := s.mail.Send(ctx, mailgun.SendRequest{To: req.Recipient, Subject: subject, HTML: body})
		if err != nil {
			sendErr = err
			failed := string(domain.CommStatusFailed)
			rec.Status = &failed
			rec.SentAt = nil
			s.reportEmailError(req.ClientID, req.TemplateName, err)
		} else {
			rec.Metadata["mailgun_message_id"] = result.ID
		}
	} else {
		sendErr = fmt.Errorf("mailgun is not configured")
		failed := string(domain.CommStatusFailed)
		rec.Status = &failed
		rec.SentAt = nil
	}

	stored, err := s.comms.Create(ctx, rec)
	if err != nil {
		return stored, fmt.Errorf("record communication: %w", err)
	}
	return stored, sendErr
}

func (s *EmailService) reportEmailError(clientID, templateName string, err error) {
	if s.alerts == nil {
		return
	}
	s.alerts.Report(domain.Alert{
		Severity: domain.AlertSeverityError,
		Category: "email_error",
		Message:  "failed to send template email",
		Metadata: map[string]any{"template": templateName, "error": err.Error()},
		Source:   "email_service",
		ClientID: &clientID,
	})
}

func renderTemplate(name, text string, data map[string]any) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}
