package service

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"pyrus_portal/server/portal/domain"
)

const presignExpiry = 15 * time.Minute

// ReportService stores monthly client reports in object storage and
// records each registration on the client's timeline.
type ReportService struct {
	store  *minio.Client
	bucket string
	comms  communicationStore
}

func NewReportService(store *minio.Client, bucket string, comms communicationStore) *ReportService {
	return &ReportService{store: store, bucket: bucket, comms: comms}
}

func (s *ReportService) PresignUpload(ctx context.Context, clientID, month, filename string) (string, string, error) {
	objectKey, err := reportObjectKey(clientID, month, filename)
	if err != nil {
		return "", "", err
	}
	u, err := s.store.PresignedPutObject(ctx, s.bucket, objectKey, presignExpiry)
	if err != nil {
		return "", "", fmt.Errorf("presign report upload: %w", err)
	}
	return u.String(), objectKey, nil
}

func (s *ReportService) PresignDownload(ctx context.Context, objectKey string) (string, error) {
	u, err := s.store.PresignedGetObject(ctx, s.bucket, objectKey, presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign report download: %w", err)
	}
	return u.String(), nil
}

// Register records an uploaded report as a monthly_report communication
// so it shows up on the client timeline.
func (s *ReportService) Register(ctx context.Context, clientID, month, title, objectKey, createdBy string) (domain.CommunicationRecord, error) {
	if strings.TrimSpace(objectKey) == "" {
		return domain.CommunicationRecord{}, fmt.Errorf("object key is required")
	}
	now := time.Now()
	status := string(domain.CommStatusDelivered)
	return s.comms.Create(ctx, domain.CommunicationRecord{
		ClientID:  clientID,
		Type:      domain.CommTypeMonthlyReport,
		Title:     title,
		Status:    &status,
		Metadata:  map[string]any{"object_key": objectKey, "month": month},
		SentAt:    &now,
		CreatedBy: createdBy,
	})
}

func reportObjectKey(clientID, month, filename string) (string, error) {
	if strings.TrimSpace(month) == "" {
		return "", fmt.Errorf("month is required")
	}
	cleaned := path.Base(strings.TrimSpace(filename))
	if cleaned == "" || cleaned == "." || cleaned == "/" {
		return "", fmt.Errorf("filename is required")
	}
	return path.Join("reports", clientID, month, cleaned), nil
}
