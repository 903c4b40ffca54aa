package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	commonauth "pyrus_portal/server/common/auth"
	"pyrus_portal/server/portal/domain"
	"pyrus_portal/server/portal/repository"
	"pyrus_portal/server/portal/service"
)

const (
	testSecret   = "handler-test-secret"
	testClientID = "3f0b8e0a-6d8a-4f6e-9c3b-2a4d5e6f7a8b"
	otherClient  = "9a1b2c3d-4e5f-4a6b-8c7d-0e1f2a3b4c5d"
)

type fakeCommStore struct {
	records []domain.CommunicationRecord
	err     error
}

func (f *fakeCommStore) ListByClient(ctx context.Context, clientID string, commType *string, limit, offset int) ([]domain.CommunicationRecord, error) {
	return f.records, f.err
}

func (f *fakeCommStore) Create(ctx context.Context, rec domain.CommunicationRecord) (domain.CommunicationRecord, error) {
	return rec, nil
}

func (f *fakeCommStore) UpdateStatus(ctx context.Context, communicationID string, status domain.CommunicationStatus) error {
	return nil
}

type fakeClientStore struct {
	clients map[string]domain.Client
}

func (f *fakeClientStore) GetByID(ctx context.Context, clientID string) (domain.Client, error) {
	client, ok := f.clients[clientID]
	if !ok {
		return domain.Client{}, repository.ErrNotFound
	}
	return client, nil
}

type fakeBridge struct {
	messages []domain.CrmMessage
}

func (f *fakeBridge) MessagesForClient(ctx context.Context, client domain.Client, limit int) []domain.CrmMessage {
	return f.messages
}

type fakeUserRepo struct {
	users map[string]domain.User
}

func (f *fakeUserRepo) Create(ctx context.Context, user domain.User) (string, error) {
	return "user-1", nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	user, ok := f.users[email]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return user, nil
}

type handlerFixture struct {
	router *gin.Engine
	auth   *commonauth.Service
	comms  *fakeCommStore
	bridge *fakeBridge
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sentAt := now.Add(-time.Hour)
	comms := &fakeCommStore{records: []domain.CommunicationRecord{
		{
			ID:        "db-1",
			ClientID:  testClientID,
			Type:      domain.CommTypeEmailGeneral,
			Title:     "Monthly recap",
			SentAt:    &sentAt,
			CreatedAt: now.Add(-2 * time.Hour),
		},
	}}
	clients := &fakeClientStore{clients: map[string]domain.Client{
		testClientID: {ID: testClientID, Name: "Acme Media", ContactEmail: "ops@acme.example"},
	}}
	crmSentAt := now.Add(-90 * time.Minute)
	bridge := &fakeBridge{messages: []domain.CrmMessage{
		{ExternalID: "crm-1", Type: "sms", Title: "Text message", SentAt: &crmSentAt, Direction: domain.DirectionInbound},
	}}

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)
	clientID := testClientID
	users := &fakeUserRepo{users: map[string]domain.User{
		"ops@acme.example": {
			ID:           "user-1",
			ClientID:     &clientID,
			Email:        "ops@acme.example",
			Role:         domain.UserRoleClient,
			PasswordHash: string(hash),
		},
	}}

	h := NewHandler(Deps{
		Communications: service.NewCommunicationService(comms, clients, bridge),
		Users:          service.NewUserService(users),
	}, testSecret, 60)

	router := gin.New()
	h.RegisterRoutes(router)
	return &handlerFixture{
		router: router,
		auth:   commonauth.NewService(testSecret, 60),
		comms:  comms,
		bridge: bridge,
	}
}

func (f *handlerFixture) token(t *testing.T, userID, clientID, role string) string {
	t.Helper()
	token, err := f.auth.GenerateToken(userID, clientID, role)
	require.NoError(t, err)
	return token
}

func (f *handlerFixture) get(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newHandlerFixture(t)
	rec := f.get(t, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCommunicationsRequiresToken(t *testing.T) {
	f := newHandlerFixture(t)
	rec := f.get(t, "/api/v1/clients/"+testClientID+"/communications", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCommunicationsRejectsInvalidUUID(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.token(t, "admin-1", "", "admin")

	rec := f.get(t, "/api/v1/clients/not-a-uuid/communications", token)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, ErrInvalidClientID, body.Error)
}

func TestCommunicationsCrossTenantForbidden(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.token(t, "user-1", otherClient, "client")

	rec := f.get(t, "/api/v1/clients/"+testClientID+"/communications", token)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCommunicationsMergedTimeline(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.token(t, "user-1", testClientID, "client")

	rec := f.get(t, "/api/v1/clients/"+testClientID+"/communications", token)
	require.Equal(t, http.StatusOK, rec.Code)

	var body ListResponse[domain.MergedCommunication]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 2)
	require.Equal(t, "db-1", body.Items[0].ID)
	require.Equal(t, domain.SourceDatabase, body.Items[0].Source)
	require.Equal(t, "crm-1", body.Items[1].ID)
	require.Equal(t, domain.SourceExternalCRM, body.Items[1].Source)
}

func TestCommunicationsExcludeExternal(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.token(t, "admin-1", "", "admin")

	rec := f.get(t, "/api/v1/clients/"+testClientID+"/communications?include_external=false", token)
	require.Equal(t, http.StatusOK, rec.Code)

	var body ListResponse[domain.MergedCommunication]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.Equal(t, "db-1", body.Items[0].ID)
}

func TestCommunicationsBadIncludeExternal(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.token(t, "admin-1", "", "admin")

	rec := f.get(t, "/api/v1/clients/"+testClientID+"/communications?include_external=maybe", token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommunicationsUnknownClient(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.token(t, "admin-1", "", "admin")

	rec := f.get(t, "/api/v1/clients/"+otherClient+"/communications", token)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogin(t *testing.T) {
	f := newHandlerFixture(t)

	body := strings.NewReader(`{"email": "ops@acme.example", "password": "s3cret!"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, testClientID, resp.ClientID)

	userID, clientID, role, err := f.auth.ParseAuthContext(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", userID)
	require.Equal(t, testClientID, clientID)
	require.Equal(t, "client", role)
}

func TestLoginBadPassword(t *testing.T) {
	f := newHandlerFixture(t)

	body := strings.NewReader(`{"email": "ops@acme.example", "password": "wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecordCommunication(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.token(t, "admin-1", "", "admin")

	body := strings.NewReader(`{"type": "meeting", "title": "Quarterly review call"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/clients/"+testClientID+"/communications", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var stored domain.CommunicationRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	require.Equal(t, domain.CommTypeMeeting, stored.Type)
	require.Equal(t, "admin-1", stored.CreatedBy)
	require.NotNil(t, stored.SentAt)
}

func TestAdminRoutesRejectClientRole(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.token(t, "user-1", testClientID, "client")

	rec := f.get(t, "/api/v1/clients", token)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
