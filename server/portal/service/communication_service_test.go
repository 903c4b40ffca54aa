package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pyrus_portal/server/portal/domain"
	"pyrus_portal/server/portal/repository"
)

type mockCommStore struct {
	mock.Mock
}

func (m *mockCommStore) ListByClient(ctx context.Context, clientID string, commType *string, limit, offset int) ([]domain.CommunicationRecord, error) {
	args := m.Called(ctx, clientID, commType, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CommunicationRecord), args.Error(1)
}

func (m *mockCommStore) Create(ctx context.Context, rec domain.CommunicationRecord) (domain.CommunicationRecord, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(domain.CommunicationRecord), args.Error(1)
}

func (m *mockCommStore) UpdateStatus(ctx context.Context, communicationID string, status domain.CommunicationStatus) error {
	return m.Called(ctx, communicationID, status).Error(0)
}

type mockClientStore struct {
	mock.Mock
}

func (m *mockClientStore) GetByID(ctx context.Context, clientID string) (domain.Client, error) {
	args := m.Called(ctx, clientID)
	return args.Get(0).(domain.Client), args.Error(1)
}

type mockBridge struct {
	mock.Mock
}

func (m *mockBridge) MessagesForClient(ctx context.Context, client domain.Client, limit int) []domain.CrmMessage {
	args := m.Called(ctx, client, limit)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]domain.CrmMessage)
}

const testClientID = "3f0b8e0a-6d8a-4f6e-9c3b-2a4d5e6f7a8b"

func timePtr(t time.Time) *time.Time { return &t }

func dbRecord(id string, commType domain.CommunicationType, sentAt *time.Time, createdAt time.Time) domain.CommunicationRecord {
	return domain.CommunicationRecord{
		ID:        id,
		ClientID:  testClientID,
		Type:      commType,
		Title:     string(commType),
		SentAt:    sentAt,
		CreatedAt: createdAt,
	}
}

func crmMessage(id, msgType string, sentAt *time.Time) domain.CrmMessage {
	return domain.CrmMessage{
		ExternalID: id,
		Type:       msgType,
		Title:      "CRM message",
		SentAt:     sentAt,
		Direction:  domain.DirectionInbound,
	}
}

func newTimelineFixture(t *testing.T) (*CommunicationService, *mockCommStore, *mockClientStore, *mockBridge) {
	t.Helper()
	comms := &mockCommStore{}
	clients := &mockClientStore{}
	bridge := &mockBridge{}
	return NewCommunicationService(comms, clients, bridge), comms, clients, bridge
}

func TestClientTimelineMergesAndOrders(t *testing.T) {
	svc, comms, clients, bridge := newTimelineFixture(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	clients.On("GetByID", mock.Anything, testClientID).Return(domain.Client{ID: testClientID}, nil)
	comms.On("ListByClient", mock.Anything, testClientID, (*string)(nil), 20, 0).Return([]domain.CommunicationRecord{
		dbRecord("db-1", domain.CommTypeEmailGeneral, timePtr(now.Add(-1*time.Hour)), now.Add(-25*time.Hour)),
		dbRecord("db-2", domain.CommTypeResultAlert, timePtr(now.Add(-3*time.Hour)), now.Add(-26*time.Hour)),
	}, nil)
	bridge.On("MessagesForClient", mock.Anything, mock.Anything, 10).Return([]domain.CrmMessage{
		crmMessage("crm-1", "sms", timePtr(now.Add(-2*time.Hour))),
	})

	items, err := svc.ClientTimeline(context.Background(), TimelineQuery{
		ClientID:        testClientID,
		IncludeExternal: true,
		Limit:           10,
	})
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "db-1", items[0].ID)
	require.Equal(t, "crm-1", items[1].ID)
	require.Equal(t, "db-2", items[2].ID)

	// Adjacent pairs are non-increasing by effective timestamp.
	for i := 1; i < len(items); i++ {
		require.False(t, items[i].EffectiveTimestamp().After(items[i-1].EffectiveTimestamp()))
	}

	require.Equal(t, domain.SourceDatabase, items[0].Source)
	require.Equal(t, domain.SourceExternalCRM, items[1].Source)
	require.NotNil(t, items[1].Direction)
	require.Equal(t, domain.DirectionInbound, *items[1].Direction)
}

func TestClientTimelineFallsBackToCreatedAt(t *testing.T) {
	svc, comms, clients, bridge := newTimelineFixture(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	clients.On("GetByID", mock.Anything, testClientID).Return(domain.Client{ID: testClientID}, nil)
	comms.On("ListByClient", mock.Anything, testClientID, (*string)(nil), mock.Anything, 0).Return([]domain.CommunicationRecord{
		dbRecord("unsent", domain.CommTypeReminder, nil, now.Add(-30*time.Minute)),
		dbRecord("sent", domain.CommTypeEmailGeneral, timePtr(now.Add(-2*time.Hour)), now.Add(-48*time.Hour)),
	}, nil)
	bridge.On("MessagesForClient", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	items, err := svc.ClientTimeline(context.Background(), TimelineQuery{
		ClientID:        testClientID,
		IncludeExternal: true,
		Limit:           10,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	// The unsent record sorts on its creation time, which is newer.
	require.Equal(t, "unsent", items[0].ID)
	require.Equal(t, "sent", items[1].ID)
}

func TestClientTimelineTruncatesToLimit(t *testing.T) {
	svc, comms, clients, bridge := newTimelineFixture(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	records := make([]domain.CommunicationRecord, 0, 4)
	for i := 0; i < 4; i++ {
		records = append(records, dbRecord(
			string(rune('a'+i)),
			domain.CommTypeEmailGeneral,
			timePtr(now.Add(-time.Duration(i)*time.Hour)),
			now.Add(-24*time.Hour),
		))
	}
	clients.On("GetByID", mock.Anything, testClientID).Return(domain.Client{ID: testClientID}, nil)
	comms.On("ListByClient", mock.Anything, testClientID, (*string)(nil), 4, 0).Return(records, nil)
	bridge.On("MessagesForClient", mock.Anything, mock.Anything, 2).Return([]domain.CrmMessage{
		crmMessage("crm-1", "sms", timePtr(now.Add(-30*time.Minute))),
	})

	items, err := svc.ClientTimeline(context.Background(), TimelineQuery{
		ClientID:        testClientID,
		IncludeExternal: true,
		Limit:           2,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "a", items[0].ID)
	require.Equal(t, "crm-1", items[1].ID)
}

func TestClientTimelineStableOnEqualTimestamps(t *testing.T) {
	svc, comms, clients, bridge := newTimelineFixture(t)
	ts := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	clients.On("GetByID", mock.Anything, testClientID).Return(domain.Client{ID: testClientID}, nil)
	comms.On("ListByClient", mock.Anything, testClientID, (*string)(nil), mock.Anything, 0).Return([]domain.CommunicationRecord{
		dbRecord("db-tie", domain.CommTypeChat, timePtr(ts), ts.Add(-time.Hour)),
	}, nil)
	bridge.On("MessagesForClient", mock.Anything, mock.Anything, mock.Anything).Return([]domain.CrmMessage{
		crmMessage("crm-tie", "sms", timePtr(ts)),
	})

	items, err := svc.ClientTimeline(context.Background(), TimelineQuery{
		ClientID:        testClientID,
		IncludeExternal: true,
		Limit:           10,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	// Stable sort keeps concatenation order: database before CRM.
	require.Equal(t, "db-tie", items[0].ID)
	require.Equal(t, "crm-tie", items[1].ID)
}

func TestClientTimelineIDsDisjoint(t *testing.T) {
	svc, comms, clients, bridge := newTimelineFixture(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	clients.On("GetByID", mock.Anything, testClientID).Return(domain.Client{ID: testClientID}, nil)
	comms.On("ListByClient", mock.Anything, testClientID, (*string)(nil), mock.Anything, 0).Return([]domain.CommunicationRecord{
		dbRecord("db-1", domain.CommTypeEmailGeneral, timePtr(now), now),
		dbRecord("db-2", domain.CommTypeChat, timePtr(now.Add(-time.Hour)), now),
	}, nil)
	bridge.On("MessagesForClient", mock.Anything, mock.Anything, mock.Anything).Return([]domain.CrmMessage{
		crmMessage("crm-1", "sms", timePtr(now.Add(-2*time.Hour))),
		crmMessage("crm-2", "chat_widget", timePtr(now.Add(-3*time.Hour))),
	})

	items, err := svc.ClientTimeline(context.Background(), TimelineQuery{
		ClientID:        testClientID,
		IncludeExternal: true,
		Limit:           10,
	})
	require.NoError(t, err)

	seen := map[string]struct{}{}
	for _, item := range items {
		_, dup := seen[item.ID]
		require.False(t, dup, "duplicate id %s", item.ID)
		seen[item.ID] = struct{}{}
	}
}

func TestClientTimelineDegradesWithoutCRM(t *testing.T) {
	svc, comms, clients, bridge := newTimelineFixture(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	clients.On("GetByID", mock.Anything, testClientID).Return(domain.Client{ID: testClientID}, nil)
	comms.On("ListByClient", mock.Anything, testClientID, (*string)(nil), mock.Anything, 0).Return([]domain.CommunicationRecord{
		dbRecord("db-1", domain.CommTypeEmailGeneral, timePtr(now), now),
	}, nil)
	// The bridge swallows CRM failures and reports an empty history.
	bridge.On("MessagesForClient", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	items, err := svc.ClientTimeline(context.Background(), TimelineQuery{
		ClientID:        testClientID,
		IncludeExternal: true,
		Limit:           10,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "db-1", items[0].ID)
}

func TestClientTimelineSkipsBridgeWhenExternalDisabled(t *testing.T) {
	svc, comms, clients, bridge := newTimelineFixture(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	clients.On("GetByID", mock.Anything, testClientID).Return(domain.Client{ID: testClientID}, nil)
	comms.On("ListByClient", mock.Anything, testClientID, (*string)(nil), mock.Anything, 0).Return([]domain.CommunicationRecord{
		dbRecord("db-1", domain.CommTypeEmailGeneral, timePtr(now), now),
	}, nil)

	items, err := svc.ClientTimeline(context.Background(), TimelineQuery{
		ClientID: testClientID,
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	bridge.AssertNotCalled(t, "MessagesForClient", mock.Anything, mock.Anything, mock.Anything)
}

func TestClientTimelineStorageErrorAborts(t *testing.T) {
	svc, comms, clients, bridge := newTimelineFixture(t)

	clients.On("GetByID", mock.Anything, testClientID).Return(domain.Client{ID: testClientID}, nil)
	comms.On("ListByClient", mock.Anything, testClientID, (*string)(nil), mock.Anything, 0).Return(nil, errors.New("connection refused"))
	bridge.On("MessagesForClient", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.ClientTimeline(context.Background(), TimelineQuery{
		ClientID:        testClientID,
		IncludeExternal: true,
		Limit:           10,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetch communications")
}

func TestClientTimelineUnknownClient(t *testing.T) {
	svc, comms, clients, _ := newTimelineFixture(t)

	clients.On("GetByID", mock.Anything, testClientID).Return(domain.Client{}, repository.ErrNotFound)
	comms.On("ListByClient", mock.Anything, testClientID, (*string)(nil), mock.Anything, 0).Return([]domain.CommunicationRecord{}, nil)

	_, err := svc.ClientTimeline(context.Background(), TimelineQuery{
		ClientID:        testClientID,
		IncludeExternal: true,
		Limit:           10,
	})
	require.ErrorIs(t, err, ErrClientNotFound)
}

func TestUpdateStatusValidation(t *testing.T) {
	svc, comms, _, _ := newTimelineFixture(t)
	comms.On("UpdateStatus", mock.Anything, "comm-1", domain.CommStatusOpened).Return(nil)

	require.NoError(t, svc.UpdateStatus(context.Background(), "comm-1", domain.CommStatusOpened))

	err := svc.UpdateStatus(context.Background(), "comm-1", domain.CommunicationStatus("weird"))
	require.ErrorIs(t, err, ErrUnknownStatus)
	comms.AssertNumberOfCalls(t, "UpdateStatus", 1)
}

func TestTypeFilterAsymmetry(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	newFixture := func(filter string, crmTypes ...string) ([]domain.MergedCommunication, error) {
		svc, comms, clients, bridge := newTimelineFixture(t)
		clients.On("GetByID", mock.Anything, testClientID).Return(domain.Client{ID: testClientID}, nil)
		// Database rows arrive pre-filtered by the query layer.
		comms.On("ListByClient", mock.Anything, testClientID, &filter, mock.Anything, 0).Return([]domain.CommunicationRecord{
			dbRecord("db-match", domain.CommunicationType(filter), timePtr(now), now),
		}, nil)
		msgs := make([]domain.CrmMessage, 0, len(crmTypes))
		for i, ct := range crmTypes {
			msgs = append(msgs, crmMessage("crm-"+ct, ct, timePtr(now.Add(-time.Duration(i+1)*time.Minute))))
		}
		bridge.On("MessagesForClient", mock.Anything, mock.Anything, mock.Anything).Return(msgs)
		return svc.ClientTimeline(context.Background(), TimelineQuery{
			ClientID:        testClientID,
			Type:            &filter,
			IncludeExternal: true,
			Limit:           10,
		})
	}

	items, err := newFixture("sms", "sms", "chat_widget")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "db-match", items[0].ID)
	require.Equal(t, "crm-sms", items[1].ID)

	items, err = newFixture("chat", "chat_widget", "chat_live", "sms")
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "crm-chat_widget", items[1].ID)
	require.Equal(t, "crm-chat_live", items[2].ID)

	items, err = newFixture("email_highlevel", "email_highlevel", "sms")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "crm-email_highlevel", items[1].ID)

	// Unrecognized filter values pass every CRM item through.
	items, err = newFixture("reminder", "sms", "chat_widget")
	require.NoError(t, err)
	require.Len(t, items, 3)
}
