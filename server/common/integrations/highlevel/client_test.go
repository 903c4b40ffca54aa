package highlevel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:     "test-key",
		LocationID: "loc-1",
		BaseURL:    srv.URL,
	})
}

func TestIsConfigured(t *testing.T) {
	require.True(t, NewClient(Config{APIKey: "k", LocationID: "l"}).IsConfigured())
	require.False(t, NewClient(Config{APIKey: "k"}).IsConfigured())
	require.False(t, NewClient(Config{LocationID: "l"}).IsConfigured())
	require.False(t, NewClient(Config{APIKey: "  "}).IsConfigured())
}

func TestGetContactByEmail(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/contacts/lookup", r.URL.Path)
		require.Equal(t, "ops@acme.example", r.URL.Query().Get("email"))
		require.Equal(t, "loc-1", r.URL.Query().Get("locationId"))
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"contacts": []map[string]any{{"id": "contact-1", "email": "ops@acme.example"}},
		})
	}))

	contact, err := client.GetContactByEmail(context.Background(), "ops@acme.example")
	require.NoError(t, err)
	require.NotNil(t, contact)
	require.Equal(t, "contact-1", contact.ID)
}

func TestGetContactByEmailNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	contact, err := client.GetContactByEmail(context.Background(), "nobody@acme.example")
	require.NoError(t, err)
	require.Nil(t, contact)
}

func TestGetContactByEmailEmptyResult(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"contacts": []}`))
	}))

	contact, err := client.GetContactByEmail(context.Background(), "nobody@acme.example")
	require.NoError(t, err)
	require.Nil(t, contact)
}

func TestGetContactByEmailServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.GetContactByEmail(context.Background(), "ops@acme.example")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 502")
}

func TestGetAllMessagesForContact(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/conversations/search":
			require.Equal(t, "contact-1", r.URL.Query().Get("contactId"))
			_, _ = w.Write([]byte(`{"conversations": [{"id": "conv-1"}, {"id": "conv-2"}]}`))
		case "/v1/conversations/conv-1/messages":
			_, _ = w.Write([]byte(`{"messages": {"messages": [
				{"id": "m1", "messageType": "TYPE_SMS", "body": "hi", "direction": "inbound"},
				{"id": "m2", "messageType": "TYPE_EMAIL", "subject": "Recap"}
			]}}`))
		case "/v1/conversations/conv-2/messages":
			_, _ = w.Write([]byte(`{"messages": {"messages": [
				{"id": "m3", "messageType": "TYPE_WEBCHAT", "body": "hello"}
			]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	msgs, err := client.GetAllMessagesForContact(context.Background(), "contact-1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "TYPE_SMS", msgs[0].Type)
	require.Equal(t, "m3", msgs[2].ID)
}

func TestGetAllMessagesForContactHonorsLimit(t *testing.T) {
	var secondConvHit bool
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/conversations/search":
			_, _ = w.Write([]byte(`{"conversations": [{"id": "conv-1"}, {"id": "conv-2"}]}`))
		case "/v1/conversations/conv-1/messages":
			_, _ = w.Write([]byte(`{"messages": {"messages": [
				{"id": "m1", "messageType": "TYPE_SMS"},
				{"id": "m2", "messageType": "TYPE_SMS"}
			]}}`))
		case "/v1/conversations/conv-2/messages":
			secondConvHit = true
			_, _ = w.Write([]byte(`{"messages": {"messages": [{"id": "m3", "messageType": "TYPE_SMS"}]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	msgs, err := client.GetAllMessagesForContact(context.Background(), "contact-1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.False(t, secondConvHit)
}

func TestGetAllMessagesForContactSearchError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.GetAllMessagesForContact(context.Background(), "contact-1", 10)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 429")
}
