package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"intakeflow/api/internal/store"
	"intakeflow/api/internal/workflow"
)

type staticSettings map[string]string

func (s staticSettings) GetSetting(ctx context.Context, key string) (string, error) {
	return s[key], nil
}

func TestDispatchPostsWebhook(t *testing.T) {
	received := make(chan webhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload webhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := New(staticSettings{SettingWebhookURL: srv.URL}, nil, 5*time.Second, zap.NewNop())

	submittedAt := time.Now().UTC()
	notifier.Dispatch(EventInput{
		Event: workflow.EventSubmitted,
		Record: store.Record{
			ID:          "rec-1",
			ClientName:  "Lakeside Clinic",
			Status:      workflow.StateSubmitted,
			CreatedBy:   "user-1",
			SubmittedAt: &submittedAt,
		},
		Actor:    store.User{ID: "user-1", DisplayName: "Ada", Role: "intake_user"},
		Comments: "",
	})

	select {
	case payload := <-received:
		assert.Equal(t, "record.submitted", payload.Event)
		assert.Equal(t, "rec-1", payload.Record.ID)
		assert.Equal(t, "Lakeside Clinic", payload.Record.ClientName)
		assert.Equal(t, "submitted", payload.Record.Status)
		require.NotNil(t, payload.Actor)
		assert.Equal(t, "Ada", payload.Actor.Name)
		assert.False(t, payload.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never received")
	}
}

func TestDispatchIncludesRejectionComments(t *testing.T) {
	received := make(chan webhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload webhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
	}))
	defer srv.Close()

	notifier := New(staticSettings{SettingWebhookURL: srv.URL}, nil, 5*time.Second, zap.NewNop())

	notifier.Dispatch(EventInput{
		Event:    workflow.EventRejected,
		Record:   store.Record{ID: "rec-2", ClientName: "Harbor Health", Status: workflow.StateDraft},
		Actor:    store.User{ID: "rev-1", DisplayName: "Grace", Role: "reviewer_manager"},
		Comments: "Missing NPI numbers",
	})

	select {
	case payload := <-received:
		assert.Equal(t, "record.rejected", payload.Event)
		assert.Equal(t, "Missing NPI numbers", payload.Comments)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never received")
	}
}

func TestDispatchSkipsWhenNoWebhookConfigured(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	notifier := New(staticSettings{}, nil, time.Second, zap.NewNop())
	notifier.Dispatch(EventInput{
		Event:  workflow.EventApproved,
		Record: store.Record{ID: "rec-3", Status: workflow.StateApproved},
	})

	assert.Zero(t, calls)
}
