package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/planealo/planforms/internal/planforms/dto"
	"github.com/planealo/planforms/internal/planforms/types"
)

func TestDispatch(t *testing.T) {
	var payload webhookPayload
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	d := NewDispatcher(2*time.Second, 5*time.Second)
	form := &dto.Form{FormLight: dto.FormLight{ID: 7, Slug: "contact"}}
	sub := &dto.Submission{ID: 3, SeqId: 3}

	summary := d.Dispatch(context.Background(), form, sub, []types.WebhookConfig{
		{URL: ok.URL, Headers: map[string]string{"X-Token": "secret"}},
		{URL: bad.URL, Method: http.MethodPut},
	})

	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 1, summary.Delivered)
	assert.Equal(t, 1, summary.Failed)

	assert.Equal(t, "submission.created", payload.Event)
	assert.Equal(t, uint(7), payload.FormId)
	assert.Equal(t, "contact", payload.FormSlug)
	assert.Equal(t, uint(3), payload.Submission.ID)
}

func TestDispatchNoHooks(t *testing.T) {
	d := NewDispatcher(time.Second, 2*time.Second)
	summary := d.Dispatch(context.Background(), &dto.Form{}, &dto.Submission{}, nil)
	assert.Equal(t, ChannelSummary{}, summary)
}

func TestDispatchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	d := NewDispatcher(time.Second, 2*time.Second)
	summary := d.Dispatch(context.Background(), &dto.Form{}, &dto.Submission{}, []types.WebhookConfig{{URL: srv.URL}})
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 0, summary.Delivered)
	assert.Equal(t, 1, summary.Failed)
}
