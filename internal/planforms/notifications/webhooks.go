// Webhook notification channel. Endpoints configured on a form are called
// after a submission is persisted; delivery is best effort, exactly one
// attempt per endpoint, and never blocks acceptance of the submission.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/errgroup"

	"github.com/planealo/planforms/internal/planforms/dto"
	"github.com/planealo/planforms/internal/planforms/types"
)

const webhookConcurrency = 4

// ChannelSummary reports delivery counters for one channel.
type ChannelSummary struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered,omitempty"`
	Failed    int `json:"failed,omitempty"`
}

// Summary is the notification section of a submit response.
type Summary struct {
	Webhooks ChannelSummary `json:"webhooks"`
	Emails   ChannelSummary `json:"emails"`
}

type Dispatcher struct {
	client       *retryablehttp.Client
	callTimeout  time.Duration
	totalTimeout time.Duration
}

func NewDispatcher(callTimeout, totalTimeout time.Duration) *Dispatcher {
	client := retryablehttp.NewClient()
	// One attempt per endpoint, failures surface in the summary instead.
	client.RetryMax = 0
	client.HTTPClient.Timeout = callTimeout
	client.Logger = nil

	return &Dispatcher{
		client:       client,
		callTimeout:  callTimeout,
		totalTimeout: totalTimeout,
	}
}

// webhookPayload is the body posted to every endpoint.
type webhookPayload struct {
	Event      string          `json:"event"`
	FormId     uint            `json:"form_id"`
	FormSlug   string          `json:"form_slug"`
	Submission *dto.Submission `json:"submission"`
}

// Dispatch calls every configured webhook concurrently and waits for the
// outcome within the total timeout. The returned summary counts every
// endpoint as attempted even when the budget ran out before its call.
func (d *Dispatcher) Dispatch(ctx context.Context, form *dto.Form, sub *dto.Submission, hooks []types.WebhookConfig) ChannelSummary {
	summary := ChannelSummary{Attempted: len(hooks)}
	if len(hooks) == 0 {
		return summary
	}

	body, err := json.Marshal(webhookPayload{
		Event:      "submission.created",
		FormId:     form.ID,
		FormSlug:   form.Slug,
		Submission: sub,
	})
	if err != nil {
		slog.Error("Marshal webhook payload", "form", form.Slug, "err", err)
		summary.Failed = len(hooks)
		return summary
	}

	ctx, cancel := context.WithTimeout(ctx, d.totalTimeout)
	defer cancel()

	delivered := make([]bool, len(hooks))

	var g errgroup.Group
	g.SetLimit(webhookConcurrency)
	for i, hook := range hooks {
		g.Go(func() error {
			delivered[i] = d.call(ctx, hook, body)
			return nil
		})
	}
	g.Wait()

	for _, ok := range delivered {
		if ok {
			summary.Delivered++
		} else {
			summary.Failed++
		}
	}
	return summary
}

func (d *Dispatcher) call(ctx context.Context, hook types.WebhookConfig, body []byte) bool {
	method := hook.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, hook.URL, bytes.NewReader(body))
	if err != nil {
		slog.Error("Build webhook request", "url", hook.URL, "err", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hook.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		slog.Warn("Webhook call fail", "url", hook.URL, "err", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("Webhook answered non-2xx", "url", hook.URL, "status", resp.StatusCode)
		return false
	}
	return true
}
