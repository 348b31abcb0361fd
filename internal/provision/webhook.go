package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"tenant-metrics/internal/model"
)

// WebhookNotifier posts the provisioned event to the sync pipeline. The client
// timeout bounds every call and there are no retries.
type WebhookNotifier struct {
	client *resty.Client
}

func NewWebhookNotifier(timeout time.Duration) *WebhookNotifier {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &WebhookNotifier{client: client}
}

func (w *WebhookNotifier) Notify(ctx context.Context, url string, event model.TenantProvisioned) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"event": "tenant.provisioned",
			"data":  event,
		}).
		Post(url)
	if err != nil {
		return fmt.Errorf("webhook call failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}
