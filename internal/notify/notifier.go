// Package notify dispatches workflow notifications through the external
// notification microservice. The status machines only see the Notifier
// interface; transport and retries belong to the service behind it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Template selects the message template rendered by the notification service.
type Template string

const (
	TemplateManufacturerSubmission Template = "manufacturer_submission"
	TemplateOrderStatusChanged     Template = "order_status_changed"
)

// DeliveryResult reports a successful dispatch.
type DeliveryResult struct {
	MessageID string `json:"messageId"`
}

type Notifier interface {
	Notify(ctx context.Context, recipients []string, template Template, data map[string]string) (*DeliveryResult, error)
}

// EmailServiceNotifier posts to the notification microservice over HTTP.
type EmailServiceNotifier struct {
	baseURL string
	client  *http.Client
}

func NewEmailServiceNotifier(baseURL string) *EmailServiceNotifier {
	return &EmailServiceNotifier{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendRequest struct {
	Recipients []string          `json:"recipients"`
	Template   string            `json:"template"`
	Data       map[string]string `json:"data"`
}

func (n *EmailServiceNotifier) Notify(ctx context.Context, recipients []string, template Template, data map[string]string) (*DeliveryResult, error) {
	if len(recipients) == 0 {
		return nil, errors.New("no recipients")
	}

	body, err := json.Marshal(sendRequest{
		Recipients: recipients,
		Template:   string(template),
		Data:       data,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/notifications/send", n.baseURL), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("notification service returned %d", resp.StatusCode)
	}

	var res DeliveryResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}
