package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"time"

	"github.com/solarfleet/control-plane/infrastructure/ratelimit"
	"github.com/solarfleet/control-plane/internal/domain/notification"
	"github.com/solarfleet/control-plane/pkg/logger"
)

// WebhookAdapter POSTs the event payload as JSON to the URL carried in
// the channel's config under the "url" key, through a rate-limited
// client to keep a noisy tenant from hammering its own endpoint.
type WebhookAdapter struct {
	client *ratelimit.RateLimitedClient
}

// NewWebhookAdapter creates a webhook adapter backed by a shared
// rate-limited HTTP client.
func NewWebhookAdapter(cfg ratelimit.RateLimitConfig) *WebhookAdapter {
	return &WebhookAdapter{
		client: ratelimit.NewRateLimitedClient(&http.Client{Timeout: 10 * time.Second}, cfg),
	}
}

// Send implements Adapter.
func (a *WebhookAdapter) Send(ctx context.Context, channel *notification.Channel, event *notification.Event) error {
	url, _ := channel.Config["url"].(string)
	if url == "" {
		return fmt.Errorf("webhook channel %s has no url configured", channel.ID)
	}

	body, err := json.Marshal(map[string]any{
		"eventId":   event.ID,
		"tenantId":  event.TenantID,
		"alertId":   event.AlertID,
		"payload":   event.Payload,
		"createdAt": event.CreatedAt,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// EmailAdapter sends plain-text mail through an SMTP relay. With no
// relay host configured it logs and reports success rather than
// failing every EMAIL channel, matching the degraded-mode posture the
// other optional integrations (SIM, weather, geocode) use when their
// base URL is unset.
type EmailAdapter struct {
	host string
	port int
	from string
	log  *logger.Logger
}

// NewEmailAdapter creates an SMTP-backed email adapter. host may be empty.
func NewEmailAdapter(host string, port int, from string, log *logger.Logger) *EmailAdapter {
	if log == nil {
		log = logger.NewDefault("email-adapter")
	}
	return &EmailAdapter{host: host, port: port, from: from, log: log}
}

// Send implements Adapter.
func (a *EmailAdapter) Send(ctx context.Context, channel *notification.Channel, event *notification.Event) error {
	to, _ := channel.Config["address"].(string)
	if to == "" {
		return fmt.Errorf("email channel %s has no address configured", channel.ID)
	}
	if a.host == "" {
		a.log.WithField("channel_id", channel.ID).Debug("smtp relay unset, treating email send as succeeded")
		return nil
	}

	subject := "solarfleet alert"
	if event.AlertID != nil {
		subject = fmt.Sprintf("solarfleet alert %s", *event.AlertID)
	}
	body, err := json.MarshalIndent(event.Payload, "", "  ")
	if err != nil {
		return err
	}

	msg := fmt.Appendf(nil, "From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", a.from, to, subject, body)
	addr := net.JoinHostPort(a.host, fmt.Sprintf("%d", a.port))
	return smtp.SendMail(addr, nil, a.from, []string{to}, msg)
}

// SMSAdapter forwards the event to an HTTP SMS gateway that accepts a
// simple {"to":"...","body":"..."} POST, e.g. a carrier bridge.
type SMSAdapter struct {
	gatewayURL string
	client     *http.Client
}

// NewSMSAdapter creates a gateway-backed SMS adapter.
func NewSMSAdapter(gatewayURL string) *SMSAdapter {
	return &SMSAdapter{gatewayURL: gatewayURL, client: &http.Client{Timeout: 10 * time.Second}}
}

// Send implements Adapter.
func (a *SMSAdapter) Send(ctx context.Context, channel *notification.Channel, event *notification.Event) error {
	to, _ := channel.Config["phone"].(string)
	if to == "" {
		return fmt.Errorf("sms channel %s has no phone configured", channel.ID)
	}
	if a.gatewayURL == "" {
		return fmt.Errorf("no SMS gateway configured")
	}

	body, err := json.Marshal(map[string]any{
		"to":   to,
		"body": fmt.Sprintf("solarfleet alert: %v", event.Payload),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}
