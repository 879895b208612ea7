package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/obsidianstack/licensewatch/server/internal/config"
)

const defaultTwilioBaseURL = "https://api.twilio.com"

// deliver sends a to every connector. Errors are logged and never returned.
func (d *Dispatcher) deliver(connectors []config.ConnectorConfig, a *Action) {
	for _, c := range connectors {
		var err error
		switch c.Type {
		case "slack":
			err = d.sendSlack(c.URL(), a)
		case "teams":
			err = d.sendTeams(c.URL(), a)
		case "http":
			err = d.sendHTTP(c.URL(), a)
		case "sms":
			err = d.sendSMS(c, a)
		default:
			slog.Warn("alerts: unknown connector type, skipping", "type", c.Type)
			continue
		}

		if err != nil {
			slog.Error("alerts: action delivery failed",
				"type", c.Type,
				"instance", a.InstanceID,
				"err", err,
			)
		} else {
			slog.Debug("alerts: action delivered",
				"type", c.Type,
				"instance", a.InstanceID,
				"state", a.Context.State,
			)
		}
	}
}

func (d *Dispatcher) sendSlack(u string, a *Action) error {
	if u == "" {
		return fmt.Errorf("slack: webhook url not set")
	}
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s", stateLabel(a.Context.State), a.Context.InternalFullMessage),
	})
	return d.post(u, "application/json", body)
}

func (d *Dispatcher) sendTeams(u string, a *Action) error {
	if u == "" {
		return fmt.Errorf("teams: webhook url not set")
	}
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": stateColor(a.Context.State),
		"summary":    AlertTypeLabel,
		"title":      fmt.Sprintf("%s: %s", AlertTypeLabel, a.Context.ClusterName),
		"text":       a.Context.InternalFullMessage,
	}
	body, _ := json.Marshal(payload)
	return d.post(u, "application/json", body)
}

func (d *Dispatcher) sendHTTP(u string, a *Action) error {
	if u == "" {
		return fmt.Errorf("http: webhook url not set")
	}
	body, _ := json.Marshal(map[string]interface{}{
		"alertTypeId":   AlertTypeID,
		"instanceId":    a.InstanceID,
		"actionGroupId": a.Group,
		"context":       a.Context,
	})
	return d.post(u, "application/json", body)
}

// sendSMS posts the short message to the Twilio Messages API, once per recipient.
func (d *Dispatcher) sendSMS(c config.ConnectorConfig, a *Action) error {
	base := c.BaseURL
	if base == "" {
		base = defaultTwilioBaseURL
	}
	apiURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", strings.TrimRight(base, "/"), c.AccountSID)

	for _, to := range c.To {
		form := url.Values{}
		form.Set("To", to)
		form.Set("From", c.From)
		form.Set("Body", a.Context.InternalShortMessage)

		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, apiURL, strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("sms: build request: %w", err)
		}
		req.SetBasicAuth(c.AccountSID, c.Token())
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		if err := d.do(req); err != nil {
			return fmt.Errorf("sms to %s: %w", to, err)
		}
	}
	return nil
}

func (d *Dispatcher) post(u, contentType string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return d.do(req)
}

func (d *Dispatcher) do(req *http.Request) error {
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("connector returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func stateLabel(state string) string {
	switch state {
	case StateFiring:
		return "[FIRING]"
	case StateResolved:
		return "[RESOLVED]"
	default:
		return "[INFO]"
	}
}

func stateColor(state string) string {
	switch state {
	case StateFiring:
		return "FFAB40"
	case StateResolved:
		return "2ECC71"
	default:
		return "00D4FF"
	}
}
