package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"text/template"
	"time"
)

// SMSGatewayConfig configures the HTTP SMS gateway. The gateway receives a
// JSON payload {to, from, body} and is expected to answer 2xx.
type SMSGatewayConfig struct {
	URL   string
	From  string
	Token string
}

// SMSNotifier delivers a notice as a text message through an HTTP gateway.
type SMSNotifier struct {
	config SMSGatewayConfig
	client *http.Client
}

func NewSMSNotifier(config SMSGatewayConfig) *SMSNotifier {
	return &SMSNotifier{
		config: config,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type smsPayload struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

func (s *SMSNotifier) Send(noticeType NoticeType, notification NotificationData, noticeTemplate NoticeTemplate) error {
	if notification.To == "" {
		return fmt.Errorf("SMS notification requires 'To' number")
	}

	body := notification.Body
	if noticeTemplate.Text != "" {
		tmpl, err := template.New("sms").Parse(noticeTemplate.Text)
		if err != nil {
			slog.Error("Failed to parse SMS template", "err", err)
			return err
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, notification.Data); err != nil {
			slog.Error("Failed to execute SMS template", "err", err)
			return err
		}
		body = buf.String()
	}
	if body == "" {
		return fmt.Errorf("SMS notification requires a body")
	}

	payload, err := json.Marshal(smsPayload{To: notification.To, From: s.config.From, Body: body})
	if err != nil {
		return fmt.Errorf("failed to marshal SMS payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build SMS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Error("Failed to send SMS", "err", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("SMS gateway returned status %d", resp.StatusCode)
	}

	slog.Info("SMS sent successfully", "to", notification.To)
	return nil
}
