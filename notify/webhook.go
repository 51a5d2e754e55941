package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// WebhookSender POSTs the delivery payload to a mail-gateway endpoint. The
// gateway owns SMTP, templating and queueing; this process only hands off.
type WebhookSender struct {
	client   *resty.Client
	endpoint string
}

// NewWebhookSender creates a sender targeting endpoint. authToken, when
// non-empty, is sent as a bearer token.
func NewWebhookSender(endpoint, authToken string) *WebhookSender {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	if authToken != "" {
		client.SetAuthToken(authToken)
	}
	return &WebhookSender{client: client, endpoint: endpoint}
}

type webhookPayload struct {
	Message Message     `json:"message"`
	Meta    RequestMeta `json:"meta"`
}

// Send implements Sender.
func (s *WebhookSender) Send(ctx context.Context, msg Message, meta RequestMeta) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{Message: msg, Meta: meta}).
		Post(s.endpoint)
	if err != nil {
		return fmt.Errorf("posting sign-in message: %w", err)
	}
	if resp.IsError() {
		log.Error().
			Int("status", resp.StatusCode()).
			Str("session_identifier", msg.SessionIdentifier).
			Msg("Mail gateway rejected sign-in message")
		return fmt.Errorf("mail gateway returned status %d", resp.StatusCode())
	}
	return nil
}

var _ Sender = (*WebhookSender)(nil)
