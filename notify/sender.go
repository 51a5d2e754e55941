// Package notify carries the out-of-band delivery of magic links. The flow
// hands a Message to a Sender; transport (mail gateway, queue, dev logger) is
// the implementation's business.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Message is the one-time delivery payload for a freshly created session.
// Token is the only place the plaintext ever leaves the process.
type Message struct {
	// Recipient is the normalized identifying value (typically an email address).
	Recipient string `json:"recipient"`
	// PrincipalKind tags which authenticatable type requested sign-in.
	PrincipalKind string `json:"principal_kind"`
	// SessionIdentifier is the opaque public reference used in confirm URLs.
	SessionIdentifier string `json:"session_identifier"`
	// Token is the plaintext credential. Never logged, never persisted.
	Token string `json:"token"`
	// ConfirmURL is the single-click magic link.
	ConfirmURL string `json:"confirm_url"`
}

// RequestMeta is the originating request's context. It is always passed; a
// Sender that doesn't need it ignores it.
type RequestMeta struct {
	RemoteAddr string `json:"remote_addr,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	Host       string `json:"host,omitempty"`
}

// Sender delivers a sign-in message. Implementations must not retain or log
// the token beyond handing it to the delivery channel.
type Sender interface {
	Send(ctx context.Context, msg Message, meta RequestMeta) error
}

// LogSender is a development stand-in that records that a delivery happened
// without exposing the token.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(_ context.Context, msg Message, _ RequestMeta) error {
	log.Info().
		Str("recipient", msg.Recipient).
		Str("principal_kind", msg.PrincipalKind).
		Str("session_identifier", msg.SessionIdentifier).
		Msg("Sign-in message delivered to log sender")
	return nil
}

var _ Sender = LogSender{}
