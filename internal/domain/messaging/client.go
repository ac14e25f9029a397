package messaging

import (
	"context"
	"fmt"

	"gopkg.in/telebot.v3"
)

// Sentinel errors classifying send failures. Adapters wrap platform errors
// with one of these so callers can branch with errors.Is.
var (
	// ErrPermissionDenied: the recipient blocked the bot or disabled
	// direct messages. Not retryable.
	ErrPermissionDenied = fmt.Errorf("recipient refuses direct messages")
	// ErrUnreachable: the recipient account is gone or never started a
	// conversation with the bot. Not retryable.
	ErrUnreachable = fmt.Errorf("recipient unreachable")
	// ErrRateLimited: the platform pushed back; the cycle's throttle policy
	// is expected to absorb this.
	ErrRateLimited = fmt.Errorf("platform rate limit hit")
)

// Message is one outbound direct message. AttachmentPath, when set, points at
// an image sent with Text as its caption. Markup optionally attaches inline
// buttons (the opt-in prompt on welcome messages).
type Message struct {
	Text           string
	AttachmentPath string
	Markup         *telebot.ReplyMarkup
}

// Client defines the external send capability. Implementations must honor
// ctx cancellation and deadlines; an unresponsive platform call must not
// outlive the context.
type Client interface {
	Send(ctx context.Context, recipientID int64, msg Message) error
}
