package telegram

import (
	"context"
	"errors"
	"fmt"

	"community_broadcast_bot/internal/domain/messaging"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the messaging.Client interface using the
// gopkg.in/telebot.v3 library. A token-bucket limiter paces individual sends
// underneath the dispatcher's batch-level throttle delays.
type TelebotAdapter struct {
	bot     *telebot.Bot
	limiter *rate.Limiter
}

func NewTelebotAdapter(b *telebot.Bot, ratePerSec int) *TelebotAdapter {
	if ratePerSec <= 0 {
		ratePerSec = 25
	}
	return &TelebotAdapter{
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

// Send delivers one direct message, with the image attached when present.
// The platform call itself does not take a context, so it runs in a goroutine
// and the wait is bounded by ctx; a timed-out call is abandoned to finish in
// the background under the HTTP client's own timeout.
func (a *TelebotAdapter) Send(ctx context.Context, recipientID int64, msg messaging.Message) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	recipient := &telebot.User{ID: recipientID}
	opts := &telebot.SendOptions{ReplyMarkup: msg.Markup}

	done := make(chan error, 1)
	go func() {
		var err error
		if msg.AttachmentPath != "" {
			photo := &telebot.Photo{File: telebot.FromDisk(msg.AttachmentPath), Caption: msg.Text}
			_, err = a.bot.Send(recipient, photo, opts)
		} else {
			_, err = a.bot.Send(recipient, msg.Text, opts)
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return classifySendError(err)
	}
}

// classifySendError maps platform errors onto the messaging taxonomy so the
// dispatcher can tell permanent recipient problems from transient ones.
func classifySendError(err error) error {
	if err == nil {
		return nil
	}

	var flood telebot.FloodError
	if errors.As(err, &flood) {
		return fmt.Errorf("%w: retry after %ds", messaging.ErrRateLimited, flood.RetryAfter)
	}

	switch {
	case errors.Is(err, telebot.ErrBlockedByUser):
		return fmt.Errorf("%w: %v", messaging.ErrPermissionDenied, err)
	case errors.Is(err, telebot.ErrChatNotFound), errors.Is(err, telebot.ErrUserIsDeactivated):
		return fmt.Errorf("%w: %v", messaging.ErrUnreachable, err)
	}
	return err
}
