package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"community_broadcast_bot/internal/app"
	"community_broadcast_bot/internal/domain/content"
	"community_broadcast_bot/internal/domain/delivery"
	"community_broadcast_bot/internal/domain/member"
	"community_broadcast_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	callbackPrefixOptIn  = "pref_yes_"
	callbackPrefixOptOut = "pref_no_"
)

// RegisterMemberEventHandlers wires the membership-facing platform events:
// joins (welcome + opt-in prompt), opt-in/opt-out button presses, the /untag
// action, and group activity as the presence signal.
func RegisterMemberEventHandlers(
	ctx context.Context,
	b *telebot.Bot,
	dispatchService *app.DispatchService,
	memberRepo member.Repository,
	store delivery.Store,
	cfg *config.AppConfig,
	baseLogger *logrus.Entry,
) {
	joinLogger := baseLogger.WithField("handler_group", "member_joined")

	b.Handle(telebot.OnUserJoined, func(c telebot.Context) error {
		groupID := c.Chat().ID
		logCtx := joinLogger.WithField("group_id", groupID)

		if _, configured := cfg.GroupAssets[groupID]; !configured {
			logCtx.Warn("Join event for unconfigured group; ignoring")
			return nil
		}

		joined := c.Message().UsersJoined
		if len(joined) == 0 && c.Message().UserJoined != nil {
			joined = []telebot.User{*c.Message().UserJoined}
		}

		for i := range joined {
			u := &joined[i]
			m := newMemberFromUser(groupID, u)
			if err := memberRepo.Upsert(ctx, m); err != nil {
				logCtx.WithError(err).WithField("recipient_id", u.ID).Error("Failed to register joined member")
				continue
			}
			if m.IsBot {
				continue
			}

			markup := optInPromptMarkup(u.ID)
			if err := dispatchService.NotifyOne(ctx, m, content.KindWelcome, markup); err != nil {
				logCtx.WithError(err).WithField("recipient_id", u.ID).Warn("Welcome notification not delivered")
			}
		}
		return nil
	})

	callbackLogger := baseLogger.WithField("handler_group", "preference_callback")

	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		data := strings.TrimPrefix(c.Callback().Data, "\f")

		var pref delivery.Preference
		var idStr, ack string
		switch {
		case strings.HasPrefix(data, callbackPrefixOptIn):
			pref = delivery.PreferenceOptedIn
			idStr = strings.TrimPrefix(data, callbackPrefixOptIn)
			ack = "You're in! Daily updates are on. Send /untag any time to reset."
		case strings.HasPrefix(data, callbackPrefixOptOut):
			pref = delivery.PreferenceOptedOut
			idStr = strings.TrimPrefix(data, callbackPrefixOptOut)
			ack = "Got it, no daily updates for you."
		default:
			callbackLogger.WithField("data", data).Warn("Unhandled callback data")
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
		}

		recipientID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			callbackLogger.WithError(err).WithField("data", data).Warn("Invalid recipient ID in callback")
			return c.Respond(&telebot.CallbackResponse{Text: "Could not process your answer."})
		}

		// The ack goes back to the actor even when the write fails; the
		// failure is an operator problem, not the member's.
		if err := store.SetPreference(ctx, recipientID, pref); err != nil {
			callbackLogger.WithError(err).WithField("recipient_id", recipientID).Error("Failed to persist preference")
			return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong, please try again later."})
		}

		callbackLogger.WithFields(logrus.Fields{
			"recipient_id": recipientID,
			"preference":   pref,
		}).Info("Preference updated")
		return c.Respond(&telebot.CallbackResponse{Text: ack})
	})

	untagLogger := baseLogger.WithField("handler_group", "untag")

	b.Handle("/untag", func(c telebot.Context) error {
		senderID := c.Sender().ID
		if err := store.ClearPreference(ctx, senderID); err != nil {
			untagLogger.WithError(err).WithField("recipient_id", senderID).Error("Failed to clear preference")
			return c.Send("Something went wrong, please try again later.")
		}
		untagLogger.WithField("recipient_id", senderID).Info("Preference cleared")
		return c.Send("Your subscription preference has been reset.")
	})

	presenceLogger := baseLogger.WithField("handler_group", "presence")

	// Group chatter is the only presence signal the platform gives a bot.
	// Any message refreshes last-seen; a refresh after a stale period is an
	// offline-to-online transition and may trigger an immediate catch-up
	// send, gated by the same daily claim as batch cycles.
	b.Handle(telebot.OnText, func(c telebot.Context) error {
		chat := c.Chat()
		if chat == nil || (chat.Type != telebot.ChatGroup && chat.Type != telebot.ChatSuperGroup) {
			return nil
		}
		groupID := chat.ID
		if _, configured := cfg.GroupAssets[groupID]; !configured {
			return nil
		}

		sender := c.Sender()
		if sender == nil || sender.IsBot {
			return nil
		}

		now := time.Now()
		prev, err := memberRepo.TouchLastSeen(ctx, groupID, sender.ID, now)
		if err != nil {
			// Members who predate the bot never produced a join event;
			// first activity registers them.
			m := newMemberFromUser(groupID, sender)
			m.LastSeenAt.Time, m.LastSeenAt.Valid = now, true
			if upErr := memberRepo.Upsert(ctx, m); upErr != nil {
				presenceLogger.WithError(upErr).WithField("recipient_id", sender.ID).Warn("Failed to register active member")
			}
			return nil
		}

		if !cfg.PresenceTrigger {
			return nil
		}
		wasOnline := prev.Valid && prev.Time.After(now.Add(-cfg.OnlineWindow))
		if wasOnline {
			return nil
		}

		m, err := memberRepo.GetByTelegramID(ctx, groupID, sender.ID)
		if err != nil {
			presenceLogger.WithError(err).WithField("recipient_id", sender.ID).Warn("Presence trigger lookup failed")
			return nil
		}
		go func() {
			sendCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := dispatchService.NotifyOne(sendCtx, m, content.KindDaily, nil); err != nil {
				presenceLogger.WithError(err).WithField("recipient_id", m.TelegramID).Debug("Presence-triggered notification not delivered")
			}
		}()
		return nil
	})
}

func newMemberFromUser(groupID int64, u *telebot.User) *member.Member {
	m := &member.Member{
		GroupID:     groupID,
		TelegramID:  u.ID,
		DisplayName: strings.TrimSpace(u.FirstName + " " + u.LastName),
		IsBot:       u.IsBot,
		IsActive:    true,
	}
	if u.Username != "" {
		m.Username.String, m.Username.Valid = u.Username, true
	}
	return m
}

func optInPromptMarkup(recipientID int64) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	btnIn := markup.Data("Keep me posted", fmt.Sprintf("%s%d", callbackPrefixOptIn, recipientID))
	btnOut := markup.Data("No thanks", fmt.Sprintf("%s%d", callbackPrefixOptOut, recipientID))
	markup.Inline(markup.Row(btnIn, btnOut))
	return markup
}
