package telegram

import (
	"context"
	"fmt"
	"strings"

	"community_broadcast_bot/internal/domain/delivery"
	"community_broadcast_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterBotCommands wires the public commands everyone can use.
func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	cfg *config.AppConfig, // For AdminTelegramID
	store delivery.Store,
	baseLogger *logrus.Entry,
) {
	commandLogger := baseLogger.WithField("handler_group", "public_commands")

	b.Handle("/ninja", func(c telebot.Context) error {
		commandLogger.WithFields(logrus.Fields{
			"command":   "/ninja",
			"sender_id": c.Sender().ID,
		}).Info("Processing /ninja command")
		return c.Send("It's done boss!")
	})

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := commandLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == cfg.AdminTelegramID {
			logCtx.Info("User identified as Admin")
			return c.Send(fmt.Sprintf("Hello, admin %s! Ready to work. Use /help for the command list.", c.Sender().FirstName))
		}

		pref, err := store.GetPreference(ctx, senderID)
		if err != nil {
			logCtx.WithError(err).Error("Error checking preference for /start command")
			return c.Send("Something went wrong while checking your status. Please try again later.")
		}

		switch pref {
		case delivery.PreferenceOptedIn:
			return c.Send("Hi! You're subscribed to the daily updates. Send /untag to reset your preference.")
		case delivery.PreferenceOptedOut:
			return c.Send("Hi! You're currently unsubscribed from the daily updates. Send /untag to reset your preference.")
		default:
			return c.Send("Hi! I greet new members and share community updates. You'll get an opt-in prompt when you join one of my groups.")
		}
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := commandLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID == cfg.AdminTelegramID {
			logCtx.Info("User identified as Admin, sending admin help.")
			var helpText strings.Builder
			helpText.WriteString("Available admin commands:\n\n")
			helpText.WriteString("`/add_member <GroupID> <TelegramID> <Name> [username]`\n - Register a member in a group's roster.\n\n")
			helpText.WriteString("`/remove_member <GroupID> <TelegramID>`\n - Deactivate a member (they stop receiving broadcasts).\n\n")
			helpText.WriteString("`/list_members <GroupID>`\n - Show a group's registered members.\n\n")
			helpText.WriteString("`/help`\n - Show this help message.")
			return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		}

		return c.Send("I greet new members and send daily community updates.\n\n" +
			"Use the buttons under the welcome message to opt in or out of the daily updates, " +
			"and `/untag` to reset that choice.\n\n`/help` - Show this message.")
	})
}
