package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"community_broadcast_bot/internal/app"
	idb "community_broadcast_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterAdminHandlers registers handlers for admin roster commands.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, adminTelegramID int64, baseLogger *logrus.Entry) {
	b.Handle("/add_member", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/add_member",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		args := c.Args()
		// Expected format: /add_member <GroupID> <TelegramID> <Name> [username]
		if len(args) < 3 || len(args) > 4 {
			handlerLogger.WithField("args_count", len(args)).Warn("Invalid command format")
			return c.Send("Invalid format. Use: /add_member <GroupID> <TelegramID> <Name> [username]")
		}

		groupID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Error: GroupID must be a number.")
		}
		telegramID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return c.Send("Error: TelegramID must be a number.")
		}
		displayName := args[2]
		if strings.TrimSpace(displayName) == "" {
			return c.Send("Error: name cannot be empty.")
		}
		var username string
		if len(args) == 4 {
			username = strings.TrimPrefix(args[3], "@")
		}

		handlerLogger = handlerLogger.WithFields(logrus.Fields{
			"group_id":           groupID,
			"member_telegram_id": telegramID,
		})

		newMember, err := adminService.RegisterMember(ctx, c.Sender().ID, groupID, telegramID, displayName, username)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send("Error: you are not allowed to run this command.")
			}
			logWithError.Error("Failed to register member")
			return c.Send(fmt.Sprintf("Something went wrong while registering the member: %s", err.Error()))
		}

		handlerLogger.WithField("member_id", newMember.ID).Info("Member registered successfully")
		return c.Send(fmt.Sprintf("Member %s (ID: %d) registered in group %d.", newMember.DisplayName, newMember.TelegramID, groupID))
	})

	b.Handle("/remove_member", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/remove_member",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		args := c.Args()
		if len(args) != 2 {
			handlerLogger.WithField("args_count", len(args)).Warn("Invalid command format")
			return c.Send("Invalid format. Use: /remove_member <GroupID> <TelegramID>")
		}

		groupID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Error: GroupID must be a number.")
		}
		telegramID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return c.Send("Error: TelegramID must be a number.")
		}

		handlerLogger = handlerLogger.WithFields(logrus.Fields{
			"group_id":           groupID,
			"member_telegram_id": telegramID,
		})

		removed, err := adminService.DeactivateMember(ctx, c.Sender().ID, groupID, telegramID)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send("Error: you are not allowed to run this command.")
			case errors.Is(err, idb.ErrMemberNotFound):
				logWithError.Warn("Member not found")
				return c.Send(fmt.Sprintf("Error: no member with Telegram ID %d in group %d.", telegramID, groupID))
			case errors.Is(err, app.ErrMemberAlreadyInactive):
				logWithError.Warn("Member already inactive")
				return c.Send(fmt.Sprintf("Member %d is already deactivated.", telegramID))
			default:
				logWithError.Error("Failed to deactivate member")
				return c.Send(fmt.Sprintf("Something went wrong while deactivating the member: %s", err.Error()))
			}
		}

		handlerLogger.Info("Member deactivated successfully")
		return c.Send(fmt.Sprintf("Member %s (ID: %d) deactivated; they will no longer receive broadcasts.", removed.DisplayName, removed.TelegramID))
	})

	b.Handle("/list_members", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/list_members",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		args := c.Args()
		if len(args) != 1 {
			return c.Send("Invalid format. Use: /list_members <GroupID>")
		}
		groupID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Error: GroupID must be a number.")
		}

		members, err := adminService.ListMembers(ctx, c.Sender().ID, groupID)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to list members")
			return c.Send(fmt.Sprintf("Something went wrong while listing members: %s", err.Error()))
		}
		if len(members) == 0 {
			return c.Send(fmt.Sprintf("No registered members in group %d.", groupID))
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Registered members of group %d:\n", groupID))
		for _, m := range members {
			state := "active"
			if !m.IsActive {
				state = "inactive"
			}
			if m.IsBot {
				state += ", bot"
			}
			sb.WriteString(fmt.Sprintf("- %s (ID: %d, %s)\n", m.DisplayName, m.TelegramID, state))
		}
		return c.Send(sb.String())
	})
}
