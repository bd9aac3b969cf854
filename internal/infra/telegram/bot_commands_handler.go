// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(b *telebot.Bot, adminTelegramID int64, subreddit string, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")
		return c.Send(startText(senderID, adminTelegramID, subreddit, c.Sender().FirstName))
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")
		if senderID != adminTelegramID {
			return c.Send("There are no commands available to you.")
		}
		return c.Send(adminHelpText(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

func startText(senderID, adminTelegramID int64, subreddit, firstName string) string {
	if senderID == adminTelegramID {
		return fmt.Sprintf("Hello %s! I am watching r/%s. Use /help for the list of commands.", firstName, subreddit)
	}
	return fmt.Sprintf("Hello! I post removal alerts for the moderators of r/%s.", subreddit)
}

func adminHelpText() string {
	var helpText strings.Builder
	helpText.WriteString("Moderator commands:\n\n")
	helpText.WriteString("`/lookup <postId>`\n - Show the stored state of a post.\n\n")
	helpText.WriteString("`/stats`\n - Count tracked posts per category.\n\n")
	helpText.WriteString("`/reindex`\n - Rebuild category indexes from the stored records.\n\n")
	helpText.WriteString("`/jobs`\n - List the scheduled watcher jobs.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return helpText.String()
}
