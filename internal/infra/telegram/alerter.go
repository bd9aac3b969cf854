package telegram

import (
	"context"
	"fmt"

	domainTelegram "explain_yourself_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// ModAlerter forwards removal and report alerts to the moderators' chat.
type ModAlerter struct {
	client domainTelegram.Client
	chatID int64
	logger *logrus.Entry
}

func NewModAlerter(client domainTelegram.Client, chatID int64, logger *logrus.Entry) *ModAlerter {
	return &ModAlerter{client: client, chatID: chatID, logger: logger.WithField("component", "mod_alerter")}
}

func (a *ModAlerter) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.client.SendMessage(a.chatID, text, nil); err != nil {
		a.logger.WithError(err).WithField("chat_id", a.chatID).Error("Failed to send alert")
		return fmt.Errorf("failed to send alert to chat %d: %w", a.chatID, err)
	}
	return nil
}
