package telegram

import "gopkg.in/telebot.v3"

// Client sends text to a Telegram chat. Group chats have negative ids.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}
