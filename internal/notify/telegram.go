package notify

import (
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier pushes run announcements to a fixed chat.
type TelegramNotifier struct {
	Bot    *tgbotapi.BotAPI
	ChatID int64
}

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramNotifier{Bot: bot, ChatID: chatID}, nil
}

func (n *TelegramNotifier) Send(text string) error {
	msg := tgbotapi.NewMessage(n.ChatID, text)
	_, err := n.Bot.Send(msg)
	return err
}
