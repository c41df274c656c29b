package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Incoming is one text message received from a chat user.
type Incoming struct {
	SenderID int64
	Text     string
	Username string
}

// Transport is the chat surface the bot talks through. Text is expected to
// be escaped for the transport's markup renderer already.
type Transport interface {
	SendText(senderID int64, text string) error
	// SendKeyboard sends text with a reply keyboard; empty rows remove the
	// current keyboard instead.
	SendKeyboard(senderID int64, text string, rows [][]string) error
	SendPhoto(senderID int64, url, caption string, rows [][]string) error
	BotName() string
}

// Telegram implements Transport over the Bot API with MarkdownV2 rendering.
type Telegram struct {
	api    *tgbotapi.BotAPI
	logger *log.Logger
}

// NewTelegram creates the Telegram transport and verifies the credential by
// fetching the bot identity.
func NewTelegram(token string, logger *log.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}
	api.Debug = false
	return &Telegram{api: api, logger: logger}, nil
}

// BotName returns the bot's username, used for the post-auth deep link back
// into the chat.
func (t *Telegram) BotName() string {
	return t.api.Self.UserName
}

// Listen starts long polling and returns a channel of inbound text messages.
// Non-text updates and group or channel senders are dropped here. The
// channel closes when ctx is cancelled or polling stops.
func (t *Telegram) Listen(ctx context.Context) <-chan Incoming {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	updates := t.api.GetUpdatesChan(cfg)

	out := make(chan Incoming)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				t.api.StopReceivingUpdates()
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				msg := u.Message
				if msg == nil || msg.Text == "" {
					continue
				}
				if msg.Chat.ID < 0 {
					// Group or channel.
					continue
				}

				name := senderName(msg.From)
				t.logger.Info("received message", "sender_id", msg.Chat.ID, "name", name, "text", msg.Text)
				out <- Incoming{SenderID: msg.Chat.ID, Text: strings.TrimSpace(msg.Text), Username: name}
			}
		}
	}()
	return out
}

func senderName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (t *Telegram) SendText(senderID int64, text string) error {
	msg := tgbotapi.NewMessage(senderID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	_, err := t.api.Send(msg)
	return err
}

func (t *Telegram) SendKeyboard(senderID int64, text string, rows [][]string) error {
	msg := tgbotapi.NewMessage(senderID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyMarkup = buildKeyboard(rows)
	_, err := t.api.Send(msg)
	return err
}

func (t *Telegram) SendPhoto(senderID int64, url, caption string, rows [][]string) error {
	photo := tgbotapi.NewPhoto(senderID, tgbotapi.FileURL(url))
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeMarkdownV2
	if len(rows) > 0 {
		photo.ReplyMarkup = buildKeyboard(rows)
	}
	_, err := t.api.Send(photo)
	return err
}

func buildKeyboard(rows [][]string) any {
	if len(rows) == 0 {
		return tgbotapi.NewRemoveKeyboard(true)
	}

	kbRows := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		kbRows = append(kbRows, buttons)
	}

	kb := tgbotapi.NewReplyKeyboard(kbRows...)
	kb.ResizeKeyboard = true
	return kb
}
