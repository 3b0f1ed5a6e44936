package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	e "nuclight.org/media-tg-bot/pkg/entities"
)

var errNotConnected = errors.New("bot api is not connected")

func (c *Client) SendMessage(_ context.Context, chatID int64, text string, markup e.Keyboard) (int, error) {
	if c.bot == nil {
		return -1, errNotConnected
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if kb := toMarkup(markup); kb != nil {
		msg.ReplyMarkup = *kb
	}

	sent, err := c.bot.Send(msg)
	if err != nil {
		return -1, fmt.Errorf("sending message: %w", err)
	}
	return sent.MessageID, nil
}

// EditMessage replaces text and keyboard of a message. Edits that change
// nothing are not an error.
func (c *Client) EditMessage(_ context.Context, chatID int64, messageID int, text string, markup e.Keyboard) error {
	if c.bot == nil {
		return errNotConnected
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	edit.ReplyMarkup = toMarkup(markup)

	if _, err := c.bot.Request(edit); err != nil && !isNotModified(err) {
		return fmt.Errorf("editing message: %w", err)
	}
	return nil
}

func (c *Client) AnswerCallback(_ context.Context, callbackID string) error {
	if c.bot == nil {
		return errNotConnected
	}

	if _, err := c.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("answering callback: %w", err)
	}
	return nil
}

func (c *Client) SendDocument(_ context.Context, chatID int64, path string) error {
	if c.bot == nil {
		return errNotConnected
	}

	if _, err := c.bot.Send(tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))); err != nil {
		return fmt.Errorf("sending document: %w", err)
	}
	return nil
}

func toMarkup(kb e.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}
