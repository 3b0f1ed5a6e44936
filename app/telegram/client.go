package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/getsentry/sentry-go"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	e "nuclight.org/media-tg-bot/pkg/entities"
	"nuclight.org/media-tg-bot/pkg/logger"
	"nuclight.org/media-tg-bot/pkg/mutex"
)

type UpdateHandler interface {
	HandleCallback(ctx context.Context, cb e.Callback)
	HandleText(ctx context.Context, chatID int64, user e.User, text string)
	HandleCommand(ctx context.Context, chatID int64, user e.User, command string)
}

type Client struct {
	Log        logger.Logger
	APIToken   string
	WorkersNum int
	Handler    UpdateHandler

	bot   *tgbotapi.BotAPI
	wg    sync.WaitGroup
	chats mutex.KeyedMutex[int64]
}

// Connect creates the bot api. Messenger methods work after it returns.
func (c *Client) Connect() (err error) {
	c.bot, err = tgbotapi.NewBotAPI(c.APIToken)
	if err != nil {
		return fmt.Errorf("creating bot api: %w", err)
	}

	c.Log.Info("bot api created", "username", c.bot.Self.UserName)
	return nil
}

// Start pulls updates with WorkersNum workers until ctx is done.
func (c *Client) Start(ctx context.Context) error {
	if c.WorkersNum == 0 {
		return fmt.Errorf("workers number must be greater than 0")
	}
	if c.Handler == nil {
		return fmt.Errorf("handler is not set")
	}

	if c.bot == nil {
		if err := c.Connect(); err != nil {
			return err
		}
	}

	updatesConf := tgbotapi.NewUpdate(0)
	updatesConf.Timeout = 60
	updatesConf.AllowedUpdates = []string{"message", "callback_query"}

	updatesChan := c.bot.GetUpdatesChan(updatesConf)

	for i := 0; i < c.WorkersNum; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.handleUpdatesFromChan(ctx, updatesChan)
		}()
	}

	go func() {
		<-ctx.Done()
		c.bot.StopReceivingUpdates()
	}()

	return nil
}

func (c *Client) Wait() {
	c.wg.Wait()
}

func (c *Client) handleUpdatesFromChan(ctx context.Context, updatesChan tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updatesChan:
			if !ok {
				return
			}
			err := c.handleUpdate(ctx, update)
			if err != nil {
				c.Log.Error("handling update", "tg_update_id", update.UpdateID, "error", err)
			}
		}
	}
}

func (c *Client) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	log := c.Log.With("tg_update_id", update.UpdateID)

	defer func() {
		if err := recover(); err != nil {
			log.Error("panic", "error", err)
			sentry.CurrentHub().Recover(err)
		}
	}()

	if cq := update.CallbackQuery; cq != nil {
		if cq.Message == nil || cq.Message.Chat == nil || cq.From == nil {
			log.Warn("callback without message")
			return c.AnswerCallback(ctx, cq.ID)
		}

		chatID := cq.Message.Chat.ID
		c.chats.Lock(chatID)
		defer c.chats.Unlock(chatID)

		c.Handler.HandleCallback(ctx, e.Callback{
			ID:        cq.ID,
			ChatID:    chatID,
			MessageID: cq.Message.MessageID,
			Sender:    takeUser(cq.From),
			Data:      cq.Data,
		})
		return nil
	}

	if update.Message == nil {
		log.Warn("message is nil")
		return nil
	}

	if update.Message.From == nil {
		log.Warn("message from is nil")
		return nil
	}

	if update.Message.Chat == nil {
		log.Warn("message chat is nil")
		return nil
	}

	chatID := update.Message.Chat.ID
	user := takeUser(update.Message.From)

	log.Info(
		"new message",
		"tg_message_id", update.Message.MessageID,
		"tg_user_id", update.Message.From.ID,
		"tg_user_nick", update.Message.From.UserName,
		"tg_chat_id", chatID,
		"text", update.Message.Text,
	)

	c.chats.Lock(chatID)
	defer c.chats.Unlock(chatID)

	if update.Message.IsCommand() {
		c.Handler.HandleCommand(ctx, chatID, user, strings.ToLower(update.Message.Command()))
		return nil
	}

	text := update.Message.Text
	if text == "" {
		text = update.Message.Caption
	}
	c.Handler.HandleText(ctx, chatID, user, text)

	return nil
}

func takeUser(user *tgbotapi.User) e.User {
	return e.User{
		ID:   user.ID,
		Name: takeUserName(user),
	}
}

func takeUserID(user *tgbotapi.User) string {
	return strconv.FormatInt(user.ID, 10)
}

func takeUserName(user *tgbotapi.User) string {
	var sb strings.Builder

	if user.FirstName != "" {
		sb.WriteString(user.FirstName)
	}

	if user.LastName != "" {
		if sb.Len() > 0 {
			sb.WriteRune(' ')
		}
		sb.WriteString(user.LastName)
	}

	if user.UserName != "" {
		if sb.Len() > 0 {
			sb.WriteString(" (@")
			sb.WriteString(user.UserName)
			sb.WriteRune(')')
		} else {
			sb.WriteRune('@')
			sb.WriteString(user.UserName)
		}
	}

	if sb.Len() == 0 {
		return takeUserID(user)
	}

	return sb.String()
}
