package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"multibot/internal/message"
)

// PlatformTelegram tags requests from the Telegram bot.
const PlatformTelegram = "Telegram"

// Telegram long-polls the bot API and answers in the originating chat.
type Telegram struct {
	token     string
	allowFrom []int64 // allowed sender ids, empty allows everyone
	factory   Factory
	logger    *slog.Logger
	bot       *tgbotapi.BotAPI
}

type TelegramAdapterConfig struct {
	Token     string
	AllowFrom []string
	Factory   Factory
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramAdapterConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		token:     cfg.Token,
		allowFrom: allowed,
		factory:   cfg.Factory,
		logger:    cfg.Logger,
	}
}

// Run connects and polls for updates until the context is cancelled.
func (t *Telegram) Run(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram adapter stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		}
	}
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !t.allowed(msg.From.ID) {
		t.logger.Warn("telegram message from disallowed user", "user_id", msg.From.ID)
		return
	}

	req := &message.Request{
		Platform: PlatformTelegram,
		UserID:   strconv.FormatInt(msg.Chat.ID, 10),
		Msg:      msg.Text,
	}
	if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
		req.GroupID = strconv.FormatInt(msg.Chat.ID, 10)
		req.UserID = strconv.FormatInt(msg.From.ID, 10)
	}
	if msg.Location != nil {
		req.Loc = &message.Location{
			Longitude: msg.Location.Longitude,
			Latitude:  msg.Location.Latitude,
		}
	}

	d, err := t.factory()
	if err != nil {
		t.logger.Error("cannot build dispatcher", "error", err)
		return
	}
	Deliver(d, d.Handle(req), func(resp message.Response) {
		t.send(msg.Chat.ID, resp)
	}, nil)
}

// Push delivers a response outside any inbound update, routed by the
// response's destination user id. Used by the scheduler loop.
func (t *Telegram) Push(resp message.Response) {
	if t.bot == nil {
		return
	}
	chatID, err := strconv.ParseInt(resp.Destination(), 10, 64)
	if err != nil {
		t.logger.Warn("cannot route scheduled response", "destination", resp.Destination())
		return
	}
	t.send(chatID, resp)
}

func (t *Telegram) allowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

// send renders one response to the chat where the request came from;
// group-scoped variants go to their declared group instead.
func (t *Telegram) send(chatID int64, resp message.Response) {
	var out tgbotapi.Chattable
	switch v := resp.(type) {
	case *message.Msg:
		out = tgbotapi.NewMessage(chatID, withMentions(v.Text, v.AtList))
	case *message.GroupMsg:
		out = tgbotapi.NewMessage(groupOr(v.GroupID, chatID), withMentions(v.Text, v.AtList))
	case *message.Image:
		out = tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(v.File))
	case *message.GroupImage:
		out = tgbotapi.NewPhoto(groupOr(v.GroupID, chatID), tgbotapi.FilePath(v.File))
	case *message.Music:
		out = tgbotapi.NewMessage(chatID, v.Info())
	default:
		t.logger.Warn("unsupported response on telegram", "kind", fmt.Sprintf("%T", resp))
		return
	}
	if _, err := t.bot.Send(out); err != nil {
		t.logger.Error("cannot send telegram message", "chat_id", chatID, "error", err)
	}
}

func withMentions(text string, atList []string) string {
	if len(atList) == 0 {
		return text
	}
	return "@" + strings.Join(atList, " @") + " " + text
}

func groupOr(groupID string, fallback int64) int64 {
	if id, err := strconv.ParseInt(groupID, 10, 64); err == nil {
		return id
	}
	return fallback
}
