package bot

import (
	"context"
	"html"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vi13x/wagerbot/internal/command"
	"github.com/vi13x/wagerbot/internal/domain"
)

// API is the slice of tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	StopReceivingUpdates()
}

type Bot struct {
	api        API
	dispatcher *command.Dispatcher
	log        *slog.Logger
}

func New(api API, dispatcher *command.Dispatcher, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{api: api, dispatcher: dispatcher, log: logger}
}

// Start long-polls for updates until ctx is cancelled. Updates are handled
// one at a time in arrival order.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	name, args, ok := command.Parse(msg.Text, b.dispatcher.Prefix())
	if !ok {
		return
	}
	req := command.Request{
		Actor:     ParticipantID(msg.From.ID),
		Command:   name,
		Args:      args,
		Directory: NewDirectory(b.api, msg.Chat.ID),
	}
	reply := b.dispatcher.Handle(ctx, req)
	b.log.Debug("command handled", "command", req.Command, "actor", req.Actor, "chat_id", msg.Chat.ID)

	response := tgbotapi.NewMessage(msg.Chat.ID, render(reply))
	response.ParseMode = tgbotapi.ModeHTML
	response.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(response); err != nil {
		b.log.Error("send reply failed", "chat_id", msg.Chat.ID, "error", err)
	}
}

func ParticipantID(userID int64) domain.ParticipantID {
	return domain.ParticipantID(strconv.FormatInt(userID, 10))
}

// render escapes the reply for HTML mode and keeps tables monospaced.
func render(r command.Reply) string {
	text := ""
	for i, line := range r.Lines {
		if i > 0 {
			text += "\n"
		}
		text += html.EscapeString(line)
	}
	if r.Table != "" {
		text += "\n<pre>" + html.EscapeString(r.Table) + "</pre>"
	}
	return text
}
