package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vi13x/wagerbot/internal/domain"
)

// UnknownName is shown for participants Telegram no longer knows about.
const UnknownName = "Unknown"

type memberLookup interface {
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Directory resolves participants to names as they appear in one chat.
type Directory struct {
	api    memberLookup
	chatID int64
}

func NewDirectory(api memberLookup, chatID int64) *Directory {
	return &Directory{api: api, chatID: chatID}
}

// DisplayName returns UnknownName when Telegram rejects the user as not a
// member of the chat. Transport failures are returned to the caller.
func (d *Directory) DisplayName(ctx context.Context, id domain.ParticipantID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	userID, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return UnknownName, nil
	}
	member, err := d.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: d.chatID, UserID: userID},
	})
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest {
			return UnknownName, nil
		}
		return "", fmt.Errorf("get chat member %d: %w", userID, err)
	}
	if member.User == nil {
		return UnknownName, nil
	}
	return member.User.String(), nil
}
