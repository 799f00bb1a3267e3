package notify

import (
	"context"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Pusher sends a text message to a LINE user.
type Pusher interface {
	Push(ctx context.Context, lineUserID, text string) error
}

type LinePusher struct {
	bot *messaging_api.MessagingApiAPI
}

func NewLinePusher(bot *messaging_api.MessagingApiAPI) *LinePusher {
	return &LinePusher{bot: bot}
}

// Push ignores ctx: the SDK client carries a single shared context.
func (p *LinePusher) Push(_ context.Context, lineUserID, text string) error {
	_, err := p.bot.PushMessage(
		&messaging_api.PushMessageRequest{
			To:       lineUserID,
			Messages: []messaging_api.MessageInterface{&messaging_api.TextMessage{Text: text}},
		},
		"",
	)
	if err != nil {
		return fmt.Errorf("failed to push LINE message: %w", err)
	}
	return nil
}
