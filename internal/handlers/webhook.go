package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/ytakahashi/taskflow/internal/logger"
	"github.com/ytakahashi/taskflow/internal/models"
	"github.com/ytakahashi/taskflow/internal/notify"
)

const helpText = `⏰ TaskFlow reminders on LINE

🔗 Link your account:
・link <email>
・e.g. link alice@example.com

✂️ Stop reminders here:
・unlink

❓ Show this message:
・help`

var (
	linkPattern   = regexp.MustCompile(`(?i)^link[\s　]+(\S+)$`)
	unlinkPattern = regexp.MustCompile(`(?i)^unlink$`)
	helpPattern   = regexp.MustCompile(`(?i)^(help|ヘルプ)$`)
)

// Replier is the part of the LINE messaging API the webhook uses.
type Replier interface {
	ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
}

type WebhookHandler struct {
	bot    Replier
	links  *notify.Links
	secret string
}

func NewWebhookHandler(bot Replier, links *notify.Links, channelSecret string) *WebhookHandler {
	return &WebhookHandler{
		bot:    bot,
		links:  links,
		secret: channelSecret,
	}
}

func getUserID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	default:
		return ""
	}
}

func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	cb, err := webhook.ParseRequest(h.secret, c.Request())
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			logger.Warn("invalid LINE signature")
			return c.NoContent(http.StatusBadRequest)
		}
		logger.Error("parse request error", "error", err)
		return c.NoContent(http.StatusInternalServerError)
	}

	ctx := c.Request().Context()
	for _, event := range cb.Events {
		e, ok := event.(webhook.MessageEvent)
		if !ok {
			continue
		}
		message, ok := e.Message.(webhook.TextMessageContent)
		if !ok {
			continue
		}
		userID := getUserID(e.Source)
		if userID == "" {
			continue
		}
		if err := h.handleTextMessage(ctx, e.ReplyToken, userID, message.Text); err != nil {
			logger.Error("error handling text message", "user", userID, "error", err)
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) handleTextMessage(ctx context.Context, replyToken, userID, text string) error {
	text = strings.TrimSpace(text)

	if m := linkPattern.FindStringSubmatch(text); m != nil {
		return h.link(ctx, replyToken, userID, m[1])
	}
	if unlinkPattern.MatchString(text) {
		return h.unlink(ctx, replyToken, userID)
	}
	if helpPattern.MatchString(text) {
		return h.replyMessage(replyToken, helpText)
	}

	// unrecognised messages get no reply
	return nil
}

func (h *WebhookHandler) link(ctx context.Context, replyToken, userID, email string) error {
	err := h.links.Link(ctx, email, userID)
	if errors.Is(err, models.ErrValidation) {
		return h.replyMessage(replyToken, models.UserMessage(err)+"\ne.g. link alice@example.com")
	}
	if err != nil {
		logger.Error("failed to link LINE user", "user", userID, "error", err)
		return h.replyMessage(replyToken, "Could not link your account. Please try again later.")
	}
	logger.Info("LINE user linked", "user", userID, "email", models.NormalizeEmail(email))
	return h.replyMessage(replyToken, fmt.Sprintf("✅ Linked %s. Task reminders will also arrive here.", models.NormalizeEmail(email)))
}

func (h *WebhookHandler) unlink(ctx context.Context, replyToken, userID string) error {
	n, err := h.links.Unlink(ctx, userID)
	if err != nil {
		logger.Error("failed to unlink LINE user", "user", userID, "error", err)
		return h.replyMessage(replyToken, "Could not unlink your account. Please try again later.")
	}
	if n == 0 {
		return h.replyMessage(replyToken, "No linked accounts.")
	}
	return h.replyMessage(replyToken, fmt.Sprintf("🗑️ Unlinked %d account(s).", n))
}

func (h *WebhookHandler) replyMessage(replyToken, text string) error {
	_, err := h.bot.ReplyMessage(
		&messaging_api.ReplyMessageRequest{
			ReplyToken: replyToken,
			Messages:   []messaging_api.MessageInterface{&messaging_api.TextMessage{Text: text}},
		},
	)
	if err != nil {
		logger.Error("failed to send reply message", "error", err)
	}
	return err
}
