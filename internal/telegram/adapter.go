// Package telegram connects the assistant to the Telegram Bot API: inbound
// text messages go to the gateway and outbound actions are sent back as
// chat actions, messages and venues.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/tirtabot/internal/gateway"
	"github.com/user/tirtabot/internal/types"
)

// ChannelName is the sender prefix served by this adapter.
const ChannelName = "telegram"

const maxTelegramMessage = 4096

const busyText = "Mohon maaf, pesan Anda belum dapat diproses. Silakan coba beberapa saat lagi."

// botAPI is the subset of *tgbotapi.BotAPI used by the adapter.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Dispatcher accepts inbound events; *gateway.Gateway implements it.
type Dispatcher interface {
	HandleInbound(ctx context.Context, event *types.InboundEvent, opts ...gateway.RunOption) error
}

var _ types.Channel = (*Adapter)(nil)

// Adapter bridges Telegram to the gateway and implements types.Channel for
// senders of the form "telegram:<chat id>".
type Adapter struct {
	bot     botAPI
	gateway Dispatcher
}

// New creates a Telegram adapter.
func New(token string, gw Dispatcher) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	slog.Info("telegram bot authorized", "username", bot.Self.UserName)
	return newAdapter(bot, gw), nil
}

func newAdapter(bot botAPI, gw Dispatcher) *Adapter {
	return &Adapter{bot: bot, gateway: gw}
}

// Start long-polls for Telegram updates until ctx is done.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Text == "" || update.Message.Chat == nil {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

// handleMessage forwards every text message, commands included. "/start"
// reaches the engine like any other first message and is answered with the
// greeting.
func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	event := &types.InboundEvent{
		Source: ChannelName,
		Sender: senderID(chatID),
		Text:   msg.Text,
	}

	if err := a.gateway.HandleInbound(ctx, event); err != nil {
		slog.Error("handle inbound error", "sender", string(event.Sender), "error", err)
		if err := a.sendText(chatID, busyText); err != nil {
			slog.Warn("busy reply not sent", "sender", string(event.Sender), "error", err)
		}
	}
}

func (a *Adapter) SetTyping(_ context.Context, sender types.SenderID, on bool) error {
	// Telegram clears the chat action on the next message.
	if !on {
		return nil
	}
	chatID, err := parseChatID(sender)
	if err != nil {
		return err
	}
	if _, err := a.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return mapError(err)
	}
	return nil
}

func (a *Adapter) SendText(_ context.Context, sender types.SenderID, text string) error {
	chatID, err := parseChatID(sender)
	if err != nil {
		return err
	}
	return a.sendText(chatID, text)
}

func (a *Adapter) SendLocation(_ context.Context, sender types.SenderID, place types.Place) error {
	chatID, err := parseChatID(sender)
	if err != nil {
		return err
	}
	venue := tgbotapi.NewVenue(chatID, place.Name, place.Address, place.Latitude, place.Longitude)
	if _, err := a.bot.Send(venue); err != nil {
		return mapError(err)
	}
	return nil
}

// sendText sends plain text; replies contain characters such as quotes and
// underscores that Markdown would reinterpret.
func (a *Adapter) sendText(chatID int64, text string) error {
	for _, part := range splitMessage(text) {
		if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			return mapError(err)
		}
	}
	return nil
}

// mapError turns the Bot API's "recipient is gone" answers into
// types.ErrChatGone.
func mapError(err error) error {
	code := 0
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		code = apiErr.Code
	}
	msg := strings.ToLower(err.Error())
	if code == http.StatusForbidden ||
		strings.HasPrefix(msg, "forbidden") ||
		strings.Contains(msg, "chat not found") ||
		strings.Contains(msg, "bot was blocked") ||
		strings.Contains(msg, "user is deactivated") {
		return fmt.Errorf("telegram: %w: %v", types.ErrChatGone, err)
	}
	return fmt.Errorf("telegram: %w", err)
}

// splitMessage cuts text into chunks of at most maxTelegramMessage
// characters, never inside a multi-byte rune.
func splitMessage(text string) []string {
	if utf8.RuneCountInString(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end, count := 0, 0
		for end < len(text) && count < maxTelegramMessage {
			_, size := utf8.DecodeRuneInString(text[end:])
			end += size
			count++
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func senderID(chatID int64) types.SenderID {
	return types.NewSenderID(ChannelName, strconv.FormatInt(chatID, 10))
}

func parseChatID(sender types.SenderID) (int64, error) {
	if sender.Channel() != ChannelName {
		return 0, fmt.Errorf("telegram: sender %s is not a telegram chat", sender)
	}
	chatID, err := strconv.ParseInt(sender.Local(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: bad chat id in %s: %w", sender, err)
	}
	return chatID, nil
}
