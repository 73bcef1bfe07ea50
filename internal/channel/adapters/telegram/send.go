package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/omnirelay/omni/internal/channel"
)

const (
	telegramMaxMessageLength = 4096
	maxRetryAfter            = 30 * time.Second
)

// Send delivers one render unit. Formatted text that Telegram refuses to
// parse is re-sent as plain text; a photo Telegram refuses is re-sent as a
// document.
func (a *Adapter) Send(ctx context.Context, chatID string, unit channel.RenderUnit) error {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id must be numeric: %q", chatID)
	}
	bot, err := a.getOrCreateBot()
	if err != nil {
		return err
	}
	switch unit.Kind {
	case channel.RenderText:
		return a.sendText(ctx, bot, id, unit)
	case channel.RenderImage:
		if len(unit.Data) == 0 {
			return fmt.Errorf("image unit has no data")
		}
		photo := tgbotapi.NewPhoto(id, tgbotapi.FileBytes{Name: unit.Name, Bytes: unit.Data})
		err := a.send(ctx, bot, photo)
		if err == nil || !isTelegramBadRequest(err) {
			return err
		}
		if a.logger != nil {
			a.logger.Warn("send photo rejected, retrying as document", slog.String("chat_id", chatID), slog.Any("error", err))
		}
		return a.send(ctx, bot, tgbotapi.NewDocument(id, tgbotapi.FileBytes{Name: unit.Name, Bytes: unit.Data}))
	case channel.RenderFile:
		if len(unit.Data) == 0 {
			return fmt.Errorf("file unit has no data")
		}
		return a.send(ctx, bot, tgbotapi.NewDocument(id, tgbotapi.FileBytes{Name: unit.Name, Bytes: unit.Data}))
	default:
		return fmt.Errorf("unsupported render unit: %s", unit.Kind)
	}
}

func (a *Adapter) sendText(ctx context.Context, bot botClient, chatID int64, unit channel.RenderUnit) error {
	if unit.HasMarkup() {
		message := tgbotapi.NewMessage(chatID, truncateTelegramText(sanitizeTelegramText(unit.Markup)))
		message.ParseMode = tgbotapi.ModeHTML
		err := a.send(ctx, bot, message)
		if err == nil || !isTelegramBadRequest(err) {
			return err
		}
		if a.logger != nil {
			a.logger.Warn("formatted send rejected, retrying as plain text",
				slog.Int64("chat_id", chatID),
				slog.Any("error", err),
			)
		}
	}
	text := truncateTelegramText(sanitizeTelegramText(unit.Text))
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("message is required")
	}
	return a.send(ctx, bot, tgbotapi.NewMessage(chatID, text))
}

// send performs one request, waiting out a single 429 when Telegram says how long.
func (a *Adapter) send(ctx context.Context, bot botClient, c tgbotapi.Chattable) error {
	_, err := bot.Send(c)
	if err == nil || !isTelegramTooManyRequests(err) {
		return err
	}
	wait := getTelegramRetryAfter(err)
	if wait <= 0 || wait > maxRetryAfter {
		return err
	}
	if a.logger != nil {
		a.logger.Warn("telegram rate limited, retrying", slog.Duration("retry_after", wait))
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	_, err = bot.Send(c)
	return err
}

// asTelegramError extracts the API error; the library returns it by pointer.
func asTelegramError(err error) (tgbotapi.Error, bool) {
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	var value tgbotapi.Error
	if errors.As(err, &value) {
		return value, true
	}
	return tgbotapi.Error{}, false
}

func isTelegramBadRequest(err error) bool {
	apiErr, ok := asTelegramError(err)
	return ok && apiErr.Code == 400
}

func isTelegramTooManyRequests(err error) bool {
	apiErr, ok := asTelegramError(err)
	return ok && apiErr.Code == 429
}

func getTelegramRetryAfter(err error) time.Duration {
	apiErr, ok := asTelegramError(err)
	if ok && apiErr.RetryAfter > 0 {
		return time.Duration(apiErr.RetryAfter) * time.Second
	}
	return 0
}

// sanitizeTelegramText ensures text is valid UTF-8 for the Telegram API.
func sanitizeTelegramText(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// truncateTelegramText truncates text to telegramMaxMessageLength UTF-16
// code units, appending "..." when truncation occurs. Render units are
// already split below the limit; this only guards against a miscounted unit.
func truncateTelegramText(text string) string {
	if channel.TextLength(text) <= telegramMaxMessageLength {
		return text
	}
	const suffix = "..."
	budget := telegramMaxMessageLength - len(suffix)
	units := 0
	for i, r := range text {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units+n > budget {
			return text[:i] + suffix
		}
		units += n
	}
	return text
}
