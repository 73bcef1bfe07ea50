package inbound

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/omnirelay/omni/internal/channel"
)

// Supported commands.
const (
	CommandStart   = "start"
	CommandClear   = "clear"
	CommandSetTemp = "settemp"
)

const (
	minTemperature = 0.0
	maxTemperature = 2.0
)

const (
	replyCleared         = "Conversation history cleared and chat reset. Temperature reset to default."
	replySetTempUsage    = "Usage: /settemp <0.0-2.0>"
	replySetTempRange    = "Temperature value must be between 0.0 and 2.0."
	replySetTempInvalid  = "Invalid temperature value. Please use a number between 0.0 and 2.0."
	replySetTempAccepted = "Temperature set to %s for this chat. It will be applied to the next message you send."
)

func (d *Dispatcher) handleCommand(ctx context.Context, event channel.InboundEvent) error {
	chatID := event.ChatID()
	var reply string
	switch event.Command {
	case CommandStart:
		d.store.GetOrCreate(chatID)
		reply = d.welcomeText()
	case CommandClear:
		d.store.Clear(chatID)
		reply = replyCleared
	case CommandSetTemp:
		reply = d.setTemperature(chatID, event.CommandArgs)
	default:
		d.logger.Debug("ignoring unknown command",
			slog.String("chat_id", chatID),
			slog.String("command", event.Command),
		)
		return nil
	}
	if err := d.outbound.Send(ctx, chatID, channel.PlainText(reply)); err != nil {
		d.logger.Warn("command reply failed",
			slog.String("chat_id", chatID),
			slog.String("stage", stageCommand),
			slog.String("command", event.Command),
			slog.Any("error", err),
		)
		return fmt.Errorf("reply to /%s: %w", event.Command, err)
	}
	return nil
}

func (d *Dispatcher) welcomeText() string {
	return "Hi! I'm Omni. Send me text, photos, stickers, voice messages or audio files and I'll reply.\n\n" +
		"Use /clear to forget our conversation and start over.\n" +
		"Use /settemp <0.0-2.0> to change how adventurous my answers are. " +
		"The default temperature is " + formatTemperature(d.opts.DefaultTemperature) + "."
}

func (d *Dispatcher) setTemperature(chatID, args string) string {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return replySetTempUsage
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return replySetTempInvalid
	}
	if math.IsNaN(value) || value < minTemperature || value > maxTemperature {
		return replySetTempRange
	}
	d.store.SetTemperature(chatID, float32(value))
	d.logger.Info("temperature updated", slog.String("chat_id", chatID), slog.Float64("temperature", value))
	return fmt.Sprintf(replySetTempAccepted, formatTemperature(float32(value)))
}

// formatTemperature renders a temperature with at least one decimal, so 1
// prints as "1.0".
func formatTemperature(value float32) string {
	text := strconv.FormatFloat(float64(value), 'f', -1, 32)
	if !strings.Contains(text, ".") {
		text += ".0"
	}
	return text
}
