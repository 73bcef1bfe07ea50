package telegram

import (
	"fmt"
	"log/slog"
	"strings"
)

// slogBotLogger routes the bot library's internal logging into slog.
type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...interface{}) {
	if l.log == nil {
		return
	}
	l.log.Debug(strings.TrimSpace(fmt.Sprintln(v...)), slog.String("source", "tgbotapi"))
}

func (l *slogBotLogger) Printf(format string, v ...interface{}) {
	if l.log == nil {
		return
	}
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("source", "tgbotapi"))
}
