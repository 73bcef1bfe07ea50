package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/omnirelay/omni/internal/media"
)

// Config holds the Telegram adapter settings.
type Config struct {
	BotToken string
	// PollTimeout is the long-poll timeout in seconds.
	PollTimeout      int
	MediaGroupSettle time.Duration
	DownloadTimeout  time.Duration
	// MaxDownloadBytes caps one attachment download.
	MaxDownloadBytes int64
	TypingInterval   time.Duration
}

const (
	defaultPollTimeout      = 30
	defaultMediaGroupSettle = time.Second
	defaultDownloadTimeout  = 60 * time.Second
	defaultTypingInterval   = 4 * time.Second
)

func (c Config) normalized() (Config, error) {
	c.BotToken = strings.TrimSpace(c.BotToken)
	if c.BotToken == "" {
		return Config{}, fmt.Errorf("telegram bot token is required")
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = defaultPollTimeout
	}
	if c.MediaGroupSettle <= 0 {
		c.MediaGroupSettle = defaultMediaGroupSettle
	}
	if c.DownloadTimeout <= 0 {
		c.DownloadTimeout = defaultDownloadTimeout
	}
	if c.MaxDownloadBytes <= 0 {
		c.MaxDownloadBytes = media.MaxAssetBytes
	}
	if c.TypingInterval <= 0 {
		c.TypingInterval = defaultTypingInterval
	}
	return c, nil
}
