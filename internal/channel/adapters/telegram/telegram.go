package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/omnirelay/omni/internal/channel"
	"github.com/omnirelay/omni/internal/media"
)

// Type is the Telegram channel type.
const Type channel.ChannelType = "telegram"

// botClient is the subset of *tgbotapi.BotAPI the adapter uses.
type botClient interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Adapter implements channel.Receiver, channel.Sender,
// channel.AttachmentResolver and channel.TypingNotifier for Telegram.
type Adapter struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client
	newBot     func(token string) (botClient, string, error)

	mu          sync.RWMutex
	bot         botClient
	botUsername string
}

// NewAdapter creates a Telegram Adapter.
func NewAdapter(log *slog.Logger, cfg Config) (*Adapter, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	adapter := &Adapter{
		cfg:        cfg,
		logger:     log.With(slog.String("adapter", "telegram")),
		httpClient: &http.Client{Timeout: cfg.DownloadTimeout},
		newBot:     newTelegramBot,
	}
	_ = tgbotapi.SetLogger(&slogBotLogger{log: adapter.logger})
	return adapter, nil
}

func newTelegramBot(token string) (botClient, string, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, "", err
	}
	return bot, bot.Self.UserName, nil
}

func (a *Adapter) getOrCreateBot() (botClient, error) {
	a.mu.RLock()
	bot := a.bot
	a.mu.RUnlock()
	if bot != nil {
		return bot, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bot != nil {
		return a.bot, nil
	}
	bot, username, err := a.newBot(a.cfg.BotToken)
	if err != nil {
		if a.logger != nil {
			a.logger.Error("create bot failed", slog.Any("error", err))
		}
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	a.bot = bot
	a.botUsername = username
	return bot, nil
}

// Type returns the Telegram channel type.
func (a *Adapter) Type() channel.ChannelType {
	return Type
}

// Connect starts long-polling for updates. Each classified event is handed to
// handler on its own goroutine; album items are buffered and delivered as one
// media_group event.
func (a *Adapter) Connect(ctx context.Context, handler channel.InboundHandler) (channel.Connection, error) {
	bot, err := a.getOrCreateBot()
	if err != nil {
		return nil, err
	}
	a.mu.RLock()
	botUsername := a.botUsername
	a.mu.RUnlock()
	if a.logger != nil {
		a.logger.Info("start", slog.String("bot", botUsername))
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = a.cfg.PollTimeout
	updates := bot.GetUpdatesChan(updateConfig)
	connCtx, cancel := context.WithCancel(ctx)

	dispatch := func(event channel.InboundEvent) {
		go func() {
			if err := handler(connCtx, event); err != nil && a.logger != nil {
				a.logger.Error("handle inbound failed",
					slog.String("chat_id", event.ChatID()),
					slog.String("message_id", event.MessageID),
					slog.Any("error", err),
				)
			}
		}()
	}
	groups := newMediaGroupBuffer(a.cfg.MediaGroupSettle, dispatch)

	go func() {
		for {
			select {
			case <-connCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					if a.logger != nil {
						a.logger.Info("updates channel closed")
					}
					return
				}
				event, ok := buildInboundEvent(update.Message, botUsername)
				if !ok {
					continue
				}
				if a.logger != nil {
					a.logger.Info("inbound received",
						slog.String("chat_type", event.Conversation.Type),
						slog.String("chat_id", event.ChatID()),
						slog.String("user_id", event.Sender.SubjectID),
						slog.String("kind", string(event.Kind)),
						slog.Int("attachments", len(event.Attachments)),
					)
				}
				if event.MediaGroupID != "" && event.Kind == channel.EventMessage {
					groups.add(event)
					continue
				}
				dispatch(event)
			}
		}
	}()

	stop := func(stopCtx context.Context) error {
		if a.logger != nil {
			a.logger.Info("stop")
		}
		groups.stop()
		bot.StopReceivingUpdates()
		cancel()
		// Drain so the library's polling goroutine can exit; otherwise the
		// in-flight getUpdates keeps the old session alive and a reconnect
		// with the same token gets a Conflict.
		return drainUpdates(stopCtx, updates)
	}
	return channel.NewConnection(Type, stop), nil
}

// drainUpdates discards updates until the channel closes or ctx ends.
func drainUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ResolveAttachment downloads a Telegram file by its file id.
func (a *Adapter) ResolveAttachment(ctx context.Context, attachment channel.Attachment) (channel.AttachmentPayload, error) {
	fileID := strings.TrimSpace(attachment.PlatformKey)
	if fileID == "" {
		return channel.AttachmentPayload{}, fmt.Errorf("telegram attachment requires a file id")
	}
	bot, err := a.getOrCreateBot()
	if err != nil {
		return channel.AttachmentPayload{}, err
	}
	downloadURL, err := bot.GetFileDirectURL(fileID)
	if err != nil {
		return channel.AttachmentPayload{}, fmt.Errorf("resolve telegram file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return channel.AttachmentPayload{}, fmt.Errorf("build download request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return channel.AttachmentPayload{}, fmt.Errorf("download attachment: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() {
			_ = resp.Body.Close()
		}()
		_, _ = io.Copy(io.Discard, resp.Body)
		return channel.AttachmentPayload{}, fmt.Errorf("download attachment status: %d", resp.StatusCode)
	}
	maxBytes := a.cfg.MaxDownloadBytes
	if resp.ContentLength > maxBytes {
		defer func() {
			_ = resp.Body.Close()
		}()
		_, _ = io.Copy(io.Discard, resp.Body)
		return channel.AttachmentPayload{}, fmt.Errorf("%w: max %d bytes", media.ErrAssetTooLarge, maxBytes)
	}
	mime := strings.TrimSpace(attachment.Mime)
	if mime == "" {
		mime = strings.TrimSpace(resp.Header.Get("Content-Type"))
		if idx := strings.Index(mime, ";"); idx >= 0 {
			mime = strings.TrimSpace(mime[:idx])
		}
	}
	size := attachment.Size
	if size <= 0 && resp.ContentLength > 0 {
		size = resp.ContentLength
	}
	return channel.AttachmentPayload{
		Reader: resp.Body,
		Mime:   mime,
		Name:   strings.TrimSpace(attachment.Name),
		Size:   size,
	}, nil
}

// StartTyping sends a typing action now and every TypingInterval until stop
// is called or ctx ends.
func (a *Adapter) StartTyping(ctx context.Context, chatID string) func() {
	if ctx == nil {
		ctx = context.Background()
	}
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil || id == 0 {
		return func() {}
	}
	bot, err := a.getOrCreateBot()
	if err != nil {
		return func() {}
	}
	ticker := time.NewTicker(a.cfg.TypingInterval)
	done := make(chan struct{})
	send := func() {
		if _, err := bot.Request(tgbotapi.NewChatAction(id, tgbotapi.ChatTyping)); err != nil && a.logger != nil {
			a.logger.Warn("send typing action failed", slog.String("chat_id", chatID), slog.Any("error", err))
		}
	}
	go func() {
		send()
		for {
			select {
			case <-ticker.C:
				send()
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			ticker.Stop()
		})
	}
}
