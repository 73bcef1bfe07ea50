package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/omnirelay/omni/internal/channel"
	"github.com/omnirelay/omni/internal/channel/adapters/telegram"
	"github.com/omnirelay/omni/internal/channel/inbound"
	"github.com/omnirelay/omni/internal/chat"
	"github.com/omnirelay/omni/internal/config"
	"github.com/omnirelay/omni/internal/conversation"
	"github.com/omnirelay/omni/internal/handlers"
	channelchecker "github.com/omnirelay/omni/internal/healthcheck/checkers/channel"
	sessionchecker "github.com/omnirelay/omni/internal/healthcheck/checkers/sessions"
	"github.com/omnirelay/omni/internal/logger"
	"github.com/omnirelay/omni/internal/media"
	"github.com/omnirelay/omni/internal/render"
	"github.com/omnirelay/omni/internal/server"
	"github.com/omnirelay/omni/internal/version"
)

func runServe(cfgPath string) error {
	app := fx.New(
		fx.Supply(configSource(cfgPath)),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideStore,
			provideAssembler,
			provideTelegramAdapter,
			provideNormalizer,
			provideProvider,
			provideRenderer,
			provideDispatcher,
			provideChannelManager,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideHealthHandler),
			provideServer,
		),
		fx.Invoke(
			startChannelManager,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

type configSource string

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig(src configSource) (config.Config, error) {
	cfgPath := string(src)
	if cfgPath == "" {
		cfgPath = os.Getenv(config.EnvConfigPath)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideStore(lc fx.Lifecycle, log *slog.Logger) *conversation.Store {
	store := conversation.NewStore(log)
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { store.Close(); return nil }})
	return store
}

func provideAssembler(cfg config.Config) *conversation.Assembler {
	return conversation.NewAssembler(conversation.AssemblerOptions{
		MaxMediaParts:   cfg.Conversation.MaxMediaParts,
		Policy:          conversation.MediaPolicy(cfg.Conversation.MediaPolicy),
		MaxHistoryTurns: cfg.Conversation.MaxHistoryTurns,
	})
}

func provideTelegramAdapter(log *slog.Logger, cfg config.Config) (*telegram.Adapter, error) {
	return telegram.NewAdapter(log, telegram.Config{
		BotToken:         cfg.Telegram.BotToken,
		PollTimeout:      cfg.Telegram.PollTimeout,
		MediaGroupSettle: cfg.Telegram.MediaGroupSettle,
		DownloadTimeout:  cfg.Media.DownloadTimeout,
		MaxDownloadBytes: cfg.Media.MaxBytes,
		TypingInterval:   cfg.Telegram.TypingInterval,
	})
}

func provideNormalizer(log *slog.Logger, cfg config.Config, adapter *telegram.Adapter) *media.Normalizer {
	return media.NewNormalizer(log, adapter, media.NormalizerOptions{
		MaxBytes:    cfg.Media.MaxBytes,
		Concurrency: cfg.Media.DownloadConcurrency,
	})
}

func provideProvider(log *slog.Logger, cfg config.Config) (chat.Provider, error) {
	return chat.NewGoogleProvider(context.Background(), log, chat.GoogleOptions{
		APIKey:            cfg.Gemini.APIKey,
		Model:             cfg.Gemini.Model,
		BaseURL:           cfg.Gemini.BaseURL,
		Timeout:           cfg.Gemini.Timeout,
		SystemInstruction: cfg.Gemini.SystemInstruction,
	})
}

func provideRenderer(log *slog.Logger) *render.Renderer {
	return render.NewRenderer(log, render.TelegramTextLimit)
}

func provideDispatcher(log *slog.Logger, cfg config.Config, store *conversation.Store, normalizer *media.Normalizer, assembler *conversation.Assembler, provider chat.Provider, renderer *render.Renderer) *inbound.Dispatcher {
	return inbound.NewDispatcher(log, inbound.Dependencies{
		Store:      store,
		Normalizer: normalizer,
		Assembler:  assembler,
		Provider:   provider,
		Renderer:   renderer,
	}, inbound.Options{
		SystemPrompt:       cfg.Gemini.SystemPrompt,
		DefaultTemperature: cfg.Gemini.DefaultTemperature,
		GroupSenderPrefix:  cfg.Telegram.GroupSenderPrefix,
	})
}

func provideChannelManager(log *slog.Logger, adapter *telegram.Adapter, dispatcher *inbound.Dispatcher) *channel.Manager {
	manager := channel.NewManager(log, adapter, dispatcher.HandleInbound)
	manager.Use(channel.RecoverMiddleware(log))
	dispatcher.SetOutbound(manager)
	return manager
}

func provideHealthHandler(log *slog.Logger, manager *channel.Manager, store *conversation.Store) *handlers.HealthHandler {
	return handlers.NewHealthHandler(log,
		channelchecker.NewChecker(log, manager),
		sessionchecker.NewChecker(log, store, 0),
	)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func startChannelManager(lc fx.Lifecycle, channelManager *channel.Manager) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { channelManager.Start(ctx); return nil },
		OnStop:  func(stopCtx context.Context) error { cancel(); return channelManager.Shutdown(stopCtx) },
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting omni", slog.String("version", version.GetInfo()), slog.String("addr", srv.Addr()))
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
