package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Middleware wraps an InboundHandler to add cross-cutting behavior.
type Middleware func(next InboundHandler) InboundHandler

// ConnectionStatus describes runtime status for the channel connection.
type ConnectionStatus struct {
	ChannelType ChannelType `json:"channel_type"`
	Running     bool        `json:"running"`
	LastError   string      `json:"last_error,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Platform is a channel adapter that can both receive and send.
type Platform interface {
	Adapter
	Receiver
	Sender
}

// Manager owns the platform connection lifecycle and routes inbound events to
// the processor through the middleware chain.
type Manager struct {
	platform          Platform
	processor         InboundHandler
	reconnectInterval time.Duration
	logger            *slog.Logger
	middlewares       []Middleware

	mu     sync.Mutex
	conn   Connection
	status ConnectionStatus
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a Manager for one platform and inbound processor.
func NewManager(log *slog.Logger, platform Platform, processor InboundHandler) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		platform:          platform,
		processor:         processor,
		reconnectInterval: 30 * time.Second,
		logger:            log.With(slog.String("component", "channel")),
	}
	if platform != nil {
		m.status.ChannelType = platform.Type()
	}
	return m
}

// Use appends middleware to the inbound processing chain.
func (m *Manager) Use(mw ...Middleware) {
	m.middlewares = append(m.middlewares, mw...)
}

func (m *Manager) handler() InboundHandler {
	handler := m.processor
	for i := len(m.middlewares) - 1; i >= 0; i-- {
		handler = m.middlewares[i](handler)
	}
	return handler
}

// Start connects the platform in the background, retrying until the connection
// is up or ctx is done.
func (m *Manager) Start(ctx context.Context) {
	if m.platform == nil || m.processor == nil {
		if m.logger != nil {
			m.logger.Warn("manager start skipped: platform or processor missing")
		}
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()
	if m.logger != nil {
		m.logger.Info("manager start", slog.String("channel", m.platform.Type().String()))
	}
	go func() {
		defer close(done)
		for {
			err := m.connect(runCtx)
			if err == nil {
				return
			}
			if m.logger != nil {
				m.logger.Error("adapter start failed",
					slog.String("channel", m.platform.Type().String()),
					slog.Duration("retry_in", m.reconnectInterval),
					slog.Any("error", err),
				)
			}
			select {
			case <-runCtx.Done():
				return
			case <-time.After(m.reconnectInterval):
			}
		}
	}()
}

func (m *Manager) connect(ctx context.Context) error {
	conn, err := m.platform.Connect(ctx, m.handler())
	if err != nil {
		m.setStatus(false, err)
		return err
	}
	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	m.setStatus(true, nil)
	if m.logger != nil {
		m.logger.Info("adapter start", slog.String("channel", m.platform.Type().String()))
	}
	return nil
}

// Send delivers a render unit through the platform.
func (m *Manager) Send(ctx context.Context, chatID string, unit RenderUnit) error {
	if m.platform == nil {
		return fmt.Errorf("channel manager not configured")
	}
	if err := m.platform.Send(ctx, chatID, unit); err != nil {
		if m.logger != nil {
			m.logger.Error("send outbound failed",
				slog.String("channel", m.platform.Type().String()),
				slog.String("chat_id", chatID),
				slog.String("kind", string(unit.Kind)),
				slog.Any("error", err),
			)
		}
		return err
	}
	return nil
}

// StartTyping forwards to the platform when it supports typing indicators.
func (m *Manager) StartTyping(ctx context.Context, chatID string) func() {
	notifier, ok := m.platform.(TypingNotifier)
	if !ok {
		return func() {}
	}
	return notifier.StartTyping(ctx, chatID)
}

// Shutdown stops the connection and waits for the connect loop to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	cancel, done, conn := m.cancel, m.done, m.conn
	m.conn = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if conn == nil {
		return nil
	}
	if m.logger != nil {
		m.logger.Info("adapter stop", slog.String("channel", conn.ChannelType().String()))
	}
	err := conn.Stop(ctx)
	m.setStatus(false, nil)
	if err != nil && !errors.Is(err, ErrStopNotSupported) {
		return err
	}
	return nil
}

// ConnectionStatuses returns the observed connection status.
func (m *Manager) ConnectionStatuses() []ConnectionStatus {
	if m.platform == nil {
		return []ConnectionStatus{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	status := m.status
	if m.conn != nil {
		status.Running = m.conn.Running()
	}
	return []ConnectionStatus{status}
}

func (m *Manager) setStatus(running bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Running = running
	m.status.LastError = ""
	if err != nil {
		m.status.LastError = err.Error()
	}
	m.status.UpdatedAt = time.Now().UTC()
}

// RecoverMiddleware turns a panicking handler into a logged error so one bad
// event never takes the process down.
func RecoverMiddleware(log *slog.Logger) Middleware {
	if log == nil {
		log = slog.Default()
	}
	return func(next InboundHandler) InboundHandler {
		return func(ctx context.Context, event InboundEvent) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("inbound handler panic",
						slog.String("chat_id", event.ChatID()),
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)
					err = fmt.Errorf("inbound handler panic: %v", r)
				}
			}()
			return next(ctx, event)
		}
	}
}
