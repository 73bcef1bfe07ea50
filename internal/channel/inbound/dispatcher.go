// Package inbound turns classified platform events into model exchanges and
// delivers the rendered replies.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/omnirelay/omni/internal/channel"
	"github.com/omnirelay/omni/internal/chat"
	"github.com/omnirelay/omni/internal/conversation"
	"github.com/omnirelay/omni/internal/media"
)

// SessionStore is the subset of the conversation store the dispatcher uses.
type SessionStore interface {
	GetOrCreate(chatID string) conversation.Snapshot
	Append(chatID string, turns ...conversation.Turn) error
	Clear(chatID string)
	SetTemperature(chatID string, temperature float32)
}

// Normalizer converts platform attachments into turn parts.
type Normalizer interface {
	NormalizeAll(ctx context.Context, atts []channel.Attachment) ([]conversation.Part, error)
}

// Assembler builds the request contents from a history and new parts.
type Assembler interface {
	Assemble(history []conversation.Turn, newParts []conversation.Part) (conversation.Assembly, error)
}

// Renderer converts a model reply into platform units.
type Renderer interface {
	Render(reply chat.Reply) []channel.RenderUnit
}

// Outbound sends units and typing indicators to a chat.
type Outbound interface {
	Send(ctx context.Context, chatID string, unit channel.RenderUnit) error
	StartTyping(ctx context.Context, chatID string) func()
}

// Options tunes the dispatcher.
type Options struct {
	SystemPrompt       string
	DefaultTemperature float32
	// GroupSenderPrefix prefixes group messages with the sender's first name.
	GroupSenderPrefix bool
}

// Dependencies groups the dispatcher collaborators.
type Dependencies struct {
	Store      SessionStore
	Normalizer Normalizer
	Assembler  Assembler
	Provider   chat.Provider
	Renderer   Renderer
	Outbound   Outbound
}

// Dispatcher runs the inbound pipeline for every event of a chat, one event
// per chat at a time.
type Dispatcher struct {
	store      SessionStore
	normalizer Normalizer
	assembler  Assembler
	provider   chat.Provider
	renderer   Renderer
	outbound   Outbound
	opts       Options
	logger     *slog.Logger
	locks      *keyedMutex
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(log *slog.Logger, deps Dependencies, opts Options) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		store:      deps.Store,
		normalizer: deps.Normalizer,
		assembler:  deps.Assembler,
		provider:   deps.Provider,
		renderer:   deps.Renderer,
		outbound:   deps.Outbound,
		opts:       opts,
		logger:     log.With(slog.String("component", "dispatcher")),
		locks:      newKeyedMutex(),
	}
}

// SetOutbound replaces the outbound collaborator. The channel manager is
// built with the dispatcher as its processor, so it is attached afterwards.
func (d *Dispatcher) SetOutbound(out Outbound) {
	d.outbound = out
}

// HandleInbound processes one event. Failures are reported to the chat as a
// notice and leave the session untouched; the returned error is only set when
// even the notice could not be delivered.
func (d *Dispatcher) HandleInbound(ctx context.Context, event channel.InboundEvent) error {
	chatID := event.ChatID()
	if chatID == "" {
		return nil
	}
	if d.outbound == nil {
		return errors.New("dispatcher has no outbound sender")
	}
	unlock := d.locks.lock(chatID)
	defer unlock()

	if event.Kind == channel.EventCommand {
		return d.handleCommand(ctx, event)
	}

	for _, att := range event.Attachments {
		if err := media.Check(att); err != nil {
			return d.fail(ctx, chatID, stageNormalize, err)
		}
	}
	parts, err := d.normalizer.NormalizeAll(ctx, event.Attachments)
	if err != nil {
		return d.fail(ctx, chatID, stageNormalize, err)
	}
	if d.opts.GroupSenderPrefix && event.Conversation.IsGroup() {
		parts = prefixSender(parts, event.Sender)
	}

	session := d.store.GetOrCreate(chatID)
	assembly, err := d.assembler.Assemble(session.Turns, parts)
	if err != nil {
		return d.fail(ctx, chatID, stageAssemble, err)
	}
	if assembly.DroppedMedia > 0 {
		d.logger.Info("historical media dropped",
			slog.String("chat_id", chatID),
			slog.Int("dropped", assembly.DroppedMedia),
		)
	}

	temperature := d.opts.DefaultTemperature
	if session.Temperature != nil {
		temperature = *session.Temperature
	}
	stopTyping := d.outbound.StartTyping(ctx, chatID)
	reply, err := d.provider.Generate(ctx, chat.Request{
		Contents:     assembly.Contents,
		Temperature:  &temperature,
		SystemPrompt: d.opts.SystemPrompt,
	})
	stopTyping()
	if err != nil {
		return d.fail(ctx, chatID, stageGenerate, err)
	}

	if err := d.record(chatID, assembly.UserTurn, reply.Turn()); err != nil {
		d.logger.Error("record exchange failed",
			slog.String("chat_id", chatID),
			slog.String("stage", stageStore),
			slog.Any("error", err),
		)
	}
	return d.deliver(ctx, chatID, d.renderer.Render(reply))
}

// record appends the exchange. A session that disappeared since it was read
// is recreated and the exchange becomes its first.
func (d *Dispatcher) record(chatID string, user, model conversation.Turn) error {
	err := d.store.Append(chatID, user, model)
	if !errors.Is(err, conversation.ErrUnknownChat) {
		return err
	}
	d.logger.Warn("session vanished before append, recreating",
		slog.String("chat_id", chatID),
		slog.String("stage", stageStore),
	)
	d.store.GetOrCreate(chatID)
	return d.store.Append(chatID, user, model)
}

func (d *Dispatcher) deliver(ctx context.Context, chatID string, units []channel.RenderUnit) error {
	for i, unit := range units {
		err := d.outbound.Send(ctx, chatID, unit)
		if err == nil {
			continue
		}
		d.logger.Error("deliver reply failed",
			slog.String("chat_id", chatID),
			slog.String("stage", stageDeliver),
			slog.Int("unit", i),
			slog.String("kind", string(unit.Kind)),
			slog.Any("error", err),
		)
		return d.notify(ctx, chatID, noticeUndeliverable)
	}
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, chatID, stage string, err error) error {
	d.logger.Warn("inbound failed",
		slog.String("chat_id", chatID),
		slog.String("stage", stage),
		slog.Any("error", err),
	)
	return d.notify(ctx, chatID, noticeFor(stage, err))
}

func (d *Dispatcher) notify(ctx context.Context, chatID, text string) error {
	if err := d.outbound.Send(ctx, chatID, channel.PlainText(text)); err != nil {
		return fmt.Errorf("send notice: %w", err)
	}
	return nil
}

// prefixSender marks whose message a group turn is, so the model can tell
// participants apart.
func prefixSender(parts []conversation.Part, sender channel.Identity) []conversation.Part {
	name := strings.TrimSpace(sender.FirstName)
	if name == "" {
		name = strings.TrimSpace(sender.DisplayName)
	}
	if name == "" {
		return parts
	}
	out := append([]conversation.Part(nil), parts...)
	for i, part := range out {
		if part.Kind == conversation.PartText {
			out[i].Text = name + ": " + part.Text
			return out
		}
	}
	return append([]conversation.Part{conversation.TextPart(name + ":")}, out...)
}
