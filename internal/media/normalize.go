package media

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/omnirelay/omni/internal/channel"
	"github.com/omnirelay/omni/internal/conversation"
)

// NormalizerOptions bounds attachment downloads.
type NormalizerOptions struct {
	MaxBytes    int64
	Concurrency int
}

// Normalizer turns platform attachments into conversation parts.
type Normalizer struct {
	resolver channel.AttachmentResolver
	opts     NormalizerOptions
	logger   *slog.Logger
}

// NewNormalizer creates a Normalizer fetching bytes through resolver.
func NewNormalizer(log *slog.Logger, resolver channel.AttachmentResolver, opts NormalizerOptions) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = MaxAssetBytes
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Normalizer{
		resolver: resolver,
		opts:     opts,
		logger:   log.With(slog.String("component", "media")),
	}
}

// Check validates an attachment's kind without fetching anything.
func Check(att channel.Attachment) error {
	switch att.Kind {
	case channel.AttachmentText, channel.AttachmentPhoto, channel.AttachmentSticker,
		channel.AttachmentVoice, channel.AttachmentAudioFile:
		return nil
	case channel.AttachmentUnsupported:
		return &KindError{Kind: att.Kind, Detail: att.Detail}
	default:
		return &KindError{Kind: att.Kind}
	}
}

// Normalize converts one attachment into parts. A caption becomes a text part
// placed before the media part.
func (n *Normalizer) Normalize(ctx context.Context, att channel.Attachment) ([]conversation.Part, error) {
	if err := Check(att); err != nil {
		return nil, err
	}
	if att.Kind == channel.AttachmentText {
		text := strings.TrimSpace(att.Text)
		if text == "" {
			return nil, nil
		}
		return []conversation.Part{conversation.TextPart(text)}, nil
	}
	mediaKind, _ := mediaKindFor(att.Kind)
	data, declared, err := n.fetch(ctx, att)
	if err != nil {
		return nil, err
	}
	mime, err := resolveMime(att.Kind, declared, data)
	if err != nil {
		return nil, err
	}
	parts := make([]conversation.Part, 0, 2)
	if caption := strings.TrimSpace(att.Caption); caption != "" {
		parts = append(parts, conversation.TextPart(caption))
	}
	parts = append(parts, conversation.MediaPart(mediaKind, data, mime))
	return parts, nil
}

// NormalizeAll normalizes a list of attachments (a media group) independently
// and returns the parts in the order the attachments were given. Kinds are
// checked before any download starts.
func (n *Normalizer) NormalizeAll(ctx context.Context, atts []channel.Attachment) ([]conversation.Part, error) {
	for _, att := range atts {
		if err := Check(att); err != nil {
			return nil, err
		}
	}
	results := make([][]conversation.Part, len(atts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.opts.Concurrency)
	for i, att := range atts {
		g.Go(func() error {
			parts, err := n.Normalize(gctx, att)
			if err != nil {
				return fmt.Errorf("attachment %d: %w", i, err)
			}
			results[i] = parts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]conversation.Part, 0, len(atts)+1)
	for _, parts := range results {
		out = append(out, parts...)
	}
	return out, nil
}

func (n *Normalizer) fetch(ctx context.Context, att channel.Attachment) ([]byte, string, error) {
	if n.resolver == nil {
		return nil, "", ErrResolverUnavailable
	}
	if att.Size > n.opts.MaxBytes {
		return nil, "", fmt.Errorf("%w: %d > %d bytes", ErrAssetTooLarge, att.Size, n.opts.MaxBytes)
	}
	payload, err := n.resolver.ResolveAttachment(ctx, att)
	if err != nil {
		return nil, "", fmt.Errorf("resolve %s: %w", att.Kind, err)
	}
	defer func() {
		_ = payload.Reader.Close()
	}()
	data, err := ReadAllWithLimit(payload.Reader, n.opts.MaxBytes)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", att.Kind, err)
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyPayload
	}
	declared := strings.TrimSpace(att.Mime)
	if declared == "" {
		declared = strings.TrimSpace(payload.Mime)
	}
	if n.logger != nil {
		n.logger.Debug("attachment fetched",
			slog.String("kind", string(att.Kind)),
			slog.Int("bytes", len(data)),
			slog.String("declared_mime", declared),
		)
	}
	return data, declared, nil
}
