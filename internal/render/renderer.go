// Package render turns a model reply into ordered platform send units.
package render

import (
	"log/slog"
	"strings"

	"github.com/omnirelay/omni/internal/channel"
	"github.com/omnirelay/omni/internal/chat"
	"github.com/omnirelay/omni/internal/media"
)

// TelegramTextLimit is the maximum length of one Telegram text message, in
// UTF-16 code units.
const TelegramTextLimit = 4096

// minMarkupBudget stops re-splitting; below it a chunk is sent as plain text.
const minMarkupBudget = 256

// Renderer converts replies into render units.
type Renderer struct {
	limit  int
	markup func(string) (string, error)
	logger *slog.Logger
}

// NewRenderer creates a Renderer for a platform text limit.
func NewRenderer(log *slog.Logger, limit int) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	if limit <= 0 {
		limit = TelegramTextLimit
	}
	return &Renderer{
		limit:  limit,
		markup: ToTelegramHTML,
		logger: log.With(slog.String("component", "render")),
	}
}

// Render merges adjacent text, splits long text at natural boundaries, and
// emits one unit per image or file, preserving the reply's order.
func (r *Renderer) Render(reply chat.Reply) []channel.RenderUnit {
	units := make([]channel.RenderUnit, 0, len(reply.Segments))
	var pending strings.Builder
	flush := func() {
		if pending.Len() == 0 {
			return
		}
		units = append(units, r.textUnits(pending.String(), r.limit)...)
		pending.Reset()
	}
	for _, seg := range reply.Segments {
		switch seg.Kind {
		case chat.SegmentText:
			pending.WriteString(seg.Text)
		case chat.SegmentImage:
			flush()
			if len(seg.Data) > 0 {
				units = append(units, channel.RenderUnit{
					Kind: channel.RenderImage,
					Data: seg.Data,
					Mime: seg.Mime,
					Name: fileName("image", seg.Mime),
				})
			}
		case chat.SegmentFile:
			flush()
			if len(seg.Data) > 0 {
				units = append(units, channel.RenderUnit{
					Kind: channel.RenderFile,
					Data: seg.Data,
					Mime: seg.Mime,
					Name: fileName("file", seg.Mime),
				})
			}
		}
	}
	flush()
	return units
}

func (r *Renderer) textUnits(text string, budget int) []channel.RenderUnit {
	var units []channel.RenderUnit
	for _, chunk := range channel.ChunkText(text, budget) {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		units = append(units, r.convert(chunk, budget)...)
	}
	return units
}

func (r *Renderer) convert(chunk string, budget int) []channel.RenderUnit {
	markup, err := r.markup(chunk)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("markup conversion failed, sending plain text", slog.Any("error", err))
		}
		return []channel.RenderUnit{channel.PlainText(chunk)}
	}
	if channel.TextLength(markup) <= r.limit {
		return []channel.RenderUnit{{Kind: channel.RenderText, Text: chunk, Markup: markup}}
	}
	half := budget / 2
	if half < minMarkupBudget || channel.TextLength(chunk) <= half {
		return []channel.RenderUnit{channel.PlainText(chunk)}
	}
	return r.textUnits(chunk, half)
}

func fileName(base, mime string) string {
	ext := media.ExtensionFor(mime)
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}
