// Package chat talks to the generative model. It converts assembled turns into
// a provider request and classifies the provider's answer into reply segments.
package chat

import (
	"context"
	"strings"

	"github.com/omnirelay/omni/internal/conversation"
)

// Provider generates one reply for an assembled conversation.
type Provider interface {
	Generate(ctx context.Context, req Request) (Reply, error)
}

// Request is the internal request structure.
type Request struct {
	Contents     []conversation.Turn
	Temperature  *float32 // optional; provider default when nil
	SystemPrompt string
}

// SegmentKind classifies one piece of a reply.
type SegmentKind string

const (
	SegmentText  SegmentKind = "text"
	SegmentImage SegmentKind = "image"
	SegmentFile  SegmentKind = "file"
)

// Segment is one ordered piece of a model reply.
type Segment struct {
	Kind SegmentKind
	Text string
	Data []byte
	Mime string
}

// Reply is the ordered list of segments the model returned.
type Reply struct {
	Segments []Segment
	Model    string
}

// IsEmpty reports whether the reply has nothing to show.
func (r Reply) IsEmpty() bool {
	for _, seg := range r.Segments {
		switch seg.Kind {
		case SegmentText:
			if strings.TrimSpace(seg.Text) != "" {
				return false
			}
		default:
			if len(seg.Data) > 0 {
				return false
			}
		}
	}
	return true
}

// attachmentOmitted stands in for reply payloads the history cannot hold.
const attachmentOmitted = "[attachment omitted]"

// Turn converts the reply into a model turn for the session history. Images
// and audio are kept as media parts; other files become a placeholder.
func (r Reply) Turn() conversation.Turn {
	parts := make([]conversation.Part, 0, len(r.Segments))
	for _, seg := range r.Segments {
		switch seg.Kind {
		case SegmentText:
			if strings.TrimSpace(seg.Text) != "" {
				parts = append(parts, conversation.TextPart(seg.Text))
			}
		case SegmentImage:
			if len(seg.Data) > 0 {
				parts = append(parts, conversation.MediaPart(conversation.MediaImage, seg.Data, seg.Mime))
			}
		case SegmentFile:
			if strings.HasPrefix(seg.Mime, "audio/") && len(seg.Data) > 0 {
				parts = append(parts, conversation.MediaPart(conversation.MediaAudio, seg.Data, seg.Mime))
				continue
			}
			parts = append(parts, conversation.TextPart(attachmentOmitted))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, conversation.TextPart(attachmentOmitted))
	}
	return conversation.Turn{Role: conversation.RoleModel, Parts: parts}
}
