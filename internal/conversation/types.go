// Package conversation defines the per-chat turn history, its in-memory store,
// and the rules for assembling a history into a model request.
package conversation

import (
	"strings"
	"time"
)

// Role tags which side of the exchange produced a turn.
type Role string

// Turn role constants.
const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// PartKind discriminates the Part union.
type PartKind string

// Part kind constants.
const (
	PartText  PartKind = "text"
	PartMedia PartKind = "media"
)

// MediaKind classifies a media part.
type MediaKind string

// Media kind constants.
const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
)

// Part is one atomic content unit within a turn: either text or a media payload.
type Part struct {
	Kind      PartKind
	Text      string
	MediaKind MediaKind
	Data      []byte
	Mime      string
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

// MediaPart builds a media part.
func MediaPart(kind MediaKind, data []byte, mime string) Part {
	return Part{Kind: PartMedia, MediaKind: kind, Data: data, Mime: strings.TrimSpace(mime)}
}

// IsMedia reports whether the part carries a media payload.
func (p Part) IsMedia() bool {
	return p.Kind == PartMedia
}

// Valid reports whether the part satisfies its kind's invariants.
// Text parts must be non-blank; media parts need a payload and a mime type.
func (p Part) Valid() bool {
	switch p.Kind {
	case PartText:
		return strings.TrimSpace(p.Text) != ""
	case PartMedia:
		if len(p.Data) == 0 || p.Mime == "" {
			return false
		}
		return p.MediaKind == MediaImage || p.MediaKind == MediaAudio
	default:
		return false
	}
}

// Turn is one role-tagged exchange unit. Turns are treated as immutable once
// appended to a session.
type Turn struct {
	ID        string
	Role      Role
	Parts     []Part
	CreatedAt time.Time
}

// MediaCount returns the number of media parts in the turn.
func (t Turn) MediaCount() int {
	n := 0
	for _, p := range t.Parts {
		if p.IsMedia() {
			n++
		}
	}
	return n
}

// Text joins the turn's text parts with newlines.
func (t Turn) Text() string {
	texts := make([]string, 0, len(t.Parts))
	for _, p := range t.Parts {
		if p.Kind == PartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func (t Turn) clone() Turn {
	out := t
	out.Parts = append([]Part(nil), t.Parts...)
	return out
}

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	ID          string
	ChatID      string
	CreatedAt   time.Time
	Turns       []Turn
	Temperature *float32
}

// Stats summarizes the store for health reporting.
type Stats struct {
	Sessions int `json:"sessions"`
	Turns    int `json:"turns"`
}
