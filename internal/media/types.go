package media

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/omnirelay/omni/internal/channel"
	"github.com/omnirelay/omni/internal/conversation"
)

// Default mime types used when neither the platform nor the payload says otherwise.
const (
	DefaultImageMime = "image/jpeg"
	DefaultVoiceMime = "audio/ogg"
	DefaultAudioMime = "audio/mpeg"
	octetStream      = "application/octet-stream"
)

// mediaKindFor maps a supported attachment kind to the media kind it becomes.
func mediaKindFor(kind channel.AttachmentKind) (conversation.MediaKind, bool) {
	switch kind {
	case channel.AttachmentPhoto, channel.AttachmentSticker:
		return conversation.MediaImage, true
	case channel.AttachmentVoice, channel.AttachmentAudioFile:
		return conversation.MediaAudio, true
	case channel.AttachmentText, channel.AttachmentUnsupported:
		return "", false
	default:
		return "", false
	}
}

func defaultMime(kind channel.AttachmentKind) string {
	switch kind {
	case channel.AttachmentPhoto:
		return DefaultImageMime
	case channel.AttachmentVoice:
		return DefaultVoiceMime
	case channel.AttachmentAudioFile:
		return DefaultAudioMime
	default:
		return ""
	}
}

// resolveMime picks the mime type for a payload. Images trust the sniffed
// content; audio trusts the platform's declaration first. A payload whose
// content contradicts its kind (a video sticker, an animated sticker archive)
// is rejected.
func resolveMime(kind channel.AttachmentKind, declared string, data []byte) (string, error) {
	declared = baseMime(declared)
	sniffed := mimetype.Detect(data)
	detected := baseMime(sniffed.String())
	unknown := detected == "" || detected == octetStream

	mediaKind, _ := mediaKindFor(kind)
	switch mediaKind {
	case conversation.MediaImage:
		if strings.HasPrefix(detected, "image/") {
			return detected, nil
		}
		if unknown && strings.HasPrefix(declared, "image/") {
			return declared, nil
		}
		if unknown && defaultMime(kind) != "" {
			return defaultMime(kind), nil
		}
	case conversation.MediaAudio:
		if strings.HasPrefix(declared, "audio/") {
			return declared, nil
		}
		if strings.HasPrefix(detected, "audio/") {
			return detected, nil
		}
		if sniffed.Is("application/ogg") {
			return DefaultVoiceMime, nil
		}
		if unknown {
			return defaultMime(kind), nil
		}
	}
	return "", &KindError{Kind: kind, Detail: detected}
}

// ExtensionFor returns a file extension (with dot) for a mime type, or "".
func ExtensionFor(mime string) string {
	if m := mimetype.Lookup(baseMime(mime)); m != nil {
		return m.Extension()
	}
	return ""
}

func baseMime(value string) string {
	value = strings.TrimSpace(value)
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	return strings.ToLower(value)
}

// KindError reports an attachment that cannot be forwarded. It matches
// ErrUnsupportedMediaKind with errors.Is.
type KindError struct {
	Kind   channel.AttachmentKind
	Detail string
}

func (e *KindError) Error() string {
	if e.Detail == "" {
		return ErrUnsupportedMediaKind.Error() + ": " + string(e.Kind)
	}
	return ErrUnsupportedMediaKind.Error() + ": " + string(e.Kind) + " (" + e.Detail + ")"
}

// Is makes KindError match ErrUnsupportedMediaKind.
func (e *KindError) Is(target error) bool {
	return target == ErrUnsupportedMediaKind
}

// IsVideo reports whether the rejected item was video-like.
func (e *KindError) IsVideo() bool {
	return strings.HasPrefix(e.Detail, "video/") ||
		e.Detail == channel.DetailVideo ||
		e.Detail == channel.DetailVideoNote ||
		e.Detail == channel.DetailAnimation ||
		e.Detail == channel.DetailAnimatedSticker
}
