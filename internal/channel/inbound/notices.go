package inbound

import (
	"errors"

	"github.com/omnirelay/omni/internal/chat"
	"github.com/omnirelay/omni/internal/conversation"
	"github.com/omnirelay/omni/internal/media"
)

// Pipeline stages used in logs and for picking a fallback notice.
const (
	stageCommand   = "command"
	stageNormalize = "normalize"
	stageAssemble  = "assemble"
	stageGenerate  = "generate"
	stageStore     = "store"
	stageDeliver   = "deliver"
)

const (
	noticeVideo          = "Videos aren't supported yet."
	noticeUnsupported    = "Sorry, I can't read that kind of message. Send me text, photos, stickers or audio."
	noticeTooLarge       = "That file is too large for me to process."
	noticeDownload       = "Sorry, I couldn't download that file. Please try sending it again."
	noticeTooManyMedia   = "That's more media than I can look at in one message. Please send fewer items."
	noticeEmpty          = "I didn't find anything to respond to in that message."
	noticeAPIFailure     = "Sorry, I couldn't get a response right now. Please try again."
	noticeQuota          = "I'm getting too many requests at the moment. Please wait a bit and try again."
	noticeRejected       = "I can't help with that request."
	noticeUndeliverable  = "Sorry, I couldn't deliver my reply."
	noticeInternalFailed = "Sorry, something went wrong while handling your message."
)

// noticeFor maps a pipeline failure to the text shown to the user.
func noticeFor(stage string, err error) string {
	var kindErr *media.KindError
	switch {
	case errors.As(err, &kindErr):
		if kindErr.IsVideo() {
			return noticeVideo
		}
		return noticeUnsupported
	case errors.Is(err, media.ErrUnsupportedMediaKind):
		return noticeUnsupported
	case errors.Is(err, media.ErrAssetTooLarge):
		return noticeTooLarge
	case errors.Is(err, conversation.ErrTooManyMedia):
		return noticeTooManyMedia
	case errors.Is(err, conversation.ErrEmptyTurn):
		return noticeEmpty
	case errors.Is(err, chat.ErrContentRejected):
		return noticeRejected
	case errors.Is(err, chat.ErrQuotaExceeded):
		return noticeQuota
	case errors.Is(err, chat.ErrAPIFailure):
		return noticeAPIFailure
	}
	switch stage {
	case stageNormalize:
		return noticeDownload
	case stageGenerate:
		return noticeAPIFailure
	case stageDeliver:
		return noticeUndeliverable
	default:
		return noticeInternalFailed
	}
}
