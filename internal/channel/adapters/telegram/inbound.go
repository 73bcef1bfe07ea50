package telegram

import (
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/omnirelay/omni/internal/channel"
)

// buildInboundEvent classifies a Telegram message into the closed set of
// event kinds. It reports false for messages the relay ignores entirely
// (service messages, commands addressed to another bot).
func buildInboundEvent(msg *tgbotapi.Message, botUsername string) (channel.InboundEvent, bool) {
	if msg == nil || msg.Chat == nil {
		return channel.InboundEvent{}, false
	}
	event := channel.InboundEvent{
		Channel:   Type,
		Kind:      channel.EventMessage,
		MessageID: strconv.Itoa(msg.MessageID),
		Conversation: channel.Conversation{
			ID:   strconv.FormatInt(msg.Chat.ID, 10),
			Type: strings.TrimSpace(msg.Chat.Type),
			Name: strings.TrimSpace(msg.Chat.Title),
		},
		Sender:       resolveTelegramSender(msg),
		Text:         strings.TrimSpace(msg.Text),
		MediaGroupID: strings.TrimSpace(msg.MediaGroupID),
		ReceivedAt:   time.Unix(int64(msg.Date), 0).UTC(),
	}
	if msg.IsCommand() {
		if !commandAddressedTo(msg, botUsername) {
			return channel.InboundEvent{}, false
		}
		event.Kind = channel.EventCommand
		event.Command = strings.ToLower(msg.Command())
		event.CommandArgs = strings.TrimSpace(msg.CommandArguments())
		return event, true
	}
	event.Attachments = collectTelegramAttachments(msg)
	if len(event.Attachments) == 0 {
		return channel.InboundEvent{}, false
	}
	return event, true
}

// commandAddressedTo accepts "/cmd" and "/cmd@ThisBot" but not commands
// addressed to another bot in a shared group.
func commandAddressedTo(msg *tgbotapi.Message, botUsername string) bool {
	full := msg.CommandWithAt()
	idx := strings.Index(full, "@")
	if idx < 0 {
		return true
	}
	target := strings.TrimSpace(full[idx+1:])
	botUsername = strings.TrimPrefix(strings.TrimSpace(botUsername), "@")
	if target == "" || botUsername == "" {
		return true
	}
	return strings.EqualFold(target, botUsername)
}

func resolveTelegramSender(msg *tgbotapi.Message) channel.Identity {
	if msg == nil {
		return channel.Identity{}
	}
	if msg.From != nil {
		username := strings.TrimSpace(msg.From.UserName)
		firstName := strings.TrimSpace(msg.From.FirstName)
		displayName := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
		if displayName == "" {
			displayName = username
		}
		return channel.Identity{
			SubjectID:   strconv.FormatInt(msg.From.ID, 10),
			DisplayName: displayName,
			FirstName:   firstName,
			Username:    username,
		}
	}
	if msg.SenderChat != nil {
		title := strings.TrimSpace(msg.SenderChat.Title)
		if title == "" {
			title = strings.TrimSpace(msg.SenderChat.UserName)
		}
		return channel.Identity{
			SubjectID:   strconv.FormatInt(msg.SenderChat.ID, 10),
			DisplayName: title,
			FirstName:   title,
			Username:    strings.TrimSpace(msg.SenderChat.UserName),
		}
	}
	return channel.Identity{}
}

func collectTelegramAttachments(msg *tgbotapi.Message) []channel.Attachment {
	caption := strings.TrimSpace(msg.Caption)
	attachments := make([]channel.Attachment, 0, 1)
	switch {
	case len(msg.Photo) > 0:
		photo := pickTelegramPhoto(msg.Photo)
		attachments = append(attachments, channel.Attachment{
			Kind:        channel.AttachmentPhoto,
			PlatformKey: photo.FileID,
			UniqueKey:   photo.FileUniqueID,
			Size:        int64(photo.FileSize),
			Width:       photo.Width,
			Height:      photo.Height,
			Caption:     caption,
		})
	case msg.Sticker != nil:
		if msg.Sticker.IsAnimated {
			attachments = append(attachments, unsupported(channel.DetailAnimatedSticker, caption))
			break
		}
		attachments = append(attachments, channel.Attachment{
			Kind:        channel.AttachmentSticker,
			PlatformKey: msg.Sticker.FileID,
			UniqueKey:   msg.Sticker.FileUniqueID,
			Size:        int64(msg.Sticker.FileSize),
			Width:       msg.Sticker.Width,
			Height:      msg.Sticker.Height,
		})
	case msg.Voice != nil:
		attachments = append(attachments, channel.Attachment{
			Kind:        channel.AttachmentVoice,
			PlatformKey: msg.Voice.FileID,
			UniqueKey:   msg.Voice.FileUniqueID,
			Mime:        strings.TrimSpace(msg.Voice.MimeType),
			Size:        int64(msg.Voice.FileSize),
			DurationMs:  int64(msg.Voice.Duration) * 1000,
			Caption:     caption,
		})
	case msg.Audio != nil:
		attachments = append(attachments, channel.Attachment{
			Kind:        channel.AttachmentAudioFile,
			PlatformKey: msg.Audio.FileID,
			UniqueKey:   msg.Audio.FileUniqueID,
			Name:        strings.TrimSpace(msg.Audio.FileName),
			Mime:        strings.TrimSpace(msg.Audio.MimeType),
			Size:        int64(msg.Audio.FileSize),
			DurationMs:  int64(msg.Audio.Duration) * 1000,
			Caption:     caption,
		})
	case msg.Video != nil:
		attachments = append(attachments, unsupported(channel.DetailVideo, caption))
	case msg.VideoNote != nil:
		attachments = append(attachments, unsupported(channel.DetailVideoNote, caption))
	case msg.Animation != nil:
		attachments = append(attachments, unsupported(channel.DetailAnimation, caption))
	case msg.Document != nil:
		att := unsupported(channel.DetailDocument, caption)
		att.Name = strings.TrimSpace(msg.Document.FileName)
		att.Mime = strings.TrimSpace(msg.Document.MimeType)
		attachments = append(attachments, att)
	case msg.Location != nil, msg.Contact != nil, msg.Venue != nil, msg.Poll != nil, msg.Dice != nil, msg.Game != nil:
		attachments = append(attachments, unsupported(channel.DetailOther, caption))
	}
	if len(attachments) == 0 {
		if text := strings.TrimSpace(msg.Text); text != "" {
			attachments = append(attachments, channel.Attachment{Kind: channel.AttachmentText, Text: text})
		}
	}
	return attachments
}

func unsupported(detail, caption string) channel.Attachment {
	return channel.Attachment{Kind: channel.AttachmentUnsupported, Detail: detail, Caption: caption}
}

func pickTelegramPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	if len(items) == 0 {
		return tgbotapi.PhotoSize{}
	}
	best := items[0]
	for _, item := range items[1:] {
		if item.FileSize > best.FileSize {
			best = item
			continue
		}
		if item.FileSize == best.FileSize && item.Width*item.Height > best.Width*best.Height {
			best = item
		}
	}
	return best
}
