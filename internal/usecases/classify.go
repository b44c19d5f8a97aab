package usecases

import (
	"strings"

	"tenantbot/internal/entities"
)

// Classify picks the energy cost key for a message.
func Classify(evt *entities.MessageEvent) entities.ContentType {
	if evt.GroupedID != "" {
		return entities.ContentMediaGroup
	}

	switch evt.Media.Kind {
	case entities.MediaNone:
		return entities.ContentText
	case entities.MediaPhoto:
		return entities.ContentPhoto
	case entities.MediaDocument:
		return classifyDocument(evt.Media)
	case entities.MediaLocation:
		return entities.ContentLocation
	case entities.MediaContact:
		return entities.ContentContact
	case entities.MediaPoll:
		return entities.ContentPoll
	case entities.MediaVenue:
		return entities.ContentVenue
	case entities.MediaWebPage:
		return entities.ContentWebPage
	case entities.MediaDice:
		return entities.ContentDice
	case entities.MediaGame:
		return entities.ContentGame
	}
	return entities.ContentDocument
}

// Stickers win over the mime type; animated and round clips win over plain video.
func classifyDocument(m entities.Media) entities.ContentType {
	if m.Sticker {
		return entities.ContentSticker
	}
	mime := strings.ToLower(m.MimeType)
	switch {
	case strings.HasPrefix(mime, "video/"):
		if m.Animated {
			return entities.ContentAnimation
		}
		if m.RoundClip {
			return entities.ContentVideoNote
		}
		return entities.ContentVideo
	case strings.HasPrefix(mime, "audio/"):
		if m.Voice {
			return entities.ContentVoice
		}
		return entities.ContentAudio
	case strings.HasPrefix(mime, "image/") && strings.Contains(mime, "gif"):
		return entities.ContentAnimation
	}
	return entities.ContentDocument
}
