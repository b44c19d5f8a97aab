package infrastructure

import (
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"

	"tenantbot/internal/entities"
)

// convertMessage maps a whatsmeow message event to the domain event.
// Protocol-only messages (receipts, revokes, reactions) yield nil.
func convertMessage(evt *events.Message) *entities.MessageEvent {
	if evt == nil || evt.Message == nil {
		return nil
	}

	out := &entities.MessageEvent{
		ID:        string(evt.Info.ID),
		ChatID:    evt.Info.Chat.String(),
		SenderID:  evt.Info.Sender.ToNonAD().String(),
		Sender:    evt.Info.PushName,
		Direction: entities.Incoming,
		At:        evt.Info.Timestamp,
	}
	if evt.Info.IsFromMe {
		out.Direction = entities.Outgoing
	}

	if !fillContent(out, evt.Message) {
		return nil
	}
	return out
}

func fillContent(out *entities.MessageEvent, msg *waProto.Message) bool {
	if text := msg.GetConversation(); text != "" {
		out.Text = text
		return true
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		out.Text = ext.GetText()
		if ext.GetMatchedText() != "" {
			out.Media = entities.Media{Kind: entities.MediaWebPage}
		}
		return true
	}
	if img := msg.GetImageMessage(); img != nil {
		out.Text = img.GetCaption()
		out.Media = entities.Media{Kind: entities.MediaPhoto, MimeType: img.GetMimetype()}
		return true
	}
	if vid := msg.GetPtvMessage(); vid != nil {
		out.Media = entities.Media{Kind: entities.MediaDocument, MimeType: vid.GetMimetype(), RoundClip: true}
		return true
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		out.Text = vid.GetCaption()
		out.Media = entities.Media{Kind: entities.MediaDocument, MimeType: vid.GetMimetype(), Animated: vid.GetGifPlayback()}
		return true
	}
	if audio := msg.GetAudioMessage(); audio != nil {
		out.Media = entities.Media{Kind: entities.MediaDocument, MimeType: audio.GetMimetype(), Voice: audio.GetPTT()}
		return true
	}
	if sticker := msg.GetStickerMessage(); sticker != nil {
		out.Media = entities.Media{Kind: entities.MediaDocument, MimeType: sticker.GetMimetype(), Sticker: true, Animated: sticker.GetIsAnimated()}
		return true
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		out.Text = doc.GetCaption()
		out.Media = entities.Media{Kind: entities.MediaDocument, MimeType: doc.GetMimetype()}
		return true
	}
	if loc := msg.GetLocationMessage(); loc != nil {
		out.Media = entities.Media{Kind: entities.MediaLocation}
		if loc.GetName() != "" || loc.GetAddress() != "" {
			out.Media.Kind = entities.MediaVenue
		}
		return true
	}
	if msg.GetLiveLocationMessage() != nil {
		out.Media = entities.Media{Kind: entities.MediaLocation}
		return true
	}
	if msg.GetContactMessage() != nil || msg.GetContactsArrayMessage() != nil {
		out.Media = entities.Media{Kind: entities.MediaContact}
		return true
	}
	if msg.GetPollCreationMessage() != nil || msg.GetPollCreationMessageV2() != nil || msg.GetPollCreationMessageV3() != nil {
		out.Media = entities.Media{Kind: entities.MediaPoll}
		return true
	}
	if msg.GetAlbumMessage() != nil {
		out.GroupedID = out.ID
		out.Media = entities.Media{Kind: entities.MediaPhoto}
		return true
	}
	return false
}
