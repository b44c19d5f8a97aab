package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tenantbot/internal/entities"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		evt  entities.MessageEvent
		want entities.ContentType
	}{
		{"plain text", entities.MessageEvent{Text: "hi"}, entities.ContentText},
		{"photo", entities.MessageEvent{Media: entities.Media{Kind: entities.MediaPhoto}}, entities.ContentPhoto},
		{"album item", entities.MessageEvent{GroupedID: "g1", Media: entities.Media{Kind: entities.MediaPhoto}}, entities.ContentMediaGroup},
		{"sticker beats mime", entities.MessageEvent{Media: entities.Media{Kind: entities.MediaDocument, MimeType: "video/webm", Sticker: true}}, entities.ContentSticker},
		{"gif video", entities.MessageEvent{Media: entities.Media{Kind: entities.MediaDocument, MimeType: "video/mp4", Animated: true}}, entities.ContentAnimation},
		{"round video", entities.MessageEvent{Media: entities.Media{Kind: entities.MediaDocument, MimeType: "video/mp4", RoundClip: true}}, entities.ContentVideoNote},
		{"video", entities.MessageEvent{Media: entities.Media{Kind: entities.MediaDocument, MimeType: "video/mp4"}}, entities.ContentVideo},
		{"voice", entities.MessageEvent{Media: entities.Media{Kind: entities.MediaDocument, MimeType: "audio/ogg", Voice: true}}, entities.ContentVoice},
		{"audio", entities.MessageEvent{Media: entities.Media{Kind: entities.MediaDocument, MimeType: "audio/mpeg"}}, entities.ContentAudio},
		{"gif image", entities.MessageEvent{Media: entities.Media{Kind: entities.MediaDocument, MimeType: "image/gif"}}, entities.ContentAnimation},
		{"pdf", entities.MessageEvent{Media: entities.Media{Kind: entities.MediaDocument, MimeType: "application/pdf"}}, entities.ContentDocument},
		{"location", entities.MessageEvent{Media: entities.Media{Kind: entities.MediaLocation}}, entities.ContentLocation},
		{"contact", entities.MessageEvent{Media: entities.Media{Kind: entities.MediaContact}}, entities.ContentContact},
		{"poll", entities.MessageEvent{Media: entities.Media{Kind: entities.MediaPoll}}, entities.ContentPoll},
		{"venue", entities.MessageEvent{Media: entities.Media{Kind: entities.MediaVenue}}, entities.ContentVenue},
		{"link preview", entities.MessageEvent{Media: entities.Media{Kind: entities.MediaWebPage}}, entities.ContentWebPage},
		{"unknown kind", entities.MessageEvent{Media: entities.Media{Kind: "hologram"}}, entities.ContentDocument},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			evt := tc.evt
			assert.Equal(t, tc.want, Classify(&evt))
		})
	}
}
