package entities

import "time"

type ContentType string

const (
	ContentText       ContentType = "text"
	ContentPhoto      ContentType = "photo"
	ContentVideo      ContentType = "video"
	ContentVideoNote  ContentType = "video_note"
	ContentAnimation  ContentType = "animation"
	ContentAudio      ContentType = "audio"
	ContentVoice      ContentType = "voice"
	ContentDocument   ContentType = "document"
	ContentSticker    ContentType = "sticker"
	ContentLocation   ContentType = "location"
	ContentContact    ContentType = "contact"
	ContentPoll       ContentType = "poll"
	ContentVenue      ContentType = "venue"
	ContentWebPage    ContentType = "web_page"
	ContentMediaGroup ContentType = "media_group"
	ContentDice       ContentType = "dice"
	ContentGame       ContentType = "game"
)

// MediaKind is the raw attachment kind reported by the platform adapter.
type MediaKind string

const (
	MediaNone     MediaKind = ""
	MediaPhoto    MediaKind = "photo"
	MediaDocument MediaKind = "document"
	MediaLocation MediaKind = "location"
	MediaContact  MediaKind = "contact"
	MediaPoll     MediaKind = "poll"
	MediaVenue    MediaKind = "venue"
	MediaWebPage  MediaKind = "web_page"
	MediaDice     MediaKind = "dice"
	MediaGame     MediaKind = "game"
)

type Media struct {
	Kind      MediaKind
	MimeType  string
	Sticker   bool
	Animated  bool
	Voice     bool
	RoundClip bool // Video note
}

type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

type MessageEvent struct {
	ID        string
	ChatID    string
	SenderID  string
	Sender    string // Display or user name of the sender, when known
	Text      string
	Media     Media
	GroupedID string // Album id, empty for single messages
	Direction Direction
	At        time.Time
}

type EventKind int

const (
	EventMessage EventKind = iota
	EventAccountUpdate
	EventLoggedOut
	EventPaired
)

// PlatformEvent is everything a platform client pushes to its session.
type PlatformEvent struct {
	Kind    EventKind
	Message *MessageEvent
}

// Origin marks messages this system sent itself.
type Origin int

const (
	OriginUser Origin = iota
	OriginSystem
	OriginRewrite
)
