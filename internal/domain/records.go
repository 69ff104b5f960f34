package domain

// Cache record schemas. These are the fixed, versioned shapes serialized into
// the blob/ranked cache so both backends have one contract to encode against.
// Bump RecordSchemaVersion when a shape changes incompatibly.

const RecordSchemaVersion = 1

// PresenceEntry is one connected participant of a room. ParticipantID is the
// user id for room presence, or the connection id itself for conference
// presence (conference entries have no durable user linkage).
type PresenceEntry struct {
	ParticipantID string `json:"participantId"`
	ConnectionID  string `json:"connectionId"`
	Name          string `json:"name"`
}

// RoomPresence is the per-room presence blob: everyone currently joined.
type RoomPresence struct {
	Version int             `json:"v"`
	Joined  []PresenceEntry `json:"joinedUsers"`
}

// BufferedMessage is a discussion message held in the ephemeral buffer before
// the flush commits it durably. RoomID is set only on the ledger copy, once
// the owning room's durable id is known.
type BufferedMessage struct {
	SenderID   uint   `json:"sender"`
	SenderName string `json:"name"`
	Body       string `json:"message"`
	SentOn     string `json:"sentOn"` // ISO-8601 / RFC 3339
	CUID       string `json:"cuid"`
	RoomID     uint   `json:"roomId,omitempty"`
}

// RoomLedger is the per-room pending-flush entry: buffered messages not yet
// durably persisted, in append order.
type RoomLedger struct {
	Version  int               `json:"v"`
	Messages []BufferedMessage `json:"messages"`
}

// CachedComment mirrors AnnouncementComment for the announcement cache copy.
type CachedComment struct {
	SenderID   uint   `json:"sender"`
	SenderName string `json:"name"`
	Body       string `json:"message"`
	CreatedAt  string `json:"createdAt"`
}

// CachedAnnouncement is the announcement record kept in the ranked cache.
type CachedAnnouncement struct {
	ID          uint            `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Attachment  string          `json:"attachment,omitempty"`
	AuthorID    uint            `json:"announcementBy"`
	AuthorName  string          `json:"announcementByName"`
	ScheduledAt string          `json:"announceOn,omitempty"`
	Posted      bool            `json:"posted"`
	CreatedAt   string          `json:"createdAt"`
	Comments    []CachedComment `json:"comments"`
}
