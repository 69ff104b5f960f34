package tasks

// Task type names for the background worker. Both are periodic and carry no
// payload; the handlers pull their work from the cache and the database.
const (
	TypeDiscussionFlush  = "discussion:flush"
	TypeAnnouncementPost = "announcement:post"
)
