package service

// Notifier is the room-scoped push channel used to inform connected clients
// of new messages, announcements and comments. The transport behind it is not
// this package's concern.
type Notifier interface {
	BroadcastToRoom(roomToken, event string, payload interface{})
}

// nopNotifier is used when no push channel is wired (tests, batch tools).
type nopNotifier struct{}

func (nopNotifier) BroadcastToRoom(string, string, interface{}) {}

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
