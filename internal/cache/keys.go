package cache

import (
	"fmt"
	"strings"
)

// Cache key namespace. Every key is prefixed by an entity kind plus, where
// applicable, a room token or user id. Invalidation always targets the exact
// key or a wildcard prefix, never a partial match.

const (
	roomPrefix         = "room:"
	conferencePrefix   = "conference:"
	discussionPrefix   = "discussion:"
	ledgerPrefix       = "discussionStore:"
	announcementPrefix = "roomAnnouncements:"
	userRoomsPrefix    = "userRooms:"
	enrolledPrefix     = "userEnrolledRooms:"
	invitationsPrefix  = "userRoomInvitations:"
)

// RoomPresenceKey holds the presence blob for a room.
func RoomPresenceKey(token string) string { return roomPrefix + token }

// ConferencePresenceKey holds conference presence, a distinct namespace.
func ConferencePresenceKey(token string) string { return conferencePrefix + token }

// DiscussionKey is the ranked buffer of a room's recent messages.
func DiscussionKey(token string) string { return discussionPrefix + token }

// LedgerKey is the per-room pending-flush ledger entry.
func LedgerKey(token string) string { return ledgerPrefix + token }

// LedgerPattern matches every pending-flush ledger key.
func LedgerPattern() string { return ledgerPrefix + "*" }

// TokenFromLedgerKey recovers the room token from a ledger key.
func TokenFromLedgerKey(key string) string { return strings.TrimPrefix(key, ledgerPrefix) }

// AnnouncementsKey is the ranked cache of a room's posted announcements.
func AnnouncementsKey(token string) string { return announcementPrefix + token }

// UserRoomsKey caches the rooms a user owns.
func UserRoomsKey(userID uint) string { return fmt.Sprintf("%s%d", userRoomsPrefix, userID) }

// UserEnrolledRoomsKey caches the private rooms a user is enrolled in.
func UserEnrolledRoomsKey(userID uint) string { return fmt.Sprintf("%s%d", enrolledPrefix, userID) }

// UserInvitationsKey caches a user's pending invitations.
func UserInvitationsKey(userID uint) string { return fmt.Sprintf("%s%d", invitationsPrefix, userID) }

// UserRoomsPattern matches every user's owned-rooms cache entry.
func UserRoomsPattern() string { return userRoomsPrefix + "*" }

// EnrolledRoomsPattern matches every user's enrolled-rooms cache entry.
func EnrolledRoomsPattern() string { return enrolledPrefix + "*" }

// InvitationsPattern matches every user's invitation cache entry.
func InvitationsPattern() string { return invitationsPrefix + "*" }
