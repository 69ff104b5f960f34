package service

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrAnnouncementNotFound = errors.New("announcement not found")
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: email already in use")
	ErrValidation           = errors.New("invalid request data")
	ErrForbidden            = errors.New("operation not permitted")
	ErrRoomLimitReached     = errors.New("room limit reached")

	// ErrCacheUnavailable is a soft failure: a cache write could not be
	// confirmed. Reads never surface it, they degrade to durable storage.
	ErrCacheUnavailable = errors.New("cache backend unavailable")

	// ErrFlushInFlight means another flush sweep is already running in this
	// process; the caller should simply skip this tick.
	ErrFlushInFlight = errors.New("flush already in progress")

	// ErrFlushPartial means one or more rooms failed to persist during the
	// sweep; their ledger entries were preserved for the next tick.
	ErrFlushPartial = errors.New("flush completed partially")

	ErrInternalServer = errors.New("internal server error")
)
