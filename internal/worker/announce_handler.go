package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"roomhub/internal/service"
)

// AnnouncementPostHandler publishes announcements whose scheduled time has
// arrived.
type AnnouncementPostHandler struct {
	announce *service.AnnouncementService
}

// NewAnnouncementPostHandler creates an AnnouncementPostHandler.
func NewAnnouncementPostHandler(announce *service.AnnouncementService) *AnnouncementPostHandler {
	if announce == nil {
		panic("AnnouncementService cannot be nil for AnnouncementPostHandler")
	}
	return &AnnouncementPostHandler{announce: announce}
}

// ProcessTask implements asynq.Handler.
func (h *AnnouncementPostHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	posted, err := h.announce.PostScheduled(ctx, time.Now())
	if err != nil {
		logCtx.WithError(err).Error("Scheduled announcement posting failed")
		return err
	}
	if posted > 0 {
		logCtx.WithField("posted", posted).Info("Scheduled announcements posted")
	}
	return nil
}
