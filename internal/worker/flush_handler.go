package worker

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"roomhub/internal/service"
)

// FlushHandler runs the periodic drain of buffered discussion messages into
// the database.
type FlushHandler struct {
	flush *service.FlushService
}

// NewFlushHandler creates a FlushHandler.
func NewFlushHandler(flush *service.FlushService) *FlushHandler {
	if flush == nil {
		panic("FlushService cannot be nil for FlushHandler")
	}
	return &FlushHandler{flush: flush}
}

// ProcessTask implements asynq.Handler. An overlapping sweep is treated as
// success so the scheduler does not retry into the running one; a partial
// sweep is returned as an error so the failed rooms get another pass on the
// next tick.
func (h *FlushHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	report, err := h.flush.FlushBufferedMessages(ctx)
	if err != nil {
		if errors.Is(err, service.ErrFlushInFlight) {
			logCtx.Debug("Previous flush still running, skipping this tick")
			return nil
		}
		if errors.Is(err, service.ErrFlushPartial) {
			logCtx.WithFields(logrus.Fields{
				"rooms":    report.Rooms,
				"messages": report.Messages,
				"failed":   report.Failed,
			}).Warn("Flush completed with failed rooms")
			return err
		}
		logCtx.WithError(err).Error("Flush failed")
		return err
	}

	if report.Messages > 0 {
		logCtx.WithFields(logrus.Fields{
			"rooms":    report.Rooms,
			"messages": report.Messages,
		}).Info("Flush completed")
	}
	return nil
}
